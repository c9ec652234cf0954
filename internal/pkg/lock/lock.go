// Package lock provides in-process per-key locking. The stats upsert
// workflow uses it to serialize read-then-write sequences on the same
// natural key within one API instance.
package lock

import (
	"context"
	"fmt"
	"sync"
)

// keyMutex is a one-slot semaphore so acquisition can be abandoned when the
// context ends. refs counts holders and waiters.
type keyMutex struct {
	sem  chan struct{}
	refs int
}

// KeyedLock hands out one mutex per key and forgets keys nobody holds.
type KeyedLock[K comparable] struct {
	mu    sync.Mutex
	locks map[K]*keyMutex
}

// New creates an empty KeyedLock.
func New[K comparable]() *KeyedLock[K] {
	return &KeyedLock[K]{locks: make(map[K]*keyMutex)}
}

func (l *KeyedLock[K]) acquireRef(key K) *keyMutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.locks[key]
	if !ok {
		m = &keyMutex{sem: make(chan struct{}, 1)}
		l.locks[key] = m
	}
	m.refs++
	return m
}

func (l *KeyedLock[K]) releaseRef(key K, m *keyMutex) {
	l.mu.Lock()
	defer l.mu.Unlock()

	m.refs--
	if m.refs == 0 {
		delete(l.locks, key)
	}
}

// Lock blocks until the key is held or ctx is done.
func (l *KeyedLock[K]) Lock(ctx context.Context, key K) error {
	m := l.acquireRef(key)

	select {
	case m.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		l.releaseRef(key, m)
		return fmt.Errorf("%w: %w", ErrLockTimeout, ctx.Err())
	}
}

// Unlock releases a key acquired with Lock.
func (l *KeyedLock[K]) Unlock(key K) {
	l.mu.Lock()
	m, ok := l.locks[key]
	l.mu.Unlock()
	if !ok {
		return
	}

	<-m.sem
	l.releaseRef(key, m)
}

// WithLock runs fn while holding key.
func (l *KeyedLock[K]) WithLock(ctx context.Context, key K, fn func() error) error {
	if err := l.Lock(ctx, key); err != nil {
		return err
	}
	defer l.Unlock(key)

	return fn()
}
