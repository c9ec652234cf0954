package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// tracked returns the number of keys the lock still holds state for.
func tracked[K comparable](l *KeyedLock[K]) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

type statKey struct {
	MatchID int64
	MapID   int64
	SteamID string
}

// For any set of concurrent read-modify-write operations on the same key,
// the result matches sequential execution.
func TestKeyedLock_SerializesSameKeyProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		numOps := rapid.IntRange(2, 20).Draw(t, "numOps")
		amounts := rapid.SliceOfN(rapid.Int64Range(-500, 500), numOps, numOps).Draw(t, "amounts")
		key := statKey{
			MatchID: rapid.Int64Range(1, 1000).Draw(t, "matchID"),
			MapID:   rapid.Int64Range(0, 5).Draw(t, "mapID"),
			SteamID: rapid.StringMatching(`[0-9]{17}`).Draw(t, "steamID"),
		}

		l := New[statKey]()
		var total, expected int64
		for _, a := range amounts {
			expected += a
		}

		var wg sync.WaitGroup
		wg.Add(numOps)
		for _, a := range amounts {
			go func(amount int64) {
				defer wg.Done()
				_ = l.WithLock(context.Background(), key, func() error {
					current := total
					time.Sleep(time.Microsecond)
					total = current + amount
					return nil
				})
			}(a)
		}
		wg.Wait()

		if total != expected {
			t.Fatalf("total %d, expected %d", total, expected)
		}
		if n := tracked(l); n != 0 {
			t.Fatalf("expected no tracked keys after release, got %d", n)
		}
	})
}

func TestKeyedLock_DistinctKeysDoNotBlock(t *testing.T) {
	l := New[string]()
	require.NoError(t, l.Lock(context.Background(), "a"))
	defer l.Unlock("a")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, l.Lock(ctx, "b"))
	l.Unlock("b")
	assert.Equal(t, 1, tracked(l))
}

func TestKeyedLock_LockHonoursContext(t *testing.T) {
	l := New[string]()
	require.NoError(t, l.Lock(context.Background(), "k"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := l.Lock(ctx, "k")
	assert.ErrorIs(t, err, ErrLockTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	l.Unlock("k")
	assert.Equal(t, 0, tracked(l))
}

func TestKeyedLock_WithLockPropagatesError(t *testing.T) {
	l := New[int]()
	boom := assert.AnError

	err := l.WithLock(context.Background(), 1, func() error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, tracked(l))
}

func TestKeyedLock_UnlockUnknownKeyIsNoop(t *testing.T) {
	l := New[int]()
	assert.NotPanics(t, func() { l.Unlock(7) })
}
