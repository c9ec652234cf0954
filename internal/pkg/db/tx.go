package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// Beginner starts a transaction. *pgxpool.Pool satisfies it.
type Beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// RollbackError is returned when the work function failed and the rollback
// that followed failed as well. Both errors are reachable with errors.Is/As.
type RollbackError struct {
	Cause    error
	Rollback error
}

func (e *RollbackError) Error() string {
	return fmt.Sprintf("%v (rollback failed: %v)", e.Cause, e.Rollback)
}

func (e *RollbackError) Unwrap() []error {
	return []error{e.Cause, e.Rollback}
}

// InTx runs fn inside a transaction and returns its result.
//
// The transaction is committed when fn returns nil and rolled back otherwise,
// so exactly one of commit or rollback happens per call. When fn fails and the
// rollback succeeds, fn's error is returned as is. A panic in fn rolls back and
// re-panics.
func InTx[T any](ctx context.Context, b Beginner, fn func(tx pgx.Tx) (T, error)) (result T, err error) {
	var zero T

	tx, err := b.Begin(ctx)
	if err != nil {
		return zero, fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			rollback(ctx, tx)
			panic(p)
		}
	}()

	result, err = fn(tx)
	if err != nil {
		if rbErr := rollback(ctx, tx); rbErr != nil {
			return zero, &RollbackError{Cause: err, Rollback: rbErr}
		}
		return zero, err
	}

	if err := tx.Commit(ctx); err != nil {
		// A failed commit leaves the transaction closed by pgx.
		return zero, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return result, nil
}

// WithTx is InTx for work that produces no value.
func WithTx(ctx context.Context, b Beginner, fn func(tx pgx.Tx) error) error {
	_, err := InTx(ctx, b, func(tx pgx.Tx) (struct{}, error) {
		return struct{}{}, fn(tx)
	})
	return err
}

func rollback(ctx context.Context, tx pgx.Tx) error {
	// Roll back even when the request context is already cancelled.
	err := tx.Rollback(context.WithoutCancel(ctx))
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Failed to roll back transaction")
		return err
	}
	return nil
}

// Database is the pool surface the workflows need: plain queries for reads
// and Begin for units of work.
type Database interface {
	DBTX
	Beginner
}
