// Package service implements the stats upsert and game server workflows.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"get5-api/internal/metrics"
	"get5-api/internal/pkg/db"
)

// Error taxonomy of the workflows. Anything that does not match one of these
// is an internal failure.
var (
	ErrValidation     = errors.New("validation failed")
	ErrNotImplemented = errors.New("not implemented")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrNotFound       = errors.New("not found")
)

// ValidationError names the offending payload field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// Kind classifies err for logs and metrics.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrNotImplemented):
		return "not_implemented"
	default:
		return "internal"
	}
}

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// fail records a failed operation and returns err unchanged.
func fail(ctx context.Context, m *metrics.Metrics, op string, err error) error {
	kind := Kind(err)
	m.IncFailure(op, kind)

	logger := zerolog.Ctx(ctx)
	if kind == "internal" {
		logger.Error().Err(err).Str("operation", op).Msg("Operation failed")
	} else {
		logger.Debug().Err(err).Str("operation", op).Str("kind", kind).Msg("Operation rejected")
	}
	return err
}

// inTx runs fn in a unit of work and counts the rollback when fn fails.
func inTx[T any](ctx context.Context, d db.Beginner, m *metrics.Metrics, fn func(tx pgx.Tx) (T, error)) (T, error) {
	var failed bool
	result, err := db.InTx(ctx, d, func(tx pgx.Tx) (T, error) {
		v, err := fn(tx)
		failed = err != nil
		return v, err
	})
	if failed {
		m.IncRollback()
	}
	return result, err
}
