package db

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"get5-api/internal/config"
)

func TestApplyPoolSettings(t *testing.T) {
	cfg := &config.DatabaseConfig{
		Host: "localhost", Port: 5432, User: "get5", Name: "get5", SSLMode: "disable",
		PoolSize:  8,
		SlowQuery: time.Second,
	}
	pc, err := pgxpool.ParseConfig(cfg.DSN())
	require.NoError(t, err)

	applyPoolSettings(pc, cfg)

	assert.Equal(t, int32(8), pc.MaxConns)
	assert.Equal(t, int32(2), pc.MinConns)
	assert.Equal(t, 10*time.Second, pc.ConnConfig.ConnectTimeout)
	assert.Equal(t, time.Hour, pc.MaxConnLifetime)
	assert.Equal(t, 30*time.Minute, pc.MaxConnIdleTime)
	require.IsType(t, &queryTracer{}, pc.ConnConfig.Tracer)
	assert.Equal(t, time.Second, pc.ConnConfig.Tracer.(*queryTracer).slow)
}

func TestApplyPoolSettings_SmallPoolKeepsOneConn(t *testing.T) {
	cfg := &config.DatabaseConfig{Host: "db", Port: 5432, PoolSize: 2}
	pc, err := pgxpool.ParseConfig(cfg.DSN())
	require.NoError(t, err)

	applyPoolSettings(pc, cfg)

	assert.Equal(t, int32(1), pc.MinConns)
}

func traceOnce(ctx context.Context, tr *queryTracer, end pgx.TraceQueryEndData) {
	ctx = tr.TraceQueryStart(ctx, nil, pgx.TraceQueryStartData{SQL: "SELECT 1"})
	tr.TraceQueryEnd(ctx, nil, end)
}

func TestQueryTracer(t *testing.T) {
	var buf bytes.Buffer
	ctx := zerolog.New(&buf).Level(zerolog.DebugLevel).WithContext(context.Background())

	t.Run("fast statements are quiet", func(t *testing.T) {
		buf.Reset()
		traceOnce(ctx, &queryTracer{slow: time.Hour}, pgx.TraceQueryEndData{CommandTag: pgconn.NewCommandTag("SELECT 1")})
		assert.Empty(t, buf.String())
	})

	t.Run("slow statements warn", func(t *testing.T) {
		buf.Reset()
		traceOnce(ctx, &queryTracer{slow: time.Nanosecond}, pgx.TraceQueryEndData{CommandTag: pgconn.NewCommandTag("UPDATE 3")})
		assert.Contains(t, buf.String(), `"level":"warn"`)
		assert.Contains(t, buf.String(), `"rows":3`)
		assert.Contains(t, buf.String(), "SELECT 1")
	})

	t.Run("zero threshold disables slow logging", func(t *testing.T) {
		buf.Reset()
		traceOnce(ctx, &queryTracer{}, pgx.TraceQueryEndData{})
		assert.Empty(t, buf.String())
	})

	t.Run("failures log at debug", func(t *testing.T) {
		buf.Reset()
		traceOnce(ctx, &queryTracer{}, pgx.TraceQueryEndData{Err: errors.New("relation does not exist")})
		assert.Contains(t, buf.String(), `"level":"debug"`)
		assert.Contains(t, buf.String(), "relation does not exist")
	})
}

func TestQueryTracer_EndWithoutStartIsIgnored(t *testing.T) {
	var buf bytes.Buffer
	ctx := zerolog.New(&buf).WithContext(context.Background())

	(&queryTracer{slow: time.Nanosecond}).TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{})
	assert.Empty(t, buf.String())
}
