// Package cache keeps the anonymous public server listing in Redis so the
// landing page does not hit PostgreSQL on every load.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"get5-api/internal/config"
	"get5-api/internal/model"
)

const (
	publicServersKey = "get5:servers:public"
	generationKey    = "get5:servers:public:gen"
)

// ErrMiss is returned by Get when nothing usable is cached.
var ErrMiss = errors.New("cache miss")

// Generation identifies the state of the listing a reader saw. It changes
// on every Invalidate.
type Generation int64

// PublicServers caches the public server listing.
//
// Get returns the current generation even on a miss. A listing loaded
// after that miss must be stored with Set under the same generation; if
// Invalidate ran in between, the stored listing is never served.
type PublicServers interface {
	Get(ctx context.Context) ([]model.PublicServer, Generation, error)
	Set(ctx context.Context, gen Generation, servers []model.PublicServer) error
	Invalidate(ctx context.Context) error
}

type entry struct {
	Gen     Generation           `json:"gen"`
	Servers []model.PublicServer `json:"servers"`
}

// Redis is a PublicServers backed by a Redis client.
type Redis struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedis connects to Redis and verifies the connection.
func NewRedis(ctx context.Context, cfg config.RedisConfig) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	log.Info().Str("addr", cfg.Addr).Msg("Successfully connected to Redis")

	return &Redis{rdb: rdb, ttl: cfg.CacheTTL}, nil
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(rdb *redis.Client, ttl time.Duration) *Redis {
	return &Redis{rdb: rdb, ttl: ttl}
}

// Get returns the cached listing or ErrMiss, with the current generation.
func (c *Redis) Get(ctx context.Context) ([]model.PublicServer, Generation, error) {
	vals, err := c.rdb.MGet(ctx, publicServersKey, generationKey).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read public servers from cache: %w", err)
	}

	gen, err := parseGeneration(vals[1])
	if err != nil {
		return nil, 0, err
	}

	raw, ok := vals[0].(string)
	if !ok {
		return nil, gen, ErrMiss
	}
	var e entry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return nil, gen, fmt.Errorf("failed to decode cached public servers: %w", err)
	}
	if e.Gen != gen {
		return nil, gen, ErrMiss
	}
	return e.Servers, gen, nil
}

func parseGeneration(v any) (Generation, error) {
	s, ok := v.(string)
	if !ok {
		return 0, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse cache generation %q: %w", s, err)
	}
	return Generation(n), nil
}

// Set stores the listing loaded under gen for the configured TTL.
func (c *Redis) Set(ctx context.Context, gen Generation, servers []model.PublicServer) error {
	raw, err := json.Marshal(entry{Gen: gen, Servers: servers})
	if err != nil {
		return fmt.Errorf("failed to encode public servers: %w", err)
	}
	if err := c.rdb.Set(ctx, publicServersKey, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write public servers to cache: %w", err)
	}
	return nil
}

// Invalidate advances the generation and drops the cached listing.
func (c *Redis) Invalidate(ctx context.Context) error {
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, generationKey)
		pipe.Del(ctx, publicServersKey)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to invalidate public servers cache: %w", err)
	}
	return nil
}

// Ping checks the connection. It backs the cache entry of the health
// endpoint.
func (c *Redis) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}
	return nil
}

// Close closes the client.
func (c *Redis) Close() error {
	return c.rdb.Close()
}
