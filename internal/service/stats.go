package service

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"get5-api/internal/metrics"
	"get5-api/internal/model"
	"get5-api/internal/pkg/db"
	"get5-api/internal/pkg/lock"
	"get5-api/internal/pkg/optional"
	"get5-api/internal/pkg/partial"
	"get5-api/internal/repository"
)

// UpsertResult tells what an upsert did to the row.
type UpsertResult int

const (
	UpsertInserted UpsertResult = iota + 1
	UpsertUpdated
	UpsertUnchanged
)

func (r UpsertResult) String() string {
	switch r {
	case UpsertInserted:
		return "inserted"
	case UpsertUpdated:
		return "updated"
	case UpsertUnchanged:
		return "unchanged"
	default:
		return "unknown"
	}
}

// StatsService records per-player match statistics.
type StatsService struct {
	db      db.Database
	stats   *repository.PlayerStatRepository
	locks   *lock.KeyedLock[model.StatKey]
	metrics *metrics.Metrics
}

// NewStatsService creates a new StatsService instance. m may be nil.
func NewStatsService(d db.Database, m *metrics.Metrics) *StatsService {
	return &StatsService{
		db:      d,
		stats:   repository.NewPlayerStatRepository(d),
		locks:   lock.New[model.StatKey](),
		metrics: m,
	}
}

// List returns every stat row.
func (s *StatsService) List(ctx context.Context) ([]model.PlayerStat, error) {
	stats, err := s.stats.List(ctx)
	if err != nil {
		return nil, fail(ctx, s.metrics, "stats.list", err)
	}
	return stats, nil
}

// ListBySteamID returns one player's rows.
func (s *StatsService) ListBySteamID(ctx context.Context, steamID string) ([]model.PlayerStat, error) {
	if steamID == "" {
		return nil, invalid("steam_id", "must not be empty")
	}
	stats, err := s.stats.ListBySteamID(ctx, steamID)
	if err != nil {
		return nil, fail(ctx, s.metrics, "stats.list", err)
	}
	return stats, nil
}

// ListByMatchID returns one match's rows.
func (s *StatsService) ListByMatchID(ctx context.Context, matchID int64) ([]model.PlayerStat, error) {
	if matchID <= 0 {
		return nil, invalid("match_id", "must be positive")
	}
	stats, err := s.stats.ListByMatchID(ctx, matchID)
	if err != nil {
		return nil, fail(ctx, s.metrics, "stats.list", err)
	}
	return stats, nil
}

// Create inserts a new stat row. A row that already exists for the same
// match, map and player is a validation error.
func (s *StatsService) Create(ctx context.Context, in *model.PlayerStatInput) (int64, error) {
	key, set, err := statWrite(in)
	if err != nil {
		return 0, fail(ctx, s.metrics, "stats.create", err)
	}

	id, err := inTx(ctx, s.db, s.metrics, func(tx pgx.Tx) (int64, error) {
		return s.stats.WithTx(tx).Insert(ctx, withKey(set, key))
	})
	if err != nil {
		if pgCode(err) == pgUniqueViolation {
			err = invalid("steam_id", "stats already exist for this match and map")
		}
		return 0, fail(ctx, s.metrics, "stats.create", err)
	}

	zerolog.Ctx(ctx).Info().
		Int64("match_id", key.MatchID).
		Int64("map_id", key.MapID).
		Str("steam_id", key.SteamID).
		Msg("Player stats created")

	return id, nil
}

// Upsert updates the row for the payload's match, map and player, or
// inserts it when there is none. Absent fields are never written, so a
// report carrying only deaths leaves kills untouched. Values are totals.
func (s *StatsService) Upsert(ctx context.Context, in *model.PlayerStatInput) (UpsertResult, error) {
	key, set, err := statWrite(in)
	if err != nil {
		return 0, fail(ctx, s.metrics, "stats.upsert", err)
	}

	// The lock covers racing reports within this process. Across instances
	// the unique index rejects the second insert.
	var result UpsertResult
	err = s.locks.WithLock(ctx, key, func() error {
		var err error
		result, err = inTx(ctx, s.db, s.metrics, func(tx pgx.Tx) (UpsertResult, error) {
			return upsertStat(ctx, s.stats.WithTx(tx), key, set)
		})
		return err
	})
	if err != nil {
		return 0, fail(ctx, s.metrics, "stats.upsert", fmt.Errorf("failed to upsert player stats: %w", err))
	}

	s.metrics.IncUpsert(result.String())
	zerolog.Ctx(ctx).Info().
		Int64("match_id", key.MatchID).
		Int64("map_id", key.MapID).
		Str("steam_id", key.SteamID).
		Stringer("result", result).
		Int("fields", set.Len()).
		Msg("Player stats upserted")

	return result, nil
}

func upsertStat(ctx context.Context, repo *repository.PlayerStatRepository, key model.StatKey, set *partial.Set) (UpsertResult, error) {
	if set.Empty() {
		exists, err := repo.Exists(ctx, key)
		if err != nil {
			return 0, err
		}
		if exists {
			return UpsertUnchanged, nil
		}
	} else {
		n, err := repo.Update(ctx, set, key)
		if err != nil {
			return 0, err
		}
		if n > 0 {
			return UpsertUpdated, nil
		}
	}

	if _, err := repo.Insert(ctx, withKey(set, key)); err != nil {
		return 0, err
	}
	return UpsertInserted, nil
}

// Delete is not supported for stats.
func (s *StatsService) Delete(ctx context.Context, _ *model.StatDeleteInput) error {
	return fail(ctx, s.metrics, "stats.delete", ErrNotImplemented)
}

// statWrite validates in and returns its key and the set of non-key fields.
func statWrite(in *model.PlayerStatInput) (model.StatKey, *partial.Set, error) {
	key, err := statKeyOf(in)
	if err != nil {
		return model.StatKey{}, nil, err
	}

	if team, ok := in.TeamID.Get(); ok && team <= 0 {
		return model.StatKey{}, nil, invalid("team_id", "must be positive")
	}

	set := partial.New().
		Add("team_id", in.TeamID).
		Add("name", in.Name)

	for _, c := range in.Counters() {
		if v, ok := c.Value.Get(); ok && v < 0 {
			return model.StatKey{}, nil, invalid(c.Column, "must not be negative")
		}
		set.Add(c.Column, c.Value)
	}
	return key, set, nil
}

func statKeyOf(in *model.PlayerStatInput) (model.StatKey, error) {
	matchID, err := positive("match_id", in.MatchID)
	if err != nil {
		return model.StatKey{}, err
	}
	mapID, err := positive("map_id", in.MapID)
	if err != nil {
		return model.StatKey{}, err
	}
	steamID, ok := in.SteamID.Get()
	if !ok || steamID == "" {
		return model.StatKey{}, invalid("steam_id", "is required")
	}
	return model.StatKey{MatchID: matchID, MapID: mapID, SteamID: steamID}, nil
}

// withKey returns a copy of set with the identifying triple in front.
func withKey(set *partial.Set, key model.StatKey) *partial.Set {
	out := partial.New().
		Put("match_id", key.MatchID).
		Put("map_id", key.MapID).
		Put("steam_id", key.SteamID)
	args := set.Args()
	for i, col := range set.Columns() {
		out.Put(col, args[i])
	}
	return out
}

func positive(field string, v optional.Value[int64]) (int64, error) {
	n, ok := v.Get()
	if !ok {
		return 0, invalid(field, "is required")
	}
	if n <= 0 {
		return 0, invalid(field, "must be positive")
	}
	return n, nil
}
