package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"get5-api/internal/model"
	"get5-api/internal/pkg/db"
	"get5-api/internal/pkg/partial"
)

const playerStatColumns = `id, match_id, map_id, team_id, steam_id, name,
	kills, deaths, roundsplayed, assists, flashbang_assists, teamkills, suicides,
	headshot_kills, damage, bomb_plants, bomb_defuses,
	v1, v2, v3, v4, v5, k1, k2, k3, k4, k5,
	firstdeath_ct, firstdeath_t, firstkill_ct, firstkill_t`

// PlayerStatRepository handles player_stats persistence. Writes take a
// partial.Set so that absent fields never reach the statement.
type PlayerStatRepository struct {
	db db.DBTX
}

// NewPlayerStatRepository creates a new PlayerStatRepository instance.
func NewPlayerStatRepository(q db.DBTX) *PlayerStatRepository {
	return &PlayerStatRepository{db: q}
}

// WithTx returns a copy of the repository bound to tx.
func (r *PlayerStatRepository) WithTx(tx pgx.Tx) *PlayerStatRepository {
	return &PlayerStatRepository{db: tx}
}

// List returns every stat row.
func (r *PlayerStatRepository) List(ctx context.Context) ([]model.PlayerStat, error) {
	return r.list(ctx, `SELECT `+playerStatColumns+` FROM player_stats ORDER BY id`)
}

// ListBySteamID returns the rows of one player across matches.
func (r *PlayerStatRepository) ListBySteamID(ctx context.Context, steamID string) ([]model.PlayerStat, error) {
	return r.list(ctx, `SELECT `+playerStatColumns+` FROM player_stats WHERE steam_id = $1 ORDER BY id`, steamID)
}

// ListByMatchID returns the rows of one match.
func (r *PlayerStatRepository) ListByMatchID(ctx context.Context, matchID int64) ([]model.PlayerStat, error) {
	return r.list(ctx, `SELECT `+playerStatColumns+` FROM player_stats WHERE match_id = $1 ORDER BY map_id, id`, matchID)
}

func (r *PlayerStatRepository) list(ctx context.Context, query string, args ...any) ([]model.PlayerStat, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query player stats: %w", err)
	}
	stats, err := pgx.CollectRows(rows, pgx.RowToStructByName[model.PlayerStat])
	if err != nil {
		return nil, fmt.Errorf("failed to scan player stats: %w", err)
	}
	return stats, nil
}

// Insert writes a new row from set and returns its id. The set must carry
// the identifying triple.
func (r *PlayerStatRepository) Insert(ctx context.Context, set *partial.Set) (int64, error) {
	clause, args, err := set.InsertColumns()
	if err != nil {
		return 0, err
	}

	var id int64
	if err := r.db.QueryRow(ctx, `INSERT INTO player_stats `+clause+` RETURNING id`, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to insert player stat: %w", err)
	}
	return id, nil
}

// Update applies set to the row identified by key and returns the number
// of rows affected.
func (r *PlayerStatRepository) Update(ctx context.Context, set *partial.Set, key model.StatKey) (int64, error) {
	assignments, args, err := set.Assignments(0)
	if err != nil {
		return 0, err
	}

	n := len(args)
	query := fmt.Sprintf(
		`UPDATE player_stats SET %s WHERE match_id = $%d AND map_id = $%d AND steam_id = $%d`,
		assignments, n+1, n+2, n+3,
	)
	args = append(args, key.MatchID, key.MapID, key.SteamID)

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to update player stat: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Exists reports whether a row with key exists.
func (r *PlayerStatRepository) Exists(ctx context.Context, key model.StatKey) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM player_stats WHERE match_id = $1 AND map_id = $2 AND steam_id = $3)`,
		key.MatchID, key.MapID, key.SteamID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check player stat: %w", err)
	}
	return exists, nil
}
