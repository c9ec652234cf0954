package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"get5-api/internal/model"
	"get5-api/internal/pkg/db"
	"get5-api/internal/pkg/partial"
)

const gameServerColumns = `id, user_id, in_use, ip_string, port, rcon_password, display_name, public_server, created_at`

// GameServerRepository handles game_server persistence. Every mutation is
// scoped by owner in its WHERE clause.
type GameServerRepository struct {
	db db.DBTX
}

// NewGameServerRepository creates a new GameServerRepository instance.
func NewGameServerRepository(q db.DBTX) *GameServerRepository {
	return &GameServerRepository{db: q}
}

// WithTx returns a copy of the repository bound to tx.
func (r *GameServerRepository) WithTx(tx pgx.Tx) *GameServerRepository {
	return &GameServerRepository{db: tx}
}

// Insert writes a new server from set and returns its id.
func (r *GameServerRepository) Insert(ctx context.Context, set *partial.Set) (int64, error) {
	clause, args, err := set.InsertColumns()
	if err != nil {
		return 0, err
	}

	var id int64
	if err := r.db.QueryRow(ctx, `INSERT INTO game_server `+clause+` RETURNING id`, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to insert game server: %w", err)
	}
	return id, nil
}

// ListPublic returns the public servers with their owner's name.
func (r *GameServerRepository) ListPublic(ctx context.Context) ([]model.PublicServer, error) {
	const query = `
		SELECT gs.id, gs.in_use, gs.display_name, gs.ip_string, gs.port, u.name AS owner
		FROM game_server gs
		JOIN users u ON u.id = gs.user_id
		WHERE gs.public_server
		ORDER BY gs.id
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query public servers: %w", err)
	}
	servers, err := pgx.CollectRows(rows, pgx.RowToStructByName[model.PublicServer])
	if err != nil {
		return nil, fmt.Errorf("failed to scan public servers: %w", err)
	}
	return servers, nil
}

// ListByOwner returns the servers owned by userID. Passwords are still
// encoded.
func (r *GameServerRepository) ListByOwner(ctx context.Context, userID int64) ([]model.GameServer, error) {
	rows, err := r.db.Query(ctx, `SELECT `+gameServerColumns+` FROM game_server WHERE user_id = $1 ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query game servers: %w", err)
	}
	servers, err := pgx.CollectRows(rows, pgx.RowToStructByName[model.GameServer])
	if err != nil {
		return nil, fmt.Errorf("failed to scan game servers: %w", err)
	}
	return servers, nil
}

// GetForOwner returns server id if userID owns it.
// Returns ErrServerNotFound otherwise.
func (r *GameServerRepository) GetForOwner(ctx context.Context, id, userID int64) (*model.GameServer, error) {
	return r.get(ctx, `SELECT `+gameServerColumns+` FROM game_server WHERE id = $1 AND user_id = $2`, id, userID)
}

func (r *GameServerRepository) get(ctx context.Context, query string, args ...any) (*model.GameServer, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get game server: %w", err)
	}
	server, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[model.GameServer])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrServerNotFound
		}
		return nil, fmt.Errorf("failed to get game server: %w", err)
	}
	return server, nil
}

// OwnerOf returns the owner of server id and locks the row for the rest
// of the transaction. Returns ErrServerNotFound if there is no such server.
func (r *GameServerRepository) OwnerOf(ctx context.Context, id int64) (int64, error) {
	var userID int64
	err := r.db.QueryRow(ctx, `SELECT user_id FROM game_server WHERE id = $1 FOR UPDATE`, id).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrServerNotFound
		}
		return 0, fmt.Errorf("failed to look up server owner: %w", err)
	}
	return userID, nil
}

// ExistsForOwner reports whether server id exists and belongs to userID.
func (r *GameServerRepository) ExistsForOwner(ctx context.Context, id, userID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM game_server WHERE id = $1 AND user_id = $2)`, id, userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check game server: %w", err)
	}
	return exists, nil
}

// Update applies set to server id owned by userID and returns the number
// of rows affected.
func (r *GameServerRepository) Update(ctx context.Context, set *partial.Set, id, userID int64) (int64, error) {
	assignments, args, err := set.Assignments(0)
	if err != nil {
		return 0, err
	}

	n := len(args)
	query := fmt.Sprintf(`UPDATE game_server SET %s WHERE user_id = $%d AND id = $%d`, assignments, n+1, n+2)
	args = append(args, userID, id)

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to update game server: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Delete removes server id owned by userID and returns the number of rows
// affected.
func (r *GameServerRepository) Delete(ctx context.Context, id, userID int64) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM game_server WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete game server: %w", err)
	}
	return tag.RowsAffected(), nil
}
