// Package repository provides data access layer implementations.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"get5-api/internal/model"
	"get5-api/internal/pkg/db"
)

// Common errors for repository operations.
var (
	ErrUserNotFound   = errors.New("user not found")
	ErrServerNotFound = errors.New("game server not found")
)

const userColumns = `id, steam_id, name, admin, super_admin, created_at`

// UserRepository handles user data persistence.
type UserRepository struct {
	db db.DBTX
}

// NewUserRepository creates a new UserRepository instance.
func NewUserRepository(q db.DBTX) *UserRepository {
	return &UserRepository{db: q}
}

// Create registers a user. A steam id that already exists is updated in
// place so the command can be re-run to change roles.
func (r *UserRepository) Create(ctx context.Context, steamID, name string, admin, superAdmin bool) (*model.User, error) {
	query := `
		INSERT INTO users (steam_id, name, admin, super_admin)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (steam_id) DO UPDATE
		SET name = EXCLUDED.name, admin = EXCLUDED.admin, super_admin = EXCLUDED.super_admin
		RETURNING ` + userColumns

	rows, err := r.db.Query(ctx, query, steamID, name, admin, superAdmin)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	user, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[model.User])
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// GetByID retrieves a user by id.
// Returns ErrUserNotFound if the user does not exist.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	rows, err := r.db.Query(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return collectUser(rows)
}

// GetBySteamID retrieves a user by Steam id.
func (r *UserRepository) GetBySteamID(ctx context.Context, steamID string) (*model.User, error) {
	rows, err := r.db.Query(ctx, `SELECT `+userColumns+` FROM users WHERE steam_id = $1`, steamID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return collectUser(rows)
}

func collectUser(rows pgx.Rows) (*model.User, error) {
	user, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[model.User])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}
