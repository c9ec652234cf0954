package db

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

type migration struct {
	name string
	sql  string
}

var migrations = []migration{
	{
		name: "users table",
		sql: `
		CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			steam_id VARCHAR(64) NOT NULL UNIQUE,
			name VARCHAR(255) NOT NULL,
			admin BOOLEAN NOT NULL DEFAULT FALSE,
			super_admin BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		`,
	},
	{
		name: "game_server table",
		sql: `
		CREATE TABLE IF NOT EXISTS game_server (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			in_use BOOLEAN NOT NULL DEFAULT FALSE,
			ip_string VARCHAR(255) NOT NULL,
			port INT NOT NULL,
			rcon_password TEXT,
			display_name VARCHAR(255) NOT NULL DEFAULT '',
			public_server BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_game_server_user ON game_server(user_id);
		CREATE INDEX IF NOT EXISTS idx_game_server_public ON game_server(public_server) WHERE public_server;
		`,
	},
	{
		name: "player_stats table",
		sql: `
		CREATE TABLE IF NOT EXISTS player_stats (
			id BIGSERIAL PRIMARY KEY,
			match_id BIGINT NOT NULL,
			map_id BIGINT NOT NULL,
			team_id BIGINT,
			steam_id VARCHAR(64) NOT NULL,
			name VARCHAR(255),
			kills INT,
			deaths INT,
			roundsplayed INT,
			assists INT,
			flashbang_assists INT,
			teamkills INT,
			suicides INT,
			headshot_kills INT,
			damage INT,
			bomb_plants INT,
			bomb_defuses INT,
			v1 INT,
			v2 INT,
			v3 INT,
			v4 INT,
			v5 INT,
			k1 INT,
			k2 INT,
			k3 INT,
			k4 INT,
			k5 INT,
			firstdeath_ct INT,
			firstdeath_t INT,
			firstkill_ct INT,
			firstkill_t INT,
			UNIQUE (match_id, map_id, steam_id)
		);
		CREATE INDEX IF NOT EXISTS idx_player_stats_steam ON player_stats(steam_id);
		`,
	},
}

// Migrate applies the schema. Every statement is idempotent, so it runs on
// each startup.
func Migrate(ctx context.Context, q DBTX) error {
	log.Info().Msg("Running database migrations...")

	for i, m := range migrations {
		if _, err := q.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", i+1, m.name, err)
		}
		log.Info().Msgf("Migration %d: %s created", i+1, m.name)
	}

	log.Info().Msg("All migrations completed successfully")
	return nil
}
