// Tests use testcontainers-go to spin up a PostgreSQL container.
package repository

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"get5-api/internal/model"
	"get5-api/internal/pkg/db"
	"get5-api/internal/pkg/db/dbtest"
	"get5-api/internal/pkg/optional"
	"get5-api/internal/pkg/partial"
)

// ============================================================================
// UserRepository Tests
// ============================================================================

func TestUserRepository_CreateAndGet(t *testing.T) {
	pool := dbtest.Setup(t)
	repo := NewUserRepository(pool)
	ctx := context.Background()

	user, err := repo.Create(ctx, "76561198000000001", "alice", true, false)
	require.NoError(t, err)
	assert.NotZero(t, user.ID)
	assert.Equal(t, "alice", user.Name)
	assert.True(t, user.Admin)
	assert.False(t, user.CreatedAt.IsZero())

	got, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.SteamID, got.SteamID)

	got, err = repo.GetBySteamID(ctx, "76561198000000001")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = repo.GetByID(ctx, 99999)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserRepository_CreateIsIdempotentPerSteamID(t *testing.T) {
	pool := dbtest.Setup(t)
	repo := NewUserRepository(pool)
	ctx := context.Background()

	first, err := repo.Create(ctx, "S1", "alice", false, false)
	require.NoError(t, err)
	second, err := repo.Create(ctx, "S1", "alice2", true, true)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "alice2", second.Name)
	assert.Equal(t, model.Principal{ID: first.ID, SuperAdmin: true}, second.Principal())
}

// ============================================================================
// PlayerStatRepository Tests
// ============================================================================

func statKey() model.StatKey {
	return model.StatKey{MatchID: 1, MapID: 1, SteamID: "S1"}
}

func keySet(k model.StatKey) *partial.Set {
	return partial.New().
		Put("match_id", k.MatchID).
		Put("map_id", k.MapID).
		Put("steam_id", k.SteamID)
}

func TestPlayerStatRepository_InsertUpdateLeavesAbsentColumns(t *testing.T) {
	pool := dbtest.Setup(t)
	repo := NewPlayerStatRepository(pool)
	ctx := context.Background()
	key := statKey()

	_, err := repo.Insert(ctx, keySet(key).Add("kills", optional.Some(5)))
	require.NoError(t, err)

	n, err := repo.Update(ctx, partial.New().Add("deaths", optional.Some(3)).Add("kills", optional.None[int]()), key)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	rows, err := repo.ListByMatchID(ctx, key.MatchID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	stat := rows[0]
	require.NotNil(t, stat.Kills)
	require.NotNil(t, stat.Deaths)
	assert.Equal(t, 5, *stat.Kills)
	assert.Equal(t, 3, *stat.Deaths)
	assert.Nil(t, stat.Assists)
}

func TestPlayerStatRepository_UpdateMissingRow(t *testing.T) {
	pool := dbtest.Setup(t)
	repo := NewPlayerStatRepository(pool)

	n, err := repo.Update(context.Background(), partial.New().Put("kills", 1), statKey())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPlayerStatRepository_EmptySetIsRejected(t *testing.T) {
	pool := dbtest.Setup(t)
	repo := NewPlayerStatRepository(pool)
	ctx := context.Background()

	_, err := repo.Update(ctx, partial.New(), statKey())
	assert.ErrorIs(t, err, partial.ErrEmptySet)
	_, err = repo.Insert(ctx, partial.New())
	assert.ErrorIs(t, err, partial.ErrEmptySet)
}

func TestPlayerStatRepository_UniqueTriple(t *testing.T) {
	pool := dbtest.Setup(t)
	repo := NewPlayerStatRepository(pool)
	ctx := context.Background()

	_, err := repo.Insert(ctx, keySet(statKey()))
	require.NoError(t, err)
	_, err = repo.Insert(ctx, keySet(statKey()))
	assert.Error(t, err)
}

func TestPlayerStatRepository_Lists(t *testing.T) {
	pool := dbtest.Setup(t)
	repo := NewPlayerStatRepository(pool)
	ctx := context.Background()

	for _, k := range []model.StatKey{
		{MatchID: 1, MapID: 1, SteamID: "A"},
		{MatchID: 1, MapID: 2, SteamID: "A"},
		{MatchID: 2, MapID: 3, SteamID: "B"},
	} {
		_, err := repo.Insert(ctx, keySet(k))
		require.NoError(t, err)
	}

	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	byPlayer, err := repo.ListBySteamID(ctx, "A")
	require.NoError(t, err)
	assert.Len(t, byPlayer, 2)

	byMatch, err := repo.ListByMatchID(ctx, 2)
	require.NoError(t, err)
	require.Len(t, byMatch, 1)
	assert.Equal(t, "B", byMatch[0].SteamID)

	exists, err := repo.Exists(ctx, model.StatKey{MatchID: 2, MapID: 3, SteamID: "B"})
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = repo.Exists(ctx, model.StatKey{MatchID: 2, MapID: 4, SteamID: "B"})
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestPlayerStatRepository_WithTxRollback(t *testing.T) {
	pool := dbtest.Setup(t)
	repo := NewPlayerStatRepository(pool)
	ctx := context.Background()

	err := db.WithTx(ctx, pool, func(tx pgx.Tx) error {
		if _, err := repo.WithTx(tx).Insert(ctx, keySet(statKey())); err != nil {
			return err
		}
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)

	exists, err := repo.Exists(ctx, statKey())
	require.NoError(t, err)
	assert.False(t, exists)
}

// ============================================================================
// GameServerRepository Tests
// ============================================================================

func createOwner(t *testing.T, pool db.DBTX, steamID, name string) *model.User {
	t.Helper()
	u, err := NewUserRepository(pool).Create(context.Background(), steamID, name, false, false)
	require.NoError(t, err)
	return u
}

func serverSet(userID int64, public bool) *partial.Set {
	return partial.New().
		Put("user_id", userID).
		Put("ip_string", "10.0.0.1").
		Put("port", 27015).
		Put("display_name", "scrim").
		Put("public_server", public).
		Put("rcon_password", "deadbeef")
}

func TestGameServerRepository_OwnerScoping(t *testing.T) {
	pool := dbtest.Setup(t)
	repo := NewGameServerRepository(pool)
	ctx := context.Background()

	alice := createOwner(t, pool, "SA", "alice")
	bob := createOwner(t, pool, "SB", "bob")

	id, err := repo.Insert(ctx, serverSet(alice.ID, false))
	require.NoError(t, err)

	owner, err := repo.OwnerOf(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, owner)
	_, err = repo.OwnerOf(ctx, id+1000)
	assert.ErrorIs(t, err, ErrServerNotFound)

	_, err = repo.GetForOwner(ctx, id, bob.ID)
	assert.ErrorIs(t, err, ErrServerNotFound)

	n, err := repo.Update(ctx, partial.New().Put("port", 27016), id, bob.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = repo.Update(ctx, partial.New().Put("port", 27016), id, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := repo.GetForOwner(ctx, id, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 27016, got.Port)
	require.NotNil(t, got.RCONPassword)
	assert.Equal(t, "deadbeef", *got.RCONPassword)

	n, err = repo.Delete(ctx, id, bob.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = repo.Delete(ctx, id, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	exists, err := repo.ExistsForOwner(ctx, id, alice.ID)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestGameServerRepository_ListPublic(t *testing.T) {
	pool := dbtest.Setup(t)
	repo := NewGameServerRepository(pool)
	ctx := context.Background()

	alice := createOwner(t, pool, "SA", "alice")
	_, err := repo.Insert(ctx, serverSet(alice.ID, true))
	require.NoError(t, err)
	_, err = repo.Insert(ctx, serverSet(alice.ID, false))
	require.NoError(t, err)

	public, err := repo.ListPublic(ctx)
	require.NoError(t, err)
	require.Len(t, public, 1)
	assert.Equal(t, "alice", public[0].Owner)
	assert.Equal(t, 27015, public[0].Port)

	mine, err := repo.ListByOwner(ctx, alice.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 2)
}
