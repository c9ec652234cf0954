package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"get5-api/internal/model"
	"get5-api/internal/pkg/optional"
)

// A mutation is allowed exactly when the requester is a super-admin or
// owns the target server.
func TestCanMutateProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		p := model.Principal{
			ID:         rapid.Int64Range(1, 20).Draw(t, "id"),
			SuperAdmin: rapid.Bool().Draw(t, "superAdmin"),
		}
		owner := rapid.Int64Range(1, 20).Draw(t, "owner")

		got := canMutate(p, owner)
		if got != (p.SuperAdmin || owner == p.ID) {
			t.Fatalf("canMutate(%+v, %d) = %v", p, owner, got)
		}
	})
}

// A non-super-admin can only ever scope to themselves; a super-admin may
// scope to anyone.
func TestScopeUserIDProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		p := model.Principal{
			ID:         rapid.Int64Range(1, 1000).Draw(t, "id"),
			SuperAdmin: rapid.Bool().Draw(t, "superAdmin"),
		}
		requested := optional.None[int64]()
		if rapid.Bool().Draw(t, "hasRequested") {
			requested = optional.Some(rapid.Int64Range(1, 1000).Draw(t, "requested"))
		}

		got, err := scopeUserID(p, requested)

		want, present := requested.Get()
		switch {
		case !present:
			if err != nil || got != p.ID {
				t.Fatalf("absent user_id: got %d, %v", got, err)
			}
		case p.SuperAdmin || want == p.ID:
			if err != nil || got != want {
				t.Fatalf("allowed scope: got %d, %v", got, err)
			}
		default:
			if !errors.Is(err, ErrUnauthorized) {
				t.Fatalf("expected ErrUnauthorized, got %d, %v", got, err)
			}
		}
	})
}

func TestStatWrite_Validation(t *testing.T) {
	valid := func() *model.PlayerStatInput {
		return &model.PlayerStatInput{
			MatchID: optional.Some[int64](1),
			MapID:   optional.Some[int64](2),
			SteamID: optional.Some("S1"),
		}
	}

	tests := []struct {
		name   string
		mutate func(*model.PlayerStatInput)
		field  string
	}{
		{"missing match", func(in *model.PlayerStatInput) { in.MatchID = optional.None[int64]() }, "match_id"},
		{"zero match", func(in *model.PlayerStatInput) { in.MatchID = optional.Some[int64](0) }, "match_id"},
		{"missing map", func(in *model.PlayerStatInput) { in.MapID = optional.None[int64]() }, "map_id"},
		{"empty steam id", func(in *model.PlayerStatInput) { in.SteamID = optional.Some("") }, "steam_id"},
		{"zero team", func(in *model.PlayerStatInput) { in.TeamID = optional.Some[int64](0) }, "team_id"},
		{"negative team", func(in *model.PlayerStatInput) { in.TeamID = optional.Some[int64](-4) }, "team_id"},
		{"negative counter", func(in *model.PlayerStatInput) { in.Deaths = optional.Some(-1) }, "deaths"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid()
			tt.mutate(in)

			_, _, err := statWrite(in)
			require.ErrorIs(t, err, ErrValidation)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

// The write set never contains the key columns and contains exactly the
// present fields, in payload order.
func TestStatWrite_SetProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		in := &model.PlayerStatInput{
			MatchID: optional.Some(rapid.Int64Range(1, 1000).Draw(t, "match")),
			MapID:   optional.Some(rapid.Int64Range(1, 10).Draw(t, "map")),
			SteamID: optional.Some(rapid.StringMatching(`[0-9]{17}`).Draw(t, "steam")),
		}
		if rapid.Bool().Draw(t, "kills") {
			in.Kills = optional.Some(rapid.IntRange(0, 100).Draw(t, "killsValue"))
		}
		if rapid.Bool().Draw(t, "deaths") {
			in.Deaths = optional.Some(rapid.IntRange(0, 100).Draw(t, "deathsValue"))
		}
		if rapid.Bool().Draw(t, "name") {
			in.Name = optional.Some("player")
		}

		key, set, err := statWrite(in)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var want []string
		if in.Name.IsPresent() {
			want = append(want, "name")
		}
		if in.Kills.IsPresent() {
			want = append(want, "kills")
		}
		if in.Deaths.IsPresent() {
			want = append(want, "deaths")
		}
		if len(want) == 0 {
			want = []string{}
		}
		assert.Equal(t, want, set.Columns())
		assert.NotContains(t, set.Columns(), "match_id")

		full := withKey(set, key)
		assert.Equal(t, append([]string{"match_id", "map_id", "steam_id"}, want...), full.Columns())
		assert.Equal(t, len(want), set.Len(), "withKey must not modify its input")
	})
}

func TestKind(t *testing.T) {
	assert.Equal(t, "validation", Kind(invalid("port", "bad")))
	assert.Equal(t, "unauthorized", Kind(ErrUnauthorized))
	assert.Equal(t, "not_found", Kind(ErrNotFound))
	assert.Equal(t, "not_implemented", Kind(ErrNotImplemented))
	assert.Equal(t, "internal", Kind(errors.New("connection reset")))
	assert.Equal(t, "", Kind(nil))
}

func TestUpsertResult_String(t *testing.T) {
	assert.Equal(t, "inserted", UpsertInserted.String())
	assert.Equal(t, "updated", UpsertUpdated.String())
	assert.Equal(t, "unchanged", UpsertUnchanged.String())
}
