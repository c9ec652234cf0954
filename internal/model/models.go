// Package model defines the rows and request payloads of the get5 API.
package model

import (
	"time"

	"get5-api/internal/pkg/optional"
)

// User is a registered panel user. Identities come from Steam.
type User struct {
	ID         int64     `db:"id" json:"id"`
	SteamID    string    `db:"steam_id" json:"steam_id"`
	Name       string    `db:"name" json:"name"`
	Admin      bool      `db:"admin" json:"admin"`
	SuperAdmin bool      `db:"super_admin" json:"super_admin"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Principal is the authenticated requester.
type Principal struct {
	ID         int64
	SuperAdmin bool
}

// Principal returns the requester view of u.
func (u *User) Principal() Principal {
	return Principal{ID: u.ID, SuperAdmin: u.SuperAdmin}
}

// GameServer is a game_server row. RCONPassword holds the encoded secret
// when read from the database and the plaintext once decrypted for the owner.
type GameServer struct {
	ID           int64     `db:"id" json:"id"`
	UserID       int64     `db:"user_id" json:"user_id"`
	InUse        bool      `db:"in_use" json:"in_use"`
	IPString     string    `db:"ip_string" json:"ip_string"`
	Port         int       `db:"port" json:"port"`
	RCONPassword *string   `db:"rcon_password" json:"rcon_password"`
	DisplayName  string    `db:"display_name" json:"display_name"`
	PublicServer bool      `db:"public_server" json:"public_server"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// PublicServer is the listing shape for anonymous callers. It has no
// password field at all.
type PublicServer struct {
	ID          int64  `db:"id" json:"id"`
	InUse       bool   `db:"in_use" json:"in_use"`
	DisplayName string `db:"display_name" json:"display_name"`
	IPString    string `db:"ip_string" json:"ip_string"`
	Port        int    `db:"port" json:"port"`
	Owner       string `db:"owner" json:"owner"`
}

// GameServerInput is the create/update payload. Every field may be omitted;
// which ones are required depends on the operation.
type GameServerInput struct {
	ServerID     optional.Value[int64]  `json:"server_id"`
	UserID       optional.Value[int64]  `json:"user_id"`
	IPString     optional.Value[string] `json:"ip_string"`
	Port         optional.Value[int]    `json:"port"`
	DisplayName  optional.Value[string] `json:"display_name"`
	RCONPassword optional.Value[string] `json:"rcon_password"`
	PublicServer optional.Value[Flag]   `json:"public_server"`
	InUse        optional.Value[Flag]   `json:"in_use"`
}

// PlayerStat is a player_stats row. Everything but the identifying triple
// may be NULL.
type PlayerStat struct {
	ID               int64   `db:"id" json:"id"`
	MatchID          int64   `db:"match_id" json:"match_id"`
	MapID            int64   `db:"map_id" json:"map_id"`
	TeamID           *int64  `db:"team_id" json:"team_id"`
	SteamID          string  `db:"steam_id" json:"steam_id"`
	Name             *string `db:"name" json:"name"`
	Kills            *int    `db:"kills" json:"kills"`
	Deaths           *int    `db:"deaths" json:"deaths"`
	RoundsPlayed     *int    `db:"roundsplayed" json:"roundsplayed"`
	Assists          *int    `db:"assists" json:"assists"`
	FlashbangAssists *int    `db:"flashbang_assists" json:"flashbang_assists"`
	Teamkills        *int    `db:"teamkills" json:"teamkills"`
	Suicides         *int    `db:"suicides" json:"suicides"`
	HeadshotKills    *int    `db:"headshot_kills" json:"headshot_kills"`
	Damage           *int    `db:"damage" json:"damage"`
	BombPlants       *int    `db:"bomb_plants" json:"bomb_plants"`
	BombDefuses      *int    `db:"bomb_defuses" json:"bomb_defuses"`
	V1               *int    `db:"v1" json:"v1"`
	V2               *int    `db:"v2" json:"v2"`
	V3               *int    `db:"v3" json:"v3"`
	V4               *int    `db:"v4" json:"v4"`
	V5               *int    `db:"v5" json:"v5"`
	K1               *int    `db:"k1" json:"k1"`
	K2               *int    `db:"k2" json:"k2"`
	K3               *int    `db:"k3" json:"k3"`
	K4               *int    `db:"k4" json:"k4"`
	K5               *int    `db:"k5" json:"k5"`
	FirstDeathCT     *int    `db:"firstdeath_ct" json:"firstdeath_Ct"`
	FirstDeathT      *int    `db:"firstdeath_t" json:"firstdeath_t"`
	FirstKillCT      *int    `db:"firstkill_ct" json:"firstkill_ct"`
	FirstKillT       *int    `db:"firstkill_t" json:"firstkill_t"`
}

// PlayerStatInput is the stats report payload. The JSON name of
// FirstDeathCT is firstdeath_Ct for existing get5 clients.
type PlayerStatInput struct {
	MatchID optional.Value[int64]  `json:"match_id"`
	MapID   optional.Value[int64]  `json:"map_id"`
	SteamID optional.Value[string] `json:"steam_id"`
	TeamID  optional.Value[int64]  `json:"team_id"`
	Name    optional.Value[string] `json:"name"`

	Kills            optional.Value[int] `json:"kills"`
	Deaths           optional.Value[int] `json:"deaths"`
	RoundsPlayed     optional.Value[int] `json:"roundsplayed"`
	Assists          optional.Value[int] `json:"assists"`
	FlashbangAssists optional.Value[int] `json:"flashbang_assists"`
	Teamkills        optional.Value[int] `json:"teamkills"`
	Suicides         optional.Value[int] `json:"suicides"`
	HeadshotKills    optional.Value[int] `json:"headshot_kills"`
	Damage           optional.Value[int] `json:"damage"`
	BombPlants       optional.Value[int] `json:"bomb_plants"`
	BombDefuses      optional.Value[int] `json:"bomb_defuses"`
	V1               optional.Value[int] `json:"v1"`
	V2               optional.Value[int] `json:"v2"`
	V3               optional.Value[int] `json:"v3"`
	V4               optional.Value[int] `json:"v4"`
	V5               optional.Value[int] `json:"v5"`
	K1               optional.Value[int] `json:"k1"`
	K2               optional.Value[int] `json:"k2"`
	K3               optional.Value[int] `json:"k3"`
	K4               optional.Value[int] `json:"k4"`
	K5               optional.Value[int] `json:"k5"`
	FirstDeathCT     optional.Value[int] `json:"firstdeath_Ct"`
	FirstDeathT      optional.Value[int] `json:"firstdeath_t"`
	FirstKillCT      optional.Value[int] `json:"firstkill_ct"`
	FirstKillT       optional.Value[int] `json:"firstkill_t"`
}

// Counter pairs a player_stats column with its payload value.
type Counter struct {
	Column string
	Value  optional.Value[int]
}

// Counters returns the counter fields in column order.
func (in *PlayerStatInput) Counters() []Counter {
	return []Counter{
		{"kills", in.Kills},
		{"deaths", in.Deaths},
		{"roundsplayed", in.RoundsPlayed},
		{"assists", in.Assists},
		{"flashbang_assists", in.FlashbangAssists},
		{"teamkills", in.Teamkills},
		{"suicides", in.Suicides},
		{"headshot_kills", in.HeadshotKills},
		{"damage", in.Damage},
		{"bomb_plants", in.BombPlants},
		{"bomb_defuses", in.BombDefuses},
		{"v1", in.V1},
		{"v2", in.V2},
		{"v3", in.V3},
		{"v4", in.V4},
		{"v5", in.V5},
		{"k1", in.K1},
		{"k2", in.K2},
		{"k3", in.K3},
		{"k4", in.K4},
		{"k5", in.K5},
		{"firstdeath_ct", in.FirstDeathCT},
		{"firstdeath_t", in.FirstDeathT},
		{"firstkill_ct", in.FirstKillCT},
		{"firstkill_t", in.FirstKillT},
	}
}

// StatKey identifies a player_stats row.
type StatKey struct {
	MatchID int64
	MapID   int64
	SteamID string
}

// StatDeleteInput is the body of the stats delete route.
type StatDeleteInput struct {
	UserID  optional.Value[int64] `json:"user_id"`
	MatchID optional.Value[int64] `json:"match_id"`
}

// ServerDeleteInput is the body of the server delete route.
type ServerDeleteInput struct {
	UserID   optional.Value[int64] `json:"user_id"`
	ServerID optional.Value[int64] `json:"server_id"`
}
