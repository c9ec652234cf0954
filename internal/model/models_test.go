package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlag_AcceptsBoolAndInteger(t *testing.T) {
	tests := []struct {
		in   string
		want Flag
	}{
		{"true", true},
		{"false", false},
		{"1", true},
		{"0", false},
	}
	for _, tt := range tests {
		var f Flag
		require.NoError(t, json.Unmarshal([]byte(tt.in), &f), tt.in)
		assert.Equal(t, tt.want, f, tt.in)
	}

	var f Flag
	assert.Error(t, json.Unmarshal([]byte(`"yes"`), &f))
	assert.Error(t, json.Unmarshal([]byte(`2`), &f))
}

func TestGameServerInput_PublicServerInteger(t *testing.T) {
	var in GameServerInput
	require.NoError(t, json.Unmarshal([]byte(`{"ip_string":"10.0.0.1","port":27015,"public_server":1}`), &in))

	v, ok := in.PublicServer.Get()
	require.True(t, ok)
	assert.True(t, bool(v))
	assert.False(t, in.InUse.IsPresent())
	assert.False(t, in.RCONPassword.IsPresent())
}

func TestPlayerStatInput_FirstDeathCTWireName(t *testing.T) {
	var in PlayerStatInput
	require.NoError(t, json.Unmarshal([]byte(`{"match_id":1,"map_id":2,"steam_id":"S1","firstdeath_Ct":4,"kills":0}`), &in))

	v, ok := in.FirstDeathCT.Get()
	require.True(t, ok)
	assert.Equal(t, 4, v)

	kills, ok := in.Kills.Get()
	assert.True(t, ok, "zero counter is present")
	assert.Equal(t, 0, kills)
	assert.False(t, in.Deaths.IsPresent())
}

func TestPlayerStatInput_CountersCoverEveryColumn(t *testing.T) {
	in := PlayerStatInput{}
	cols := make(map[string]bool)
	for _, c := range in.Counters() {
		assert.False(t, cols[c.Column], "duplicate column %s", c.Column)
		cols[c.Column] = true
	}
	assert.Len(t, cols, 25)
	assert.True(t, cols["firstdeath_ct"])
}

func TestPlayerStat_JSONUsesWireNames(t *testing.T) {
	v := 3
	data, err := json.Marshal(PlayerStat{MatchID: 1, MapID: 1, SteamID: "S1", FirstDeathCT: &v})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"firstdeath_Ct":3`)
	assert.Contains(t, string(data), `"deaths":null`)
}

func TestPublicServer_HasNoPassword(t *testing.T) {
	data, err := json.Marshal(PublicServer{ID: 1, IPString: "1.2.3.4", Port: 27015, Owner: "alice"})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "rcon_password")
}
