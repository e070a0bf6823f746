package room

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfunc/boardroom/models"
)

func players(uids ...string) map[string]*models.Player {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make(map[string]*models.Player, len(uids))
	for i, uid := range uids {
		out[uid] = &models.Player{UID: uid, JoinedAt: base.Add(time.Duration(i) * time.Second)}
	}
	return out
}

func TestNormalizeOrder(t *testing.T) {
	tests := []struct {
		name    string
		order   []string
		players map[string]*models.Player
		want    []string
	}{
		{"already complete", []string{"a", "b", "c"}, players("a", "b", "c"), []string{"a", "b", "c"}},
		{"keeps existing relative order", []string{"c", "a", "b"}, players("a", "b", "c"), []string{"c", "a", "b"}},
		{"drops unknown entries", []string{"a", "x", "b"}, players("a", "b"), []string{"a", "b"}},
		{"drops duplicates", []string{"a", "b", "a"}, players("a", "b"), []string{"a", "b"}},
		{"appends missing by join time", []string{"b"}, players("c", "a", "b"), []string{"b", "c", "a"}},
		{"nil order", nil, players("a", "b"), []string{"a", "b"}},
		{"no players", []string{"a"}, map[string]*models.Player{}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeOrder(tt.order, tt.players))
		})
	}
}

func TestNormalizeOrder_TiesBrokenByUID(t *testing.T) {
	at := time.Now()
	ps := map[string]*models.Player{
		"z": {UID: "z", JoinedAt: at},
		"m": {UID: "m", JoinedAt: at},
		"a": {UID: "a", JoinedAt: at},
	}
	assert.Equal(t, []string{"a", "m", "z"}, NormalizeOrder(nil, ps))
}

func TestCurrentPlayer(t *testing.T) {
	order := []string{"a", "b", "c"}

	uid, ok := CurrentPlayer(order, 4)
	require.True(t, ok)
	assert.Equal(t, "b", uid)

	uid, ok = CurrentPlayer(order, -1)
	require.True(t, ok)
	assert.Equal(t, "c", uid)

	_, ok = CurrentPlayer(nil, 0)
	assert.False(t, ok)
}

func TestNewID(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 200; i++ {
		id, err := NewID()
		require.NoError(t, err)
		assert.True(t, ValidID(id), "invalid id %q", id)
		seen[id] = struct{}{}
	}
	assert.Greater(t, len(seen), 190)
}

func TestValidID(t *testing.T) {
	assert.True(t, ValidID("abc123"))
	assert.False(t, ValidID("ABC123"))
	assert.False(t, ValidID("abc12"))
	assert.False(t, ValidID("abc-12"))
}

func TestInviteLinkAndParseID(t *testing.T) {
	assert.Equal(t, "/room/abc123", InviteLink("", "abc123"))
	assert.Equal(t, "https://play.example/room/abc123", InviteLink("https://play.example/", "abc123"))

	cases := map[string]string{
		"":                                   "",
		"   ":                                "",
		" AbC123 ":                           "abc123",
		"https://play.example/room/ABC123":   "abc123",
		"https://play.example/room/abc123?x": "abc123",
		"https://play.example/lobby":         "",
		"/room/XYZ789":                       "xyz789",
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseID(in), "input %q", in)
	}
}

func TestErrorCodes(t *testing.T) {
	wrapped := fmt.Errorf("join: %w", ErrEmptyName)
	assert.True(t, errors.Is(wrapped, ErrEmptyName))
	assert.True(t, errors.Is(wrapped, &Error{Code: CodeEmptyName}))
	assert.False(t, errors.Is(wrapped, ErrNotYourTurn))

	code, ok := CodeOf(wrapped)
	require.True(t, ok)
	assert.Equal(t, CodeEmptyName, code)
	assert.Equal(t, "EMPTY_NAME", ErrEmptyName.Error())

	_, ok = CodeOf(errors.New("boom"))
	assert.False(t, ok)
}
