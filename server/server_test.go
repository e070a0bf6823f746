package server

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfunc/boardroom/models"
	"github.com/wfunc/boardroom/network"
	"github.com/wfunc/boardroom/persistence"
	"github.com/wfunc/boardroom/services"
)

type testClient struct {
	t    *testing.T
	ws   *websocket.Conn
	conn *network.WSConnection
}

func newTestGateway(t *testing.T) (*GameServer, string) {
	t.Helper()
	store := persistence.NewMemoryStore()
	rooms := services.NewRoomService(store,
		services.WithDice(func() int { return 4 }),
		services.WithHeartbeatInterval(time.Hour),
	)
	gs := NewGameServer(":0", "https://play.example", rooms, nil)
	srv := httptest.NewServer(gs.Handler())
	t.Cleanup(func() {
		srv.Close()
		gs.Sessions().CloseAll()
		rooms.Close()
	})
	return gs, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dial(t *testing.T, url, uid string) *testClient {
	t.Helper()
	if uid != "" {
		url += "?uid=" + uid
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	c := &testClient{t: t, ws: conn, conn: network.NewWSConnection(conn)}
	t.Cleanup(func() { c.conn.Close() })
	return c
}

func (c *testClient) send(msgID uint16, v interface{}) {
	c.t.Helper()
	var data []byte
	if v != nil {
		var err error
		data, err = json.Marshal(v)
		require.NoError(c.t, err)
	}
	require.NoError(c.t, c.conn.Send(msgID, data))
}

// expect reads packets until one with msgID arrives, skipping the rest.
func (c *testClient) expect(msgID uint16, v interface{}) {
	c.t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	// A missing packet fails the read instead of blocking the test.
	require.NoError(c.t, c.ws.SetReadDeadline(deadline))
	for time.Now().Before(deadline) {
		packet, err := c.conn.ReadPacket()
		require.NoError(c.t, err, "waiting for packet %d", msgID)
		if packet.MsgID != msgID {
			continue
		}
		if v != nil {
			require.NoError(c.t, json.Unmarshal(packet.Data, v))
		}
		return
	}
	c.t.Fatalf("no packet %d before deadline", msgID)
}

// expectRoom waits for a snapshot that satisfies ok.
func (c *testClient) expectRoom(ok func(*models.Room) bool) *models.Room {
	c.t.Helper()
	for i := 0; i < 20; i++ {
		var state network.RoomState
		c.expect(network.MsgTypeRoomState, &state)
		if state.Room != nil && ok(state.Room) {
			return state.Room
		}
	}
	c.t.Fatal("room never reached the expected state")
	return nil
}

func TestGateway_SessionUsesUIDOrIssuesOne(t *testing.T) {
	_, url := newTestGateway(t)

	var info network.SessionInfo
	dial(t, url, "alice").expect(network.MsgTypeSession, &info)
	assert.Equal(t, "alice", info.PlayerID)

	var issued network.SessionInfo
	dial(t, url, "").expect(network.MsgTypeSession, &issued)
	assert.Len(t, issued.PlayerID, 36)
}

func TestGateway_AliceAndBob(t *testing.T) {
	_, url := newTestGateway(t)
	alice := dial(t, url, "A")
	bob := dial(t, url, "B")
	alice.expect(network.MsgTypeSession, nil)
	bob.expect(network.MsgTypeSession, nil)

	alice.send(network.MsgTypeCreateRoom, network.CreateRoomRequest{Name: "Alice"})
	var created network.CreateRoomResponse
	alice.expect(network.MsgTypeCreateRoom, &created)
	require.Len(t, created.RoomID, 6)
	assert.Equal(t, "https://play.example/room/"+created.RoomID, created.InviteLink)
	alice.expectRoom(func(r *models.Room) bool { return r.HostUID == "A" })

	bob.send(network.MsgTypeJoinRoom, network.JoinRoomRequest{RoomID: created.InviteLink, Name: "Bob"})
	bob.expectRoom(func(r *models.Room) bool { return r.HasPlayer("B") })
	alice.expectRoom(func(r *models.Room) bool { return r.HasPlayer("B") })

	alice.send(network.MsgTypeSetReady, network.SetReadyRequest{Ready: true})
	alice.send(network.MsgTypeStartGame, nil)
	var failure network.ErrorResponse
	alice.expect(network.MsgTypeError, &failure)
	assert.Equal(t, "NOT_ALL_READY", failure.Code)

	bob.send(network.MsgTypeSetReady, network.SetReadyRequest{Ready: true})
	bob.expectRoom(func(r *models.Room) bool { return r.Players["B"].Ready })
	alice.send(network.MsgTypeStartGame, nil)
	started := alice.expectRoom(func(r *models.Room) bool { return r.Status == models.StatusPlaying })
	assert.Equal(t, []string{"A", "B"}, started.Turn.Order)

	bob.send(network.MsgTypeRollDice, nil)
	bob.expect(network.MsgTypeError, &failure)
	assert.Equal(t, "NOT_YOUR_TURN", failure.Code)

	alice.send(network.MsgTypeRollDice, nil)
	var rolled network.RollDiceResponse
	alice.expect(network.MsgTypeRollDice, &rolled)
	assert.Equal(t, 4, rolled.Dice)
	after := bob.expectRoom(func(r *models.Room) bool { return r.Game.LastRoll != nil })
	assert.Equal(t, 1, after.Turn.Index)
	assert.Equal(t, 4, after.Game.Positions["A"])
}

func TestGateway_Errors(t *testing.T) {
	_, url := newTestGateway(t)
	c := dial(t, url, "A")
	c.expect(network.MsgTypeSession, nil)

	var failure network.ErrorResponse
	c.send(network.MsgTypeRollDice, nil)
	c.expect(network.MsgTypeError, &failure)
	assert.Equal(t, "PLAYER_NOT_IN_ROOM", failure.Code)

	c.send(network.MsgTypeJoinRoom, network.JoinRoomRequest{RoomID: "zzz999", Name: "Alice"})
	c.expect(network.MsgTypeError, &failure)
	assert.Equal(t, "ROOM_NOT_FOUND", failure.Code)

	c.send(network.MsgTypeCreateRoom, network.CreateRoomRequest{Name: " "})
	c.expect(network.MsgTypeError, &failure)
	assert.Equal(t, "EMPTY_NAME", failure.Code)

	require.NoError(t, c.conn.Send(network.MsgTypeCreateRoom, []byte("{")))
	c.expect(network.MsgTypeError, &failure)
	assert.Equal(t, codeBadRequest, failure.Code)

	require.NoError(t, c.conn.Send(999, nil))
	c.expect(network.MsgTypeError, &failure)
	assert.Equal(t, codeBadRequest, failure.Code)
}

func TestGateway_LeaveStopsUpdates(t *testing.T) {
	gs, url := newTestGateway(t)
	alice := dial(t, url, "A")
	alice.expect(network.MsgTypeSession, nil)

	alice.send(network.MsgTypeCreateRoom, network.CreateRoomRequest{Name: "Alice"})
	alice.expectRoom(func(r *models.Room) bool { return true })
	require.Eventually(t, func() bool { return gs.Sessions().RoomCount() == 1 }, time.Second, 5*time.Millisecond)

	alice.send(network.MsgTypeLeaveRoom, nil)
	require.Eventually(t, func() bool { return gs.Sessions().RoomCount() == 0 }, time.Second, 5*time.Millisecond)

	var failure network.ErrorResponse
	alice.send(network.MsgTypeStartGame, nil)
	alice.expect(network.MsgTypeError, &failure)
	assert.Equal(t, "PLAYER_NOT_IN_ROOM", failure.Code)
}

func TestGateway_Heartbeat(t *testing.T) {
	_, url := newTestGateway(t)
	c := dial(t, url, "A")
	c.expect(network.MsgTypeSession, nil)
	c.send(network.MsgTypeHeartbeat, nil)
	c.expect(network.MsgTypeHeartbeat, nil)
}
