package network

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode(t *testing.T) {
	raw, err := Encode(MsgTypeJoinRoom, []byte(`{"room_id":"abc123"}`))
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 101, 0, 20}, raw[:4])

	packet, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, uint16(MsgTypeJoinRoom), packet.MsgID)
	assert.Equal(t, uint16(20), packet.Length)
	assert.Equal(t, `{"room_id":"abc123"}`, string(packet.Data))
}

func TestDecode_IgnoresTrailingBytes(t *testing.T) {
	raw, err := Encode(MsgTypeHeartbeat, []byte("ok"))
	require.NoError(t, err)
	packet, err := Decode(append(raw, 0xFF, 0xFF))
	require.NoError(t, err)
	assert.Equal(t, "ok", string(packet.Data))
}

func TestDecode_Short(t *testing.T) {
	_, err := Decode([]byte{0, 1, 0})
	assert.ErrorIs(t, err, io.ErrShortBuffer)

	_, err = Decode([]byte{0, 1, 0, 5, 'a'})
	assert.ErrorIs(t, err, io.ErrShortBuffer)
}

func TestEncode_TooLarge(t *testing.T) {
	_, err := Encode(MsgTypeRoomState, bytes.Repeat([]byte{'x'}, 0x10000))
	assert.ErrorIs(t, err, ErrPacketTooLarge)
}

func TestWSConnection_RoundTrip(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		ws := NewWSConnection(conn)
		defer ws.Close()
		ws.SetHeartbeat(time.Second)
		for {
			packet, err := ws.ReadPacket()
			if err != nil {
				return
			}
			if err := ws.Send(packet.MsgID+1, packet.Data); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	client := NewWSConnection(conn)
	defer client.Close()

	require.NoError(t, client.Send(MsgTypeSetReady, []byte(`{"ready":true}`)))
	packet, err := client.ReadPacket()
	require.NoError(t, err)
	assert.Equal(t, uint16(MsgTypeStartGame), packet.MsgID)
	assert.Equal(t, `{"ready":true}`, string(packet.Data))
}
