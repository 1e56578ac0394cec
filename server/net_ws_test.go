package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T) (*httptest.Server, *RoomManager) {
	t.Helper()
	log := zap.NewNop().Sugar()
	rm := NewRoomManager(DefaultConfig().RoomConfig(), "room-1", RoomDeps{Log: log, Clock: clockwork.NewRealClock()})
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", HandleWS(rm, "room-1", log))
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		srv.Close()
		rm.Close()
	})
	return srv, rm
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?" + query
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// waitFor 读取帧直到出现指定类型
func waitFor(t *testing.T, conn *websocket.Conn, typ MessageType) Envelope {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		require.NoError(t, conn.SetReadDeadline(deadline))
		_, b, err := conn.ReadMessage()
		require.NoError(t, err, "waiting for %s", typ)
		env, err := DecodeEnvelope(b)
		require.NoError(t, err)
		if env.Type == typ {
			return env
		}
	}
}

func writeFrame(t *testing.T, conn *websocket.Conn, b []byte) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, b))
}

func TestHandleWSRequiresUser(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/ws?room=x")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWebSocketGroundColorRelay(t *testing.T) {
	srv, rm := newTestServer(t)

	a := dial(t, srv, "room=arena&user=alice")
	snap := waitFor(t, a, MsgStateSnapshot)
	s, err := DecodePayload[StateSnapshot](snap)
	require.NoError(t, err)
	require.Len(t, s.Players, 1)
	assert.Equal(t, "alice", s.Players[0].UserID)
	assert.Equal(t, 1, s.Players[0].Team)

	b := dial(t, srv, "room=arena&user=bob")
	waitFor(t, b, MsgStateSnapshot)

	room, ok := rm.GetRoom("arena")
	require.True(t, ok)
	assert.Equal(t, 2, room.NumPlayers())

	writeFrame(t, a, []byte(`{"type":"ChangeGroundColor","payload":{"groundType":2,"team":1,"groundName":"Ground_3"}}`))
	for _, c := range []*websocket.Conn{a, b} {
		env := waitFor(t, c, MsgChangeGroundColorReceive)
		assert.JSONEq(t, `{"groundType":2,"team":1,"groundName":"Ground_3"}`, string(env.Payload))
	}
}

func TestWebSocketTransformReplicatesToOthers(t *testing.T) {
	srv, _ := newTestServer(t)
	a := dial(t, srv, "room=arena&user=alice")
	waitFor(t, a, MsgStateSnapshot)
	b := dial(t, srv, "room=arena&user=bob")
	waitFor(t, b, MsgStateSnapshot)

	writeFrame(t, a, frame(t, MsgCharacterTransform, CharacterTransformMessage{PositionX: 1, PositionY: 2, PositionZ: 3}))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		env := waitFor(t, b, MsgStatePatch)
		p, err := DecodePayload[StatePatch](env)
		require.NoError(t, err)
		for _, c := range p.Changes {
			if c.Op == OpPlayerChange && c.UserID == "alice" {
				assert.Equal(t, Vector3{X: 1, Y: 2, Z: 3}, c.Player.Position)
				return
			}
		}
	}
	t.Fatal("no position patch for alice")
}

func TestWebSocketDuplicateUserRejected(t *testing.T) {
	srv, _ := newTestServer(t)
	a := dial(t, srv, "room=arena&user=alice")
	waitFor(t, a, MsgStateSnapshot)

	dup := dial(t, srv, "room=arena&user=alice")
	require.NoError(t, dup.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := dup.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation), "got %v", err)
}

func TestWebSocketDisconnectRemovesPlayerAndEmptyRoomCloses(t *testing.T) {
	srv, rm := newTestServer(t)
	a := dial(t, srv, "room=temp&user=alice")
	waitFor(t, a, MsgStateSnapshot)
	room, ok := rm.GetRoom("temp")
	require.True(t, ok)

	require.NoError(t, a.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")))

	select {
	case <-room.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("empty room was not closed")
	}
	_, ok = rm.GetRoom("temp")
	assert.False(t, ok)
}
