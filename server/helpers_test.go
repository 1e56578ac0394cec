package server

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu     sync.Mutex
	frames [][]byte
	closed bool
	full   bool
}

func (f *fakeConn) Enqueue(b []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed || f.full {
		return false
	}
	f.frames = append(f.frames, append([]byte(nil), b...))
	return true
}

func (f *fakeConn) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeConn) envelopes(t *testing.T) []Envelope {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Envelope, 0, len(f.frames))
	for _, b := range f.frames {
		env, err := DecodeEnvelope(b)
		require.NoError(t, err)
		out = append(out, env)
	}
	return out
}

func (f *fakeConn) types(t *testing.T) []MessageType {
	t.Helper()
	var out []MessageType
	for _, env := range f.envelopes(t) {
		out = append(out, env.Type)
	}
	return out
}

func (f *fakeConn) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = nil
}

func frame(t *testing.T, typ MessageType, payload any) []byte {
	t.Helper()
	b, err := Encode(typ, payload)
	require.NoError(t, err)
	return b
}

func testPhaseConfig() PhaseConfig {
	return DefaultConfig().Game.PhaseConfig()
}

// newTestRoom 返回未启动协程的房间，测试直接调用 handleCommand/step
func newTestRoom(t *testing.T) *Room {
	t.Helper()
	return NewRoom("test", RoomConfig{Phase: testPhaseConfig(), Duplicate: DuplicateReject}, RoomDeps{})
}

func joinSync(t *testing.T, r *Room, connID string, user PlayerID) (*fakeConn, error) {
	t.Helper()
	fc := &fakeConn{}
	reply := make(chan error, 1)
	r.handleCommand(joinCmd{connID: connID, userID: user, conn: fc, reply: reply})
	select {
	case err := <-reply:
		return fc, err
	case <-time.After(time.Second):
		t.Fatalf("join %s: no reply", user)
		return nil, nil
	}
}

func patchesOf(t *testing.T, envs []Envelope) []StateChange {
	t.Helper()
	var out []StateChange
	for _, env := range envs {
		if env.Type != MsgStatePatch {
			continue
		}
		var p StatePatch
		require.NoError(t, json.Unmarshal(env.Payload, &p))
		out = append(out, p.Changes...)
	}
	return out
}
