package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomStateTeamIsPlayerCountPlusOne(t *testing.T) {
	s := NewRoomState()
	assert.Equal(t, 1, s.AddPlayer("a").Team)
	assert.Equal(t, 2, s.AddPlayer("b").Team)
	assert.Equal(t, 3, s.AddPlayer("c").Team)

	require.True(t, s.RemovePlayer("a"))
	b, _ := s.Player("b")
	c, _ := s.Player("c")
	assert.Equal(t, 2, b.Team, "teams are not renumbered on leave")
	assert.Equal(t, 3, c.Team)

	// 离开后人数为 2，新玩家拿到 3
	assert.Equal(t, 3, s.AddPlayer("d").Team)
}

func TestRoomStateNewPlayerStartsAtOrigin(t *testing.T) {
	s := NewRoomState()
	p := s.AddPlayer("a")
	assert.Equal(t, Vector3{}, p.Position)
	assert.Equal(t, 0, p.CharacterState)
}

func TestRoomStatePlayersKeepJoinOrder(t *testing.T) {
	s := NewRoomState()
	for _, id := range []PlayerID{"z", "a", "m"} {
		s.AddPlayer(id)
	}
	s.RemovePlayer("a")
	var ids []PlayerID
	for _, p := range s.Players() {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []PlayerID{"z", "m"}, ids)
}

func TestRoomStateMutationsOnMissingPlayer(t *testing.T) {
	s := NewRoomState()
	assert.False(t, s.SetPosition("ghost", Vector3{X: 1}))
	assert.False(t, s.SetCharacterState("ghost", 3))
	assert.False(t, s.RemovePlayer("ghost"))
	assert.Equal(t, 0, s.Len())
	assert.Empty(t, s.TakeChanges())
}

func TestRoomStateJournal(t *testing.T) {
	s := NewRoomState()
	s.AddPlayer("a")
	s.SetPosition("a", Vector3{X: 1, Y: 2, Z: 3})
	s.SetCharacterState("a", 4)
	s.SetTimer(60)
	s.SetTimer(60) // 未变化不记录
	s.RemovePlayer("a")

	changes := s.TakeChanges()
	require.Len(t, changes, 5)
	assert.Equal(t, OpPlayerAdd, changes[0].Op)
	assert.Equal(t, OpPlayerChange, changes[1].Op)
	assert.Equal(t, Vector3{X: 1, Y: 2, Z: 3}, changes[1].Player.Position)
	assert.Equal(t, 4, changes[2].Player.CharacterState)
	assert.Equal(t, OpTimer, changes[3].Op)
	assert.Equal(t, 60, changes[3].Timer.Value)
	assert.Equal(t, OpPlayerRemove, changes[4].Op)
	assert.Equal(t, "a", changes[4].UserID)

	assert.Empty(t, s.TakeChanges())
}

func TestRoomStateSnapshot(t *testing.T) {
	s := NewRoomState()
	s.AddPlayer("a")
	s.AddPlayer("b")
	s.SetPosition("b", Vector3{X: 5})
	s.SetTimer(42)

	snap := s.Snapshot()
	require.Len(t, snap.Players, 2)
	b, ok := snap.Player("b")
	require.True(t, ok)
	assert.Equal(t, PlayerState{UserID: "b", Position: Vector3{X: 5}, Team: 2}, b)
	assert.Equal(t, 42, snap.Timer.Value)
}

func TestRoomStateSnapshotKeepsJoinOrder(t *testing.T) {
	s := NewRoomState()
	for _, id := range []PlayerID{"zed", "amy", "mia", "bo"} {
		s.AddPlayer(id)
	}
	s.RemovePlayer("mia")

	var ids []string
	for _, p := range s.Snapshot().Players {
		ids = append(ids, p.UserID)
	}
	assert.Equal(t, []string{"zed", "amy", "bo"}, ids)
}
