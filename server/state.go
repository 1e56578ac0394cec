package server

// ChangeOp 复制变更的种类
type ChangeOp string

const (
	OpPlayerAdd    ChangeOp = "add"
	OpPlayerChange ChangeOp = "change"
	OpPlayerRemove ChangeOp = "remove"
	OpTimer        ChangeOp = "timer"
)

// TimerState 倒计时的复制视图
type TimerState struct {
	Value int `json:"value"`
}

// StateChange 一条增量变更；add/change 携带完整玩家视图，幂等
type StateChange struct {
	Op     ChangeOp     `json:"op"`
	UserID string       `json:"userId,omitempty"`
	Player *PlayerState `json:"player,omitempty"`
	Timer  *TimerState  `json:"timer,omitempty"`
}

// StatePatch 一次刷新中积累的全部变更
type StatePatch struct {
	Changes []StateChange `json:"changes"`
}

// StateSnapshot 完整房间状态，新会话加入时下发；玩家按加入顺序排列
type StateSnapshot struct {
	Players []PlayerState `json:"players"`
	Timer   TimerState    `json:"timer"`
}

// Player 按 userId 查找快照中的玩家
func (s StateSnapshot) Player(id string) (PlayerState, bool) {
	for _, p := range s.Players {
		if p.UserID == id {
			return p, true
		}
	}
	return PlayerState{}, false
}

// RoomState 房间聚合根：玩家表 + 倒计时。
// 只能在房间自己的执行协程里读写，所有写操作都会记入变更日志。
type RoomState struct {
	players map[PlayerID]*Player
	order   []PlayerID // 加入顺序
	timer   int
	changes []StateChange
}

func NewRoomState() *RoomState {
	return &RoomState{players: make(map[PlayerID]*Player)}
}

// Len 当前玩家数
func (s *RoomState) Len() int { return len(s.players) }

// Player 返回玩家副本
func (s *RoomState) Player(id PlayerID) (Player, bool) {
	p, ok := s.players[id]
	if !ok {
		return Player{}, false
	}
	return *p, true
}

// Players 按加入顺序返回玩家副本
func (s *RoomState) Players() []Player {
	out := make([]Player, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.players[id])
	}
	return out
}

// TimerValue 当前倒计时秒数
func (s *RoomState) TimerValue() int { return s.timer }

// AddPlayer 创建玩家：坐标归零，队伍号 = 当前人数 + 1
func (s *RoomState) AddPlayer(id PlayerID) Player {
	p := &Player{ID: id, Team: len(s.players) + 1}
	s.players[id] = p
	s.order = append(s.order, id)
	s.record(StateChange{Op: OpPlayerAdd, UserID: string(id), Player: ptr(p.view())})
	return *p
}

// RemovePlayer 删除玩家，不重排其他玩家的队伍号
func (s *RoomState) RemovePlayer(id PlayerID) bool {
	if _, ok := s.players[id]; !ok {
		return false
	}
	delete(s.players, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.record(StateChange{Op: OpPlayerRemove, UserID: string(id)})
	return true
}

// SetPosition 覆盖位置；玩家不存在时返回 false
func (s *RoomState) SetPosition(id PlayerID, pos Vector3) bool {
	p, ok := s.players[id]
	if !ok {
		return false
	}
	p.Position = pos
	s.record(StateChange{Op: OpPlayerChange, UserID: string(id), Player: ptr(p.view())})
	return true
}

// SetCharacterState 覆盖动作状态；玩家不存在时返回 false
func (s *RoomState) SetCharacterState(id PlayerID, state int) bool {
	p, ok := s.players[id]
	if !ok {
		return false
	}
	p.CharacterState = state
	s.record(StateChange{Op: OpPlayerChange, UserID: string(id), Player: ptr(p.view())})
	return true
}

// SetTimer 只有数值变化时才产生复制变更
func (s *RoomState) SetTimer(v int) {
	if s.timer == v {
		return
	}
	s.timer = v
	s.record(StateChange{Op: OpTimer, Timer: &TimerState{Value: v}})
}

// Snapshot 生成完整状态
func (s *RoomState) Snapshot() StateSnapshot {
	snap := StateSnapshot{
		Players: make([]PlayerState, 0, len(s.order)),
		Timer:   TimerState{Value: s.timer},
	}
	for _, id := range s.order {
		snap.Players = append(snap.Players, s.players[id].view())
	}
	return snap
}

// TakeChanges 取出并清空变更日志
func (s *RoomState) TakeChanges() []StateChange {
	out := s.changes
	s.changes = nil
	return out
}

func (s *RoomState) record(c StateChange) {
	s.changes = append(s.changes, c)
}

func ptr[T any](v T) *T { return &v }
