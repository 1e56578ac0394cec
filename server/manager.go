package server

import (
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// RoomInfo 房间列表接口的返回项
type RoomInfo struct {
	ID      string `json:"id"`
	Players int    `json:"players"`
	Phase   string `json:"phase"`
}

// RoomManager 管理多个房间的生命周期；不同房间之间没有共享的可变状态
type RoomManager struct {
	mu    sync.RWMutex
	rooms map[string]*Room

	cfg    RoomConfig
	pinned string // 常驻房间，空了也不回收
	log    *zap.SugaredLogger
	events EventPublisher
	clock  clockwork.Clock
}

func NewRoomManager(cfg RoomConfig, pinned string, deps RoomDeps) *RoomManager {
	if deps.Log == nil {
		deps.Log = zap.NewNop().Sugar()
	}
	return &RoomManager{
		rooms:  make(map[string]*Room),
		cfg:    cfg,
		pinned: pinned,
		log:    deps.Log,
		events: deps.Events,
		clock:  deps.Clock,
	}
}

// GetOrCreateRoom 获取或创建房间，并确保开始 Tick
func (m *RoomManager) GetOrCreateRoom(id string) *Room {
	if id == "" {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[id]
	if !ok {
		r = m.newRoomLocked(id)
	}
	return r
}

// CreateRoom 以随机 id 新建房间
func (m *RoomManager) CreateRoom() *Room {
	m.mu.Lock()
	defer m.mu.Unlock()
	for {
		id := uuid.NewString()
		if _, exists := m.rooms[id]; exists {
			continue
		}
		return m.newRoomLocked(id)
	}
}

// GetRoom 只查找，不创建
func (m *RoomManager) GetRoom(id string) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[id]
	return r, ok
}

// ListRooms 按 id 排序返回全部房间
func (m *RoomManager) ListRooms() []RoomInfo {
	m.mu.RLock()
	out := make([]RoomInfo, 0, len(m.rooms))
	for id, r := range m.rooms {
		out = append(out, RoomInfo{ID: id, Players: r.NumPlayers(), Phase: r.CurrentPhase().String()})
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Close 停止全部房间并等待退出
func (m *RoomManager) Close() {
	m.mu.Lock()
	rooms := make([]*Room, 0, len(m.rooms))
	for id, r := range m.rooms {
		rooms = append(rooms, r)
		delete(m.rooms, id)
	}
	m.mu.Unlock()
	for _, r := range rooms {
		r.Stop()
		<-r.Done()
	}
}

func (m *RoomManager) newRoomLocked(id string) *Room {
	r := NewRoom(id, m.cfg, RoomDeps{Log: m.log, Events: m.events, Clock: m.clock})
	if id != m.pinned {
		r.OnEmpty = m.removeRoom
	}
	m.rooms[id] = r
	r.StartTicker()
	m.log.Infow("room opened", "room", id)
	return r
}

func (m *RoomManager) removeRoom(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rooms[id]; ok {
		r.Stop()
		delete(m.rooms, id)
		m.log.Infow("room closed", "room", id)
	}
}
