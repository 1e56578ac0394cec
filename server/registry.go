package server

import (
	"fmt"
	"strings"
)

// DuplicatePolicy 同一 userId 重复加入时的处理策略
type DuplicatePolicy string

const (
	DuplicateReject  DuplicatePolicy = "reject"
	DuplicateReplace DuplicatePolicy = "replace"
)

// ParseDuplicatePolicy 未知取值按 reject 处理
func ParseDuplicatePolicy(s string) DuplicatePolicy {
	if DuplicatePolicy(strings.ToLower(s)) == DuplicateReplace {
		return DuplicateReplace
	}
	return DuplicateReject
}

// Conn 会话的发送端，由传输层实现
type Conn interface {
	// Enqueue 非阻塞发送，队列满时返回 false
	Enqueue(b []byte) bool
	Close()
}

// Session 一条连接与一个玩家的绑定
type Session struct {
	ConnID string
	UserID PlayerID
	Conn   Conn
}

// Registry 维护连接 ↔ 玩家映射，并把加入/离开转换为玩家生命周期
type Registry struct {
	state  *RoomState
	policy DuplicatePolicy
	byConn map[string]*Session
	byUser map[PlayerID]*Session
}

func NewRegistry(state *RoomState, policy DuplicatePolicy) *Registry {
	return &Registry{
		state:  state,
		policy: policy,
		byConn: make(map[string]*Session),
		byUser: make(map[PlayerID]*Session),
	}
}

// Join 绑定连接并创建玩家。
// reject 策略下重复 userId 返回 ErrDuplicateSession；
// replace 策略下返回被顶替的旧会话（由调用方关闭），玩家状态保持不变。
func (g *Registry) Join(connID string, userID PlayerID, conn Conn) (s *Session, replaced *Session, err error) {
	if _, ok := g.byConn[connID]; ok {
		return nil, nil, fmt.Errorf("join %s: connection %s already bound: %w", userID, connID, ErrDuplicateSession)
	}
	if old, ok := g.byUser[userID]; ok {
		if g.policy != DuplicateReplace {
			return nil, nil, fmt.Errorf("join %s: %w", userID, ErrDuplicateSession)
		}
		delete(g.byConn, old.ConnID)
		replaced = old
	}
	s = &Session{ConnID: connID, UserID: userID, Conn: conn}
	g.byConn[connID] = s
	g.byUser[userID] = s
	if replaced == nil {
		g.state.AddPlayer(userID)
	}
	return s, replaced, nil
}

// Leave 移除连接对应的玩家；连接不存在时什么也不做
func (g *Registry) Leave(connID string) (*Session, bool) {
	s, ok := g.byConn[connID]
	if !ok {
		return nil, false
	}
	delete(g.byConn, connID)
	delete(g.byUser, s.UserID)
	g.state.RemovePlayer(s.UserID)
	return s, true
}

// Lookup 按连接查找会话
func (g *Registry) Lookup(connID string) (*Session, bool) {
	s, ok := g.byConn[connID]
	return s, ok
}

// Sessions 当前全部会话
func (g *Registry) Sessions() []*Session {
	out := make([]*Session, 0, len(g.byConn))
	for _, s := range g.byConn {
		out = append(out, s)
	}
	return out
}

func (g *Registry) Len() int { return len(g.byConn) }

// SetPolicy 运行时调整重复加入策略
func (g *Registry) SetPolicy(p DuplicatePolicy) { g.policy = p }
