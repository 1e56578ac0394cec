package server

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// RoomConfig 单个房间的运行参数
type RoomConfig struct {
	Phase          PhaseConfig
	TicksPerSecond int
	Duplicate      DuplicatePolicy
	InboxSize      int
}

// RoomDeps 房间依赖，零值字段会被替换为默认实现
type RoomDeps struct {
	Log    *zap.SugaredLogger
	Events EventPublisher
	Clock  clockwork.Clock
}

// Room 房间世界：权威状态维护在内存，所有命令与 Tick 在同一个协程中串行执行
type Room struct {
	ID string

	cfg      RoomConfig
	state    *RoomState
	registry *Registry
	router   *Router
	phase    *PhaseMachine
	gateway  *Gateway
	metrics  *RoomMetrics
	events   EventPublisher
	log      *zap.SugaredLogger
	clock    clockwork.Clock

	inbox    chan any
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	tickerStarted bool
	tickSeq       int64

	// 供其他协程读取的只读镜像
	playerCount atomic.Int32
	phaseValue  atomic.Int32

	// OnEmpty 最后一个会话离开时在房间协程中回调
	OnEmpty func(id string)
}

// NewRoom 创建房间，初始化数据结构；需调用 StartTicker 才开始运行
func NewRoom(id string, cfg RoomConfig, deps RoomDeps) *Room {
	if deps.Log == nil {
		deps.Log = zap.NewNop().Sugar()
	}
	if deps.Events == nil {
		deps.Events = NopPublisher{}
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = 256
	}
	if cfg.TicksPerSecond <= 0 {
		cfg.TicksPerSecond = TicksPerSecond
	}

	r := &Room{
		ID:      id,
		cfg:     cfg,
		state:   NewRoomState(),
		router:  NewRouter(),
		metrics: &RoomMetrics{},
		events:  deps.Events,
		log:     deps.Log.With("room", id),
		clock:   deps.Clock,
		inbox:   make(chan any, cfg.InboxSize), // 足够缓冲，避免网络读阻塞影响 Tick
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	r.registry = NewRegistry(r.state, cfg.Duplicate)
	r.gateway = NewGateway(r.registry, r.metrics, r.log)
	r.phase = NewPhaseMachine(cfg.Phase, r.state, func(t MessageType) {
		r.gateway.Broadcast(t, Empty{})
	})
	r.phase.OnTransition = r.onPhaseTransition
	return r
}

// Metrics 房间指标
func (r *Room) Metrics() *RoomMetrics { return r.metrics }

// NumPlayers 当前玩家数（可跨协程读取）
func (r *Room) NumPlayers() int { return int(r.playerCount.Load()) }

// CurrentPhase 当前阶段（可跨协程读取）
func (r *Room) CurrentPhase() Phase { return Phase(r.phaseValue.Load()) }

// Done 房间协程退出后关闭
func (r *Room) Done() <-chan struct{} { return r.done }

// JoinPlayer 请求加入并等待房间协程给出结果
func (r *Room) JoinPlayer(ctx context.Context, connID string, userID PlayerID, conn Conn) error {
	reply := make(chan error, 1)
	if err := r.send(ctx, joinCmd{connID: connID, userID: userID, conn: conn, reply: reply}); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-r.done:
		return ErrRoomClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// OnInput 入站消息不在网络协程中处理，只投递；收件箱满时丢弃
func (r *Room) OnInput(in Input) {
	select {
	case r.inbox <- in:
	case <-r.quit:
	default:
		r.metrics.IncInboxFullDropped()
	}
}

// RequestLeave 请求在房间协程中移除玩家，保证一定生效（房间已停止除外）
func (r *Room) RequestLeave(connID string, consented bool) {
	select {
	case r.inbox <- leaveCmd{connID: connID, consented: consented}:
	case <-r.quit:
	}
}

// Do 在房间协程中执行 fn 并等待完成
func (r *Room) Do(ctx context.Context, fn func(r *Room)) error {
	done := make(chan struct{})
	if err := r.send(ctx, doCmd{fn: fn, done: done}); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-r.done:
		return ErrRoomClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop 结束房间协程，可重复调用
func (r *Room) Stop() {
	r.stopOnce.Do(func() { close(r.quit) })
}

func (r *Room) stopping() bool {
	select {
	case <-r.quit:
		return true
	default:
		return false
	}
}

func (r *Room) send(ctx context.Context, cmd any) error {
	select {
	case r.inbox <- cmd:
		return nil
	case <-r.quit:
		return ErrRoomClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// handleCommand 处理一条收件箱命令，随后刷新复制变更
func (r *Room) handleCommand(cmd any) {
	switch c := cmd.(type) {
	case joinCmd:
		// 房间已在回收中（例如 OnEmpty 刚触发 Stop），不再接收新玩家
		if r.stopping() {
			c.reply <- ErrRoomClosed
			return
		}
		c.reply <- r.handleJoin(c)
	case leaveCmd:
		r.handleLeave(c)
	case Input:
		r.handleInput(c)
		r.flushChanges(nil)
	case doCmd:
		c.fn(r)
		r.flushChanges(nil)
		close(c.done)
	}
}

func (r *Room) handleJoin(c joinCmd) error {
	s, replaced, err := r.registry.Join(c.connID, c.userID, c.conn)
	if err != nil {
		r.metrics.IncDuplicateJoin()
		r.log.Warnw("join rejected", "user", c.userID, "conn", c.connID, "err", err)
		return err
	}
	if replaced != nil {
		r.metrics.IncDuplicateJoin()
		r.log.Infow("session replaced", "user", c.userID, "old_conn", replaced.ConnID, "conn", c.connID)
		if replaced.Conn != nil {
			replaced.Conn.Close()
		}
	}
	p, _ := r.state.Player(c.userID)
	r.log.Infow("player joined", "user", c.userID, "conn", c.connID, "team", p.Team, "players", r.state.Len())
	r.playerCount.Store(int32(r.state.Len()))

	// 新会话先拿全量快照，其他会话收到增量
	r.gateway.Send(s, MsgStateSnapshot, r.state.Snapshot())
	r.flushChanges(s)
	r.publish(EventJoin, map[string]any{"userId": c.userID, "team": p.Team})
	return nil
}

func (r *Room) handleLeave(c leaveCmd) {
	s, ok := r.registry.Leave(c.connID)
	if !ok {
		return
	}
	if s.Conn != nil {
		s.Conn.Close()
	}
	r.log.Infow("player left", "user", s.UserID, "conn", c.connID, "consented", c.consented, "players", r.state.Len())
	r.playerCount.Store(int32(r.state.Len()))
	r.flushChanges(nil)
	r.publish(EventLeave, map[string]any{"userId": s.UserID, "consented": c.consented})

	if r.registry.Len() == 0 && r.OnEmpty != nil {
		r.OnEmpty(r.ID)
	}
}

// handleInput 错误在这里截止：记录、计数、丢弃，不影响房间继续运行
func (r *Room) handleInput(in Input) {
	s, ok := r.registry.Lookup(in.ConnID)
	if !ok {
		r.metrics.IncUnknownPlayer()
		r.log.Debugw("input from unbound connection dropped", "conn", in.ConnID)
		return
	}
	t, err := r.router.Dispatch(r, s, in.Frame)
	switch {
	case err == nil:
		r.metrics.IncAccepted()
	case errors.Is(err, ErrUnknownPlayer):
		r.metrics.IncUnknownPlayer()
		r.log.Debugw("message dropped", "type", t, "user", s.UserID, "err", err)
	case errors.Is(err, ErrProtocol), errors.Is(err, ErrUnknownMessage):
		r.metrics.IncProtocolError()
		r.log.Debugw("message dropped", "type", t, "user", s.UserID, "err", err)
	default:
		r.log.Warnw("message handler failed", "type", t, "user", s.UserID, "err", err)
	}
}

// step 推进一个 Tick
func (r *Room) step(delta time.Duration) {
	start := time.Now()
	r.tickSeq++
	r.phase.Update(delta)
	r.flushChanges(nil)
	r.metrics.AddTick(time.Since(start).Nanoseconds())
}

// flushChanges 将本轮积累的状态变更作为一个增量广播出去
func (r *Room) flushChanges(skip *Session) {
	changes := r.state.TakeChanges()
	if len(changes) == 0 {
		return
	}
	r.gateway.BroadcastExcept(skip, MsgStatePatch, StatePatch{Changes: changes})
}

func (r *Room) onPhaseTransition(from, to Phase) {
	r.phaseValue.Store(int32(to))
	r.metrics.IncPhaseTransition()
	r.log.Infow("phase changed", "from", from.String(), "to", to.String(), "tick", r.tickSeq, "players", r.state.Len())
	r.publish(EventPhase, map[string]any{"from": from.String(), "to": to.String()})
}

func (r *Room) publish(event string, data any) {
	r.events.Publish(RoomEvent{Room: r.ID, Event: event, At: r.clock.Now(), Data: data})
}

// closeSessions 房间停止时关闭全部连接
func (r *Room) closeSessions() {
	for _, s := range r.registry.Sessions() {
		if s.Conn != nil {
			s.Conn.Close()
		}
	}
}
