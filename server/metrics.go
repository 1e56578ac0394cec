package server

import (
	"sync/atomic"
)

// RoomMetrics 记录房间运行期的关键指标（用于监控与调试）
type RoomMetrics struct {
	TickCount        int64 // Tick 次数
	MessagesAccepted int64 // 成功处理的入站消息
	ProtocolErrors   int64 // 负载不合法或类型未知
	UnknownPlayer    int64 // 找不到发送者对应玩家
	DuplicateJoins   int64 // 被拒绝或被顶替的重复加入
	Broadcasts       int64 // 全员广播次数
	SendDropped      int64 // 因会话发送队列满被丢弃的帧
	InboxFullDropped int64 // 因房间收件箱满被丢弃的入站消息
	PhaseTransitions int64
	TotalTickNs      int64 // Tick 累计耗时（纳秒）
}

func (m *RoomMetrics) IncAccepted()         { atomic.AddInt64(&m.MessagesAccepted, 1) }
func (m *RoomMetrics) IncProtocolError()    { atomic.AddInt64(&m.ProtocolErrors, 1) }
func (m *RoomMetrics) IncUnknownPlayer()    { atomic.AddInt64(&m.UnknownPlayer, 1) }
func (m *RoomMetrics) IncDuplicateJoin()    { atomic.AddInt64(&m.DuplicateJoins, 1) }
func (m *RoomMetrics) IncBroadcast()        { atomic.AddInt64(&m.Broadcasts, 1) }
func (m *RoomMetrics) IncSendDropped()      { atomic.AddInt64(&m.SendDropped, 1) }
func (m *RoomMetrics) IncInboxFullDropped() { atomic.AddInt64(&m.InboxFullDropped, 1) }
func (m *RoomMetrics) IncPhaseTransition()  { atomic.AddInt64(&m.PhaseTransitions, 1) }
func (m *RoomMetrics) AddTick(ns int64) {
	atomic.AddInt64(&m.TickCount, 1)
	atomic.AddInt64(&m.TotalTickNs, ns)
}

// Snapshot 返回只读副本，便于 HTTP 输出
func (m *RoomMetrics) Snapshot() map[string]any {
	tick := atomic.LoadInt64(&m.TickCount)
	total := atomic.LoadInt64(&m.TotalTickNs)
	var avgMs float64
	if tick > 0 {
		avgMs = float64(total) / float64(tick) / 1e6
	}
	return map[string]any{
		"tick_count":         tick,
		"messages_accepted":  atomic.LoadInt64(&m.MessagesAccepted),
		"protocol_errors":    atomic.LoadInt64(&m.ProtocolErrors),
		"unknown_player":     atomic.LoadInt64(&m.UnknownPlayer),
		"duplicate_joins":    atomic.LoadInt64(&m.DuplicateJoins),
		"broadcasts":         atomic.LoadInt64(&m.Broadcasts),
		"send_dropped":       atomic.LoadInt64(&m.SendDropped),
		"inbox_full_dropped": atomic.LoadInt64(&m.InboxFullDropped),
		"phase_transitions":  atomic.LoadInt64(&m.PhaseTransitions),
		"avg_tick_ms":        avgMs,
	}
}
