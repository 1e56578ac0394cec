package server

import (
	"encoding/json"

	"go.uber.org/zap"
)

// Gateway 向房间内所有会话发送消息（发出即忘，无确认、无重试）
type Gateway struct {
	registry *Registry
	metrics  *RoomMetrics
	log      *zap.SugaredLogger
}

func NewGateway(registry *Registry, metrics *RoomMetrics, log *zap.SugaredLogger) *Gateway {
	return &Gateway{registry: registry, metrics: metrics, log: log}
}

// Broadcast 编码一次，投递给全部会话
func (g *Gateway) Broadcast(t MessageType, payload any) {
	b, err := Encode(t, payload)
	if err != nil {
		g.log.Errorw("encode broadcast failed", "type", t, "err", err)
		return
	}
	g.fanout(b, nil)
}

// BroadcastExcept 跳过指定会话（新加入者已拿到全量快照）
func (g *Gateway) BroadcastExcept(skip *Session, t MessageType, payload any) {
	b, err := Encode(t, payload)
	if err != nil {
		g.log.Errorw("encode broadcast failed", "type", t, "err", err)
		return
	}
	g.fanout(b, skip)
}

// Relay 透传：负载字节不做任何修改，只替换类型标签
func (g *Gateway) Relay(t MessageType, payload json.RawMessage) {
	b, err := json.Marshal(Envelope{Type: t, Payload: payload})
	if err != nil {
		g.log.Errorw("encode relay failed", "type", t, "err", err)
		return
	}
	g.fanout(b, nil)
}

// Send 单发给一个会话
func (g *Gateway) Send(s *Session, t MessageType, payload any) {
	b, err := Encode(t, payload)
	if err != nil {
		g.log.Errorw("encode send failed", "type", t, "err", err)
		return
	}
	g.deliver(s, b)
}

func (g *Gateway) fanout(b []byte, skip *Session) {
	g.metrics.IncBroadcast()
	for _, s := range g.registry.Sessions() {
		if s == skip {
			continue
		}
		g.deliver(s, b)
	}
}

func (g *Gateway) deliver(s *Session, b []byte) {
	if s.Conn == nil {
		return
	}
	if !s.Conn.Enqueue(b) {
		// 发送队列满：丢弃，连接稍后会被读泵的超时清理
		g.metrics.IncSendDropped()
	}
}
