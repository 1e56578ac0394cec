package server

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// 房间生命周期事件名
const (
	EventPhase = "phase"
	EventJoin  = "join"
	EventLeave = "leave"
)

// RoomEvent 发布到事件总线的负载
type RoomEvent struct {
	Room  string    `json:"room"`
	Event string    `json:"event"`
	At    time.Time `json:"at"`
	Data  any       `json:"data,omitempty"`
}

// EventPublisher 房间事件的外部订阅出口；实现必须非阻塞
type EventPublisher interface {
	Publish(ev RoomEvent)
}

// NopPublisher 未配置事件总线时使用
type NopPublisher struct{}

func (NopPublisher) Publish(RoomEvent) {}

// NATSPublisher 将事件发布到 <prefix>.<room>.<event>
type NATSPublisher struct {
	nc     *nats.Conn
	prefix string
	log    *zap.SugaredLogger
}

// ConnectNATS 建立带自动重连的 NATS 连接
func ConnectNATS(cfg NATSConfig, log *zap.SugaredLogger) (*NATSPublisher, error) {
	opts := []nats.Option{
		nats.Name("tileclash"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Warnw("NATS disconnected", "err", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Infow("NATS reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Errorw("NATS error", "err", err)
		}),
	}
	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return &NATSPublisher{nc: nc, prefix: cfg.SubjectPrefix, log: log}, nil
}

// Subject 事件对应的主题
func (p *NATSPublisher) Subject(ev RoomEvent) string {
	return fmt.Sprintf("%s.%s.%s", p.prefix, ev.Room, ev.Event)
}

// Publish 写入客户端缓冲即返回，失败只记日志
func (p *NATSPublisher) Publish(ev RoomEvent) {
	b, err := json.Marshal(ev)
	if err != nil {
		p.log.Errorw("marshal room event failed", "event", ev.Event, "err", err)
		return
	}
	if err := p.nc.Publish(p.Subject(ev), b); err != nil {
		p.log.Warnw("publish room event failed", "room", ev.Room, "event", ev.Event, "err", err)
	}
}

// Close 刷新缓冲后关闭连接
func (p *NATSPublisher) Close() {
	if p.nc == nil {
		return
	}
	_ = p.nc.Drain()
}
