package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 5 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 25 * time.Second
	maxMessageSize = 1 << 16
	sendQueueSize  = 64
	joinTimeout    = 5 * time.Second
)

// ClientConn 负责发送（写）数据到客户端的轻量包装
type ClientConn struct {
	ws *websocket.Conn

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func NewClientConn(ws *websocket.Conn) *ClientConn {
	return &ClientConn{
		ws:   ws,
		send: make(chan []byte, sendQueueSize),
	}
}

// Enqueue 将要发送的消息压入队列（非阻塞，满则丢弃）
func (c *ClientConn) Enqueue(b []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- b:
		return true
	default:
		// 为了实时性，丢弃（防止阻塞 Tick）
		return false
	}
}

// Close 关闭发送队列，写协程写完剩余消息后关闭连接
func (c *ClientConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// writePump 独立协程，负责从 send 队列写出到 WS，并定时发送 ping
func (c *ClientConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump 读取客户端消息，原样投递给房间；解析在房间协程中完成
func (c *ClientConn) readPump(room *Room, connID string, log *zap.SugaredLogger) {
	consented := false
	// 读泵退出时，通知房间在房间协程中移除该玩家
	defer func() {
		room.RequestLeave(connID, consented)
		_ = c.ws.Close()
	}()
	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			consented = websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
			if !consented && websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debugw("read error", "conn", connID, "err", err)
			}
			return
		}
		room.OnInput(Input{ConnID: connID, Frame: payload})
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// 允许所有来源；跨域策略由外层 CORS 配置控制
		return true
	},
}

// HandleWS WebSocket 接入：/ws?room=room-1&user=alice
func HandleWS(rm *RoomManager, defaultRoom string, log *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := r.URL.Query().Get("room")
		if roomID == "" {
			roomID = defaultRoom
		}
		userID := r.URL.Query().Get("user")
		if userID == "" {
			http.Error(w, "missing user query", http.StatusBadRequest)
			return
		}

		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warnw("upgrade error", "remote", r.RemoteAddr, "err", err)
			return
		}

		connID := uuid.NewString()
		client := NewClientConn(ws)
		room, err := joinRoom(r.Context(), rm, roomID, connID, PlayerID(userID), client)
		if err != nil {
			log.Infow("join refused", "room", roomID, "user", userID, "err", err)
			code := websocket.CloseInternalServerErr
			if errors.Is(err, ErrDuplicateSession) {
				code = websocket.ClosePolicyViolation
			}
			_ = ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(code, err.Error()), time.Now().Add(writeWait))
			_ = ws.Close()
			return
		}
		log.Infow("websocket connected", "room", roomID, "user", userID, "conn", connID, "remote", r.RemoteAddr)

		go client.writePump()
		go client.readPump(room, connID, log)
	}
}

// joinRoom 房间可能恰好因为变空而被回收，此时重新获取一次
func joinRoom(ctx context.Context, rm *RoomManager, roomID, connID string, userID PlayerID, conn Conn) (*Room, error) {
	ctx, cancel := context.WithTimeout(ctx, joinTimeout)
	defer cancel()
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		room := rm.GetOrCreateRoom(roomID)
		err = room.JoinPlayer(ctx, connID, userID, conn)
		if !errors.Is(err, ErrRoomClosed) {
			if err != nil {
				return nil, err
			}
			return room, nil
		}
	}
	return nil, err
}
