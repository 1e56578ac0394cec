package server

import "errors"

var (
	// ErrDuplicateSession userId 已在房间内
	ErrDuplicateSession = errors.New("duplicate session")
	// ErrUnknownPlayer 消息发送者没有对应的玩家实体
	ErrUnknownPlayer = errors.New("unknown player")
	// ErrProtocol 负载形状或类型不合法
	ErrProtocol = errors.New("protocol error")
	// ErrUnknownMessage 没有注册处理器的消息类型
	ErrUnknownMessage = errors.New("unknown message type")
	// ErrRoomClosed 房间已停止，不再接收命令
	ErrRoomClosed = errors.New("room closed")
)
