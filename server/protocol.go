package server

import (
	"encoding/json"
	"fmt"
)

// MessageType 消息类型标签（入站与出站共用一个命名空间）
type MessageType string

const (
	// 客户端 → 服务端
	MsgCharacterTransform MessageType = "CharacterTransform"
	MsgCharacterState     MessageType = "CharacterState"
	MsgChangeGroundColor  MessageType = "ChangeGroundColor"

	// 服务端 → 全部客户端
	MsgChangeGroundColorReceive MessageType = "ChangeGroundColorReceive"
	MsgWaiting                  MessageType = "Waiting"
	MsgGameReady                MessageType = "GameReady"
	MsgGameStart                MessageType = "GameStart"
	MsgGameFinish               MessageType = "GameFinish"
	MsgResult                   MessageType = "Result"

	// 状态复制
	MsgStateSnapshot MessageType = "StateSnapshot"
	MsgStatePatch    MessageType = "StatePatch"
)

// Envelope 线上帧格式：{"type":"...","payload":{...}}
type Envelope struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// CharacterTransformMessage 位置同步
type CharacterTransformMessage struct {
	PositionX float64 `json:"positionX"`
	PositionY float64 `json:"positionY"`
	PositionZ float64 `json:"positionZ"`
}

// CharacterStateMessage 动作状态同步
type CharacterStateMessage struct {
	CharacterState int `json:"characterState"`
}

// ChangeGroundColorMessage 地块染色事件，服务端原样转发
type ChangeGroundColorMessage struct {
	GroundType int    `json:"groundType"`
	Team       int    `json:"team"`
	GroundName string `json:"groundName"`
}

// Empty 阶段通知消息没有负载
type Empty struct{}

// Encode 将负载包装成 Envelope 并序列化
func Encode(t MessageType, payload any) ([]byte, error) {
	if t == "" {
		return nil, fmt.Errorf("encode: empty message type")
	}
	if payload == nil {
		payload = Empty{}
	}
	pb, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", t, err)
	}
	return json.Marshal(Envelope{Type: t, Payload: pb})
}

// DecodeEnvelope 解析入站帧的外层结构
func DecodeEnvelope(b []byte) (Envelope, error) {
	if len(b) == 0 {
		return Envelope{}, fmt.Errorf("%w: empty frame", ErrProtocol)
	}
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("%w: missing type", ErrProtocol)
	}
	return env, nil
}

// DecodePayload 按目标类型解析负载；形状不符即为协议错误
func DecodePayload[T any](env Envelope) (T, error) {
	var out T
	if len(env.Payload) == 0 || string(env.Payload) == "null" {
		return out, fmt.Errorf("%w: empty payload for %s", ErrProtocol, env.Type)
	}
	if err := json.Unmarshal(env.Payload, &out); err != nil {
		return out, fmt.Errorf("%w: %s payload: %v", ErrProtocol, env.Type, err)
	}
	return out, nil
}
