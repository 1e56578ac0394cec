package server

import "fmt"

// HandlerFunc 处理一条入站消息；只在房间执行协程中调用
type HandlerFunc func(r *Room, s *Session, env Envelope) error

// Router 按消息类型分发到处理器
type Router struct {
	handlers map[MessageType]HandlerFunc
}

// NewRouter 注册默认的三种入站消息
func NewRouter() *Router {
	rt := &Router{handlers: make(map[MessageType]HandlerFunc)}
	rt.Handle(MsgCharacterTransform, (*Room).onCharacterTransform)
	rt.Handle(MsgCharacterState, (*Room).onCharacterState)
	rt.Handle(MsgChangeGroundColor, (*Room).onChangeGroundColor)
	return rt
}

func (rt *Router) Handle(t MessageType, h HandlerFunc) {
	rt.handlers[t] = h
}

// Dispatch 解析并分发；错误只返回给调用方记录，不会向外传播
func (rt *Router) Dispatch(r *Room, s *Session, frame []byte) (MessageType, error) {
	env, err := DecodeEnvelope(frame)
	if err != nil {
		return "", err
	}
	h, ok := rt.handlers[env.Type]
	if !ok {
		return env.Type, fmt.Errorf("%w: %s", ErrUnknownMessage, env.Type)
	}
	return env.Type, h(r, s, env)
}

// 位置同步：玩家不存在时静默忽略
func (r *Room) onCharacterTransform(s *Session, env Envelope) error {
	msg, err := DecodePayload[CharacterTransformMessage](env)
	if err != nil {
		return err
	}
	r.state.SetPosition(s.UserID, Vector3{X: msg.PositionX, Y: msg.PositionY, Z: msg.PositionZ})
	return nil
}

func (r *Room) onCharacterState(s *Session, env Envelope) error {
	msg, err := DecodePayload[CharacterStateMessage](env)
	if err != nil {
		return err
	}
	if !r.state.SetCharacterState(s.UserID, msg.CharacterState) {
		return fmt.Errorf("character state from %s: %w", s.UserID, ErrUnknownPlayer)
	}
	return nil
}

// 地块染色：不校验、不改状态，原样广播
func (r *Room) onChangeGroundColor(_ *Session, env Envelope) error {
	if _, err := DecodePayload[ChangeGroundColorMessage](env); err != nil {
		return err
	}
	r.gateway.Relay(MsgChangeGroundColorReceive, env.Payload)
	return nil
}
