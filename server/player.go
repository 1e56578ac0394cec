package server

// PlayerID 玩家唯一标识（即客户端 userId）
type PlayerID string

// Vector3 三维坐标，服务端信任客户端上报值
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// PlayerState 为复制给客户端的玩家视图
type PlayerState struct {
	UserID         string  `json:"userId"`
	CharacterState int     `json:"characterState"`
	Position       Vector3 `json:"position"`
	Team           int     `json:"team"`
}

// Player 房间内的玩家实体（服务端权威状态）
type Player struct {
	ID             PlayerID
	Position       Vector3
	CharacterState int // 移动动作枚举（idle/walk/run/jump...），服务端只做转发
	Team           int // 加入时分配，之后不再变化
}

func (p *Player) view() PlayerState {
	return PlayerState{
		UserID:         string(p.ID),
		CharacterState: p.CharacterState,
		Position:       p.Position,
		Team:           p.Team,
	}
}
