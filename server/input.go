package server

// 房间收件箱里的命令。网络协程只投递命令，所有状态变化都在房间协程中完成。

// joinCmd 加入请求，结果通过 reply 返回
type joinCmd struct {
	connID string
	userID PlayerID
	conn   Conn
	reply  chan error
}

// leaveCmd 连接断开或主动离开
type leaveCmd struct {
	connID    string
	consented bool
}

// Input 客户端发来的一帧原始消息，在房间协程中解析分发
type Input struct {
	ConnID string
	Frame  []byte
}

// doCmd 在房间协程内执行任意操作（管理接口热更新等）
type doCmd struct {
	fn   func(r *Room)
	done chan struct{}
}
