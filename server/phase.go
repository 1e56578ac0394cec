package server

import (
	"fmt"
	"math"
	"time"
)

// Phase 游戏阶段：Waiting → Playing → Result → Waiting 循环
type Phase int

const (
	PhaseWaiting Phase = iota
	PhasePlaying
	PhaseResult
)

func (p Phase) String() string {
	switch p {
	case PhaseWaiting:
		return "waiting"
	case PhasePlaying:
		return "playing"
	case PhaseResult:
		return "result"
	default:
		return "unknown"
	}
}

// countdownOffset 补偿向下取整，让倒计时从 duration+1 秒开始显示
const countdownOffset = time.Second

// PhaseConfig 阶段机的时间参数
type PhaseConfig struct {
	RequiredPlayers int
	ReadyDelay      time.Duration // 人数达标后到开局的等待
	MatchDuration   time.Duration
	FinishGrace     time.Duration // GameFinish 之后展示结果前的缓冲
	ResultDuration  time.Duration
	StartTimer      int  // 开局时 Timer 的初始秒数
	FinishOnce      bool // true 时 GameFinish 只在倒计时首次归零时发送一次
	// ResetOnDrop 为 true 时人数掉出阈值会清零准备计时，
	// 默认保留已累计的时间，人数恢复后继续计时且不重发 GameReady
	ResetOnDrop bool
}

// Validate 拒绝会让阶段机无法运行的参数
func (c PhaseConfig) Validate() error {
	if c.RequiredPlayers <= 0 {
		return fmt.Errorf("required players must be > 0, got %d", c.RequiredPlayers)
	}
	if c.MatchDuration <= 0 {
		return fmt.Errorf("match duration must be > 0, got %s", c.MatchDuration)
	}
	if c.ReadyDelay < 0 || c.FinishGrace < 0 || c.ResultDuration < 0 {
		return fmt.Errorf("ready delay, finish grace and result duration must be non-negative")
	}
	return nil
}

// PhaseMachine 由固定频率的 Tick 驱动，与消息到达无关。
// 不持有锁：只在房间执行协程中调用。
type PhaseMachine struct {
	cfg   PhaseConfig
	state *RoomState
	emit  func(MessageType)

	// OnTransition 可选，阶段切换后回调
	OnTransition func(from, to Phase)

	phase      Phase
	gameTime   time.Duration // Waiting 与 Playing 共用
	resultTime time.Duration
	finishSent bool
}

func NewPhaseMachine(cfg PhaseConfig, state *RoomState, emit func(MessageType)) *PhaseMachine {
	return &PhaseMachine{cfg: cfg, state: state, emit: emit, phase: PhaseWaiting}
}

func (m *PhaseMachine) Phase() Phase                 { return m.phase }
func (m *PhaseMachine) Elapsed() time.Duration       { return m.gameTime }
func (m *PhaseMachine) ResultElapsed() time.Duration { return m.resultTime }
func (m *PhaseMachine) Config() PhaseConfig          { return m.cfg }

// SetConfig 热更新参数，下一次 Tick 生效
func (m *PhaseMachine) SetConfig(cfg PhaseConfig) { m.cfg = cfg }

// Update 每个 Tick 调用一次；三个阶段按固定顺序检查，
// 前一个阶段在本 Tick 内切换后，后一个阶段用同一个 delta 继续推进。
func (m *PhaseMachine) Update(delta time.Duration) {
	m.updateWaiting(delta)
	m.updatePlaying(delta)
	m.updateResult(delta)
}

func (m *PhaseMachine) updateWaiting(delta time.Duration) {
	if m.phase != PhaseWaiting {
		return
	}
	if m.state.Len() != m.cfg.RequiredPlayers {
		// 人数不达标时暂停计时
		if m.cfg.ResetOnDrop {
			m.gameTime = 0
		}
		return
	}
	// 计时从 0 开始的那一帧通知准备
	if m.gameTime == 0 {
		m.emit(MsgGameReady)
	}
	m.gameTime += delta
	if m.gameTime >= m.cfg.ReadyDelay {
		m.setPhase(PhasePlaying)
	}
}

func (m *PhaseMachine) updatePlaying(delta time.Duration) {
	if m.phase != PhasePlaying {
		return
	}
	m.gameTime += delta
	v := countdownValue(m.cfg.MatchDuration, m.gameTime)
	m.state.SetTimer(v)
	if v == 0 && !(m.cfg.FinishOnce && m.finishSent) {
		m.finishSent = true
		m.emit(MsgGameFinish)
	}
	if m.gameTime >= m.cfg.MatchDuration+m.cfg.FinishGrace {
		m.setPhase(PhaseResult)
	}
}

func (m *PhaseMachine) updateResult(delta time.Duration) {
	if m.phase != PhaseResult {
		return
	}
	m.resultTime += delta
	if m.resultTime >= m.cfg.ResultDuration {
		m.setPhase(PhaseWaiting)
	}
}

func (m *PhaseMachine) setPhase(p Phase) {
	from := m.phase
	m.phase = p
	switch p {
	case PhaseWaiting:
		m.gameTime = 0
		m.state.SetTimer(0)
		m.emit(MsgWaiting)
	case PhasePlaying:
		m.gameTime = 0
		m.finishSent = false
		m.state.SetTimer(m.cfg.StartTimer)
		m.emit(MsgGameStart)
	case PhaseResult:
		m.resultTime = 0
		m.emit(MsgResult)
	}
	if m.OnTransition != nil {
		m.OnTransition(from, p)
	}
}

// countdownValue = floor(((duration + 1s) - elapsed) / 1s)，超时后为负数
func countdownValue(duration, elapsed time.Duration) int {
	ms := float64(duration+countdownOffset-elapsed) / float64(time.Millisecond)
	return int(math.Floor(ms / 1000))
}
