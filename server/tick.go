package server

import "time"

const (
	// TicksPerSecond 默认推进频率（20 TPS）
	TicksPerSecond = 20
)

func tickInterval(tps int) time.Duration {
	return time.Second / time.Duration(tps)
}

// StartTicker 启动房间协程：收件箱命令与 Tick 在同一个 select 中串行处理
func (r *Room) StartTicker() {
	if r.tickerStarted {
		return
	}
	r.tickerStarted = true
	go r.run()
}

func (r *Room) run() {
	defer close(r.done)
	defer r.closeSessions()

	ticker := r.clock.NewTicker(tickInterval(r.cfg.TicksPerSecond))
	defer ticker.Stop()
	last := r.clock.Now()

	for {
		// quit 优先于收件箱，停止后不再处理排队的命令
		if r.stopping() {
			r.log.Infow("room stopped", "tick", r.tickSeq)
			return
		}
		select {
		case <-r.quit:
			r.log.Infow("room stopped", "tick", r.tickSeq)
			return
		case cmd := <-r.inbox:
			r.handleCommand(cmd)
		case <-ticker.Chan():
			// delta 取房间时钟的实际间隔，阶段计时只看累计 delta
			now := r.clock.Now()
			r.step(now.Sub(last))
			last = now
		}
	}
}
