package server

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// AdminConfig 可热更新的房间参数；字段为空表示不修改
type AdminConfig struct {
	RequiredPlayers  *int    `json:"requiredPlayers,omitempty"`
	ReadyDelayMs     *int    `json:"readyDelayMs,omitempty"`
	MatchDurationMs  *int    `json:"matchDurationMs,omitempty"`
	FinishGraceMs    *int    `json:"finishGraceMs,omitempty"`
	ResultDurationMs *int    `json:"resultDurationMs,omitempty"`
	StartTimer       *int    `json:"startTimer,omitempty"`
	FinishOnce       *bool   `json:"finishOnce,omitempty"`
	ResetReadyOnDrop *bool   `json:"resetReadyOnDrop,omitempty"`
	DuplicateJoin    *string `json:"duplicateJoin,omitempty"`
}

func adminConfigOf(r *Room) AdminConfig {
	pc := r.phase.Config()
	dup := string(r.registry.policy)
	return AdminConfig{
		RequiredPlayers:  ptr(pc.RequiredPlayers),
		ReadyDelayMs:     ptr(int(pc.ReadyDelay / time.Millisecond)),
		MatchDurationMs:  ptr(int(pc.MatchDuration / time.Millisecond)),
		FinishGraceMs:    ptr(int(pc.FinishGrace / time.Millisecond)),
		ResultDurationMs: ptr(int(pc.ResultDuration / time.Millisecond)),
		StartTimer:       ptr(pc.StartTimer),
		FinishOnce:       ptr(pc.FinishOnce),
		ResetReadyOnDrop: ptr(pc.ResetOnDrop),
		DuplicateJoin:    &dup,
	}
}

// apply 只在房间协程中调用；校验失败时不做任何修改
func (c AdminConfig) apply(r *Room) error {
	pc := r.phase.Config()
	if c.RequiredPlayers != nil {
		pc.RequiredPlayers = *c.RequiredPlayers
	}
	if c.ReadyDelayMs != nil {
		pc.ReadyDelay = ms(*c.ReadyDelayMs)
	}
	if c.MatchDurationMs != nil {
		pc.MatchDuration = ms(*c.MatchDurationMs)
	}
	if c.FinishGraceMs != nil {
		pc.FinishGrace = ms(*c.FinishGraceMs)
	}
	if c.ResultDurationMs != nil {
		pc.ResultDuration = ms(*c.ResultDurationMs)
	}
	if c.StartTimer != nil {
		pc.StartTimer = *c.StartTimer
	}
	if c.FinishOnce != nil {
		pc.FinishOnce = *c.FinishOnce
	}
	if c.ResetReadyOnDrop != nil {
		pc.ResetOnDrop = *c.ResetReadyOnDrop
	}
	if err := pc.Validate(); err != nil {
		return err
	}
	r.phase.SetConfig(pc)
	if c.DuplicateJoin != nil {
		r.registry.SetPolicy(ParseDuplicatePolicy(*c.DuplicateJoin))
	}
	return nil
}

// HandleAdminConfig 提供房间配置的读取与更新（热更新基本规则）
// GET /admin/config?room=room-1  返回当前配置
// POST /admin/config?room=room-1 以 JSON 载荷更新部分字段
func HandleAdminConfig(rm *RoomManager, log *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		room, ok := lookupRoom(w, r, rm)
		if !ok {
			return
		}

		switch r.Method {
		case http.MethodGet:
			var cur AdminConfig
			if err := room.Do(r.Context(), func(rr *Room) { cur = adminConfigOf(rr) }); err != nil {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
			writeJSON(w, http.StatusOK, cur)
		case http.MethodPost:
			var body AdminConfig
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				http.Error(w, "invalid json", http.StatusBadRequest)
				return
			}
			var applyErr error
			if err := room.Do(r.Context(), func(rr *Room) { applyErr = body.apply(rr) }); err != nil {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
			if applyErr != nil {
				http.Error(w, applyErr.Error(), http.StatusBadRequest)
				return
			}
			log.Infow("config updated", "room", room.ID)
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

// HandleMetrics 输出指定房间的运行指标
// GET /metrics?room=room-1
func HandleMetrics(rm *RoomManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		room, ok := lookupRoom(w, r, rm)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"room":    room.ID,
			"players": room.NumPlayers(),
			"phase":   room.CurrentPhase().String(),
			"metrics": room.Metrics().Snapshot(),
		})
	}
}

// HandleRooms GET 列出房间，POST 新建随机 id 的房间
func HandleRooms(rm *RoomManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, rm.ListRooms())
		case http.MethodPost:
			room := rm.CreateRoom()
			writeJSON(w, http.StatusCreated, RoomInfo{ID: room.ID, Players: 0, Phase: PhaseWaiting.String()})
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

func lookupRoom(w http.ResponseWriter, r *http.Request, rm *RoomManager) (*Room, bool) {
	roomID := r.URL.Query().Get("room")
	if roomID == "" {
		roomID = rm.pinned
	}
	room, ok := rm.GetRoom(roomID)
	if !ok {
		http.Error(w, "room not found", http.StatusNotFound)
		return nil, false
	}
	return room, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
