package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-gl/mathgl/mgl32"

	"teamarena/protocol"
)

// AdminRoutes 管理与监控接口，以及观战 WebSocket
func (s *Server) AdminRoutes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/metrics", s.handleMetrics)
	r.Route("/admin", func(r chi.Router) {
		r.Get("/world", s.handleWorld)
		r.Get("/config", s.handleConfig)
		r.Post("/sound", s.handleSound)
	})
	r.Get("/ws/spectate", s.HandleSpectate)
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// GET /healthz
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "run_id": s.runID})
}

// GET /metrics 输出运行指标
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"run_id":     s.runID,
		"tick":       s.TickSeq(),
		"clients":    s.metrics.Active(),
		"spectators": s.spectators.Len(),
		"metrics":    s.metrics.Snapshot(),
	})
}

// GET /admin/world 最近一次广播的快照与名单
func (s *Server) handleWorld(w http.ResponseWriter, r *http.Request) {
	snap := s.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"tick":   s.TickSeq(),
		"state":  snap,
		"roster": snap.Roster(),
	})
}

// GET /admin/config 当前生效的配置（不含 Redis 连接串）
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	c := s.cfg
	writeJSON(w, http.StatusOK, map[string]any{
		"game_addr":              c.GameAddr,
		"admin_addr":             c.AdminAddr,
		"tick_period":            c.TickPeriod.String(),
		"ticks_per_second":       c.TicksPerSecond(),
		"send_timeout":           c.SendTimeout.String(),
		"name_max_width":         c.NameMaxWidth,
		"default_name":           c.DefaultName,
		"fatal_on_unexpected_io": c.FatalOnUnexpectedIO,
		"control_rate":           c.ControlRate,
		"control_burst":          c.ControlBurst,
		"log_level":              c.LogLevel,
		"presence":               c.RedisURL != "",
	})
}

type soundRequest struct {
	Effect string  `json:"effect"`
	X      float32 `json:"x"`
	Y      float32 `json:"y"`
}

// POST /admin/sound {"effect":"gun","x":0,"y":0} 下一个 Tick 广播一次音效
func (s *Server) handleSound(w http.ResponseWriter, r *http.Request) {
	var body soundRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	effect, ok := protocol.ParseSoundEffect(body.Effect)
	if !ok {
		http.Error(w, "unknown effect", http.StatusBadRequest)
		return
	}
	if !s.QueueSound(protocol.PlaySound{Effect: effect, Position: mgl32.Vec2{body.X, body.Y}}) {
		http.Error(w, "sound queue full", http.StatusServiceUnavailable)
		return
	}
	Log.Infof("admin queued sound %s at (%.1f, %.1f)", body.Effect, body.X, body.Y)
	writeJSON(w, http.StatusAccepted, map[string]any{"ok": true})
}
