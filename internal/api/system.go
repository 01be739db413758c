package api

import (
	"net/http"
)

// handleRefresh runs one on-demand refresh cycle across the directory.
//
// The cycle shares the configured batch deadline with scheduled refreshes.
// A cloud auth failure aborts the cycle and surfaces as 502.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	res, err := s.coordinator.Refresh(r.Context())
	if err != nil {
		writeCloudError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"total":       res.Total,
		"refreshed":   res.Refreshed,
		"stale":       res.Stale,
		"duration_ms": res.Duration.Milliseconds(),
	})
}

// handleSchedulerStatus reports whether the refresh loop is running.
func (s *Server) handleSchedulerStatus(w http.ResponseWriter, _ *http.Request) {
	if s.scheduler == nil {
		writeUnavailable(w, "refresh scheduler is not running")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"paused": s.scheduler.IsPaused(),
	})
}

// handleSchedulerPause suspends the periodic refresh loop.
func (s *Server) handleSchedulerPause(w http.ResponseWriter, _ *http.Request) {
	if s.scheduler == nil {
		writeUnavailable(w, "refresh scheduler is not running")
		return
	}
	s.scheduler.Pause()
	s.logger.Info("refresh scheduler paused via API")
	writeJSON(w, http.StatusOK, map[string]any{"paused": true})
}

// handleSchedulerResume restarts the periodic refresh loop, typically after
// a new API key has been configured.
func (s *Server) handleSchedulerResume(w http.ResponseWriter, _ *http.Request) {
	if s.scheduler == nil {
		writeUnavailable(w, "refresh scheduler is not running")
		return
	}
	s.scheduler.Resume()
	s.logger.Info("refresh scheduler resumed via API")
	writeJSON(w, http.StatusOK, map[string]any{"paused": false})
}

// handleRateLimit reports the remaining cloud request budget in both quota
// windows. Values come from the shared limiter and reflect any quota headers
// the cloud has sent.
func (s *Server) handleRateLimit(w http.ResponseWriter, _ *http.Request) {
	minute, day := s.coordinator.RateLimitStatus()
	writeJSON(w, http.StatusOK, map[string]any{
		"remaining_minute": minute,
		"remaining_day":    day,
	})
}
