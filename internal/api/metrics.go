package api

import (
	"net/http"
	"runtime"
	"time"
)

// SystemMetrics is the GET /metrics response body.
type SystemMetrics struct {
	Timestamp     string         `json:"timestamp"`
	Version       string         `json:"version"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Runtime       RuntimeMetrics `json:"runtime"`
	WebSocket     WSMetrics      `json:"websocket"`
	Devices       DeviceMetrics  `json:"devices"`
	RateLimit     QuotaMetrics   `json:"rate_limit"`
}

// RuntimeMetrics carries Go runtime gauges.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics counts connected WebSocket clients.
type WSMetrics struct {
	ConnectedClients int `json:"connected_clients"`
}

// DeviceMetrics sizes the directory and the state store. KnownStates can
// lag Total until the first refresh covers every device.
type DeviceMetrics struct {
	Total       int `json:"total"`
	KnownStates int `json:"known_states"`
}

// QuotaMetrics is the remaining cloud request budget in both windows.
type QuotaMetrics struct {
	RemainingMinute int `json:"remaining_minute"`
	RemainingDay    int `json:"remaining_day"`
}

func megabytes(b uint64) float64 {
	return float64(b) / 1024 / 1024
}

// handleMetrics snapshots process and coordinator gauges for scrapers.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	minute, day := s.coordinator.RateLimitStatus()

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: megabytes(memStats.Alloc),
			MemoryTotalMB: megabytes(memStats.TotalAlloc),
			NumGC:         memStats.NumGC,
		},
		Devices: DeviceMetrics{
			Total:       len(s.coordinator.Devices()),
			KnownStates: len(s.coordinator.States()),
		},
		RateLimit: QuotaMetrics{
			RemainingMinute: minute,
			RemainingDay:    day,
		},
	}

	if s.hub != nil {
		metrics.WebSocket = WSMetrics{ConnectedClients: s.hub.ClientCount()}
	}

	writeJSON(w, http.StatusOK, metrics)
}
