package world

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// HealthStatus summarises whether the client is keeping up with the server.
type HealthStatus struct {
	Healthy       bool       `json:"healthy"`
	EngineRunning bool       `json:"engine_running"`
	Connection    string     `json:"connection"`
	Session       string     `json:"session"`
	ZonesCached   int        `json:"zones_cached"`
	EventsApplied uint64     `json:"events_applied"`
	LastEventTime *time.Time `json:"last_event_time,omitempty"`
	Errors        []string   `json:"errors"`
}

// HealthChecker reports engine health
type HealthChecker struct {
	engine *Engine
}

func NewHealthChecker(engine *Engine) *HealthChecker {
	return &HealthChecker{engine: engine}
}

// Check inspects the latest snapshot. The client is unhealthy while the
// engine is stopped or the event channel is not subscribed.
func (h *HealthChecker) Check() HealthStatus {
	snap := h.engine.Snapshot()

	status := HealthStatus{
		Healthy:       true,
		EngineRunning: !h.engine.Closed(),
		Connection:    snap.Connection.String(),
		Session:       snap.Session.String(),
		ZonesCached:   snap.Zones.Len(),
		EventsApplied: snap.EventsApplied,
		Errors:        []string{},
	}
	if !snap.LastEventAt.IsZero() {
		at := snap.LastEventAt
		status.LastEventTime = &at
	}

	if !status.EngineRunning {
		status.Healthy = false
		status.Errors = append(status.Errors, "world engine stopped")
	}
	if snap.Connection != StateSubscribed {
		status.Healthy = false
		status.Errors = append(status.Errors, "event channel "+snap.Connection.String())
	}

	return status
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	status := h.Check()

	w.Header().Set("Content-Type", "application/json")
	if !status.Healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(status); err != nil {
		log.Error().Err(err).Msg("failed to encode health status")
	}
}
