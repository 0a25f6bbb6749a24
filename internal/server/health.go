package server

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// HealthStatus represents the overall health of the system
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// ComponentStatus represents the health of an individual component
type ComponentStatus string

const (
	ComponentStatusUp       ComponentStatus = "up"
	ComponentStatusDown     ComponentStatus = "down"
	ComponentStatusDegraded ComponentStatus = "degraded"
)

// Health is the /health document.
type Health struct {
	Status     HealthStatus               `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
	Components map[string]ComponentHealth `json:"components"`
}

type ComponentHealth struct {
	Status    ComponentStatus `json:"status"`
	Message   string          `json:"message,omitempty"`
	LatencyMs float64         `json:"latency_ms,omitempty"`
}

// Latency above these thresholds marks a component degraded.
const (
	dbSlow      = time.Second
	storageSlow = 2 * time.Second
	probeLimit  = 5 * time.Second
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := s.checkHealth(r.Context())

	statusCode := http.StatusOK
	if health.Status == HealthStatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}
	writeJSON(w, statusCode, health)
}

// handleReady is the readiness probe: the database must answer.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if s.db == nil || s.db.PingContext(ctx) != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":  "not_ready",
			"message": "database unavailable",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

func (s *Server) checkHealth(ctx context.Context) Health {
	health := Health{
		Timestamp:  time.Now().UTC(),
		Version:    s.cfg.Version,
		Components: make(map[string]ComponentHealth, 2),
	}

	health.Components["database"] = s.probe(ctx, "database", dbSlow, func(ctx context.Context) error {
		if s.db == nil {
			return errNotConfigured
		}
		return s.db.PingContext(ctx)
	})

	storageName := "storage"
	if s.storage != nil {
		storageName = s.storage.Name()
	}
	health.Components["storage"] = s.probe(ctx, storageName, storageSlow, func(ctx context.Context) error {
		if s.storage == nil {
			return errNotConfigured
		}
		return s.storage.Ping(ctx)
	})

	health.Status = determineOverallHealth(health.Components)
	return health
}

var errNotConfigured = errors.New("not configured")

// probe times check and classifies the outcome.
func (s *Server) probe(ctx context.Context, name string, slow time.Duration, check func(context.Context) error) ComponentHealth {
	ctx, cancel := context.WithTimeout(ctx, probeLimit)
	defer cancel()

	start := time.Now()
	err := check(ctx)
	latency := time.Since(start)

	if err != nil {
		s.log.Warn(ctx, "health check failed", "component", name, "err", err)
		return ComponentHealth{
			Status:  ComponentStatusDown,
			Message: name + " unreachable",
		}
	}

	ch := ComponentHealth{
		Status:    ComponentStatusUp,
		Message:   name + " healthy",
		LatencyMs: float64(latency.Microseconds()) / 1000,
	}
	if latency > slow {
		ch.Status = ComponentStatusDegraded
		ch.Message = name + " latency high"
	}
	return ch
}

// determineOverallHealth: any component down is unhealthy, any degraded is
// degraded.
func determineOverallHealth(components map[string]ComponentHealth) HealthStatus {
	var down, degraded int
	for _, c := range components {
		switch c.Status {
		case ComponentStatusDown:
			down++
		case ComponentStatusDegraded:
			degraded++
		}
	}

	if down > 0 {
		return HealthStatusUnhealthy
	}
	if degraded > 0 {
		return HealthStatusDegraded
	}
	return HealthStatusHealthy
}
