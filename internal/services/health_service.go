package services

import (
	"context"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"time"
)

// HealthService provides health check functionality
type HealthService struct {
	version   string
	buildTime string
	buildID   string
	startTime time.Time
	logger    *slog.Logger

	mu     sync.RWMutex
	checks map[string]ReadinessProbe
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                   `json:"status"`
	Timestamp time.Time                `json:"timestamp"`
	Version   string                   `json:"version"`
	Runtime   map[string]interface{}   `json:"runtime,omitempty"`
	Services  map[string]ServiceHealth `json:"services,omitempty"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string `json:"status"` // ready, degraded, not_ready
	Message string `json:"message,omitempty"`
}

// ReadinessProbe reports the health of one dependency.
type ReadinessProbe func(ctx context.Context) ServiceHealth

// Health states reported by probes.
const (
	StatusReady    = "ready"
	StatusDegraded = "degraded"
	StatusNotReady = "not_ready"
)

// NewHealthService creates a new health service with build information
func NewHealthService(version, buildTime, buildID string, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("HealthService initialized",
		slog.String("version", version),
		slog.String("build_time", buildTime),
		slog.String("build_id", buildID))

	return &HealthService{
		version:   version,
		buildTime: buildTime,
		buildID:   buildID,
		startTime: time.Now(),
		logger:    logger,
		checks:    make(map[string]ReadinessProbe),
	}
}

// RegisterCheck adds a named readiness probe, replacing one with the same name.
func (hs *HealthService) RegisterCheck(name string, probe ReadinessProbe) {
	hs.mu.Lock()
	defer hs.mu.Unlock()
	hs.checks[name] = probe
}

// HealthCheck returns overall health status
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	hs.logger.DebugContext(ctx, "HealthCheck: performing health check",
		slog.String("uptime", time.Since(hs.startTime).String()))

	return HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   hs.version,
	}
}

// ReadinessCheck runs every registered probe. Degraded dependencies keep
// the service ready; any not_ready probe makes it not ready.
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	hs.mu.RLock()
	names := make([]string, 0, len(hs.checks))
	probes := make(map[string]ReadinessProbe, len(hs.checks))
	for name, probe := range hs.checks {
		names = append(names, name)
		probes[name] = probe
	}
	hs.mu.RUnlock()
	sort.Strings(names)

	status := HealthStatus{
		Status:    StatusReady,
		Timestamp: time.Now(),
		Version:   hs.version,
		Services:  make(map[string]ServiceHealth, len(names)),
	}

	for _, name := range names {
		result := probes[name](ctx)
		status.Services[name] = result
		if result.Status == StatusNotReady {
			status.Status = StatusNotReady
		}
	}

	if status.Status != StatusReady {
		hs.logger.WarnContext(ctx, "Readiness check failed", slog.Any("services", status.Services))
	}
	return status
}

// LivenessCheck returns liveness status
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    "alive",
		Timestamp: time.Now(),
		Version:   hs.version,
		Runtime: map[string]interface{}{
			"uptime":     time.Since(hs.startTime).Seconds(),
			"go_version": runtime.Version(),
			"goroutines": runtime.NumGoroutine(),
		},
	}
}

// Version returns version information
func (hs *HealthService) Version() map[string]interface{} {
	result := map[string]interface{}{
		"version":      hs.version,
		"go_version":   runtime.Version(),
		"os":           runtime.GOOS,
		"arch":         runtime.GOARCH,
		"uptime":       time.Since(hs.startTime).Seconds(),
		"start_time":   hs.startTime.Format(time.RFC3339),
		"current_time": time.Now().Format(time.RFC3339),
	}

	if hs.buildTime != "" {
		result["build_time"] = hs.buildTime
	}
	if hs.buildID != "" {
		result["build_id"] = hs.buildID
	}

	return result
}

// IntradayProbe reports degraded when no Twelve Data key is configured.
func IntradayProbe(source IntradaySource) ReadinessProbe {
	return func(ctx context.Context) ServiceHealth {
		if !source.HasAPIKey() {
			return ServiceHealth{Status: StatusDegraded, Message: "Twelve Data API key missing; /api/today will fail"}
		}
		return ServiceHealth{Status: StatusReady}
	}
}

// StaticProbe always reports ready with message.
func StaticProbe(message string) ReadinessProbe {
	return func(ctx context.Context) ServiceHealth {
		return ServiceHealth{Status: StatusReady, Message: message}
	}
}
