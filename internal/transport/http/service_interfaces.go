package http

import (
	"context"

	"quotepulse/internal/services"
)

// AnalysisServiceInterface defines the quote analysis operations used by the handlers
type AnalysisServiceInterface interface {
	Analyze(ctx context.Context, quote string) (*services.AnalysisReport, error)
}

// TodayServiceInterface defines the snapshot operation behind /api/today
type TodayServiceInterface interface {
	Snapshot(ctx context.Context, force bool) *services.Snapshot
}

// HealthServiceInterface defines the health operations used by HealthHandler
type HealthServiceInterface interface {
	HealthCheck(ctx context.Context) services.HealthStatus
	ReadinessCheck(ctx context.Context) services.HealthStatus
	LivenessCheck(ctx context.Context) services.HealthStatus
	Version() map[string]interface{}
}
