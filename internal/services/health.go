package services

import (
	"context"

	"portfolio/internal/database"
	"portfolio/internal/metrics"
	"portfolio/internal/storage"
)

// HealthResult reports service and storage status
type HealthResult struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Backend string `json:"backend"`
	Error   string `json:"error,omitempty"`
}

// HealthService implements the health check
type HealthService struct {
	gw   *storage.Gateway
	name string
}

// NewHealthService creates a new health service
func NewHealthService(gw *storage.Gateway, name string) *HealthService {
	return &HealthService{gw: gw, name: name}
}

// Check pings the relational store when one is in use and refreshes the
// pool gauges
func (s *HealthService) Check(ctx context.Context) *HealthResult {
	result := &HealthResult{Status: "healthy", Service: s.name, Backend: s.gw.Backend().Name()}

	rb, ok := s.gw.Backend().(*storage.RelationalBackend)
	if !ok {
		return result
	}
	if err := database.Ping(ctx, rb.DB()); err != nil {
		result.Status = "unhealthy"
		result.Error = err.Error()
		return result
	}
	if stats, err := database.Stats(rb.DB()); err == nil {
		metrics.UpdateDBConnections(stats.InUse, stats.Idle)
	}
	return result
}
