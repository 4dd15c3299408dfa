package services

import (
	"time"

	"github.com/chesschat/coach-backend/internal/analysis/cache"
	"github.com/chesschat/coach-backend/internal/engine"
	"github.com/chesschat/coach-backend/internal/platform/logger"
)

const outcomeWindow = 7 * 24 * time.Hour

// HealthReport is the operational snapshot served by the health endpoint.
type HealthReport struct {
	Status         string           `json:"status"`
	Pool           engine.PoolStats `json:"pool"`
	EngineP90Ms    int64            `json:"engine_p90_ms"`
	EngineHealthy  bool             `json:"engine_healthy"`
	Cache          cache.Stats      `json:"cache"`
	RecentOutcomes map[string]int64 `json:"recent_outcomes"`
}

type HealthService interface {
	Report() *HealthReport
}

type healthService struct {
	pool          *engine.Pool
	store         cache.Store
	interventions InterventionService
	log           *logger.Logger
	now           func() time.Time
}

func NewHealthService(pool *engine.Pool, store cache.Store, interventions InterventionService, baseLog *logger.Logger) HealthService {
	return &healthService{
		pool:          pool,
		store:         store,
		interventions: interventions,
		log:           baseLog.With("service", "HealthService"),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (s *healthService) Report() *HealthReport {
	snap := s.pool.Health().Snapshot()
	report := &HealthReport{
		Status:         "ok",
		Pool:           s.pool.Stats(),
		EngineP90Ms:    snap.P90.Milliseconds(),
		EngineHealthy:  snap.Healthy,
		Cache:          s.store.Stats(),
		RecentOutcomes: map[string]int64{},
	}
	if !snap.Healthy {
		report.Status = "degraded"
	}
	counts, err := s.interventions.RecentOutcomeCounts(s.now().Add(-outcomeWindow))
	if err != nil {
		s.log.Warn("Failed to load recent outcome counts", "error", err)
	} else {
		report.RecentOutcomes = counts
	}
	return report
}
