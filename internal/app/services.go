package app

import (
	"fmt"

	"github.com/chesschat/coach-backend/internal/analysis/cache"
	"github.com/chesschat/coach-backend/internal/engine"
	"github.com/chesschat/coach-backend/internal/platform/logger"
	"github.com/chesschat/coach-backend/internal/services"
	"github.com/chesschat/coach-backend/internal/taxonomy"
)

type Services struct {
	Extractor     services.ExtractorService
	Mastery       services.MasteryService
	Planner       services.PlannerService
	Interventions services.InterventionService
	Ingest        services.IngestService
	Health        services.HealthService
}

func wireServices(log *logger.Logger, cfg Config, reposet Repos, pool *engine.Pool, store cache.Store, registry *taxonomy.Registry) Services {
	extractor := services.NewExtractorService(registry, log)
	mastery := services.NewMasteryService(reposet.ConceptStates, log)
	planner := services.NewPlannerService(reposet.ConceptStates, registry, log)
	interventions := services.NewInterventionService(reposet.Interventions, reposet.GameEvents, registry, log)
	ingest := services.NewIngestService(services.IngestConfig{
		Deadline:        cfg.IngestDeadline,
		PositionTimeout: cfg.PositionTimeout,
		CacheTTL:        cfg.CacheTTL,
		ShadowMode:      cfg.ShadowMode,
	}, pool, store, extractor, mastery, interventions, reposet.GameEvents, log)
	health := services.NewHealthService(pool, store, interventions, log)

	return Services{
		Extractor:     extractor,
		Mastery:       mastery,
		Planner:       planner,
		Interventions: interventions,
		Ingest:        ingest,
		Health:        health,
	}
}

func wirePool(log *logger.Logger, cfg Config) *engine.Pool {
	engineCfg := engine.Config{
		BinaryPath:   cfg.EngineBinary,
		HashMB:       cfg.EngineHashMB,
		Threads:      cfg.EngineThreads,
		ReadyTimeout: cfg.EngineReadyTimeout,
	}
	spawn := func() (engine.Handle, error) {
		return engine.Spawn(engineCfg, log)
	}
	return engine.NewPool(cfg.EnginePoolSize, spawn, log)
}

func wireCache(log *logger.Logger, cfg Config) (cache.Store, error) {
	switch cfg.CacheBackend {
	case "redis":
		store, err := cache.NewRedis(log)
		if err != nil {
			return nil, fmt.Errorf("init redis cache: %w", err)
		}
		return store, nil
	case "memory", "":
		return cache.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.CacheBackend)
	}
}
