package app

import (
	"time"

	"github.com/chesschat/coach-backend/internal/platform/logger"
	"github.com/chesschat/coach-backend/internal/utils"
)

type Config struct {
	HTTPAddr string

	EngineBinary       string
	EnginePoolSize     int
	EngineHashMB       int
	EngineThreads      int
	EngineReadyTimeout time.Duration

	IngestDeadline  time.Duration
	PositionTimeout time.Duration
	CacheTTL        time.Duration
	CacheBackend    string // "memory" or "redis"
	PruneInterval   time.Duration
	ShadowMode      bool

	TaxonomyPath string
	Environment  string
	Version      string
}

func LoadConfig(log *logger.Logger) Config {
	return Config{
		HTTPAddr: utils.GetEnv("HTTP_ADDR", ":8080", log),

		EngineBinary:       utils.GetEnv("ENGINE_BINARY", "stockfish", log),
		EnginePoolSize:     utils.GetEnvAsInt("ENGINE_POOL_SIZE", 2, log),
		EngineHashMB:       utils.GetEnvAsInt("ENGINE_HASH_MB", 128, log),
		EngineThreads:      utils.GetEnvAsInt("ENGINE_THREADS", 1, log),
		EngineReadyTimeout: time.Duration(utils.GetEnvAsInt("ENGINE_READY_TIMEOUT_MS", 5000, log)) * time.Millisecond,

		IngestDeadline:  time.Duration(utils.GetEnvAsInt("INGEST_DEADLINE_MS", 12000, log)) * time.Millisecond,
		PositionTimeout: time.Duration(utils.GetEnvAsInt("POSITION_TIMEOUT_MS", 3000, log)) * time.Millisecond,
		CacheTTL:        time.Duration(utils.GetEnvAsInt("CACHE_TTL_SECONDS", 3600, log)) * time.Second,
		CacheBackend:    utils.GetEnv("CACHE_BACKEND", "memory", log),
		PruneInterval:   time.Duration(utils.GetEnvAsInt("CACHE_PRUNE_INTERVAL_SECONDS", 300, log)) * time.Second,
		ShadowMode:      utils.GetEnvAsBool("SHADOW_MODE", false, log),

		TaxonomyPath: utils.GetEnv("TAXONOMY_PATH", "", log),
		Environment:  utils.GetEnv("ENVIRONMENT", "development", log),
		Version:      utils.GetEnv("SERVICE_VERSION", "dev", log),
	}
}
