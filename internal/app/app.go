package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/chesschat/coach-backend/internal/analysis/cache"
	"github.com/chesschat/coach-backend/internal/db"
	"github.com/chesschat/coach-backend/internal/engine"
	httpx "github.com/chesschat/coach-backend/internal/http"
	httpH "github.com/chesschat/coach-backend/internal/http/handlers"
	"github.com/chesschat/coach-backend/internal/observability"
	"github.com/chesschat/coach-backend/internal/platform/logger"
	"github.com/chesschat/coach-backend/internal/taxonomy"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Router   *gin.Engine
	Cfg      Config
	Repos    Repos
	Services Services
	Pool     *engine.Pool
	Cache    cache.Store

	cancel       context.CancelFunc
	otelShutdown func(context.Context) error
}

func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg := LoadConfig(log)

	otelShutdown := observability.InitOTel(context.Background(), log, observability.OtelConfig{
		ServiceName: "coach-backend",
		Environment: cfg.Environment,
		Version:     cfg.Version,
	})

	pg, err := db.NewPostgresService(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if err := pg.AutoMigrateAll(); err != nil {
		log.Sync()
		return nil, fmt.Errorf("postgres automigrate: %w", err)
	}
	theDB := pg.DB()

	registry, err := taxonomy.Load(cfg.TaxonomyPath)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("load taxonomy: %w", err)
	}
	log.Info("Taxonomy loaded", "concepts", registry.Len())

	pool := wirePool(log, cfg)
	store, err := wireCache(log, cfg)
	if err != nil {
		log.Sync()
		return nil, err
	}

	reposet := wireRepos(theDB, log)
	serviceset := wireServices(log, cfg, reposet, pool, store, registry)

	router := httpx.NewRouter(httpx.RouterConfig{
		Log:           log,
		IngestHandler: httpH.NewIngestHandler(serviceset.Ingest),
		PlanHandler:   httpH.NewPlanHandler(serviceset.Planner, serviceset.Mastery),
		AdviceHandler: httpH.NewAdviceHandler(serviceset.Interventions),
		HealthHandler: httpH.NewHealthHandler(serviceset.Health),
	})

	return &App{
		Log:          log,
		DB:           theDB,
		Router:       router,
		Cfg:          cfg,
		Repos:        reposet,
		Services:     serviceset,
		Pool:         pool,
		Cache:        store,
		otelShutdown: otelShutdown,
	}, nil
}

// Start launches background work: the periodic cache prune loop.
func (a *App) Start() {
	if a == nil || a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	interval := a.Cfg.PruneInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed := a.Cache.Prune(ctx)
				if removed > 0 {
					a.Log.Debug("Cache prune", "removed", removed)
				}
			}
		}
	}()
}

func (a *App) Run(addr string) error {
	if a == nil || a.Router == nil {
		return fmt.Errorf("app not initialized")
	}
	return a.Router.Run(addr)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.otelShutdown(ctx); err != nil {
			a.Log.Warn("otel shutdown failed", "error", err)
		}
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
