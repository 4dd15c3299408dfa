package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/chesschat/coach-backend/internal/http/handlers"
	httpMW "github.com/chesschat/coach-backend/internal/http/middleware"
	"github.com/chesschat/coach-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log *logger.Logger

	IngestHandler *httpH.IngestHandler
	PlanHandler   *httpH.PlanHandler
	AdviceHandler *httpH.AdviceHandler
	HealthHandler *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("coach-backend"))
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS())

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")
	{
		if cfg.IngestHandler != nil {
			api.POST("/games/ingest", cfg.IngestHandler.IngestGame)
		}
		if cfg.PlanHandler != nil {
			api.GET("/users/:userId/practice-plan", cfg.PlanHandler.GetPracticePlan)
			api.POST("/users/:userId/practice/:conceptId/complete", cfg.PlanHandler.CompletePractice)
		}
		if cfg.AdviceHandler != nil {
			api.POST("/advice", cfg.AdviceHandler.RecordAdvice)
		}
	}

	return r
}
