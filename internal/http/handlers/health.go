package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/chesschat/coach-backend/internal/http/response"
	"github.com/chesschat/coach-backend/internal/services"
)

type HealthHandler struct {
	health services.HealthService
}

func NewHealthHandler(health services.HealthService) *HealthHandler {
	return &HealthHandler{health: health}
}

func (h *HealthHandler) HealthCheck(c *gin.Context) {
	response.RespondOK(c, h.health.Report())
}
