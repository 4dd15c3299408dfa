package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/chesschat/coach-backend/internal/http/response"
	pkgerrors "github.com/chesschat/coach-backend/internal/pkg/errors"
	"github.com/chesschat/coach-backend/internal/services"
)

type AdviceHandler struct {
	interventions services.InterventionService
}

func NewAdviceHandler(interventions services.InterventionService) *AdviceHandler {
	return &AdviceHandler{interventions: interventions}
}

type recordAdviceRequest struct {
	UserID     string   `json:"user_id" binding:"required"`
	ConceptIDs []string `json:"concept_ids" binding:"required"`
	AdviceText string   `json:"advice_text" binding:"required"`
}

type recordAdviceResponse struct {
	InterventionID  string `json:"intervention_id"`
	Outcome         string `json:"outcome"`
	EvaluationGames int    `json:"evaluation_games"`
	GamesEvaluated  int    `json:"games_evaluated"`
}

func (h *AdviceHandler) RecordAdvice(c *gin.Context) {
	var req recordAdviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_user_id", err)
		return
	}
	intervention, err := h.interventions.Record(userID, req.ConceptIDs, req.AdviceText)
	if err != nil {
		if errors.Is(err, pkgerrors.ErrInvalidArgument) {
			response.RespondError(c, http.StatusUnprocessableEntity, "invalid_advice", err)
			return
		}
		response.RespondError(c, http.StatusInternalServerError, "record_failed", err)
		return
	}
	response.RespondOK(c, recordAdviceResponse{
		InterventionID:  intervention.ID.String(),
		Outcome:         intervention.Outcome,
		EvaluationGames: intervention.EvaluationGames,
		GamesEvaluated:  intervention.GamesEvaluated,
	})
}
