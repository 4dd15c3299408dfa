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

type PlanHandler struct {
	planner services.PlannerService
	mastery services.MasteryService
}

func NewPlanHandler(planner services.PlannerService, mastery services.MasteryService) *PlanHandler {
	return &PlanHandler{planner: planner, mastery: mastery}
}

func (h *PlanHandler) GetPracticePlan(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_user_id", err)
		return
	}
	plan, err := h.planner.Plan(userID)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "plan_failed", err)
		return
	}
	response.RespondOK(c, plan)
}

// CompletePractice stamps a finished drill so the schedule moves forward
// from the practice session instead of the last game.
func (h *PlanHandler) CompletePractice(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_user_id", err)
		return
	}
	conceptID := c.Param("conceptId")
	state, err := h.mastery.MarkPracticed(userID, conceptID)
	if err != nil {
		if errors.Is(err, pkgerrors.ErrNotFound) {
			response.RespondError(c, http.StatusNotFound, "concept_state_not_found", err)
			return
		}
		response.RespondError(c, http.StatusInternalServerError, "practice_update_failed", err)
		return
	}
	response.RespondOK(c, state)
}
