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

type IngestHandler struct {
	ingest services.IngestService
}

func NewIngestHandler(ingest services.IngestService) *IngestHandler {
	return &IngestHandler{ingest: ingest}
}

type ingestGameRequest struct {
	UserID   string   `json:"user_id" binding:"required"`
	GameID   string   `json:"game_id" binding:"required"`
	StartFEN string   `json:"start_fen"`
	Moves    []string `json:"moves" binding:"required"`
	Side     string   `json:"side"`
	Priority string   `json:"priority"`
}

func (h *IngestHandler) IngestGame(c *gin.Context) {
	var req ingestGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_user_id", err)
		return
	}
	if req.Side != "" && req.Side != "white" && req.Side != "black" {
		response.RespondError(c, http.StatusBadRequest, "invalid_side", errors.New("side must be white or black"))
		return
	}

	result, err := h.ingest.IngestGame(c.Request.Context(), services.IngestRequest{
		UserID:   userID,
		GameID:   req.GameID,
		StartFEN: req.StartFEN,
		Moves:    req.Moves,
		Side:     req.Side,
		Priority: req.Priority,
	})
	if err != nil {
		switch {
		case errors.Is(err, pkgerrors.ErrInvalidPosition), errors.Is(err, pkgerrors.ErrInvalidArgument):
			response.RespondError(c, http.StatusUnprocessableEntity, "invalid_game", err)
		default:
			response.RespondError(c, http.StatusInternalServerError, "ingest_failed", err)
		}
		return
	}
	response.RespondOK(c, result)
}
