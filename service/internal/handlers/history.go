package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jason-s-yu/badluck/engine"
	"github.com/jason-s-yu/badluck/service/internal/apperr"
	"github.com/jason-s-yu/badluck/service/internal/auth"
	"github.com/jason-s-yu/badluck/service/internal/history"
	"github.com/jason-s-yu/badluck/service/internal/models"
)

// HistoryService records finished games and reads them back.
type HistoryService interface {
	RecordGame(ctx context.Context, id auth.Identity, p history.RecordParams) (int64, error)
	ListGames(ctx context.Context, id auth.Identity) ([]models.GameSummary, error)
	GetGameDetail(ctx context.Context, id auth.Identity, gameID int64) (models.GameDetail, error)
}

type HistoryHandler struct {
	history HistoryService
}

func NewHistoryHandler(svc HistoryService) *HistoryHandler {
	return &HistoryHandler{history: svc}
}

func (h *HistoryHandler) RegisterRoutes(router gin.IRouter) {
	authed := router.Group("", auth.RequireIdentity())
	authed.POST("/game/end", h.handleEnd)
	authed.GET("/history/games", h.handleList)
	authed.GET("/history/game/:id", h.handleDetail)
}

type cardRef struct {
	ID int64 `json:"id" binding:"required,gt=0"`
}

type roundResult struct {
	Card    cardRef `json:"card" binding:"required"`
	Correct bool    `json:"correct"`
}

type endGameRequest struct {
	Outcome      string        `json:"outcome" binding:"required,oneof=win lose"`
	RoundsLost   *int          `json:"roundsLost" binding:"required,gte=0"`
	InitialCards []cardRef     `json:"initialCards" binding:"required,min=1,dive"`
	RoundResults []roundResult `json:"roundResults" binding:"dive"`
}

type endGameResponse struct {
	Success bool  `json:"success"`
	GameID  int64 `json:"gameId"`
}

// handleEnd records a game played on the client. Only card ids are taken
// from the body; every card is looked up again before it is stored.
func (h *HistoryHandler) handleEnd(c *gin.Context) {
	var req endGameRequest
	if !bindJSON(c, &req) {
		return
	}
	outcome, ok := engine.ParseOutcome(req.Outcome)
	if !ok {
		writeError(c, apperr.Invalid("outcome", "must be win or lose"))
		return
	}

	params := history.RecordParams{
		Outcome:        outcome,
		MissCount:      *req.RoundsLost,
		InitialCardIDs: make([]int64, len(req.InitialCards)),
		Rounds:         make([]history.Round, len(req.RoundResults)),
	}
	for i, card := range req.InitialCards {
		params.InitialCardIDs[i] = card.ID
	}
	for i, r := range req.RoundResults {
		params.Rounds[i] = history.Round{CardID: r.Card.ID, Correct: r.Correct}
	}

	gameID, err := h.history.RecordGame(c.Request.Context(), auth.FromContext(c), params)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, endGameResponse{Success: true, GameID: gameID})
}

func (h *HistoryHandler) handleList(c *gin.Context) {
	games, err := h.history.ListGames(c.Request.Context(), auth.FromContext(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, games)
}

func (h *HistoryHandler) handleDetail(c *gin.Context) {
	gameID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || gameID <= 0 {
		writeError(c, apperr.ErrNotFound)
		return
	}
	detail, err := h.history.GetGameDetail(c.Request.Context(), auth.FromContext(c), gameID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}
