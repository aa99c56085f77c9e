package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/badluck/service/internal/apperr"
	"github.com/jason-s-yu/badluck/service/internal/auth"
	"github.com/jason-s-yu/badluck/service/internal/game"
)

// Sessions holds the server-driven games.
type Sessions interface {
	StartFull(ctx context.Context, id auth.Identity) (*game.Controller, error)
	Current(id auth.Identity) (*game.Controller, error)
	StartTrial(ctx context.Context) (*game.Controller, error)
	Trial(id uuid.UUID) (*game.Controller, error)
}

// PlayHandler serves games whose hand, timer and log live on the server.
type PlayHandler struct {
	sessions       Sessions
	originPatterns []string
	logger         logrus.FieldLogger
}

// NewPlayHandler builds the session routes. originPatterns lists the hosts
// allowed to open the event stream from a browser.
func NewPlayHandler(sessions Sessions, originPatterns []string, logger logrus.FieldLogger) *PlayHandler {
	return &PlayHandler{sessions: sessions, originPatterns: originPatterns, logger: logger}
}

func (h *PlayHandler) RegisterRoutes(router gin.IRouter) {
	full := router.Group("/session", auth.RequireIdentity())
	full.POST("/start", h.handleStart)
	full.POST("/draw", h.withCurrent(h.draw))
	full.POST("/guess", h.withCurrent(h.guess))
	full.GET("/state", h.withCurrent(h.state))
	full.POST("/finish", h.withCurrent(h.finish))

	trial := router.Group("/trial")
	trial.POST("/start", h.handleTrialStart)
	trial.POST("/:id/draw", h.withTrial(h.draw))
	trial.POST("/:id/guess", h.withTrial(h.guess))
	trial.GET("/:id/state", h.withTrial(h.state))
}

type guessRankRequest struct {
	Rank *int `json:"rank" binding:"required,gte=0"`
}

type trialResponse struct {
	TrialID string `json:"trialId"`
	game.Snapshot
}

type controllerFunc func(c *gin.Context, ctrl *game.Controller)

func (h *PlayHandler) withCurrent(next controllerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctrl, err := h.sessions.Current(auth.FromContext(c))
		if err != nil {
			writeError(c, err)
			return
		}
		next(c, ctrl)
	}
}

func (h *PlayHandler) withTrial(next controllerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			writeError(c, apperr.Invalid("id", "must be a trial id"))
			return
		}
		ctrl, err := h.sessions.Trial(id)
		if err != nil {
			writeError(c, err)
			return
		}
		next(c, ctrl)
	}
}

func (h *PlayHandler) handleStart(c *gin.Context) {
	ctrl, err := h.sessions.StartFull(c.Request.Context(), auth.FromContext(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ctrl.Snapshot())
}

func (h *PlayHandler) handleTrialStart(c *gin.Context) {
	ctrl, err := h.sessions.StartTrial(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, trialResponse{TrialID: ctrl.ID.String(), Snapshot: ctrl.Snapshot()})
}

func (h *PlayHandler) draw(c *gin.Context, ctrl *game.Controller) {
	snap, err := ctrl.Draw(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *PlayHandler) guess(c *gin.Context, ctrl *game.Controller) {
	var req guessRankRequest
	if !bindJSON(c, &req) {
		return
	}
	snap, err := ctrl.Guess(c.Request.Context(), *req.Rank)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *PlayHandler) state(c *gin.Context, ctrl *game.Controller) {
	c.JSON(http.StatusOK, ctrl.Snapshot())
}

// finish retries recording after a storage failure.
func (h *PlayHandler) finish(c *gin.Context, ctrl *game.Controller) {
	snap, err := ctrl.Finish(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}
