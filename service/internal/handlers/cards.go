package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jason-s-yu/badluck/engine"
	"github.com/jason-s-yu/badluck/service/internal/apperr"
	"github.com/jason-s-yu/badluck/service/internal/models"
)

// CardCatalog is the card store used by the stateless game routes.
type CardCatalog interface {
	DrawInitialHand(ctx context.Context, n int) ([]models.Card, error)
	DrawNext(ctx context.Context, exclude []int64) (models.Card, error)
	GetByID(ctx context.Context, id int64) (models.Card, error)
	GetByIDs(ctx context.Context, ids []int64) (map[int64]models.Card, error)
	List(ctx context.Context, limit int) ([]models.Card, error)
}

// CardsHandler serves the client-driven game: the client keeps the hand and
// the timer, the server deals and judges.
type CardsHandler struct {
	cards    CardCatalog
	handSize int
}

func NewCardsHandler(cards CardCatalog, handSize int) *CardsHandler {
	return &CardsHandler{cards: cards, handSize: handSize}
}

func (h *CardsHandler) RegisterRoutes(router gin.IRouter) {
	router.GET("/cards/test", h.handleSample)
	router.GET("/cards/init", h.handleInit)
	router.POST("/round", h.handleRound)
	router.POST("/round/guess", h.handleGuess)
}

// roundRequest needs excludeIds present; an empty list excludes nothing.
type roundRequest struct {
	ExcludeIDs []int64 `json:"excludeIds" binding:"required,dive,gt=0"`
}

type knownCard struct {
	ID           int64   `json:"id" binding:"gte=0"`
	BadLuckIndex float64 `json:"badLuckIndex"`
}

type guessRequest struct {
	CardID     int64       `json:"cardId" binding:"required,gt=0"`
	GuessIndex *int        `json:"guessIndex" binding:"required,gte=0"`
	KnownCards []knownCard `json:"knownCards" binding:"required,min=1,dive"`
}

type guessResponse struct {
	Correct  bool        `json:"correct"`
	FullCard models.Card `json:"fullCard"`
}

const sampleSize = 5

func (h *CardsHandler) handleSample(c *gin.Context) {
	cards, err := h.cards.List(c.Request.Context(), sampleSize)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cards)
}

func (h *CardsHandler) handleInit(c *gin.Context) {
	hand, err := h.cards.DrawInitialHand(c.Request.Context(), h.handSize)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, hand)
}

func (h *CardsHandler) handleRound(c *gin.Context) {
	var req roundRequest
	if !bindJSON(c, &req) {
		return
	}
	card, err := h.cards.DrawNext(c.Request.Context(), req.ExcludeIDs)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, card.Public())
}

// handleGuess judges a placement. The candidate is always read from the
// catalog; known cards that carry an id get their catalog index too.
func (h *CardsHandler) handleGuess(c *gin.Context) {
	var req guessRequest
	if !bindJSON(c, &req) {
		return
	}
	if *req.GuessIndex > len(req.KnownCards) {
		writeError(c, apperr.Invalid("guessIndex", fmt.Sprintf("must be between 0 and %d", len(req.KnownCards))))
		return
	}

	ctx := c.Request.Context()
	card, err := h.cards.GetByID(ctx, req.CardID)
	if errors.Is(err, apperr.ErrUnknownCard) {
		c.AbortWithStatusJSON(http.StatusNotFound, ErrorResponse{Error: "Card not found", Code: "unknown_card"})
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}

	known, err := h.knownIndexes(ctx, req.KnownCards)
	if err != nil {
		writeError(c, err)
		return
	}
	verdict := engine.Evaluate(card.ToEngine(), known, *req.GuessIndex)
	c.JSON(http.StatusOK, guessResponse{Correct: verdict.Correct, FullCard: card})
}

func (h *CardsHandler) knownIndexes(ctx context.Context, cards []knownCard) ([]float64, error) {
	var ids []int64
	for _, k := range cards {
		if k.ID > 0 {
			ids = append(ids, k.ID)
		}
	}
	var byID map[int64]models.Card
	if len(ids) > 0 {
		var err error
		if byID, err = h.cards.GetByIDs(ctx, ids); err != nil {
			return nil, err
		}
	}
	known := make([]float64, len(cards))
	for i, k := range cards {
		known[i] = k.BadLuckIndex
		if catalog, ok := byID[k.ID]; ok {
			known[i] = catalog.BadLuckIndex
		}
	}
	return known, nil
}
