// Package history records finished games and reads them back for the
// player who played them.
package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/badluck/engine"
	"github.com/jason-s-yu/badluck/service/internal/apperr"
	"github.com/jason-s-yu/badluck/service/internal/auth"
	"github.com/jason-s-yu/badluck/service/internal/database"
	"github.com/jason-s-yu/badluck/service/internal/metrics"
	"github.com/jason-s-yu/badluck/service/internal/models"
)

// CardLookup resolves card ids against the catalog.
type CardLookup interface {
	GetByIDs(ctx context.Context, ids []int64) (map[int64]models.Card, error)
}

// GameStore is the persistence the service needs.
type GameStore interface {
	RecordGame(ctx context.Context, p database.RecordParams) (int64, error)
	ListGames(ctx context.Context, userID int64) ([]models.GameSummary, error)
	GetGame(ctx context.Context, userID, gameID int64) (models.Game, error)
	GameCards(ctx context.Context, gameID int64) ([]models.DetailCard, error)
}

// Round is one resolved round as reported by the caller. Only the card id
// is trusted; everything else is looked up.
type Round struct {
	CardID  int64
	Correct bool
}

// RecordParams describes a finished game to persist.
type RecordParams struct {
	Outcome        engine.Outcome
	MissCount      int
	InitialCardIDs []int64
	Rounds         []Round
}

// Service implements the session recorder and the history reader.
type Service struct {
	cards   CardLookup
	games   GameStore
	metrics *metrics.Recorder
	logger  logrus.FieldLogger
	now     func() time.Time
}

func NewService(cards CardLookup, games GameStore, m *metrics.Recorder, logger logrus.FieldLogger) *Service {
	return &Service{cards: cards, games: games, metrics: m, logger: logger, now: time.Now}
}

// RecordGame persists a finished game for id and returns the new game id.
// Storage failures come back as *apperr.PersistenceError so the caller can
// retry with the same input.
func (s *Service) RecordGame(ctx context.Context, id auth.Identity, p RecordParams) (int64, error) {
	if id.Anonymous() {
		return 0, apperr.ErrUnauthorized
	}
	if err := validateRecord(p); err != nil {
		return 0, err
	}

	ids := make([]int64, 0, len(p.InitialCardIDs)+len(p.Rounds))
	ids = append(ids, p.InitialCardIDs...)
	for _, r := range p.Rounds {
		ids = append(ids, r.CardID)
	}
	if _, err := s.cards.GetByIDs(ctx, ids); err != nil {
		if errors.Is(err, apperr.ErrUnknownCard) {
			return 0, err
		}
		return 0, &apperr.PersistenceError{Operation: "lookup cards", Err: err}
	}

	rounds := make([]database.RoundRow, len(p.Rounds))
	for i, r := range p.Rounds {
		rounds[i] = database.RoundRow{CardID: r.CardID, Correct: r.Correct}
	}
	gameID, err := s.games.RecordGame(ctx, database.RecordParams{
		UserID:         id.UserID,
		Outcome:        string(p.Outcome),
		MissCount:      p.MissCount,
		PlayedAt:       s.now(),
		InitialCardIDs: p.InitialCardIDs,
		Rounds:         rounds,
	})
	if err != nil {
		s.metrics.RecordFailed()
		s.logger.WithFields(logrus.Fields{"user_id": id.UserID, "outcome": p.Outcome}).WithError(err).Error("record game failed")
		return 0, &apperr.PersistenceError{Operation: "record game", Err: err}
	}
	s.metrics.GameRecorded(string(p.Outcome))
	s.logger.WithFields(logrus.Fields{
		"user_id": id.UserID,
		"game_id": gameID,
		"outcome": p.Outcome,
		"rounds":  len(p.Rounds),
	}).Info("game recorded")
	return gameID, nil
}

func validateRecord(p RecordParams) error {
	if !p.Outcome.Valid() {
		return apperr.Invalid("outcome", "must be win or lose")
	}
	if p.MissCount < 0 {
		return apperr.Invalid("roundsLost", "must not be negative")
	}
	if len(p.InitialCardIDs) == 0 {
		return apperr.Invalid("initialCards", "must not be empty")
	}
	seen := make(map[int64]bool, len(p.InitialCardIDs)+len(p.Rounds))
	check := func(field string, id int64) error {
		if id <= 0 {
			return apperr.Invalid(field, fmt.Sprintf("bad card id %d", id))
		}
		if seen[id] {
			return apperr.Invalid(field, fmt.Sprintf("card %d appears twice", id))
		}
		seen[id] = true
		return nil
	}
	for _, id := range p.InitialCardIDs {
		if err := check("initialCards", id); err != nil {
			return err
		}
	}
	for _, r := range p.Rounds {
		if err := check("roundResults", r.CardID); err != nil {
			return err
		}
	}
	return nil
}

// ListGames returns the caller's games, newest first.
func (s *Service) ListGames(ctx context.Context, id auth.Identity) ([]models.GameSummary, error) {
	if id.Anonymous() {
		return nil, apperr.ErrUnauthorized
	}
	return s.games.ListGames(ctx, id.UserID)
}

// GetGameDetail returns one of the caller's games with its cards. A game
// owned by someone else is reported as not found.
func (s *Service) GetGameDetail(ctx context.Context, id auth.Identity, gameID int64) (models.GameDetail, error) {
	if id.Anonymous() {
		return models.GameDetail{}, apperr.ErrUnauthorized
	}
	if gameID <= 0 {
		return models.GameDetail{}, apperr.ErrNotFound
	}
	g, err := s.games.GetGame(ctx, id.UserID, gameID)
	if err != nil {
		return models.GameDetail{}, err
	}
	cards, err := s.games.GameCards(ctx, g.ID)
	if err != nil {
		return models.GameDetail{}, err
	}
	return models.GameDetail{Game: g.View(), Cards: cards}, nil
}
