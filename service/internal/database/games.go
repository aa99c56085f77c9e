package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/jason-s-yu/badluck/service/internal/apperr"
	"github.com/jason-s-yu/badluck/service/internal/models"
)

// RoundRow is one resolved round handed to RecordGame, in play order.
type RoundRow struct {
	CardID  int64
	Correct bool
}

// RecordParams is everything written for one finished game.
type RecordParams struct {
	UserID         int64
	Outcome        string
	MissCount      int
	PlayedAt       time.Time
	InitialCardIDs []int64
	Rounds         []RoundRow
}

// GameRepository writes finished games and reads them back for history.
type GameRepository struct {
	db *gorm.DB
}

func NewGameRepository(s *Store) *GameRepository {
	return &GameRepository{db: s.DB}
}

// RecordGame writes the summary row and every card row in one transaction.
// Either all rows become visible or none do.
func (r *GameRepository) RecordGame(ctx context.Context, p RecordParams) (int64, error) {
	game := models.Game{
		UserID:    p.UserID,
		Outcome:   p.Outcome,
		PlayedAt:  p.PlayedAt.UTC(),
		MissCount: p.MissCount,
	}
	rows := make([]models.GameCard, 0, len(p.InitialCardIDs)+len(p.Rounds))

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&game).Error; err != nil {
			return fmt.Errorf("insert game: %w", err)
		}
		for _, id := range p.InitialCardIDs {
			rows = append(rows, models.GameCard{GameID: game.ID, CardID: id, Won: true, IsInitialCard: true})
		}
		for i, round := range p.Rounds {
			n := i + 1
			rows = append(rows, models.GameCard{GameID: game.ID, CardID: round.CardID, Won: round.Correct, RoundNumber: &n})
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.Omit("Card").Create(&rows).Error; err != nil {
			return fmt.Errorf("insert game cards: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return game.ID, nil
}

// ListGames returns the user's games, newest first, with the number of cards
// that ended in the hand (initial cards plus correct rounds).
func (r *GameRepository) ListGames(ctx context.Context, userID int64) ([]models.GameSummary, error) {
	var games []models.Game
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("played_at DESC").Order("id DESC").
		Find(&games).Error
	if err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}
	if len(games) == 0 {
		return []models.GameSummary{}, nil
	}

	ids := make([]int64, len(games))
	for i, g := range games {
		ids[i] = g.ID
	}
	var counts []struct {
		GameID int64
		N      int
	}
	err = r.db.WithContext(ctx).Model(&models.GameCard{}).
		Select("game_id, COUNT(*) AS n").
		Where("game_id IN ?", ids).
		Where("won = ? OR is_initial_card = ?", true, true).
		Group("game_id").
		Scan(&counts).Error
	if err != nil {
		return nil, fmt.Errorf("count collected cards: %w", err)
	}
	collected := make(map[int64]int, len(counts))
	for _, c := range counts {
		collected[c.GameID] = c.N
	}

	out := make([]models.GameSummary, len(games))
	for i, g := range games {
		out[i] = models.GameSummary{
			ID:             g.ID,
			Date:           models.FormatDate(g.PlayedAt),
			Outcome:        g.Outcome,
			CardsCollected: collected[g.ID],
		}
	}
	return out, nil
}

// GetGame returns the game only when it belongs to userID. A missing game and
// a foreign game both yield ErrNotFound.
func (r *GameRepository) GetGame(ctx context.Context, userID, gameID int64) (models.Game, error) {
	var g models.Game
	err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", gameID, userID).Take(&g).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Game{}, apperr.ErrNotFound
	}
	if err != nil {
		return models.Game{}, fmt.Errorf("get game %d: %w", gameID, err)
	}
	return g, nil
}

// GameCards returns the card rows of a game: initial cards first, then rounds
// in order.
func (r *GameRepository) GameCards(ctx context.Context, gameID int64) ([]models.DetailCard, error) {
	var rows []models.GameCard
	err := r.db.WithContext(ctx).
		Preload("Card").
		Where("game_id = ?", gameID).
		Order("is_initial_card DESC").Order("round_number ASC").Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("get game cards %d: %w", gameID, err)
	}
	out := make([]models.DetailCard, len(rows))
	for i, row := range rows {
		out[i] = models.DetailCard{
			ID:            row.Card.ID,
			Name:          row.Card.Name,
			ImageURL:      row.Card.ImageURL,
			BadLuckIndex:  row.Card.BadLuckIndex,
			IsInitialCard: row.IsInitialCard,
			Won:           row.Won,
			RoundNumber:   row.RoundNumber,
		}
	}
	return out, nil
}
