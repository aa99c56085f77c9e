package database

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"

	"gorm.io/gorm"

	"github.com/jason-s-yu/badluck/service/internal/apperr"
	"github.com/jason-s-yu/badluck/service/internal/models"
)

// CardRepository reads the card catalog. The catalog is written only by the
// seeder.
type CardRepository struct {
	db *gorm.DB
}

func NewCardRepository(s *Store) *CardRepository {
	return &CardRepository{db: s.DB}
}

// DrawInitialHand returns n distinct cards chosen uniformly at random, sorted
// by index. It fails with ErrInsufficientCatalog when the catalog holds fewer
// than n cards.
func (r *CardRepository) DrawInitialHand(ctx context.Context, n int) ([]models.Card, error) {
	if n <= 0 {
		return nil, apperr.Invalid("handSize", "must be positive")
	}
	var cards []models.Card
	if err := r.db.WithContext(ctx).Order("RANDOM()").Limit(n).Find(&cards).Error; err != nil {
		return nil, fmt.Errorf("draw initial hand: %w", err)
	}
	if len(cards) < n {
		return nil, fmt.Errorf("%w: want %d, have %d", apperr.ErrInsufficientCatalog, n, len(cards))
	}
	slices.SortFunc(cards, func(a, b models.Card) int { return cmp.Compare(a.BadLuckIndex, b.BadLuckIndex) })
	return cards, nil
}

// DrawNext returns one random card whose id is not in exclude. It fails with
// ErrDeckExhausted when nothing is left.
func (r *CardRepository) DrawNext(ctx context.Context, exclude []int64) (models.Card, error) {
	q := r.db.WithContext(ctx).Order("RANDOM()")
	if len(exclude) > 0 {
		q = q.Where("id NOT IN ?", exclude)
	}
	var card models.Card
	err := q.Take(&card).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Card{}, apperr.ErrDeckExhausted
	}
	if err != nil {
		return models.Card{}, fmt.Errorf("draw next card: %w", err)
	}
	return card, nil
}

// GetByID fails with ErrUnknownCard when id is not in the catalog.
func (r *CardRepository) GetByID(ctx context.Context, id int64) (models.Card, error) {
	var card models.Card
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&card).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Card{}, fmt.Errorf("%w: %d", apperr.ErrUnknownCard, id)
	}
	if err != nil {
		return models.Card{}, fmt.Errorf("get card %d: %w", id, err)
	}
	return card, nil
}

// GetByIDs returns the cards keyed by id. Every id must exist.
func (r *CardRepository) GetByIDs(ctx context.Context, ids []int64) (map[int64]models.Card, error) {
	out := make(map[int64]models.Card, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var cards []models.Card
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&cards).Error; err != nil {
		return nil, fmt.Errorf("get cards: %w", err)
	}
	for _, c := range cards {
		out[c.ID] = c
	}
	for _, id := range ids {
		if _, ok := out[id]; !ok {
			return nil, fmt.Errorf("%w: %d", apperr.ErrUnknownCard, id)
		}
	}
	return out, nil
}

// List returns up to limit cards in id order. limit <= 0 means all.
func (r *CardRepository) List(ctx context.Context, limit int) ([]models.Card, error) {
	q := r.db.WithContext(ctx).Order("id")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var cards []models.Card
	if err := q.Find(&cards).Error; err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	return cards, nil
}

// Count returns the catalog size.
func (r *CardRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Card{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count cards: %w", err)
	}
	return n, nil
}

// ErrCatalogInUse is returned when a reseed would delete a card that a
// recorded game still references.
var ErrCatalogInUse = errors.New("card referenced by recorded games")

// ReplaceAll makes the catalog match cards in one transaction. Cards are
// matched by name: a card that stays in the deck keeps its id, so recorded
// games keep pointing at it. A card dropped from the deck is deleted unless a
// recorded game references it, in which case nothing changes and the error
// wraps ErrCatalogInUse. The ids are written back into cards.
func (r *CardRepository) ReplaceAll(ctx context.Context, cards []models.Card) error {
	wanted := make(map[string]bool, len(cards))
	for _, c := range cards {
		if wanted[c.Name] {
			return apperr.Invalid("name", fmt.Sprintf("card %q appears twice", c.Name))
		}
		wanted[c.Name] = true
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing []models.Card
		if err := tx.Find(&existing).Error; err != nil {
			return fmt.Errorf("load cards: %w", err)
		}
		kept := make(map[string]int64, len(existing))
		var retired []int64
		for _, c := range existing {
			if wanted[c.Name] {
				kept[c.Name] = c.ID
			} else {
				retired = append(retired, c.ID)
			}
		}

		if len(retired) > 0 {
			var used int64
			if err := tx.Model(&models.GameCard{}).Where("card_id IN ?", retired).Count(&used).Error; err != nil {
				return fmt.Errorf("check retired cards: %w", err)
			}
			if used > 0 {
				return fmt.Errorf("%w: %d game rows use cards missing from the new deck", ErrCatalogInUse, used)
			}
			if err := tx.Where("id IN ?", retired).Delete(&models.Card{}).Error; err != nil {
				return fmt.Errorf("delete retired cards: %w", err)
			}
		}

		for i := range cards {
			c := &cards[i]
			if id, ok := kept[c.Name]; ok {
				c.ID = id
				err := tx.Model(&models.Card{}).Where("id = ?", id).Updates(map[string]any{
					"image_url":      c.ImageURL,
					"bad_luck_index": c.BadLuckIndex,
					"theme":          c.Theme,
				}).Error
				if err != nil {
					return fmt.Errorf("update card %q: %w", c.Name, err)
				}
				continue
			}
			c.ID = 0
			if err := tx.Create(c).Error; err != nil {
				return fmt.Errorf("insert card %q: %w", c.Name, err)
			}
		}
		return nil
	})
}
