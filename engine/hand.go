package engine

import (
	"fmt"
	"slices"
)

// Hand is the ordered set of cards a player holds, ascending by BadLuckIndex.
// The zero value is an empty hand.
type Hand struct {
	cards []Card
}

// NewHand builds a sorted hand. Duplicate card ids are rejected.
func NewHand(cards ...Card) (Hand, error) {
	seen := make(map[int64]struct{}, len(cards))
	out := make([]Card, 0, len(cards))
	for _, c := range cards {
		if _, dup := seen[c.ID]; dup {
			return Hand{}, fmt.Errorf("%w: card %d", ErrDuplicateCard, c.ID)
		}
		seen[c.ID] = struct{}{}
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b Card) int {
		switch {
		case a.BadLuckIndex < b.BadLuckIndex:
			return -1
		case a.BadLuckIndex > b.BadLuckIndex:
			return 1
		}
		return 0
	})
	return Hand{cards: out}, nil
}

// Len returns the number of cards held.
func (h Hand) Len() int { return len(h.cards) }

// Cards returns a copy of the held cards in ascending order.
func (h Hand) Cards() []Card { return slices.Clone(h.cards) }

// Indexes returns the BadLuckIndex of every held card, ascending.
func (h Hand) Indexes() []float64 {
	out := make([]float64, len(h.cards))
	for i, c := range h.cards {
		out[i] = c.BadLuckIndex
	}
	return out
}

// IDs returns the held card ids in hand order.
func (h Hand) IDs() []int64 {
	out := make([]int64, len(h.cards))
	for i, c := range h.cards {
		out[i] = c.ID
	}
	return out
}

// Contains reports whether a card with id is held.
func (h Hand) Contains(id int64) bool {
	return slices.ContainsFunc(h.cards, func(c Card) bool { return c.ID == id })
}

// Insert returns a new hand with c placed at its sorted position.
func (h Hand) Insert(c Card) (Hand, error) {
	if h.Contains(c.ID) {
		return h, fmt.Errorf("%w: card %d", ErrDuplicateCard, c.ID)
	}
	pos := CorrectRank(c.BadLuckIndex, h.Indexes())
	out := make([]Card, 0, len(h.cards)+1)
	out = append(out, h.cards[:pos]...)
	out = append(out, c)
	out = append(out, h.cards[pos:]...)
	return Hand{cards: out}, nil
}
