// Package engine implements the rules of the bad luck ranking game.
//
// The package is pure: no clocks, no I/O, no randomness. Callers draw cards,
// run the countdown and persist results; the engine only decides what a draw,
// a guess or an expired countdown does to the game.
package engine

import (
	"errors"
	"fmt"
	"slices"
)

var (
	ErrWrongState    = errors.New("action not allowed in current state")
	ErrGameOver      = errors.New("game is over")
	ErrInvalidRank   = errors.New("guessed rank out of range")
	ErrDuplicateCard = errors.New("duplicate card")
	ErrCardExcluded  = errors.New("card already held or missed")
)

// Session holds the complete state of one game. It is not safe for concurrent
// use; the service layer serializes access.
type Session struct {
	rules   Rules
	state   State
	initial Hand
	hand    Hand

	current    Card
	hasCurrent bool

	log       []RoundOutcome
	missedIDs []int64
	collected int
	missed    int
	outcome   Outcome
}

// NewSession starts a game from an already drawn initial hand. The hand may
// be smaller than Rules.InitialHandSize only when the catalog ran short.
func NewSession(rules Rules, initial []Card) (*Session, error) {
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	if len(initial) > rules.InitialHandSize {
		return nil, fmt.Errorf("initial hand has %d cards, rules allow %d", len(initial), rules.InitialHandSize)
	}
	hand, err := NewHand(initial...)
	if err != nil {
		return nil, err
	}
	return &Session{
		rules:   rules,
		state:   StateAwaitingFirstDraw,
		initial: hand,
		hand:    hand,
	}, nil
}

// ---------------------------------------------------------------------------
// Query methods
// ---------------------------------------------------------------------------

func (s *Session) Rules() Rules { return s.rules }
func (s *Session) State() State { return s.state }
func (s *Session) Hand() Hand { return s.hand }
func (s *Session) InitialHand() Hand { return s.initial }
func (s *Session) Collected() int { return s.collected }
func (s *Session) Missed() int { return s.missed }
func (s *Session) Outcome() Outcome { return s.outcome }
func (s *Session) RoundsPlayed() int { return len(s.log) }
func (s *Session) IsTerminal() bool { return s.state == StateGameOver }
func (s *Session) Log() []RoundOutcome { return slices.Clone(s.log) }

// Current returns the card of the active round.
func (s *Session) Current() (Card, bool) {
	return s.current, s.hasCurrent
}

// Exclusions returns every card id that must not be drawn again: the hand
// plus every card missed so far. The set only grows during a game.
func (s *Session) Exclusions() []int64 {
	out := make([]int64, 0, s.hand.Len()+len(s.missedIDs)+1)
	out = append(out, s.hand.IDs()...)
	out = append(out, s.missedIDs...)
	if s.hasCurrent {
		out = append(out, s.current.ID)
	}
	slices.Sort(out)
	return out
}
