package engine

import (
	"fmt"
	"slices"
)

// BeginRound moves AwaitingFirstDraw to RoundActive with the drawn card.
func (s *Session) BeginRound(c Card) error {
	if s.state == StateGameOver {
		return ErrGameOver
	}
	if s.state != StateAwaitingFirstDraw {
		return fmt.Errorf("%w: begin round in %s", ErrWrongState, s.state)
	}
	if s.hand.Contains(c.ID) || slices.Contains(s.missedIDs, c.ID) {
		return fmt.Errorf("%w: card %d", ErrCardExcluded, c.ID)
	}
	s.current = c
	s.hasCurrent = true
	s.state = StateRoundActive
	return nil
}

// Guess resolves the active round with a placement guess. A rank outside
// [0, hand size] is rejected without touching the state.
func (s *Session) Guess(rank int) (RoundResult, error) {
	if err := s.requireActive("guess"); err != nil {
		return RoundResult{}, err
	}
	if rank < 0 || rank > s.hand.Len() {
		return RoundResult{}, fmt.Errorf("%w: %d not in [0,%d]", ErrInvalidRank, rank, s.hand.Len())
	}
	eval := Evaluate(s.current, s.hand.Indexes(), rank)
	return s.resolve(eval.Correct, ResolvedByGuess, rank, eval.CorrectRank)
}

// Timeout resolves the active round as a miss.
func (s *Session) Timeout() (RoundResult, error) {
	if err := s.requireActive("timeout"); err != nil {
		return RoundResult{}, err
	}
	rank := CorrectRank(s.current.BadLuckIndex, s.hand.Indexes())
	return s.resolve(false, ResolvedByTimeout, -1, rank)
}

// Exhaust ends the game as a loss because no card is left to draw. The miss
// count is left as it is.
func (s *Session) Exhaust() error {
	if s.state == StateGameOver {
		return ErrGameOver
	}
	if s.state != StateAwaitingFirstDraw {
		return fmt.Errorf("%w: exhaust in %s", ErrWrongState, s.state)
	}
	s.state = StateGameOver
	s.outcome = OutcomeLose
	return nil
}

func (s *Session) requireActive(action string) error {
	if s.state == StateGameOver {
		return ErrGameOver
	}
	if s.state != StateRoundActive || !s.hasCurrent {
		return fmt.Errorf("%w: %s in %s", ErrWrongState, action, s.state)
	}
	return nil
}

func (s *Session) resolve(correct bool, how Resolution, guessed, correctRank int) (RoundResult, error) {
	card := s.current
	if correct {
		next, err := s.hand.Insert(card)
		if err != nil {
			return RoundResult{}, err
		}
		s.hand = next
		s.collected++
	} else {
		s.missedIDs = append(s.missedIDs, card.ID)
		s.missed++
	}
	s.log = append(s.log, RoundOutcome{Card: card, Correct: correct})
	s.current = Card{}
	s.hasCurrent = false
	s.state = StateRoundResolved

	s.checkTermination(correct)

	return RoundResult{
		Round:       len(s.log),
		Outcome:     s.log[len(s.log)-1],
		Resolution:  how,
		GuessedRank: guessed,
		CorrectRank: correctRank,
		Collected:   s.collected,
		Missed:      s.missed,
		GameOver:    s.state == StateGameOver,
		GameOutcome: s.outcome,
	}, nil
}
