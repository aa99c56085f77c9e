package game

import (
	"math"

	"github.com/jason-s-yu/badluck/engine"
	"github.com/jason-s-yu/badluck/service/internal/models"
)

// RoundReport describes the most recently resolved round. The card is
// revealed in full once the round is over.
type RoundReport struct {
	Round       int         `json:"round"`
	Card        models.Card `json:"card"`
	Correct     bool        `json:"correct"`
	TimedOut    bool        `json:"timedOut"`
	GuessedRank *int        `json:"guessedRank"`
	CorrectRank int         `json:"correctRank"`
}

func newRoundReport(res engine.RoundResult) RoundReport {
	r := RoundReport{
		Round:       res.Round,
		Card:        models.CardFromEngine(res.Outcome.Card),
		Correct:     res.Outcome.Correct,
		TimedOut:    res.Resolution == engine.ResolvedByTimeout,
		CorrectRank: res.CorrectRank,
	}
	if !r.TimedOut {
		g := res.GuessedRank
		r.GuessedRank = &g
	}
	return r
}

// result is the metrics label of the round.
func (r RoundReport) result() string {
	switch {
	case r.TimedOut:
		return "timeout"
	case r.Correct:
		return "correct"
	default:
		return "wrong"
	}
}

// Snapshot is the client view of a controller. The active card is shown
// without its index.
type Snapshot struct {
	ID               string             `json:"id"`
	Kind             Kind               `json:"kind"`
	State            string             `json:"state"`
	Hand             []models.Card      `json:"hand"`
	Current          *models.PublicCard `json:"current,omitempty"`
	RemainingSeconds int                `json:"remainingSeconds"`
	Round            int                `json:"round"`
	Collected        int                `json:"collected"`
	Missed           int                `json:"missed"`
	WinCollected     int                `json:"winCollected"`
	MaxMisses        int                `json:"maxMisses"`
	Outcome          string             `json:"outcome,omitempty"`
	LastRound        *RoundReport       `json:"lastRound,omitempty"`
	GameID           int64              `json:"gameId,omitempty"`
	RecordPending    bool               `json:"recordPending"`
	RecordError      string             `json:"recordError,omitempty"`
}

// Assumes lock is held by caller.
func (c *Controller) snapshotLocked() Snapshot {
	s := c.session
	cards := s.Hand().Cards()
	hand := make([]models.Card, len(cards))
	for i, card := range cards {
		hand[i] = models.CardFromEngine(card)
	}
	rules := s.Rules()
	snap := Snapshot{
		ID:           c.ID.String(),
		Kind:         c.Kind,
		State:        s.State().String(),
		Hand:         hand,
		Round:        s.RoundsPlayed(),
		Collected:    s.Collected(),
		Missed:       s.Missed(),
		WinCollected: rules.WinCollected,
		MaxMisses:    rules.MaxMisses,
		Outcome:      string(s.Outcome()),
		LastRound:    c.last,
		GameID:       c.gameID,
	}
	if cur, ok := s.Current(); ok {
		pub := models.CardFromEngine(cur).Public()
		snap.Current = &pub
		snap.Round++
		if left := c.deadline.Sub(c.now()); left > 0 {
			snap.RemainingSeconds = int(math.Ceil(left.Seconds()))
		}
	}
	if c.Kind == KindFull && s.IsTerminal() && !c.recorded {
		snap.RecordPending = true
		if c.recordErr != nil {
			snap.RecordError = c.recordErr.Error()
		}
	}
	return snap
}
