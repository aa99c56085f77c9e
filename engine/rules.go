package engine

import "fmt"

// Rules holds the thresholds that drive a Session.
type Rules struct {
	InitialHandSize int  // cards dealt before the first round
	WinCollected    int  // correct guesses needed to win
	MaxMisses       int  // misses (wrong or timed out) that lose the game
	SingleRound     bool // trial play: game over after exactly one round
}

// DefaultRules returns the rules of a full game.
func DefaultRules() Rules {
	return Rules{
		InitialHandSize: 3,
		WinCollected:    6,
		MaxMisses:       3,
		SingleRound:     false,
	}
}

// TrialRules returns the rules of the unauthenticated single-round variant.
func TrialRules() Rules {
	r := DefaultRules()
	r.SingleRound = true
	return r
}

// Validate rejects rules that can never terminate or never start.
func (r Rules) Validate() error {
	if r.InitialHandSize <= 0 {
		return fmt.Errorf("initial hand size must be positive, got %d", r.InitialHandSize)
	}
	if r.WinCollected <= 0 {
		return fmt.Errorf("win threshold must be positive, got %d", r.WinCollected)
	}
	if r.MaxMisses <= 0 {
		return fmt.Errorf("miss threshold must be positive, got %d", r.MaxMisses)
	}
	return nil
}
