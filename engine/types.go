package engine

// Card is an immutable catalog entry. BadLuckIndex is globally unique across
// the catalog; ranking depends on it never producing ties.
type Card struct {
	ID           int64
	Name         string
	ImageURL     string
	BadLuckIndex float64
	Theme        string
}

// Outcome is the final result of a game.
type Outcome string

const (
	OutcomeNone Outcome = ""
	OutcomeWin  Outcome = "win"
	OutcomeLose Outcome = "lose"
)

// Valid reports whether o is a terminal outcome.
func (o Outcome) Valid() bool { return o == OutcomeWin || o == OutcomeLose }

// ParseOutcome converts a wire value into an Outcome.
func ParseOutcome(s string) (Outcome, bool) {
	o := Outcome(s)
	return o, o.Valid()
}

// RoundOutcome records one resolved round, in the order it was played.
type RoundOutcome struct {
	Card    Card
	Correct bool
}

// State is the round state of a Session.
type State uint8

const (
	StateAwaitingFirstDraw State = iota // 0
	StateRoundActive                    // 1
	StateRoundResolved                  // 2, transient: never observed between calls
	StateGameOver                       // 3
)

var stateNames = [...]string{
	StateAwaitingFirstDraw: "awaiting_draw",
	StateRoundActive:       "round_active",
	StateRoundResolved:     "round_resolved",
	StateGameOver:          "game_over",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Resolution describes how a round left RoundActive.
type Resolution uint8

const (
	ResolvedByGuess Resolution = iota
	ResolvedByTimeout
)

// RoundResult is returned by every round resolution.
type RoundResult struct {
	Round       int // 1-based round number
	Outcome     RoundOutcome
	Resolution  Resolution
	GuessedRank int // -1 on timeout
	CorrectRank int
	Collected   int
	Missed      int
	GameOver    bool
	GameOutcome Outcome
}
