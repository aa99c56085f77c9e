package engine

// checkTermination runs after every resolution and moves RoundResolved to
// either GameOver or AwaitingFirstDraw. Only one counter moves per round, so
// the win and lose thresholds can never be reached in the same step.
func (s *Session) checkTermination(lastCorrect bool) {
	switch {
	case s.collected >= s.rules.WinCollected:
		s.state = StateGameOver
		s.outcome = OutcomeWin
	case s.missed >= s.rules.MaxMisses:
		s.state = StateGameOver
		s.outcome = OutcomeLose
	case s.rules.SingleRound:
		s.state = StateGameOver
		if lastCorrect {
			s.outcome = OutcomeWin
		} else {
			s.outcome = OutcomeLose
		}
	default:
		s.state = StateAwaitingFirstDraw
	}
}
