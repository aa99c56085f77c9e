// Package game runs one game at a time on the server: it deals, times each
// round, resolves guesses through the engine and records the result when the
// game ends.
package game

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/badluck/engine"
	"github.com/jason-s-yu/badluck/service/internal/apperr"
	"github.com/jason-s-yu/badluck/service/internal/auth"
	"github.com/jason-s-yu/badluck/service/internal/history"
	"github.com/jason-s-yu/badluck/service/internal/metrics"
	"github.com/jason-s-yu/badluck/service/internal/models"
)

// Kind distinguishes a recorded full game from an unrecorded trial.
type Kind string

const (
	KindFull  Kind = "full"
	KindTrial Kind = "trial"
)

// CardSupply deals cards from the catalog.
type CardSupply interface {
	DrawInitialHand(ctx context.Context, n int) ([]models.Card, error)
	DrawNext(ctx context.Context, exclude []int64) (models.Card, error)
}

// Recorder persists a finished full game.
type Recorder interface {
	RecordGame(ctx context.Context, id auth.Identity, p history.RecordParams) (int64, error)
}

// Options configures a Controller. Events and Metrics may be nil.
type Options struct {
	Kind          Kind
	Identity      auth.Identity
	Rules         engine.Rules
	RoundDuration time.Duration
	TickInterval  time.Duration
	Cards         CardSupply
	Recorder      Recorder
	Events        EventPublisher
	Metrics       *metrics.Recorder
	Logger        logrus.FieldLogger
}

const recordTimeout = 5 * time.Second

// Controller drives one game. All methods are safe for concurrent use; calls
// are serialized so rounds never overlap.
type Controller struct {
	ID       uuid.UUID
	Kind     Kind
	Identity auth.Identity

	roundDuration time.Duration
	tickInterval  time.Duration
	cards         CardSupply
	recorder      Recorder
	events        EventPublisher
	metrics       *metrics.Recorder
	logger        logrus.FieldLogger
	now           func() time.Time

	mu       sync.Mutex
	session  *engine.Session
	roundID  int           // increments per round; stale timers compare against it
	deadline time.Time     // end of the active round
	timer    *time.Timer   // countdown of the active round
	tickStop chan struct{} // closed to stop the active round's ticker
	stopped  bool
	last     *RoundReport

	recorded  bool
	gameID    int64
	recordErr error

	actionIndex int
	subs        map[int]chan Event
	nextSub     int
}

// New deals the initial hand and returns a controller waiting for its first
// draw. It fails with apperr.ErrInsufficientCatalog when the catalog is too
// small to deal.
func New(ctx context.Context, opts Options) (*Controller, error) {
	if opts.Kind == KindFull && opts.Identity.Anonymous() {
		return nil, apperr.ErrUnauthorized
	}
	if opts.RoundDuration <= 0 {
		return nil, fmt.Errorf("round duration must be positive, got %s", opts.RoundDuration)
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Kind == KindTrial {
		opts.Rules.SingleRound = true
	}
	if err := opts.Rules.Validate(); err != nil {
		return nil, err
	}

	dealt, err := opts.Cards.DrawInitialHand(ctx, opts.Rules.InitialHandSize)
	if err != nil {
		return nil, err
	}
	hand := make([]engine.Card, len(dealt))
	for i, c := range dealt {
		hand[i] = c.ToEngine()
	}
	session, err := engine.NewSession(opts.Rules, hand)
	if err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}

	id, _ := uuid.NewRandom()
	c := &Controller{
		ID:            id,
		Kind:          opts.Kind,
		Identity:      opts.Identity,
		roundDuration: opts.RoundDuration,
		tickInterval:  opts.TickInterval,
		cards:         opts.Cards,
		recorder:      opts.Recorder,
		events:        opts.Events,
		metrics:       opts.Metrics,
		now:           time.Now,
		session:       session,
		subs:          make(map[int]chan Event),
	}
	c.logger = opts.Logger.WithFields(logrus.Fields{"game_id": id, "user_id": opts.Identity.UserID, "kind": opts.Kind})

	c.mu.Lock()
	c.emit(EventGameStarted, map[string]any{"handIds": session.Hand().IDs()})
	c.mu.Unlock()
	c.metrics.GameStarted(string(opts.Kind))
	c.logger.Info("game started")
	return c, nil
}

// Draw starts the next round. When the catalog has nothing left to offer the
// game ends as a loss instead of failing.
func (c *Controller) Draw(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkLive(); err != nil {
		return Snapshot{}, err
	}
	if c.session.State() == engine.StateRoundActive {
		return Snapshot{}, apperr.ErrRoundActive
	}

	card, err := c.cards.DrawNext(ctx, c.session.Exclusions())
	if errors.Is(err, apperr.ErrDeckExhausted) {
		c.logger.WithField("round", c.session.RoundsPlayed()+1).Warn("deck exhausted, ending game")
		if err := c.session.Exhaust(); err != nil {
			return Snapshot{}, err
		}
		c.onGameOver(ctx, "deck_exhausted")
		return c.snapshotLocked(), nil
	}
	if err != nil {
		return Snapshot{}, err
	}
	if err := c.session.BeginRound(card.ToEngine()); err != nil {
		return Snapshot{}, fmt.Errorf("begin round: %w", err)
	}

	c.roundID++
	c.last = nil
	c.deadline = c.now().Add(c.roundDuration)
	c.scheduleRoundTimer()
	c.emit(EventRoundStarted, map[string]any{
		"round":   c.session.RoundsPlayed() + 1,
		"card":    card.Public(),
		"seconds": c.roundDuration.Seconds(),
	})
	return c.snapshotLocked(), nil
}

// Guess places the active card at rank. A guess that arrives after the
// deadline counts as a timeout miss.
func (c *Controller) Guess(ctx context.Context, rank int) (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkLive(); err != nil {
		return Snapshot{}, err
	}
	if c.session.State() != engine.StateRoundActive {
		return Snapshot{}, apperr.ErrRoundNotActive
	}

	var (
		res engine.RoundResult
		err error
	)
	if !c.now().Before(c.deadline) {
		// The round is already lost; the rank no longer matters.
		c.logger.WithField("round", c.session.RoundsPlayed()+1).Info("guess after deadline, counting as timeout")
		res, err = c.session.Timeout()
	} else {
		if size := c.session.Hand().Len(); rank < 0 || rank > size {
			return Snapshot{}, apperr.Invalid("rank", fmt.Sprintf("must be between 0 and %d", size))
		}
		res, err = c.session.Guess(rank)
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("resolve round: %w", err)
	}
	c.afterResolve(ctx, res)
	return c.snapshotLocked(), nil
}

// Finish retries recording a finished game whose earlier attempt failed. It
// is a no-op once the game is recorded.
func (c *Controller) Finish(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return Snapshot{}, apperr.ErrNoActiveSession
	}
	if !c.session.IsTerminal() {
		return Snapshot{}, apperr.ErrGameNotOver
	}
	if c.Kind == KindFull && !c.recorded {
		if err := c.record(ctx); err != nil {
			return c.snapshotLocked(), err
		}
	}
	return c.snapshotLocked(), nil
}

// Snapshot returns the current state for clients.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Done reports whether the game is over and nothing is left to persist.
func (c *Controller) Done() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped || (c.session.IsTerminal() && (c.Kind == KindTrial || c.recorded))
}

// Stop cancels the countdown and ends every subscription. A stopped
// controller never records.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	c.stopped = true
	c.stopRoundTimer()
	c.closeSubscribers()
	c.logger.Debug("controller stopped")
}

func (c *Controller) checkLive() error {
	if c.stopped {
		return apperr.ErrNoActiveSession
	}
	if c.session.IsTerminal() {
		return apperr.ErrGameOver
	}
	return nil
}

// scheduleRoundTimer arms the countdown and the per-second ticker for the
// current round. Assumes lock is held by caller.
func (c *Controller) scheduleRoundTimer() {
	c.stopRoundTimer()

	round := c.roundID
	c.timer = time.AfterFunc(c.roundDuration, func() {
		c.expire(round)
	})

	stop := make(chan struct{})
	c.tickStop = stop
	go c.runTicker(round, c.deadline, stop)
}

// stopRoundTimer cancels the pending timeout. Assumes lock is held by caller.
func (c *Controller) stopRoundTimer() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.tickStop != nil {
		close(c.tickStop)
		c.tickStop = nil
	}
}

// expire resolves round as a timeout miss unless it was already resolved.
func (c *Controller) expire(round int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped || round != c.roundID || c.session.State() != engine.StateRoundActive {
		return
	}
	c.timer = nil
	c.logger.WithField("round", c.session.RoundsPlayed()+1).Info("round timed out")
	res, err := c.session.Timeout()
	if err != nil {
		c.logger.WithError(err).Error("timeout resolution failed")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	c.afterResolve(ctx, res)
}

func (c *Controller) runTicker(round int, deadline time.Time, stop <-chan struct{}) {
	ticker := time.NewTicker(c.tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.mu.Lock()
			remaining := deadline.Sub(c.now())
			if remaining <= 0 {
				c.mu.Unlock()
				return
			}
			if !c.stopped && c.roundID == round && c.session.State() == engine.StateRoundActive {
				c.emit(EventRoundTick, map[string]any{
					"round":     c.session.RoundsPlayed() + 1,
					"remaining": int(math.Ceil(remaining.Seconds())),
				})
			}
			c.mu.Unlock()
		}
	}
}

// afterResolve publishes a resolved round and ends the game when the engine
// says so. Assumes lock is held by caller.
func (c *Controller) afterResolve(ctx context.Context, res engine.RoundResult) {
	c.stopRoundTimer()

	report := newRoundReport(res)
	c.last = &report
	c.metrics.RoundResolved(report.result())
	c.logger.WithFields(logrus.Fields{
		"round":     res.Round,
		"correct":   res.Outcome.Correct,
		"timed_out": report.TimedOut,
		"collected": res.Collected,
		"missed":    res.Missed,
	}).Debug("round resolved")
	c.emit(EventRoundResolved, map[string]any{
		"round":       res.Round,
		"card":        report.Card,
		"correct":     res.Outcome.Correct,
		"timedOut":    report.TimedOut,
		"correctRank": res.CorrectRank,
		"collected":   res.Collected,
		"missed":      res.Missed,
	})

	if res.GameOver {
		c.onGameOver(ctx, "thresholds")
	}
}

// onGameOver announces the end and records a full game. Assumes lock is held
// by caller.
func (c *Controller) onGameOver(ctx context.Context, reason string) {
	c.stopRoundTimer()
	outcome := c.session.Outcome()
	c.logger.WithFields(logrus.Fields{
		"outcome":   outcome,
		"reason":    reason,
		"collected": c.session.Collected(),
		"missed":    c.session.Missed(),
	}).Info("game over")
	c.emit(EventGameOver, map[string]any{
		"outcome":   outcome,
		"reason":    reason,
		"collected": c.session.Collected(),
		"missed":    c.session.Missed(),
	})
	if c.Kind == KindFull {
		_ = c.record(ctx)
	}
}

// record persists the game once. On failure the session is kept intact so
// Finish can retry. Assumes lock is held by caller.
func (c *Controller) record(ctx context.Context) error {
	if c.recorded {
		return nil
	}
	if c.recorder == nil {
		return fmt.Errorf("%w: no recorder configured", apperr.ErrPersistence)
	}
	log := c.session.Log()
	rounds := make([]history.Round, len(log))
	for i, r := range log {
		rounds[i] = history.Round{CardID: r.Card.ID, Correct: r.Correct}
	}
	gameID, err := c.recorder.RecordGame(ctx, c.Identity, history.RecordParams{
		Outcome:        c.session.Outcome(),
		MissCount:      c.session.Missed(),
		InitialCardIDs: c.session.InitialHand().IDs(),
		Rounds:         rounds,
	})
	if err != nil {
		c.recordErr = err
		c.logger.WithError(err).Warn("recording game failed; finish may be retried")
		c.emit(EventRecordFailed, map[string]any{"error": err.Error(), "retryable": apperr.Retryable(err)})
		return err
	}
	c.recorded = true
	c.recordErr = nil
	c.gameID = gameID
	c.emit(EventGameRecorded, map[string]any{"gameId": gameID})
	return nil
}
