// Package session keeps the live game controllers: one full game per player
// and any number of anonymous trials.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/badluck/service/internal/apperr"
	"github.com/jason-s-yu/badluck/service/internal/auth"
	"github.com/jason-s-yu/badluck/service/internal/game"
	"github.com/jason-s-yu/badluck/service/internal/metrics"
)

// DefaultTrialTTL bounds how long an abandoned trial is kept.
const DefaultTrialTTL = 10 * time.Minute

type trialEntry struct {
	c       *game.Controller
	created time.Time
}

// Manager is safe for concurrent use.
type Manager struct {
	template game.Options
	trialTTL time.Duration
	metrics  *metrics.Recorder
	logger   logrus.FieldLogger
	now      func() time.Time

	mu     sync.Mutex
	full   map[int64]*game.Controller
	trials map[uuid.UUID]trialEntry
}

// NewManager builds controllers from template; Kind and Identity are filled
// per game.
func NewManager(template game.Options, trialTTL time.Duration) *Manager {
	if trialTTL <= 0 {
		trialTTL = DefaultTrialTTL
	}
	logger := template.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Manager{
		template: template,
		trialTTL: trialTTL,
		metrics:  template.Metrics,
		logger:   logger,
		now:      time.Now,
		full:     make(map[int64]*game.Controller),
		trials:   make(map[uuid.UUID]trialEntry),
	}
}

// StartFull begins a new full game for id. A game already held for id is
// stopped and discarded without being recorded.
func (m *Manager) StartFull(ctx context.Context, id auth.Identity) (*game.Controller, error) {
	if id.Anonymous() {
		return nil, apperr.ErrUnauthorized
	}
	opts := m.template
	opts.Kind = game.KindFull
	opts.Identity = id
	c, err := game.New(ctx, opts)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	prev := m.full[id.UserID]
	m.full[id.UserID] = c
	m.reportLocked()
	m.mu.Unlock()

	if prev != nil {
		prev.Stop()
		m.logger.WithFields(logrus.Fields{"user_id": id.UserID, "game_id": prev.ID}).Info("previous game replaced")
	}
	return c, nil
}

// Current returns the full game held for id.
func (m *Manager) Current(id auth.Identity) (*game.Controller, error) {
	if id.Anonymous() {
		return nil, apperr.ErrUnauthorized
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.full[id.UserID]
	if !ok {
		return nil, apperr.ErrNoActiveSession
	}
	return c, nil
}

// StartTrial begins a single-round game that is never recorded.
func (m *Manager) StartTrial(ctx context.Context) (*game.Controller, error) {
	opts := m.template
	opts.Kind = game.KindTrial
	opts.Identity = auth.Identity{}
	opts.Recorder = nil
	c, err := game.New(ctx, opts)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.trials[c.ID] = trialEntry{c: c, created: m.now()}
	m.reportLocked()
	m.mu.Unlock()
	return c, nil
}

// Trial returns the trial with the given id.
func (m *Manager) Trial(id uuid.UUID) (*game.Controller, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.trials[id]
	if !ok {
		return nil, apperr.ErrNoActiveSession
	}
	return e.c, nil
}

// Sweep drops finished trials and trials older than the TTL. Full games stay
// until replaced so their final state remains readable.
func (m *Manager) Sweep() int {
	cutoff := m.now().Add(-m.trialTTL)

	m.mu.Lock()
	var stale []*game.Controller
	for id, e := range m.trials {
		if e.c.Done() || e.created.Before(cutoff) {
			delete(m.trials, id)
			stale = append(stale, e.c)
		}
	}
	if len(stale) > 0 {
		m.reportLocked()
	}
	m.mu.Unlock()

	for _, c := range stale {
		c.Stop()
	}
	if len(stale) > 0 {
		m.logger.WithField("count", len(stale)).Debug("trials swept")
	}
	return len(stale)
}

// Run sweeps every interval until ctx is done, then stops every controller.
func (m *Manager) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.Close()
			return nil
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// Close stops every controller.
func (m *Manager) Close() {
	m.mu.Lock()
	all := make([]*game.Controller, 0, len(m.full)+len(m.trials))
	for id, c := range m.full {
		all = append(all, c)
		delete(m.full, id)
	}
	for id, e := range m.trials {
		all = append(all, e.c)
		delete(m.trials, id)
	}
	m.reportLocked()
	m.mu.Unlock()

	for _, c := range all {
		c.Stop()
	}
}

// Assumes lock is held by caller.
func (m *Manager) reportLocked() {
	m.metrics.SetActiveSessions(len(m.full) + len(m.trials))
}
