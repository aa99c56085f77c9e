package game

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/badluck/service/internal/cache"
)

// EventType names an event pushed to subscribers and to the round log.
type EventType string

const (
	EventGameStarted   EventType = "game_started"
	EventRoundStarted  EventType = "round_started"
	EventRoundTick     EventType = "round_tick"
	EventRoundResolved EventType = "round_resolved"
	EventGameOver      EventType = "game_over"
	EventGameRecorded  EventType = "game_recorded"
	EventRecordFailed  EventType = "game_record_failed"

	// EventState carries a full Snapshot; sent when a stream opens.
	EventState EventType = "state"
)

// Event is what a live client receives.
type Event struct {
	Type      EventType      `json:"type"`
	GameID    uuid.UUID      `json:"gameId"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp int64          `json:"timestamp"`
}

// EventPublisher stores events outside the process. Failures never affect
// gameplay.
type EventPublisher interface {
	PublishRoundEvent(ctx context.Context, rec cache.RoundEventRecord) error
}

const subscriberBuffer = 16

// Subscribe returns a channel of future events and a function that ends the
// subscription. The channel is closed when the controller stops. Slow
// subscribers miss events rather than block the game.
func (c *Controller) Subscribe() (<-chan Event, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	if c.stopped {
		close(ch)
		return ch, func() {}
	}
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if sub, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(sub)
		}
	}
}

// emit fans ev out to subscribers and appends it to the round log.
// Assumes lock is held by caller.
func (c *Controller) emit(typ EventType, payload map[string]any) {
	ev := Event{Type: typ, GameID: c.ID, Payload: payload, Timestamp: c.now().UnixMilli()}
	for _, ch := range c.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	if typ == EventRoundTick {
		return
	}
	c.logAction(ev)
}

// logAction publishes ev to the event log without waiting for it.
// Assumes lock is held by caller.
func (c *Controller) logAction(ev Event) {
	if c.events == nil {
		return
	}
	c.actionIndex++
	rec := cache.RoundEventRecord{
		GameID:    c.ID,
		Index:     c.actionIndex,
		UserID:    c.Identity.UserID,
		Type:      string(ev.Type),
		Payload:   ev.Payload,
		Timestamp: ev.Timestamp,
	}
	go func(rec cache.RoundEventRecord) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := c.events.PublishRoundEvent(ctx, rec); err != nil {
			c.logger.WithFields(logrus.Fields{
				"game_id": rec.GameID,
				"index":   rec.Index,
				"type":    rec.Type,
			}).WithError(err).Warn("publish round event failed")
		}
	}(rec)
}

func (c *Controller) closeSubscribers() {
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
}
