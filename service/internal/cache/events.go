package cache

import (
	"context"
	"fmt"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RoundEventRecord is one controller event appended to a game's stream.
type RoundEventRecord struct {
	GameID    uuid.UUID      `json:"gameId"`
	Index     int            `json:"index"`
	UserID    int64          `json:"userId"` // 0 for trial games
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload"`
	Timestamp int64          `json:"timestamp"` // unix millis
}

// EventLog appends round events to a capped Redis stream per game.
type EventLog struct {
	rdb    *redis.Client
	maxLen int64
}

func NewEventLog(rdb *redis.Client, maxLen int64) *EventLog {
	return &EventLog{rdb: rdb, maxLen: maxLen}
}

// StreamKey is the stream holding the events of one game.
func StreamKey(gameID uuid.UUID) string {
	return "badluck:game:" + gameID.String() + ":events"
}

// PublishRoundEvent appends rec to the game's stream.
func (l *EventLog) PublishRoundEvent(ctx context.Context, rec RoundEventRecord) error {
	payload, err := json.Marshal(rec.Payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	args := &redis.XAddArgs{
		Stream: StreamKey(rec.GameID),
		Values: map[string]any{
			"index":   rec.Index,
			"user_id": rec.UserID,
			"type":    rec.Type,
			"payload": string(payload),
			"ts":      rec.Timestamp,
		},
	}
	if l.maxLen > 0 {
		args.MaxLen = l.maxLen
		args.Approx = true
	}
	if err := l.rdb.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", args.Stream, err)
	}
	return nil
}

// ReadRoundEvents returns every stored event of a game in append order.
func (l *EventLog) ReadRoundEvents(ctx context.Context, gameID uuid.UUID) ([]RoundEventRecord, error) {
	msgs, err := l.rdb.XRange(ctx, StreamKey(gameID), "-", "+").Result()
	if err != nil {
		return nil, fmt.Errorf("xrange: %w", err)
	}
	out := make([]RoundEventRecord, 0, len(msgs))
	for _, m := range msgs {
		rec := RoundEventRecord{GameID: gameID}
		rec.Type, _ = m.Values["type"].(string)
		rec.Index = atoi(m.Values["index"])
		rec.UserID = int64(atoi(m.Values["user_id"]))
		rec.Timestamp = int64(atoi(m.Values["ts"]))
		if raw, ok := m.Values["payload"].(string); ok && raw != "" {
			if err := json.Unmarshal([]byte(raw), &rec.Payload); err != nil {
				return nil, fmt.Errorf("decode event %s: %w", m.ID, err)
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

func atoi(v any) int {
	s, _ := v.(string)
	n, _ := strconv.Atoi(s)
	return n
}
