package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, string) {
	t.Helper()
	mr := miniredis.RunT(t)
	return mr, "redis://" + mr.Addr()
}

func TestNewClientPing(t *testing.T) {
	_, url := newTestClient(t)
	client, err := NewClient(context.Background(), url)
	require.NoError(t, err)
	defer client.Close()

	_, err = NewClient(context.Background(), "not a url")
	require.Error(t, err)
}

func TestEventLogRoundTrip(t *testing.T) {
	_, url := newTestClient(t)
	client, err := NewClient(context.Background(), url)
	require.NoError(t, err)
	defer client.Close()

	log := NewEventLog(client, 100)
	ctx := context.Background()
	gameID := uuid.New()

	for i, typ := range []string{"round_started", "round_resolved", "game_over"} {
		err := log.PublishRoundEvent(ctx, RoundEventRecord{
			GameID:    gameID,
			Index:     i + 1,
			UserID:    42,
			Type:      typ,
			Payload:   map[string]any{"round": i + 1},
			Timestamp: 1700000000000 + int64(i),
		})
		require.NoError(t, err)
	}

	events, err := log.ReadRoundEvents(ctx, gameID)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "round_started", events[0].Type)
	assert.Equal(t, 3, events[2].Index)
	assert.Equal(t, int64(42), events[1].UserID)
	assert.Equal(t, float64(2), events[1].Payload["round"])

	other, err := log.ReadRoundEvents(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestLoginLimiter(t *testing.T) {
	_, url := newTestClient(t)
	client, err := NewClient(context.Background(), url)
	require.NoError(t, err)
	defer client.Close()

	l := NewLoginLimiter(client, 2)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		ok, err := l.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := l.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = l.Allow(ctx, "10.0.0.2")
	require.NoError(t, err)
	assert.True(t, ok, "keys are independent")
}
