package history

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jason-s-yu/badluck/engine"
	"github.com/jason-s-yu/badluck/service/internal/apperr"
	"github.com/jason-s-yu/badluck/service/internal/auth"
	"github.com/jason-s-yu/badluck/service/internal/database"
	"github.com/jason-s-yu/badluck/service/internal/logging"
	"github.com/jason-s-yu/badluck/service/internal/metrics"
	"github.com/jason-s-yu/badluck/service/internal/models"
)

var alice = auth.Identity{UserID: 1, Username: "alice"}

func newTestService(t *testing.T) (*Service, []models.Card) {
	t.Helper()
	store, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	ctx := context.Background()
	require.NoError(t, store.Migrate(ctx))

	cards := make([]models.Card, 10)
	for i := range cards {
		cards[i] = models.Card{Name: fmt.Sprintf("c%d", i), ImageURL: "x", BadLuckIndex: float64((i + 1) * 2), Theme: "t"}
	}
	repo := database.NewCardRepository(store)
	require.NoError(t, repo.ReplaceAll(ctx, cards))
	cards, err = repo.List(ctx, 0)
	require.NoError(t, err)

	svc := NewService(repo, database.NewGameRepository(store), metrics.New(prometheus.NewRegistry()), logging.Discard())
	svc.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return svc, cards
}

func TestRecordRequiresIdentity(t *testing.T) {
	svc, cards := newTestService(t)
	_, err := svc.RecordGame(context.Background(), auth.Identity{}, RecordParams{
		Outcome: engine.OutcomeWin, InitialCardIDs: []int64{cards[0].ID},
	})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = svc.ListGames(context.Background(), auth.Identity{})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	_, err = svc.GetGameDetail(context.Background(), auth.Identity{}, 1)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestRecordValidation(t *testing.T) {
	svc, cards := newTestService(t)
	ctx := context.Background()
	cases := []RecordParams{
		{Outcome: "draw", InitialCardIDs: []int64{cards[0].ID}},
		{Outcome: engine.OutcomeLose, MissCount: -1, InitialCardIDs: []int64{cards[0].ID}},
		{Outcome: engine.OutcomeLose},
		{Outcome: engine.OutcomeLose, InitialCardIDs: []int64{cards[0].ID}, Rounds: []Round{{CardID: cards[0].ID}}},
	}
	for i, p := range cases {
		_, err := svc.RecordGame(ctx, alice, p)
		assert.ErrorIs(t, err, apperr.ErrValidation, "case %d", i)
	}

	_, err := svc.RecordGame(ctx, alice, RecordParams{Outcome: engine.OutcomeLose, InitialCardIDs: []int64{9999}})
	assert.ErrorIs(t, err, apperr.ErrUnknownCard)
}

// TestRecordRoundTrip writes a game and reads the same rows back.
func TestRecordRoundTrip(t *testing.T) {
	svc, cards := newTestService(t)
	ctx := context.Background()

	p := RecordParams{
		Outcome:        engine.OutcomeWin,
		MissCount:      1,
		InitialCardIDs: []int64{cards[0].ID, cards[4].ID, cards[8].ID},
		Rounds: []Round{
			{CardID: cards[1].ID, Correct: true},
			{CardID: cards[2].ID, Correct: false},
			{CardID: cards[5].ID, Correct: true},
		},
	}
	gameID, err := svc.RecordGame(ctx, alice, p)
	require.NoError(t, err)

	detail, err := svc.GetGameDetail(ctx, alice, gameID)
	require.NoError(t, err)
	assert.Equal(t, "win", detail.Game.Outcome)
	assert.Equal(t, 1, detail.Game.MissCount)
	assert.Equal(t, "2025-06-01 12:00:00", detail.Game.Date)
	require.Len(t, detail.Cards, 6)

	type row struct {
		id      int64
		won     bool
		round   int
		initial bool
	}
	var got []row
	for _, c := range detail.Cards {
		r := row{id: c.ID, won: c.Won, initial: c.IsInitialCard}
		if c.RoundNumber != nil {
			r.round = *c.RoundNumber
		}
		got = append(got, r)
	}
	want := []row{
		{cards[1].ID, true, 1, false},
		{cards[2].ID, false, 2, false},
		{cards[5].ID, true, 3, false},
	}
	assert.Equal(t, want, got[3:])
	assert.ElementsMatch(t, p.InitialCardIDs, []int64{got[0].id, got[1].id, got[2].id})

	list, err := svc.ListGames(ctx, alice)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, models.GameSummary{ID: gameID, Date: "2025-06-01 12:00:00", Outcome: "win", CardsCollected: 5}, list[0])
}

func TestDetailOfForeignGame(t *testing.T) {
	svc, cards := newTestService(t)
	ctx := context.Background()
	gameID, err := svc.RecordGame(ctx, alice, RecordParams{Outcome: engine.OutcomeLose, MissCount: 3, InitialCardIDs: []int64{cards[0].ID}})
	require.NoError(t, err)

	_, err = svc.GetGameDetail(ctx, auth.Identity{UserID: 2, Username: "bob"}, gameID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = svc.GetGameDetail(ctx, alice, gameID+1)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

type failingGames struct{ GameStore }

func (failingGames) RecordGame(context.Context, database.RecordParams) (int64, error) {
	return 0, errors.New("connection reset")
}

func TestRecordWrapsStorageFailure(t *testing.T) {
	svc, cards := newTestService(t)
	svc.games = failingGames{svc.games}

	_, err := svc.RecordGame(context.Background(), alice, RecordParams{Outcome: engine.OutcomeWin, InitialCardIDs: []int64{cards[0].ID}})
	require.Error(t, err)
	assert.True(t, apperr.Retryable(err))
	var pe *apperr.PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "record game", pe.Operation)
}
