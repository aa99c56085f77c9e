package database

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/jason-s-yu/badluck/service/internal/apperr"
	"github.com/jason-s-yu/badluck/service/internal/config"
	"github.com/jason-s-yu/badluck/service/internal/logging"
	"github.com/jason-s-yu/badluck/service/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

// seedCards inserts n cards with indexes 2, 4, 6, ...
func seedCards(t *testing.T, s *Store, n int) []models.Card {
	t.Helper()
	cards := make([]models.Card, n)
	for i := range cards {
		cards[i] = models.Card{
			Name:         fmt.Sprintf("card %d", i+1),
			ImageURL:     fmt.Sprintf("/images/cards/card_%d.png", i+1),
			BadLuckIndex: float64((i + 1) * 2),
			Theme:        "test",
		}
	}
	require.NoError(t, NewCardRepository(s).ReplaceAll(context.Background(), cards))
	out, err := NewCardRepository(s).List(context.Background(), 0)
	require.NoError(t, err)
	return out
}

func TestOpenSQLiteThroughOpen(t *testing.T) {
	s, err := Open(context.Background(), config.DatabaseConfig{Driver: "sqlite", URL: ":memory:", ConnectAttempts: 1}, logging.Discard())
	require.NoError(t, err)
	defer s.Close()
	assert.NoError(t, s.Ping(context.Background()))
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.DatabaseConfig{Driver: "oracle", ConnectAttempts: 3}, logging.Discard())
	require.Error(t, err)
}

func TestDrawInitialHand(t *testing.T) {
	s := newTestStore(t)
	seedCards(t, s, 10)
	repo := NewCardRepository(s)

	hand, err := repo.DrawInitialHand(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, hand, 3)
	ids := map[int64]bool{}
	for _, c := range hand {
		ids[c.ID] = true
	}
	assert.Len(t, ids, 3, "cards must be distinct")
	assert.True(t, slices.IsSortedFunc(hand, func(a, b models.Card) int {
		return cmp.Compare(a.BadLuckIndex, b.BadLuckIndex)
	}), "hand must be sorted by index")
}

func TestDrawInitialHandInsufficient(t *testing.T) {
	s := newTestStore(t)
	seedCards(t, s, 2)
	_, err := NewCardRepository(s).DrawInitialHand(context.Background(), 3)
	assert.ErrorIs(t, err, apperr.ErrInsufficientCatalog)
}

func TestDrawNextHonorsExclusions(t *testing.T) {
	s := newTestStore(t)
	cards := seedCards(t, s, 4)
	repo := NewCardRepository(s)
	ctx := context.Background()

	exclude := []int64{cards[0].ID, cards[1].ID, cards[2].ID}
	for i := 0; i < 10; i++ {
		c, err := repo.DrawNext(ctx, exclude)
		require.NoError(t, err)
		assert.Equal(t, cards[3].ID, c.ID)
	}

	_, err := repo.DrawNext(ctx, append(exclude, cards[3].ID))
	assert.ErrorIs(t, err, apperr.ErrDeckExhausted)

	c, err := repo.DrawNext(ctx, nil)
	require.NoError(t, err)
	assert.NotZero(t, c.ID)
}

func TestGetByIDs(t *testing.T) {
	s := newTestStore(t)
	cards := seedCards(t, s, 3)
	repo := NewCardRepository(s)

	got, err := repo.GetByIDs(context.Background(), []int64{cards[0].ID, cards[2].ID})
	require.NoError(t, err)
	assert.Equal(t, cards[2].BadLuckIndex, got[cards[2].ID].BadLuckIndex)

	_, err = repo.GetByIDs(context.Background(), []int64{cards[0].ID, 9999})
	assert.ErrorIs(t, err, apperr.ErrUnknownCard)

	_, err = repo.GetByID(context.Background(), 9999)
	assert.ErrorIs(t, err, apperr.ErrUnknownCard)
}

func TestReplaceAllRejectsDuplicateIndex(t *testing.T) {
	s := newTestStore(t)
	seedCards(t, s, 3)
	err := NewCardRepository(s).ReplaceAll(context.Background(), []models.Card{
		{Name: "a", ImageURL: "a", BadLuckIndex: 1, Theme: "t"},
		{Name: "b", ImageURL: "b", BadLuckIndex: 1, Theme: "t"},
	})
	require.Error(t, err)

	n, err := NewCardRepository(s).Count(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 3, n, "failed reseed must roll back")
}

func TestReplaceAllKeepsRecordedCards(t *testing.T) {
	s := newTestStore(t)
	cards := seedCards(t, s, 4)
	repo := NewCardRepository(s)
	ctx := context.Background()

	_, err := NewGameRepository(s).RecordGame(ctx, RecordParams{
		UserID: 1, Outcome: "win", PlayedAt: time.Now(), InitialCardIDs: []int64{cards[0].ID},
	})
	require.NoError(t, err)

	reseed := func(names ...int) []models.Card {
		out := make([]models.Card, 0, len(names))
		for _, n := range names {
			out = append(out, models.Card{
				Name:         fmt.Sprintf("card %d", n),
				ImageURL:     fmt.Sprintf("/images/cards/card_%d.png", n),
				BadLuckIndex: float64(n*2 + 1),
				Theme:        "test",
			})
		}
		return out
	}

	// Same names, new indexes, one new card: ids survive.
	next := reseed(1, 2, 3, 4, 5)
	require.NoError(t, repo.ReplaceAll(ctx, next))
	for i := 0; i < 4; i++ {
		assert.Equal(t, cards[i].ID, next[i].ID)
	}
	got, err := repo.GetByID(ctx, cards[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 3.0, got.BadLuckIndex)

	// Dropping a card a recorded game uses changes nothing.
	err = repo.ReplaceAll(ctx, reseed(2, 3, 4, 5))
	require.ErrorIs(t, err, ErrCatalogInUse)
	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 5, n)

	// Dropping an unused card deletes it.
	require.NoError(t, repo.ReplaceAll(ctx, reseed(1, 2, 3, 4)))
	n, err = repo.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)

	err = repo.ReplaceAll(ctx, reseed(1, 1))
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestRecordAndReadBack(t *testing.T) {
	s := newTestStore(t)
	cards := seedCards(t, s, 8)
	games := NewGameRepository(s)
	ctx := context.Background()

	params := RecordParams{
		UserID:         7,
		Outcome:        "lose",
		MissCount:      3,
		PlayedAt:       time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC),
		InitialCardIDs: []int64{cards[0].ID, cards[1].ID, cards[2].ID},
		Rounds: []RoundRow{
			{CardID: cards[3].ID, Correct: true},
			{CardID: cards[4].ID, Correct: false},
			{CardID: cards[5].ID, Correct: false},
			{CardID: cards[6].ID, Correct: false},
		},
	}
	id, err := games.RecordGame(ctx, params)
	require.NoError(t, err)
	require.NotZero(t, id)

	g, err := games.GetGame(ctx, 7, id)
	require.NoError(t, err)
	assert.Equal(t, "lose", g.Outcome)
	assert.Equal(t, 3, g.MissCount)
	assert.Equal(t, "2025-03-04 05:06:07", g.View().Date)

	rows, err := games.GameCards(ctx, id)
	require.NoError(t, err)
	require.Len(t, rows, 7)
	for i := 0; i < 3; i++ {
		assert.True(t, rows[i].IsInitialCard)
		assert.Nil(t, rows[i].RoundNumber)
	}
	for i, want := range params.Rounds {
		row := rows[3+i]
		assert.False(t, row.IsInitialCard)
		require.NotNil(t, row.RoundNumber)
		assert.Equal(t, i+1, *row.RoundNumber)
		assert.Equal(t, want.CardID, row.ID)
		assert.Equal(t, want.Correct, row.Won)
	}

	list, err := games.ListGames(ctx, 7)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 4, list[0].CardsCollected)
}

func TestGetGameForeignUser(t *testing.T) {
	s := newTestStore(t)
	cards := seedCards(t, s, 3)
	games := NewGameRepository(s)
	ctx := context.Background()

	id, err := games.RecordGame(ctx, RecordParams{UserID: 1, Outcome: "win", PlayedAt: time.Now(), InitialCardIDs: []int64{cards[0].ID}})
	require.NoError(t, err)

	_, err = games.GetGame(ctx, 2, id)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = games.GetGame(ctx, 1, id+100)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestListGamesOrder(t *testing.T) {
	s := newTestStore(t)
	cards := seedCards(t, s, 3)
	games := NewGameRepository(s)
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	older, err := games.RecordGame(ctx, RecordParams{UserID: 1, Outcome: "win", PlayedAt: base, InitialCardIDs: []int64{cards[0].ID}})
	require.NoError(t, err)
	newer, err := games.RecordGame(ctx, RecordParams{UserID: 1, Outcome: "lose", PlayedAt: base.Add(time.Hour), InitialCardIDs: []int64{cards[1].ID}})
	require.NoError(t, err)
	sameTime, err := games.RecordGame(ctx, RecordParams{UserID: 1, Outcome: "lose", PlayedAt: base.Add(time.Hour)})
	require.NoError(t, err)
	_, err = games.RecordGame(ctx, RecordParams{UserID: 2, Outcome: "lose", PlayedAt: base.Add(2 * time.Hour)})
	require.NoError(t, err)

	list, err := games.ListGames(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []int64{sameTime, newer, older}, []int64{list[0].ID, list[1].ID, list[2].ID})
	assert.Equal(t, 0, list[0].CardsCollected)

	empty, err := games.ListGames(ctx, 99)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

// TestRecordGameIsAtomic fails the card-row insert and checks that the game
// row was rolled back with it.
func TestRecordGameIsAtomic(t *testing.T) {
	s := newTestStore(t)
	cards := seedCards(t, s, 3)
	ctx := context.Background()

	boom := errors.New("card rows rejected")
	require.NoError(t, s.DB.Callback().Create().Before("gorm:create").Register("test:fail_game_cards", func(tx *gorm.DB) {
		if tx.Statement.Table == "game_cards" {
			_ = tx.AddError(boom)
		}
	}))

	_, err := NewGameRepository(s).RecordGame(ctx, RecordParams{
		UserID: 1, Outcome: "win", PlayedAt: time.Now(),
		InitialCardIDs: []int64{cards[0].ID},
		Rounds:         []RoundRow{{CardID: cards[1].ID, Correct: true}},
	})
	require.ErrorIs(t, err, boom)

	var n int64
	require.NoError(t, s.DB.Model(&models.Game{}).Count(&n).Error)
	assert.Zero(t, n, "game row must not survive a failed card insert")
}

func TestUserUpsert(t *testing.T) {
	s := newTestStore(t)
	users := NewUserRepository(s)
	ctx := context.Background()

	require.NoError(t, users.Upsert(ctx, &models.User{Username: "alice", PasswordHash: "h1"}))
	require.NoError(t, users.Upsert(ctx, &models.User{Username: "alice", PasswordHash: "h2"}))

	u, err := users.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "h2", u.PasswordHash)

	byID, err := users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", byID.Username)

	_, err = users.GetByUsername(ctx, "mallory")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
