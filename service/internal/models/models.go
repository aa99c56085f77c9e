// Package models holds the persisted rows and the views returned by the API.
package models

import (
	"time"

	"github.com/jason-s-yu/badluck/engine"
)

// HistoryDateLayout is the display format of GameSummary.Date.
const HistoryDateLayout = "2006-01-02 15:04:05"

// Card is a catalog entry. BadLuckIndex is unique across the catalog.
type Card struct {
	ID           int64   `gorm:"primaryKey" json:"id"`
	Name         string  `gorm:"not null" json:"name"`
	ImageURL     string  `gorm:"column:image_url;not null" json:"imageUrl"`
	BadLuckIndex float64 `gorm:"not null;uniqueIndex" json:"badLuckIndex"`
	Theme        string  `gorm:"not null" json:"theme"`
}

// ToEngine converts the row to the rules type.
func (c Card) ToEngine() engine.Card {
	return engine.Card{ID: c.ID, Name: c.Name, ImageURL: c.ImageURL, BadLuckIndex: c.BadLuckIndex, Theme: c.Theme}
}

// CardFromEngine converts back for responses.
func CardFromEngine(c engine.Card) Card {
	return Card{ID: c.ID, Name: c.Name, ImageURL: c.ImageURL, BadLuckIndex: c.BadLuckIndex, Theme: c.Theme}
}

// PublicCard is a card with its index hidden, shown while a round is live.
type PublicCard struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	ImageURL string `json:"imageUrl"`
}

func (c Card) Public() PublicCard {
	return PublicCard{ID: c.ID, Name: c.Name, ImageURL: c.ImageURL}
}

type User struct {
	ID           int64  `gorm:"primaryKey" json:"id"`
	Username     string `gorm:"not null;uniqueIndex" json:"username"`
	PasswordHash string `gorm:"not null" json:"-"`
}

// Game is the summary row written once when a game ends.
type Game struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	UserID    int64     `gorm:"not null;index" json:"userId"`
	Outcome   string    `gorm:"not null" json:"outcome"`
	PlayedAt  time.Time `gorm:"not null;index" json:"-"`
	MissCount int       `gorm:"not null" json:"missCount"`

	Cards []GameCard `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// GameCard links a game to a card. RoundNumber is nil for initial-hand cards.
type GameCard struct {
	ID            int64 `gorm:"primaryKey"`
	GameID        int64 `gorm:"not null;index"`
	CardID        int64 `gorm:"not null"`
	Won           bool  `gorm:"not null"`
	RoundNumber   *int
	IsInitialCard bool `gorm:"not null"`

	Card Card `gorm:"foreignKey:CardID"`
}

// GameSummary is one entry of a user's history list.
type GameSummary struct {
	ID             int64  `json:"id"`
	Date           string `json:"date"`
	Outcome        string `json:"outcome"`
	CardsCollected int    `json:"cardsCollected"`
}

// GameView is the game header inside GameDetail.
type GameView struct {
	ID        int64  `json:"id"`
	UserID    int64  `json:"userId"`
	Outcome   string `json:"outcome"`
	Date      string `json:"date"`
	MissCount int    `json:"missCount"`
}

// DetailCard is one card row of a game detail.
type DetailCard struct {
	ID            int64   `json:"id"`
	Name          string  `json:"name"`
	ImageURL      string  `json:"imageUrl"`
	BadLuckIndex  float64 `json:"badLuckIndex"`
	IsInitialCard bool    `json:"isInitialCard"`
	Won           bool    `json:"won"`
	RoundNumber   *int    `json:"roundNumber"`
}

type GameDetail struct {
	Game  GameView     `json:"game"`
	Cards []DetailCard `json:"cards"`
}

// FormatDate renders t the way history lists show it, in UTC.
func FormatDate(t time.Time) string {
	return t.UTC().Format(HistoryDateLayout)
}

func (g Game) View() GameView {
	return GameView{ID: g.ID, UserID: g.UserID, Outcome: g.Outcome, Date: FormatDate(g.PlayedAt), MissCount: g.MissCount}
}
