// Command seed loads the card catalog and the demo users.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/badluck/service/internal/auth"
	"github.com/jason-s-yu/badluck/service/internal/config"
	"github.com/jason-s-yu/badluck/service/internal/database"
	"github.com/jason-s-yu/badluck/service/internal/deck"
	"github.com/jason-s-yu/badluck/service/internal/logging"
	"github.com/jason-s-yu/badluck/service/internal/models"
)

func main() {
	deckPath := flag.String("deck", "", "YAML catalog to load instead of the built-in deck")
	usernames := flag.String("users", "alice,bob", "comma separated users to create; empty skips users")
	password := flag.String("password", "test123", "password given to every seeded user")
	flag.Parse()

	if err := run(*deckPath, *usernames, *password); err != nil {
		fmt.Fprintf(os.Stderr, "seed: %v\n", err)
		os.Exit(1)
	}
}

func run(deckPath, usernames, password string) error {
	if err := config.LoadDotenvIfPresent(); err != nil {
		return err
	}
	dbCfg, err := config.LoadDatabase()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(config.LogConfig{Level: "info", Format: "text"})
	if err != nil {
		return err
	}

	cards, err := loadDeck(deckPath)
	if err != nil {
		return err
	}

	ctx := context.Background()
	store, err := database.Open(ctx, dbCfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		return err
	}

	if err := database.NewCardRepository(store).ReplaceAll(ctx, cards); err != nil {
		return err
	}
	logger.WithField("cards", len(cards)).Info("catalog seeded")

	users := database.NewUserRepository(store)
	for _, name := range strings.Split(usernames, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		hash, err := auth.HashPassword(password)
		if err != nil {
			return err
		}
		if err := users.Upsert(ctx, &models.User{Username: name, PasswordHash: hash}); err != nil {
			return err
		}
		logger.WithFields(logrus.Fields{"username": name}).Info("user seeded")
	}
	return nil
}

func loadDeck(path string) ([]models.Card, error) {
	if path == "" {
		return deck.Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read deck: %w", err)
	}
	return deck.Parse(data)
}
