// Command server runs the game HTTP service.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/jason-s-yu/badluck/engine"
	"github.com/jason-s-yu/badluck/service/internal/auth"
	"github.com/jason-s-yu/badluck/service/internal/cache"
	"github.com/jason-s-yu/badluck/service/internal/config"
	"github.com/jason-s-yu/badluck/service/internal/database"
	"github.com/jason-s-yu/badluck/service/internal/game"
	"github.com/jason-s-yu/badluck/service/internal/handlers"
	"github.com/jason-s-yu/badluck/service/internal/history"
	"github.com/jason-s-yu/badluck/service/internal/logging"
	"github.com/jason-s-yu/badluck/service/internal/metrics"
	"github.com/jason-s-yu/badluck/service/internal/session"
)

const sweepInterval = time.Minute

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if err := config.LoadDotenvIfPresent(); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	setGinMode(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := database.Open(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		return err
	}

	checks := map[string]handlers.Check{"database": store.Ping}
	var (
		events  game.EventPublisher
		limiter auth.Limiter = auth.NewLocalLimiter(cfg.Auth.LoginRatePerMinute)
	)
	if cfg.Redis.Enabled {
		rdb, err := cache.NewClient(ctx, cfg.Redis.URL)
		if err != nil {
			return err
		}
		defer rdb.Close()
		events = cache.NewEventLog(rdb, cfg.Redis.StreamMaxLen)
		limiter = cache.NewLoginLimiter(rdb, cfg.Auth.LoginRatePerMinute)
		checks["redis"] = redisCheck(rdb)
		logger.Info("redis enabled for round events and login limits")
	}

	rec := metrics.New(prometheus.DefaultRegisterer)
	cards := database.NewCardRepository(store)
	users := database.NewUserRepository(store)
	svc := history.NewService(cards, database.NewGameRepository(store), rec, logger)

	rules := engine.DefaultRules()
	rules.InitialHandSize = cfg.Game.InitialHandSize
	rules.WinCollected = cfg.Game.WinCollected
	rules.MaxMisses = cfg.Game.MaxMisses
	sessions := session.NewManager(game.Options{
		Rules:         rules,
		RoundDuration: cfg.Game.RoundDuration(),
		Cards:         cards,
		Recorder:      svc,
		Events:        events,
		Metrics:       rec,
		Logger:        logger,
	}, session.DefaultTrialTTL)

	tokens := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	secureCookie := allHTTPS(cfg.HTTP.AllowedOrigins)
	router := handlers.NewRouter(handlers.RouterConfig{
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		Logger:         logger,
		Tokens:         tokens,
		Checks:         checks,
		Cards:          handlers.NewCardsHandler(cards, cfg.Game.InitialHandSize),
		History:        handlers.NewHistoryHandler(svc),
		Auth:           handlers.NewAuthHandler(auth.NewAuthenticator(users), tokens, limiter, secureCookie, logger),
		Play:           handlers.NewPlayHandler(sessions, handlers.OriginPatterns(cfg.HTTP.AllowedOrigins), logger),
	})
	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sessions.Run(gctx, sweepInterval)
	})
	g.Go(func() error {
		logger.WithField("addr", server.Addr).Info("http server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("http shutdown failed")
			_ = server.Close()
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}

func redisCheck(rdb *redis.Client) handlers.Check {
	return func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	}
}

func setGinMode(level string) {
	if strings.EqualFold(strings.TrimSpace(level), "debug") {
		gin.SetMode(gin.DebugMode)
		return
	}
	gin.SetMode(gin.ReleaseMode)
}

func allHTTPS(origins []string) bool {
	for _, o := range origins {
		if !strings.HasPrefix(o, "https://") {
			return false
		}
	}
	return len(origins) > 0
}
