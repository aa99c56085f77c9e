// Package database owns the relational store: connection setup, schema and
// the repositories for cards, users and recorded games.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/glebarez/sqlite"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/jason-s-yu/badluck/service/internal/config"
	"github.com/jason-s-yu/badluck/service/internal/models"
)

// Store is the handle passed to every repository. It replaces a process-wide
// connection global.
type Store struct {
	DB   *gorm.DB
	pool *pgxpool.Pool
	sql  *sql.DB
}

// Open connects to the configured driver, retrying with exponential backoff
// up to cfg.ConnectAttempts times.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger logrus.FieldLogger) (*Store, error) {
	var store *Store
	attempt := 0
	op := func() error {
		attempt++
		var err error
		switch cfg.Driver {
		case "postgres":
			store, err = openPostgres(ctx, cfg)
		case "sqlite":
			store, err = OpenSQLite(cfg.URL)
		default:
			return backoff.Permanent(fmt.Errorf("unknown driver %q", cfg.Driver))
		}
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	retries := uint64(max(cfg.ConnectAttempts-1, 0))
	notify := func(err error, wait time.Duration) {
		logger.WithFields(logrus.Fields{
			"driver":  cfg.Driver,
			"attempt": attempt,
			"wait":    wait.String(),
		}).WithError(err).Warn("database connect failed, retrying")
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(backoff.WithMaxRetries(b, retries), ctx), notify); err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.Driver, err)
	}
	logger.WithFields(logrus.Fields{"driver": cfg.Driver, "attempts": attempt}).Info("database connected")
	return store, nil
}

func openPostgres(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("parse database url: %w", err))
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	sqlDB := stdlib.OpenDBFromPool(pool)
	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		_ = sqlDB.Close()
		pool.Close()
		return nil, fmt.Errorf("init gorm: %w", err)
	}
	return &Store{DB: gdb, pool: pool, sql: sqlDB}, nil
}

// OpenSQLite opens a sqlite database at dsn. ":memory:" is pinned to a single
// connection so every query sees the same database.
func OpenSQLite(dsn string) (*Store, error) {
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("sqlite handle: %w", err)
	}
	if dsn == ":memory:" {
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
	}
	return &Store{DB: gdb, sql: sqlDB}, nil
}

// Migrate creates or updates the schema.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.DB.WithContext(ctx).AutoMigrate(&models.User{}, &models.Card{}, &models.Game{}, &models.GameCard{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// Ping checks the connection for readiness probes.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.sql == nil {
		return errors.New("database not initialized")
	}
	return s.sql.PingContext(ctx)
}

// Close releases the connection and the pool behind it.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	var err error
	if s.sql != nil {
		err = s.sql.Close()
	}
	if s.pool != nil {
		s.pool.Close()
	}
	return err
}
