// Package config loads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"time"
)

type HTTPConfig struct {
	Addr            string
	AllowedOrigins  []string
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Driver          string // "postgres" or "sqlite"
	URL             string
	MaxConns        int
	ConnectAttempts int
}

type RedisConfig struct {
	Enabled      bool
	URL          string
	StreamMaxLen int64
}

type AuthConfig struct {
	JWTSecret          string
	TokenTTL           time.Duration
	LoginRatePerMinute int
}

type GameConfig struct {
	RoundSeconds    int
	InitialHandSize int
	WinCollected    int
	MaxMisses       int
}

// RoundDuration is the countdown given to each round.
func (g GameConfig) RoundDuration() time.Duration {
	return time.Duration(g.RoundSeconds) * time.Second
}

type LogConfig struct {
	Level      string
	Format     string // "json" or "text"
	Dir        string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Config is the full service configuration.
type Config struct {
	HTTP     HTTPConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Game     GameConfig
	Log      LogConfig
}

// Load reads every setting from the environment and validates the result.
func Load() (*Config, error) {
	var errs []error
	intEnv := func(key string, def int) int {
		v, err := IntFromEnv(key, def)
		errs = append(errs, err)
		return v
	}
	durEnv := func(key string, def int) time.Duration {
		v, err := DurationSecondsFromEnv(key, def)
		errs = append(errs, err)
		return v
	}
	redisEnabled, err := BoolFromEnv("REDIS_ENABLED", false)
	errs = append(errs, err)

	cfg := &Config{
		HTTP: HTTPConfig{
			Addr:            StringFromEnv("HTTP_ADDR", ":3001"),
			AllowedOrigins:  ListFromEnv("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
			ShutdownTimeout: durEnv("HTTP_SHUTDOWN_TIMEOUT_SECONDS", 10),
		},
		Database: DatabaseConfig{
			Driver:          StringFromEnv("DB_DRIVER", "sqlite"),
			URL:             StringFromEnv("DATABASE_URL", "badluck.db"),
			MaxConns:        intEnv("DB_MAX_CONNS", 10),
			ConnectAttempts: intEnv("DB_CONNECT_ATTEMPTS", 5),
		},
		Redis: RedisConfig{
			Enabled:      redisEnabled,
			URL:          StringFromEnv("REDIS_URL", "redis://localhost:6379/0"),
			StreamMaxLen: int64(intEnv("REDIS_STREAM_MAXLEN", 500)),
		},
		Auth: AuthConfig{
			JWTSecret:          StringFromEnv("JWT_SECRET", ""),
			TokenTTL:           durEnv("JWT_TTL_SECONDS", 24*60*60),
			LoginRatePerMinute: intEnv("LOGIN_RATE_PER_MINUTE", 10),
		},
		Game: GameConfig{
			RoundSeconds:    intEnv("GAME_ROUND_SECONDS", 30),
			InitialHandSize: intEnv("GAME_INITIAL_HAND_SIZE", 3),
			WinCollected:    intEnv("GAME_WIN_COLLECTED", 6),
			MaxMisses:       intEnv("GAME_MAX_MISSES", 3),
		},
		Log: LogConfig{
			Level:      StringFromEnv("LOG_LEVEL", "info"),
			Format:     StringFromEnv("LOG_FORMAT", "text"),
			Dir:        StringFromEnv("LOG_DIR", ""),
			MaxSizeMB:  intEnv("LOG_MAX_SIZE_MB", 50),
			MaxBackups: intEnv("LOG_MAX_BACKUPS", 5),
			MaxAgeDays: intEnv("LOG_MAX_AGE_DAYS", 14),
		},
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDatabase reads only the database settings, for tools that never serve
// HTTP and have no JWT secret.
func LoadDatabase() (DatabaseConfig, error) {
	maxConns, err1 := IntFromEnv("DB_MAX_CONNS", 10)
	attempts, err2 := IntFromEnv("DB_CONNECT_ATTEMPTS", 5)
	if err := errors.Join(err1, err2); err != nil {
		return DatabaseConfig{}, err
	}
	d := DatabaseConfig{
		Driver:          StringFromEnv("DB_DRIVER", "sqlite"),
		URL:             StringFromEnv("DATABASE_URL", "badluck.db"),
		MaxConns:        maxConns,
		ConnectAttempts: attempts,
	}
	return d, d.Validate()
}

func (d DatabaseConfig) Validate() error {
	switch d.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unknown DB_DRIVER %q", d.Driver)
	}
	if d.URL == "" {
		return errors.New("DATABASE_URL is required")
	}
	if d.ConnectAttempts <= 0 {
		return fmt.Errorf("DB_CONNECT_ATTEMPTS must be positive, got %d", d.ConnectAttempts)
	}
	return nil
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	if err := c.Database.Validate(); err != nil {
		return err
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("JWT_TTL_SECONDS must be positive")
	}
	if c.Auth.LoginRatePerMinute <= 0 {
		return fmt.Errorf("LOGIN_RATE_PER_MINUTE must be positive, got %d", c.Auth.LoginRatePerMinute)
	}
	g := c.Game
	if g.RoundSeconds <= 0 || g.InitialHandSize <= 0 || g.WinCollected <= 0 || g.MaxMisses <= 0 {
		return fmt.Errorf("game thresholds must be positive: round=%ds hand=%d win=%d misses=%d",
			g.RoundSeconds, g.InitialHandSize, g.WinCollected, g.MaxMisses)
	}
	return nil
}
