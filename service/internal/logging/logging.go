// Package logging builds the service logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/jason-s-yu/badluck/service/internal/config"
)

const logFileName = "badluck.log"

// New returns a logrus logger writing to stdout and, when cfg.Dir is set, to a
// rotating file as well.
func New(cfg config.LogConfig) (*logrus.Logger, error) {
	logger := logrus.New()

	level, err := logrus.ParseLevel(strings.TrimSpace(cfg.Level))
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}
	logger.SetLevel(level)

	if strings.EqualFold(cfg.Format, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339})
	}

	var out io.Writer = os.Stdout
	if dir := strings.TrimSpace(cfg.Dir); dir != "" {
		if cfg.MaxSizeMB <= 0 || cfg.MaxBackups <= 0 || cfg.MaxAgeDays <= 0 {
			return nil, fmt.Errorf("invalid log rotation: size=%d backups=%d age_days=%d", cfg.MaxSizeMB, cfg.MaxBackups, cfg.MaxAgeDays)
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   filepath.Join(dir, logFileName),
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		})
	}
	logger.SetOutput(out)
	return logger, nil
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// RequestLogger logs one line per HTTP request. Health probes are only logged
// when they fail.
func RequestLogger(logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		c.Next()

		status := c.Writer.Status()
		if status < 400 && strings.HasPrefix(path, "/health") {
			return
		}
		entry := logger.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    path,
			"status":  status,
			"latency": time.Since(start).String(),
			"ip":      c.ClientIP(),
		})
		if len(c.Errors) > 0 {
			entry = entry.WithField("errors", c.Errors.String())
		}
		switch {
		case status >= 500:
			entry.Error("http request")
		case status >= 400:
			entry.Warn("http request")
		default:
			entry.Debug("http request")
		}
	}
}
