package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LoadDotenvIfPresent loads each path that exists. Missing files are skipped;
// variables already set in the environment win.
func LoadDotenvIfPresent(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("stat dotenv %s: %w", path, err)
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load dotenv %s: %w", path, err)
		}
	}
	return nil
}

func lookup(key string) (string, bool) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	raw = strings.TrimSpace(raw)
	return raw, raw != ""
}

// StringFromEnv returns the trimmed value of key, or def when unset or blank.
func StringFromEnv(key, def string) string {
	if v, ok := lookup(key); ok {
		return v
	}
	return def
}

// IntFromEnv parses key as a base-10 int.
func IntFromEnv(key string, def int) (int, error) {
	raw, ok := lookup(key)
	if !ok {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid int env %s=%q: %w", key, raw, err)
	}
	return v, nil
}

// BoolFromEnv parses key with strconv.ParseBool.
func BoolFromEnv(key string, def bool) (bool, error) {
	raw, ok := lookup(key)
	if !ok {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid bool env %s=%q: %w", key, raw, err)
	}
	return v, nil
}

// DurationSecondsFromEnv reads a whole number of seconds.
func DurationSecondsFromEnv(key string, defSeconds int) (time.Duration, error) {
	secs, err := IntFromEnv(key, defSeconds)
	if err != nil {
		return 0, err
	}
	if secs < 0 {
		return 0, fmt.Errorf("invalid duration env %s=%d", key, secs)
	}
	return time.Duration(secs) * time.Second, nil
}

// ListFromEnv splits a comma separated value, dropping blanks.
func ListFromEnv(key string, def []string) []string {
	raw, ok := lookup(key)
	if !ok {
		return def
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
