// Package config loads service settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr string

	PushURL     string
	PushEnabled bool

	PollURL      string
	PollInterval time.Duration

	ReconnectDelay time.Duration
	MaxReconnects  int
	MaxRound       int

	UpstreamRPM int
	HTTPTimeout time.Duration

	LogLevel string
	Dev      bool

	// Optional; the score archive is disabled when empty.
	DatabaseURL string
}

func Load() Config {
	return Config{
		Addr:           env("LIVESCORE_ADDR", ":8080"),
		PushURL:        env("LIVESCORE_PUSH_URL", "wss://hltv-score-service.example.com"),
		PushEnabled:    envBool("LIVESCORE_PUSH_ENABLED", true),
		PollURL:        env("LIVESCORE_POLL_URL", "https://hltv-api.vercel.app"),
		PollInterval:   envDuration("LIVESCORE_POLL_INTERVAL", 10*time.Second),
		ReconnectDelay: envDuration("LIVESCORE_RECONNECT_DELAY", 3*time.Second),
		MaxReconnects:  envInt("LIVESCORE_MAX_RECONNECTS", 5),
		MaxRound:       envInt("LIVESCORE_MAX_ROUND", 50),
		UpstreamRPM:    envInt("LIVESCORE_UPSTREAM_RPM", 120),
		HTTPTimeout:    envDuration("LIVESCORE_HTTP_TIMEOUT", 10*time.Second),
		LogLevel:       env("LIVESCORE_LOG_LEVEL", "info"),
		Dev:            envBool("LIVESCORE_DEV", false),
		DatabaseURL:    env("DATABASE_URL", ""),
	}
}

// LoadDotEnv loads the given files into the environment without overriding
// variables that are already set. Missing files are skipped.
func LoadDotEnv(files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
