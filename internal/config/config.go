// Package config loads process configuration for the deck counter function.
package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"

	"github.com/jacentio/deckcount/counts"
	"github.com/jacentio/deckcount/store"
)

// Config is read once at cold start.
type Config struct {
	// Region is the AWS region of the tables and the stream.
	Region string `env:"DECKCOUNT_REGION" envDefault:"eu-west-1"`

	// Profile is an optional shared config profile (local runs only).
	Profile string `env:"DECKCOUNT_AWS_PROFILE"`

	DecksTable string `env:"DECKCOUNT_DECKS_TABLE" envDefault:"decks"`

	// CardsTable names the stream source. Only used for logging.
	CardsTable string `env:"DECKCOUNT_CARDS_TABLE" envDefault:"flashcards"`

	// MaxDepth bounds a single ancestor walk.
	MaxDepth int `env:"DECKCOUNT_MAX_DEPTH" envDefault:"100"`

	LogLevel string `env:"DECKCOUNT_LOG_LEVEL" envDefault:"info"`
}

// Load parses configuration from environment variables.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.MaxDepth < 1 || cfg.MaxDepth > counts.DefaultMaxDepth {
		return Config{}, fmt.Errorf("invalid DECKCOUNT_MAX_DEPTH %d: must be between 1 and %d",
			cfg.MaxDepth, counts.DefaultMaxDepth)
	}
	return cfg, nil
}

// StoreConfig returns the store configuration.
func (c Config) StoreConfig() store.Config {
	sc := store.DefaultConfig()
	sc.DecksTable = c.DecksTable
	return sc
}

// WalkOptions returns the ancestor walk options.
func (c Config) WalkOptions() counts.Options {
	return counts.Options{MaxDepth: c.MaxDepth}
}

// SlogLevel maps LogLevel to a slog level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
