// Package config loads server configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config is everything the server needs to start.
type Config struct {
	Port       int
	DBPath     string
	JWTSecret  string
	BadgeURL   string // external badge renderer base URL
	LogLevel   slog.Level
	BcryptCost int // 0 means the auth package default
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first if present; real environment variables win over
// its contents.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Port:     8080,
		DBPath:   "data/pulse.db",
		BadgeURL: "https://img.shields.io/badge",
		LogLevel: slog.LevelInfo,
	}

	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: invalid PORT %q: %w", v, err)
		}
		cfg.Port = port
	}

	if v := os.Getenv("DB_PATH"); v != "" {
		cfg.DBPath = v
	}

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("config: JWT_SECRET is required")
	}

	if v := os.Getenv("BADGE_URL"); v != "" {
		cfg.BadgeURL = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		var level slog.Level
		if err := level.UnmarshalText([]byte(v)); err != nil {
			return Config{}, fmt.Errorf("config: invalid LOG_LEVEL %q: %w", v, err)
		}
		cfg.LogLevel = level
	}

	if v := os.Getenv("BCRYPT_COST"); v != "" {
		cost, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: invalid BCRYPT_COST %q: %w", v, err)
		}
		cfg.BcryptCost = cost
	}

	return cfg, nil
}
