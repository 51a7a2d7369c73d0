// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Storage driver names.
const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
)

// Config holds the application configuration.
type Config struct {
	TelegramBotToken string
	NitterBaseURL    string
	StorageDriver    string
	StatePath        string
	DatabasePath     string
	PollInterval     time.Duration
	Backfill         bool
	LogLevel         string
	AllowedUsers     []int64
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	baseURL := os.Getenv("NITTER_BASE_URL")
	if baseURL == "" {
		baseURL = "https://nitter.net"
	}
	baseURL = strings.TrimRight(baseURL, "/")

	driver := os.Getenv("STORAGE_DRIVER")
	if driver == "" {
		driver = DriverFile
	}
	if driver != DriverFile && driver != DriverSQLite {
		return nil, fmt.Errorf("invalid STORAGE_DRIVER %q, use: file, sqlite", driver)
	}

	statePath := os.Getenv("STATE_PATH")
	if statePath == "" {
		statePath = "./data/state.json"
	}

	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		dbPath = "./data/bot.db"
	}

	interval := 60 * time.Second
	if raw := os.Getenv("POLL_INTERVAL"); raw != "" {
		secs, err := strconv.Atoi(raw)
		if err != nil || secs < 5 || secs > 3600 {
			return nil, fmt.Errorf("POLL_INTERVAL must be between 5 and 3600 seconds")
		}
		interval = time.Duration(secs) * time.Second
	}

	backfill := false
	if raw := os.Getenv("BACKFILL_ON_SUBSCRIBE"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid BACKFILL_ON_SUBSCRIBE %q: %w", raw, err)
		}
		backfill = v
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	var allowedUsers []int64
	if raw := os.Getenv("ALLOWED_USERS"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			uid, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid user ID %q in ALLOWED_USERS: %w", s, err)
			}
			allowedUsers = append(allowedUsers, uid)
		}
	}

	return &Config{
		TelegramBotToken: token,
		NitterBaseURL:    baseURL,
		StorageDriver:    driver,
		StatePath:        statePath,
		DatabasePath:     dbPath,
		PollInterval:     interval,
		Backfill:         backfill,
		LogLevel:         logLevel,
		AllowedUsers:     allowedUsers,
	}, nil
}

// IsUserAllowed checks whether a user ID is in the allow list.
// Returns true if the allow list is empty (all users permitted).
func (c *Config) IsUserAllowed(userID int64) bool {
	if len(c.AllowedUsers) == 0 {
		return true
	}
	for _, id := range c.AllowedUsers {
		if id == userID {
			return true
		}
	}
	return false
}
