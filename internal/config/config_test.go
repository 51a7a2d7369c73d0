package config

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

var allVars = []string{
	"TELEGRAM_BOT_TOKEN", "NITTER_BASE_URL", "STORAGE_DRIVER", "STATE_PATH",
	"DATABASE_PATH", "POLL_INTERVAL", "BACKFILL_ON_SUBSCRIBE", "LOG_LEVEL",
	"ALLOWED_USERS",
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		want    *Config
		wantErr bool
	}{
		{
			name:    "missing token",
			env:     map[string]string{},
			wantErr: true,
		},
		{
			name: "token only, defaults applied",
			env:  map[string]string{"TELEGRAM_BOT_TOKEN": "test-token"},
			want: &Config{
				TelegramBotToken: "test-token",
				NitterBaseURL:    "https://nitter.net",
				StorageDriver:    DriverFile,
				StatePath:        "./data/state.json",
				DatabasePath:     "./data/bot.db",
				PollInterval:     60 * time.Second,
				LogLevel:         "info",
			},
		},
		{
			name: "all values set",
			env: map[string]string{
				"TELEGRAM_BOT_TOKEN":    "tok",
				"NITTER_BASE_URL":       "https://nitter.example.org/",
				"STORAGE_DRIVER":        "sqlite",
				"DATABASE_PATH":         "/tmp/bot.db",
				"POLL_INTERVAL":         "120",
				"BACKFILL_ON_SUBSCRIBE": "true",
				"LOG_LEVEL":             "debug",
				"ALLOWED_USERS":         "111,222,333",
			},
			want: &Config{
				TelegramBotToken: "tok",
				NitterBaseURL:    "https://nitter.example.org",
				StorageDriver:    DriverSQLite,
				StatePath:        "./data/state.json",
				DatabasePath:     "/tmp/bot.db",
				PollInterval:     120 * time.Second,
				Backfill:         true,
				LogLevel:         "debug",
				AllowedUsers:     []int64{111, 222, 333},
			},
		},
		{
			name: "invalid storage driver",
			env: map[string]string{
				"TELEGRAM_BOT_TOKEN": "tok",
				"STORAGE_DRIVER":     "postgres",
			},
			wantErr: true,
		},
		{
			name: "poll interval out of range",
			env: map[string]string{
				"TELEGRAM_BOT_TOKEN": "tok",
				"POLL_INTERVAL":      "2",
			},
			wantErr: true,
		},
		{
			name: "invalid backfill flag",
			env: map[string]string{
				"TELEGRAM_BOT_TOKEN":    "tok",
				"BACKFILL_ON_SUBSCRIBE": "maybe",
			},
			wantErr: true,
		},
		{
			name: "invalid user id",
			env: map[string]string{
				"TELEGRAM_BOT_TOKEN": "tok",
				"ALLOWED_USERS":      "123,abc",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range allVars {
				t.Setenv(key, "")
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			got, err := Load()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Load mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestIsUserAllowed(t *testing.T) {
	tests := []struct {
		name    string
		allowed []int64
		userID  int64
		want    bool
	}{
		{name: "empty list permits everyone", userID: 42, want: true},
		{name: "listed user", allowed: []int64{1, 2}, userID: 2, want: true},
		{name: "unlisted user", allowed: []int64{1, 2}, userID: 3, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{AllowedUsers: tt.allowed}
			if got := cfg.IsUserAllowed(tt.userID); got != tt.want {
				t.Errorf("IsUserAllowed(%d) = %v, want %v", tt.userID, got, tt.want)
			}
		})
	}
}
