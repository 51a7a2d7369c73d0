package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"

	"tweetbridge/internal/bot"
	"tweetbridge/internal/config"
	"tweetbridge/internal/scheduler"
	"tweetbridge/internal/sink"
	"tweetbridge/internal/source"
	"tweetbridge/internal/state"
	"tweetbridge/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	store, err := openStore(cfg)
	if err != nil {
		log.Error("open store", "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	reg, err := state.Load(ctx, store)
	if err != nil {
		log.Error("load state", "error", err)
		os.Exit(1)
	}

	api, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		log.Error("create bot api", "error", err)
		os.Exit(1)
	}

	src := source.NewNitter(&http.Client{Timeout: 30 * time.Second}, cfg.NitterBaseURL)

	b := bot.New(api, reg, src, cfg, log)

	sched := scheduler.New(reg, src, sink.NewTelegram(api), log)
	sched.SetTickInterval(cfg.PollInterval)
	sched.SetBackfill(cfg.Backfill)

	log.Info("starting bot", "driver", cfg.StorageDriver, "poll_interval", cfg.PollInterval)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sched.Run(ctx) })
	g.Go(func() error { return b.Run(ctx) })

	if err := g.Wait(); err != nil {
		log.Error("stopping on persistence failure", "error", err)
		os.Exit(1)
	}

	log.Info("bot stopped")
}

func openStore(cfg *config.Config) (storage.Store, error) {
	path := cfg.StatePath
	if cfg.StorageDriver == config.DriverSQLite {
		path = cfg.DatabasePath
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, err
		}
	}

	if cfg.StorageDriver == config.DriverSQLite {
		return storage.NewSQLite(cfg.DatabasePath)
	}
	return storage.NewSnapshot(cfg.StatePath), nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
