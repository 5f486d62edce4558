package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"towerwatch/internal/api"
	"towerwatch/internal/classify"
	"towerwatch/internal/config"
	"towerwatch/internal/model"
	"towerwatch/internal/notify"
	"towerwatch/internal/poller"
	"towerwatch/internal/roster"
	"towerwatch/internal/status"
	"towerwatch/internal/store"
	"towerwatch/internal/vatsim"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			log.Error("create data directory", "path", dir, "error", err)
			os.Exit(1)
		}
	}

	st, err := store.NewSQLite(cfg.DatabasePath)
	if err != nil {
		log.Error("open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer func() { _ = st.Close() }()

	rules := classify.Compile(cfg.Patterns, log)
	fetcher := vatsim.New(http.DefaultClient, cfg.FeedURL)
	resolver := roster.New(http.DefaultClient, cfg.RosterURL, cfg.RosterTTL, log)
	cache := status.NewCache(fetcher, rules, resolver, log)

	dispatcher := notify.NewDispatcher(rules, buildChannels(cfg, log), log)
	p := poller.New(cache, st, dispatcher, cfg.Operator(), cfg.CheckInterval, log)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.NewServer(cache, cfg.CacheMaxAge, cfg.FacilityName, log).Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("starting watcher", "feed", cfg.FeedURL, "interval", cfg.CheckInterval, "listen", cfg.ListenAddr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("status api server", "error", err)
			cancel()
		}
	}()

	p.Run(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown status api", "error", err)
	}

	log.Info("watcher stopped")
}

func buildChannels(cfg *config.Config, log *slog.Logger) map[model.ChannelKind]notify.Channel {
	channels := map[model.ChannelKind]notify.Channel{
		model.ChannelPushover: notify.PushoverChannel{},
	}
	if cfg.SendGridAPIKey != "" && cfg.MailFrom != "" {
		channels[model.ChannelEmail] = notify.NewEmailChannel(cfg.SendGridAPIKey, cfg.MailFrom)
	}
	if cfg.TelegramBotToken != "" {
		tg, err := notify.NewTelegramChannel(cfg.TelegramBotToken)
		if err != nil {
			log.Warn("telegram channel disabled", "error", err)
		} else {
			channels[model.ChannelTelegram] = tg
		}
	}
	return channels
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
