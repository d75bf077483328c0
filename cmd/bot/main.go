package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/ytgrab/ytgrab-bot/internal/api"
	"github.com/ytgrab/ytgrab-bot/internal/api/handler"
	"github.com/ytgrab/ytgrab-bot/internal/bot"
	"github.com/ytgrab/ytgrab-bot/internal/config"
	"github.com/ytgrab/ytgrab-bot/internal/janitor"
	"github.com/ytgrab/ytgrab-bot/internal/media"
	"github.com/ytgrab/ytgrab-bot/internal/repository"
	"github.com/ytgrab/ytgrab-bot/internal/session"
	"github.com/ytgrab/ytgrab-bot/internal/telegram"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("ytgrab-bot %s (built %s)\n", Version, BuildTime)
		os.Exit(0)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("starting ytgrab-bot",
		"version", Version,
		"build_time", BuildTime,
	)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(cfg.Storage.TempPath, 0755); err != nil {
		logger.Error("failed to create temp directory", "error", err)
		os.Exit(1)
	}

	// Clear leftovers from a previous run before taking new work.
	jan := janitor.New(cfg.Storage.TempPath, cfg.Storage.Retention, logger)
	jan.Sweep(nil)

	registry := session.NewRegistry(logger)
	extractor := media.NewExtractor(cfg.Media, cfg.Storage, logger)

	history, err := repository.NewSQLiteHistory(cfg.History.SQLitePath)
	if err != nil {
		logger.Error("failed to open history store", "error", err)
		os.Exit(1)
	}
	defer history.Close()

	transport, err := telegram.NewTransport(cfg.Telegram.Token, logger)
	if err != nil {
		logger.Error("failed to connect to bot API", "error", err)
		os.Exit(1)
	}
	logger.Info("authorized", "username", transport.Username())

	shuttingDown := &atomic.Bool{}

	orch := bot.NewOrchestrator(registry, extractor, transport, history, jan,
		cfg.Storage.MaxFileSize, cfg.Telegram.MaxMessageLength, cfg.Telegram.ChannelURL, logger)
	b := bot.New(transport, registry, extractor, orch, history, jan,
		cfg.Storage.MaxFileSize, cfg.Telegram.ChannelURL, shuttingDown, logger)

	healthHandler := handler.NewHealthHandler(registry, shuttingDown)
	router := api.NewRouter(healthHandler, logger)

	srv := &http.Server{
		Addr:         cfg.Health.Address(),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting health server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("health server error", "error", err)
			os.Exit(1)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go jan.Run(ctx, cfg.Storage.SweepEvery)

	updates := transport.Updates(cfg.Telegram.PollTimeout)
	botDone := make(chan struct{})
	go func() {
		defer close(botDone)
		b.Run(ctx, updates)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	// Refuse new work, stop polling, then cancel in-flight tasks.
	shuttingDown.Store(true)
	transport.StopUpdates()
	cancel()
	<-botDone

	registry.TeardownAll()
	jan.Sweep(nil)

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("health server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}
