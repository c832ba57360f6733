package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adda-Baaj/notice-watch/internal/app"
	"github.com/Adda-Baaj/notice-watch/internal/config"
	"github.com/Adda-Baaj/notice-watch/internal/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "notice-watch failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.Init(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	logger.InfoObj("notice-watch starting", "config", map[string]any{
		"app_env":      cfg.Env,
		"source_id":    cfg.SourceID,
		"source_url":   cfg.SourceURL,
		"storage_type": cfg.StorageType,
		"schedule":     cfg.Schedule,
		"testing_mode": cfg.TestingMode,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	watcher, err := app.NewWatcher(ctx, cfg, log)
	if err != nil {
		logger.ErrorObj("failed to initialize watcher", "error", err)
		return err
	}

	if err := watcher.Run(ctx); err != nil {
		return fmt.Errorf("watcher run: %w", err)
	}

	return nil
}
