package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"moviebox/internal/clients/metadata"
	"moviebox/internal/config"
	"moviebox/internal/core"
	"moviebox/internal/handlers"
	"moviebox/internal/utils"

	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	configPath := flag.String("config", "config.yml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid configuration: ", err)
	}

	if err := os.MkdirAll(cfg.App.DataPath, 0o755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	// Log to both console and a rotated file
	logFile := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.App.DataPath, "moviebox.log"),
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     28,
	}
	defer logFile.Close()
	logger := utils.NewLogger(cfg.App.Debug, logFile)

	client := metadata.NewTMDBClient(metadata.TMDBOptions{
		BaseURL:       cfg.Metadata.BaseURL,
		APIKey:        cfg.Metadata.TMDB.APIKey,
		Language:      cfg.Metadata.Language,
		Timeout:       cfg.Metadata.Timeout,
		RetryAttempts: cfg.Metadata.RetryAttempts,
		RetryDelay:    cfg.Metadata.RetryDelay,
	}, logger)

	// Create manager
	manager := core.NewManager(cfg, client, logger)

	// Start web server
	server := handlers.NewServer(cfg, manager, logger)

	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed to start:", err)
		}
	}()

	if err := manager.StartScheduler(); err != nil {
		logger.Fatal("Failed to start scheduler:", err)
	}

	logger.Info("Moviebox started on port", cfg.App.Port, "- language", cfg.Metadata.Language, "- download mode", cfg.Download.Mode)

	// Wait for interrupt
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	logger.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	manager.Stop()
	if err := server.Stop(ctx); err != nil {
		logger.Error("Server shutdown failed:", err)
	}
}
