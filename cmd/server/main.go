package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/clinical-note-classifier/internal/api"
	"github.com/clinical-note-classifier/internal/app"
	"github.com/clinical-note-classifier/internal/config"
)

func main() {
	// Load configuration
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Wire model, document store, cache and audit trail
	application, err := app.New(ctx, configManager, app.Options{})
	if err != nil {
		log.Fatalf("Startup failed: %v", err)
	}
	defer application.Close()

	cfg := configManager.GetConfig()
	logger := application.Logger
	logger.Infof("Starting clinical note classifier on %s:%d", cfg.Server.Host, cfg.Server.Port)

	server := api.NewServer(configManager, api.Dependencies{
		Predictor:      application.Prediction,
		Discharge:      application.Discharge,
		VocabularySize: application.Prediction.VocabularySize(),
		Logger:         logger,
		Cache:          application.Cache,
		Audit:          application.Audit,
		Breaker:        application.Retriever,
	})

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	// Start server
	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Error("Server failed")
		application.Close()
		os.Exit(1)
	}

	logger.Info("Server stopped")
}
