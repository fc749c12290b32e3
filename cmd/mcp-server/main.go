package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/clinical-note-classifier/internal/app"
	"github.com/clinical-note-classifier/internal/config"
	"github.com/clinical-note-classifier/internal/mcp"
	"github.com/clinical-note-classifier/internal/setup"
)

func main() {
	// Check for setup subcommand
	if len(os.Args) > 1 && os.Args[1] == "setup" {
		cli := setup.NewCLI(os.Stdin, os.Stdout)
		if err := cli.Run(os.Args[2:]); err != nil {
			log.Fatalf("Setup failed: %v", err)
		}
		return
	}

	// stdout carries protocol frames; keep the standard logger off it
	log.SetOutput(os.Stderr)

	// Load configuration
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	application, err := app.New(ctx, configManager, app.Options{StdoutReserved: true})
	if err != nil {
		log.Fatalf("Startup failed: %v", err)
	}
	defer application.Close()

	logger := application.Logger

	// Create MCP server
	mcpServer, err := mcp.NewServer(configManager, application.Prediction, application.Discharge, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to create MCP server")
		application.Close()
		os.Exit(1)
	}

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down MCP server...")
		cancel()
	}()

	// Start MCP server
	if err := mcpServer.Start(ctx); err != nil && ctx.Err() == nil {
		logger.WithError(err).Error("MCP server failed")
		application.Close()
		os.Exit(1)
	}

	logger.Info("Clinical note classifier MCP server stopped")
}
