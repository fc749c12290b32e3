// Package app assembles the classifier, the document store client, the cache
// and the audit trail from configuration. Both binaries start from here.
package app

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/clinical-note-classifier/internal/audit"
	"github.com/clinical-note-classifier/internal/cache"
	"github.com/clinical-note-classifier/internal/config"
	"github.com/clinical-note-classifier/internal/logging"
	"github.com/clinical-note-classifier/internal/nlp"
	"github.com/clinical-note-classifier/internal/service"
	"github.com/clinical-note-classifier/pkg/external"
)

// Options tweaks assembly per binary
type Options struct {
	// StdoutReserved redirects stdout logging to stderr; set by the stdio MCP
	// server, whose stdout carries protocol frames.
	StdoutReserved bool
}

// App holds the wired services and everything that must be released on exit
type App struct {
	Config     *config.Manager
	Logger     *logrus.Logger
	Model      *nlp.Model
	Prediction *service.PredictionService
	Discharge  *service.DischargeService

	// Cache, Audit and Retriever back the health report
	Cache     cache.PredictionCache
	Audit     audit.Store
	Retriever *external.ResilientDocumentRetriever

	closers []func()
}

// New validates configuration and builds every component. A model that fails
// to load aborts startup; cache and audit backends degrade where they can.
func New(ctx context.Context, configManager *config.Manager, opts Options) (*App, error) {
	if err := configManager.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	cfg := configManager.GetConfig()

	logCfg := cfg.Logging
	if opts.StdoutReserved && (logCfg.Output == "" || logCfg.Output == "stdout") {
		logCfg.Output = "stderr"
	}
	logger, err := logging.New(logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	configManager.WatchLogLevel(logger)

	a := &App{Config: configManager, Logger: logger}
	a.closers = append(a.closers, func() { logging.Close(logger) })

	model, err := nlp.LoadModel(cfg.Model.VectorizerPath, cfg.Model.ClassifierPath)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to load model: %w", err)
	}
	a.Model = model
	logger.WithFields(logrus.Fields{
		"vectorizer": cfg.Model.VectorizerPath,
		"classifier": cfg.Model.ClassifierPath,
		"vocabulary": model.Dimension(),
	}).Info("Model loaded")

	predictionCache, err := cache.New(cfg.Cache, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create prediction cache: %w", err)
	}
	a.closers = append(a.closers, func() { predictionCache.Close() })
	a.Cache = predictionCache

	auditStore, closeAudit, err := audit.Open(ctx, cfg.Audit, cfg.Database, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to open audit store: %w", err)
	}
	a.closers = append(a.closers, closeAudit)
	a.Audit = auditStore

	a.Prediction, err = service.NewPredictionService(model, predictionCache, auditStore, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	fhirClient := external.NewFHIRClient(cfg.DocumentStore, logger)
	a.Retriever = external.NewResilientDocumentRetriever(fhirClient, cfg.DocumentStore.CircuitBreaker, logger)
	a.Discharge, err = service.NewDischargeService(a.Retriever, cfg.DocumentStore.Timeout, auditStore, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	return a, nil
}

// Close releases resources in reverse acquisition order
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
