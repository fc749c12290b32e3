package audit

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/clinical-note-classifier/internal/database"
	"github.com/clinical-note-classifier/internal/domain"
)

// Open builds the store selected by cfg.Driver. The returned closer releases
// everything Open acquired, including the PostgreSQL pool.
func Open(ctx context.Context, cfg domain.AuditConfig, dbCfg domain.DatabaseConfig, logger *logrus.Logger) (Store, func(), error) {
	switch cfg.Driver {
	case "", "none":
		return NoopStore{}, func() {}, nil

	case "sqlite":
		store, err := NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("opening sqlite audit store: %w", err)
		}
		logger.WithField("path", cfg.SQLitePath).Info("SQLite audit store ready")
		return store, func() { store.Close() }, nil

	case "postgres":
		pgCfg := database.ConfigFromDomain(dbCfg)
		if cfg.MigrationsPath != "" {
			if err := database.Migrate(pgCfg.URL(), cfg.MigrationsPath, logger); err != nil {
				return nil, nil, fmt.Errorf("migrating audit schema: %w", err)
			}
		}

		db, err := database.NewConnection(ctx, pgCfg, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting audit database: %w", err)
		}
		store, err := NewPostgresStore(ctx, db.Pool)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		return store, db.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown audit driver %q", cfg.Driver)
	}
}
