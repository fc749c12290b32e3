package audit

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements the Store interface on a pgx pool.
// The audit_events table is created by the migrations in migrations/.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a store on an established pool
func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Record appends an event to the trail.
func (s *PostgresStore) Record(ctx context.Context, event *Event) error {
	prepare(event)

	id, err := uuid.Parse(event.ID)
	if err != nil {
		return fmt.Errorf("invalid audit event id %q: %w", event.ID, err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO audit_events (
			id, request_id, operation, outcome,
			subject_hash, label, latency_ms, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		id,
		event.RequestID,
		string(event.Operation),
		string(event.Outcome),
		event.SubjectHash,
		event.Label,
		event.LatencyMS,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	return nil
}

// List returns events with pagination, newest first.
func (s *PostgresStore) List(ctx context.Context, limit, offset int) ([]*Event, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id::text, request_id, operation, outcome,
			subject_hash, label, latency_ms, created_at
		FROM audit_events
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}

	events, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*Event, error) {
		return scanEvent(row)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}
	return events, nil
}

// Count returns the total number of audit events.
func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM audit_events").Scan(&count)
	return count, err
}

// Close is a no-op; the pool belongs to the caller.
func (s *PostgresStore) Close() error {
	return nil
}
