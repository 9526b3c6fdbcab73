// Package db provides PostgreSQL persistence for classification runs,
// the prediction cache tier, and training artifacts.
package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jonathan/style-tagger/internal/types"
)

// Run status values.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// DB wraps a PostgreSQL connection pool
type DB struct {
	pool *pgxpool.Pool
}

// Connect establishes a connection pool to the database
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the connection pool
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// Run represents a classification run record
type Run struct {
	ID           uuid.UUID       `json:"id"`
	DocumentName string          `json:"document_name"`
	Profile      string          `json:"profile"`
	Status       string          `json:"status"`
	Stats        *types.RunStats `json:"stats,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
}

// CreateRun creates a new classification run record and returns its ID
func (db *DB) CreateRun(ctx context.Context, documentName, profile string) (uuid.UUID, error) {
	var id uuid.UUID
	err := db.pool.QueryRow(ctx,
		`INSERT INTO classification_runs (document_name, profile, status)
		 VALUES ($1, $2, $3)
		 RETURNING id`,
		documentName, profile, RunStatusRunning,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create run: %w", err)
	}
	return id, nil
}

// CompleteRun marks a run as finished and stores its summary stats
func (db *DB) CompleteRun(ctx context.Context, runID uuid.UUID, status string, stats *types.RunStats) error {
	var statsJSON []byte
	if stats != nil {
		var err error
		statsJSON, err = json.Marshal(stats)
		if err != nil {
			return fmt.Errorf("failed to marshal run stats: %w", err)
		}
	}

	_, err := db.pool.Exec(ctx,
		`UPDATE classification_runs
		 SET status = $1, stats = $2, completed_at = NOW()
		 WHERE id = $3`,
		status, statsJSON, runID,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID, nil when it does not exist
func (db *DB) GetRun(ctx context.Context, runID uuid.UUID) (*Run, error) {
	var run Run
	var statsJSON []byte
	err := db.pool.QueryRow(ctx,
		`SELECT id, document_name, profile, status, stats, created_at, completed_at
		 FROM classification_runs WHERE id = $1`,
		runID,
	).Scan(&run.ID, &run.DocumentName, &run.Profile, &run.Status, &statsJSON, &run.CreatedAt, &run.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	if len(statsJSON) > 0 {
		var stats types.RunStats
		if err := json.Unmarshal(statsJSON, &stats); err == nil {
			run.Stats = &stats
		}
	}
	return &run, nil
}

// ListRuns retrieves recent runs, newest first
func (db *DB) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.pool.Query(ctx,
		`SELECT id, document_name, profile, status, created_at, completed_at
		 FROM classification_runs ORDER BY created_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		if err := rows.Scan(&run.ID, &run.DocumentName, &run.Profile, &run.Status, &run.CreatedAt, &run.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// SaveResults stores the classification output of a run
func (db *DB) SaveResults(ctx context.Context, runID uuid.UUID, results []types.Classification) error {
	batch := &pgx.Batch{}
	for _, r := range results {
		batch.Queue(
			`INSERT INTO run_results (run_id, paragraph_id, tag, confidence, source, reasoning, zone_adjusted, zone_violation)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 ON CONFLICT (run_id, paragraph_id) DO UPDATE
			 SET tag = $3, confidence = $4, source = $5, reasoning = $6, zone_adjusted = $7, zone_violation = $8`,
			runID, r.ID, r.Tag, r.Confidence, r.Source, r.Reasoning, r.ZoneAdjusted, r.ZoneViolation,
		)
	}

	br := db.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range results {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to save results: %w", err)
		}
	}
	return nil
}

// GetResults retrieves a run's classifications in paragraph order
func (db *DB) GetResults(ctx context.Context, runID uuid.UUID) ([]types.Classification, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT paragraph_id, tag, confidence, source, reasoning, zone_adjusted, zone_violation
		 FROM run_results WHERE run_id = $1 ORDER BY paragraph_id ASC`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get results: %w", err)
	}
	defer rows.Close()

	var results []types.Classification
	for rows.Next() {
		var c types.Classification
		if err := rows.Scan(&c.ID, &c.Tag, &c.Confidence, &c.Source, &c.Reasoning, &c.ZoneAdjusted, &c.ZoneViolation); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		results = append(results, c)
	}
	return results, nil
}
