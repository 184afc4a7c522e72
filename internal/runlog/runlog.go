// Package runlog provides persistent history of agent runs. Records
// are append-only and indexed by timestamp and backend for the run
// history API and A/B comparison over time.
package runlog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Record is one completed agent run.
type Record struct {
	ID               string    `json:"id"`
	Timestamp        time.Time `json:"timestamp"`
	Kind             string    `json:"kind"` // "repair" or "chat"
	Backend          string    `json:"backend"`
	Model            string    `json:"model"`
	Task             string    `json:"task"`
	Success          bool      `json:"success"`
	StopReason       string    `json:"stop_reason"`
	Iterations       int       `json:"iterations"`
	ToolCalls        int       `json:"tool_calls"`
	LatencySeconds   float64   `json:"latency_seconds"`
	TotalTokens      int       `json:"total_tokens"`
	FinalStatus      string    `json:"final_status"`
	FeedbackRating   string    `json:"feedback_rating"`
	FeedbackCategory string    `json:"feedback_category"`
}

// Summary holds aggregated run totals.
type Summary struct {
	TotalRuns      int     `json:"total_runs"`
	SuccessfulRuns int     `json:"successful_runs"`
	TotalTokens    int64   `json:"total_tokens"`
	AvgLatency     float64 `json:"avg_latency_seconds"`
}

// Store is an append-only SQLite store for run records. All public
// methods are safe for concurrent use (SQLite serializes writes).
type Store struct {
	db *sql.DB
}

// Open creates a run log store at the given database path. The schema
// is created automatically on first use.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open run log database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate run log schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id              TEXT PRIMARY KEY,
		timestamp       TEXT NOT NULL,
		kind            TEXT NOT NULL,
		backend         TEXT NOT NULL,
		model           TEXT NOT NULL,
		task            TEXT NOT NULL,
		success         INTEGER NOT NULL,
		stop_reason     TEXT NOT NULL,
		iterations      INTEGER NOT NULL,
		tool_calls      INTEGER NOT NULL,
		latency_seconds REAL NOT NULL,
		total_tokens    INTEGER NOT NULL,
		final_status    TEXT,
		feedback_rating TEXT,
		feedback_category TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_runs_timestamp ON runs(timestamp);
	CREATE INDEX IF NOT EXISTS idx_runs_backend ON runs(backend);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Append persists a run record. If rec.ID is empty, a UUIDv7 is
// generated. The context is used for cancellation only.
func (s *Store) Append(ctx context.Context, rec Record) error {
	if rec.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("generate run record ID: %w", err)
		}
		rec.ID = id.String()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs
			(id, timestamp, kind, backend, model, task, success, stop_reason,
			 iterations, tool_calls, latency_seconds, total_tokens,
			 final_status, feedback_rating, feedback_category)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.Timestamp.UTC().Format(time.RFC3339),
		rec.Kind,
		rec.Backend,
		rec.Model,
		rec.Task,
		rec.Success,
		rec.StopReason,
		rec.Iterations,
		rec.ToolCalls,
		rec.LatencySeconds,
		rec.TotalTokens,
		rec.FinalStatus,
		rec.FeedbackRating,
		rec.FeedbackCategory,
	)
	if err != nil {
		return fmt.Errorf("insert run record: %w", err)
	}
	return nil
}

// Recent returns up to limit runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, timestamp, kind, backend, model, task, success, stop_reason,
		        iterations, tool_calls, latency_seconds, total_tokens,
		        COALESCE(final_status, ''), COALESCE(feedback_rating, ''), COALESCE(feedback_category, '')
		 FROM runs ORDER BY timestamp DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent runs: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var ts string
		if err := rows.Scan(&rec.ID, &ts, &rec.Kind, &rec.Backend, &rec.Model, &rec.Task,
			&rec.Success, &rec.StopReason, &rec.Iterations, &rec.ToolCalls,
			&rec.LatencySeconds, &rec.TotalTokens,
			&rec.FinalStatus, &rec.FeedbackRating, &rec.FeedbackCategory); err != nil {
			return nil, fmt.Errorf("scan run record: %w", err)
		}
		rec.Timestamp, _ = time.Parse(time.RFC3339, ts)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// SummaryByBackend returns aggregated totals grouped by backend id.
func (s *Store) SummaryByBackend(ctx context.Context) (map[string]*Summary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT backend, COUNT(*), COALESCE(SUM(success), 0),
		        COALESCE(SUM(total_tokens), 0), COALESCE(AVG(latency_seconds), 0)
		 FROM runs GROUP BY backend`)
	if err != nil {
		return nil, fmt.Errorf("query run summary: %w", err)
	}
	defer rows.Close()

	result := make(map[string]*Summary)
	for rows.Next() {
		var backend string
		var sum Summary
		if err := rows.Scan(&backend, &sum.TotalRuns, &sum.SuccessfulRuns, &sum.TotalTokens, &sum.AvgLatency); err != nil {
			return nil, fmt.Errorf("scan run summary: %w", err)
		}
		result[backend] = &sum
	}
	return result, rows.Err()
}
