package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	// import db drivers
	_ "github.com/lib/pq"

	"github.com/sonavox/mediad/internal/core"
)

// PostgresStore persists job status in the jobs table, one row per job id,
// with the terminal envelope stored as JSONB.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgres creates a Postgres-backed status store.
func NewPostgres(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Report upserts the latest status record for the job.
func (s *PostgresStore) Report(ctx context.Context, rec core.StatusRecord) error {
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}

	var envelope any
	if rec.Envelope != nil {
		data, err := json.Marshal(rec.Envelope)
		if err != nil {
			return fmt.Errorf("failed to marshal envelope for job %s: %w", rec.JobID, err)
		}
		envelope = data
	}

	query := `
		INSERT INTO jobs (job_id, state, worker_id, pid, envelope, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (job_id) DO UPDATE
		SET state = EXCLUDED.state,
		    worker_id = EXCLUDED.worker_id,
		    pid = EXCLUDED.pid,
		    envelope = EXCLUDED.envelope,
		    updated_at = EXCLUDED.updated_at`

	_, err := s.db.ExecContext(ctx, query,
		rec.JobID, rec.State, rec.WorkerID, rec.PID, envelope, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert status for job %s: %w", rec.JobID, err)
	}
	return nil
}

// Get returns the latest status record for the job, or core.ErrNotFound.
func (s *PostgresStore) Get(ctx context.Context, jobID string) (*core.StatusRecord, error) {
	query := `
		SELECT job_id, state, worker_id, pid, envelope, updated_at
		FROM jobs
		WHERE job_id = $1`

	row := s.db.QueryRowContext(ctx, query, jobID)

	var rec core.StatusRecord
	var envelope []byte
	err := row.Scan(&rec.JobID, &rec.State, &rec.WorkerID, &rec.PID, &envelope, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read status for job %s: %w", jobID, err)
	}

	if len(envelope) > 0 {
		rec.Envelope = &core.Envelope{}
		if err := json.Unmarshal(envelope, rec.Envelope); err != nil {
			return nil, fmt.Errorf("failed to unmarshal envelope for job %s: %w", jobID, err)
		}
	}
	return &rec, nil
}
