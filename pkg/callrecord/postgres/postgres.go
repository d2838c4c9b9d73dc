// Package postgres provides the production [callrecord.Recorder] backed by a
// PostgreSQL call_records table plus an append-only call_status_updates
// table.
//
// Schema (managed by the surrounding platform's migrations):
//
//	CREATE TABLE call_records (
//	    call_id          text PRIMARY KEY,
//	    phone            text NOT NULL,
//	    loan_id          text NOT NULL,
//	    initial_language text NOT NULL,
//	    current_language text NOT NULL DEFAULT '',
//	    started_at       timestamptz NOT NULL,
//	    ended_at         timestamptz,
//	    outcome          text,
//	    summary          text NOT NULL DEFAULT ''
//	);
//
//	CREATE TABLE call_status_updates (
//	    id               bigserial PRIMARY KEY,
//	    call_id          text NOT NULL REFERENCES call_records(call_id),
//	    stage            text NOT NULL,
//	    current_language text NOT NULL,
//	    at               timestamptz NOT NULL DEFAULT now()
//	);
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vaanilabs/vaani/pkg/callrecord"
)

// Compile-time assertion that Recorder implements callrecord.Recorder.
var _ callrecord.Recorder = (*Recorder)(nil)

// Recorder persists call records in PostgreSQL. All methods are safe for
// concurrent use.
type Recorder struct {
	pool *pgxpool.Pool
}

// New creates a Recorder on the given pool.
func New(pool *pgxpool.Pool) *Recorder {
	return &Recorder{pool: pool}
}

// Create implements callrecord.Recorder. Re-creating an existing call id is
// tolerated (the dial-out path may have pre-created the row).
func (r *Recorder) Create(ctx context.Context, rec callrecord.Record) error {
	const q = `
		INSERT INTO call_records (call_id, phone, loan_id, initial_language, started_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (call_id) DO UPDATE
		SET initial_language = EXCLUDED.initial_language,
		    started_at       = EXCLUDED.started_at`

	_, err := r.pool.Exec(ctx, q,
		rec.CallID, rec.Phone, rec.LoanID, rec.InitialLanguage, rec.StartedAt)
	if err != nil {
		return fmt.Errorf("callrecord: create: %w", err)
	}
	return nil
}

// UpdateStage implements callrecord.Recorder. It appends a status row and
// keeps the denormalized current_language on the main record fresh.
func (r *Recorder) UpdateStage(ctx context.Context, callID, stage, currentLanguage string) error {
	const insert = `
		INSERT INTO call_status_updates (call_id, stage, current_language)
		VALUES ($1, $2, $3)`
	if _, err := r.pool.Exec(ctx, insert, callID, stage, currentLanguage); err != nil {
		return fmt.Errorf("callrecord: update stage: %w", err)
	}

	const update = `
		UPDATE call_records SET current_language = $2 WHERE call_id = $1`
	if _, err := r.pool.Exec(ctx, update, callID, currentLanguage); err != nil {
		return fmt.Errorf("callrecord: update language: %w", err)
	}
	return nil
}

// Finalize implements callrecord.Recorder. Last write wins so a racing
// hard-cap timer and error path cannot deadlock a record.
func (r *Recorder) Finalize(ctx context.Context, callID string, outcome callrecord.Outcome, summary string, endedAt time.Time) error {
	const q = `
		UPDATE call_records
		SET outcome = $2, summary = $3, ended_at = $4
		WHERE call_id = $1`

	_, err := r.pool.Exec(ctx, q, callID, string(outcome), summary, endedAt)
	if err != nil {
		return fmt.Errorf("callrecord: finalize: %w", err)
	}
	return nil
}
