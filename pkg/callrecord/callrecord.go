// Package callrecord defines the append-only persistence contract the engine
// writes call outcomes through.
//
// The engine only ever writes: one row when a call session is created, a
// status row per stage transition, and a final update carrying the outcome
// and conversation summary. It never reads this store; reporting belongs to
// the dashboard, not the engine.
package callrecord

import (
	"context"
	"time"
)

// Outcome is the terminal classification of a call.
type Outcome string

const (
	OutcomeCompleted      Outcome = "completed"
	OutcomeTransferred    Outcome = "transferred"
	OutcomeDeclined       Outcome = "declined"
	OutcomeFailed         Outcome = "failed"
	OutcomeTimeout        Outcome = "timeout"
	OutcomeMissingContext Outcome = "missing_context"
)

// Record is the row created when a call session starts.
type Record struct {
	CallID          string
	Phone           string
	LoanID          string
	InitialLanguage string
	StartedAt       time.Time
}

// Recorder persists call records. Implementations must tolerate repeated
// Finalize calls for the same id (last write wins) because error paths can
// race the hard-cap timer.
type Recorder interface {
	// Create inserts the initial record for a new call session.
	Create(ctx context.Context, rec Record) error

	// UpdateStage appends a status row for a stage transition.
	UpdateStage(ctx context.Context, callID, stage, currentLanguage string) error

	// Finalize writes the terminal outcome and conversation summary.
	Finalize(ctx context.Context, callID string, outcome Outcome, summary string, endedAt time.Time) error
}
