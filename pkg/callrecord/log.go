package callrecord

import (
	"context"
	"log/slog"
	"time"
)

// Compile-time assertion that LogRecorder implements Recorder.
var _ Recorder = (*LogRecorder)(nil)

// LogRecorder writes call records to the structured log instead of a
// database. It is the fallback wired when no Postgres DSN is configured, so
// lab and demo deployments still leave an audit trail.
type LogRecorder struct {
	log *slog.Logger
}

// NewLogRecorder creates a LogRecorder. log may be nil to use slog.Default.
func NewLogRecorder(log *slog.Logger) *LogRecorder {
	if log == nil {
		log = slog.Default()
	}
	return &LogRecorder{log: log}
}

func (r *LogRecorder) Create(ctx context.Context, rec Record) error {
	r.log.InfoContext(ctx, "call record created",
		slog.String("call_id", rec.CallID),
		slog.String("loan_id", rec.LoanID),
		slog.String("initial_language", rec.InitialLanguage),
	)
	return nil
}

func (r *LogRecorder) UpdateStage(ctx context.Context, callID, stage, currentLanguage string) error {
	r.log.InfoContext(ctx, "call stage",
		slog.String("call_id", callID),
		slog.String("stage", stage),
		slog.String("language", currentLanguage),
	)
	return nil
}

func (r *LogRecorder) Finalize(ctx context.Context, callID string, outcome Outcome, summary string, endedAt time.Time) error {
	r.log.InfoContext(ctx, "call record finalized",
		slog.String("call_id", callID),
		slog.String("outcome", string(outcome)),
		slog.String("summary", summary),
		slog.Time("ended_at", endedAt),
	)
	return nil
}
