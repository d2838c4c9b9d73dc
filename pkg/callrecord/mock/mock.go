// Package mock provides a test double for the callrecord package interface.
//
// The mock records every call so FSM tests can assert on the full stage
// trail and the final outcome.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/vaanilabs/vaani/pkg/callrecord"
)

// StageUpdate records a single UpdateStage invocation.
type StageUpdate struct {
	CallID   string
	Stage    string
	Language string
}

// Finalization records a single Finalize invocation.
type Finalization struct {
	CallID  string
	Outcome callrecord.Outcome
	Summary string
	EndedAt time.Time
}

// Recorder is a mock implementation of callrecord.Recorder. Thread-safe.
type Recorder struct {
	mu sync.Mutex

	// Err, if non-nil, is returned from every method.
	Err error

	Created       []callrecord.Record
	StageUpdates  []StageUpdate
	Finalizations []Finalization
}

// Compile-time assertion that Recorder implements callrecord.Recorder.
var _ callrecord.Recorder = (*Recorder)(nil)

// Create records the call.
func (r *Recorder) Create(_ context.Context, rec callrecord.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Created = append(r.Created, rec)
	return r.Err
}

// UpdateStage records the call.
func (r *Recorder) UpdateStage(_ context.Context, callID, stage, currentLanguage string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.StageUpdates = append(r.StageUpdates, StageUpdate{CallID: callID, Stage: stage, Language: currentLanguage})
	return r.Err
}

// Finalize records the call.
func (r *Recorder) Finalize(_ context.Context, callID string, outcome callrecord.Outcome, summary string, endedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Finalizations = append(r.Finalizations, Finalization{CallID: callID, Outcome: outcome, Summary: summary, EndedAt: endedAt})
	return r.Err
}

// Stages returns the recorded stage names in order. Thread-safe.
func (r *Recorder) Stages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.StageUpdates))
	for i, u := range r.StageUpdates {
		out[i] = u.Stage
	}
	return out
}

// LastOutcome returns the outcome of the most recent Finalize, or "".
func (r *Recorder) LastOutcome() callrecord.Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.Finalizations) == 0 {
		return ""
	}
	return r.Finalizations[len(r.Finalizations)-1].Outcome
}
