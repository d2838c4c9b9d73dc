// Package mock provides a test double for the asr package interface.
//
// Queue results with Results; inspect delivered audio via TranscribeCalls.
package mock

import (
	"context"
	"sync"

	"github.com/vaanilabs/vaani/pkg/provider/asr"
)

// TranscribeCall records a single invocation of Provider.Transcribe.
type TranscribeCall struct {
	// PCM is a copy of the audio passed to Transcribe.
	PCM []byte
	// Hint is the language hint passed to Transcribe.
	Hint string
}

// Provider is a mock implementation of asr.Provider. Results are consumed in
// order; once exhausted, Transcribe returns the zero Result. Thread-safe.
type Provider struct {
	mu sync.Mutex

	// Results are returned in order, one per Transcribe call.
	Results []asr.Result

	// Err, if non-nil, is returned from every Transcribe call.
	Err error

	// TranscribeCalls records every call to Transcribe.
	TranscribeCalls []TranscribeCall
}

// Compile-time assertion that Provider implements asr.Provider.
var _ asr.Provider = (*Provider)(nil)

// Transcribe records the call and returns the next queued result.
func (p *Provider) Transcribe(_ context.Context, pcm []byte, hint string) (asr.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	cp := make([]byte, len(pcm))
	copy(cp, pcm)
	p.TranscribeCalls = append(p.TranscribeCalls, TranscribeCall{PCM: cp, Hint: hint})

	if p.Err != nil {
		return asr.Result{}, p.Err
	}
	if len(p.Results) == 0 {
		return asr.Result{}, nil
	}
	res := p.Results[0]
	p.Results = p.Results[1:]
	return res, nil
}

// Name identifies the mock in logs.
func (p *Provider) Name() string { return "mock-asr" }

// Calls returns a snapshot of recorded calls. Thread-safe.
func (p *Provider) Calls() []TranscribeCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]TranscribeCall, len(p.TranscribeCalls))
	copy(out, p.TranscribeCalls)
	return out
}
