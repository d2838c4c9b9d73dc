// Package mock provides a test double for the tts package interface.
package mock

import (
	"context"
	"strings"
	"sync"

	"github.com/vaanilabs/vaani/pkg/provider/tts"
)

// SynthesizeCall records a single invocation of Provider.Synthesize.
type SynthesizeCall struct {
	Text string
	Lang string
}

// Provider is a mock implementation of tts.Provider. By default every call
// returns PCM derived from PCMPerCall (or a small fixed buffer). Thread-safe.
type Provider struct {
	mu sync.Mutex

	// PCMPerCall is returned from each Synthesize call. When nil, a one
	// frame (320 byte) buffer is returned.
	PCMPerCall []byte

	// Err, if non-nil, is returned from every Synthesize call.
	Err error

	// FailLangs lists language tags for which Synthesize returns
	// tts.ErrUnsupportedLanguage, exercising the English retry path.
	FailLangs []string

	// FailContains lists substrings; Synthesize returns tts.ErrFailed for
	// any text containing one, so a single prompt can be made unspeakable.
	FailContains []string

	// SynthesizeCalls records every call to Synthesize.
	SynthesizeCalls []SynthesizeCall
}

// Compile-time assertion that Provider implements tts.Provider.
var _ tts.Provider = (*Provider)(nil)

// Synthesize records the call and returns the configured PCM or error.
func (p *Provider) Synthesize(_ context.Context, text, lang string) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.SynthesizeCalls = append(p.SynthesizeCalls, SynthesizeCall{Text: text, Lang: lang})

	if p.Err != nil {
		return nil, p.Err
	}
	for _, fl := range p.FailLangs {
		if fl == lang {
			return nil, tts.ErrUnsupportedLanguage
		}
	}
	for _, sub := range p.FailContains {
		if strings.Contains(text, sub) {
			return nil, tts.ErrFailed
		}
	}
	if p.PCMPerCall != nil {
		out := make([]byte, len(p.PCMPerCall))
		copy(out, p.PCMPerCall)
		return out, nil
	}
	return make([]byte, 320), nil
}

// Name identifies the mock in logs.
func (p *Provider) Name() string { return "mock-tts" }

// Calls returns a snapshot of recorded calls. Thread-safe.
func (p *Provider) Calls() []SynthesizeCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]SynthesizeCall, len(p.SynthesizeCalls))
	copy(out, p.SynthesizeCalls)
	return out
}
