// Package ratelimit provides the process-wide, non-blocking limiters that
// guard the paid speech and language providers.
//
// Limiters never block: a denied call is dropped and treated as a soft
// failure by the dialog loop (empty transcript, skipped prompt). Blocking
// here would stall a live phone call, which is strictly worse than losing
// one transcription.
package ratelimit

import (
	"time"

	"golang.org/x/time/rate"
)

// Limiter combines a sustained per-minute budget with a minimum spacing
// between consecutive calls. Safe for concurrent use.
type Limiter struct {
	budget *rate.Limiter
	gap    *rate.Limiter
}

// New creates a [Limiter] allowing at most perMinute calls per minute with at
// least minGap between consecutive calls. A zero perMinute or minGap disables
// that constraint.
func New(perMinute int, minGap time.Duration) *Limiter {
	l := &Limiter{}
	if perMinute > 0 {
		l.budget = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)
	}
	if minGap > 0 {
		l.gap = rate.NewLimiter(rate.Every(minGap), 1)
	}
	return l
}

// Allow reports whether a call may proceed now, consuming tokens when it
// does. When the budget allows but the spacing does not (or vice versa), the
// consumed token is not returned; that slightly over-counts denials, which is
// the safe direction for a paid API.
func (l *Limiter) Allow() bool {
	ok := true
	if l.budget != nil && !l.budget.Allow() {
		ok = false
	}
	if l.gap != nil && !l.gap.Allow() {
		ok = false
	}
	return ok
}

// Limiters bundles the per-provider limiters wired at startup.
type Limiters struct {
	ASR *Limiter
	TTS *Limiter
	LLM *Limiter
}

// Config holds the limiter settings from configuration.
type Config struct {
	ASRPerMinute int
	ASRMinGap    time.Duration
	TTSPerMinute int
	LLMPerMinute int
}

// NewLimiters builds the provider limiters from cfg.
func NewLimiters(cfg Config) *Limiters {
	return &Limiters{
		ASR: New(cfg.ASRPerMinute, cfg.ASRMinGap),
		TTS: New(cfg.TTSPerMinute, 0),
		LLM: New(cfg.LLMPerMinute, 0),
	}
}
