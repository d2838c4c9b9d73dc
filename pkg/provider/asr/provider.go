// Package asr defines the speech-to-text capability used by the dialog loop.
//
// Providers transcribe one complete utterance at a time; there is no
// streaming session. The dialog loop batches inbound audio into utterances
// before calling [Provider.Transcribe], so latency is dominated by the
// provider round trip, not by segmentation.
package asr

import (
	"context"
	"errors"
)

// ErrTransient marks a failure worth retrying: a timeout, a 5xx, or a
// dropped connection. Implementations wrap it so callers can test with
// [errors.Is].
var ErrTransient = errors.New("asr: transient provider failure")

// ErrRateLimited is returned when the process-wide limiter denies the call.
// The audio is not sent; the caller treats the utterance as silence.
var ErrRateLimited = errors.New("asr: rate limit exceeded")

// Result is the outcome of one transcription.
type Result struct {
	// Transcript is the recognized text. Empty when the provider heard
	// nothing intelligible.
	Transcript string

	// Language is the provider-detected language tag (e.g. "hi-IN"). Empty
	// when the provider did not report one; the caller then classifies the
	// transcript itself.
	Language string
}

// Provider converts utterance PCM into text.
type Provider interface {
	// Transcribe submits one utterance of 16-bit LE mono PCM at 8 kHz. hint
	// is the expected language tag and may be empty. Audio below the minimum
	// viable duration returns an empty Result without touching the network.
	// Failures surface as typed errors ([ErrTransient] after retries are
	// exhausted, [ErrRateLimited] on limiter denial); the dialog loop treats
	// any error as an empty transcript and decides terminality itself.
	Transcribe(ctx context.Context, pcm []byte, hint string) (Result, error)

	// Name identifies the provider in logs and metrics.
	Name() string
}
