// Package tts defines the text-to-speech capability used by the dialog loop.
//
// Providers return complete utterances as raw PCM; chunking and pacing to
// the telephony leg is the egress task's job, not the provider's.
package tts

import (
	"context"
	"errors"
)

// ErrUnsupportedLanguage is returned when the provider has no voice for the
// requested language. The dialog loop retries once with the English template
// and an English voice.
var ErrUnsupportedLanguage = errors.New("tts: no voice for requested language")

// ErrFailed marks an unrecoverable synthesis failure: both the streaming and
// the batch endpoints errored. The dialog loop skips the prompt.
var ErrFailed = errors.New("tts: synthesis failed")

// ErrRateLimited is returned when the process-wide synthesis budget denies
// the request before any network call is made.
var ErrRateLimited = errors.New("tts: rate limited")

// Provider converts text into 8 kHz 16-bit LE mono PCM.
type Provider interface {
	// Synthesize renders text in the given language tag. The returned PCM is
	// always 8 kHz 16-bit mono regardless of the provider's native output
	// rate. Returns [ErrUnsupportedLanguage] when no voice exists for lang
	// and [ErrFailed] when all endpoints errored.
	Synthesize(ctx context.Context, text, lang string) ([]byte, error)

	// Name identifies the provider in logs and metrics.
	Name() string
}
