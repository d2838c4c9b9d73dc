// Package buffer segments the inbound audio stream into utterances.
//
// Media frames arrive continuously while the caller speaks and stop arriving
// during silence (the provider suppresses silent frames, or the ingress task
// drops them). Segmentation is therefore driven by frame arrival gaps rather
// than signal energy:
//
//   - a quiet window (no frames for quietWindow) closes the current utterance
//   - utterances shorter than minUtterance are discarded as noise blips
//   - an utterance reaching hardCap is closed immediately, even mid-speech
//
// The buffer is clock-explicit: callers pass the observation time into
// [Buffer.Append] and [Buffer.Poll], which keeps tests free of sleeps. It is
// not safe for concurrent use; the ingress task is the only caller.
package buffer

import (
	"time"

	"github.com/vaanilabs/vaani/pkg/audio"
	"github.com/vaanilabs/vaani/pkg/telephony"
)

// Config holds the segmentation thresholds.
type Config struct {
	// MinUtterance is the minimum audio duration worth transcribing.
	MinUtterance time.Duration

	// QuietWindow is the arrival gap that closes an utterance.
	QuietWindow time.Duration

	// HardCap closes an utterance regardless of continuing speech, bounding
	// transcription latency and provider payload size.
	HardCap time.Duration
}

// Buffer accumulates PCM frames and emits closed utterances.
type Buffer struct {
	cfg  Config
	data []byte
	last time.Time
}

// New creates an empty [Buffer] with the given thresholds.
func New(cfg Config) *Buffer {
	return &Buffer{cfg: cfg}
}

// Append adds one PCM frame observed at now. If the arrival gap since the
// previous frame exceeded the quiet window, the buffered audio is closed
// first and returned (or discarded when shorter than MinUtterance); the new
// frame then starts the next utterance. If appending pushes the buffer past
// HardCap, the buffer is closed and returned immediately.
//
// Returns nil when no utterance closed on this call.
func (b *Buffer) Append(pcm []byte, now time.Time) []byte {
	var closed []byte
	if len(b.data) > 0 && now.Sub(b.last) >= b.cfg.QuietWindow {
		closed = b.take()
	}

	b.data = append(b.data, pcm...)
	b.last = now

	if closed != nil {
		return closed
	}
	if b.duration() >= b.cfg.HardCap {
		return b.take()
	}
	return nil
}

// Poll checks whether the quiet window has elapsed with no new frames and, if
// so, closes the buffered utterance. The ingress task calls this on a ticker
// so silence after the final frame still produces an utterance. Returns nil
// when nothing closed.
func (b *Buffer) Poll(now time.Time) []byte {
	if len(b.data) == 0 || now.Sub(b.last) < b.cfg.QuietWindow {
		return nil
	}
	return b.take()
}

// Flush closes and returns whatever is buffered regardless of thresholds.
// Used when the stream stops. Returns nil when empty or below MinUtterance.
func (b *Buffer) Flush() []byte {
	return b.take()
}

// Len reports the buffered byte count.
func (b *Buffer) Len() int { return len(b.data) }

// take drains the buffer, returning the audio when it meets MinUtterance and
// discarding it otherwise.
func (b *Buffer) take() []byte {
	d := b.data
	b.data = nil
	if audio.Duration(len(d), telephony.SampleRate) < b.cfg.MinUtterance {
		return nil
	}
	return d
}

// duration reports the playback time of the buffered audio.
func (b *Buffer) duration() time.Duration {
	return audio.Duration(len(b.data), telephony.SampleRate)
}
