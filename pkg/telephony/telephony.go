// Package telephony implements the JSON envelope codec for provider media
// streams (Twilio/Exotel style). A media stream is a duplex WebSocket that
// carries newline-free JSON envelopes discriminated by an "event" field:
//
//   - connected — handshake, first message on the socket
//   - start     — stream metadata: call SID, stream SID, custom parameters
//   - media     — one base64 PCM frame (inbound or outbound)
//   - stop      — provider ended the stream
//   - mark      — playback checkpoint echo
//   - clear     — drop any queued outbound audio (outbound only)
//
// Audio is 16-bit signed little-endian PCM, 8 kHz mono, carried in 320-byte
// frames (20 ms each). The codec validates frame size on inbound media and
// slices outbound PCM into conforming frames.
package telephony

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ─── Constants and errors ───

const (
	// FrameBytes is the size of one PCM media frame: 20 ms of 16-bit mono
	// audio at 8 kHz.
	FrameBytes = 320

	// FrameDuration is the wall-clock playback time of one frame.
	FrameDuration = 20 * time.Millisecond

	// SampleRate is the PCM sample rate of the media stream in Hz.
	SampleRate = 8000
)

// Event names carried in the envelope "event" field.
const (
	EventConnected = "connected"
	EventStart     = "start"
	EventMedia     = "media"
	EventStop      = "stop"
	EventMark      = "mark"
	EventClear     = "clear"
)

var (
	// ErrBadPayload indicates a media payload that is not valid base64.
	ErrBadPayload = errors.New("telephony: media payload is not valid base64")

	// ErrFrameSize indicates a decoded media frame that is not FrameBytes long.
	ErrFrameSize = errors.New("telephony: media frame has wrong size")

	// ErrUnknownEvent indicates an envelope whose event field names no known
	// message type.
	ErrUnknownEvent = errors.New("telephony: unknown envelope event")
)

// ─── Envelope types ───

// Envelope is the wire representation of one media-stream message. Only the
// section matching Event is populated.
type Envelope struct {
	Event          string `json:"event"`
	SequenceNumber string `json:"sequenceNumber,omitempty"`
	StreamSid      string `json:"streamSid,omitempty"`

	Start *Start `json:"start,omitempty"`
	Media *Media `json:"media,omitempty"`
	Mark  *Mark  `json:"mark,omitempty"`
	Stop  *Stop  `json:"stop,omitempty"`
}

// Start carries stream metadata sent once after connected.
type Start struct {
	StreamSid        string            `json:"streamSid"`
	CallSid          string            `json:"callSid"`
	AccountSid       string            `json:"accountSid,omitempty"`
	Tracks           []string          `json:"tracks,omitempty"`
	MediaFormat      MediaFormat       `json:"mediaFormat,omitempty"`
	CustomParameters map[string]string `json:"customParameters,omitempty"`
}

// MediaFormat describes the negotiated audio encoding.
type MediaFormat struct {
	Encoding   string `json:"encoding,omitempty"`
	SampleRate int    `json:"sampleRate,omitempty"`
	Channels   int    `json:"channels,omitempty"`
}

// Media carries one audio frame. Payload is base64-encoded PCM.
type Media struct {
	Track     string `json:"track,omitempty"`
	Chunk     string `json:"chunk,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   string `json:"payload"`
}

// Mark is a playback checkpoint. Outbound marks are echoed back by the
// provider once all audio queued before them has been played.
type Mark struct {
	Name string `json:"name"`
}

// Stop signals the provider has ended the stream.
type Stop struct {
	CallSid string `json:"callSid,omitempty"`
}

// ─── Decoding ───

// Decode parses one raw WebSocket message into an [Envelope]. The event field
// must name a known message type; media payloads are NOT decoded here (see
// [Envelope.PCM]) so that malformed audio can be handled separately from
// malformed JSON.
func Decode(raw []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("telephony: decode envelope: %w", err)
	}
	switch env.Event {
	case EventConnected, EventStart, EventMedia, EventStop, EventMark, EventClear:
		return &env, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}
}

// PCM decodes and validates the media payload of a media envelope. Returns
// [ErrBadPayload] for invalid base64 and [ErrFrameSize] when the decoded
// frame is not exactly [FrameBytes] long.
func (e *Envelope) PCM() ([]byte, error) {
	if e.Event != EventMedia || e.Media == nil {
		return nil, fmt.Errorf("telephony: not a media envelope (event %q)", e.Event)
	}
	pcm, err := base64.StdEncoding.DecodeString(e.Media.Payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	if len(pcm) != FrameBytes {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrFrameSize, len(pcm), FrameBytes)
	}
	return pcm, nil
}

// ParseCustomParameters splits a pipe-separated "k=v|k=v" string into a map.
// Used for the snapshot fallback carried in start.customParameters when the
// dialer inlines customer context instead of relying on the session store.
// Malformed segments (no "=") are skipped.
func ParseCustomParameters(s string) map[string]string {
	if s == "" {
		return nil
	}
	out := make(map[string]string)
	for _, seg := range strings.Split(s, "|") {
		k, v, ok := strings.Cut(seg, "=")
		if !ok || k == "" {
			continue
		}
		out[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// ─── Encoding ───

// Encoder slices outbound PCM into media envelopes for one stream. It tracks
// the chunk counter and running timestamp across calls so that a single
// Encoder instance must be used for the lifetime of a stream. Not safe for
// concurrent use; the egress task is the only writer.
type Encoder struct {
	streamSid string
	chunk     int
	elapsed   time.Duration
}

// NewEncoder creates an [Encoder] for the given stream SID. The chunk counter
// starts at 1 to match provider numbering.
func NewEncoder(streamSid string) *Encoder {
	return &Encoder{streamSid: streamSid, chunk: 1}
}

// MediaFrames slices pcm into [FrameBytes]-sized media envelopes, padding the
// final short frame with silence. Returns the marshalled envelopes in order.
func (enc *Encoder) MediaFrames(pcm []byte) ([][]byte, error) {
	if len(pcm) == 0 {
		return nil, nil
	}
	n := (len(pcm) + FrameBytes - 1) / FrameBytes
	frames := make([][]byte, 0, n)

	for off := 0; off < len(pcm); off += FrameBytes {
		end := off + FrameBytes
		frame := make([]byte, FrameBytes)
		if end > len(pcm) {
			copy(frame, pcm[off:])
		} else {
			copy(frame, pcm[off:end])
		}

		env := Envelope{
			Event:     EventMedia,
			StreamSid: enc.streamSid,
			Media: &Media{
				Track:     "outbound",
				Chunk:     strconv.Itoa(enc.chunk),
				Timestamp: strconv.FormatInt(enc.elapsed.Milliseconds(), 10),
				Payload:   base64.StdEncoding.EncodeToString(frame),
			},
		}
		raw, err := json.Marshal(env)
		if err != nil {
			return nil, fmt.Errorf("telephony: encode media frame: %w", err)
		}
		frames = append(frames, raw)
		enc.chunk++
		enc.elapsed += FrameDuration
	}
	return frames, nil
}

// Mark builds a mark envelope with the given checkpoint name.
func (enc *Encoder) Mark(name string) ([]byte, error) {
	raw, err := json.Marshal(Envelope{
		Event:     EventMark,
		StreamSid: enc.streamSid,
		Mark:      &Mark{Name: name},
	})
	if err != nil {
		return nil, fmt.Errorf("telephony: encode mark: %w", err)
	}
	return raw, nil
}

// Clear builds a clear envelope instructing the provider to drop any queued
// outbound audio. Sent before a re-greeting so replies never overlap.
func (enc *Encoder) Clear() ([]byte, error) {
	raw, err := json.Marshal(Envelope{
		Event:     EventClear,
		StreamSid: enc.streamSid,
	})
	if err != nil {
		return nil, fmt.Errorf("telephony: encode clear: %w", err)
	}
	return raw, nil
}
