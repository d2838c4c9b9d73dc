// Package sarvam provides a Sarvam AI backed ASR provider (saarika model
// family). Each utterance is uploaded as a WAV file via multipart POST to the
// speech-to-text endpoint; the response carries the transcript and the
// detected language code.
//
// Usage:
//
//	p, err := sarvam.New(apiKey,
//	    sarvam.WithModel("saarika:v2"),
//	    sarvam.WithLimiter(limiters.ASR),
//	)
//	res, err := p.Transcribe(ctx, utterancePCM, "hi-IN")
package sarvam

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/vaanilabs/vaani/internal/ratelimit"
	"github.com/vaanilabs/vaani/pkg/audio"
	"github.com/vaanilabs/vaani/pkg/provider/asr"
)

const (
	defaultBaseURL = "https://api.sarvam.ai"
	defaultModel   = "saarika:v2"

	defaultMaxRetries = 2
	defaultRetryDelay = 600 * time.Millisecond

	// Minimum viable audio; anything below is returned as silence without a
	// network call.
	defaultMinAudio      = time.Second
	defaultMinAudioBytes = 500
)

// Compile-time assertion that Provider implements asr.Provider.
var _ asr.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithBaseURL overrides the API base URL. Used by tests and by self-hosted
// gateway deployments.
func WithBaseURL(u string) Option {
	return func(p *Provider) { p.baseURL = u }
}

// WithModel sets the saarika model identifier. Defaults to "saarika:v2".
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithHTTPClient replaces the default HTTP client (10 s timeout).
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.httpClient = c }
}

// WithRetry sets the retry budget for transient failures. attempts counts
// total tries, so attempts=2 means one retry. Defaults: 2 attempts, 600 ms
// apart.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(p *Provider) {
		p.maxAttempts = attempts
		p.retryDelay = delay
	}
}

// WithLimiter attaches the process-wide non-blocking limiter. When the
// limiter denies a call, Transcribe returns [asr.ErrRateLimited] without
// sending audio. A nil limiter disables limiting.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(p *Provider) { p.limiter = l }
}

// WithMinAudio sets the minimum utterance duration and byte count below
// which audio is discarded as silence. Defaults: 1 s and 500 bytes.
func WithMinAudio(d time.Duration, minBytes int) Option {
	return func(p *Provider) {
		p.minAudio = d
		p.minAudioBytes = minBytes
	}
}

// Provider implements asr.Provider against the Sarvam speech-to-text API.
// Safe for concurrent use; all mutable state is per-request.
type Provider struct {
	apiKey        string
	baseURL       string
	model         string
	httpClient    *http.Client
	maxAttempts   int
	retryDelay    time.Duration
	limiter       *ratelimit.Limiter
	minAudio      time.Duration
	minAudioBytes int
}

// New creates a Provider with the given API key. The key must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("sarvam: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:        apiKey,
		baseURL:       defaultBaseURL,
		model:         defaultModel,
		httpClient:    &http.Client{Timeout: 10 * time.Second},
		maxAttempts:   defaultMaxRetries,
		retryDelay:    defaultRetryDelay,
		minAudio:      defaultMinAudio,
		minAudioBytes: defaultMinAudioBytes,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Name identifies the provider in logs and metrics.
func (p *Provider) Name() string { return "sarvam-asr" }

// transcribeResponse is the subset of the API response the engine reads.
type transcribeResponse struct {
	Transcript   string `json:"transcript"`
	LanguageCode string `json:"language_code"`
}

// Transcribe implements asr.Provider. Audio below the minimum viable
// duration returns an empty result without a network call. Transient
// failures are retried up to the configured budget with a fixed delay.
func (p *Provider) Transcribe(ctx context.Context, pcm []byte, hint string) (asr.Result, error) {
	if len(pcm) < p.minAudioBytes || audio.Duration(len(pcm), audio.TelephonyRate) < p.minAudio {
		return asr.Result{}, nil
	}
	if p.limiter != nil && !p.limiter.Allow() {
		return asr.Result{}, asr.ErrRateLimited
	}

	wav := audio.EncodeWAV(pcm, audio.TelephonyRate, 1)

	var lastErr error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(p.retryDelay):
			case <-ctx.Done():
				return asr.Result{}, ctx.Err()
			}
		}

		res, err := p.post(ctx, wav, hint)
		if err == nil {
			return res, nil
		}
		if !errors.Is(err, asr.ErrTransient) {
			return asr.Result{}, err
		}
		lastErr = err
	}
	return asr.Result{}, lastErr
}

// post performs one multipart upload attempt.
func (p *Provider) post(ctx context.Context, wav []byte, hint string) (asr.Result, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "utterance.wav")
	if err != nil {
		return asr.Result{}, fmt.Errorf("sarvam: build multipart: %w", err)
	}
	if _, err := fw.Write(wav); err != nil {
		return asr.Result{}, fmt.Errorf("sarvam: write audio part: %w", err)
	}
	_ = mw.WriteField("model", p.model)
	if hint != "" {
		_ = mw.WriteField("language_code", hint)
	}
	if err := mw.Close(); err != nil {
		return asr.Result{}, fmt.Errorf("sarvam: close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/speech-to-text", &body)
	if err != nil {
		return asr.Result{}, fmt.Errorf("sarvam: build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("api-subscription-key", p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return asr.Result{}, ctx.Err()
		}
		return asr.Result{}, fmt.Errorf("%w: %v", asr.ErrTransient, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		io.Copy(io.Discard, resp.Body)
		return asr.Result{}, fmt.Errorf("%w: status %d", asr.ErrTransient, resp.StatusCode)
	default:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return asr.Result{}, fmt.Errorf("sarvam: status %d: %s", resp.StatusCode, msg)
	}

	var tr transcribeResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return asr.Result{}, fmt.Errorf("sarvam: decode response: %w", err)
	}
	return asr.Result{Transcript: tr.Transcript, Language: tr.LanguageCode}, nil
}
