// Package sarvam provides a Sarvam AI backed TTS provider (bulbul model
// family). Synthesis first tries the low-latency streaming endpoint, which
// returns a raw WAV body, and falls back to the batch endpoint, which returns
// base64 audio inside JSON. Output is normalized to 8 kHz 16-bit mono PCM
// regardless of the endpoint's native sample rate.
package sarvam

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/vaanilabs/vaani/internal/ratelimit"
	"github.com/vaanilabs/vaani/pkg/audio"
	"github.com/vaanilabs/vaani/pkg/provider/tts"
)

const (
	defaultBaseURL = "https://api.sarvam.ai"
	defaultModel   = "bulbul:v2"
)

// voiceByLanguage is the fixed voice map. Languages absent from this table
// are unsupported; the dialog loop falls back to English text and voice.
// Entries can change without affecting the engine contract.
var voiceByLanguage = map[string]string{
	"en-IN": "anushka",
	"hi-IN": "anushka",
	"ta-IN": "pavithra",
	"te-IN": "maitreyi",
	"kn-IN": "arvind",
	"ml-IN": "amol",
	"gu-IN": "amartya",
	"mr-IN": "arjun",
	"bn-IN": "diya",
	"pa-IN": "neel",
	"or-IN": "misha",
}

// Compile-time assertion that Provider implements tts.Provider.
var _ tts.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithBaseURL overrides the API base URL. Used by tests.
func WithBaseURL(u string) Option {
	return func(p *Provider) { p.baseURL = u }
}

// WithModel sets the bulbul model identifier. Defaults to "bulbul:v2".
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithHTTPClient replaces the default HTTP client (15 s timeout).
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.httpClient = c }
}

// WithLogger sets the logger for fallback warnings. Defaults to slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(p *Provider) { p.log = l }
}

// WithLimiter guards synthesis with a process-wide rate limiter. A denied
// request returns [tts.ErrRateLimited] without touching the network.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(p *Provider) { p.limiter = l }
}

// Provider implements tts.Provider against the Sarvam text-to-speech API.
// Safe for concurrent use.
type Provider struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	log        *slog.Logger
	limiter    *ratelimit.Limiter
}

// New creates a Provider with the given API key. The key must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("sarvam: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		model:      defaultModel,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		log:        slog.Default(),
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Name identifies the provider in logs and metrics.
func (p *Provider) Name() string { return "sarvam-tts" }

// Synthesize implements tts.Provider. The streaming endpoint is tried first;
// on any error the batch endpoint is tried before giving up with
// [tts.ErrFailed].
func (p *Provider) Synthesize(ctx context.Context, text, lang string) ([]byte, error) {
	voice, ok := voiceByLanguage[lang]
	if !ok {
		return nil, fmt.Errorf("%w: %q", tts.ErrUnsupportedLanguage, lang)
	}
	if p.limiter != nil && !p.limiter.Allow() {
		return nil, tts.ErrRateLimited
	}

	wav, streamErr := p.stream(ctx, text, lang, voice)
	if streamErr != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		p.log.Warn("tts streaming endpoint failed, trying batch",
			"lang", lang, "error", streamErr)
		var batchErr error
		wav, batchErr = p.batch(ctx, text, lang, voice)
		if batchErr != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("%w: stream: %v; batch: %v", tts.ErrFailed, streamErr, batchErr)
		}
	}

	pcm, rate, channels, err := audio.DecodeWAV(wav)
	if err != nil {
		// Some endpoint configurations return bare PCM at the requested
		// rate instead of a WAV container.
		if errors.Is(err, audio.ErrNotWAV) {
			return wav, nil
		}
		return nil, fmt.Errorf("%w: decode audio: %v", tts.ErrFailed, err)
	}
	if channels == 2 {
		pcm = audio.StereoToMono(pcm)
	}
	return audio.ResampleMono16(pcm, rate, audio.TelephonyRate), nil
}

// synthesisRequest is the JSON body shared by both endpoints.
type synthesisRequest struct {
	Inputs             []string `json:"inputs"`
	TargetLanguageCode string   `json:"target_language_code"`
	Speaker            string   `json:"speaker"`
	Model              string   `json:"model"`
	SpeechSampleRate   int      `json:"speech_sample_rate"`
}

// stream calls the low-latency endpoint, which responds with a raw WAV body.
func (p *Provider) stream(ctx context.Context, text, lang, voice string) ([]byte, error) {
	resp, err := p.post(ctx, "/text-to-speech/stream", text, lang, voice)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// batch calls the standard endpoint, which responds with base64 WAV in JSON.
func (p *Provider) batch(ctx context.Context, text, lang, voice string) ([]byte, error) {
	resp, err := p.post(ctx, "/text-to-speech", text, lang, voice)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var out struct {
		Audios []string `json:"audios"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(out.Audios) == 0 {
		return nil, errors.New("empty audios array")
	}
	wav, err := base64.StdEncoding.DecodeString(out.Audios[0])
	if err != nil {
		return nil, fmt.Errorf("decode audio base64: %w", err)
	}
	return wav, nil
}

// post sends the synthesis request to the given endpoint path.
func (p *Provider) post(ctx context.Context, path, text, lang, voice string) (*http.Response, error) {
	body, err := json.Marshal(synthesisRequest{
		Inputs:             []string{text},
		TargetLanguageCode: lang,
		Speaker:            voice,
		Model:              p.model,
		SpeechSampleRate:   audio.TelephonyRate,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-subscription-key", p.apiKey)
	return p.httpClient.Do(req)
}
