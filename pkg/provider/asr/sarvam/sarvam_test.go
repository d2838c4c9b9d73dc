package sarvam

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vaanilabs/vaani/internal/ratelimit"
	"github.com/vaanilabs/vaani/pkg/provider/asr"
)

// oneSecondPCM is the minimum viable utterance: 1 s of 8 kHz 16-bit mono.
func oneSecondPCM() []byte {
	return make([]byte, 16000)
}

func newTestProvider(t *testing.T, url string, opts ...Option) *Provider {
	t.Helper()
	opts = append([]Option{WithBaseURL(url), WithRetry(2, time.Millisecond)}, opts...)
	p, err := New("test-key", opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func TestNewRequiresAPIKey(t *testing.T) {
	t.Parallel()

	if _, err := New(""); err == nil {
		t.Error("New(\"\") = nil error")
	}
}

func TestTranscribe(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("api-subscription-key"); got != "test-key" {
			t.Errorf("api key header = %q", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if got := r.FormValue("model"); got != "saarika:v2" {
			t.Errorf("model = %q", got)
		}
		if got := r.FormValue("language_code"); got != "hi-IN" {
			t.Errorf("language_code = %q", got)
		}
		if _, hdr, err := r.FormFile("file"); err != nil || hdr.Size < 44 {
			t.Errorf("file part missing or too small: %v", err)
		}
		w.Write([]byte(`{"transcript": "हाँ जी", "language_code": "hi-IN"}`))
	}))
	defer srv.Close()

	p := newTestProvider(t, srv.URL)
	res, err := p.Transcribe(context.Background(), oneSecondPCM(), "hi-IN")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if res.Transcript != "हाँ जी" || res.Language != "hi-IN" {
		t.Errorf("result = %+v", res)
	}
}

func TestTranscribeShortAudioSkipsNetwork(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	p := newTestProvider(t, srv.URL)

	// One 20 ms frame: well below both minimums.
	res, err := p.Transcribe(context.Background(), make([]byte, 320), "")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if res.Transcript != "" {
		t.Errorf("transcript = %q, want empty", res.Transcript)
	}
	if calls.Load() != 0 {
		t.Errorf("network called %d times for short audio", calls.Load())
	}
}

func TestTranscribeRetriesTransient(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"transcript": "yes", "language_code": "en-IN"}`))
	}))
	defer srv.Close()

	p := newTestProvider(t, srv.URL)
	res, err := p.Transcribe(context.Background(), oneSecondPCM(), "")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if res.Transcript != "yes" {
		t.Errorf("transcript = %q, want yes", res.Transcript)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestTranscribeExhaustsRetries(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := newTestProvider(t, srv.URL)
	_, err := p.Transcribe(context.Background(), oneSecondPCM(), "")
	if !errors.Is(err, asr.ErrTransient) {
		t.Errorf("err = %v, want ErrTransient", err)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2 attempts", calls.Load())
	}
}

func TestTranscribePermanentErrorNoRetry(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	p := newTestProvider(t, srv.URL)
	_, err := p.Transcribe(context.Background(), oneSecondPCM(), "")
	if err == nil || errors.Is(err, asr.ErrTransient) {
		t.Errorf("err = %v, want permanent error", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1 (no retry on 401)", calls.Load())
	}
}

func TestTranscribeRateLimited(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	// Gap of one hour: the second call must be denied.
	lim := ratelimit.New(0, time.Hour)
	p := newTestProvider(t, srv.URL, WithLimiter(lim))

	if _, err := p.Transcribe(context.Background(), oneSecondPCM(), ""); err != nil {
		t.Fatalf("first Transcribe: %v", err)
	}
	_, err := p.Transcribe(context.Background(), oneSecondPCM(), "")
	if !errors.Is(err, asr.ErrRateLimited) {
		t.Errorf("err = %v, want ErrRateLimited", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}
