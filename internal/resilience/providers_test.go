package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vaanilabs/vaani/pkg/provider/asr"
	asrmock "github.com/vaanilabs/vaani/pkg/provider/asr/mock"
	"github.com/vaanilabs/vaani/pkg/provider/tts"
	ttsmock "github.com/vaanilabs/vaani/pkg/provider/tts/mock"
)

func TestWrapASR_PassesThroughResults(t *testing.T) {
	inner := &asrmock.Provider{Results: []asr.Result{{Transcript: "hello", Language: "en-IN"}}}
	wrapped := WrapASR(inner, CircuitBreakerConfig{})

	res, err := wrapped.Transcribe(context.Background(), []byte{1, 2}, "en-IN")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Transcript != "hello" {
		t.Errorf("transcript = %q, want hello", res.Transcript)
	}
	if wrapped.Name() != inner.Name() {
		t.Errorf("name = %q, want %q", wrapped.Name(), inner.Name())
	}
}

func TestWrapASR_OpensAfterConsecutiveFailures(t *testing.T) {
	inner := &asrmock.Provider{Err: errTest}
	wrapped := WrapASR(inner, CircuitBreakerConfig{
		MaxFailures:  2,
		ResetTimeout: time.Hour,
	})

	for i := 0; i < 2; i++ {
		if _, err := wrapped.Transcribe(context.Background(), []byte{1}, ""); !errors.Is(err, errTest) {
			t.Fatalf("call %d: err = %v, want errTest", i, err)
		}
	}

	// The breaker is now open; the inner provider must not be reached.
	if _, err := wrapped.Transcribe(context.Background(), []byte{1}, ""); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen", err)
	}
	if got := len(inner.TranscribeCalls); got != 2 {
		t.Errorf("inner calls = %d, want 2", got)
	}
}

func TestWrapASR_RateLimitDoesNotTrip(t *testing.T) {
	inner := &asrmock.Provider{Err: asr.ErrRateLimited}
	wrapped := WrapASR(inner, CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Hour})

	for i := 0; i < 5; i++ {
		if _, err := wrapped.Transcribe(context.Background(), []byte{1}, ""); !errors.Is(err, asr.ErrRateLimited) {
			t.Fatalf("call %d: err = %v, want ErrRateLimited", i, err)
		}
	}
	if got := len(inner.TranscribeCalls); got != 5 {
		t.Errorf("inner calls = %d, want 5: limiter denials must not open the breaker", got)
	}
}

func TestWrapTTS_UnsupportedLanguageDoesNotTrip(t *testing.T) {
	inner := &ttsmock.Provider{Err: tts.ErrUnsupportedLanguage}
	wrapped := WrapTTS(inner, CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Hour})

	for i := 0; i < 3; i++ {
		if _, err := wrapped.Synthesize(context.Background(), "hello", "xx-XX"); !errors.Is(err, tts.ErrUnsupportedLanguage) {
			t.Fatalf("call %d: err = %v, want ErrUnsupportedLanguage", i, err)
		}
	}
}

func TestWrapTTS_OpensAfterFailures(t *testing.T) {
	inner := &ttsmock.Provider{Err: tts.ErrFailed}
	wrapped := WrapTTS(inner, CircuitBreakerConfig{MaxFailures: 2, ResetTimeout: time.Hour})

	for i := 0; i < 2; i++ {
		if _, err := wrapped.Synthesize(context.Background(), "hello", "en-IN"); !errors.Is(err, tts.ErrFailed) {
			t.Fatalf("call %d: err = %v, want ErrFailed", i, err)
		}
	}
	if _, err := wrapped.Synthesize(context.Background(), "hello", "en-IN"); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen", err)
	}
}
