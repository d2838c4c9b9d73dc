package resilience

import (
	"context"
	"errors"

	"github.com/vaanilabs/vaani/pkg/provider/asr"
	"github.com/vaanilabs/vaani/pkg/provider/tts"
)

// Breaker-wrapped speech providers. The dialog loop already degrades softly
// on provider errors (empty transcript, skipped prompt), so a tripped
// breaker looks like one more transient failure rather than a new failure
// mode. Rate-limiter denials and context cancellations pass through without
// counting against the breaker: neither says anything about provider health.

// Compile-time interface assertions.
var (
	_ asr.Provider = (*BreakerASR)(nil)
	_ tts.Provider = (*BreakerTTS)(nil)
)

// BreakerASR wraps an asr.Provider with a [CircuitBreaker].
type BreakerASR struct {
	inner asr.Provider
	cb    *CircuitBreaker
}

// WrapASR guards inner with a breaker configured by cfg. An empty cfg.Name
// defaults to the provider name.
func WrapASR(inner asr.Provider, cfg CircuitBreakerConfig) *BreakerASR {
	if cfg.Name == "" {
		cfg.Name = inner.Name()
	}
	return &BreakerASR{inner: inner, cb: NewCircuitBreaker(cfg)}
}

func (a *BreakerASR) Transcribe(ctx context.Context, pcm []byte, hint string) (asr.Result, error) {
	var (
		res  asr.Result
		soft error
	)
	err := a.cb.Execute(func() error {
		r, err := a.inner.Transcribe(ctx, pcm, hint)
		if err != nil {
			if isSoft(err) || errors.Is(err, asr.ErrRateLimited) {
				soft = err
				return nil
			}
			return err
		}
		res = r
		return nil
	})
	if err != nil {
		return asr.Result{}, err
	}
	if soft != nil {
		return asr.Result{}, soft
	}
	return res, nil
}

func (a *BreakerASR) Name() string { return a.inner.Name() }

// BreakerTTS wraps a tts.Provider with a [CircuitBreaker].
type BreakerTTS struct {
	inner tts.Provider
	cb    *CircuitBreaker
}

// WrapTTS guards inner with a breaker configured by cfg. An empty cfg.Name
// defaults to the provider name.
func WrapTTS(inner tts.Provider, cfg CircuitBreakerConfig) *BreakerTTS {
	if cfg.Name == "" {
		cfg.Name = inner.Name()
	}
	return &BreakerTTS{inner: inner, cb: NewCircuitBreaker(cfg)}
}

func (t *BreakerTTS) Synthesize(ctx context.Context, text, lang string) ([]byte, error) {
	var (
		pcm  []byte
		soft error
	)
	err := t.cb.Execute(func() error {
		out, err := t.inner.Synthesize(ctx, text, lang)
		if err != nil {
			if isSoft(err) || errors.Is(err, tts.ErrRateLimited) || errors.Is(err, tts.ErrUnsupportedLanguage) {
				soft = err
				return nil
			}
			return err
		}
		pcm = out
		return nil
	})
	if err != nil {
		return nil, err
	}
	if soft != nil {
		return nil, soft
	}
	return pcm, nil
}

func (t *BreakerTTS) Name() string { return t.inner.Name() }

// isSoft reports whether err reflects the caller rather than the provider.
func isSoft(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
