// Command vaani is the main entry point for the Vaani call engine server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/vaanilabs/vaani/internal/call"
	"github.com/vaanilabs/vaani/internal/config"
	"github.com/vaanilabs/vaani/internal/health"
	"github.com/vaanilabs/vaani/internal/intent"
	"github.com/vaanilabs/vaani/internal/observe"
	"github.com/vaanilabs/vaani/internal/ratelimit"
	"github.com/vaanilabs/vaani/internal/resilience"
	"github.com/vaanilabs/vaani/internal/server"
	"github.com/vaanilabs/vaani/pkg/callrecord"
	pgrecord "github.com/vaanilabs/vaani/pkg/callrecord/postgres"
	"github.com/vaanilabs/vaani/pkg/provider/asr"
	sarvamasr "github.com/vaanilabs/vaani/pkg/provider/asr/sarvam"
	"github.com/vaanilabs/vaani/pkg/provider/llm"
	oaillm "github.com/vaanilabs/vaani/pkg/provider/llm/openai"
	"github.com/vaanilabs/vaani/pkg/provider/transfer"
	"github.com/vaanilabs/vaani/pkg/provider/transfer/twilio"
	"github.com/vaanilabs/vaani/pkg/provider/tts"
	sarvamtts "github.com/vaanilabs/vaani/pkg/provider/tts/sarvam"
	"github.com/vaanilabs/vaani/pkg/session"
)

// version is stamped by the build; "dev" for local builds.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "vaani: config file %q not found, copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "vaani: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("vaani starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "vaani",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(sctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Providers ─────────────────────────────────────────────────────────────
	limiters := ratelimit.NewLimiters(ratelimit.Config{
		ASRPerMinute: cfg.Rate.ASRPerMin,
		ASRMinGap:    time.Duration(cfg.Rate.ASRMinGapMS) * time.Millisecond,
		TTSPerMinute: cfg.Rate.TTSPerMin,
		LLMPerMinute: cfg.Rate.LLMPerMin,
	})

	asrProvider, err := buildASR(cfg, limiters.ASR)
	if err != nil {
		slog.Error("failed to create asr provider", "err", err)
		return 1
	}
	slog.Info("provider created", "kind", "asr", "name", asrProvider.Name())

	ttsProvider, err := buildTTS(cfg, limiters.TTS)
	if err != nil {
		slog.Error("failed to create tts provider", "err", err)
		return 1
	}
	slog.Info("provider created", "kind", "tts", "name", ttsProvider.Name())

	// Breakers let a provider outage fail calls fast instead of burning each
	// call's latency budget on doomed requests.
	guardedASR := resilience.WrapASR(asrProvider, resilience.CircuitBreakerConfig{Name: "asr", Log: logger})
	guardedTTS := resilience.WrapTTS(ttsProvider, resilience.CircuitBreakerConfig{Name: "tts", Log: logger})

	// The LLM classifier is optional: without one the agent-connect reply is
	// classified by the lexicon alone.
	var llmClassifier llm.Classifier
	if cfg.Providers.LLM.APIKey != "" {
		llmClassifier, err = buildLLM(cfg)
		if err != nil {
			slog.Error("failed to create llm provider", "err", err)
			return 1
		}
		slog.Info("provider created", "kind", "llm", "name", cfg.Providers.LLM.Name)
	} else {
		slog.Info("no llm configured, intent classification is lexicon-only")
	}
	classifier := intent.NewClassifier(llmClassifier, limiters.LLM, logger)

	transferClient, err := buildTransfer(cfg)
	if err != nil {
		slog.Error("failed to create transfer provider", "err", err)
		return 1
	}
	slog.Info("provider created", "kind", "transfer", "name", transferClient.Name())

	// ── Session store ─────────────────────────────────────────────────────────
	rdb := redis.NewClient(&redis.Options{Addr: cfg.SessionStore.RedisAddr})
	defer rdb.Close()
	store := session.NewRedisStore(rdb, session.WithPrefix(cfg.SessionStore.KeyPrefix))

	checks := []health.Checker{{
		Name:  "redis",
		Check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	}}

	// ── Call records and phone fallback ───────────────────────────────────────
	var (
		recorder callrecord.Recorder
		phones   call.PhoneDirectory
	)
	if dsn := cfg.Database.PostgresDSN; dsn != "" {
		pool, err := pgxpool.New(ctx, dsn)
		if err != nil {
			slog.Error("failed to connect to postgres", "err", err)
			return 1
		}
		defer pool.Close()
		recorder = pgrecord.New(pool)
		phones = session.NewPhoneLookup(pool)
		checks = append(checks, health.Checker{Name: "postgres", Check: pool.Ping})
		slog.Info("postgres connected")
	} else {
		recorder = callrecord.NewLogRecorder(logger)
		slog.Info("no postgres_dsn configured, call records go to the log and the phone fallback is disabled")
	}

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)

	deps := call.Deps{
		ASR:      guardedASR,
		TTS:      guardedTTS,
		Intent:   classifier,
		Transfer: transferClient,
		Store:    store,
		Phones:   phones,
		Recorder: recorder,
		Metrics:  observe.DefaultMetrics(),
		Log:      logger,
	}

	slog.Info("server ready, press Ctrl+C to shut down")

	if err := server.New(cfg, deps, checks...).ListenAndServe(ctx); err != nil &&
		!errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

func buildASR(cfg *config.Config, limiter *ratelimit.Limiter) (asr.Provider, error) {
	entry := cfg.Providers.ASR
	name := entry.Name
	if name == "" {
		name = "sarvam"
	}
	switch name {
	case "sarvam":
		opts := []sarvamasr.Option{
			sarvamasr.WithLimiter(limiter),
			sarvamasr.WithRetry(cfg.ASR.MaxRetries, time.Duration(cfg.ASR.RetryDelayMS)*time.Millisecond),
			sarvamasr.WithMinAudio(time.Duration(cfg.ASR.MinAudioMS)*time.Millisecond, cfg.ASR.MinAudioBytes),
		}
		if entry.Model != "" {
			opts = append(opts, sarvamasr.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, sarvamasr.WithBaseURL(entry.BaseURL))
		}
		return sarvamasr.New(entry.APIKey, opts...)
	default:
		return nil, fmt.Errorf("unknown asr provider %q", name)
	}
}

func buildTTS(cfg *config.Config, limiter *ratelimit.Limiter) (tts.Provider, error) {
	entry := cfg.Providers.TTS
	name := entry.Name
	if name == "" {
		name = "sarvam"
	}
	switch name {
	case "sarvam":
		opts := []sarvamtts.Option{sarvamtts.WithLimiter(limiter)}
		if entry.Model != "" {
			opts = append(opts, sarvamtts.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, sarvamtts.WithBaseURL(entry.BaseURL))
		}
		return sarvamtts.New(entry.APIKey, opts...)
	default:
		return nil, fmt.Errorf("unknown tts provider %q", name)
	}
}

func buildLLM(cfg *config.Config) (llm.Classifier, error) {
	entry := cfg.Providers.LLM
	name := entry.Name
	if name == "" {
		name = "openai"
	}
	switch name {
	case "openai":
		var opts []oaillm.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaillm.WithBaseURL(entry.BaseURL))
		}
		return oaillm.New(entry.APIKey, entry.Model, opts...)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", name)
	}
}

func buildTransfer(cfg *config.Config) (transfer.Client, error) {
	entry := cfg.Providers.Transfer
	name := entry.Name
	if name == "" {
		name = "twilio"
	}
	switch name {
	case "twilio":
		return twilio.New(entry.AccountSID, entry.AuthToken,
			twilio.WithTimeout(time.Duration(cfg.Transfer.TimeoutS)*time.Second))
	default:
		return nil, fmt.Errorf("unknown transfer provider %q", name)
	}
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║          Vaani — startup summary      ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printLine("ASR", providerLabel(cfg.Providers.ASR, "sarvam"))
	printLine("TTS", providerLabel(cfg.Providers.TTS, "sarvam"))
	if cfg.Providers.LLM.APIKey != "" {
		printLine("LLM", providerLabel(cfg.Providers.LLM, "openai"))
	} else {
		printLine("LLM", "(lexicon only)")
	}
	printLine("Transfer", orDefault(cfg.Providers.Transfer.Name, "twilio"))
	printLine("Agent number", maskNumber(cfg.Transfer.AgentNumber))
	printLine("Session store", cfg.SessionStore.RedisAddr)
	if cfg.Database.PostgresDSN != "" {
		printLine("Database", "postgres")
	} else {
		printLine("Database", "(log only)")
	}
	printLine("Default lang", cfg.Language.Default)
	printLine("Listen addr", cfg.Server.ListenAddr)
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printLine(kind, value string) {
	if len([]rune(value)) > 19 {
		value = string([]rune(value)[:16]) + "…"
	}
	fmt.Printf("║  %-14s  : %-19s ║\n", kind, value)
}

func providerLabel(entry config.ProviderEntry, fallback string) string {
	name := orDefault(entry.Name, fallback)
	if entry.Model != "" {
		return name + " / " + entry.Model
	}
	return name
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

// maskNumber hides all but the last four digits of a phone number, so the
// agent line does not end up verbatim in terminal scrollback.
func maskNumber(num string) string {
	if len(num) <= 4 {
		return num
	}
	head := num[:len(num)-4]
	var b strings.Builder
	for _, r := range head {
		if r >= '0' && r <= '9' {
			b.WriteRune('•')
		} else {
			b.WriteRune(r)
		}
	}
	return b.String() + num[len(num)-4:]
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
