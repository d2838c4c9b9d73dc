// Package config provides the configuration schema and loader for the Vaani
// call engine.
package config

import (
	"time"

	"github.com/vaanilabs/vaani/internal/langid"
)

// LogLevel controls log verbosity for the server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// RepeatedUnclearPolicy decides what happens when the agent question has
// exhausted its retries.
type RepeatedUnclearPolicy string

const (
	// PolicyTransfer bridges to the agent anyway; an undecided caller is a
	// lead, not a decline.
	PolicyTransfer RepeatedUnclearPolicy = "transfer"

	// PolicyGoodbye plays the goodbye and ends the call.
	PolicyGoodbye RepeatedUnclearPolicy = "goodbye"
)

// IsValid reports whether p is a recognised policy.
func (p RepeatedUnclearPolicy) IsValid() bool {
	return p == PolicyTransfer || p == PolicyGoodbye
}

// Config is the root configuration structure, typically loaded from a YAML
// file using [Load] or [LoadFromReader].
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Providers    ProvidersConfig    `yaml:"providers"`
	SessionStore SessionStoreConfig `yaml:"session_store"`
	Database     DatabaseConfig     `yaml:"database"`
	Language     LanguageConfig     `yaml:"language"`
	ASR          ASRConfig          `yaml:"asr"`
	TTS          TTSConfig          `yaml:"tts"`
	Buffer       BufferConfig       `yaml:"buffer"`
	Wait         WaitConfig         `yaml:"wait"`
	Call         CallConfig         `yaml:"call"`
	Transfer     TransferConfig     `yaml:"transfer"`
	Rate         RateConfig         `yaml:"rate"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// PublicHost is the externally visible hostname, used in the startup
	// banner and stream URLs handed to the telephony provider.
	PublicHost string `yaml:"public_host"`
}

// ProvidersConfig declares credentials and models per provider kind.
type ProvidersConfig struct {
	ASR      ProviderEntry         `yaml:"asr"`
	TTS      ProviderEntry         `yaml:"tts"`
	LLM      ProviderEntry         `yaml:"llm"`
	Transfer TransferProviderEntry `yaml:"transfer"`
}

// ProviderEntry is the common configuration block for API-key providers.
type ProviderEntry struct {
	// Name selects the provider implementation (e.g., "sarvam", "openai").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint. Leave empty to
	// use the built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model (e.g., "saarika:v2", "gpt-4o-mini").
	Model string `yaml:"model"`
}

// TransferProviderEntry configures the telephony transfer provider.
type TransferProviderEntry struct {
	// Name selects the provider implementation (e.g., "twilio").
	Name string `yaml:"name"`

	// AccountSID and AuthToken are the provider account credentials.
	AccountSID string `yaml:"account_sid"`
	AuthToken  string `yaml:"auth_token"`
}

// SessionStoreConfig configures the key-value hand-off store.
type SessionStoreConfig struct {
	// RedisAddr is the host:port of the Redis instance.
	RedisAddr string `yaml:"redis_addr"`

	// TTL bounds snapshot lifetime; capped at 2 h by the store.
	TTL time.Duration `yaml:"ttl"`

	// KeyPrefix namespaces keys in a shared Redis. Default "vaani".
	KeyPrefix string `yaml:"key_prefix"`
}

// DatabaseConfig configures the relational store for call records and the
// phone-number fallback lookup.
type DatabaseConfig struct {
	// PostgresDSN is the connection string. When empty, call records are
	// logged instead of persisted and the phone fallback is disabled.
	PostgresDSN string `yaml:"postgres_dsn"`
}

// LanguageConfig configures initial language resolution.
type LanguageConfig struct {
	// Default is the language used when the customer's state is unmapped.
	Default string `yaml:"default"`

	// StateMap overrides the built-in state → language table. Keys are
	// lower-cased full state names, values language tags ("hi-IN").
	StateMap map[string]string `yaml:"state_map"`
}

// ResolvedStateMap returns the configured state map converted to langid
// types, or nil to use the built-in table.
func (l LanguageConfig) ResolvedStateMap() map[string]langid.Language {
	if len(l.StateMap) == 0 {
		return nil
	}
	out := make(map[string]langid.Language, len(l.StateMap))
	for k, v := range l.StateMap {
		out[k] = langid.Language(v)
	}
	return out
}

// ASRConfig tunes the speech-to-text adapter.
type ASRConfig struct {
	MaxRetries    int `yaml:"max_retries"`
	RetryDelayMS  int `yaml:"retry_delay_ms"`
	MinAudioMS    int `yaml:"min_audio_ms"`
	MinAudioBytes int `yaml:"min_audio_bytes"`
}

// TTSConfig tunes playback pacing.
type TTSConfig struct {
	// ChunkMS is the outbound frame cadence. The provider protocol fixes
	// this at 20 ms; the option exists for lab setups.
	ChunkMS int `yaml:"chunk_ms"`

	// ProcessingTailMS is the minimum quiet period after playback before
	// ASR re-enables; the effective tail is max(this, audio_ms/2).
	ProcessingTailMS int `yaml:"processing_tail_ms"`
}

// BufferConfig tunes utterance segmentation.
type BufferConfig struct {
	MinUtteranceMS int `yaml:"min_utterance_ms"`
	QuietWindowMS  int `yaml:"quiet_window_ms"`
	HardCapMS      int `yaml:"hard_cap_ms"`
}

// WaitConfig tunes reply windows and retry budgets.
type WaitConfig struct {
	ConfirmationS  int `yaml:"confirmation_s"`
	AgentResponseS int `yaml:"agent_response_s"`
	RepeatMax      int `yaml:"repeat_max"`
}

// CallConfig tunes session lifecycle limits.
type CallConfig struct {
	MaxDurationS  int `yaml:"max_duration_s"`
	ContextGraceS int `yaml:"context_grace_s"`
	ContextPollMS int `yaml:"context_poll_ms"`
}

// TransferConfig configures agent hand-off.
type TransferConfig struct {
	// AgentNumber is the E.164 number calls are bridged to.
	AgentNumber string `yaml:"agent_number"`

	// OnRepeatedUnclear picks the terminal policy when the agent question
	// retries are exhausted.
	OnRepeatedUnclear RepeatedUnclearPolicy `yaml:"on_repeated_unclear"`

	// TimeoutS bounds one bridge request.
	TimeoutS int `yaml:"timeout_s"`
}

// RateConfig configures process-wide provider limiters.
type RateConfig struct {
	ASRPerMin   int `yaml:"asr_per_min"`
	ASRMinGapMS int `yaml:"asr_min_gap_ms"`
	TTSPerMin   int `yaml:"tts_per_min"`
	LLMPerMin   int `yaml:"llm_per_min"`
}
