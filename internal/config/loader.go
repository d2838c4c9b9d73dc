package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vaanilabs/vaani/internal/langid"
)

// e164 matches a full E.164 number: plus sign, 8 to 15 digits, no leading 0.
var e164 = regexp.MustCompile(`^\+[1-9][0-9]{7,14}$`)

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills unset fields with their documented default values.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.SessionStore.RedisAddr == "" {
		cfg.SessionStore.RedisAddr = "localhost:6379"
	}
	if cfg.SessionStore.TTL <= 0 {
		cfg.SessionStore.TTL = 2 * time.Hour
	}
	if cfg.SessionStore.KeyPrefix == "" {
		cfg.SessionStore.KeyPrefix = "vaani"
	}
	if cfg.Language.Default == "" {
		cfg.Language.Default = string(langid.English)
	}
	if cfg.ASR.MaxRetries <= 0 {
		cfg.ASR.MaxRetries = 2
	}
	if cfg.ASR.RetryDelayMS <= 0 {
		cfg.ASR.RetryDelayMS = 600
	}
	if cfg.ASR.MinAudioMS <= 0 {
		cfg.ASR.MinAudioMS = 1000
	}
	if cfg.ASR.MinAudioBytes <= 0 {
		cfg.ASR.MinAudioBytes = 500
	}
	if cfg.TTS.ChunkMS <= 0 {
		cfg.TTS.ChunkMS = 20
	}
	if cfg.TTS.ProcessingTailMS <= 0 {
		cfg.TTS.ProcessingTailMS = 500
	}
	if cfg.Buffer.MinUtteranceMS <= 0 {
		cfg.Buffer.MinUtteranceMS = 1000
	}
	if cfg.Buffer.QuietWindowMS <= 0 {
		cfg.Buffer.QuietWindowMS = 600
	}
	if cfg.Buffer.HardCapMS <= 0 {
		cfg.Buffer.HardCapMS = 12000
	}
	if cfg.Wait.ConfirmationS <= 0 {
		cfg.Wait.ConfirmationS = 7
	}
	if cfg.Wait.AgentResponseS <= 0 {
		cfg.Wait.AgentResponseS = 7
	}
	if cfg.Wait.RepeatMax <= 0 {
		cfg.Wait.RepeatMax = 2
	}
	if cfg.Call.MaxDurationS <= 0 {
		cfg.Call.MaxDurationS = 600
	}
	if cfg.Call.ContextGraceS <= 0 {
		cfg.Call.ContextGraceS = 10
	}
	if cfg.Call.ContextPollMS <= 0 {
		cfg.Call.ContextPollMS = 500
	}
	if cfg.Transfer.OnRepeatedUnclear == "" {
		cfg.Transfer.OnRepeatedUnclear = PolicyTransfer
	}
	if cfg.Transfer.TimeoutS <= 0 {
		cfg.Transfer.TimeoutS = 5
	}
	if cfg.Rate.ASRPerMin <= 0 {
		cfg.Rate.ASRPerMin = 20
	}
	if cfg.Rate.ASRMinGapMS <= 0 {
		cfg.Rate.ASRMinGapMS = 3000
	}
	if cfg.Rate.TTSPerMin <= 0 {
		cfg.Rate.TTSPerMin = 60
	}
	if cfg.Rate.LLMPerMin <= 0 {
		cfg.Rate.LLMPerMin = 30
	}
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level: unknown level %q", cfg.Server.LogLevel))
	}
	if cfg.Providers.ASR.APIKey == "" {
		errs = append(errs, errors.New("providers.asr.api_key: must not be empty"))
	}
	if cfg.Providers.TTS.APIKey == "" {
		errs = append(errs, errors.New("providers.tts.api_key: must not be empty"))
	}
	if cfg.Transfer.AgentNumber == "" {
		errs = append(errs, errors.New("transfer.agent_number: must not be empty"))
	} else if !e164.MatchString(cfg.Transfer.AgentNumber) {
		errs = append(errs, fmt.Errorf("transfer.agent_number: %q is not E.164", cfg.Transfer.AgentNumber))
	}
	if !cfg.Transfer.OnRepeatedUnclear.IsValid() {
		errs = append(errs, fmt.Errorf("transfer.on_repeated_unclear: unknown policy %q", cfg.Transfer.OnRepeatedUnclear))
	}
	if !langid.Supported(langid.Language(cfg.Language.Default)) {
		errs = append(errs, fmt.Errorf("language.default: unsupported tag %q", cfg.Language.Default))
	}
	for state, tag := range cfg.Language.StateMap {
		if !langid.Supported(langid.Language(tag)) {
			errs = append(errs, fmt.Errorf("language.state_map[%q]: unsupported tag %q", state, tag))
		}
	}
	if cfg.Buffer.QuietWindowMS >= cfg.Buffer.HardCapMS {
		errs = append(errs, errors.New("buffer.quiet_window_ms must be below buffer.hard_cap_ms"))
	}

	return errors.Join(errs...)
}
