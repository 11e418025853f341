package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/parley/internal/gateway"
)

// ValidProviderNames lists known provider names per capability.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm": {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"stt": {"openai", "whisper", "whisper-native"},
	"tts": {"openai", "kokoro"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader].
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

// LoadFromReader decodes a YAML config from r, applies defaults and
// validates the result. Unknown fields are rejected.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	cfg.applyDefaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}

	// Providers
	if !cfg.Providers.STT.Primary.Configured() {
		errs = append(errs, errors.New("providers.stt.primary.name is required"))
	}
	if !cfg.Providers.LLM.Configured() {
		errs = append(errs, errors.New("providers.llm.name is required"))
	}
	if cfg.Conversation.Audio() && !cfg.Providers.TTS.Primary.Configured() {
		errs = append(errs, errors.New("providers.tts.primary.name is required when conversation.audio_enabled is true"))
	}
	if cfg.Providers.STT.Fallback.Configured() && !cfg.Providers.STT.Primary.Configured() {
		errs = append(errs, errors.New("providers.stt.fallback requires providers.stt.primary"))
	}
	if cfg.Providers.TTS.Fallback.Configured() && !cfg.Providers.TTS.Primary.Configured() {
		errs = append(errs, errors.New("providers.tts.fallback requires providers.tts.primary"))
	}
	validateProviderName("stt", cfg.Providers.STT.Primary.Name)
	validateProviderName("stt", cfg.Providers.STT.Fallback.Name)
	validateProviderName("tts", cfg.Providers.TTS.Primary.Name)
	validateProviderName("tts", cfg.Providers.TTS.Fallback.Name)
	validateProviderName("llm", cfg.Providers.LLM.Name)
	warnSameFallback("stt", cfg.Providers.STT)
	warnSameFallback("tts", cfg.Providers.TTS)
	if cfg.Providers.LLM.Configured() && cfg.Providers.LLM.Model == "" {
		errs = append(errs, errors.New("providers.llm.model is required"))
	}

	// Chat
	if _, err := gateway.ParsePromptMode(cfg.Chat.PromptMode); err != nil {
		errs = append(errs, fmt.Errorf("chat.prompt_mode: %w", err))
	}
	if cfg.Chat.PromptMode == string(gateway.PromptOverride) && cfg.Chat.StylePrompt == "" {
		slog.Warn("chat.prompt_mode is override but chat.style_prompt is empty; scenario prompts will be used")
	}
	if t := cfg.Chat.Temp(); t < 0 || t > 2 {
		errs = append(errs, fmt.Errorf("chat.temperature %.2f is out of range [0, 2]", t))
	}
	if cfg.Chat.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("chat.max_tokens %d must not be negative", cfg.Chat.MaxTokens))
	}

	// Conversation
	conv := cfg.Conversation
	if conv.SpeechSpeed != 0 && (conv.SpeechSpeed < 0.25 || conv.SpeechSpeed > 4) {
		errs = append(errs, fmt.Errorf("conversation.speech_speed %.2f is out of range [0.25, 4.0]", conv.SpeechSpeed))
	}
	if conv.NaturalEndingMinTurns < 0 {
		errs = append(errs, fmt.Errorf("conversation.natural_ending_min_turns %d must not be negative", conv.NaturalEndingMinTurns))
	}
	if conv.NoticeTTL < 0 {
		errs = append(errs, fmt.Errorf("conversation.notice_ttl %s must not be negative", conv.NoticeTTL))
	}
	if conv.MaxDuration < 0 {
		errs = append(errs, fmt.Errorf("conversation.max_duration %s must not be negative", conv.MaxDuration))
	}

	// Resilience
	res := cfg.Resilience
	if res.MaxFailures < 0 || res.HalfOpenMax < 0 || res.ResetTimeout < 0 {
		errs = append(errs, errors.New("resilience values must not be negative"))
	}

	if cfg.Store.PostgresDSN == "" {
		slog.Debug("store.postgres_dsn is empty; sessions are kept in memory only")
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok || slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name; may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}

func warnSameFallback(kind string, c CapabilityConfig) {
	if c.Fallback.Configured() && c.Fallback.Name == c.Primary.Name && c.Fallback.BaseURL == c.Primary.BaseURL {
		slog.Warn("fallback provider is identical to the primary", "kind", kind, "name", c.Primary.Name)
	}
}
