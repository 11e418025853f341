package config

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"time"

	"github.com/MrWong99/parley/internal/gateway"
)

// Snapshot is the configuration a single session runs with. It is taken
// once at session start so later config reloads or preference edits never
// change a running session.
type Snapshot struct {
	Providers    ProvidersConfig
	Chat         ChatConfig
	Conversation ConversationConfig
	Resilience   ResilienceConfig
}

// preferenceSetters maps user-editable preference keys onto the snapshot.
var preferenceSetters = map[string]func(*Config, string) error{
	"chat.prompt_mode":  func(c *Config, v string) error { c.Chat.PromptMode = v; return nil },
	"chat.style_prompt": func(c *Config, v string) error { c.Chat.StylePrompt = v; return nil },
	"chat.temperature": func(c *Config, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		c.Chat.Temperature = &f
		return nil
	},
	"chat.max_tokens": intPref(func(c *Config) *int { return &c.Chat.MaxTokens }),
	"conversation.audio_enabled": func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		c.Conversation.AudioEnabled = &b
		return nil
	},
	"conversation.speech_speed":             floatPref(func(c *Config) *float64 { return &c.Conversation.SpeechSpeed }),
	"conversation.natural_ending_min_turns": intPref(func(c *Config) *int { return &c.Conversation.NaturalEndingMinTurns }),
	"conversation.notice_ttl":               durationPref(func(c *Config) *time.Duration { return &c.Conversation.NoticeTTL }),
	"conversation.max_duration":             durationPref(func(c *Config) *time.Duration { return &c.Conversation.MaxDuration }),
	"conversation.max_consecutive_failures": intPref(func(c *Config) *int { return &c.Conversation.MaxConsecutiveFailures }),
	"providers.stt.primary":                 func(c *Config, v string) error { c.Providers.STT.Primary.Name = v; return nil },
	"providers.tts.primary":                 func(c *Config, v string) error { c.Providers.TTS.Primary.Name = v; return nil },
	"providers.llm.model":                   func(c *Config, v string) error { c.Providers.LLM.Model = v; return nil },
}

// PreferenceKeys returns the preference keys that [NewSnapshot] understands,
// sorted.
func PreferenceKeys() []string {
	return slices.Sorted(maps.Keys(preferenceSetters))
}

// IsPreferenceKey reports whether key is a known preference.
func IsPreferenceKey(key string) bool {
	_, ok := preferenceSetters[key]
	return ok
}

// NewSnapshot merges prefs over cfg and validates the result. Unknown keys
// are ignored. Malformed values and an invalid merged config return an
// error listing every problem.
func NewSnapshot(cfg *Config, prefs map[string]string) (Snapshot, error) {
	merged := cfg.clone()

	var errs []error
	for _, key := range slices.Sorted(maps.Keys(prefs)) {
		set, ok := preferenceSetters[key]
		if !ok {
			slog.Debug("config: ignoring unknown preference", "key", key)
			continue
		}
		if err := set(merged, prefs[key]); err != nil {
			errs = append(errs, fmt.Errorf("preference %s: %w", key, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return Snapshot{}, fmt.Errorf("config: snapshot: %w", err)
	}
	if err := Validate(merged); err != nil {
		return Snapshot{}, fmt.Errorf("config: snapshot: %w", err)
	}
	return Snapshot{
		Providers:    merged.Providers,
		Chat:         merged.Chat,
		Conversation: merged.Conversation,
		Resilience:   merged.Resilience,
	}, nil
}

// ChatOptions returns the chat gateway settings of s.
func (s Snapshot) ChatOptions() gateway.ChatOptions {
	mode, err := gateway.ParsePromptMode(s.Chat.PromptMode)
	if err != nil {
		mode = gateway.PromptEnhance
	}
	temp := s.Chat.Temp()
	return gateway.ChatOptions{
		Mode:        mode,
		StylePrompt: s.Chat.StylePrompt,
		Temperature: &temp,
		MaxTokens:   s.Chat.MaxTokens,
	}
}

// clone copies c deeply enough that preference setters cannot reach the
// original.
func (c *Config) clone() *Config {
	out := *c
	if c.Server.TLS != nil {
		tls := *c.Server.TLS
		out.Server.TLS = &tls
	}
	out.Server.AllowedOrigins = slices.Clone(c.Server.AllowedOrigins)
	if c.Conversation.AudioEnabled != nil {
		b := *c.Conversation.AudioEnabled
		out.Conversation.AudioEnabled = &b
	}
	if c.Chat.Temperature != nil {
		t := *c.Chat.Temperature
		out.Chat.Temperature = &t
	}
	out.Providers.STT.Primary.Options = maps.Clone(c.Providers.STT.Primary.Options)
	out.Providers.STT.Fallback.Options = maps.Clone(c.Providers.STT.Fallback.Options)
	out.Providers.TTS.Primary.Options = maps.Clone(c.Providers.TTS.Primary.Options)
	out.Providers.TTS.Fallback.Options = maps.Clone(c.Providers.TTS.Fallback.Options)
	out.Providers.LLM.Options = maps.Clone(c.Providers.LLM.Options)
	return &out
}

func floatPref(field func(*Config) *float64) func(*Config, string) error {
	return func(c *Config, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		*field(c) = f
		return nil
	}
}

func intPref(field func(*Config) *int) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*field(c) = n
		return nil
	}
}

func durationPref(field func(*Config) *time.Duration) func(*Config, string) error {
	return func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*field(c) = d
		return nil
	}
}
