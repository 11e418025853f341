// Package kokoro provides a local TTS provider for Kokoro-FastAPI and other
// self-hosted servers exposing the OpenAI-compatible speech route, through
// the OpenAI SDK.
//
// Synthesis is a JSON POST of {model, input, voice, speed} to
// {baseURL}/v1/audio/speech; the response body is the raw audio.
//
// Typical usage:
//
//	p, err := kokoro.New("http://localhost:8880",
//	    kokoro.WithVoices("am_michael", "af_sky"),
//	    kokoro.WithTimeout(15*time.Second),
//	)
//	clip, err := p.Synthesize(ctx, tts.Request{Text: "Hi!", Voice: types.VoiceMale})
package kokoro

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"

	"github.com/MrWong99/parley/pkg/audio"
	"github.com/MrWong99/parley/pkg/provider"
	"github.com/MrWong99/parley/pkg/provider/tts"
	"github.com/MrWong99/parley/pkg/types"
)

// Compile-time interface assertion.
var _ tts.Provider = (*Provider)(nil)

const (
	defaultModel   = "kokoro"
	defaultTimeout = 30 * time.Second
	defaultFormat  = "mp3"
)

// formatMIME maps response_format values to clip MIME types.
var formatMIME = map[string]string{
	"mp3":  audio.MIMEMP3,
	"wav":  audio.MIMEWAV,
	"opus": "audio/ogg",
	"flac": "audio/flac",
	"pcm":  audio.MIMEPCM,
}

type config struct {
	model   string
	format  string
	timeout time.Duration
	voices  tts.VoiceTable
}

// Option is a functional option for configuring a Provider.
type Option func(*config)

// WithModel sets the model name sent to the server. Defaults to "kokoro".
func WithModel(model string) Option {
	return func(c *config) { c.model = model }
}

// WithVoices overrides the voices used for the male and female roles.
func WithVoices(male, female string) Option {
	return func(c *config) {
		if male != "" {
			c.voices[types.VoiceMale] = male
		}
		if female != "" {
			c.voices[types.VoiceFemale] = female
		}
	}
}

// WithResponseFormat sets the audio encoding requested from the server
// (mp3, wav, opus, flac, pcm). Defaults to mp3.
func WithResponseFormat(format string) Option {
	return func(c *config) { c.format = format }
}

// WithTimeout sets the per-request HTTP timeout. Defaults to 30 s.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// Provider implements tts.Provider against a local Kokoro server.
type Provider struct {
	client oai.Client
	model  string
	format string
	voices tts.VoiceTable
}

// New creates a Provider for the server at baseURL.
func New(baseURL string, opts ...Option) (*Provider, error) {
	if baseURL == "" {
		return nil, errors.New("kokoro: baseURL must not be empty")
	}
	cfg := &config{
		model:   defaultModel,
		format:  defaultFormat,
		timeout: defaultTimeout,
		voices: tts.VoiceTable{
			types.VoiceMale:   "am_adam",
			types.VoiceFemale: "af_heart",
		},
	}
	for _, o := range opts {
		o(cfg)
	}
	if _, ok := formatMIME[cfg.format]; !ok {
		return nil, fmt.Errorf("kokoro: unsupported response format %q", cfg.format)
	}

	// The server is unauthenticated; never forward an OPENAI_API_KEY from
	// the environment to it.
	client := oai.NewClient(
		option.WithBaseURL(strings.TrimRight(baseURL, "/")+"/v1/"),
		option.WithAPIKey(""),
		option.WithHeaderDel("Authorization"),
		option.WithMaxRetries(0),
		option.WithHTTPClient(&http.Client{Timeout: cfg.timeout}),
	)
	return &Provider{
		client: client,
		model:  cfg.model,
		format: cfg.format,
		voices: cfg.voices,
	}, nil
}

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(ctx context.Context, req tts.Request) (audio.Clip, error) {
	if strings.TrimSpace(req.Text) == "" {
		return audio.Clip{}, errors.New("kokoro: empty text")
	}
	resp, err := p.client.Audio.Speech.New(ctx, oai.AudioSpeechNewParams{
		Input:          req.Text,
		Model:          oai.SpeechModel(p.model),
		Voice:          oai.AudioSpeechNewParamsVoice(p.voices.Lookup(req.Voice)),
		Speed:          param.NewOpt(tts.ClampSpeed(req.Speed)),
		ResponseFormat: oai.AudioSpeechNewParamsResponseFormat(p.format),
	})
	if err != nil {
		return audio.Clip{}, fmt.Errorf("kokoro: %w", classify(err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return audio.Clip{}, fmt.Errorf("kokoro: read audio: %w", provider.TransportError(err))
	}
	if len(data) == 0 {
		return audio.Clip{}, fmt.Errorf("kokoro: %w: empty audio body", provider.ErrProtocol)
	}

	clip := audio.Clip{Data: data, MIMEType: formatMIME[p.format]}
	if p.format == "pcm" {
		// Kokoro streams raw PCM at 24 kHz mono.
		clip.SampleRate, clip.Channels = 24000, 1
	}
	return clip, nil
}

// CheckConnection queries the model list.
func (p *Provider) CheckConnection(ctx context.Context) error {
	if _, err := p.client.Models.List(ctx); err != nil {
		return fmt.Errorf("kokoro: %w", classify(err))
	}
	return nil
}

// classify maps SDK errors onto the provider taxonomy.
func classify(err error) error {
	var apiErr *oai.Error
	if errors.As(err, &apiErr) {
		return provider.StatusError(apiErr.StatusCode, apiErr.Message)
	}
	return provider.TransportError(err)
}
