// Package openai provides a remote STT provider for the OpenAI audio
// transcription API and any server that mirrors it (Groq, LocalAI,
// faster-whisper-server), through the official SDK.
//
// The wire contract is a multipart POST of the audio file to
// {baseURL}/audio/transcriptions with bearer authentication, answered by a
// JSON object carrying at least {text, duration}.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"

	"github.com/MrWong99/parley/pkg/audio"
	"github.com/MrWong99/parley/pkg/provider"
	"github.com/MrWong99/parley/pkg/provider/stt"
)

const (
	defaultModel   = "whisper-1"
	defaultTimeout = 60 * time.Second
)

var _ stt.Provider = (*Provider)(nil)

type config struct {
	baseURL    string
	model      string
	language   string
	httpClient *http.Client
}

// Option is a functional option for configuring a Provider.
type Option func(*config)

// WithBaseURL overrides the API base URL (default "https://api.openai.com/v1").
func WithBaseURL(u string) Option {
	return func(c *config) { c.baseURL = u }
}

// WithModel sets the transcription model. Defaults to "whisper-1".
func WithModel(model string) Option {
	return func(c *config) { c.model = model }
}

// WithLanguage sets an ISO-639-1 language hint. Empty lets the API detect it.
func WithLanguage(lang string) Option {
	return func(c *config) { c.language = lang }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *config) { c.httpClient = hc }
}

// Provider implements stt.Provider against the OpenAI transcription API.
type Provider struct {
	client   oai.Client
	model    string
	language string
}

// New creates a Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("openai stt: apiKey must not be empty")
	}
	cfg := &config{model: defaultModel, httpClient: &http.Client{Timeout: defaultTimeout}}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
		option.WithHTTPClient(cfg.httpClient),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	return &Provider{
		client:   oai.NewClient(reqOpts...),
		model:    cfg.model,
		language: cfg.language,
	}, nil
}

// Transcribe uploads clip and returns the recognized text.
func (p *Provider) Transcribe(ctx context.Context, clip audio.Clip) (*stt.Result, error) {
	data, mimeType := clip.Data, clip.MIMEType
	if clip.IsPCM() {
		wav, err := clip.WAV()
		if err != nil {
			return nil, fmt.Errorf("openai stt: %w", err)
		}
		data, mimeType = wav, audio.MIMEWAV
	}

	params := oai.AudioTranscriptionNewParams{
		File:           oai.File(bytes.NewReader(data), clip.Filename(), mimeType),
		Model:          oai.AudioModel(p.model),
		ResponseFormat: oai.AudioResponseFormatVerboseJSON,
	}
	if p.language != "" {
		params.Language = param.NewOpt(p.language)
	}

	resp, err := p.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai stt: %w", classify(err))
	}

	// verbose_json adds the duration, which the typed response omits.
	var verbose struct {
		Text     *string `json:"text"`
		Duration float64 `json:"duration"`
	}
	if err := json.Unmarshal([]byte(resp.RawJSON()), &verbose); err != nil {
		return nil, fmt.Errorf("openai stt: %w: decode response: %w", provider.ErrProtocol, err)
	}
	if verbose.Text == nil {
		return nil, fmt.Errorf("openai stt: %w: response has no text field", provider.ErrProtocol)
	}

	dur := time.Duration(verbose.Duration * float64(time.Second))
	if dur == 0 {
		dur = clip.Duration()
	}
	return &stt.Result{Text: strings.TrimSpace(*verbose.Text), Duration: dur}, nil
}

// CheckConnection lists models, which verifies both reachability and the
// API key.
func (p *Provider) CheckConnection(ctx context.Context) error {
	if _, err := p.client.Models.List(ctx); err != nil {
		return fmt.Errorf("openai stt: %w", classify(err))
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
