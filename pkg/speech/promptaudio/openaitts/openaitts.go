// Package openaitts implements the [promptaudio.Provider] interface using the
// OpenAI speech synthesis API.
//
// Unlike the Google Translate endpoint this path requires an API key, but the
// voices are multilingual: the model infers the language from the text, so
// the languageCode is not sent to the API.
package openaitts

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/vocadrill/vocadrill/pkg/speech/promptaudio"
)

const (
	defaultModel = "tts-1"
	defaultVoice = "nova"
)

// config holds optional configuration for the provider.
type config struct {
	model   string
	voice   string
	baseURL string
	timeout time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithModel overrides the synthesis model. Default: "tts-1".
func WithModel(model string) Option {
	return func(c *config) { c.model = model }
}

// WithVoice overrides the voice. Default: "nova".
func WithVoice(voice string) Option {
	return func(c *config) { c.voice = voice }
}

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// Provider renders prompt audio through the OpenAI speech API.
// Safe for concurrent use.
type Provider struct {
	client oai.Client
	model  string
	voice  string
}

// New constructs a Provider authenticated with apiKey.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openaitts: apiKey must not be empty")
	}

	cfg := &config{model: defaultModel, voice: defaultVoice}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	return &Provider{
		client: oai.NewClient(reqOpts...),
		model:  cfg.model,
		voice:  cfg.voice,
	}, nil
}

// Render implements [promptaudio.Provider]. The returned clip is an MP3.
// languageCode is accepted for interface compatibility but not forwarded;
// the model speaks whatever language the text is in.
func (p *Provider) Render(ctx context.Context, text, _ string) (promptaudio.Clip, error) {
	if text == "" {
		return promptaudio.Clip{}, fmt.Errorf("openaitts: text must not be empty")
	}

	resp, err := p.client.Audio.Speech.New(ctx, oai.AudioSpeechNewParams{
		Model:          oai.SpeechModel(p.model),
		Voice:          oai.AudioSpeechNewParamsVoice(p.voice),
		Input:          text,
		ResponseFormat: oai.AudioSpeechNewParamsResponseFormatMP3,
	})
	if err != nil {
		return promptaudio.Clip{}, fmt.Errorf("openaitts: synthesis request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return promptaudio.Clip{}, fmt.Errorf("openaitts: read audio: %w", err)
	}
	if len(data) == 0 {
		return promptaudio.Clip{}, fmt.Errorf("openaitts: API returned an empty clip")
	}

	return promptaudio.Clip{Data: data, MIMEType: "audio/mpeg"}, nil
}

// Compile-time assertion that Provider satisfies promptaudio.Provider.
var _ promptaudio.Provider = (*Provider)(nil)
