// Package gtrans implements the [promptaudio.Provider] interface against the
// unofficial Google Translate text-to-speech endpoint.
//
// The endpoint serves short MP3 clips for a (text, language) pair without
// authentication, but rejects requests longer than roughly 200 characters
// and requests without a browser User-Agent. Both constraints are handled
// here: text is truncated and a browser UA is sent.
package gtrans

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/vocadrill/vocadrill/pkg/speech/promptaudio"
)

const (
	defaultBaseURL = "https://translate.google.com/translate_tts"
	defaultTimeout = 15 * time.Second

	// maxTextLength is the longest input the endpoint accepts per request.
	maxTextLength = 200

	// userAgent must look like a browser or the endpoint returns 403.
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
)

// langAliases maps legacy content codes to the codes the endpoint expects.
var langAliases = map[string]string{
	"cz": "cs",
	"ua": "uk",
}

// Option is a functional option for configuring a [Provider].
type Option func(*Provider)

// WithBaseURL overrides the endpoint URL. Useful for tests.
func WithBaseURL(u string) Option {
	return func(p *Provider) { p.baseURL = u }
}

// WithHTTPClient sets a custom HTTP client. Defaults to a client with a
// 15 s timeout.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.client = c }
}

// Provider renders prompt audio through the Google Translate TTS endpoint.
// Safe for concurrent use.
type Provider struct {
	baseURL string
	client  *http.Client
}

// New returns a Provider configured with the supplied options.
func New(opts ...Option) *Provider {
	p := &Provider{
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Render implements [promptaudio.Provider]. The returned clip is an MP3.
func (p *Provider) Render(ctx context.Context, text, languageCode string) (promptaudio.Clip, error) {
	if text == "" {
		return promptaudio.Clip{}, errors.New("gtrans: text must not be empty")
	}
	if languageCode == "" {
		return promptaudio.Clip{}, errors.New("gtrans: languageCode must not be empty")
	}
	if alias, ok := langAliases[languageCode]; ok {
		languageCode = alias
	}
	if runes := []rune(text); len(runes) > maxTextLength {
		text = string(runes[:maxTextLength])
	}

	q := url.Values{}
	q.Set("ie", "UTF-8")
	q.Set("tl", languageCode)
	q.Set("client", "tw-ob")
	q.Set("q", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return promptaudio.Clip{}, fmt.Errorf("gtrans: build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return promptaudio.Clip{}, fmt.Errorf("gtrans: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return promptaudio.Clip{}, fmt.Errorf("gtrans: endpoint returned %d: %s", resp.StatusCode, body)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return promptaudio.Clip{}, fmt.Errorf("gtrans: read response: %w", err)
	}
	if len(data) == 0 {
		return promptaudio.Clip{}, errors.New("gtrans: endpoint returned an empty clip")
	}

	return promptaudio.Clip{Data: data, MIMEType: "audio/mpeg"}, nil
}

// Compile-time assertion that Provider satisfies promptaudio.Provider.
var _ promptaudio.Provider = (*Provider)(nil)
