// Package mock provides an in-memory mock implementation of the
// [promptaudio.Provider] interface for use in unit tests.
//
// The mock is safe for concurrent use. Set the exported Result fields before
// use; inspect the recorded calls after.
package mock

import (
	"context"
	"sync"

	"github.com/vocadrill/vocadrill/pkg/speech/promptaudio"
)

// RenderCall records the arguments of a single [Provider.Render] invocation.
type RenderCall struct {
	// Text is the text passed to Render.
	Text string

	// LanguageCode is the language code passed to Render.
	LanguageCode string
}

// Provider is a mock implementation of [promptaudio.Provider].
type Provider struct {
	mu sync.Mutex

	// RenderResult is returned by Render when RenderError is nil.
	RenderResult promptaudio.Clip

	// RenderError is returned by Render.
	RenderError error

	// RenderCalls records all Render invocations.
	RenderCalls []RenderCall
}

// Render implements [promptaudio.Provider]. Records the call and returns
// RenderResult / RenderError.
func (p *Provider) Render(_ context.Context, text, languageCode string) (promptaudio.Clip, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.RenderCalls = append(p.RenderCalls, RenderCall{Text: text, LanguageCode: languageCode})
	if p.RenderError != nil {
		return promptaudio.Clip{}, p.RenderError
	}
	return p.RenderResult, nil
}

// Compile-time assertion that Provider satisfies promptaudio.Provider.
var _ promptaudio.Provider = (*Provider)(nil)
