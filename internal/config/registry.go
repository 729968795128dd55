package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/vocadrill/vocadrill/internal/content"
	"github.com/vocadrill/vocadrill/internal/content/suggest"
	"github.com/vocadrill/vocadrill/pkg/speech/promptaudio"
	"github.com/vocadrill/vocadrill/pkg/speech/recognize"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions for each
// provider type. It is safe for concurrent use.
type Registry struct {
	mu          sync.RWMutex
	recognition map[string]func(ProviderEntry) (recognize.Provider, error)
	promptAudio map[string]func(ProviderEntry) (promptaudio.Provider, error)
	content     map[string]func(ContentConfig) (content.Store, error)
	suggest     map[string]func(ProviderEntry) (suggest.Suggester, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		recognition: make(map[string]func(ProviderEntry) (recognize.Provider, error)),
		promptAudio: make(map[string]func(ProviderEntry) (promptaudio.Provider, error)),
		content:     make(map[string]func(ContentConfig) (content.Store, error)),
		suggest:     make(map[string]func(ProviderEntry) (suggest.Suggester, error)),
	}
}

// RegisterRecognition registers a speech-recognition provider factory under
// name. Subsequent calls with the same name overwrite the previous
// registration.
func (r *Registry) RegisterRecognition(name string, factory func(ProviderEntry) (recognize.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recognition[name] = factory
}

// RegisterPromptAudio registers a prompt-audio provider factory under name.
func (r *Registry) RegisterPromptAudio(name string, factory func(ProviderEntry) (promptaudio.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.promptAudio[name] = factory
}

// RegisterContent registers a content store factory under name.
func (r *Registry) RegisterContent(name string, factory func(ContentConfig) (content.Store, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.content[name] = factory
}

// RegisterSuggest registers an example-sentence suggester factory under name.
func (r *Registry) RegisterSuggest(name string, factory func(ProviderEntry) (suggest.Suggester, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.suggest[name] = factory
}

// CreateRecognition instantiates a speech-recognition provider using the
// factory registered under entry.Name. Returns [ErrProviderNotRegistered]
// if no factory has been registered for that name.
func (r *Registry) CreateRecognition(entry ProviderEntry) (recognize.Provider, error) {
	r.mu.RLock()
	factory, ok := r.recognition[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: recognition/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreatePromptAudio instantiates a prompt-audio provider using the factory
// registered under entry.Name.
func (r *Registry) CreatePromptAudio(entry ProviderEntry) (promptaudio.Provider, error) {
	r.mu.RLock()
	factory, ok := r.promptAudio[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: prompt_audio/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateContent instantiates a content store using the factory registered
// under cfg.Source.
func (r *Registry) CreateContent(cfg ContentConfig) (content.Store, error) {
	r.mu.RLock()
	factory, ok := r.content[string(cfg.Source)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: content/%q", ErrProviderNotRegistered, cfg.Source)
	}
	return factory(cfg)
}

// CreateSuggest instantiates an example-sentence suggester using the factory
// registered under entry.Name.
func (r *Registry) CreateSuggest(entry ProviderEntry) (suggest.Suggester, error) {
	r.mu.RLock()
	factory, ok := r.suggest[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: suggest/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}
