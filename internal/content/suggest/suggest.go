// Package suggest generates example sentences for vocabulary authoring.
//
// Given a word, its translation, and the target language, a [Suggester]
// produces a short example sentence using the word together with its
// translation into the learner's language. The LLM-backed [Generator] wraps
// github.com/mozilla-ai/any-llm-go so any of its providers (OpenAI,
// Anthropic, Gemini, Ollama, Mistral, Groq) can serve the request.
package suggest

import (
	"context"
	"fmt"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/groq"
	"github.com/mozilla-ai/any-llm-go/providers/mistral"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"
)

// Suggestion is one generated example.
type Suggestion struct {
	// Example is the sentence in the target language.
	Example string

	// Translation is the sentence in the learner's language.
	Translation string
}

// Suggester produces an example sentence for a vocabulary item.
type Suggester interface {
	Suggest(ctx context.Context, word, translation, targetLang, nativeLang string) (Suggestion, error)
}

const systemPrompt = `You write example sentences for a children's vocabulary trainer.
Given a word in the target language and its translation, answer with exactly two lines:
line 1: one short, simple sentence in the target language using the word;
line 2: that sentence translated into the learner's language.
Use vocabulary a young child knows. No numbering, no quotes, no extra text.`

// completionBackend is the slice of the any-llm-go provider surface the
// generator needs.
type completionBackend interface {
	Completion(ctx context.Context, params anyllmlib.CompletionParams) (*anyllmlib.ChatCompletion, error)
}

// Generator implements [Suggester] on top of an any-llm-go provider.
type Generator struct {
	backend completionBackend
	model   string
}

// New creates a Generator backed by the given LLM provider name.
//
// providerName is one of: "openai", "anthropic", "gemini", "ollama",
// "mistral", "groq". model is the specific model to use (e.g.,
// "gpt-4o-mini"). opts are any-llm-go configuration options; without an API
// key option the provider falls back to its environment variable.
func New(providerName, model string, opts ...anyllmlib.Option) (*Generator, error) {
	if providerName == "" {
		return nil, fmt.Errorf("suggest: providerName must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("suggest: model must not be empty")
	}

	backend, err := createBackend(providerName, opts...)
	if err != nil {
		return nil, fmt.Errorf("suggest: create %q backend: %w", providerName, err)
	}
	return &Generator{backend: backend, model: model}, nil
}

func createBackend(providerName string, opts ...anyllmlib.Option) (anyllmlib.Provider, error) {
	switch strings.ToLower(providerName) {
	case "openai":
		return anyllmoai.New(opts...)
	case "anthropic":
		return anthropic.New(opts...)
	case "gemini":
		return gemini.New(opts...)
	case "ollama":
		return ollama.New(opts...)
	case "mistral":
		return mistral.New(opts...)
	case "groq":
		return groq.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported provider %q; supported: openai, anthropic, gemini, ollama, mistral, groq", providerName)
	}
}

// Suggest implements [Suggester].
func (g *Generator) Suggest(ctx context.Context, word, translation, targetLang, nativeLang string) (Suggestion, error) {
	if strings.TrimSpace(word) == "" {
		return Suggestion{}, fmt.Errorf("suggest: word must not be empty")
	}

	temp := 0.7
	params := anyllmlib.CompletionParams{
		Model:       g.model,
		Temperature: &temp,
		Messages: []anyllmlib.Message{
			{Role: anyllmlib.RoleSystem, Content: systemPrompt},
			{Role: anyllmlib.RoleUser, Content: fmt.Sprintf(
				"Target language: %s\nLearner's language: %s\nWord: %s\nTranslation: %s",
				targetLang, nativeLang, word, translation,
			)},
		},
	}

	resp, err := g.backend.Completion(ctx, params)
	if err != nil {
		return Suggestion{}, fmt.Errorf("suggest: completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Suggestion{}, fmt.Errorf("suggest: empty choices in response")
	}

	return parseSuggestion(resp.Choices[0].Message.ContentString())
}

// parseSuggestion splits the model's two-line answer into a [Suggestion].
func parseSuggestion(text string) (Suggestion, error) {
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		if t := strings.TrimSpace(l); t != "" {
			lines = append(lines, t)
		}
	}
	if len(lines) < 2 {
		return Suggestion{}, fmt.Errorf("suggest: expected two lines, got %d in %q", len(lines), text)
	}
	return Suggestion{Example: lines[0], Translation: lines[1]}, nil
}

// Compile-time assertion that Generator satisfies Suggester.
var _ Suggester = (*Generator)(nil)
