package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"recognition":  {"whisper", "whisper-native"},
	"prompt_audio": {"gtrans", "openai"},
	"suggest":      {"openai", "anthropic", "ollama", "gemini", "mistral", "groq"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
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

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" {
			errs = append(errs, errors.New("server.tls.cert_file is required when tls is set"))
		}
		if cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls.key_file is required when tls is set"))
		}
	}

	// Quiz tuning ranges. Zero means "use the default".
	q := cfg.Quiz
	if q.ToleranceRatio < 0 || q.ToleranceRatio > 1 {
		errs = append(errs, fmt.Errorf("quiz.tolerance_ratio %.2f is out of range [0, 1]", q.ToleranceRatio))
	}
	if q.ExactLength < 0 {
		errs = append(errs, fmt.Errorf("quiz.exact_length %d must not be negative", q.ExactLength))
	}
	if q.MinDistance < 0 {
		errs = append(errs, fmt.Errorf("quiz.min_distance %d must not be negative", q.MinDistance))
	}
	if q.PromptTimeoutMs < 0 {
		errs = append(errs, fmt.Errorf("quiz.prompt_timeout_ms %d must not be negative", q.PromptTimeoutMs))
	}
	if q.SuccessWindowMs < 0 {
		errs = append(errs, fmt.Errorf("quiz.success_window_ms %d must not be negative", q.SuccessWindowMs))
	}
	if q.Rate != 0 && (q.Rate < 0.5 || q.Rate > 2.0) {
		errs = append(errs, fmt.Errorf("quiz.rate %.2f is out of range [0.5, 2.0]", q.Rate))
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("recognition", cfg.Speech.Recognition.Name)
	validateProviderName("prompt_audio", cfg.Speech.PromptAudio.Name)
	validateProviderName("prompt_audio", cfg.Speech.PromptAudioFallback.Name)
	if cfg.Speech.PromptAudioFallback.Name != "" && cfg.Speech.PromptAudio.Name == "" {
		errs = append(errs, errors.New("speech.prompt_audio_fallback requires speech.prompt_audio to be set"))
	}
	validateProviderName("suggest", cfg.Suggest.Name)

	// Speech availability warnings
	if cfg.Speech.Recognition.Name == "" {
		slog.Warn("speech.recognition is not configured; drills will run in hint-only mode")
	}
	if cfg.Speech.PromptAudio.Name == "" {
		slog.Warn("speech.prompt_audio is not configured; languages without a local synthesis voice will have silent prompts")
	}

	// Content
	if cfg.Content.Source != "" && !cfg.Content.Source.IsValid() {
		errs = append(errs, fmt.Errorf("content.source %q is invalid; valid values: yaml, postgres", cfg.Content.Source))
	}
	if cfg.Content.Source == ContentSourcePostgres && cfg.Content.PostgresDSN == "" {
		errs = append(errs, errors.New("content.postgres_dsn is required when content.source is postgres"))
	}
	if cfg.Content.Source == ContentSourceYAML && cfg.Content.Path == "" {
		errs = append(errs, errors.New("content.path is required when content.source is yaml"))
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
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
