package config_test

import (
	"strings"
	"testing"

	"github.com/vocadrill/vocadrill/internal/config"
)

func TestLoadFromReader_FullConfig(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  listen_addr: ":8080"
  log_level: debug
quiz:
  tolerance_ratio: 0.3
  exact_length: 2
  min_distance: 1
  prompt_timeout_ms: 6000
  success_window_ms: 1200
  max_alternatives: 4
  rate: 0.9
  fallback_locale: sk-SK
speech:
  recognition:
    name: whisper
    base_url: "http://localhost:9000"
    model: ggml-base.bin
  prompt_audio:
    name: gtrans
content:
  source: yaml
  path: ./courses
suggest:
  name: openai
  api_key: sk-test
  model: gpt-4o-mini
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("listen_addr: got %q", cfg.Server.ListenAddr)
	}
	if cfg.Quiz.ToleranceRatio != 0.3 {
		t.Errorf("tolerance_ratio: got %v", cfg.Quiz.ToleranceRatio)
	}
	if cfg.Quiz.PromptTimeoutMs != 6000 {
		t.Errorf("prompt_timeout_ms: got %d", cfg.Quiz.PromptTimeoutMs)
	}
	if cfg.Speech.Recognition.Name != "whisper" {
		t.Errorf("recognition name: got %q", cfg.Speech.Recognition.Name)
	}
	if cfg.Speech.Recognition.BaseURL != "http://localhost:9000" {
		t.Errorf("recognition base_url: got %q", cfg.Speech.Recognition.BaseURL)
	}
	if cfg.Content.Source != config.ContentSourceYAML {
		t.Errorf("content source: got %q", cfg.Content.Source)
	}
	if cfg.Suggest.Model != "gpt-4o-mini" {
		t.Errorf("suggest model: got %q", cfg.Suggest.Model)
	}
}

func TestLoadFromReader_UnknownFieldRejected(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  listen_adress: ":8080"
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: bananas
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for invalid log level, got nil")
	}
	if !strings.Contains(err.Error(), "log_level") {
		t.Errorf("error should mention log_level, got: %v", err)
	}
}

func TestValidate_TLSRequiresBothFiles(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  tls:
    cert_file: /etc/ssl/cert.pem
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for TLS without key file, got nil")
	}
	if !strings.Contains(err.Error(), "key_file") {
		t.Errorf("error should mention key_file, got: %v", err)
	}
}

func TestValidate_QuizRanges(t *testing.T) {
	t.Parallel()
	yaml := `
quiz:
  tolerance_ratio: 1.5
  rate: 3.0
  prompt_timeout_ms: -1
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected errors for out-of-range quiz values, got nil")
	}
	errStr := err.Error()
	if !strings.Contains(errStr, "tolerance_ratio") {
		t.Errorf("error should mention tolerance_ratio, got: %v", err)
	}
	if !strings.Contains(errStr, "rate") {
		t.Errorf("error should mention rate, got: %v", err)
	}
	if !strings.Contains(errStr, "prompt_timeout_ms") {
		t.Errorf("error should mention prompt_timeout_ms, got: %v", err)
	}
}

func TestValidate_PostgresRequiresDSN(t *testing.T) {
	t.Parallel()
	yaml := `
content:
  source: postgres
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for postgres source without DSN, got nil")
	}
	if !strings.Contains(err.Error(), "postgres_dsn") {
		t.Errorf("error should mention postgres_dsn, got: %v", err)
	}
}

func TestValidate_YAMLRequiresPath(t *testing.T) {
	t.Parallel()
	yaml := `
content:
  source: yaml
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for yaml source without path, got nil")
	}
	if !strings.Contains(err.Error(), "content.path") {
		t.Errorf("error should mention content.path, got: %v", err)
	}
}

func TestValidate_InvalidContentSource(t *testing.T) {
	t.Parallel()
	yaml := `
content:
  source: redis
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for unknown content source, got nil")
	}
	if !strings.Contains(err.Error(), "content.source") {
		t.Errorf("error should mention content.source, got: %v", err)
	}
}

func TestValidProviderNames(t *testing.T) {
	t.Parallel()
	// Sanity-check that the map is populated.
	if len(config.ValidProviderNames) == 0 {
		t.Fatal("ValidProviderNames should not be empty")
	}
	recNames := config.ValidProviderNames["recognition"]
	if len(recNames) == 0 {
		t.Fatal("ValidProviderNames[\"recognition\"] should not be empty")
	}
	found := false
	for _, n := range recNames {
		if n == "whisper" {
			found = true
			break
		}
	}
	if !found {
		t.Error("ValidProviderNames[\"recognition\"] should contain \"whisper\"")
	}
}
