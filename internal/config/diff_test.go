package config_test

import (
	"testing"

	"github.com/vocadrill/vocadrill/internal/config"
)

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{
		Server: config.ServerConfig{LogLevel: config.LogInfo},
		Quiz:   config.QuizConfig{ToleranceRatio: 0.25, Rate: 0.8},
		Content: config.ContentConfig{
			Source: config.ContentSourceYAML,
			Path:   "./courses",
		},
	}
	d := config.Diff(cfg, cfg)
	if d.LogLevelChanged {
		t.Error("expected LogLevelChanged=false for identical configs")
	}
	if d.QuizChanged {
		t.Error("expected QuizChanged=false for identical configs")
	}
	if d.ContentChanged {
		t.Error("expected ContentChanged=false for identical configs")
	}
}

func TestDiff_LogLevelChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{Server: config.ServerConfig{LogLevel: config.LogInfo}}
	new := &config.Config{Server: config.ServerConfig{LogLevel: config.LogDebug}}

	d := config.Diff(old, new)
	if !d.LogLevelChanged {
		t.Error("expected LogLevelChanged=true")
	}
	if d.NewLogLevel != config.LogDebug {
		t.Errorf("expected NewLogLevel=debug, got %q", d.NewLogLevel)
	}
}

func TestDiff_QuizTuningChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{Quiz: config.QuizConfig{ToleranceRatio: 0.25}}
	new := &config.Config{Quiz: config.QuizConfig{ToleranceRatio: 0.35}}

	d := config.Diff(old, new)
	if !d.QuizChanged {
		t.Error("expected QuizChanged=true")
	}
	if d.NewQuiz.ToleranceRatio != 0.35 {
		t.Errorf("expected NewQuiz.ToleranceRatio=0.35, got %v", d.NewQuiz.ToleranceRatio)
	}
	if d.LogLevelChanged {
		t.Error("expected LogLevelChanged=false")
	}
}

func TestDiff_ContentChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{Content: config.ContentConfig{Source: config.ContentSourceYAML, Path: "./a"}}
	new := &config.Config{Content: config.ContentConfig{Source: config.ContentSourceYAML, Path: "./b"}}

	d := config.Diff(old, new)
	if !d.ContentChanged {
		t.Error("expected ContentChanged=true")
	}
	if d.NewContent.Path != "./b" {
		t.Errorf("expected NewContent.Path=./b, got %q", d.NewContent.Path)
	}
}
