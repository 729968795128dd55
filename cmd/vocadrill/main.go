// Command vocadrill is the spoken-vocabulary drill server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"golang.org/x/sync/errgroup"

	"github.com/vocadrill/vocadrill/internal/config"
	"github.com/vocadrill/vocadrill/internal/content"
	contentpg "github.com/vocadrill/vocadrill/internal/content/postgres"
	"github.com/vocadrill/vocadrill/internal/content/suggest"
	"github.com/vocadrill/vocadrill/internal/content/yamlstore"
	"github.com/vocadrill/vocadrill/internal/observe"
	"github.com/vocadrill/vocadrill/internal/server"
	"github.com/vocadrill/vocadrill/pkg/speech/promptaudio"
	"github.com/vocadrill/vocadrill/pkg/speech/promptaudio/gtrans"
	"github.com/vocadrill/vocadrill/pkg/speech/promptaudio/openaitts"
	"github.com/vocadrill/vocadrill/pkg/speech/recognize"
	"github.com/vocadrill/vocadrill/pkg/speech/recognize/whisper"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "vocadrill: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "vocadrill: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	level := &slog.LevelVar{}
	level.Set(slogLevel(cfg.Server.LogLevel))
	slog.SetDefault(newLogger(level))

	slog.Info("vocadrill starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	// ── Instantiate backends ──────────────────────────────────────────────────
	deps, closeDeps, err := buildDeps(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}
	defer closeDeps()

	// ── Config watcher: hot log-level updates ─────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(old, updated *config.Config) {
		d := config.Diff(old, updated)
		if d.LogLevelChanged {
			level.Set(slogLevel(d.NewLogLevel))
			slog.Info("log level updated", "level", d.NewLogLevel)
		}
	})
	if err != nil {
		slog.Warn("config watcher disabled", "err", err)
	} else {
		defer watcher.Stop()
	}

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)

	srv := server.New(cfg, deps)

	slog.Info("server ready — press Ctrl+C to shut down")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in backend factories into reg.
func registerBuiltinProviders(reg *config.Registry) {
	// ── Recognition ───────────────────────────────────────────────────────────

	reg.RegisterRecognition("whisper", func(entry config.ProviderEntry) (recognize.Provider, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if rate := optInt(entry.Options, "sample_rate"); rate > 0 {
			opts = append(opts, whisper.WithSampleRate(rate))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	reg.RegisterRecognition("whisper-native", func(entry config.ProviderEntry) (recognize.Provider, error) {
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = optString(entry.Options, "model_path")
		}
		var opts []whisper.NativeOption
		if rate := optInt(entry.Options, "sample_rate"); rate > 0 {
			opts = append(opts, whisper.WithNativeSampleRate(rate))
		}
		return whisper.NewNative(modelPath, opts...)
	})

	// ── Prompt audio ──────────────────────────────────────────────────────────

	reg.RegisterPromptAudio("gtrans", func(entry config.ProviderEntry) (promptaudio.Provider, error) {
		var opts []gtrans.Option
		if entry.BaseURL != "" {
			opts = append(opts, gtrans.WithBaseURL(entry.BaseURL))
		}
		return gtrans.New(opts...), nil
	})

	reg.RegisterPromptAudio("openai", func(entry config.ProviderEntry) (promptaudio.Provider, error) {
		var opts []openaitts.Option
		if entry.Model != "" {
			opts = append(opts, openaitts.WithModel(entry.Model))
		}
		if voice := optString(entry.Options, "voice"); voice != "" {
			opts = append(opts, openaitts.WithVoice(voice))
		}
		if entry.BaseURL != "" {
			opts = append(opts, openaitts.WithBaseURL(entry.BaseURL))
		}
		return openaitts.New(entry.APIKey, opts...)
	})

	// ── Content ───────────────────────────────────────────────────────────────

	reg.RegisterContent("yaml", func(cc config.ContentConfig) (content.Store, error) {
		return yamlstore.New(cc.Path)
	})

	reg.RegisterContent("postgres", func(cc config.ContentConfig) (content.Store, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return contentpg.New(ctx, cc.PostgresDSN)
	})

	// ── Suggestions ───────────────────────────────────────────────────────────
	// All suggestion backends share the any-llm option pattern.
	for _, name := range config.ValidProviderNames["suggest"] {
		reg.RegisterSuggest(name, func(entry config.ProviderEntry) (suggest.Suggester, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return suggest.New(entry.Name, entry.Model, opts...)
		})
	}
}

// buildDeps instantiates the configured backends. The returned cleanup
// closes the content store.
func buildDeps(cfg *config.Config, reg *config.Registry) (server.Deps, func(), error) {
	deps := server.Deps{}

	store, err := reg.CreateContent(cfg.Content)
	if err != nil {
		return deps, nil, fmt.Errorf("create content store %q: %w", cfg.Content.Source, err)
	}
	deps.Store = store
	slog.Info("content store ready", "source", cfg.Content.Source)

	if name := cfg.Speech.Recognition.Name; name != "" {
		p, err := reg.CreateRecognition(cfg.Speech.Recognition)
		if err != nil {
			store.Close()
			return deps, nil, fmt.Errorf("create recognition provider %q: %w", name, err)
		}
		deps.Recognizer = p
		slog.Info("provider created", "kind", "recognition", "name", name)
	}

	if name := cfg.Speech.PromptAudio.Name; name != "" {
		p, err := reg.CreatePromptAudio(cfg.Speech.PromptAudio)
		if err != nil {
			store.Close()
			return deps, nil, fmt.Errorf("create prompt-audio provider %q: %w", name, err)
		}
		deps.Prompts = p
		slog.Info("provider created", "kind", "prompt_audio", "name", name)

		if fbName := cfg.Speech.PromptAudioFallback.Name; fbName != "" {
			fb, err := reg.CreatePromptAudio(cfg.Speech.PromptAudioFallback)
			if err != nil {
				store.Close()
				return deps, nil, fmt.Errorf("create prompt-audio fallback %q: %w", fbName, err)
			}
			chain := promptaudio.NewFallback(name, deps.Prompts, promptaudio.FallbackConfig{})
			chain.Add(fbName, fb)
			deps.Prompts = chain
			slog.Info("provider created", "kind", "prompt_audio_fallback", "name", fbName)
		}
	}

	if name := cfg.Suggest.Name; name != "" {
		p, err := reg.CreateSuggest(cfg.Suggest)
		if errors.Is(err, config.ErrProviderNotRegistered) {
			slog.Warn("unknown suggest provider — suggestions disabled", "name", name)
		} else if err != nil {
			store.Close()
			return deps, nil, fmt.Errorf("create suggest provider %q: %w", name, err)
		} else {
			deps.Suggester = p
			slog.Info("provider created", "kind", "suggest", "name", name)
		}
	}

	return deps, store.Close, nil
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║        vocadrill — startup summary    ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printEntry("Content", string(cfg.Content.Source), "")
	printEntry("Recognition", cfg.Speech.Recognition.Name, cfg.Speech.Recognition.Model)
	printEntry("Prompt audio", cfg.Speech.PromptAudio.Name, cfg.Speech.PromptAudio.Model)
	printEntry("Suggest", cfg.Suggest.Name, cfg.Suggest.Model)
	if cfg.Server.ListenAddr != "" {
		fmt.Printf("║  Listen addr     : %-19s ║\n", cfg.Server.ListenAddr)
	}
	if cfg.Server.TLS != nil {
		fmt.Printf("║  TLS             : %-19s ║\n", "enabled")
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printEntry(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level slog.Leveler) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a
// string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	v, ok := opts[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}

// optInt extracts an integer value from a provider Options map. YAML
// decodes numbers as int; zero is returned for anything else.
func optInt(opts map[string]any, key string) int {
	if opts == nil {
		return 0
	}
	v, ok := opts[key]
	if !ok {
		return 0
	}
	n, ok := v.(int)
	if !ok {
		return 0
	}
	return n
}
