// Package server exposes drill sessions over HTTP: health and readiness
// probes, Prometheus metrics, and the /ws/drill websocket bridge that runs
// one quiz session per connected browser.
//
// The browser owns the actual audio hardware. Speech synthesis, clip
// playback, recognition, and feedback cues are all proxied over the
// websocket through bridge implementations of the speech ports; the quiz
// engine itself runs server-side and never knows the difference.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vocadrill/vocadrill/internal/config"
	"github.com/vocadrill/vocadrill/internal/content"
	"github.com/vocadrill/vocadrill/internal/content/suggest"
	"github.com/vocadrill/vocadrill/internal/health"
	"github.com/vocadrill/vocadrill/internal/observe"
	"github.com/vocadrill/vocadrill/internal/quiz"
	"github.com/vocadrill/vocadrill/pkg/speech/promptaudio"
	"github.com/vocadrill/vocadrill/pkg/speech/recognize"
)

// shutdownTimeout bounds the graceful drain when Run's context is
// cancelled.
const shutdownTimeout = 10 * time.Second

// Deps are the server's injected backends. Store is required; the rest
// are optional and degrade the corresponding feature when nil.
type Deps struct {
	// Store provides vocabulary content. Required.
	Store content.Store

	// Prompts renders prompt audio for languages without a browser voice.
	// Nil disables the clip fallback.
	Prompts promptaudio.Provider

	// Recognizer is the server-side recognition backend, used for clients
	// whose browser offers no speech recognition. Nil means such clients
	// drill in hint-only mode.
	Recognizer recognize.Provider

	// Suggester generates example sentences for content authoring. Nil
	// disables the /api/suggest endpoint.
	Suggester suggest.Suggester

	// Metrics defaults to [observe.DefaultMetrics].
	Metrics *observe.Metrics

	// Logger defaults to [slog.Default].
	Logger *slog.Logger
}

// Server is the vocadrill HTTP host.
type Server struct {
	cfg     config.ServerConfig
	quizCfg config.QuizConfig

	store     content.Store
	prompts   promptaudio.Provider
	rec       recognize.Provider
	suggester suggest.Suggester
	matcher   *quiz.Matcher
	metrics   *observe.Metrics
	logger    *slog.Logger

	httpSrv *http.Server
}

// New creates a Server from the loaded config and its backends.
func New(cfg *config.Config, deps Deps) *Server {
	s := &Server{
		cfg:     cfg.Server,
		quizCfg: cfg.Quiz,
		store:     deps.Store,
		prompts:   deps.Prompts,
		rec:       deps.Recognizer,
		suggester: deps.Suggester,
		matcher:   newMatcher(cfg.Quiz),
		metrics:   deps.Metrics,
		logger:    deps.Logger,
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// newMatcher builds the answer matcher from the quiz tuning block. Zero
// values keep the matcher's own defaults.
func newMatcher(cfg config.QuizConfig) *quiz.Matcher {
	var opts []quiz.MatcherOption
	if cfg.ToleranceRatio > 0 {
		opts = append(opts, quiz.WithToleranceRatio(cfg.ToleranceRatio))
	}
	if cfg.ExactLength > 0 {
		opts = append(opts, quiz.WithExactLength(cfg.ExactLength))
	}
	if cfg.MinDistance > 0 {
		opts = append(opts, quiz.WithMinDistance(cfg.MinDistance))
	}
	return quiz.NewMatcher(opts...)
}

// Handler builds the route table with the observe middleware applied.
func (s *Server) Handler() http.Handler {
	var checkers []health.Checker
	if s.store != nil {
		checkers = append(checkers, health.Checker{
			Name: "content",
			Check: func(ctx context.Context) error {
				_, err := s.store.Courses(ctx)
				return err
			},
		})
	}
	if pinger, ok := s.rec.(interface {
		Ping(ctx context.Context) error
	}); ok {
		checkers = append(checkers, health.Checker{
			Name:  "recognition",
			Check: pinger.Ping,
		})
	}
	h := health.New(checkers...)

	mux := http.NewServeMux()
	h.Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /ws/drill", s.handleDrill)
	mux.HandleFunc("GET /api/courses", s.handleCourses)
	mux.HandleFunc("POST /api/suggest", s.handleSuggest)

	return observe.Middleware(s.metrics)(mux)
}

// Run serves until ctx is cancelled, then drains connections for up to
// [shutdownTimeout]. Returns nil on a clean shutdown.
func (s *Server) Run(ctx context.Context) error {
	// BaseContext ties request contexts to ctx so hijacked drill
	// connections end when the server stops; Shutdown alone does not
	// reach them.
	s.httpSrv = &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		if s.cfg.TLS != nil {
			errCh <- s.httpSrv.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
			return
		}
		errCh <- s.httpSrv.ListenAndServe()
	}()

	s.logger.Info("server listening", "addr", s.cfg.ListenAddr, "tls", s.cfg.TLS != nil)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
