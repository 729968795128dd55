package promptaudio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrAllBackendsFailed is returned by [Fallback.Render] when every configured
// backend fails or has an open circuit breaker.
var ErrAllBackendsFailed = errors.New("promptaudio: all backends failed")

// errBreakerOpen marks a backend skipped because its breaker is open.
var errBreakerOpen = errors.New("promptaudio: circuit breaker open")

// FallbackConfig tunes the per-backend circuit breakers of a [Fallback].
// Zero values select the defaults documented on each field.
type FallbackConfig struct {
	// MaxFailures is the number of consecutive render failures before a
	// backend's breaker opens. Default 3.
	MaxFailures int

	// ResetAfter is how long an open breaker waits before letting a single
	// probe render through. Default 30s.
	ResetAfter time.Duration

	// Logger defaults to [slog.Default].
	Logger *slog.Logger
}

// Fallback is a [Provider] that chains a primary backend with zero or more
// fallbacks. Each backend carries its own circuit breaker: after MaxFailures
// consecutive failures the backend is skipped until ResetAfter has elapsed,
// then a single probe render decides whether it rejoins the rotation.
//
// Fallback is safe for concurrent use once assembled; [Fallback.Add] is not
// safe to call concurrently with [Fallback.Render].
type Fallback struct {
	cfg      FallbackConfig
	logger   *slog.Logger
	backends []fallbackBackend
}

type fallbackBackend struct {
	name     string
	provider Provider
	breaker  *breaker
}

// Compile-time interface assertion.
var _ Provider = (*Fallback)(nil)

// NewFallback creates a [Fallback] with primary as the preferred backend.
func NewFallback(primaryName string, primary Provider, cfg FallbackConfig) *Fallback {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}
	if cfg.ResetAfter <= 0 {
		cfg.ResetAfter = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	f := &Fallback{cfg: cfg, logger: cfg.Logger}
	f.Add(primaryName, primary)
	return f
}

// Add appends a fallback backend. Backends are tried in the order they were
// added, starting with the primary.
func (f *Fallback) Add(name string, p Provider) {
	f.backends = append(f.backends, fallbackBackend{
		name:     name,
		provider: p,
		breaker:  newBreaker(f.cfg.MaxFailures, f.cfg.ResetAfter),
	})
}

// Render tries each backend in order until one returns a clip. Backends with
// an open breaker are skipped. A cancelled context aborts the chain without
// charging the current backend's breaker.
func (f *Fallback) Render(ctx context.Context, text, languageCode string) (Clip, error) {
	var lastErr error
	for i := range f.backends {
		b := &f.backends[i]
		if !b.breaker.allow() {
			f.logger.Debug("prompt-audio backend skipped", "backend", b.name, "reason", "breaker open")
			lastErr = errBreakerOpen
			continue
		}

		clip, err := b.provider.Render(ctx, text, languageCode)
		if err == nil {
			b.breaker.record(true)
			return clip, nil
		}
		if ctx.Err() != nil {
			return Clip{}, err
		}
		b.breaker.record(false)
		f.logger.Warn("prompt-audio backend failed, trying next", "backend", b.name, "err", err)
		lastErr = err
	}
	return Clip{}, fmt.Errorf("%w: %v", ErrAllBackendsFailed, lastErr)
}

// breaker is a three-state circuit breaker. Closed forwards every call and
// counts consecutive failures; open rejects calls until resetAfter elapses;
// half-open admits one probe whose outcome closes or re-opens the breaker.
type breaker struct {
	maxFailures int
	resetAfter  time.Duration

	mu       sync.Mutex
	open     bool
	probing  bool
	failures int
	openedAt time.Time
}

func newBreaker(maxFailures int, resetAfter time.Duration) *breaker {
	return &breaker{maxFailures: maxFailures, resetAfter: resetAfter}
}

// allow reports whether a call may proceed. In the open state the first call
// after resetAfter is admitted as the half-open probe.
func (b *breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.open {
		return true
	}
	if b.probing {
		return false
	}
	if time.Since(b.openedAt) < b.resetAfter {
		return false
	}
	b.probing = true
	return true
}

// record feeds a call outcome back into the breaker.
func (b *breaker) record(ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ok {
		b.open = false
		b.probing = false
		b.failures = 0
		return
	}

	if b.probing {
		// Failed probe re-opens the breaker for another full timeout.
		b.probing = false
		b.openedAt = time.Now()
		return
	}

	b.failures++
	if b.failures >= b.maxFailures {
		b.open = true
		b.openedAt = time.Now()
	}
}
