package speechio

import (
	"context"
	"log/slog"
	"sync"

	"github.com/vocadrill/vocadrill/internal/locale"
	"github.com/vocadrill/vocadrill/internal/quiz"
	"github.com/vocadrill/vocadrill/pkg/audio/cue"
	"github.com/vocadrill/vocadrill/pkg/speech/recognize"
)

// minAlternatives is the floor on ranked hypotheses requested per result;
// the matcher needs several candidates to tolerate recognizer spelling.
const minAlternatives = 3

// defaultMaxAlternatives matches what the recognition engines realistically
// return.
const defaultMaxAlternatives = 5

// InputOption is a functional option for configuring an [Input].
type InputOption func(*Input)

// WithMaxAlternatives sets how many ranked hypotheses are requested per
// result. Values below 3 are raised to 3. Default: 5.
func WithMaxAlternatives(n int) InputOption {
	return func(i *Input) {
		if n < minAlternatives {
			n = minAlternatives
		}
		i.maxAlternatives = n
	}
}

// WithRecognitionFallbackLocale sets the locale used for unmapped language
// codes. Default: [locale.DefaultFallback].
func WithRecognitionFallbackLocale(loc string) InputOption {
	return func(i *Input) { i.fallbackLocale = loc }
}

// WithInputLogger sets the logger. Defaults to [slog.Default].
func WithInputLogger(l *slog.Logger) InputOption {
	return func(i *Input) { i.logger = l }
}

// Input listens for the learner's spoken answer. It implements
// [quiz.InputPort].
//
// Sessions run in single-utterance mode: the first final result is judged
// against the bound expected answer across all ranked alternatives, the
// underlying session is aborted (not left to end naturally, which would
// flicker a stale "still listening" state), and the matching outcome is
// reported through the cue player and the success callback. A miss leaves
// the controller idle; the learner retries by re-invoking listening.
type Input struct {
	provider recognize.Provider
	matcher  *quiz.Matcher
	cues     cue.Player
	logger   *slog.Logger

	maxAlternatives int
	fallbackLocale  string

	mu        sync.Mutex
	gen       uint64
	expected  string
	lang      string
	onSuccess func()
	listening bool
	last      string
	handle    recognize.SessionHandle
	cancel    context.CancelFunc
}

// NewInput creates an Input. provider may be nil when the platform has no
// speech recognition; the controller then reports Available() == false and
// StartListening is a no-op. cues may be nil to disable audio feedback.
func NewInput(provider recognize.Provider, matcher *quiz.Matcher, cues cue.Player, opts ...InputOption) *Input {
	i := &Input{
		provider:        provider,
		matcher:         matcher,
		cues:            cues,
		logger:          slog.Default(),
		maxAlternatives: defaultMaxAlternatives,
		fallbackLocale:  locale.DefaultFallback,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Bind implements [quiz.InputPort]. Any live recognition session is torn
// down first so a stale result can never fire against the new answer.
func (i *Input) Bind(expectedAnswer, languageCode string, onSuccess func()) {
	i.mu.Lock()
	i.gen++
	handle, cancel := i.detachLocked()
	i.expected = expectedAnswer
	i.lang = languageCode
	i.onSuccess = onSuccess
	i.last = ""
	i.mu.Unlock()

	teardown(handle, cancel)
}

// StartListening implements [quiz.InputPort]. Opens a single-utterance
// recognition session for the current binding. A no-op when recognition is
// unavailable or a session is already live; a session that fails to open is
// logged and leaves the controller idle.
func (i *Input) StartListening() {
	if i.provider == nil {
		return
	}

	i.mu.Lock()
	if i.handle != nil {
		i.mu.Unlock()
		return
	}
	g := i.gen
	expected := i.expected
	cfg := recognize.Config{
		Locale:          locale.ForRecognition(i.lang, i.fallbackLocale),
		MaxAlternatives: i.maxAlternatives,
		PhraseHint:      expected,
	}
	i.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	handle, err := i.provider.Start(ctx, cfg)
	if err != nil {
		cancel()
		i.logger.Warn("recognition session failed to start", "locale", cfg.Locale, "error", err)
		return
	}

	i.mu.Lock()
	if g != i.gen || i.handle != nil {
		// Rebound or restarted while we were opening; discard.
		i.mu.Unlock()
		cancel()
		handle.Abort()
		return
	}
	i.handle = handle
	i.cancel = cancel
	i.listening = true
	i.last = ""
	i.mu.Unlock()

	go i.consume(g, expected, handle)
}

// StopListening implements [quiz.InputPort]. Aborts any live session
// without firing callbacks.
func (i *Input) StopListening() {
	i.mu.Lock()
	i.gen++
	handle, cancel := i.detachLocked()
	i.mu.Unlock()

	teardown(handle, cancel)
}

// Listening implements [quiz.InputPort].
func (i *Input) Listening() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.listening
}

// LastTranscript implements [quiz.InputPort].
func (i *Input) LastTranscript() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.last
}

// Available implements [quiz.InputPort].
func (i *Input) Available() bool {
	return i.provider != nil
}

// detachLocked clears the live session state and returns what must be torn
// down outside the lock.
func (i *Input) detachLocked() (recognize.SessionHandle, context.CancelFunc) {
	handle := i.handle
	cancel := i.cancel
	i.handle = nil
	i.cancel = nil
	i.listening = false
	return handle, cancel
}

func teardown(handle recognize.SessionHandle, cancel context.CancelFunc) {
	if handle != nil {
		handle.Abort()
	}
	if cancel != nil {
		cancel()
	}
}

// consume waits for the session's first final result, judges it, and ends
// the utterance. The generation check discards results that arrive after a
// rebind or stop.
func (i *Input) consume(g uint64, expected string, handle recognize.SessionHandle) {
	for res := range handle.Results() {
		if !res.Final {
			continue
		}

		alts := make([]string, 0, len(res.Alternatives))
		for _, a := range res.Alternatives {
			alts = append(alts, a.Transcript)
		}
		matched, display := i.matcher.EvaluateAlternatives(alts, expected)

		i.mu.Lock()
		if g != i.gen {
			i.mu.Unlock()
			return
		}
		i.last = display
		onSuccess := i.onSuccess
		sessionHandle, cancel := i.detachLocked()
		i.mu.Unlock()

		// Abort rather than waiting for the session's natural end.
		teardown(sessionHandle, cancel)

		if matched {
			if i.cues != nil {
				i.cues.Success()
			}
			if onSuccess != nil {
				onSuccess()
			}
		} else if display != "" {
			if i.cues != nil {
				i.cues.Failure()
			}
		}
		return
	}

	// Natural end or error without a result: just clear the listening
	// state, no callback fires.
	i.mu.Lock()
	if g == i.gen {
		i.detachLocked()
	}
	i.mu.Unlock()
}

// Compile-time assertion that Input satisfies quiz.InputPort.
var _ quiz.InputPort = (*Input)(nil)
