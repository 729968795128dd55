package quiz

import (
	"errors"
	"log/slog"
	"math"
	"sync"
	"time"
)

const (
	// defaultPromptTimeout is the upper bound waited for a prompt or hint
	// utterance to finish before the session moves on anyway. Guards
	// against a synthesis backend that never delivers its end event.
	defaultPromptTimeout = 8 * time.Second

	// defaultSuccessWindow is how long the transient success state is
	// displayed before advancing to the next item.
	defaultSuccessWindow = 1500 * time.Millisecond
)

// Errors returned by [Session.Start].
var (
	// ErrSessionClosed is returned when the session has been closed.
	ErrSessionClosed = errors.New("quiz: session is closed")

	// ErrNoItems is returned when Start is given an empty item list.
	ErrNoItems = errors.New("quiz: no items to drill")
)

// ScheduleFunc arms a one-shot timer and returns a cancel function. The
// default uses [time.AfterFunc]; tests inject a deterministic scheduler.
type ScheduleFunc func(d time.Duration, fn func()) (cancel func())

func afterFunc(d time.Duration, fn func()) (cancel func()) {
	t := time.AfterFunc(d, fn)
	return func() { t.Stop() }
}

// Snapshot is an immutable view of the session state, published to the
// host after every transition.
type Snapshot struct {
	// Phase is the current item phase.
	Phase Phase

	// Item is the vocabulary item currently being drilled. Zero when the
	// session is idle or completed.
	Item Item

	// Index is the position of the current item within the current pass.
	Index int

	// ProcessedCount is how many items of the current pass are done.
	ProcessedCount int

	// TotalForPass is the length of the current pass's queue.
	TotalForPass int

	// Score is the accumulated score. Only first-try answers during the
	// primary pass count.
	Score int

	// MaxScore is the primary-pass item count.
	MaxScore int

	// ReviewPass reports whether the session is in the missed-word review
	// pass.
	ReviewPass bool

	// Listening reports whether a recognition session is live.
	Listening bool

	// LastTranscript is the most recent recognized transcript, for
	// display.
	LastTranscript string
}

// Summary is the completion report published when the session reaches
// [PhaseCompleted].
type Summary struct {
	Score       int
	MaxScore    int
	Percent     int
	MissedCount int
}

// SessionOption is a functional option for configuring a [Session].
type SessionOption func(*Session)

// WithPromptTimeout sets the upper bound waited for prompt and hint audio
// before proceeding. Default: 8 s.
func WithPromptTimeout(d time.Duration) SessionOption {
	return func(s *Session) { s.promptTimeout = d }
}

// WithSuccessWindow sets the transient success display duration before
// advancing. Default: 1.5 s.
func WithSuccessWindow(d time.Duration) SessionOption {
	return func(s *Session) { s.successWindow = d }
}

// WithCelebrator sets the completion fanfare player.
func WithCelebrator(c Celebrator) SessionOption {
	return func(s *Session) { s.celebrator = c }
}

// WithScheduler replaces the timer implementation. Used by tests.
func WithScheduler(f ScheduleFunc) SessionOption {
	return func(s *Session) { s.schedule = f }
}

// WithNotify registers a callback invoked with a fresh [Snapshot] after
// every state transition. The callback runs outside the session's lock and
// may call back into the session.
func WithNotify(fn func(Snapshot)) SessionOption {
	return func(s *Session) { s.notify = fn }
}

// WithLogger sets the logger. Defaults to [slog.Default].
func WithLogger(l *slog.Logger) SessionOption {
	return func(s *Session) { s.logger = l }
}

// Session drives one learning session over an ordered vocabulary list: a
// primary pass over every item, then a review pass over the items on which
// the learner gave up. See the package documentation for the event model.
//
// All exported methods are safe for concurrent use. Port callbacks carry
// the session generation they were armed under; a callback whose
// generation no longer matches is discarded, so events from a previous
// item, a restart, or a closed session can never mutate state.
type Session struct {
	output OutputPort
	input  InputPort

	celebrator    Celebrator
	schedule      ScheduleFunc
	notify        func(Snapshot)
	logger        *slog.Logger
	promptTimeout time.Duration
	successWindow time.Duration

	mu         sync.Mutex
	gen        uint64
	closed     bool
	items      []Item
	targetLang string
	nativeLang string

	queue     []Item
	idx       int
	phase     Phase
	score     int
	processed int
	review    bool
	usedHint  bool
	missed    []Item
	missedSet map[string]struct{}
	summary   Summary

	cancelTimer func()
}

// NewSession creates a session wired to the given speech ports.
func NewSession(output OutputPort, input InputPort, opts ...SessionOption) *Session {
	s := &Session{
		output:        output,
		input:         input,
		schedule:      afterFunc,
		logger:        slog.Default(),
		promptTimeout: defaultPromptTimeout,
		successWindow: defaultSuccessWindow,
		phase:         PhaseIdle,
		missedSet:     map[string]struct{}{},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Start begins a fresh session over items. The prompt for each item is
// spoken in targetLang; answers are listened for, and hints spoken, in
// nativeLang. A session may be started again with a new item list, which
// discards the previous run.
func (s *Session) Start(items []Item, targetLang, nativeLang string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if len(items) == 0 {
		s.mu.Unlock()
		return ErrNoItems
	}
	s.gen++
	g := s.gen
	s.items = append([]Item(nil), items...)
	s.targetLang = targetLang
	s.nativeLang = nativeLang
	s.resetLocked()
	s.mu.Unlock()

	s.output.Cancel()
	s.input.StopListening()
	s.beginItem(g)
	return nil
}

// DontKnow reveals the answer for the current item: the item is marked
// missed (idempotent), the expected answer is spoken aloud, and listening
// is re-armed once the hint finishes so the learner repeats it before
// advancing. No score is awarded for this item in this pass. Ignored
// outside the answer phases.
func (s *Session) DontKnow() {
	s.mu.Lock()
	if !s.liveLocked(s.gen) || (s.phase != PhaseAwaitingAnswer && s.phase != PhaseHintShown) {
		s.mu.Unlock()
		return
	}
	g := s.gen
	s.cancelTimerLocked()
	s.usedHint = true
	item := s.queue[s.idx]
	if _, ok := s.missedSet[item.ID]; !ok {
		s.missedSet[item.ID] = struct{}{}
		s.missed = append(s.missed, item)
	}
	s.phase = PhaseHintShown
	answer, lang := item.Answer, s.nativeLang
	s.armTimerLocked(g, s.promptTimeout, s.hintDone)
	s.mu.Unlock()

	// Stop listening before speaking so the recognizer cannot pick up the
	// hint audio as learner input.
	s.input.StopListening()
	s.emit()
	s.output.Speak(answer, lang, SpeechEvents{
		OnEnd: func() { s.hintDone(g) },
		OnError: func(err error) {
			s.logger.Warn("hint audio failed, re-arming listening anyway", "item", item.ID, "error", err)
			s.hintDone(g)
		},
	})
}

// Restart resets the session to a fresh run over the same item list:
// score, processed count, and missed set are cleared and the first item is
// prompted again. Always succeeds regardless of prior speech errors.
func (s *Session) Restart() {
	s.mu.Lock()
	if s.closed || len(s.items) == 0 {
		s.mu.Unlock()
		return
	}
	s.gen++
	g := s.gen
	s.resetLocked()
	s.mu.Unlock()

	s.output.Cancel()
	s.input.StopListening()
	s.beginItem(g)
}

// Close tears the session down: in-flight synthesis is cancelled, any
// recognition session is aborted, and all pending callbacks are
// invalidated. Idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.gen++
	s.cancelTimerLocked()
	s.phase = PhaseIdle
	s.mu.Unlock()

	s.output.Cancel()
	s.input.StopListening()
}

// Snapshot returns the current session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	snap := Snapshot{
		Phase:          s.phase,
		Index:          s.idx,
		ProcessedCount: s.processed,
		TotalForPass:   len(s.queue),
		Score:          s.score,
		MaxScore:       len(s.items),
		ReviewPass:     s.review,
	}
	if s.phase != PhaseIdle && s.phase != PhaseCompleted && s.idx < len(s.queue) {
		snap.Item = s.queue[s.idx]
	}
	s.mu.Unlock()

	// Input state is read outside the session lock; the input controller
	// holds its own lock and may invoke onSuccess concurrently.
	snap.Listening = s.input.Listening()
	snap.LastTranscript = s.input.LastTranscript()
	return snap
}

// Summary returns the completion report. ok is false until the session
// reaches [PhaseCompleted].
func (s *Session) Summary() (sum Summary, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseCompleted {
		return Summary{}, false
	}
	return s.summary, true
}

// ─── internal transitions ─────────────────────────────────────────────────────

// liveLocked reports whether a callback armed under generation g may still
// mutate state.
func (s *Session) liveLocked(g uint64) bool {
	return !s.closed && g == s.gen && len(s.queue) > 0
}

func (s *Session) resetLocked() {
	s.cancelTimerLocked()
	s.queue = s.items
	s.idx = 0
	s.phase = PhasePrompting
	s.score = 0
	s.processed = 0
	s.review = false
	s.usedHint = false
	s.missed = nil
	s.missedSet = map[string]struct{}{}
	s.summary = Summary{}
}

func (s *Session) cancelTimerLocked() {
	if s.cancelTimer != nil {
		s.cancelTimer()
		s.cancelTimer = nil
	}
}

func (s *Session) armTimerLocked(g uint64, d time.Duration, fn func(uint64)) {
	s.cancelTimerLocked()
	s.cancelTimer = s.schedule(d, func() { fn(g) })
}

// beginItem enters PhasePrompting for the item at the current index and
// speaks its prompt. The fallback timer bounds the wait for the prompt's
// end event.
func (s *Session) beginItem(g uint64) {
	s.mu.Lock()
	if !s.liveLocked(g) {
		s.mu.Unlock()
		return
	}
	s.phase = PhasePrompting
	s.usedHint = false
	item := s.queue[s.idx]
	lang := s.targetLang
	s.armTimerLocked(g, s.promptTimeout, s.promptDone)
	s.mu.Unlock()

	s.emit()
	s.output.Speak(item.Prompt, lang, SpeechEvents{
		OnEnd: func() { s.promptDone(g) },
		OnError: func(err error) {
			s.logger.Warn("prompt audio failed, proceeding silently", "item", item.ID, "error", err)
			s.promptDone(g)
		},
	})
}

// promptDone transitions PhasePrompting → PhaseAwaitingAnswer and arms
// listening. Listening is never armed earlier so the recognizer does not
// transcribe the prompt itself.
func (s *Session) promptDone(g uint64) {
	s.mu.Lock()
	if !s.liveLocked(g) || s.phase != PhasePrompting {
		s.mu.Unlock()
		return
	}
	s.cancelTimerLocked()
	s.phase = PhaseAwaitingAnswer
	item := s.queue[s.idx]
	lang := s.nativeLang
	s.mu.Unlock()

	s.input.Bind(item.Answer, lang, func() { s.answerMatched(g) })
	s.input.StartListening()
	s.emit()
}

// hintDone re-arms listening after the hint audio finishes; the binding is
// unchanged since the expected answer is the same.
func (s *Session) hintDone(g uint64) {
	s.mu.Lock()
	if !s.liveLocked(g) || s.phase != PhaseHintShown {
		s.mu.Unlock()
		return
	}
	s.cancelTimerLocked()
	s.mu.Unlock()

	if !s.input.Available() {
		// Without recognition the forced repeat cannot happen; advance as
		// if it had been spoken. No score is at stake here.
		s.answerMatched(g)
		return
	}
	s.input.StartListening()
	s.emit()
}

// answerMatched handles a success report from the input port. A point is
// awarded only during the primary pass and only when the learner did not
// use the hint for this item.
func (s *Session) answerMatched(g uint64) {
	s.mu.Lock()
	if !s.liveLocked(g) || (s.phase != PhaseAwaitingAnswer && s.phase != PhaseHintShown) {
		s.mu.Unlock()
		return
	}
	if !s.review && !s.usedHint {
		s.score++
	}
	s.phase = PhaseItemSuccess
	s.armTimerLocked(g, s.successWindow, s.advance)
	s.mu.Unlock()

	s.emit()
}

// advance moves past the transient success state: next item, next pass, or
// completion. The review queue is built from the missed set in
// first-missed order exactly once; items missed during review never extend
// it.
func (s *Session) advance(g uint64) {
	s.mu.Lock()
	if !s.liveLocked(g) || s.phase != PhaseItemSuccess {
		s.mu.Unlock()
		return
	}
	s.cancelTimerLocked()
	s.processed++
	s.idx++

	if s.idx < len(s.queue) {
		s.mu.Unlock()
		s.beginItem(g)
		return
	}

	if !s.review && len(s.missed) > 0 {
		s.review = true
		s.queue = append([]Item(nil), s.missed...)
		s.idx = 0
		s.processed = 0
		s.mu.Unlock()
		s.beginItem(g)
		return
	}

	s.phase = PhaseCompleted
	max := len(s.items)
	pct := 0
	if max > 0 {
		pct = int(math.Round(100 * float64(s.score) / float64(max)))
	}
	s.summary = Summary{
		Score:       s.score,
		MaxScore:    max,
		Percent:     pct,
		MissedCount: len(s.missed),
	}
	s.mu.Unlock()

	s.input.StopListening()
	if s.celebrator != nil {
		s.celebrator.Celebrate(pct)
	}
	s.emit()
}

func (s *Session) emit() {
	if s.notify == nil {
		return
	}
	s.notify(s.Snapshot())
}
