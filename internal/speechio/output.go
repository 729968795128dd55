// Package speechio implements the drill engine's speech ports on top of the
// pluggable speech backends: [Output] drives text-to-speech through a
// [synth.Synthesizer] with a rendered-clip fallback, and [Input] drives
// speech recognition through a [recognize.Provider] and judges transcripts
// with the fuzzy matcher.
//
// Both controllers follow the engine's failure policy: nothing propagates
// as an error or panic past the controller boundary. Output failures
// surface through the utterance's OnError callback; input failures degrade
// to a non-listening state the learner can retry from.
package speechio

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/vocadrill/vocadrill/internal/locale"
	"github.com/vocadrill/vocadrill/internal/quiz"
	"github.com/vocadrill/vocadrill/pkg/speech/promptaudio"
	"github.com/vocadrill/vocadrill/pkg/speech/synth"
)

// defaultRate is the slowed speaking rate used for prompts; children follow
// slower speech better.
const defaultRate = 0.8

// ErrNoAudioPath is reported via OnError when no synthesis voice matches
// the language and no fallback provider is configured. The prompt degrades
// to a silent, visual-only state.
var ErrNoAudioPath = errors.New("speechio: no synthesis voice and no prompt-audio fallback")

// ClipPlayer plays one rendered audio clip, reporting its lifecycle through
// events. Starting a new clip replaces any playing one.
type ClipPlayer interface {
	Play(clip promptaudio.Clip, events synth.Events)

	// Stop discards any playing clip. Its events do not fire after Stop
	// returns.
	Stop()
}

// OutputOption is a functional option for configuring an [Output].
type OutputOption func(*Output)

// WithRate sets the speaking rate. Default: 0.8.
func WithRate(rate float64) OutputOption {
	return func(o *Output) { o.rate = rate }
}

// WithFallbackLocale sets the locale used for unmapped language codes.
// Default: [locale.DefaultFallback].
func WithFallbackLocale(loc string) OutputOption {
	return func(o *Output) { o.fallbackLocale = loc }
}

// WithOutputLogger sets the logger. Defaults to [slog.Default].
func WithOutputLogger(l *slog.Logger) OutputOption {
	return func(o *Output) { o.logger = l }
}

// Output speaks prompts and hints. It implements [quiz.OutputPort].
//
// For each utterance it looks for a synthesis voice matching the language
// (locale prefix, exact locale, then known display-name variants). With a
// match the text is spoken in-process at a slowed rate; without one the
// text is rendered to a clip by the prompt-audio provider and played back,
// with the same lifecycle callbacks. Only one utterance or clip is active
// at a time — starting a new one cancels the previous.
type Output struct {
	synth   synth.Synthesizer
	prompts promptaudio.Provider
	clips   ClipPlayer
	logger  *slog.Logger

	rate           float64
	fallbackLocale string

	mu           sync.Mutex
	gen          uint64
	cancelRender context.CancelFunc
}

// NewOutput creates an Output. synthesizer may be nil when the platform has
// no local synthesis; prompts and clips may be nil when no fallback path
// exists. With neither path available every Speak reports [ErrNoAudioPath].
func NewOutput(synthesizer synth.Synthesizer, prompts promptaudio.Provider, clips ClipPlayer, opts ...OutputOption) *Output {
	o := &Output{
		synth:          synthesizer,
		prompts:        prompts,
		clips:          clips,
		logger:         slog.Default(),
		rate:           defaultRate,
		fallbackLocale: locale.DefaultFallback,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Speak implements [quiz.OutputPort]. Fire and forget; all failures arrive
// via events.OnError.
func (o *Output) Speak(text, languageCode string, events quiz.SpeechEvents) {
	o.Cancel()

	o.mu.Lock()
	o.gen++
	g := o.gen
	o.mu.Unlock()

	loc := locale.ForSynthesis(languageCode, o.fallbackLocale)

	if o.synth != nil {
		if voice, ok := o.findVoice(languageCode, loc); ok {
			err := o.synth.Speak(synth.Utterance{
				Text:      text,
				Locale:    loc,
				VoiceName: voice.Name,
				Rate:      o.rate,
			}, o.guarded(g, events))
			if err == nil {
				return
			}
			o.logger.Warn("synthesis rejected utterance, falling back to rendered audio",
				"locale", loc, "voice", voice.Name, "error", err)
		}
	}

	if o.prompts == nil || o.clips == nil {
		o.logger.Warn("no audio path for language", "language", languageCode)
		o.fireError(g, events, ErrNoAudioPath)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	o.mu.Lock()
	o.cancelRender = cancel
	o.mu.Unlock()

	go func() {
		clip, err := o.prompts.Render(ctx, text, locale.Normalize(languageCode))
		if err != nil {
			o.logger.Warn("prompt-audio render failed", "language", languageCode, "error", err)
			o.fireError(g, events, err)
			return
		}
		if !o.live(g) {
			return
		}
		o.clips.Play(clip, o.guarded(g, events))
	}()
}

// Cancel implements [quiz.OutputPort]. Stops any in-flight utterance,
// render, or clip playback; their events no longer fire.
func (o *Output) Cancel() {
	o.mu.Lock()
	o.gen++
	cancel := o.cancelRender
	o.cancelRender = nil
	o.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if o.synth != nil {
		o.synth.Cancel()
	}
	if o.clips != nil {
		o.clips.Stop()
	}
}

func (o *Output) live(g uint64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return g == o.gen
}

func (o *Output) fireError(g uint64, events quiz.SpeechEvents, err error) {
	if o.live(g) && events.OnError != nil {
		events.OnError(err)
	}
}

// guarded wraps the engine's callbacks so that events from a cancelled or
// replaced utterance are discarded.
func (o *Output) guarded(g uint64, events quiz.SpeechEvents) synth.Events {
	return synth.Events{
		OnStart: func() {
			if o.live(g) && events.OnStart != nil {
				events.OnStart()
			}
		},
		OnEnd: func() {
			if o.live(g) && events.OnEnd != nil {
				events.OnEnd()
			}
		},
		OnError: func(err error) {
			o.fireError(g, events, err)
		},
	}
}

// findVoice searches the synthesizer's voices for the language: first a
// voice whose locale starts with the two-letter code, then an exact match
// on the mapped locale, then a display name containing a known variant of
// the language's name.
func (o *Output) findVoice(languageCode, mappedLocale string) (synth.Voice, bool) {
	voices := o.synth.Voices()
	if len(voices) == 0 {
		return synth.Voice{}, false
	}

	lang := locale.Normalize(languageCode)
	target := normalizeTag(mappedLocale)

	for _, v := range voices {
		tag := normalizeTag(v.Locale)
		if tag == lang || strings.HasPrefix(tag, lang+"-") {
			return v, true
		}
	}
	for _, v := range voices {
		if normalizeTag(v.Locale) == target {
			return v, true
		}
	}
	for _, variant := range locale.NameVariants(lang) {
		for _, v := range voices {
			if strings.Contains(strings.ToLower(v.Name), variant) {
				return v, true
			}
		}
	}
	return synth.Voice{}, false
}

func normalizeTag(tag string) string {
	return strings.ToLower(strings.ReplaceAll(tag, "_", "-"))
}

// Compile-time assertion that Output satisfies quiz.OutputPort.
var _ quiz.OutputPort = (*Output)(nil)
