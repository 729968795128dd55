// Package synth defines the platform speech-synthesis capability: an
// enumerable set of voices plus an utterance API with rate/pitch/volume and
// start/end/error lifecycle events.
//
// The canonical implementation is a browser's speechSynthesis engine bridged
// over a websocket (see the server package); the mock subpackage provides an
// in-memory double for tests.
//
// Implementations must be safe for concurrent use.
package synth

// Voice describes one synthesis voice.
type Voice struct {
	// Name is the voice's display name (e.g. "Laura", "Google slovenčina").
	Name string

	// Locale is the BCP-47 tag the voice speaks (e.g. "sk-SK").
	Locale string
}

// Utterance is one piece of text to speak.
type Utterance struct {
	// Text is the text to speak.
	Text string

	// Locale is the BCP-47 tag the text is in.
	Locale string

	// VoiceName selects a specific voice by name. Empty lets the engine
	// pick a default for the locale.
	VoiceName string

	// Rate is the speaking rate, 1.0 = normal. Zero means engine default.
	Rate float64

	// Pitch is the voice pitch, 1.0 = normal. Zero means engine default.
	Pitch float64

	// Volume is the playback volume in [0,1]. Zero means engine default.
	Volume float64
}

// Events carries the lifecycle callbacks for one utterance. Any field may
// be nil. OnStart fires when audio begins; exactly one of OnEnd or OnError
// fires when the utterance finishes, unless it was cancelled first.
type Events struct {
	OnStart func()
	OnEnd   func()
	OnError func(err error)
}

// Synthesizer is the abstraction over a speech-synthesis engine.
type Synthesizer interface {
	// Voices returns the currently available voices. The list may change
	// between calls as the underlying engine loads voices.
	Voices() []Voice

	// Speak queues the utterance for playback and reports its lifecycle
	// through events. Speaking replaces any in-flight utterance. A non-nil
	// error means the utterance could not be queued at all; errors during
	// playback arrive via events.OnError instead.
	Speak(u Utterance, events Events) error

	// Cancel discards any queued or in-flight utterance. Its events do not
	// fire after Cancel returns.
	Cancel()
}
