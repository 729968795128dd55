// Package recognize defines the Provider interface for speech-recognition
// backends.
//
// A recognition provider wraps a speech-to-text engine (the browser's
// recognition API bridged over a websocket, or a local whisper.cpp server)
// and exposes a uniform session interface. A session accepts raw PCM audio
// (server-side backends) or is fed results externally (the browser bridge),
// and emits [Result] values carrying ranked transcript alternatives.
//
// The drill engine uses sessions in single-utterance mode: it consumes the
// first final result and aborts the session. Providers are not required to
// enforce this themselves.
//
// Implementations must be safe for concurrent use.
package recognize

import (
	"context"
	"errors"
)

// ErrSessionClosed is returned by SendAudio after a session has been
// aborted or closed.
var ErrSessionClosed = errors.New("recognize: session is closed")

// Alternative is one ranked hypothesis for an utterance.
type Alternative struct {
	// Transcript is the recognized text.
	Transcript string

	// Confidence is the engine's confidence in [0,1]. Engines that do not
	// score hypotheses report 1 for their single alternative.
	Confidence float64
}

// Result is one recognition result for an utterance.
type Result struct {
	// Alternatives holds the ranked hypotheses, best first. Never empty.
	Alternatives []Alternative

	// Final reports whether the engine has committed to this result.
	// Interim results may be refined by later ones.
	Final bool
}

// Config describes a new recognition session.
type Config struct {
	// Locale is the BCP-47 tag to recognize (e.g. "sk-SK").
	Locale string

	// MaxAlternatives is how many ranked hypotheses to request per result.
	// Engines may return fewer. Zero means engine default.
	MaxAlternatives int

	// PhraseHint optionally biases recognition towards an expected phrase.
	// Best effort; engines without hinting ignore it.
	PhraseHint string

	// SampleRate is the PCM sample rate in Hz for audio-fed backends.
	// Zero means provider default.
	SampleRate int

	// Channels is the PCM channel count. Zero means mono.
	Channels int
}

// SessionHandle is an open recognition session.
//
// Callers must Abort or Close the session when done; failing to do so leaks
// the provider's internal goroutines. All methods are safe for concurrent
// use.
type SessionHandle interface {
	// SendAudio delivers raw 16-bit little-endian PCM audio for
	// recognition. Backends that receive audio out of band (the browser
	// bridge) ignore it. Returns [ErrSessionClosed] after Abort or Close.
	SendAudio(chunk []byte) error

	// Results returns a read-only channel emitting recognition results.
	// Closed when the session ends.
	Results() <-chan Result

	// Abort terminates the session immediately, discarding any buffered
	// audio. No further results are emitted. Safe to call more than once.
	Abort()

	// Close terminates the session after flushing buffered audio into a
	// last recognition attempt. Calling Close more than once is safe and
	// returns nil.
	Close() error
}

// Provider is the abstraction over any speech-recognition backend.
type Provider interface {
	// Start opens a new recognition session. Returns an error if the
	// session cannot be established or ctx is already cancelled. The
	// caller owns the handle and must Abort or Close it.
	Start(ctx context.Context, cfg Config) (SessionHandle, error)
}
