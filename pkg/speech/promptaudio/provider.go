// Package promptaudio defines the Provider interface for remote prompt-audio
// rendering backends.
//
// A prompt-audio provider turns (text, language) into a short decodable audio
// clip. It is the fallback path of speech output: when no local synthesis
// voice matches the requested language, the controller renders a clip through
// a provider and plays it instead. Implementations live in subpackages
// (gtrans, openaitts) plus a mock for tests.
//
// Implementations must be safe for concurrent use.
package promptaudio

import "context"

// Clip is one rendered audio payload.
type Clip struct {
	// Data is the encoded audio.
	Data []byte

	// MIMEType identifies the encoding (e.g. "audio/mpeg").
	MIMEType string
}

// Provider renders prompt text into an audio clip.
type Provider interface {
	// Render synthesizes text spoken in the language identified by the
	// two-letter languageCode. Returns an error when the backend cannot be
	// reached, rejects the request, or ctx is cancelled; a returned Clip
	// always has non-empty Data.
	Render(ctx context.Context, text, languageCode string) (Clip, error)
}
