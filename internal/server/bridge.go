package server

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"

	"github.com/vocadrill/vocadrill/pkg/speech/promptaudio"
	"github.com/vocadrill/vocadrill/pkg/speech/recognize"
	"github.com/vocadrill/vocadrill/pkg/speech/synth"
)

// sendFunc delivers one protocol message to the client. Implementations
// serialize writes; errors mean the connection is gone.
type sendFunc func(v any) error

// ── Speech output bridge ─────────────────────────────────────────────────────

// Compile-time assertions for the bridged speech surfaces.
var _ synth.Synthesizer = (*speechBridge)(nil)

// speechBridge proxies speech output to the browser. It implements both
// [synth.Synthesizer] (speak text through the browser's speechSynthesis)
// and the clip-player surface (play a server-rendered clip), sharing one
// utterance-ID space so lifecycle events coming back as speech_event
// messages dispatch to the right callbacks.
//
// Only the most recent utterance is live; events for earlier IDs are
// dropped, mirroring the cancel-before-start contract of the ports.
type speechBridge struct {
	send sendFunc

	mu     sync.Mutex
	voices []synth.Voice
	nextID int
	active int
	events synth.Events
}

func newSpeechBridge(send sendFunc, voices []synth.Voice) *speechBridge {
	return &speechBridge{send: send, voices: voices}
}

// Voices returns the voice list announced in the client hello.
func (b *speechBridge) Voices() []synth.Voice {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.voices
}

// Speak sends a speak command for browser-side synthesis.
func (b *speechBridge) Speak(u synth.Utterance, events synth.Events) error {
	id := b.arm(events)
	err := b.send(speakMessage{
		Type:        "speak",
		UtteranceID: id,
		Text:        u.Text,
		Locale:      u.Locale,
		VoiceName:   u.VoiceName,
		Rate:        u.Rate,
	})
	if err != nil {
		b.disarm(id)
		return fmt.Errorf("server: send speak: %w", err)
	}
	return nil
}

// Play sends a speak command carrying a rendered clip. Send failures
// surface through events.OnError; the clip path has no error return.
func (b *speechBridge) Play(clip promptaudio.Clip, events synth.Events) {
	id := b.arm(events)
	err := b.send(speakMessage{
		Type:        "speak",
		UtteranceID: id,
		ClipData:    base64.StdEncoding.EncodeToString(clip.Data),
		MIMEType:    clip.MIMEType,
	})
	if err != nil {
		b.disarm(id)
		if events.OnError != nil {
			events.OnError(fmt.Errorf("server: send clip: %w", err))
		}
	}
}

// Cancel discards the live utterance and tells the browser to stop.
func (b *speechBridge) Cancel() {
	b.mu.Lock()
	b.active = 0
	b.events = synth.Events{}
	b.mu.Unlock()
	_ = b.send(cancelSpeakMessage{Type: "cancel_speak"})
}

// Stop is the clip-player spelling of Cancel.
func (b *speechBridge) Stop() { b.Cancel() }

// arm allocates the next utterance ID and makes it the live one.
func (b *speechBridge) arm(events synth.Events) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.active = b.nextID
	b.events = events
	return b.nextID
}

// disarm clears the live utterance if it is still id.
func (b *speechBridge) disarm(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.active == id {
		b.active = 0
		b.events = synth.Events{}
	}
}

// dispatch routes a speech_event message to the live utterance's callbacks.
// Events for a stale ID are dropped. End and error events retire the
// utterance first so a re-entrant Speak from the callback is not clobbered.
func (b *speechBridge) dispatch(id int, event, message string) {
	b.mu.Lock()
	if b.active != id {
		b.mu.Unlock()
		return
	}
	events := b.events
	if event == eventEnd || event == eventError {
		b.active = 0
		b.events = synth.Events{}
	}
	b.mu.Unlock()

	switch event {
	case eventStart:
		if events.OnStart != nil {
			events.OnStart()
		}
	case eventEnd:
		if events.OnEnd != nil {
			events.OnEnd()
		}
	case eventError:
		if events.OnError != nil {
			if message == "" {
				message = "speech failed"
			}
			events.OnError(fmt.Errorf("server: browser speech: %s", message))
		}
	}
}

// ── Recognition bridge ───────────────────────────────────────────────────────

var _ recognize.Provider = (*bridgeRecognizer)(nil)
var _ recognize.SessionHandle = (*bridgeRecSession)(nil)

// bridgeRecognizer is a [recognize.Provider] whose sessions run in the
// browser: Start sends a listen command and results arrive out of band as
// recognition_result messages, fed in by the connection's read loop.
type bridgeRecognizer struct {
	send sendFunc

	mu   sync.Mutex
	sess *bridgeRecSession
}

func newBridgeRecognizer(send sendFunc) *bridgeRecognizer {
	return &bridgeRecognizer{send: send}
}

// Start asks the browser to begin recognizing. Any previous session is
// aborted first; at most one browser recognition runs at a time.
func (b *bridgeRecognizer) Start(ctx context.Context, cfg recognize.Config) (recognize.SessionHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s := &bridgeRecSession{
		owner:   b,
		results: make(chan recognize.Result, 4),
	}

	b.mu.Lock()
	old := b.sess
	b.sess = s
	b.mu.Unlock()

	if old != nil {
		old.end()
	}

	err := b.send(listenMessage{
		Type:            "listen",
		Active:          true,
		Locale:          cfg.Locale,
		MaxAlternatives: cfg.MaxAlternatives,
		PhraseHint:      cfg.PhraseHint,
	})
	if err != nil {
		b.detach(s)
		s.end()
		return nil, fmt.Errorf("server: send listen: %w", err)
	}
	return s, nil
}

// deliver forwards one recognition result to the live session. Results
// arriving with no session (stale, or after abort) are dropped.
func (b *bridgeRecognizer) deliver(res recognize.Result) {
	b.mu.Lock()
	s := b.sess
	b.mu.Unlock()
	if s != nil {
		s.deliver(res)
	}
}

// ended handles the browser reporting its recognition session is over.
func (b *bridgeRecognizer) ended() {
	b.mu.Lock()
	s := b.sess
	b.sess = nil
	b.mu.Unlock()
	if s != nil {
		s.end()
	}
}

// detach removes s as the live session if it still is.
func (b *bridgeRecognizer) detach(s *bridgeRecSession) {
	b.mu.Lock()
	if b.sess == s {
		b.sess = nil
	}
	b.mu.Unlock()
}

// bridgeRecSession is one browser recognition run.
type bridgeRecSession struct {
	owner   *bridgeRecognizer
	results chan recognize.Result

	mu     sync.Mutex
	closed bool
}

// SendAudio is ignored: the browser captures its own microphone audio.
func (s *bridgeRecSession) SendAudio(_ []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return recognize.ErrSessionClosed
	}
	return nil
}

// Results returns the channel fed by the connection's read loop.
func (s *bridgeRecSession) Results() <-chan recognize.Result {
	return s.results
}

// Abort stops the browser recognition and closes the results channel.
func (s *bridgeRecSession) Abort() {
	s.owner.detach(s)
	if s.end() {
		_ = s.owner.send(listenMessage{Type: "listen", Active: false})
	}
}

// Close is identical to Abort; the browser commits results on its own.
func (s *bridgeRecSession) Close() error {
	s.Abort()
	return nil
}

// deliver pushes a result unless the session is over. Non-blocking: a
// consumer that has already stopped reading loses interim results only.
func (s *bridgeRecSession) deliver(res recognize.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.results <- res:
	default:
	}
}

// end marks the session closed and closes the results channel once.
// Reports whether this call did the closing.
func (s *bridgeRecSession) end() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.closed = true
	close(s.results)
	return true
}

// ── Server-side recognition tap ──────────────────────────────────────────────

var _ recognize.Provider = (*tappedProvider)(nil)

// tappedProvider wraps a server-side recognition provider (whisper) and
// remembers the most recently started session, so the connection's read
// loop can forward the client's binary audio frames into it.
type tappedProvider struct {
	inner recognize.Provider

	mu   sync.Mutex
	live recognize.SessionHandle
}

func newTappedProvider(inner recognize.Provider) *tappedProvider {
	return &tappedProvider{inner: inner}
}

func (t *tappedProvider) Start(ctx context.Context, cfg recognize.Config) (recognize.SessionHandle, error) {
	h, err := t.inner.Start(ctx, cfg)
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	t.live = h
	t.mu.Unlock()
	return h, nil
}

// SendAudio forwards a PCM chunk to the live session, if any. A closed
// session is not an error here; the chunk raced the teardown.
func (t *tappedProvider) SendAudio(chunk []byte) {
	t.mu.Lock()
	h := t.live
	t.mu.Unlock()
	if h == nil {
		return
	}
	_ = h.SendAudio(chunk)
}
