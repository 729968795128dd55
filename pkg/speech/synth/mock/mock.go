// Package mock provides an in-memory mock implementation of the
// [synth.Synthesizer] interface for use in unit tests.
//
// The mock is safe for concurrent use. It records every method call so that
// tests can assert on call counts and arguments, and it exposes exported
// fields the test can set to control return values. Lifecycle events are
// fired manually via [Synthesizer.FinishLast] and [Synthesizer.FailLast].
package mock

import (
	"sync"

	"github.com/vocadrill/vocadrill/pkg/speech/synth"
)

// SpeakCall records the arguments of a single [Synthesizer.Speak] invocation.
type SpeakCall struct {
	// Utterance is the utterance passed to Speak.
	Utterance synth.Utterance

	// Events are the lifecycle callbacks passed to Speak.
	Events synth.Events
}

// Synthesizer is a mock implementation of [synth.Synthesizer].
// Set the exported Result fields before use; inspect the Call* fields after.
type Synthesizer struct {
	mu sync.Mutex

	// VoicesResult is returned by Voices. Defaults to nil.
	VoicesResult []synth.Voice

	// SpeakError is returned by Speak.
	SpeakError error

	// SpeakCalls records all Speak invocations.
	SpeakCalls []SpeakCall

	// CallCountCancel records how many times Cancel was called.
	CallCountCancel int
}

// Voices implements [synth.Synthesizer]. Returns VoicesResult.
func (s *Synthesizer) Voices() []synth.Voice {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.VoicesResult
}

// Speak implements [synth.Synthesizer]. Records the call and returns
// SpeakError. No events fire automatically; use FinishLast or FailLast.
func (s *Synthesizer) Speak(u synth.Utterance, events synth.Events) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SpeakCalls = append(s.SpeakCalls, SpeakCall{Utterance: u, Events: events})
	return s.SpeakError
}

// Cancel implements [synth.Synthesizer]. Records the call.
func (s *Synthesizer) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountCancel++
}

// FinishLast fires OnStart and OnEnd of the most recent Speak call.
// Returns false when no call was recorded.
func (s *Synthesizer) FinishLast() bool {
	ev, ok := s.lastEvents()
	if !ok {
		return false
	}
	if ev.OnStart != nil {
		ev.OnStart()
	}
	if ev.OnEnd != nil {
		ev.OnEnd()
	}
	return true
}

// FailLast fires OnError of the most recent Speak call with err.
// Returns false when no call was recorded.
func (s *Synthesizer) FailLast(err error) bool {
	ev, ok := s.lastEvents()
	if !ok {
		return false
	}
	if ev.OnError != nil {
		ev.OnError(err)
	}
	return true
}

func (s *Synthesizer) lastEvents() (synth.Events, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.SpeakCalls) == 0 {
		return synth.Events{}, false
	}
	return s.SpeakCalls[len(s.SpeakCalls)-1].Events, true
}

// Compile-time assertion that Synthesizer satisfies synth.Synthesizer.
var _ synth.Synthesizer = (*Synthesizer)(nil)
