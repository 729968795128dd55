// Package mock provides in-memory test doubles for the cue package
// interfaces. All mocks are safe for concurrent use.
package mock

import (
	"sync"

	"github.com/vocadrill/vocadrill/pkg/audio/cue"
)

// PlayCall records the arguments of a single [Sink.Play] invocation.
type PlayCall struct {
	// PCM is the rendered audio passed to Play.
	PCM []byte

	// SampleRate is the sample rate passed to Play.
	SampleRate int
}

// Sink is a mock implementation of [cue.Sink].
type Sink struct {
	mu sync.Mutex

	// PlayCalls records all Play invocations.
	PlayCalls []PlayCall
}

// Play implements [cue.Sink]. Records the call.
func (s *Sink) Play(pcm []byte, sampleRate int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.PlayCalls = append(s.PlayCalls, PlayCall{PCM: pcm, SampleRate: sampleRate})
}

// Count returns the number of recorded Play calls. Thread-safe.
func (s *Sink) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.PlayCalls)
}

// Compile-time assertion that Sink satisfies cue.Sink.
var _ cue.Sink = (*Sink)(nil)

// Player is a mock implementation of [cue.Player]. It counts calls per cue.
type Player struct {
	mu sync.Mutex

	// CallCountSuccess records how many times Success was called.
	CallCountSuccess int

	// CallCountFailure records how many times Failure was called.
	CallCountFailure int

	// CelebrateCalls records the percent argument of every Celebrate call.
	CelebrateCalls []int
}

// Success implements [cue.Player].
func (p *Player) Success() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CallCountSuccess++
}

// Failure implements [cue.Player].
func (p *Player) Failure() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CallCountFailure++
}

// Celebrate implements [cue.Player].
func (p *Player) Celebrate(percent int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CelebrateCalls = append(p.CelebrateCalls, percent)
}

// Compile-time assertion that Player satisfies cue.Player.
var _ cue.Player = (*Player)(nil)
