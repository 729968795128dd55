// Package mock provides test doubles for the recognize package interfaces.
//
// Use Provider to verify that the caller starts sessions with the expected
// Config. Use Session to feed controlled Result values and inspect which
// audio chunks were delivered.
//
// Example:
//
//	sess := &mock.Session{ResultsCh: make(chan recognize.Result, 1)}
//	p := &mock.Provider{Session: sess}
//	handle, _ := p.Start(ctx, cfg)
//	sess.ResultsCh <- recognize.Result{...}
package mock

import (
	"context"
	"sync"

	"github.com/vocadrill/vocadrill/pkg/speech/recognize"
)

// StartCall records a single invocation of Provider.Start.
type StartCall struct {
	// Ctx is the context passed to Start.
	Ctx context.Context
	// Cfg is the Config passed to Start.
	Cfg recognize.Config
}

// Provider is a mock implementation of recognize.Provider.
type Provider struct {
	mu sync.Mutex

	// Session is the SessionHandle returned by Start. If nil, Start
	// returns a new default Session with a buffered result channel.
	Session recognize.SessionHandle

	// StartErr, if non-nil, is returned as the error from Start.
	StartErr error

	// StartCalls records every call to Start.
	StartCalls []StartCall
}

// Start records the call and returns Session, StartErr.
func (p *Provider) Start(ctx context.Context, cfg recognize.Config) (recognize.SessionHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.StartCalls = append(p.StartCalls, StartCall{Ctx: ctx, Cfg: cfg})
	if p.StartErr != nil {
		return nil, p.StartErr
	}
	if p.Session != nil {
		return p.Session, nil
	}
	return &Session{ResultsCh: make(chan recognize.Result, 16)}, nil
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.StartCalls = nil
}

// Ensure Provider implements recognize.Provider at compile time.
var _ recognize.Provider = (*Provider)(nil)

// SendAudioCall records a single invocation of Session.SendAudio.
type SendAudioCall struct {
	// Chunk is a copy of the audio bytes that were passed to SendAudio.
	Chunk []byte
}

// Session is a mock implementation of recognize.SessionHandle.
// Callers should pre-populate ResultsCh with the Result values they want
// the consumer to receive, then close it when done.
type Session struct {
	mu sync.Mutex

	// ResultsCh is the channel returned by Results(). Callers own this
	// channel and are responsible for sending to and closing it in tests.
	ResultsCh chan recognize.Result

	// SendAudioErr, if non-nil, is returned by every SendAudio call.
	SendAudioErr error

	// CloseErr, if non-nil, is returned by Close.
	CloseErr error

	// SendAudioCalls records every call to SendAudio in order.
	SendAudioCalls []SendAudioCall

	// AbortCallCount is the number of times Abort was called.
	AbortCallCount int

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int

	closed bool
}

// SendAudio records the call and returns SendAudioErr.
func (s *Session) SendAudio(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(chunk))
	copy(cp, chunk)
	s.SendAudioCalls = append(s.SendAudioCalls, SendAudioCall{Chunk: cp})
	return s.SendAudioErr
}

// Results returns ResultsCh. The caller must have initialised ResultsCh
// before calling this method.
func (s *Session) Results() <-chan recognize.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ResultsCh
}

// Abort records the call and closes ResultsCh exactly once.
func (s *Session) Abort() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.AbortCallCount++
	s.closeResultsLocked()
}

// Close records the call, closes ResultsCh exactly once, and returns
// CloseErr.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseCallCount++
	s.closeResultsLocked()
	return s.CloseErr
}

func (s *Session) closeResultsLocked() {
	if s.closed || s.ResultsCh == nil {
		return
	}
	s.closed = true
	close(s.ResultsCh)
}

// ResetCalls clears all recorded calls. Thread-safe.
func (s *Session) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SendAudioCalls = nil
	s.AbortCallCount = 0
	s.CloseCallCount = 0
}

// Ensure Session implements recognize.SessionHandle at compile time.
var _ recognize.SessionHandle = (*Session)(nil)
