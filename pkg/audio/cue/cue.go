// Package cue synthesizes the short feedback sounds of the drill: a rising
// success chime, a falling failure buzz, and score-scaled celebration
// fanfares. Tones are rendered as 16-bit signed little-endian mono PCM and
// handed to a [Sink] for playback, fire and forget.
package cue

import (
	"math"
	"time"
)

// Sink plays one rendered PCM clip. Implementations must not block; the
// drill engine treats cues as side effects with no completion signal.
type Sink interface {
	Play(pcm []byte, sampleRate int)
}

// Player is the cue surface consumed by the drill: one sound per outcome.
type Player interface {
	// Success plays the correct-answer chime.
	Success()

	// Failure plays the wrong-answer buzz.
	Failure()

	// Celebrate plays a completion fanfare scaled to the final score
	// percentage: a full fanfare at 100, a shorter one above 50, and an
	// encouraging figure otherwise.
	Celebrate(percent int)
}

type shape int

const (
	shapeSine shape = iota
	shapeTriangle
)

// note is one tone within a cue: frequency, onset offset, duration, and
// waveform.
type note struct {
	freq  float64
	at    time.Duration
	dur   time.Duration
	shape shape
}

// The success chime is a rising C-major arpeggio (C5, E5, G5); the failure
// buzz two low triangle tones (A3, F#3).
var (
	successNotes = []note{
		{freq: 523.25, at: 0, dur: 150 * time.Millisecond, shape: shapeSine},
		{freq: 659.25, at: 100 * time.Millisecond, dur: 150 * time.Millisecond, shape: shapeSine},
		{freq: 783.99, at: 200 * time.Millisecond, dur: 250 * time.Millisecond, shape: shapeSine},
	}
	failureNotes = []note{
		{freq: 220.00, at: 0, dur: 200 * time.Millisecond, shape: shapeTriangle},
		{freq: 185.00, at: 150 * time.Millisecond, dur: 250 * time.Millisecond, shape: shapeTriangle},
	}
	perfectNotes = []note{
		{freq: 523.25, at: 0, dur: 180 * time.Millisecond, shape: shapeSine},
		{freq: 659.25, at: 120 * time.Millisecond, dur: 180 * time.Millisecond, shape: shapeSine},
		{freq: 783.99, at: 240 * time.Millisecond, dur: 180 * time.Millisecond, shape: shapeSine},
		{freq: 1046.50, at: 360 * time.Millisecond, dur: 350 * time.Millisecond, shape: shapeSine},
	}
	greatNotes = []note{
		{freq: 523.25, at: 0, dur: 180 * time.Millisecond, shape: shapeSine},
		{freq: 659.25, at: 150 * time.Millisecond, dur: 180 * time.Millisecond, shape: shapeSine},
		{freq: 783.99, at: 300 * time.Millisecond, dur: 280 * time.Millisecond, shape: shapeSine},
	}
	encouragingNotes = []note{
		{freq: 392.00, at: 0, dur: 200 * time.Millisecond, shape: shapeSine},
		{freq: 523.25, at: 200 * time.Millisecond, dur: 300 * time.Millisecond, shape: shapeSine},
	}
)

const (
	defaultSampleRate = 16000
	defaultVolume     = 0.4
)

// Option is a functional option for configuring a [Synth].
type Option func(*Synth)

// WithSampleRate sets the PCM sample rate in Hz. Default: 16000.
func WithSampleRate(rate int) Option {
	return func(s *Synth) { s.sampleRate = rate }
}

// WithVolume sets the peak amplitude in [0,1]. Default: 0.4.
func WithVolume(v float64) Option {
	return func(s *Synth) { s.volume = v }
}

// Synth renders the cue tones and plays them through a [Sink]. It
// implements [Player]. Safe for concurrent use; the Synth is read-only
// after construction.
type Synth struct {
	sink       Sink
	sampleRate int
	volume     float64
}

// NewSynth returns a Synth playing through sink.
func NewSynth(sink Sink, opts ...Option) *Synth {
	s := &Synth{
		sink:       sink,
		sampleRate: defaultSampleRate,
		volume:     defaultVolume,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Success implements [Player].
func (s *Synth) Success() { s.play(successNotes) }

// Failure implements [Player].
func (s *Synth) Failure() { s.play(failureNotes) }

// Celebrate implements [Player].
func (s *Synth) Celebrate(percent int) {
	switch {
	case percent >= 100:
		s.play(perfectNotes)
	case percent > 50:
		s.play(greatNotes)
	default:
		s.play(encouragingNotes)
	}
}

func (s *Synth) play(notes []note) {
	s.sink.Play(render(notes, s.sampleRate, s.volume), s.sampleRate)
}

// render mixes the notes into one 16-bit little-endian mono PCM buffer.
// Each note carries a linear fade-out envelope so tones end without clicks;
// the mixed signal is clamped to the int16 range.
func render(notes []note, sampleRate int, volume float64) []byte {
	var total time.Duration
	for _, n := range notes {
		if end := n.at + n.dur; end > total {
			total = end
		}
	}
	numSamples := int(float64(sampleRate) * total.Seconds())
	mix := make([]float64, numSamples)

	for _, n := range notes {
		start := int(float64(sampleRate) * n.at.Seconds())
		count := int(float64(sampleRate) * n.dur.Seconds())
		for i := 0; i < count && start+i < numSamples; i++ {
			t := float64(i) / float64(sampleRate)
			phase := n.freq * t
			var v float64
			switch n.shape {
			case shapeTriangle:
				// Triangle from the fractional phase: /\ per period.
				frac := phase - math.Floor(phase)
				v = 4*math.Abs(frac-0.5) - 1
			default:
				v = math.Sin(2 * math.Pi * phase)
			}
			envelope := 1 - float64(i)/float64(count)
			mix[start+i] += v * envelope
		}
	}

	pcm := make([]byte, numSamples*2)
	for i, v := range mix {
		v *= volume
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		sample := int16(v * 32767)
		pcm[i*2] = byte(sample)
		pcm[i*2+1] = byte(uint16(sample) >> 8)
	}
	return pcm
}

// Compile-time assertion that Synth satisfies Player.
var _ Player = (*Synth)(nil)
