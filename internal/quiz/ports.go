package quiz

// SpeechEvents carries the lifecycle callbacks for one spoken utterance.
// Any field may be nil. Implementations invoke OnStart when audio actually
// begins, exactly one of OnEnd or OnError when it finishes, and never both.
type SpeechEvents struct {
	OnStart func()
	OnEnd   func()
	OnError func(err error)
}

// OutputPort speaks text aloud in a given language. Speak is
// fire-and-forget: failures surface through the events, never as a panic or
// a return value. Starting a new utterance cancels any in-flight one.
type OutputPort interface {
	Speak(text, languageCode string, events SpeechEvents)

	// Cancel stops any in-flight utterance. Its events do not fire after
	// Cancel returns.
	Cancel()
}

// InputPort listens for one spoken answer at a time and judges it against
// a bound expected answer.
type InputPort interface {
	// Bind attaches the port to a new (expected answer, language) pair.
	// Any live recognition session is torn down first so a stale result
	// can never fire against the wrong answer. onSuccess is invoked once
	// per successful utterance, after the success cue.
	Bind(expectedAnswer, languageCode string, onSuccess func())

	// StartListening opens a single-utterance recognition session for the
	// current binding. A no-op when recognition is unavailable or a
	// session is already live.
	StartListening()

	// StopListening aborts any live recognition session without firing
	// callbacks.
	StopListening()

	// Listening reports whether a recognition session is live.
	Listening() bool

	// LastTranscript returns the most recent top-ranked transcript, for
	// display. Cleared when listening starts.
	LastTranscript() string

	// Available reports whether the platform offers speech recognition at
	// all. When false, StartListening is a no-op and the host must rely on
	// the "I don't know" path.
	Available() bool
}

// Celebrator plays a completion fanfare scaled to the final score
// percentage. Optional; a nil Celebrator disables it.
type Celebrator interface {
	Celebrate(percent int)
}
