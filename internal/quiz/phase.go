package quiz

// Phase is the state of the session with respect to the current item.
// Transitions are driven by speech lifecycle events, timers, and explicit
// host calls; illegal combinations (hint shown while still prompting, etc.)
// are unrepresentable.
type Phase int

const (
	// PhaseIdle is the state before Start and after Close.
	PhaseIdle Phase = iota

	// PhasePrompting means the current item's prompt is being spoken.
	// Listening is not armed yet so the recognizer cannot pick up the
	// system's own audio.
	PhasePrompting

	// PhaseAwaitingAnswer means the prompt finished and the engine is
	// listening for the learner's spoken answer. "I don't know" is
	// available.
	PhaseAwaitingAnswer

	// PhaseHintShown means the answer was revealed after "I don't know"
	// and the learner must repeat it aloud before advancing.
	PhaseHintShown

	// PhaseItemSuccess is the transient success display between a matched
	// answer and the advance to the next item.
	PhaseItemSuccess

	// PhaseCompleted means every pass is finished and the completion
	// summary is available.
	PhaseCompleted
)

// String returns the phase name for logging.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhasePrompting:
		return "prompting"
	case PhaseAwaitingAnswer:
		return "awaiting_answer"
	case PhaseHintShown:
		return "hint_shown"
	case PhaseItemSuccess:
		return "item_success"
	case PhaseCompleted:
		return "completed"
	default:
		return "unknown"
	}
}
