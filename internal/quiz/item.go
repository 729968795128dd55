package quiz

// ItemKind classifies a vocabulary item by its granularity.
type ItemKind string

// The recognized item kinds.
const (
	KindWord     ItemKind = "WORD"
	KindPhrase   ItemKind = "PHRASE"
	KindSentence ItemKind = "SENTENCE"
)

// Item is one vocabulary entry drilled during a session. The engine treats
// items as read-only; they are owned by the content source.
type Item struct {
	// ID uniquely identifies the item within the session. Missed-word
	// tracking is keyed on it.
	ID string

	// Prompt is the word, phrase, or sentence in the language being taught.
	// It is spoken to the learner in the target language.
	Prompt string

	// Answer is the expected translation. The learner must speak it in
	// their own language; it is also spoken aloud as the hint.
	Answer string

	// Pronunciation optionally holds a phonetic rendering of the prompt.
	Pronunciation string

	// Example optionally holds a usage example in the target language,
	// with its translation in ExampleTranslation.
	Example            string
	ExampleTranslation string

	// ImageURL optionally points at an illustration for the item.
	ImageURL string

	// Kind classifies the item. Defaults to [KindWord] when empty.
	Kind ItemKind
}
