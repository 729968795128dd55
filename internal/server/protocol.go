package server

import (
	"github.com/vocadrill/vocadrill/internal/quiz"
	"github.com/vocadrill/vocadrill/pkg/speech/synth"
)

// ── Client → server messages ─────────────────────────────────────────────────

// Client message types. listen re-arms the microphone after a missed
// answer; its server-bound form carries no fields beyond the type.
const (
	msgHello             = "hello"
	msgStart             = "start"
	msgSpeechEvent       = "speech_event"
	msgRecognitionResult = "recognition_result"
	msgRecognitionEnd    = "recognition_end"
	msgListen            = "listen"
	msgDontKnow          = "dont_know"
	msgRestart           = "restart"
	msgClose             = "close"
)

// Speech lifecycle event names carried by a speech_event message.
const (
	eventStart = "start"
	eventEnd   = "end"
	eventError = "error"
)

// wireVoice is one browser synthesis voice announced in the hello message.
type wireVoice struct {
	Name   string `json:"name"`
	Locale string `json:"locale"`
}

// wireAlternative is one ranked recognition hypothesis.
type wireAlternative struct {
	Transcript string  `json:"transcript"`
	Confidence float64 `json:"confidence"`
}

// clientMessage is the single envelope for everything the browser sends.
// Which fields are meaningful depends on Type.
type clientMessage struct {
	Type string `json:"type"`

	// hello
	ChapterID            string      `json:"chapter_id,omitempty"`
	TargetLang           string      `json:"target_lang,omitempty"`
	NativeLang           string      `json:"native_lang,omitempty"`
	Voices               []wireVoice `json:"voices,omitempty"`
	RecognitionAvailable bool        `json:"recognition_available,omitempty"`

	// speech_event
	UtteranceID int    `json:"utterance_id,omitempty"`
	Event       string `json:"event,omitempty"`
	Message     string `json:"message,omitempty"`

	// recognition_result
	Alternatives []wireAlternative `json:"alternatives,omitempty"`
	Final        bool              `json:"final,omitempty"`
}

// helloVoices converts announced voices into the synth representation.
func helloVoices(voices []wireVoice) []synth.Voice {
	out := make([]synth.Voice, len(voices))
	for i, v := range voices {
		out[i] = synth.Voice{Name: v.Name, Locale: v.Locale}
	}
	return out
}

// ── Server → client messages ─────────────────────────────────────────────────

// speakMessage instructs the browser to speak text through its
// speechSynthesis engine, or to play a server-rendered clip when ClipData
// is set. Lifecycle events come back as speech_event messages tagged with
// the same UtteranceID.
type speakMessage struct {
	Type        string  `json:"type"` // "speak"
	UtteranceID int     `json:"utterance_id"`
	Text        string  `json:"text,omitempty"`
	Locale      string  `json:"locale,omitempty"`
	VoiceName   string  `json:"voice,omitempty"`
	Rate        float64 `json:"rate,omitempty"`

	// Rendered-clip fallback: base64 audio instead of synthesis.
	ClipData string `json:"clip_data,omitempty"`
	MIMEType string `json:"mime_type,omitempty"`
}

// cancelSpeakMessage discards any in-flight utterance or clip client-side.
type cancelSpeakMessage struct {
	Type string `json:"type"` // "cancel_speak"
}

// listenMessage starts or stops the browser's speech recognition.
type listenMessage struct {
	Type            string `json:"type"` // "listen"
	Active          bool   `json:"active"`
	Locale          string `json:"locale,omitempty"`
	MaxAlternatives int    `json:"max_alternatives,omitempty"`
	PhraseHint      string `json:"phrase_hint,omitempty"`
}

// cueMessage asks the client to play a feedback sound.
type cueMessage struct {
	Type    string `json:"type"` // "cue"
	Kind    string `json:"kind"` // "success" | "failure" | "celebrate"
	Percent int    `json:"percent,omitempty"`
}

// wireItem is the vocabulary item exposed in a state message.
type wireItem struct {
	ID                 string `json:"id"`
	Prompt             string `json:"prompt"`
	Answer             string `json:"answer"`
	Pronunciation      string `json:"pronunciation,omitempty"`
	Example            string `json:"example,omitempty"`
	ExampleTranslation string `json:"example_translation,omitempty"`
	ImageURL           string `json:"image_url,omitempty"`
	Kind               string `json:"kind"`
}

// stateMessage is one session snapshot, pushed after every transition.
type stateMessage struct {
	Type           string   `json:"type"` // "state"
	Phase          string   `json:"phase"`
	Item           wireItem `json:"item"`
	Index          int      `json:"index"`
	ProcessedCount int      `json:"processed_count"`
	TotalForPass   int      `json:"total_for_pass"`
	Score          int      `json:"score"`
	MaxScore       int      `json:"max_score"`
	ReviewPass     bool     `json:"review_pass"`
	Listening      bool     `json:"listening"`
	LastTranscript string   `json:"last_transcript,omitempty"`
}

// summaryMessage is the completion report, pushed once per finished drill.
type summaryMessage struct {
	Type        string `json:"type"` // "summary"
	Score       int    `json:"score"`
	MaxScore    int    `json:"max_score"`
	Percent     int    `json:"percent"`
	MissedCount int    `json:"missed_count"`
}

// errorMessage reports a request-level failure (unknown chapter, bad hello).
type errorMessage struct {
	Type    string `json:"type"` // "error"
	Message string `json:"message"`
}

// stateFromSnapshot converts an engine snapshot to its wire form.
func stateFromSnapshot(snap quiz.Snapshot) stateMessage {
	return stateMessage{
		Type:  "state",
		Phase: snap.Phase.String(),
		Item: wireItem{
			ID:                 snap.Item.ID,
			Prompt:             snap.Item.Prompt,
			Answer:             snap.Item.Answer,
			Pronunciation:      snap.Item.Pronunciation,
			Example:            snap.Item.Example,
			ExampleTranslation: snap.Item.ExampleTranslation,
			ImageURL:           snap.Item.ImageURL,
			Kind:               string(snap.Item.Kind),
		},
		Index:          snap.Index,
		ProcessedCount: snap.ProcessedCount,
		TotalForPass:   snap.TotalForPass,
		Score:          snap.Score,
		MaxScore:       snap.MaxScore,
		ReviewPass:     snap.ReviewPass,
		Listening:      snap.Listening,
		LastTranscript: snap.LastTranscript,
	}
}
