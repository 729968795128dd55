// Package content provides the vocabulary content model and store for
// vocadrill.
//
// Content is organised as Course → Pack → Chapter → Vocabulary. A course
// covers one language pair, its packs group chapters thematically, and a
// chapter is the unit a drill runs over. The [Store] interface abstracts
// the backend; PostgreSQL and YAML-file implementations live in the
// postgres and yamlstore subpackages.
package content

import (
	"context"
	"errors"

	"github.com/vocadrill/vocadrill/internal/quiz"
)

// ErrNotFound is returned when the requested course or chapter does not exist.
var ErrNotFound = errors.New("content: not found")

// Course is one language pair's worth of content.
type Course struct {
	// ID is a unique identifier.
	ID string

	// Name is the course's display name.
	Name string

	// TargetLang is the language being learned (e.g., "en").
	TargetLang string

	// NativeLang is the learner's language (e.g., "sk").
	NativeLang string

	// Packs groups the course's chapters thematically, in display order.
	Packs []Pack
}

// Pack is a themed group of chapters within a course.
type Pack struct {
	// ID is a unique identifier.
	ID string

	// Name is the pack's display name.
	Name string

	// ImageURL is an optional cover image.
	ImageURL string

	// Chapters lists the pack's chapters in display order.
	Chapters []Chapter
}

// Chapter is the unit a drill runs over.
type Chapter struct {
	// ID is a unique identifier.
	ID string

	// Name is the chapter's display name.
	Name string

	// Order is the chapter's position within its pack.
	Order int
}

// Vocabulary is a single drillable item within a chapter.
type Vocabulary struct {
	// ID is a unique identifier.
	ID string

	// Word is the text in the target language.
	Word string

	// Translation is the text in the learner's language.
	Translation string

	// Pronunciation is an optional phonetic rendering shown as part of the
	// hint.
	Pronunciation string

	// Example is an optional example sentence in the target language.
	Example string

	// ExampleTranslation translates Example into the learner's language.
	ExampleTranslation string

	// ImageURL is an optional illustration.
	ImageURL string

	// Kind classifies the item; it controls hint layout in the host UI.
	Kind quiz.ItemKind

	// Order is the item's position within its chapter.
	Order int
}

// Store is the content backend. All implementations must be safe for
// concurrent use.
type Store interface {
	// Courses returns all courses with their pack and chapter structure,
	// without vocabulary.
	Courses(ctx context.Context) ([]Course, error)

	// Course returns one course by ID.
	// Returns [ErrNotFound] when no course with that ID exists.
	Course(ctx context.Context, id string) (Course, error)

	// Vocabulary returns a chapter's items ordered by their Order field.
	// Returns [ErrNotFound] when no chapter with that ID exists.
	Vocabulary(ctx context.Context, chapterID string) ([]Vocabulary, error)

	// Close releases the store's resources.
	Close()
}

// Items converts a chapter's vocabulary into drill items, preserving order.
func Items(vocab []Vocabulary) []quiz.Item {
	items := make([]quiz.Item, 0, len(vocab))
	for _, v := range vocab {
		items = append(items, quiz.Item{
			ID:                 v.ID,
			Prompt:             v.Word,
			Answer:             v.Translation,
			Pronunciation:      v.Pronunciation,
			Example:            v.Example,
			ExampleTranslation: v.ExampleTranslation,
			ImageURL:           v.ImageURL,
			Kind:               v.Kind,
		})
	}
	return items
}
