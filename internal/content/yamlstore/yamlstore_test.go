package yamlstore_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vocadrill/vocadrill/internal/content"
	"github.com/vocadrill/vocadrill/internal/content/yamlstore"
	"github.com/vocadrill/vocadrill/internal/quiz"
)

const courseYAML = `
course:
  name: "English for Beginners"
  target_lang: en
  native_lang: sk
packs:
  - name: "Animals"
    chapters:
      - name: "Pets"
        vocabulary:
          - word: dog
            translation: pes
            example: "The dog barks."
            example_translation: "Pes šteká."
          - word: cat
            translation: mačka
      - name: "Farm"
        vocabulary:
          - word: good morning
            translation: dobré ráno
            kind: phrase
`

func writeCourse(t *testing.T, dir, name, yaml string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(yaml), 0o644); err != nil {
		t.Fatalf("write course file: %v", err)
	}
}

func TestStoreLoadsCourses(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeCourse(t, dir, "english.yaml", courseYAML)

	s, err := yamlstore.New(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer s.Close()

	courses, err := s.Courses(context.Background())
	if err != nil {
		t.Fatalf("Courses: %v", err)
	}
	if len(courses) != 1 {
		t.Fatalf("got %d courses, want 1", len(courses))
	}
	c := courses[0]
	if c.Name != "English for Beginners" {
		t.Errorf("name = %q", c.Name)
	}
	if c.TargetLang != "en" || c.NativeLang != "sk" {
		t.Errorf("languages = %q/%q", c.TargetLang, c.NativeLang)
	}
	if len(c.Packs) != 1 || len(c.Packs[0].Chapters) != 2 {
		t.Fatalf("structure = %d packs / %d chapters", len(c.Packs), len(c.Packs[0].Chapters))
	}
	if c.Packs[0].Chapters[0].ID == "" {
		t.Error("chapter ID was not generated")
	}
}

func TestStoreVocabularyOrdered(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeCourse(t, dir, "english.yaml", courseYAML)

	s, err := yamlstore.New(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer s.Close()

	courses, _ := s.Courses(context.Background())
	chapterID := courses[0].Packs[0].Chapters[0].ID

	vocab, err := s.Vocabulary(context.Background(), chapterID)
	if err != nil {
		t.Fatalf("Vocabulary: %v", err)
	}
	if len(vocab) != 2 {
		t.Fatalf("got %d items, want 2", len(vocab))
	}
	if vocab[0].Word != "dog" || vocab[1].Word != "cat" {
		t.Errorf("order = %q, %q", vocab[0].Word, vocab[1].Word)
	}
	if vocab[0].Example != "The dog barks." {
		t.Errorf("example = %q", vocab[0].Example)
	}
	if vocab[0].Order != 0 || vocab[1].Order != 1 {
		t.Errorf("positions = %d, %d", vocab[0].Order, vocab[1].Order)
	}
}

func TestStoreKindParsing(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeCourse(t, dir, "english.yaml", courseYAML)

	s, err := yamlstore.New(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer s.Close()

	courses, _ := s.Courses(context.Background())
	farmID := courses[0].Packs[0].Chapters[1].ID

	vocab, err := s.Vocabulary(context.Background(), farmID)
	if err != nil {
		t.Fatalf("Vocabulary: %v", err)
	}
	if vocab[0].Kind != quiz.KindPhrase {
		t.Errorf("kind = %q, want PHRASE", vocab[0].Kind)
	}
}

func TestStoreUnknownChapter(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeCourse(t, dir, "english.yaml", courseYAML)

	s, err := yamlstore.New(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer s.Close()

	_, err = s.Vocabulary(context.Background(), "nope")
	if !errors.Is(err, content.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
	_, err = s.Course(context.Background(), "nope")
	if !errors.Is(err, content.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestStoreRejectsInvalidKind(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeCourse(t, dir, "bad.yaml", `
course:
  name: "Bad"
packs:
  - name: "P"
    chapters:
      - name: "C"
        vocabulary:
          - word: dog
            translation: pes
            kind: paragraph
`)

	_, err := yamlstore.New(dir)
	if err == nil {
		t.Fatal("expected error for invalid kind, got nil")
	}
	if !strings.Contains(err.Error(), "kind") {
		t.Errorf("error should mention kind, got: %v", err)
	}
}

func TestStoreRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeCourse(t, dir, "typo.yaml", `
course:
  name: "Typo"
  target_language: en
`)

	_, err := yamlstore.New(dir)
	if err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
}

func TestStoreIgnoresNonYAMLFiles(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeCourse(t, dir, "english.yaml", courseYAML)
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("# notes"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	s, err := yamlstore.New(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer s.Close()

	courses, _ := s.Courses(context.Background())
	if len(courses) != 1 {
		t.Errorf("got %d courses, want 1", len(courses))
	}
}
