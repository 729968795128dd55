// Package yamlstore provides a file-based [content.Store] for offline and
// development use. Each YAML file in the configured directory holds one
// course; everything is loaded into memory at construction.
package yamlstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/vocadrill/vocadrill/internal/content"
	"github.com/vocadrill/vocadrill/internal/quiz"
)

// CourseFile is the top-level structure of a vocadrill course YAML file.
//
// Example:
//
//	course:
//	  name: "English for Beginners"
//	  target_lang: en
//	  native_lang: sk
//	packs:
//	  - name: "Animals"
//	    chapters:
//	      - name: "Pets"
//	        vocabulary:
//	          - word: dog
//	            translation: pes
type CourseFile struct {
	Course CourseMeta `yaml:"course"`
	Packs  []PackDef  `yaml:"packs"`
}

// CourseMeta holds top-level metadata for a course.
type CourseMeta struct {
	ID         string `yaml:"id"`
	Name       string `yaml:"name"`
	TargetLang string `yaml:"target_lang"`
	NativeLang string `yaml:"native_lang"`
}

// PackDef declares one pack and its chapters.
type PackDef struct {
	ID       string       `yaml:"id"`
	Name     string       `yaml:"name"`
	ImageURL string       `yaml:"image_url"`
	Chapters []ChapterDef `yaml:"chapters"`
}

// ChapterDef declares one chapter and its vocabulary.
type ChapterDef struct {
	ID         string          `yaml:"id"`
	Name       string          `yaml:"name"`
	Vocabulary []VocabularyDef `yaml:"vocabulary"`
}

// VocabularyDef declares a single drillable item.
type VocabularyDef struct {
	ID                 string `yaml:"id"`
	Word               string `yaml:"word"`
	Translation        string `yaml:"translation"`
	Pronunciation      string `yaml:"pronunciation"`
	Example            string `yaml:"example"`
	ExampleTranslation string `yaml:"example_translation"`
	ImageURL           string `yaml:"image_url"`
	Kind               string `yaml:"kind"`
}

// Store is an in-memory [content.Store] loaded from YAML course files.
type Store struct {
	mu       sync.RWMutex
	courses  []content.Course
	vocab    map[string][]content.Vocabulary
	chapters map[string]struct{}
}

// New loads every *.yaml and *.yml file under dir as a course file.
func New(dir string) (*Store, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("yamlstore: read dir %q: %w", dir, err)
	}

	s := &Store{
		vocab:    make(map[string][]content.Vocabulary),
		chapters: make(map[string]struct{}),
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		path := filepath.Join(dir, e.Name())
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("yamlstore: open %q: %w", path, err)
		}
		cf, err := LoadCourseFromReader(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("yamlstore: parse %q: %w", path, err)
		}
		if err := s.add(cf); err != nil {
			return nil, fmt.Errorf("yamlstore: import %q: %w", path, err)
		}
	}

	sort.Slice(s.courses, func(i, j int) bool { return s.courses[i].Name < s.courses[j].Name })
	return s, nil
}

// LoadCourseFromReader parses course YAML from an [io.Reader].
// The reader is consumed entirely; the caller is responsible for closing it.
func LoadCourseFromReader(r io.Reader) (*CourseFile, error) {
	var cf CourseFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true) // reject unknown keys to catch typos
	if err := dec.Decode(&cf); err != nil {
		return nil, fmt.Errorf("decode course yaml: %w", err)
	}
	return &cf, nil
}

// add converts a parsed course file into the store's runtime model,
// generating slug IDs where the file leaves them empty.
func (s *Store) add(cf *CourseFile) error {
	if cf.Course.Name == "" {
		return fmt.Errorf("course.name is required")
	}

	course := content.Course{
		ID:         idOr(cf.Course.ID, slug(cf.Course.Name)),
		Name:       cf.Course.Name,
		TargetLang: cf.Course.TargetLang,
		NativeLang: cf.Course.NativeLang,
	}

	for pi, p := range cf.Packs {
		pack := content.Pack{
			ID:       idOr(p.ID, fmt.Sprintf("%s/%s", course.ID, slug(p.Name))),
			Name:     p.Name,
			ImageURL: p.ImageURL,
		}
		for ci, ch := range p.Chapters {
			chapterID := idOr(ch.ID, fmt.Sprintf("%s/%s", pack.ID, slug(ch.Name)))
			if _, dup := s.chapters[chapterID]; dup {
				return fmt.Errorf("duplicate chapter id %q (packs[%d].chapters[%d])", chapterID, pi, ci)
			}
			s.chapters[chapterID] = struct{}{}
			pack.Chapters = append(pack.Chapters, content.Chapter{
				ID:    chapterID,
				Name:  ch.Name,
				Order: ci,
			})

			vocab := make([]content.Vocabulary, 0, len(ch.Vocabulary))
			for vi, v := range ch.Vocabulary {
				kind, err := parseKind(v.Kind)
				if err != nil {
					return fmt.Errorf("chapter %q vocabulary[%d]: %w", chapterID, vi, err)
				}
				vocab = append(vocab, content.Vocabulary{
					ID:                 idOr(v.ID, fmt.Sprintf("%s/%d", chapterID, vi)),
					Word:               v.Word,
					Translation:        v.Translation,
					Pronunciation:      v.Pronunciation,
					Example:            v.Example,
					ExampleTranslation: v.ExampleTranslation,
					ImageURL:           v.ImageURL,
					Kind:               kind,
					Order:              vi,
				})
			}
			s.vocab[chapterID] = vocab
		}
		course.Packs = append(course.Packs, pack)
	}

	s.courses = append(s.courses, course)
	return nil
}

// Courses implements [content.Store].
func (s *Store) Courses(_ context.Context) ([]content.Course, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]content.Course, len(s.courses))
	copy(out, s.courses)
	return out, nil
}

// Course implements [content.Store].
func (s *Store) Course(_ context.Context, id string) (content.Course, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.courses {
		if c.ID == id {
			return c, nil
		}
	}
	return content.Course{}, fmt.Errorf("course %q: %w", id, content.ErrNotFound)
}

// Vocabulary implements [content.Store].
func (s *Store) Vocabulary(_ context.Context, chapterID string) ([]content.Vocabulary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.chapters[chapterID]; !ok {
		return nil, fmt.Errorf("chapter %q: %w", chapterID, content.ErrNotFound)
	}
	vocab := s.vocab[chapterID]
	out := make([]content.Vocabulary, len(vocab))
	copy(out, vocab)
	return out, nil
}

// Close implements [content.Store]. A no-op for the in-memory store.
func (s *Store) Close() {}

func idOr(id, generated string) string {
	if id != "" {
		return id
	}
	return generated
}

func slug(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "-")
}

// parseKind maps the YAML kind field onto [quiz.ItemKind]. An empty value
// means a plain word.
func parseKind(kind string) (quiz.ItemKind, error) {
	switch strings.ToLower(kind) {
	case "", "word":
		return quiz.KindWord, nil
	case "phrase":
		return quiz.KindPhrase, nil
	case "sentence":
		return quiz.KindSentence, nil
	}
	return quiz.KindWord, fmt.Errorf("kind %q is invalid; valid values: word, phrase, sentence", kind)
}

// Compile-time assertion that Store satisfies content.Store.
var _ content.Store = (*Store)(nil)
