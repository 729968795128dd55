// Package postgres provides a PostgreSQL-backed [content.Store].
//
// All operations share a single [pgxpool.Pool]. [Migrate] runs at
// construction and creates the content tables when they do not exist.
//
// Usage:
//
//	store, err := postgres.New(ctx, dsn)
//	if err != nil { … }
//	defer store.Close()
//
//	vocab, err := store.Vocabulary(ctx, chapterID)
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vocadrill/vocadrill/internal/content"
	"github.com/vocadrill/vocadrill/internal/quiz"
)

const ddlContent = `
CREATE TABLE IF NOT EXISTS courses (
    id           TEXT         PRIMARY KEY,
    name         TEXT         NOT NULL,
    target_lang  TEXT         NOT NULL,
    native_lang  TEXT         NOT NULL,
    created_at   TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS packs (
    id         TEXT     PRIMARY KEY,
    course_id  TEXT     NOT NULL REFERENCES courses (id) ON DELETE CASCADE,
    name       TEXT     NOT NULL,
    image_url  TEXT     NOT NULL DEFAULT '',
    position   INTEGER  NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_packs_course_id ON packs (course_id);

CREATE TABLE IF NOT EXISTS chapters (
    id        TEXT     PRIMARY KEY,
    pack_id   TEXT     NOT NULL REFERENCES packs (id) ON DELETE CASCADE,
    name      TEXT     NOT NULL,
    position  INTEGER  NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_chapters_pack_id ON chapters (pack_id);

CREATE TABLE IF NOT EXISTS vocabulary (
    id                   TEXT     PRIMARY KEY,
    chapter_id           TEXT     NOT NULL REFERENCES chapters (id) ON DELETE CASCADE,
    word                 TEXT     NOT NULL,
    translation          TEXT     NOT NULL,
    pronunciation        TEXT     NOT NULL DEFAULT '',
    example              TEXT     NOT NULL DEFAULT '',
    example_translation  TEXT     NOT NULL DEFAULT '',
    image_url            TEXT     NOT NULL DEFAULT '',
    kind                 TEXT     NOT NULL DEFAULT 'WORD',
    position             INTEGER  NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_vocabulary_chapter_id
    ON vocabulary (chapter_id, position);
`

// Store is the PostgreSQL-backed content store. All operations are safe for
// concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store, establishes a connection pool to the PostgreSQL
// database at dsn, and runs [Migrate] to ensure all required tables exist.
func New(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("content postgres: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("content postgres: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("content postgres: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("content postgres: migrate: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Migrate creates the content tables and indexes when they do not exist.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, ddlContent); err != nil {
		return fmt.Errorf("apply content schema: %w", err)
	}
	return nil
}

// Courses implements [content.Store]. It returns all courses with their
// pack and chapter structure, without vocabulary.
func (s *Store) Courses(ctx context.Context) ([]content.Course, error) {
	const q = `
		SELECT id, name, target_lang, native_lang
		FROM   courses
		ORDER  BY name`

	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("content postgres: list courses: %w", err)
	}
	courses, err := collectCourses(rows)
	if err != nil {
		return nil, fmt.Errorf("content postgres: list courses: %w", err)
	}

	for i := range courses {
		if err := s.loadStructure(ctx, &courses[i]); err != nil {
			return nil, err
		}
	}
	return courses, nil
}

// Course implements [content.Store].
func (s *Store) Course(ctx context.Context, id string) (content.Course, error) {
	const q = `
		SELECT id, name, target_lang, native_lang
		FROM   courses
		WHERE  id = $1`

	rows, err := s.pool.Query(ctx, q, id)
	if err != nil {
		return content.Course{}, fmt.Errorf("content postgres: get course: %w", err)
	}
	courses, err := collectCourses(rows)
	if err != nil {
		return content.Course{}, fmt.Errorf("content postgres: get course: %w", err)
	}
	if len(courses) == 0 {
		return content.Course{}, fmt.Errorf("course %q: %w", id, content.ErrNotFound)
	}

	course := courses[0]
	if err := s.loadStructure(ctx, &course); err != nil {
		return content.Course{}, err
	}
	return course, nil
}

// Vocabulary implements [content.Store]. Items come back ordered by their
// position within the chapter.
func (s *Store) Vocabulary(ctx context.Context, chapterID string) ([]content.Vocabulary, error) {
	const chapterExists = `SELECT 1 FROM chapters WHERE id = $1`
	var one int
	if err := s.pool.QueryRow(ctx, chapterExists, chapterID).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("chapter %q: %w", chapterID, content.ErrNotFound)
		}
		return nil, fmt.Errorf("content postgres: check chapter: %w", err)
	}

	const q = `
		SELECT id, word, translation, pronunciation, example,
		       example_translation, image_url, kind, position
		FROM   vocabulary
		WHERE  chapter_id = $1
		ORDER  BY position`

	rows, err := s.pool.Query(ctx, q, chapterID)
	if err != nil {
		return nil, fmt.Errorf("content postgres: list vocabulary: %w", err)
	}
	defer rows.Close()

	var vocab []content.Vocabulary
	for rows.Next() {
		var v content.Vocabulary
		var kind string
		if err := rows.Scan(&v.ID, &v.Word, &v.Translation, &v.Pronunciation,
			&v.Example, &v.ExampleTranslation, &v.ImageURL, &kind, &v.Order); err != nil {
			return nil, fmt.Errorf("content postgres: scan vocabulary: %w", err)
		}
		v.Kind = quiz.ItemKind(kind)
		vocab = append(vocab, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("content postgres: list vocabulary: %w", err)
	}
	return vocab, nil
}

// Close implements [content.Store]. It releases all connections held by the
// underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}

// loadStructure fills a course's packs and chapters.
func (s *Store) loadStructure(ctx context.Context, course *content.Course) error {
	const packsQ = `
		SELECT id, name, image_url
		FROM   packs
		WHERE  course_id = $1
		ORDER  BY position`

	rows, err := s.pool.Query(ctx, packsQ, course.ID)
	if err != nil {
		return fmt.Errorf("content postgres: list packs: %w", err)
	}
	defer rows.Close()

	course.Packs = nil
	for rows.Next() {
		var p content.Pack
		if err := rows.Scan(&p.ID, &p.Name, &p.ImageURL); err != nil {
			return fmt.Errorf("content postgres: scan pack: %w", err)
		}
		course.Packs = append(course.Packs, p)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("content postgres: list packs: %w", err)
	}

	const chaptersQ = `
		SELECT id, name, position
		FROM   chapters
		WHERE  pack_id = $1
		ORDER  BY position`

	for i := range course.Packs {
		crows, err := s.pool.Query(ctx, chaptersQ, course.Packs[i].ID)
		if err != nil {
			return fmt.Errorf("content postgres: list chapters: %w", err)
		}
		for crows.Next() {
			var c content.Chapter
			if err := crows.Scan(&c.ID, &c.Name, &c.Order); err != nil {
				crows.Close()
				return fmt.Errorf("content postgres: scan chapter: %w", err)
			}
			course.Packs[i].Chapters = append(course.Packs[i].Chapters, c)
		}
		cerr := crows.Err()
		crows.Close()
		if cerr != nil {
			return fmt.Errorf("content postgres: list chapters: %w", cerr)
		}
	}
	return nil
}

func collectCourses(rows pgx.Rows) ([]content.Course, error) {
	defer rows.Close()
	var courses []content.Course
	for rows.Next() {
		var c content.Course
		if err := rows.Scan(&c.ID, &c.Name, &c.TargetLang, &c.NativeLang); err != nil {
			return nil, fmt.Errorf("scan course: %w", err)
		}
		courses = append(courses, c)
	}
	return courses, rows.Err()
}

// Compile-time assertion that Store satisfies content.Store.
var _ content.Store = (*Store)(nil)
