// Package store provides a SQLite-backed catalog of course metadata: titles,
// instructors, links, and per-lesson outlines. The vector index answers
// "which passage is relevant"; this store answers exact structural questions
// (what lessons does course X have, what is lesson 4 called) without an
// embedding round-trip, and survives restarts.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver

	"github.com/54b3r/courseai-go/internal/docparse"
)

// ErrNotFound is returned when a course title has no catalog row. Titles are
// exact here; fuzzy name resolution happens in the vector store before lookup.
var ErrNotFound = errors.New("store: course not found")

// CatalogStore persists and retrieves course metadata keyed by canonical
// title. Implementations must be safe for concurrent use.
type CatalogStore interface {
	// UpsertCourse replaces the course's metadata and lesson outline in one
	// transaction. Re-upserting a title never leaves stale lessons behind.
	UpsertCourse(ctx context.Context, course *docparse.Course) error
	// Course returns the course with its ordered lesson outline, or
	// ErrNotFound. Lesson bodies are not stored and come back empty.
	Course(ctx context.Context, title string) (*docparse.Course, error)
	// Titles returns every stored course title in sorted order.
	Titles(ctx context.Context) ([]string, error)
	// DeleteAll removes every course and lesson row.
	DeleteAll(ctx context.Context) error
	// Close releases any resources held by the store.
	Close() error
}

// SQLiteStore is a CatalogStore backed by a local SQLite database.
type SQLiteStore struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// DefaultDBPath returns the default path for the catalog database.
// It resolves to ~/.courseai/catalog.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("store: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".courseai")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("store: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "catalog.db"), nil
}

// Open opens (or creates) a SQLiteStore at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteStore, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS courses (
    title        TEXT    PRIMARY KEY,
    instructor   TEXT    NOT NULL DEFAULT '',
    link         TEXT    NOT NULL DEFAULT '',
    ingested_at  INTEGER NOT NULL  -- Unix timestamp (seconds)
);
CREATE TABLE IF NOT EXISTS lessons (
    course_title TEXT    NOT NULL REFERENCES courses(title) ON DELETE CASCADE,
    number       INTEGER NOT NULL,
    title        TEXT    NOT NULL DEFAULT '',
    link         TEXT    NOT NULL DEFAULT '',
    PRIMARY KEY (course_title, number)
);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// UpsertCourse replaces the course row and its lessons transactionally.
func (s *SQLiteStore) UpsertCourse(ctx context.Context, course *docparse.Course) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin upsert: %w", err)
	}
	defer tx.Rollback()

	const courseQ = `
INSERT INTO courses (title, instructor, link, ingested_at) VALUES (?, ?, ?, ?)
ON CONFLICT(title) DO UPDATE SET instructor = excluded.instructor,
                                 link = excluded.link,
                                 ingested_at = excluded.ingested_at`
	if _, err := tx.ExecContext(ctx, courseQ, course.Title, course.Instructor, course.Link, time.Now().Unix()); err != nil {
		return fmt.Errorf("store: upsert course %q: %w", course.Title, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM lessons WHERE course_title = ?`, course.Title); err != nil {
		return fmt.Errorf("store: clear lessons for %q: %w", course.Title, err)
	}

	const lessonQ = `INSERT INTO lessons (course_title, number, title, link) VALUES (?, ?, ?, ?)`
	for _, l := range course.Lessons {
		if _, err := tx.ExecContext(ctx, lessonQ, course.Title, l.Number, l.Title, l.Link); err != nil {
			return fmt.Errorf("store: insert lesson %d of %q: %w", l.Number, course.Title, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit upsert: %w", err)
	}
	return nil
}

// Course returns the stored course and its ordered lesson outline.
func (s *SQLiteStore) Course(ctx context.Context, title string) (*docparse.Course, error) {
	course := &docparse.Course{Title: title}

	const courseQ = `SELECT instructor, link FROM courses WHERE title = ?`
	err := s.db.QueryRowContext(ctx, courseQ, title).Scan(&course.Instructor, &course.Link)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, title)
	}
	if err != nil {
		return nil, fmt.Errorf("store: load course %q: %w", title, err)
	}

	const lessonQ = `SELECT number, title, link FROM lessons WHERE course_title = ? ORDER BY number ASC`
	rows, err := s.db.QueryContext(ctx, lessonQ, title)
	if err != nil {
		return nil, fmt.Errorf("store: load lessons for %q: %w", title, err)
	}
	defer rows.Close()

	for rows.Next() {
		var l docparse.Lesson
		if err := rows.Scan(&l.Number, &l.Title, &l.Link); err != nil {
			return nil, fmt.Errorf("store: scan lesson: %w", err)
		}
		course.Lessons = append(course.Lessons, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: lesson rows: %w", err)
	}
	return course, nil
}

// Titles returns every stored course title, sorted.
func (s *SQLiteStore) Titles(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT title FROM courses ORDER BY title ASC`)
	if err != nil {
		return nil, fmt.Errorf("store: titles: %w", err)
	}
	defer rows.Close()

	var titles []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("store: titles scan: %w", err)
		}
		titles = append(titles, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: titles rows: %w", err)
	}
	return titles, nil
}

// DeleteAll removes every course and lesson row.
func (s *SQLiteStore) DeleteAll(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM lessons`); err != nil {
		return fmt.Errorf("store: delete lessons: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM courses`); err != nil {
		return fmt.Errorf("store: delete courses: %w", err)
	}
	return nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}
