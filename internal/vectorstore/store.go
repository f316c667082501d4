// Package vectorstore implements the dual-collection vector index behind
// course content search: a catalog collection (one entry per course, used
// only to resolve fuzzy course names to canonical titles) and a content
// collection (one entry per chunk, used for semantic passage retrieval).
// Concrete implementations (Qdrant, in-memory) satisfy the Store interface
// so the tool layer never depends on a specific backend.
package vectorstore

import (
	"context"
	"fmt"

	"github.com/54b3r/courseai-go/internal/docparse"
)

// DefaultMaxResults is the number of content results returned when the
// caller passes a non-positive limit.
const DefaultMaxResults = 5

// ResolveScoreThreshold is the minimum cosine similarity for a catalog match
// to count as "found" during fuzzy course-name resolution. Below this the
// store reports CourseNotFoundError rather than guessing.
const ResolveScoreThreshold float32 = 0.35

// Chunk is the atomic unit of semantic search: a bounded span of lesson text
// annotated with its origin. Chunks are derived and disposable; re-ingesting
// a course regenerates them.
type Chunk struct {
	// Text is the raw chunk text as returned to the generation service.
	Text string

	// CourseTitle is the back-reference to the owning course.
	CourseTitle string

	// LessonNumber is the back-reference to the owning lesson, nil when the
	// chunk is not attributable to a specific lesson.
	LessonNumber *int

	// ChunkIndex is the chunk's position within its lesson, monotonically
	// increasing from zero.
	ChunkIndex int
}

// EmbeddingText returns the text that is actually embedded for this chunk:
// the raw text prefixed with a contextual header naming the course and
// lesson. The prefix improves retrieval precision but is never part of the
// stored or returned chunk text.
func (c Chunk) EmbeddingText() string {
	if c.LessonNumber != nil {
		return fmt.Sprintf("%s Lesson %d content: %s", c.CourseTitle, *c.LessonNumber, c.Text)
	}
	return fmt.Sprintf("%s content: %s", c.CourseTitle, c.Text)
}

// SourceRef is the attribution pointer attached to each search result and
// surfaced to the end user. It lives for one query turn only.
type SourceRef struct {
	// CourseTitle is the canonical title of the matched course.
	CourseTitle string `json:"course_title"`

	// LessonNumber is the matched lesson, when the chunk belongs to one.
	LessonNumber *int `json:"lesson_number,omitempty"`

	// Link is the lesson URL when known, otherwise the course URL.
	Link string `json:"link,omitempty"`
}

// SearchResult is one ranked content match.
type SearchResult struct {
	// Content is the raw chunk text.
	Content string

	// Source is the attribution for this chunk.
	Source SourceRef

	// Score is the cosine similarity of the match (higher is closer).
	Score float32
}

// Stats summarises the catalog collection.
type Stats struct {
	// CourseCount is the number of courses in the catalog.
	CourseCount int `json:"total_courses"`

	// CourseTitles lists every canonical course title.
	CourseTitles []string `json:"course_titles"`
}

// CourseNotFoundError reports that a course-name filter did not resolve to
// any known course. It is a structured no-match signal, distinguishable from
// an empty result set for a valid course.
type CourseNotFoundError struct {
	// Name is the unresolved course name as given by the caller.
	Name string
}

// Error implements the error interface.
func (e *CourseNotFoundError) Error() string {
	return fmt.Sprintf("vectorstore: no course found matching %q", e.Name)
}

// Embedder converts text into dense vector embeddings. Implementations must
// be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Store is the dual-collection vector index. Implementations must be safe
// for concurrent reads; writes to the same course title are serialized.
type Store interface {
	// AddCourse upserts the course's catalog entry and all of its chunk
	// embeddings as one logical unit. Re-adding an existing title replaces
	// every prior entry for that title (no duplicates, no stale chunks).
	AddCourse(ctx context.Context, course *docparse.Course, chunks []Chunk) error

	// ResolveCourse fuzzy-matches name against the catalog and returns the
	// canonical title of the closest course, or a *CourseNotFoundError when
	// the best match falls below ResolveScoreThreshold.
	ResolveCourse(ctx context.Context, name string) (string, error)

	// Search embeds query and returns up to limit content matches in
	// descending similarity order. A non-empty courseName is pre-resolved
	// through ResolveCourse and restricts results to that exact course; a
	// non-nil lessonNumber restricts to that exact lesson. An unresolvable
	// courseName surfaces the *CourseNotFoundError.
	Search(ctx context.Context, query, courseName string, lessonNumber *int, limit int) ([]SearchResult, error)

	// Stats reports course count and titles, derived from the catalog.
	Stats(ctx context.Context) (*Stats, error)

	// ClearAll removes every entry from both collections.
	ClearAll(ctx context.Context) error

	// Close releases any resources held by the store.
	Close() error
}

// catalogText builds the text embedded for a course's catalog entry.
// Including the instructor helps resolve queries like "the Smith course".
func catalogText(course *docparse.Course) string {
	if course.Instructor == "" {
		return course.Title
	}
	return course.Title + " by " + course.Instructor
}

// chunkLink resolves the attribution link for a chunk: the lesson link when
// the lesson declares one, else the course link.
func chunkLink(course *docparse.Course, ch Chunk) string {
	if ch.LessonNumber != nil {
		if l := course.Lesson(*ch.LessonNumber); l != nil && l.Link != "" {
			return l.Link
		}
	}
	return course.Link
}
