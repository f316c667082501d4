package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/54b3r/courseai-go/internal/docparse"
)

// MemoryStore is an in-process Store using brute-force cosine similarity.
// It backs unit tests and the zero-dependency local mode; production
// deployments use QdrantStore.
type MemoryStore struct {
	// embedder converts catalog and content text into vectors.
	embedder Embedder

	// mu guards both collections. Writes take the full lock, which also
	// serializes concurrent re-ingestion of the same course title.
	mu sync.RWMutex

	// catalog maps canonical course title to its catalog entry.
	catalog map[string]*catalogEntry

	// content holds every chunk entry across all courses.
	content []contentEntry
}

// catalogEntry is one course in the catalog collection.
type catalogEntry struct {
	title      string
	instructor string
	link       string
	vector     []float32
}

// contentEntry is one chunk in the content collection.
type contentEntry struct {
	chunk  Chunk
	link   string
	vector []float32
}

// NewMemoryStore constructs a MemoryStore over the given embedder.
func NewMemoryStore(embedder Embedder) *MemoryStore {
	return &MemoryStore{
		embedder: embedder,
		catalog:  make(map[string]*catalogEntry),
	}
}

// AddCourse upserts the course's catalog entry and chunk embeddings.
// Embeddings are computed outside the lock; only the swap is locked, so
// reads during ingestion of a different course are never blocked on I/O.
func (s *MemoryStore) AddCourse(ctx context.Context, course *docparse.Course, chunks []Chunk) error {
	texts := make([]string, 0, len(chunks)+1)
	texts = append(texts, catalogText(course))
	for _, ch := range chunks {
		texts = append(texts, ch.EmbeddingText())
	}

	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("memory store: embedding course %q failed: %w", course.Title, err)
	}
	if len(vectors) != len(texts) {
		return fmt.Errorf("memory store: expected %d embeddings, got %d", len(texts), len(vectors))
	}

	entries := make([]contentEntry, 0, len(chunks))
	for i, ch := range chunks {
		entries = append(entries, contentEntry{
			chunk:  ch,
			link:   chunkLink(course, ch),
			vector: vectors[i+1],
		})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Replace semantics: drop every prior entry for this title first.
	s.removeCourseLocked(course.Title)

	s.catalog[course.Title] = &catalogEntry{
		title:      course.Title,
		instructor: course.Instructor,
		link:       course.Link,
		vector:     vectors[0],
	}
	s.content = append(s.content, entries...)

	return nil
}

// removeCourseLocked drops the catalog entry and all content entries for
// title. Caller must hold the write lock.
func (s *MemoryStore) removeCourseLocked(title string) {
	delete(s.catalog, title)
	kept := s.content[:0]
	for _, e := range s.content {
		if e.chunk.CourseTitle != title {
			kept = append(kept, e)
		}
	}
	s.content = kept
}

// ResolveCourse returns the canonical title of the catalog entry closest to
// name, or a *CourseNotFoundError when the best cosine similarity falls
// below ResolveScoreThreshold.
func (s *MemoryStore) ResolveCourse(ctx context.Context, name string) (string, error) {
	vectors, err := s.embedder.Embed(ctx, []string{name})
	if err != nil {
		return "", fmt.Errorf("memory store: embedding course name failed: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	best := ""
	var bestScore float32 = -1
	for title, entry := range s.catalog {
		score := cosine(vectors[0], entry.vector)
		if score > bestScore {
			best, bestScore = title, score
		}
	}

	if best == "" || bestScore < ResolveScoreThreshold {
		return "", &CourseNotFoundError{Name: name}
	}
	return best, nil
}

// Search embeds query and returns the top matches from the content
// collection, optionally restricted to a resolved course title and lesson.
func (s *MemoryStore) Search(ctx context.Context, query, courseName string, lessonNumber *int, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = DefaultMaxResults
	}

	courseFilter := ""
	if courseName != "" {
		resolved, err := s.ResolveCourse(ctx, courseName)
		if err != nil {
			return nil, err
		}
		courseFilter = resolved
	}

	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("memory store: embedding query failed: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	type scored struct {
		entry contentEntry
		score float32
	}
	var matches []scored
	for _, e := range s.content {
		if courseFilter != "" && e.chunk.CourseTitle != courseFilter {
			continue
		}
		if lessonNumber != nil && (e.chunk.LessonNumber == nil || *e.chunk.LessonNumber != *lessonNumber) {
			continue
		}
		matches = append(matches, scored{entry: e, score: cosine(vectors[0], e.vector)})
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].score > matches[j].score })
	if len(matches) > limit {
		matches = matches[:limit]
	}

	results := make([]SearchResult, 0, len(matches))
	for _, m := range matches {
		results = append(results, SearchResult{
			Content: m.entry.chunk.Text,
			Score:   m.score,
			Source: SourceRef{
				CourseTitle:  m.entry.chunk.CourseTitle,
				LessonNumber: m.entry.chunk.LessonNumber,
				Link:         m.entry.link,
			},
		})
	}
	return results, nil
}

// Stats reports course count and titles from the catalog collection.
func (s *MemoryStore) Stats(ctx context.Context) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	titles := make([]string, 0, len(s.catalog))
	for title := range s.catalog {
		titles = append(titles, title)
	}
	sort.Strings(titles)

	return &Stats{CourseCount: len(titles), CourseTitles: titles}, nil
}

// ClearAll removes every entry from both collections.
func (s *MemoryStore) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.catalog = make(map[string]*catalogEntry)
	s.content = nil
	return nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }

// cosine returns the cosine similarity of a and b. Mismatched lengths are
// compared over the shorter prefix; zero vectors score zero.
func cosine(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
