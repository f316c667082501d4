package vectorstore

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/54b3r/courseai-go/internal/docparse"
)

// QdrantConfig holds connection parameters for a Qdrant-backed store.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// CollectionPrefix names the two collections: "<prefix>_catalog" and
	// "<prefix>_content" (default: courseai).
	CollectionPrefix string

	// VectorSize is the dimensionality of the embeddings in both collections.
	VectorSize uint64

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantStore implements Store backed by a Qdrant instance, holding the
// catalog and content collections side by side.
type QdrantStore struct {
	client   *qdrant.Client
	embedder Embedder
	cfg      *QdrantConfig
}

// NewQdrantStore creates a QdrantStore, ensuring both collections exist
// (creating them if necessary), and returns a ready-to-use Store.
func NewQdrantStore(ctx context.Context, cfg *QdrantConfig, embedder Embedder) (*QdrantStore, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if cfg.CollectionPrefix == "" {
		cfg.CollectionPrefix = "courseai"
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	store := &QdrantStore{client: client, embedder: embedder, cfg: cfg}
	if err := store.ensureCollections(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *QdrantStore) catalogCollection() string { return s.cfg.CollectionPrefix + "_catalog" }
func (s *QdrantStore) contentCollection() string { return s.cfg.CollectionPrefix + "_content" }

// ensureCollections creates either collection if it does not already exist.
func (s *QdrantStore) ensureCollections(ctx context.Context) error {
	for _, name := range []string{s.catalogCollection(), s.contentCollection()} {
		exists, err := s.client.CollectionExists(ctx, name)
		if err != nil {
			return fmt.Errorf("qdrant: failed to check collection existence: %w", err)
		}
		if exists {
			continue
		}

		err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: name,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     s.cfg.VectorSize,
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("qdrant: failed to create collection %q: %w", name, err)
		}
	}
	return nil
}

// catalogPointID derives a stable point ID from the course title so that
// re-ingesting a course overwrites its catalog entry in place.
func catalogPointID(title string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("catalog:"+title)).String()
}

// contentPointID derives a stable point ID from the chunk's origin.
func contentPointID(ch Chunk) string {
	lesson := -1
	if ch.LessonNumber != nil {
		lesson = *ch.LessonNumber
	}
	key := fmt.Sprintf("content:%s:%d:%d", ch.CourseTitle, lesson, ch.ChunkIndex)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String()
}

// AddCourse upserts the course's catalog point and content points. Prior
// content for the same title is deleted first so a re-ingest with fewer
// chunks leaves no stale points behind.
func (s *QdrantStore) AddCourse(ctx context.Context, course *docparse.Course, chunks []Chunk) error {
	texts := make([]string, 0, len(chunks)+1)
	texts = append(texts, catalogText(course))
	for _, ch := range chunks {
		texts = append(texts, ch.EmbeddingText())
	}

	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("qdrant: embedding course %q failed: %w", course.Title, err)
	}
	if len(vectors) != len(texts) {
		return fmt.Errorf("qdrant: expected %d embeddings, got %d", len(texts), len(vectors))
	}

	_, err = s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.contentCollection(),
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch("course_title", course.Title)},
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to clear prior chunks for %q: %w", course.Title, err)
	}

	catalogPoint := &qdrant.PointStruct{
		Id:      qdrant.NewIDUUID(catalogPointID(course.Title)),
		Vectors: qdrant.NewVectors(vectors[0]...),
		Payload: qdrant.NewValueMap(map[string]interface{}{
			"title":      course.Title,
			"instructor": course.Instructor,
			"link":       course.Link,
		}),
	}
	_, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.catalogCollection(),
		Points:         []*qdrant.PointStruct{catalogPoint},
	})
	if err != nil {
		return fmt.Errorf("qdrant: catalog upsert failed: %w", err)
	}

	if len(chunks) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, 0, len(chunks))
	for i, ch := range chunks {
		payload := map[string]interface{}{
			"content":      ch.Text,
			"course_title": ch.CourseTitle,
			"chunk_index":  ch.ChunkIndex,
			"link":         chunkLink(course, ch),
		}
		if ch.LessonNumber != nil {
			payload["lesson_number"] = *ch.LessonNumber
		}
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(contentPointID(ch)),
			Vectors: qdrant.NewVectors(vectors[i+1]...),
			Payload: qdrant.NewValueMap(payload),
		})
	}

	_, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.contentCollection(),
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant: content upsert failed: %w", err)
	}

	return nil
}

// ResolveCourse queries the catalog collection for the single closest entry
// and returns its canonical title when the match clears the threshold.
func (s *QdrantStore) ResolveCourse(ctx context.Context, name string) (string, error) {
	vectors, err := s.embedder.Embed(ctx, []string{name})
	if err != nil {
		return "", fmt.Errorf("qdrant: embedding course name failed: %w", err)
	}

	limit := uint64(1)
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.catalogCollection(),
		Query:          qdrant.NewQuery(vectors[0]...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return "", fmt.Errorf("qdrant: catalog query failed: %w", err)
	}

	if len(results) == 0 || results[0].Score < ResolveScoreThreshold {
		return "", &CourseNotFoundError{Name: name}
	}
	title := ""
	if p := results[0].Payload; p != nil {
		if v, ok := p["title"]; ok {
			title = v.GetStringValue()
		}
	}
	if title == "" {
		return "", &CourseNotFoundError{Name: name}
	}
	return title, nil
}

// Search embeds query and runs a filtered similarity query against the
// content collection.
func (s *QdrantStore) Search(ctx context.Context, query, courseName string, lessonNumber *int, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = DefaultMaxResults
	}

	var conditions []*qdrant.Condition
	if courseName != "" {
		resolved, err := s.ResolveCourse(ctx, courseName)
		if err != nil {
			return nil, err
		}
		conditions = append(conditions, qdrant.NewMatch("course_title", resolved))
	}
	if lessonNumber != nil {
		conditions = append(conditions, qdrant.NewMatchInt("lesson_number", int64(*lessonNumber)))
	}

	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("qdrant: embedding query failed: %w", err)
	}

	queryPoints := &qdrant.QueryPoints{
		CollectionName: s.contentCollection(),
		Query:          qdrant.NewQuery(vectors[0]...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if len(conditions) > 0 {
		queryPoints.Filter = &qdrant.Filter{Must: conditions}
	}

	results, err := s.client.Query(ctx, queryPoints)
	if err != nil {
		return nil, fmt.Errorf("qdrant: content query failed: %w", err)
	}

	out := make([]SearchResult, 0, len(results))
	for _, r := range results {
		sr := SearchResult{Score: r.Score}
		if p := r.Payload; p != nil {
			if v, ok := p["content"]; ok {
				sr.Content = v.GetStringValue()
			}
			if v, ok := p["course_title"]; ok {
				sr.Source.CourseTitle = v.GetStringValue()
			}
			if v, ok := p["link"]; ok {
				sr.Source.Link = v.GetStringValue()
			}
			if v, ok := p["lesson_number"]; ok {
				n := int(v.GetIntegerValue())
				sr.Source.LessonNumber = &n
			}
		}
		out = append(out, sr)
	}

	return out, nil
}

// Stats scrolls the catalog collection and reports course count and titles.
func (s *QdrantStore) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{CourseTitles: []string{}}

	seen := make(map[string]bool)
	var offset *qdrant.PointId
	for {
		points, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: s.catalogCollection(),
			Limit:          qdrant.PtrOf(uint32(256)),
			Offset:         offset,
			WithPayload:    qdrant.NewWithPayload(true),
		})
		if err != nil {
			return nil, fmt.Errorf("qdrant: catalog scroll failed: %w", err)
		}
		if len(points) == 0 {
			break
		}
		stats.CourseTitles = appendCatalogTitles(stats.CourseTitles, seen, points)
		if len(points) < 256 {
			break
		}
		offset = points[len(points)-1].Id
	}

	sort.Strings(stats.CourseTitles)
	stats.CourseCount = len(stats.CourseTitles)
	return stats, nil
}

// appendCatalogTitles collects the title payload of each scrolled catalog
// point, skipping points already seen. The scroll offset is inclusive, so
// the last point of one page reappears as the first point of the next; seen
// keys on point ID to drop that duplicate.
func appendCatalogTitles(titles []string, seen map[string]bool, points []*qdrant.RetrievedPoint) []string {
	for _, p := range points {
		id := p.GetId().String()
		if seen[id] {
			continue
		}
		seen[id] = true
		if v, ok := p.Payload["title"]; ok {
			titles = append(titles, v.GetStringValue())
		}
	}
	return titles
}

// ClearAll deletes both collections and recreates them empty.
func (s *QdrantStore) ClearAll(ctx context.Context) error {
	for _, name := range []string{s.catalogCollection(), s.contentCollection()} {
		if err := s.client.DeleteCollection(ctx, name); err != nil {
			return fmt.Errorf("qdrant: failed to delete collection %q: %w", name, err)
		}
	}
	return s.ensureCollections(ctx)
}

// HealthCheck verifies the Qdrant instance is reachable.
func (s *QdrantStore) HealthCheck(ctx context.Context) error {
	if _, err := s.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("qdrant: health check failed: %w", err)
	}
	return nil
}

// Close closes the underlying Qdrant gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}
