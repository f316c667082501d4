// Package ingestion implements the course document ingestion pipeline.
// It reads transcript files from a directory, parses each into a structured
// course, chunks the lesson text, and upserts the results into the metadata
// catalog and the vector index. This pipeline is invoked by the
// `courseai ingest` CLI command and by the server at startup.
package ingestion

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/54b3r/courseai-go/internal/chunker"
	"github.com/54b3r/courseai-go/internal/docparse"
	"github.com/54b3r/courseai-go/internal/store"
	"github.com/54b3r/courseai-go/internal/vectorstore"
)

// documentExtensions lists the file extensions treated as course documents.
var documentExtensions = map[string]bool{
	".txt": true,
	".md":  true,
}

// Config holds the configuration for the ingestion pipeline.
type Config struct {
	// ChunkSize is the maximum number of characters per content chunk.
	// Defaults to chunker.DefaultChunkSize if zero.
	ChunkSize int

	// ChunkOverlap is the number of characters repeated between consecutive
	// chunks. Defaults to chunker.DefaultOverlap if negative or zero.
	ChunkOverlap int

	// SkipExisting skips documents whose course title is already in the
	// catalog instead of re-ingesting them. Used at server startup so
	// restarts do not re-embed the whole corpus.
	SkipExisting bool
}

// Report summarises one ingestion run.
type Report struct {
	// CoursesAdded is the number of courses (re)ingested.
	CoursesAdded int

	// ChunksAdded is the total number of content chunks indexed.
	ChunksAdded int

	// SkippedExisting counts documents skipped because the title was
	// already in the catalog.
	SkippedExisting int

	// Failed maps file path to the error that made the document unusable.
	// Failures are per-document and never abort the run.
	Failed map[string]error
}

// Pipeline orchestrates the parse → chunk → upsert flow for course documents.
type Pipeline struct {
	vectors vectorstore.Store
	catalog store.CatalogStore
	chunks  *chunker.Chunker
	cfg     *Config
}

// NewPipeline constructs a Pipeline from the provided dependencies and config.
func NewPipeline(vectors vectorstore.Store, catalog store.CatalogStore, cfg *Config) (*Pipeline, error) {
	if vectors == nil {
		return nil, fmt.Errorf("ingestion: vector store must not be nil")
	}
	if catalog == nil {
		return nil, fmt.Errorf("ingestion: catalog store must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}

	return &Pipeline{
		vectors: vectors,
		catalog: catalog,
		chunks:  chunker.New(cfg.ChunkSize, cfg.ChunkOverlap),
		cfg:     cfg,
	}, nil
}

// IngestDir ingests every recognised document directly under dir, in sorted
// filename order so runs are reproducible. A malformed document is recorded
// in the report and skipped; the run continues. Progress is reported via the
// optional progress callback.
func (p *Pipeline) IngestDir(ctx context.Context, dir string, progress func(msg string)) (*Report, error) {
	if progress == nil {
		progress = func(string) {}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("ingestion: reading %s: %w", dir, err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !documentExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)

	existing := map[string]bool{}
	if p.cfg.SkipExisting {
		titles, err := p.catalog.Titles(ctx)
		if err != nil {
			return nil, fmt.Errorf("ingestion: loading existing titles: %w", err)
		}
		for _, t := range titles {
			existing[t] = true
		}
	}

	report := &Report{Failed: map[string]error{}}
	for _, path := range paths {
		progress(fmt.Sprintf("ingesting %s", filepath.Base(path)))

		course, n, err := p.ingestFile(ctx, path, existing)
		if err != nil {
			report.Failed[path] = err
			progress(fmt.Sprintf("skipped %s: %v", filepath.Base(path), err))
			continue
		}
		if course == nil {
			report.SkippedExisting++
			continue
		}

		report.CoursesAdded++
		report.ChunksAdded += n
		progress(fmt.Sprintf("ingested %q: %d lessons, %d chunks", course.Title, len(course.Lessons), n))
	}

	return report, nil
}

// IngestFile ingests a single document and returns the parsed course and the
// number of chunks indexed.
func (p *Pipeline) IngestFile(ctx context.Context, path string) (*docparse.Course, int, error) {
	return p.ingestFile(ctx, path, nil)
}

// ingestFile parses, chunks, and stores one document. A nil course with nil
// error means the document was skipped because its title already exists.
func (p *Pipeline) ingestFile(ctx context.Context, path string, existing map[string]bool) (*docparse.Course, int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("reading document: %w", err)
	}

	course, err := docparse.Parse(string(raw))
	if err != nil {
		return nil, 0, err
	}

	if existing != nil && existing[course.Title] {
		return nil, 0, nil
	}

	chunks := p.chunks.ChunkCourse(course)

	// Catalog first: the outline tool reads from it, and a vector upsert
	// without metadata is worse than the reverse.
	if err := p.catalog.UpsertCourse(ctx, course); err != nil {
		return nil, 0, err
	}
	if err := p.vectors.AddCourse(ctx, course, chunks); err != nil {
		return nil, 0, err
	}

	return course, len(chunks), nil
}

// ClearAll wipes both the vector index and the metadata catalog.
func (p *Pipeline) ClearAll(ctx context.Context) error {
	if err := p.vectors.ClearAll(ctx); err != nil {
		return fmt.Errorf("ingestion: clearing vector index: %w", err)
	}
	if err := p.catalog.DeleteAll(ctx); err != nil {
		return fmt.Errorf("ingestion: clearing catalog: %w", err)
	}
	return nil
}
