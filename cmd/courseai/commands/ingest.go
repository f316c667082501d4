package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/54b3r/courseai-go/internal/ingestion"
	"github.com/54b3r/courseai-go/internal/logging"
)

// NewIngestCmd constructs the `courseai ingest` command, which parses course
// transcripts and indexes them into the vector store and catalog.
func NewIngestCmd() *cobra.Command {
	var skipExisting bool
	var clear bool

	cmd := &cobra.Command{
		Use:   "ingest [dir]",
		Short: "Ingest course transcripts into the vector index",
		Long: `Parse every course transcript in a directory, chunk the lesson text,
and index the chunks into the vector store alongside the course catalog.

Re-ingesting a document replaces the existing course data unless
--skip-existing is set. A malformed document is reported and skipped;
the run continues.

Required environment variables when using Qdrant:
  QDRANT_HOST               Qdrant server hostname
  QDRANT_PORT               Qdrant gRPC port (default: 6334)
  QDRANT_COLLECTION_PREFIX  Collection name prefix (default: courseai)
  QDRANT_API_KEY            Optional API key for authenticated clusters
  EMBEDDING_PROVIDER        Embedding backend: ollama, openai, azure

Examples:
  courseai ingest ./docs
  courseai ingest --skip-existing ./docs
  courseai ingest --clear ./docs`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)
			dir := args[0]

			vectors, err := openVectorStore(ctx, log)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer vectors.Close()

			catalog, err := openCatalog(log)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer catalog.Close()

			pipeline, err := ingestion.NewPipeline(vectors, catalog, &ingestion.Config{
				ChunkSize:    getEnvInt("CHUNK_SIZE", 0),
				ChunkOverlap: getEnvInt("CHUNK_OVERLAP", 0),
				SkipExisting: skipExisting,
			})
			if err != nil {
				return fmt.Errorf("ingest: failed to create pipeline: %w", err)
			}

			if clear {
				if err := pipeline.ClearAll(ctx); err != nil {
					return fmt.Errorf("ingest: %w", err)
				}
				log.Info("existing index cleared")
			}

			report, err := pipeline.IngestDir(ctx, dir, func(msg string) {
				log.Info(msg)
			})
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			for path, ferr := range report.Failed {
				log.Warn("document skipped",
					slog.String("path", path),
					slog.Any("error", ferr),
				)
			}
			log.Info("ingestion complete",
				slog.Int("courses_added", report.CoursesAdded),
				slog.Int("chunks_added", report.ChunksAdded),
				slog.Int("skipped_existing", report.SkippedExisting),
				slog.Int("failed", len(report.Failed)),
			)

			if len(report.Failed) > 0 && report.CoursesAdded == 0 && report.SkippedExisting == 0 {
				return fmt.Errorf("ingest: no documents could be ingested from %s", dir)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&skipExisting, "skip-existing", false, "Skip documents whose course title is already indexed")
	cmd.Flags().BoolVar(&clear, "clear", false, "Wipe the vector index and catalog before ingesting")

	return cmd
}
