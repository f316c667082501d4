package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/54b3r/courseai-go/internal/agent"
	"github.com/54b3r/courseai-go/internal/ingestion"
	"github.com/54b3r/courseai-go/internal/logging"
	"github.com/54b3r/courseai-go/internal/provider"
	"github.com/54b3r/courseai-go/internal/server"
	"github.com/54b3r/courseai-go/internal/session"
	"github.com/54b3r/courseai-go/internal/store"
	"github.com/54b3r/courseai-go/internal/tracing"
	"github.com/54b3r/courseai-go/internal/vectorstore"
)

// NewServeCmd constructs the `courseai serve` command, which starts the HTTP
// server exposing the query API.
func NewServeCmd() *cobra.Command {
	var host string
	var port int
	var docsDir string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the CourseAI HTTP server",
		Long: `Start the CourseAI HTTP server on localhost.

The server exposes POST /api/query for questions, GET /api/courses for index
analytics, plus health, readiness, and Prometheus metrics endpoints. When
--docs (or DOCS_DIR) points at a transcript directory, documents not yet in
the index are ingested at startup.

Examples:
  courseai serve
  courseai serve --port 9090 --docs ./docs
  MODEL_PROVIDER=azure courseai serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			log.Info("serve starting", slog.String("provider", os.Getenv("MODEL_PROVIDER")))

			// Langfuse tracing — opt-in, no-op if keys are absent.
			handler, flush, ok := tracing.Setup()
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			providerCfg := provider.ConfigFromEnv()
			chatModel, err := provider.New(ctx, providerCfg)
			if err != nil {
				return fmt.Errorf("serve: failed to initialise model provider: %w", err)
			}
			log.Info("provider initialised", slog.String("provider", string(providerCfg.Backend)))

			vectors, err := openVectorStore(ctx, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer vectors.Close()

			catalog, err := openCatalog(log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer catalog.Close()

			if docsDir == "" {
				docsDir = os.Getenv("DOCS_DIR")
			}
			if docsDir != "" {
				if err := ingestAtStartup(ctx, log, vectors, catalog, docsDir); err != nil {
					return fmt.Errorf("serve: %w", err)
				}
			}

			sessions := session.NewStore(getEnvInt("MAX_HISTORY", session.DefaultMaxHistory))

			assistant, err := agent.New(ctx, agentConfigFromEnv(&agent.Config{
				ChatModel: chatModel,
				Tools:     buildManager(vectors, catalog),
				Sessions:  sessions,
			}))
			if err != nil {
				return fmt.Errorf("serve: failed to initialise assistant: %w", err)
			}

			pingers := []server.Pinger{
				server.NewLLMPinger(chatModel, provider.NewHealthCheck(providerCfg), string(providerCfg.Backend)),
			}
			if qs, ok := vectors.(*vectorstore.QdrantStore); ok {
				pingers = append(pingers, server.NewQdrantPinger(qs))
			}

			srv, err := server.New(assistant, vectors, sessions, &server.Config{
				Host:    host,
				Port:    port,
				Logger:  log,
				Pingers: pingers,
				APIKey:  os.Getenv("COURSEAI_API_KEY"),
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")
	cmd.Flags().StringVar(&docsDir, "docs", "", "Transcript directory to ingest at startup (default: $DOCS_DIR)")

	return cmd
}

// ingestAtStartup indexes any documents in dir whose course titles are not
// yet in the catalog. Per-document failures are logged and skipped so a bad
// transcript never blocks serving.
func ingestAtStartup(ctx context.Context, log *slog.Logger, vectors vectorstore.Store, catalog store.CatalogStore, dir string) error {
	pipeline, err := ingestion.NewPipeline(vectors, catalog, &ingestion.Config{
		ChunkSize:    getEnvInt("CHUNK_SIZE", 0),
		ChunkOverlap: getEnvInt("CHUNK_OVERLAP", 0),
		SkipExisting: true,
	})
	if err != nil {
		return err
	}

	report, err := pipeline.IngestDir(ctx, dir, func(msg string) {
		log.Info("ingest: " + msg)
	})
	if err != nil {
		return err
	}
	for path, ferr := range report.Failed {
		log.Warn("ingest: document skipped",
			slog.String("path", path),
			slog.Any("error", ferr),
		)
	}
	log.Info("startup ingestion complete",
		slog.Int("courses_added", report.CoursesAdded),
		slog.Int("chunks_added", report.ChunksAdded),
		slog.Int("skipped_existing", report.SkippedExisting),
	)
	return nil
}
