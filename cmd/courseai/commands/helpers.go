package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/54b3r/courseai-go/internal/agent"
	"github.com/54b3r/courseai-go/internal/embedder"
	"github.com/54b3r/courseai-go/internal/store"
	"github.com/54b3r/courseai-go/internal/tools"
	"github.com/54b3r/courseai-go/internal/vectorstore"
)

// openVectorStore constructs the vector index from the environment: a
// Qdrant-backed store when QDRANT_HOST is set, otherwise an in-memory index
// that lives for the process lifetime.
func openVectorStore(ctx context.Context, log *slog.Logger) (vectorstore.Store, error) {
	if err := embedder.Validate(log); err != nil {
		return nil, err
	}
	emb, err := embedder.NewFromEnv()
	if err != nil {
		return nil, fmt.Errorf("initialising embedder: %w", err)
	}
	log.Info("embedder initialised", slog.String("provider", embedder.Backend()))

	host := os.Getenv("QDRANT_HOST")
	if host == "" {
		log.Info("vector index: QDRANT_HOST not set — using in-memory index")
		return vectorstore.NewMemoryStore(emb), nil
	}

	vectorSize := uint64(embedder.DefaultDimensions(embedder.Backend())) //nolint:gosec // dimensions are bounded
	if d := getEnvInt("EMBEDDING_DIMENSIONS", 0); d > 0 {
		vectorSize = uint64(d) //nolint:gosec // dimensions are bounded
	}

	port := getEnvInt("QDRANT_PORT", 6334)
	vs, err := vectorstore.NewQdrantStore(ctx, &vectorstore.QdrantConfig{
		Host:             host,
		Port:             port,
		CollectionPrefix: getEnvOrDefault("QDRANT_COLLECTION_PREFIX", "courseai"),
		VectorSize:       vectorSize,
		APIKey:           os.Getenv("QDRANT_API_KEY"),
		UseTLS:           os.Getenv("QDRANT_TLS") == "true",
	}, emb)
	if err != nil {
		return nil, fmt.Errorf("connecting to Qdrant at %s:%d: %w", host, port, err)
	}
	log.Info("qdrant index ready",
		slog.String("host", host),
		slog.Int("port", port),
	)
	return vs, nil
}

// openCatalog opens the SQLite course catalog. COURSEAI_CATALOG_DB overrides
// the default path (~/.courseai/catalog.db).
func openCatalog(log *slog.Logger) (store.CatalogStore, error) {
	path := os.Getenv("COURSEAI_CATALOG_DB")
	if path == "" {
		var err error
		path, err = store.DefaultDBPath()
		if err != nil {
			return nil, fmt.Errorf("resolving catalog path: %w", err)
		}
	}
	cs, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening catalog at %s: %w", path, err)
	}
	log.Info("catalog opened", slog.String("path", path))
	return cs, nil
}

// buildManager constructs the course tool set registered with the assistant.
func buildManager(vectors vectorstore.Store, catalog store.CatalogStore) *tools.Manager {
	return tools.NewManager(
		tools.NewSearchTool(vectors, getEnvInt("MAX_RESULTS", 5)),
		tools.NewOutlineTool(vectors, catalog),
	)
}

// agentConfigFromEnv fills the tuning knobs of an agent.Config from the
// environment; zero values fall back to the agent package defaults.
func agentConfigFromEnv(cfg *agent.Config) *agent.Config {
	cfg.MaxToolRounds = getEnvInt("MAX_TOOL_ROUNDS", 0)
	cfg.MaxContextTokens = getEnvInt("MAX_CONTEXT_TOKENS", 0)
	return cfg
}

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
