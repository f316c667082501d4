package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/courseai-go/internal/agent"
	"github.com/54b3r/courseai-go/internal/vectorstore"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// QueryTimeout bounds a single /api/query request end to end, tool
	// rounds included. Defaults to 2 minutes.
	QueryTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, slog.Default() is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// MetricsRegistry receives the server's Prometheus metrics. Defaults to
	// prometheus.DefaultRegisterer. Tests inject a fresh registry.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer backs GET /metrics. Defaults to prometheus.DefaultGatherer.
	MetricsGatherer prometheus.Gatherer
}

// querier is the interface handleQuery calls to answer a question.
// *agent.Assistant satisfies it; tests inject a fake.
type querier interface {
	// Query answers one user query, running tools as needed.
	Query(ctx context.Context, query, sessionID string) (*agent.Answer, error)
}

// statser is the interface handleCourses calls for index analytics.
// Every vectorstore.Store satisfies it.
type statser interface {
	Stats(ctx context.Context) (*vectorstore.Stats, error)
}

// sessionCreator mints session IDs for clients that did not supply one.
// *session.Store satisfies it.
type sessionCreator interface {
	Create() string
}

// Server is the HTTP server that exposes the course assistant.
type Server struct {
	// querier answers /api/query requests; the assistant in production,
	// a fake in tests.
	querier querier
	// stats backs GET /api/courses.
	stats statser
	// sessions mints session IDs for first-turn requests. May be nil.
	sessions sessionCreator
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus instruments owned by this server.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// queryRequest is the JSON body for POST /api/query.
type queryRequest struct {
	// Query is the user's natural language question.
	Query string `json:"query"`
	// SessionID continues an existing conversation. Empty on the first turn;
	// the response carries the ID to use on follow-ups.
	SessionID string `json:"session_id"`
}

// queryResponse is the JSON response for POST /api/query.
type queryResponse struct {
	// Answer is the assistant's final text.
	Answer string `json:"answer"`
	// Sources lists the course materials behind the latest tool result.
	Sources []vectorstore.SourceRef `json:"sources"`
	// SessionID identifies the conversation for follow-up requests.
	SessionID string `json:"session_id"`
}
