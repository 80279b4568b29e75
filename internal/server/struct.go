package server

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dsla-ai/dsla/internal/adapter"
	"github.com/dsla-ai/dsla/internal/memory"
	"github.com/dsla-ai/dsla/internal/rag"
	"github.com/dsla-ai/dsla/internal/router"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8000).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
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
	// MetricsRegistry receives all Prometheus metric registrations.
	// Defaults to prometheus.DefaultRegisterer; tests inject a fresh registry.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer backs the GET /metrics endpoint.
	// Defaults to prometheus.DefaultGatherer.
	MetricsGatherer prometheus.Gatherer
}

// Server is the HTTP server that exposes the DSLA components over a REST API.
type Server struct {
	// engine is the retrieval engine backing the /api/rag endpoints.
	engine *rag.Engine
	// engineMu serializes all engine access. The engine itself is
	// single-threaded; the mutex provides the external synchronization
	// its contract requires.
	engineMu sync.Mutex
	// router dispatches queries to domain adapters.
	router *router.Router
	// memory is the structured memory store behind the /api/memory endpoints.
	memory memory.Store
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
	// metrics holds all Prometheus metrics owned by this server instance.
	metrics *serverMetrics
}

// adaptRequest is the JSON body for POST /api/adapt and the adaptation
// portion of POST /api/run.
type adaptRequest struct {
	// Domain selects a specific adapter by name. Takes precedence over Query.
	Domain string `json:"domain,omitempty"`
	// Query is routed by keyword when Domain is not set.
	Query string `json:"query,omitempty"`
	// InputData is the raw input handed to the adapter.
	InputData map[string]any `json:"input_data"`
}

// adaptResponse is the JSON response for POST /api/adapt.
type adaptResponse struct {
	// Domain is the adapter domain that handled the request.
	Domain string `json:"domain"`
	// AdaptedInput is the normalized input with domain defaults applied.
	AdaptedInput map[string]any `json:"adapted_input"`
	// Prompt is the rendered domain prompt.
	Prompt string `json:"prompt"`
	// Tools are the tool definitions available in the domain.
	Tools []adapter.ToolDefinition `json:"tools"`
	// Schema is the domain's input/output schema.
	Schema adapter.Schema `json:"schema"`
}

// runRequest is the JSON body for POST /api/run.
type runRequest struct {
	adaptRequest
	// UseRAG enables context retrieval before output generation.
	UseRAG bool `json:"use_rag,omitempty"`
	// RAGQuery is the retrieval query; required for UseRAG to take effect.
	RAGQuery string `json:"rag_query,omitempty"`
	// SaveToMemory persists the adapted output to the memory store.
	SaveToMemory bool `json:"save_to_memory,omitempty"`
}

// runContextItem is one retrieved document in a run response.
type runContextItem struct {
	// Document is the matched document text.
	Document string `json:"document"`
	// Distance is the squared L2 distance to the query (smaller is closer).
	Distance float32 `json:"distance"`
	// Metadata is the document's stored metadata.
	Metadata map[string]any `json:"metadata"`
}

// runResponse is the JSON response for POST /api/run.
type runResponse struct {
	// Domain is the adapter domain that handled the request.
	Domain string `json:"domain"`
	// AdaptedInput is the normalized input with domain defaults applied.
	AdaptedInput map[string]any `json:"adapted_input"`
	// Prompt is the rendered domain prompt.
	Prompt string `json:"prompt"`
	// AdaptedOutput is the normalized output with domain defaults applied.
	AdaptedOutput map[string]any `json:"adapted_output"`
	// RAGContext holds retrieved documents when use_rag was set, else null.
	RAGContext []runContextItem `json:"rag_context"`
	// MemoryID is the stored entry's row ID when save_to_memory was set.
	MemoryID *int64 `json:"memory_id"`
}

// memoryStoreRequest is the JSON body for POST /api/memory.
type memoryStoreRequest struct {
	// Domain is the adapter domain this memory belongs to.
	Domain string `json:"domain"`
	// Key uniquely identifies the memory within its domain.
	Key string `json:"key"`
	// Value is the memory content.
	Value map[string]any `json:"value"`
	// Metadata holds additional context for the entry.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ragAddRequest is the JSON body for POST /api/rag/documents.
type ragAddRequest struct {
	// Documents are the texts to index.
	Documents []string `json:"documents"`
	// Metadata optionally carries one map per document.
	Metadata []map[string]any `json:"metadata,omitempty"`
}

// ragSearchRequest is the JSON body for POST /api/rag/search.
type ragSearchRequest struct {
	// Query is the search text.
	Query string `json:"query"`
	// TopK is the number of results to return (default 5).
	TopK int `json:"top_k,omitempty"`
}

// ragStatusResponse is the JSON response for GET /api/rag/status.
type ragStatusResponse struct {
	// Backend is the active index backend ("exact" or "linear").
	Backend string `json:"backend"`
	// Degraded is true when the exact backend was requested but
	// unavailable and the server fell back to the linear backend.
	Degraded bool `json:"degraded"`
	// Documents is the number of indexed documents.
	Documents int `json:"documents"`
	// Dimensions is the embedding dimensionality of the index.
	Dimensions int `json:"dimensions"`
}
