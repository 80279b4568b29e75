// Package server implements the HTTP server that exposes the DSLA
// components — domain adapters, retrieval engine, and structured memory —
// via a REST API. The server is started by the `dsla serve` CLI command.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dsla-ai/dsla/internal/logging"
	"github.com/dsla-ai/dsla/internal/memory"
	"github.com/dsla-ai/dsla/internal/rag"
	"github.com/dsla-ai/dsla/internal/router"
)

// New constructs a Server from the provided components and config.
// engine may be nil, in which case the /api/rag endpoints return 503.
func New(engine *rag.Engine, rt *router.Router, mem memory.Store, cfg *Config) (*Server, error) {
	if rt == nil {
		return nil, fmt.Errorf("server: router must not be nil")
	}
	if mem == nil {
		return nil, fmt.Errorf("server: memory store must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8000
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 60 * time.Second
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	if cfg.MetricsRegistry == nil {
		cfg.MetricsRegistry = prometheus.DefaultRegisterer
	}
	if cfg.MetricsGatherer == nil {
		cfg.MetricsGatherer = prometheus.DefaultGatherer
	}

	log := cfg.Logger
	if log == nil {
		log = logging.New()
	}

	s := &Server{
		engine:  engine,
		router:  rt,
		memory:  mem,
		cfg:     cfg,
		log:     log,
		pingers: cfg.Pingers,
	}
	s.metrics = newServerMetrics(cfg.MetricsRegistry)

	if cfg.APIKey == "" {
		log.Warn("API key not configured; authentication is disabled")
	}

	rl, stopRL := newRateLimiter(cfg.RateLimit, cfg.RateBurst, log)
	s.stopRL = stopRL

	// Protected API routes: auth + rate limit + per-handler metrics.
	api := http.NewServeMux()
	api.Handle("POST /api/adapt", s.instrument("adapt", s.handleAdapt))
	api.Handle("POST /api/run", s.instrument("run", s.handleRun))
	api.Handle("GET /api/adapters", s.instrument("adapters", s.handleAdapters))
	api.Handle("POST /api/memory", s.instrument("memory_store", s.handleMemoryStore))
	api.Handle("GET /api/memory/{domain}", s.instrument("memory_query", s.handleMemoryQuery))
	api.Handle("GET /api/memory/{domain}/{key}", s.instrument("memory_get", s.handleMemoryGet))
	api.Handle("POST /api/rag/documents", s.instrument("rag_add", s.handleRAGAdd))
	api.Handle("POST /api/rag/search", s.instrument("rag_search", s.handleRAGSearch))
	api.Handle("GET /api/rag/status", s.instrument("rag_status", s.handleRAGStatus))

	mux := http.NewServeMux()
	mux.Handle("GET /{$}", s.instrument("root", s.handleRoot))
	mux.Handle("/api/", authMiddleware(cfg.APIKey, rl.middleware(api)))
	// Liveness, readiness, and metrics stay reachable without credentials
	// so probes and scrapers do not need the API key.
	mux.Handle("GET /api/health", s.instrument("health", s.handleHealth))
	mux.Handle("GET /api/ready", s.instrument("ready", s.handleReady))
	mux.Handle("GET /metrics", promhttp.HandlerFor(cfg.MetricsGatherer, promhttp.HandlerOpts{}))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      requestLogger(log, mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown, flushing the
// retrieval index to disk before returning.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("dsla server listening",
			slog.String("addr", s.httpServer.Addr),
		)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.stopRL()
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		defer s.stopRL()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		s.flushIndex()
		return nil
	}
}

// flushIndex saves the retrieval index so documents added over the API
// survive a restart. Called once during graceful shutdown.
func (s *Server) flushIndex() {
	if s.engine == nil {
		return
	}
	s.engineMu.Lock()
	defer s.engineMu.Unlock()
	if err := s.engine.Save(); err != nil {
		s.log.Error("index flush failed", slog.Any("error", err))
	}
}
