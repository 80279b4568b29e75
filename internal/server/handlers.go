package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dsla-ai/dsla/internal/adapter"
	"github.com/dsla-ai/dsla/internal/logging"
	"github.com/dsla-ai/dsla/internal/memory"
	"github.com/dsla-ai/dsla/internal/version"
)

// writeJSON encodes v as the response body with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError sends a JSON error body in the shape {"error": "..."}.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeJSON decodes the request body into v. Unknown fields are tolerated
// so clients can send extra fields without breaking.
func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// handleRoot handles GET /: a service information page naming the API
// surface, useful for discovering the endpoints without documentation.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "DSLA - Domain-Specific LLM Adapter",
		"version": version.Version,
		"endpoints": map[string]string{
			"adapt":    "/api/adapt - Adapt input and get prompt/tools for a domain",
			"run":      "/api/run - Full workflow execution with adaptation",
			"adapters": "/api/adapters - List available adapters",
			"memory":   "/api/memory/* - Memory operations",
			"rag":      "/api/rag/* - RAG operations",
			"health":   "/api/health - Liveness probe",
			"ready":    "/api/ready - Readiness probe",
			"metrics":  "/metrics - Prometheus metrics",
		},
	})
}

// resolveAdapter selects the adapter for a request: an explicit domain wins,
// otherwise the query is keyword-routed. It writes the error response itself
// and returns ok=false when no adapter can be resolved.
func (s *Server) resolveAdapter(w http.ResponseWriter, req *adaptRequest) (adapter.Adapter, bool) {
	switch {
	case req.Domain != "":
		a, ok := s.router.Get(req.Domain)
		if !ok {
			writeError(w, http.StatusNotFound, fmt.Sprintf("domain %q not found", req.Domain))
			return nil, false
		}
		return a, true
	case req.Query != "":
		a, ok := s.router.Route(req.Query)
		if !ok {
			writeError(w, http.StatusNotFound, "no suitable adapter found for query")
			return nil, false
		}
		return a, true
	default:
		writeError(w, http.StatusBadRequest, "either 'domain' or 'query' must be provided")
		return nil, false
	}
}

// handleAdapt handles POST /api/adapt. It validates and adapts the input for
// the resolved domain and returns the rendered prompt, tools, and schema
// without executing anything.
func (s *Server) handleAdapt(w http.ResponseWriter, r *http.Request) {
	var req adaptRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	a, ok := s.resolveAdapter(w, &req)
	if !ok {
		return
	}

	if err := adapter.ValidateInput(a, req.InputData); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	adaptedInput := a.AdaptInput(req.InputData)

	writeJSON(w, http.StatusOK, adaptResponse{
		Domain:       a.Domain(),
		AdaptedInput: adaptedInput,
		Prompt:       adapter.FormatPrompt(a, adaptedInput),
		Tools:        a.Tools(),
		Schema:       a.Schema(),
	})
}

// handleRun handles POST /api/run: the full workflow. It routes, validates,
// and adapts the input, optionally retrieves context from the index,
// generates a domain output, adapts it, and optionally persists the result
// to structured memory.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req runRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	a, ok := s.resolveAdapter(w, &req.adaptRequest)
	if !ok {
		return
	}
	domain := a.Domain()

	if err := adapter.ValidateInput(a, req.InputData); err != nil {
		s.metrics.runsTotal.WithLabelValues(domain, outcomeError).Inc()
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	adaptedInput := a.AdaptInput(req.InputData)
	prompt := adapter.FormatPrompt(a, adaptedInput)

	var ragContext []runContextItem
	if req.UseRAG && req.RAGQuery != "" {
		if s.engine == nil {
			s.metrics.runsTotal.WithLabelValues(domain, outcomeError).Inc()
			writeError(w, http.StatusServiceUnavailable, "retrieval engine not configured")
			return
		}
		results, err := s.searchIndex(r, req.RAGQuery, 0)
		if err != nil {
			s.metrics.runsTotal.WithLabelValues(domain, outcomeError).Inc()
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		ragContext = results
	}

	// No model is wired in yet: produce the domain's canonical placeholder
	// output so the adaptation pipeline runs end to end.
	rawOutput := placeholderOutput(domain, adaptedInput)
	adaptedOutput := a.AdaptOutput(rawOutput)
	if err := adapter.ValidateOutput(a, adaptedOutput); err != nil {
		s.metrics.runsTotal.WithLabelValues(domain, outcomeError).Inc()
		log.Error("output validation failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "generated output failed validation")
		return
	}

	var memoryID *int64
	if req.SaveToMemory {
		id, err := s.memory.Put(r.Context(), &memory.Entry{
			Domain:   domain,
			Key:      memoryKey(domain, req.InputData),
			Value:    adaptedOutput,
			Metadata: map[string]any{"input": adaptedInput},
		})
		if err != nil {
			s.metrics.runsTotal.WithLabelValues(domain, outcomeError).Inc()
			log.Error("memory store failed", slog.Any("error", err))
			writeError(w, http.StatusInternalServerError, "failed to save result to memory")
			return
		}
		memoryID = &id
	}

	s.metrics.runsTotal.WithLabelValues(domain, outcomeOK).Inc()
	writeJSON(w, http.StatusOK, runResponse{
		Domain:        domain,
		AdaptedInput:  adaptedInput,
		Prompt:        prompt,
		AdaptedOutput: adaptedOutput,
		RAGContext:    ragContext,
		MemoryID:      memoryID,
	})
}

// placeholderOutput returns the canonical stand-in model output for a domain.
// The shapes match each adapter's output schema so AdaptOutput exercises the
// same paths a real model response would.
func placeholderOutput(domain string, adaptedInput map[string]any) map[string]any {
	switch domain {
	case adapter.DomainLegalDoc:
		return map[string]any{
			"key_clauses":      []any{"Clause 1: Example", "Clause 2: Example"},
			"risks":            []any{"Risk 1", "Risk 2"},
			"compliance_notes": []any{"Compliance note 1"},
			"recommendations":  []any{"Recommendation 1"},
			"summary": fmt.Sprintf("Legal document analysis completed for %v",
				valueOr(adaptedInput, "document_type", "unknown")),
		}
	case adapter.DomainTradingOps:
		return map[string]any{
			"trend":             "neutral",
			"support_levels":    []any{100.0, 95.0},
			"resistance_levels": []any{110.0, 115.0},
			"signals": []any{
				map[string]any{"type": "buy", "strength": "weak", "description": "Example signal"},
			},
			"risk_score":      5.0,
			"recommendations": []any{"Recommendation 1"},
			"summary": fmt.Sprintf("Trading analysis completed for %v",
				valueOr(adaptedInput, "asset", "unknown")),
		}
	default:
		return map[string]any{"summary": "Analysis completed"}
	}
}

// memoryKey derives the memory key for a run result from the raw input:
// "<domain>_<asset or document_type or unknown>".
func memoryKey(domain string, input map[string]any) string {
	subject := "unknown"
	if v, ok := input["asset"]; ok {
		subject = fmt.Sprint(v)
	} else if v, ok := input["document_type"]; ok {
		subject = fmt.Sprint(v)
	}
	return domain + "_" + subject
}

// valueOr returns m[key] if present, otherwise fallback.
func valueOr(m map[string]any, key, fallback string) any {
	if v, ok := m[key]; ok {
		return v
	}
	return fallback
}

// handleAdapters handles GET /api/adapters: lists every registered domain
// with its keywords, tool names, and schema.
func (s *Server) handleAdapters(w http.ResponseWriter, r *http.Request) {
	domains := s.router.Domains()
	adapters := make([]any, 0, len(domains))
	for _, d := range domains {
		if info, ok := s.router.Info(d); ok {
			adapters = append(adapters, info)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"adapters": adapters})
}

// handleMemoryStore handles POST /api/memory.
func (s *Server) handleMemoryStore(w http.ResponseWriter, r *http.Request) {
	var req memoryStoreRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Domain == "" || req.Key == "" {
		writeError(w, http.StatusBadRequest, "'domain' and 'key' are required")
		return
	}
	if req.Value == nil {
		writeError(w, http.StatusBadRequest, "'value' is required")
		return
	}

	id, err := s.memory.Put(r.Context(), &memory.Entry{
		Domain:   req.Domain,
		Key:      req.Key,
		Value:    req.Value,
		Metadata: req.Metadata,
	})
	if err != nil {
		logging.FromContext(r.Context()).Error("memory store failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to store memory entry")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"id": id, "status": "stored"})
}

// handleMemoryQuery handles GET /api/memory/{domain}?limit=N&offset=M.
// Entries are returned newest first.
func (s *Server) handleMemoryQuery(w http.ResponseWriter, r *http.Request) {
	domain := r.PathValue("domain")

	limit := queryInt(r, "limit", 100)
	offset := queryInt(r, "offset", 0)

	entries, err := s.memory.Query(r.Context(), domain, limit, offset)
	if err != nil {
		logging.FromContext(r.Context()).Error("memory query failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to query memory")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// handleMemoryGet handles GET /api/memory/{domain}/{key}.
func (s *Server) handleMemoryGet(w http.ResponseWriter, r *http.Request) {
	domain := r.PathValue("domain")
	key := r.PathValue("key")

	entry, err := s.memory.Get(r.Context(), domain, key)
	if err != nil {
		if errors.Is(err, memory.ErrNotFound) {
			writeError(w, http.StatusNotFound, "memory entry not found")
			return
		}
		logging.FromContext(r.Context()).Error("memory get failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to retrieve memory entry")
		return
	}

	writeJSON(w, http.StatusOK, entry)
}

// handleRAGAdd handles POST /api/rag/documents.
func (s *Server) handleRAGAdd(w http.ResponseWriter, r *http.Request) {
	if s.engine == nil {
		writeError(w, http.StatusServiceUnavailable, "retrieval engine not configured")
		return
	}

	var req ragAddRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Documents) == 0 {
		writeError(w, http.StatusBadRequest, "'documents' must not be empty")
		return
	}
	if req.Metadata != nil && len(req.Metadata) != len(req.Documents) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf(
			"metadata length %d does not match documents length %d",
			len(req.Metadata), len(req.Documents)))
		return
	}

	s.engineMu.Lock()
	err := s.engine.Add(r.Context(), req.Documents, req.Metadata)
	count := s.engine.Len()
	s.engineMu.Unlock()
	if err != nil {
		logging.FromContext(r.Context()).Error("document add failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to add documents")
		return
	}

	s.metrics.documentsAddedTotal.Add(float64(len(req.Documents)))
	s.metrics.indexedDocuments.Set(float64(count))
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "added",
		"count":  len(req.Documents),
	})
}

// handleRAGSearch handles POST /api/rag/search.
func (s *Server) handleRAGSearch(w http.ResponseWriter, r *http.Request) {
	if s.engine == nil {
		writeError(w, http.StatusServiceUnavailable, "retrieval engine not configured")
		return
	}

	var req ragSearchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "'query' is required")
		return
	}

	results, err := s.searchIndex(r, req.Query, req.TopK)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// searchIndex runs one engine search under the engine mutex and records
// outcome and latency metrics. topK <= 0 uses the engine default.
func (s *Server) searchIndex(r *http.Request, query string, topK int) ([]runContextItem, error) {
	start := time.Now()

	s.engineMu.Lock()
	results, err := s.engine.Search(r.Context(), query, topK)
	s.engineMu.Unlock()

	s.metrics.searchDurationSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		s.metrics.searchesTotal.WithLabelValues(outcomeError).Inc()
		logging.FromContext(r.Context()).Error("search failed", slog.Any("error", err))
		return nil, fmt.Errorf("search failed")
	}
	s.metrics.searchesTotal.WithLabelValues(outcomeOK).Inc()

	items := make([]runContextItem, 0, len(results))
	for _, res := range results {
		items = append(items, runContextItem{
			Document: res.Text,
			Distance: res.Distance,
			Metadata: res.Metadata,
		})
	}
	return items, nil
}

// handleRAGStatus handles GET /api/rag/status: reports the active backend,
// whether the engine degraded from the requested backend, and index size.
func (s *Server) handleRAGStatus(w http.ResponseWriter, r *http.Request) {
	if s.engine == nil {
		writeError(w, http.StatusServiceUnavailable, "retrieval engine not configured")
		return
	}

	s.engineMu.Lock()
	resp := ragStatusResponse{
		Backend:    string(s.engine.Backend()),
		Degraded:   s.engine.Degraded(),
		Documents:  s.engine.Len(),
		Dimensions: s.engine.Dimensions(),
	}
	s.engineMu.Unlock()

	writeJSON(w, http.StatusOK, resp)
}

// queryInt parses an integer query parameter, returning def when the
// parameter is absent or malformed.
func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}
