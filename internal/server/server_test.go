package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dsla-ai/dsla/internal/adapter"
	"github.com/dsla-ai/dsla/internal/embedder"
	"github.com/dsla-ai/dsla/internal/memory"
	"github.com/dsla-ai/dsla/internal/rag"
	"github.com/dsla-ai/dsla/internal/router"
)

// newTestServer builds a fully wired Server over an in-memory store, a
// temp-dir index, and a fresh Prometheus registry so tests stay hermetic.
// Extra config (APIKey, Pingers) can be applied through mutate.
func newTestServer(t *testing.T, mutate func(*Config)) *Server {
	t.Helper()

	emb, err := embedder.NewLocalEmbedder(32)
	if err != nil {
		t.Fatalf("new embedder: %v", err)
	}
	engine, err := rag.New(&rag.Config{
		Embedder:  emb,
		IndexPath: filepath.Join(t.TempDir(), "index"),
		Backend:   rag.BackendLinear,
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	mem, err := memory.Open(":memory:")
	if err != nil {
		t.Fatalf("open memory store: %v", err)
	}
	t.Cleanup(func() { _ = mem.Close() })

	rt := router.New()
	rt.Register(adapter.NewLegalDoc(),
		[]string{"legal", "contract", "agreement", "clause", "compliance", "law", "document"})
	rt.Register(adapter.NewTradingOps(),
		[]string{"trading", "trade", "market", "stock", "crypto", "portfolio", "finance", "investment"})

	reg := prometheus.NewRegistry()
	cfg := &Config{
		MetricsRegistry: reg,
		MetricsGatherer: reg,
	}
	if mutate != nil {
		mutate(cfg)
	}

	s, err := New(engine, rt, mem, cfg)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	t.Cleanup(s.stopRL)
	return s
}

// do runs one request through the server's full middleware chain and decodes
// the JSON response body into out (when out is non-nil).
func do(t *testing.T, s *Server, method, path string, body any, out any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)

	if out != nil && rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec
}

func Test_Server_RootServiceInfo(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, func(cfg *Config) { cfg.APIKey = "secret" })

	var resp struct {
		Name      string            `json:"name"`
		Version   string            `json:"version"`
		Endpoints map[string]string `json:"endpoints"`
	}
	// The info page needs no credentials even when auth is on.
	rec := do(t, s, http.MethodGet, "/", nil, &resp)
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}
	if resp.Name != "DSLA - Domain-Specific LLM Adapter" {
		t.Errorf("want service name, got %q", resp.Name)
	}
	if resp.Version == "" {
		t.Error("want non-empty version")
	}
	for _, key := range []string{"adapt", "run", "adapters", "memory", "rag"} {
		if resp.Endpoints[key] == "" {
			t.Errorf("endpoint listing missing %q", key)
		}
	}

	// Only the exact root path serves the info page.
	rec = do(t, s, http.MethodGet, "/nonsense", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("want 404 for unknown path, got %d", rec.Code)
	}
}

func Test_Server_Health(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, nil)

	var resp map[string]string
	rec := do(t, s, http.MethodGet, "/api/health", nil, &resp)
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}
	if resp["status"] != "ok" {
		t.Errorf("want status ok, got %v", resp)
	}
}

func Test_Server_AdaptRoutesByQuery(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, nil)

	var resp adaptResponse
	rec := do(t, s, http.MethodPost, "/api/adapt", map[string]any{
		"query": "review this contract for compliance",
		"input_data": map[string]any{
			"document_type": "NDA",
			"content":       "This agreement...",
		},
	}, &resp)

	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if resp.Domain != adapter.DomainLegalDoc {
		t.Errorf("want legal_doc, got %s", resp.Domain)
	}
	if resp.AdaptedInput["document_type"] != "nda" {
		t.Errorf("want lowercased document type, got %v", resp.AdaptedInput["document_type"])
	}
	if resp.Prompt == "" {
		t.Error("want a rendered prompt")
	}
	if len(resp.Tools) != 4 {
		t.Errorf("want 4 tools, got %d", len(resp.Tools))
	}
}

func Test_Server_AdaptErrors(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, nil)

	tests := []struct {
		name string
		body map[string]any
		want int
	}{
		{
			name: "unknown domain",
			body: map[string]any{"domain": "medical", "input_data": map[string]any{}},
			want: http.StatusNotFound,
		},
		{
			name: "unroutable query",
			body: map[string]any{"query": "bake a cake", "input_data": map[string]any{}},
			want: http.StatusNotFound,
		},
		{
			name: "neither domain nor query",
			body: map[string]any{"input_data": map[string]any{}},
			want: http.StatusBadRequest,
		},
		{
			name: "missing required field",
			body: map[string]any{
				"domain":     adapter.DomainLegalDoc,
				"input_data": map[string]any{"document_type": "nda"},
			},
			want: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := do(t, s, http.MethodPost, "/api/adapt", tt.body, nil)
			if rec.Code != tt.want {
				t.Errorf("want %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func Test_Server_RunSavesToMemory(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, nil)

	var resp runResponse
	rec := do(t, s, http.MethodPost, "/api/run", map[string]any{
		"domain": adapter.DomainTradingOps,
		"input_data": map[string]any{
			"asset":       "btc/usd",
			"market_data": map[string]any{"close": 50000.0},
		},
		"save_to_memory": true,
	}, &resp)

	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if resp.AdaptedOutput["trend"] != "neutral" {
		t.Errorf("want adapted output defaults, got %v", resp.AdaptedOutput)
	}
	if resp.MemoryID == nil {
		t.Fatal("want a memory id when save_to_memory is set")
	}

	entry, err := s.memory.Get(context.Background(), adapter.DomainTradingOps, "trading_ops_btc/usd")
	if err != nil {
		t.Fatalf("saved entry not retrievable: %v", err)
	}
	if entry.ID != *resp.MemoryID {
		t.Errorf("memory id mismatch: response %d, store %d", *resp.MemoryID, entry.ID)
	}
}

func Test_Server_RunWithRetrievalContext(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, nil)

	rec := do(t, s, http.MethodPost, "/api/rag/documents", map[string]any{
		"documents": []string{"Breach of contract remedies include damages"},
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("seed documents: want 200, got %d", rec.Code)
	}

	var resp runResponse
	rec = do(t, s, http.MethodPost, "/api/run", map[string]any{
		"domain": adapter.DomainLegalDoc,
		"input_data": map[string]any{
			"document_type": "contract",
			"content":       "...",
		},
		"use_rag":   true,
		"rag_query": "contract remedies",
	}, &resp)

	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(resp.RAGContext) == 0 {
		t.Fatal("want retrieved context when use_rag is set")
	}
	if resp.RAGContext[0].Document != "Breach of contract remedies include damages" {
		t.Errorf("unexpected context document %q", resp.RAGContext[0].Document)
	}
}

func Test_Server_RunWithoutRAGHasNullContext(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, nil)

	var resp map[string]any
	rec := do(t, s, http.MethodPost, "/api/run", map[string]any{
		"domain": adapter.DomainLegalDoc,
		"input_data": map[string]any{
			"document_type": "contract",
			"content":       "...",
		},
	}, &resp)

	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}
	if resp["rag_context"] != nil {
		t.Errorf("want null rag_context, got %v", resp["rag_context"])
	}
}

func Test_Server_ListAdapters(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, nil)

	var resp struct {
		Adapters []router.Info `json:"adapters"`
	}
	rec := do(t, s, http.MethodGet, "/api/adapters", nil, &resp)
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}
	if len(resp.Adapters) != 2 {
		t.Fatalf("want 2 adapters, got %d", len(resp.Adapters))
	}
	if resp.Adapters[0].Domain != adapter.DomainLegalDoc {
		t.Errorf("want registration order preserved, got %s first", resp.Adapters[0].Domain)
	}
}

func Test_Server_MemoryEndpoints(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, nil)

	var stored map[string]any
	rec := do(t, s, http.MethodPost, "/api/memory", map[string]any{
		"domain": "legal_doc",
		"key":    "case_law_1",
		"value":  map[string]any{"holding": "affirmed"},
	}, &stored)
	if rec.Code != http.StatusOK {
		t.Fatalf("store: want 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if stored["status"] != "stored" {
		t.Errorf("want status stored, got %v", stored)
	}

	var entry memory.Entry
	rec = do(t, s, http.MethodGet, "/api/memory/legal_doc/case_law_1", nil, &entry)
	if rec.Code != http.StatusOK {
		t.Fatalf("get: want 200, got %d", rec.Code)
	}
	if entry.Value["holding"] != "affirmed" {
		t.Errorf("want stored value back, got %v", entry.Value)
	}

	var list struct {
		Entries []memory.Entry `json:"entries"`
	}
	rec = do(t, s, http.MethodGet, "/api/memory/legal_doc?limit=10", nil, &list)
	if rec.Code != http.StatusOK {
		t.Fatalf("query: want 200, got %d", rec.Code)
	}
	if len(list.Entries) != 1 {
		t.Errorf("want 1 entry, got %d", len(list.Entries))
	}

	rec = do(t, s, http.MethodGet, "/api/memory/legal_doc/absent", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing entry: want 404, got %d", rec.Code)
	}
}

func Test_Server_MemoryStoreValidation(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, nil)

	rec := do(t, s, http.MethodPost, "/api/memory", map[string]any{
		"key":   "k",
		"value": map[string]any{},
	}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing domain: want 400, got %d", rec.Code)
	}

	rec = do(t, s, http.MethodPost, "/api/memory", map[string]any{
		"domain": "d",
		"key":    "k",
	}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing value: want 400, got %d", rec.Code)
	}
}

func Test_Server_RAGAddAndSearch(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, nil)

	var added map[string]any
	rec := do(t, s, http.MethodPost, "/api/rag/documents", map[string]any{
		"documents": []string{
			"Python is a programming language",
			"The weather is sunny today",
		},
		"metadata": []map[string]any{
			{"topic": "tech"},
			{"topic": "weather"},
		},
	}, &added)
	if rec.Code != http.StatusOK {
		t.Fatalf("add: want 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if added["count"] != float64(2) {
		t.Errorf("want count 2, got %v", added["count"])
	}

	var searched struct {
		Results []runContextItem `json:"results"`
	}
	rec = do(t, s, http.MethodPost, "/api/rag/search", map[string]any{
		"query": "programming language",
		"top_k": 1,
	}, &searched)
	if rec.Code != http.StatusOK {
		t.Fatalf("search: want 200, got %d", rec.Code)
	}
	if len(searched.Results) != 1 {
		t.Fatalf("want 1 result, got %d", len(searched.Results))
	}
	if searched.Results[0].Document != "Python is a programming language" {
		t.Errorf("want the tech document, got %q", searched.Results[0].Document)
	}
	if searched.Results[0].Metadata["topic"] != "tech" {
		t.Errorf("want metadata returned, got %v", searched.Results[0].Metadata)
	}
}

func Test_Server_RAGAddValidation(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, nil)

	rec := do(t, s, http.MethodPost, "/api/rag/documents", map[string]any{
		"documents": []string{},
	}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty documents: want 400, got %d", rec.Code)
	}

	rec = do(t, s, http.MethodPost, "/api/rag/documents", map[string]any{
		"documents": []string{"a", "b"},
		"metadata":  []map[string]any{{}},
	}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("metadata mismatch: want 400, got %d", rec.Code)
	}
}

func Test_Server_RAGSearchRequiresQuery(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, nil)

	rec := do(t, s, http.MethodPost, "/api/rag/search", map[string]any{"top_k": 3}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("want 400, got %d", rec.Code)
	}
}

func Test_Server_RAGStatus(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, nil)

	var status ragStatusResponse
	rec := do(t, s, http.MethodGet, "/api/rag/status", nil, &status)
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}
	if status.Backend != string(rag.BackendLinear) {
		t.Errorf("want linear backend, got %q", status.Backend)
	}
	if status.Degraded {
		t.Error("explicitly requested linear backend must not report degraded")
	}
	if status.Dimensions != 32 {
		t.Errorf("want 32 dimensions, got %d", status.Dimensions)
	}
}

func Test_Server_AuthProtectsAPIRoutes(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, func(cfg *Config) { cfg.APIKey = "secret" })

	rec := do(t, s, http.MethodGet, "/api/adapters", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: want 401, got %d", rec.Code)
	}
	if rec.Header().Get("WWW-Authenticate") == "" {
		t.Error("want WWW-Authenticate challenge")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/adapters", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rr := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("wrong token: want 401, got %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/adapters", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rr = httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("valid token: want 200, got %d", rr.Code)
	}

	// Liveness stays reachable without credentials.
	rec = do(t, s, http.MethodGet, "/api/health", nil, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("health must not require auth, got %d", rec.Code)
	}
}

// failingPinger always reports its dependency as down.
type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("connection refused") }
func (failingPinger) Name() string               { return "broken" }

func Test_Server_ReadyReflectsDependencies(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, nil)

	var resp readyResponse
	rec := do(t, s, http.MethodGet, "/api/ready", nil, &resp)
	if rec.Code != http.StatusOK {
		t.Fatalf("no pingers: want 200, got %d", rec.Code)
	}
	if !resp.Ready {
		t.Error("no pingers: want ready")
	}

	down := newTestServer(t, func(cfg *Config) {
		cfg.Pingers = []Pinger{failingPinger{}}
	})
	rec = do(t, down, http.MethodGet, "/api/ready", nil, &resp)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("failing pinger: want 503, got %d", rec.Code)
	}
	if resp.Ready || len(resp.Checks) != 1 || resp.Checks[0].OK {
		t.Errorf("want failed check reported, got %+v", resp)
	}
	if resp.Checks[0].Name != "broken" {
		t.Errorf("want dependency name in check, got %q", resp.Checks[0].Name)
	}
}
