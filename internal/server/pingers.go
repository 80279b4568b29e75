package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/dsla-ai/dsla/internal/memory"
)

// MemoryPinger probes the structured memory store's database connection.
// It satisfies the Pinger interface and is used by GET /api/ready.
type MemoryPinger struct {
	// store is the memory store to probe.
	store memory.Store
}

// NewMemoryPinger constructs a MemoryPinger for the given store.
func NewMemoryPinger(store memory.Store) *MemoryPinger {
	return &MemoryPinger{store: store}
}

// Name returns the dependency label used in readiness responses.
func (p *MemoryPinger) Name() string { return "memory" }

// Ping checks the memory store's database connection.
func (p *MemoryPinger) Ping(ctx context.Context) error {
	if err := p.store.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// OllamaPinger probes a local Ollama instance via its version endpoint.
// Registered only when the Ollama embedding backend is configured.
type OllamaPinger struct {
	// host is the Ollama base URL (e.g. "http://localhost:11434").
	host string
	// client is the HTTP client used for probes.
	client *http.Client
}

// NewOllamaPinger constructs an OllamaPinger for the given base URL.
func NewOllamaPinger(host string) *OllamaPinger {
	return &OllamaPinger{
		host:   strings.TrimRight(host, "/"),
		client: &http.Client{},
	}
}

// Name returns the dependency label used in readiness responses.
func (p *OllamaPinger) Name() string { return "ollama" }

// Ping issues GET /api/version against the Ollama host. The endpoint is
// free to call and answers even while models are loading.
func (p *OllamaPinger) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.host+"/api/version", nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama returned status %d", resp.StatusCode)
	}
	return nil
}
