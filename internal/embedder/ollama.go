package embedder

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// OllamaEmbedder is a rag.Embedder backed by a local Ollama server's
// /api/embed endpoint. Safe for concurrent use; no credentials needed.
type OllamaEmbedder struct {
	host   string
	model  string
	dim    int
	client *http.Client
}

// OllamaConfig holds the settings for constructing an OllamaEmbedder.
type OllamaConfig struct {
	// Host is the Ollama base URL, e.g. "http://localhost:11434".
	Host string
	// Model is the embedding model name, e.g. "nomic-embed-text".
	Model string
	// Dimensions is the model's output vector length (nomic-embed-text: 768).
	Dimensions int
}

// NewOllamaEmbedder constructs an OllamaEmbedder from cfg.
func NewOllamaEmbedder(cfg *OllamaConfig) *OllamaEmbedder {
	return &OllamaEmbedder{
		host:  cfg.Host,
		model: cfg.Model,
		dim:   cfg.Dimensions,
		// Local model servers can stall on cold start, so the timeout is
		// looser than for the hosted APIs.
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

// Dimensions returns the model's declared output vector length.
func (e *OllamaEmbedder) Dimensions() int { return e.dim }

// Embed encodes texts in one batch call. The result is parallel to texts.
func (e *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	in := struct {
		Model string   `json:"model"`
		Input []string `json:"input"`
	}{Model: e.model, Input: texts}

	var out struct {
		Embeddings [][]float32 `json:"embeddings"`
		Error      string      `json:"error,omitempty"`
	}

	status, err := postJSON(ctx, e.client, e.host+"/api/embed", nil, in, &out)
	if err != nil {
		return nil, fmt.Errorf("ollama embedder: %w", err)
	}
	if status < 200 || status >= 300 {
		msg := fmt.Sprintf("HTTP %d", status)
		if out.Error != "" {
			msg = out.Error
		}
		return nil, fmt.Errorf("ollama embedder: %s", msg)
	}
	if len(out.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama embedder: expected %d embeddings, got %d", len(texts), len(out.Embeddings))
	}
	return out.Embeddings, nil
}
