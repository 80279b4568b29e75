package embedder

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// OpenAIEmbedder is a rag.Embedder backed by the OpenAI embeddings API or an
// Azure OpenAI deployment of the same API. Safe for concurrent use.
type OpenAIEmbedder struct {
	baseURL    string
	apiKey     string
	model      string
	dim        int
	azure      bool
	apiVersion string
	client     *http.Client
}

// OpenAIConfig holds the settings for constructing an OpenAIEmbedder.
type OpenAIConfig struct {
	// BaseURL is "https://api.openai.com/v1" for OpenAI, or the resource
	// endpoint plus "/openai" for Azure.
	BaseURL string
	// APIKey is sent as a Bearer token (OpenAI) or api-key header (Azure).
	APIKey string
	// Model is the embedding model or Azure deployment name.
	Model string
	// Dimensions asks the model for a specific vector length; 0 keeps the
	// model default.
	Dimensions int
	// Azure switches to Azure-style auth and deployment URLs.
	Azure bool
	// APIVersion is the api-version query value for Azure requests.
	APIVersion string
}

// NewOpenAIEmbedder constructs an OpenAIEmbedder from cfg.
func NewOpenAIEmbedder(cfg *OpenAIConfig) *OpenAIEmbedder {
	return &OpenAIEmbedder{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		dim:        cfg.Dimensions,
		azure:      cfg.Azure,
		apiVersion: cfg.APIVersion,
		client:     &http.Client{Timeout: 30 * time.Second},
	}
}

// Dimensions returns the configured output vector length.
func (e *OpenAIEmbedder) Dimensions() int { return e.dim }

// embedURL is the request URL for one embeddings call. Azure routes per
// deployment and versions the API through a query parameter.
func (e *OpenAIEmbedder) embedURL() string {
	if e.azure {
		return e.baseURL + "/deployments/" + e.model + "/embeddings?api-version=" + e.apiVersion
	}
	return e.baseURL + "/embeddings"
}

// authHeader is the authentication header for this embedder's API flavor.
func (e *OpenAIEmbedder) authHeader() map[string]string {
	if e.azure {
		return map[string]string{"api-key": e.apiKey}
	}
	return map[string]string{"Authorization": "Bearer " + e.apiKey}
}

// Embed encodes texts in one batch call. The result is parallel to texts
// even when the API returns embeddings out of order.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	in := struct {
		Input      []string `json:"input"`
		Model      string   `json:"model"`
		Dimensions int      `json:"dimensions,omitempty"`
	}{Input: texts, Model: e.model, Dimensions: e.dim}

	var out struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error,omitempty"`
	}

	status, err := postJSON(ctx, e.client, e.embedURL(), e.authHeader(), in, &out)
	if err != nil {
		return nil, fmt.Errorf("openai embedder: %w", err)
	}
	if status < 200 || status >= 300 {
		msg := fmt.Sprintf("HTTP %d", status)
		if out.Error != nil {
			msg = out.Error.Message
		}
		return nil, fmt.Errorf("openai embedder: %s", msg)
	}
	if len(out.Data) != len(texts) {
		return nil, fmt.Errorf("openai embedder: expected %d embeddings, got %d", len(texts), len(out.Data))
	}

	embeddings := make([][]float32, len(texts))
	for _, d := range out.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("openai embedder: index %d out of range [0, %d)", d.Index, len(texts))
		}
		embeddings[d.Index] = d.Embedding
	}
	return embeddings, nil
}
