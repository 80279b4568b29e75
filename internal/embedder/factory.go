// Package embedder provides implementations of the rag.Embedder interface.
// The local backend is a self-contained hashed embedder; the ollama, openai,
// and azure backends talk to a semantic embedding model via plain HTTP — no
// additional SDK dependencies are required.
package embedder

import (
	"fmt"
	"os"
	"strconv"

	"github.com/dsla-ai/dsla/internal/rag"
)

// Backend selector values accepted by New.
const (
	// BackendLocal is the deterministic hashed fallback embedder.
	BackendLocal = "local"
	// BackendOllama embeds via a local Ollama server.
	BackendOllama = "ollama"
	// BackendOpenAI embeds via the OpenAI embeddings API.
	BackendOpenAI = "openai"
	// BackendAzure embeds via an Azure OpenAI deployment.
	BackendAzure = "azure"
)

// Default embedding models and dimensions per backend.
const (
	defaultOllamaModel = "nomic-embed-text"
	defaultOpenAIModel = "text-embedding-3-small"

	// defaultOllamaDimensions is the output dimension of nomic-embed-text.
	// Other Ollama models may differ — override with EMBEDDING_DIMENSIONS.
	defaultOllamaDimensions = 768
	// defaultOpenAIDimensions is the output dimension of text-embedding-3-small.
	defaultOpenAIDimensions = 1536
)

// Config holds the settings consumed by New.
type Config struct {
	// Backend selects the embedder: local, ollama, openai, azure.
	// Empty defaults to local.
	Backend string
	// Model is the embedding model name for semantic backends.
	Model string
	// Dimensions overrides the backend's default vector size. For the local
	// backend this is the vector size itself (default 384).
	Dimensions int
	// APIKey authenticates openai/azure requests.
	APIKey string
	// Endpoint overrides the backend's default API endpoint.
	Endpoint string
	// APIVersion is the Azure OpenAI API version query parameter.
	APIVersion string
}

// New constructs a rag.Embedder from cfg. A semantic backend with missing
// credentials or endpoint fails here, at construction — it never degrades to
// the local fallback. An unknown backend name also fails construction.
func New(cfg *Config) (rag.Embedder, error) {
	if cfg == nil {
		cfg = &Config{}
	}

	backend := cfg.Backend
	if backend == "" {
		backend = BackendLocal
	}

	switch backend {
	case BackendLocal:
		dims := cfg.Dimensions
		if dims == 0 {
			dims = DefaultLocalDimensions
		}
		return NewLocalEmbedder(dims)

	case BackendOllama:
		host := cfg.Endpoint
		if host == "" {
			host = "http://localhost:11434"
		}
		model := cfg.Model
		if model == "" {
			model = defaultOllamaModel
		}
		dims := cfg.Dimensions
		if dims == 0 {
			dims = defaultOllamaDimensions
		}
		return NewOllamaEmbedder(&OllamaConfig{
			Host:       host,
			Model:      model,
			Dimensions: dims,
		}), nil

	case BackendOpenAI:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("embedder: openai requires an API key — set EMBEDDING_API_KEY or OPENAI_API_KEY")
		}
		baseURL := cfg.Endpoint
		if baseURL == "" {
			baseURL = "https://api.openai.com/v1"
		}
		model := cfg.Model
		if model == "" {
			model = defaultOpenAIModel
		}
		dims := cfg.Dimensions
		if dims == 0 {
			dims = defaultOpenAIDimensions
		}
		return NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    baseURL,
			APIKey:     cfg.APIKey,
			Model:      model,
			Dimensions: dims,
		}), nil

	case BackendAzure:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("embedder: azure requires an API key — set EMBEDDING_API_KEY or AZURE_OPENAI_API_KEY")
		}
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("embedder: azure requires an endpoint — set EMBEDDING_ENDPOINT or AZURE_OPENAI_ENDPOINT")
		}
		apiVersion := cfg.APIVersion
		if apiVersion == "" {
			apiVersion = "2025-04-01-preview"
		}
		model := cfg.Model
		if model == "" {
			model = defaultOpenAIModel
		}
		dims := cfg.Dimensions
		if dims == 0 {
			dims = defaultOpenAIDimensions
		}
		return NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    cfg.Endpoint + "/openai",
			APIKey:     cfg.APIKey,
			Model:      model,
			Dimensions: dims,
			Azure:      true,
			APIVersion: apiVersion,
		}), nil

	default:
		return nil, fmt.Errorf("embedder: unknown backend %q — valid values: local, ollama, openai, azure", backend)
	}
}

// ConfigFromEnv resolves an embedder Config from environment variables.
//
// Resolution order:
//
//  1. EMBEDDING_BACKEND — local (default), ollama, openai, azure
//  2. EMBEDDING_MODEL — overrides the default model for the backend
//  3. EMBEDDING_DIMENSIONS — overrides the default dimensions
//  4. EMBEDDING_API_KEY — falls back to OPENAI_API_KEY / AZURE_OPENAI_API_KEY
//  5. EMBEDDING_ENDPOINT — falls back to OLLAMA_HOST / AZURE_OPENAI_ENDPOINT
func ConfigFromEnv() *Config {
	backend := getEnvOrDefault("EMBEDDING_BACKEND", BackendLocal)

	cfg := &Config{
		Backend:    backend,
		Model:      getEnv("EMBEDDING_MODEL"),
		Dimensions: getEnvInt("EMBEDDING_DIMENSIONS", 0),
		APIKey:     getEnv("EMBEDDING_API_KEY"),
		Endpoint:   getEnv("EMBEDDING_ENDPOINT"),
		APIVersion: getEnv("AZURE_OPENAI_API_VERSION"),
	}

	switch backend {
	case BackendOllama:
		if cfg.Endpoint == "" {
			cfg.Endpoint = getEnv("OLLAMA_HOST")
		}
	case BackendOpenAI:
		if cfg.APIKey == "" {
			cfg.APIKey = getEnv("OPENAI_API_KEY")
		}
	case BackendAzure:
		if cfg.APIKey == "" {
			cfg.APIKey = getEnv("AZURE_OPENAI_API_KEY")
		}
		if cfg.Endpoint == "" {
			cfg.Endpoint = getEnv("AZURE_OPENAI_ENDPOINT")
		}
	}

	return cfg
}

// getEnv returns the value of the named environment variable, or empty string.
func getEnv(key string) string {
	return os.Getenv(key)
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
