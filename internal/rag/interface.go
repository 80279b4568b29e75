// Package rag implements the retrieval core of DSLA: encoding text to
// embedding vectors, maintaining an exact nearest-neighbor index, and serving
// ranked similarity queries. The Engine orchestrates an Embedder and an Index
// together with the document store so that collaborators (router, adapters,
// HTTP layer) only ever hand it strings with metadata and get ranked results
// back.
//
// The engine is single-threaded by contract: no operation spawns goroutines,
// retries, or takes locks internally. Callers that share an Engine across
// goroutines must serialize mutating calls themselves.
package rag

import (
	"context"
	"errors"
)

// ErrConfig marks fatal configuration errors: an unknown backend selector, a
// dimension mismatch between a persisted index and the configured embedder,
// or an invalid numeric setting. Errors wrapping ErrConfig are raised at
// construction or load time and are never auto-healed.
var ErrConfig = errors.New("rag: configuration error")

// Embedder converts text into fixed-length dense vectors. Implementations
// live in internal/embedder; the engine never depends on a specific backend.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice and every vector has
	// length Dimensions().
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the fixed length of every vector this embedder
	// produces. It must be known at construction time.
	Dimensions() int
}

// Hit is a single nearest-neighbor match returned by an Index.
type Hit struct {
	// Position is the vector's insertion position within the index.
	Position int
	// Distance is the squared Euclidean distance to the query vector.
	Distance float32
}

// Index stores embedding vectors and answers k-nearest queries by squared
// Euclidean distance. Implementations grow only by Add and reset only by
// Reset — no per-vector deletion exists.
type Index interface {
	// Add appends a batch of vectors. The operation is all-or-nothing: if any
	// vector has the wrong dimension, no vector is added.
	Add(vectors [][]float32) error

	// Search returns up to k hits ordered ascending by distance. Ties are
	// broken by insertion position (earlier inserted wins). k is clamped to
	// the current vector count.
	Search(query []float32, k int) ([]Hit, error)

	// Len returns the number of stored vectors.
	Len() int

	// Dimensions returns the fixed vector length of this index.
	Dimensions() int

	// Reset discards all vectors, keeping the dimension.
	Reset()

	// Save persists the index vectors to the given file path, creating
	// parent directories as needed.
	Save(path string) error
}

// Result is one ranked document returned by Engine.Search, ascending by
// Distance. Distance is squared Euclidean — an unbounded metric, not a
// similarity score or probability.
type Result struct {
	// Text is the stored document text.
	Text string `json:"text"`
	// Distance is the squared Euclidean distance to the query embedding.
	Distance float32 `json:"distance"`
	// Metadata is the document's metadata as supplied at Add time.
	Metadata map[string]any `json:"metadata"`
}

// BackendKind selects an Index implementation.
type BackendKind string

const (
	// BackendExact is the exhaustive index backed by the accelerated
	// viant/vec distance kernels.
	BackendExact BackendKind = "exact"
	// BackendLinear is the pure-Go brute-force index.
	BackendLinear BackendKind = "linear"
)
