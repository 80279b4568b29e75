package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
)

// defaultTopK is the number of results returned when the caller passes a
// non-positive top-k.
const defaultTopK = 5

// record is one stored document. Text, metadata, and the vector at the same
// index position form a single unit, so the store/index alignment invariant
// is structural rather than kept by convention.
type record struct {
	// Text is the document text as supplied at Add time.
	Text string `json:"text"`
	// Metadata holds arbitrary key-value pairs supplied at Add time.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Config holds the settings for constructing an Engine.
type Config struct {
	// Embedder converts documents and queries to vectors. Required.
	Embedder Embedder
	// IndexPath is the base path for persistence. Save writes
	// <IndexPath>.index (vectors) and <IndexPath>.docs.json (documents);
	// construction loads them when the index file exists. Required.
	IndexPath string
	// Backend selects the index implementation. Empty defaults to
	// BackendExact. When the exact backend's accelerated kernels are
	// unavailable the engine degrades to BackendLinear and records it.
	Backend BackendKind
	// Logger is the structured logger. If nil, slog.Default is used.
	Logger *slog.Logger
}

// Engine is the retrieval engine: it owns the document records and the
// vector index as one unit and keeps them aligned across every mutation.
//
// The Engine performs no internal locking. Concurrent mutating calls (Add,
// Clear, Save), or a mutation concurrent with Search, must be serialized by
// the caller.
type Engine struct {
	embedder  Embedder
	index     Index
	records   []record
	basePath  string
	requested BackendKind
	active    BackendKind
	log       *slog.Logger
}

// New constructs an Engine from cfg. When a previously saved index exists at
// cfg.IndexPath the engine starts populated from it; the persisted dimension
// must equal the configured embedder's dimension, otherwise construction
// fails with an error wrapping ErrConfig — the operator must rebuild the
// index or fix the embedding configuration, the mismatch is never coerced.
func New(cfg *Config) (*Engine, error) {
	if cfg == nil || cfg.Embedder == nil {
		return nil, fmt.Errorf("%w: embedder must not be nil", ErrConfig)
	}
	dim := cfg.Embedder.Dimensions()
	if dim <= 0 {
		return nil, fmt.Errorf("%w: embedder reports dimension %d, want > 0", ErrConfig, dim)
	}
	if cfg.IndexPath == "" {
		return nil, fmt.Errorf("%w: index path must not be empty", ErrConfig)
	}

	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	requested := cfg.Backend
	if requested == "" {
		requested = BackendExact
	}
	if requested != BackendExact && requested != BackendLinear {
		return nil, fmt.Errorf("%w: unknown index backend %q — valid values: exact, linear", ErrConfig, requested)
	}

	active := requested
	if requested == BackendExact && !exactAvailable() {
		active = BackendLinear
		log.Warn("rag: exact backend unavailable, degrading to linear scan",
			slog.String("requested", string(requested)),
		)
	}

	e := &Engine{
		embedder:  cfg.Embedder,
		basePath:  cfg.IndexPath,
		requested: requested,
		active:    active,
		log:       log,
	}

	if _, err := os.Stat(e.indexFile()); err == nil {
		if err := e.load(dim); err != nil {
			return nil, err
		}
	} else {
		idx, err := newIndex(active, dim)
		if err != nil {
			return nil, err
		}
		e.index = idx
	}

	return e, nil
}

// newIndex constructs an empty index of the given kind and dimension.
func newIndex(kind BackendKind, dim int) (Index, error) {
	if kind == BackendLinear {
		return NewLinearIndex(dim)
	}
	return NewExactIndex(dim)
}

// load restores the index vectors and document records from disk, verifying
// the dimension and store/index alignment before the engine becomes usable.
func (e *Engine) load(wantDim int) error {
	dim, vecs, err := readVectorFile(e.indexFile())
	if err != nil {
		return err
	}
	if dim != wantDim {
		return fmt.Errorf("%w: persisted index %s has dimension %d but the configured embedder produces dimension %d — rebuild the index or fix the embedding configuration",
			ErrConfig, e.indexFile(), dim, wantDim)
	}

	idx, err := newIndex(e.active, dim)
	if err != nil {
		return err
	}
	if err := idx.Add(vecs); err != nil {
		return err
	}

	var recs []record
	if len(vecs) > 0 {
		data, err := os.ReadFile(e.docsFile())
		if err != nil {
			return fmt.Errorf("%w: index %s holds %d vectors but its document file could not be read: %v",
				ErrConfig, e.indexFile(), len(vecs), err)
		}
		if err := json.Unmarshal(data, &recs); err != nil {
			return fmt.Errorf("rag: parse document file %s: %w", e.docsFile(), err)
		}
	}
	if len(recs) != len(vecs) {
		return fmt.Errorf("%w: document file %s holds %d records but index %s holds %d vectors",
			ErrConfig, e.docsFile(), len(recs), e.indexFile(), len(vecs))
	}

	e.index = idx
	e.records = recs
	e.log.Info("rag: index loaded",
		slog.String("path", e.indexFile()),
		slog.Int("documents", len(recs)),
		slog.Int("dimensions", dim),
		slog.String("backend", string(e.active)),
	)
	return nil
}

// Add encodes texts in one batch and appends them, with their metadata, to
// the index and document store. The operation is all-or-nothing: the index
// insertion commits before any record is appended, so a failure at any stage
// leaves the engine exactly as it was.
func (e *Engine) Add(ctx context.Context, texts []string, metadata []map[string]any) error {
	if len(texts) == 0 {
		return nil
	}
	if metadata != nil && len(metadata) != len(texts) {
		return fmt.Errorf("rag: metadata length %d does not match documents length %d", len(metadata), len(texts))
	}

	vecs, err := e.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("rag: embedding documents failed: %w", err)
	}
	if len(vecs) != len(texts) {
		return fmt.Errorf("rag: embedder returned %d vectors for %d documents", len(vecs), len(texts))
	}

	if err := e.index.Add(vecs); err != nil {
		return err
	}

	for i, text := range texts {
		meta := map[string]any{}
		if metadata != nil && metadata[i] != nil {
			meta = metadata[i]
		}
		e.records = append(e.records, record{Text: text, Metadata: meta})
	}
	return nil
}

// Search encodes the query and returns up to topK documents ordered
// ascending by squared Euclidean distance. An empty engine returns an empty
// list, not an error. A non-positive topK falls back to a default of 5;
// larger values are clamped to the document count.
func (e *Engine) Search(ctx context.Context, query string, topK int) ([]Result, error) {
	if len(e.records) == 0 {
		return []Result{}, nil
	}
	if topK <= 0 {
		topK = defaultTopK
	}
	if topK > len(e.records) {
		topK = len(e.records)
	}

	vecs, err := e.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("rag: embedding query failed: %w", err)
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("rag: embedder returned empty result for query")
	}

	hits, err := e.index.Search(vecs[0], topK)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		rec := e.records[h.Position]
		results = append(results, Result{
			Text:     rec.Text,
			Distance: h.Distance,
			Metadata: rec.Metadata,
		})
	}
	return results, nil
}

// Embedding returns the raw embedding vector for a single text.
func (e *Engine) Embedding(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("rag: embedder returned %d vectors for 1 text", len(vecs))
	}
	return vecs[0], nil
}

// Embeddings returns the raw embedding vectors for a batch of texts.
func (e *Engine) Embeddings(ctx context.Context, texts []string) ([][]float32, error) {
	return e.embedder.Embed(ctx, texts)
}

// Save persists the index vectors and document records to the files derived
// from the configured base path, creating parent directories as needed.
func (e *Engine) Save() error {
	if err := e.index.Save(e.indexFile()); err != nil {
		return err
	}

	recs := e.records
	if recs == nil {
		recs = []record{}
	}
	data, err := json.Marshal(recs)
	if err != nil {
		return fmt.Errorf("rag: encode document file: %w", err)
	}
	if err := os.WriteFile(e.docsFile(), data, 0o644); err != nil {
		return fmt.Errorf("rag: write document file %s: %w", e.docsFile(), err)
	}

	e.log.Info("rag: index saved",
		slog.String("path", e.indexFile()),
		slog.Int("documents", len(e.records)),
	)
	return nil
}

// Clear resets the engine to empty at the same dimension. Previously saved
// files on disk are left untouched until the next Save.
func (e *Engine) Clear() {
	e.records = nil
	e.index.Reset()
}

// Len returns the number of indexed documents.
func (e *Engine) Len() int { return len(e.records) }

// Dimensions returns the embedding dimension shared by the embedder and index.
func (e *Engine) Dimensions() int { return e.index.Dimensions() }

// Backend returns the index backend actually in use.
func (e *Engine) Backend() BackendKind { return e.active }

// Degraded reports whether the requested exact backend was unavailable and
// the engine fell back to the linear scan.
func (e *Engine) Degraded() bool { return e.requested != e.active }

// indexFile is the vector file path derived from the configured base path.
func (e *Engine) indexFile() string { return e.basePath + ".index" }

// docsFile is the document file path derived from the configured base path.
func (e *Engine) docsFile() string { return e.basePath + ".docs.json" }
