package rag

import (
	"fmt"
	"math"
	"sync"

	"github.com/viant/vec/search"
)

// ExactIndex is an exhaustive Index that delegates distance computation to
// the SIMD-accelerated kernels in github.com/viant/vec. Results are exact —
// the acceleration changes the arithmetic path, not the answer set.
type ExactIndex struct {
	// dim is the fixed vector length, set at construction.
	dim int
	// vecs holds the stored vectors in insertion order.
	vecs [][]float32
}

// NewExactIndex constructs an empty ExactIndex of the given dimension.
func NewExactIndex(dim int) (*ExactIndex, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("%w: index dimension must be positive, got %d", ErrConfig, dim)
	}
	return &ExactIndex{dim: dim}, nil
}

// Add appends vectors to the index. If any vector has the wrong dimension no
// vector is added.
func (x *ExactIndex) Add(vectors [][]float32) error {
	if err := checkDims(vectors, x.dim); err != nil {
		return err
	}
	x.vecs = appendCopies(x.vecs, vectors)
	return nil
}

// Search returns the k nearest stored vectors by squared Euclidean distance,
// computed with the accelerated kernels. Ties go to the earlier inserted
// vector.
func (x *ExactIndex) Search(query []float32, k int) ([]Hit, error) {
	if len(query) != x.dim {
		return nil, fmt.Errorf("rag: query dimension %d does not match index dimension %d", len(query), x.dim)
	}
	q := search.Float32s(query)
	return selectNearest(query, len(x.vecs), k, func(pos int) float32 {
		d := q.EuclideanDistance(x.vecs[pos])
		return d * d
	}), nil
}

// Len returns the number of stored vectors.
func (x *ExactIndex) Len() int { return len(x.vecs) }

// Dimensions returns the fixed vector length of this index.
func (x *ExactIndex) Dimensions() int { return x.dim }

// Reset discards all vectors, keeping the dimension.
func (x *ExactIndex) Reset() { x.vecs = nil }

// Save persists the index vectors to path.
func (x *ExactIndex) Save(path string) error {
	return writeVectorFile(path, x.dim, x.vecs)
}

// exactAvailable reports whether the accelerated kernels produce usable
// results on this CPU. The probe runs once per process: a known distance is
// computed and compared against its closed form. When the probe fails, a
// requested exact backend degrades to LinearIndex and the Engine records the
// degradation in a queryable flag.
var exactAvailable = sync.OnceValue(func() bool {
	a := search.Float32s([]float32{3, 0, 0, 0})
	d := float64(a.EuclideanDistance([]float32{0, 4, 0, 0}))
	return !math.IsNaN(d) && math.Abs(d-5) < 1e-3
})
