package rag

import (
	"container/heap"
	"fmt"
)

// LinearIndex is a brute-force Index that computes the squared Euclidean
// distance from the query to every stored vector in pure Go. It needs no
// external library and serves as the fallback when the exact backend's
// accelerated kernels are unavailable.
type LinearIndex struct {
	// dim is the fixed vector length, set at construction.
	dim int
	// vecs holds the stored vectors in insertion order.
	vecs [][]float32
}

// NewLinearIndex constructs an empty LinearIndex of the given dimension.
func NewLinearIndex(dim int) (*LinearIndex, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("%w: index dimension must be positive, got %d", ErrConfig, dim)
	}
	return &LinearIndex{dim: dim}, nil
}

// Add appends vectors to the index. If any vector has the wrong dimension no
// vector is added.
func (x *LinearIndex) Add(vectors [][]float32) error {
	if err := checkDims(vectors, x.dim); err != nil {
		return err
	}
	x.vecs = appendCopies(x.vecs, vectors)
	return nil
}

// Search returns the k nearest stored vectors by squared Euclidean distance,
// selected via a bounded max-heap rather than a full sort. Ties go to the
// earlier inserted vector.
func (x *LinearIndex) Search(query []float32, k int) ([]Hit, error) {
	if len(query) != x.dim {
		return nil, fmt.Errorf("rag: query dimension %d does not match index dimension %d", len(query), x.dim)
	}
	return selectNearest(query, len(x.vecs), k, func(pos int) float32 {
		return sqEuclidean(query, x.vecs[pos])
	}), nil
}

// Len returns the number of stored vectors.
func (x *LinearIndex) Len() int { return len(x.vecs) }

// Dimensions returns the fixed vector length of this index.
func (x *LinearIndex) Dimensions() int { return x.dim }

// Reset discards all vectors, keeping the dimension.
func (x *LinearIndex) Reset() { x.vecs = nil }

// Save persists the index vectors to path.
func (x *LinearIndex) Save(path string) error {
	return writeVectorFile(path, x.dim, x.vecs)
}

// sqEuclidean returns the squared Euclidean distance between a and b.
// The accumulator is float64 to avoid drift on long vectors.
func sqEuclidean(a, b []float32) float32 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return float32(sum)
}

// checkDims verifies every vector has length dim before any mutation.
func checkDims(vectors [][]float32, dim int) error {
	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("rag: vector %d has dimension %d, want %d", i, len(v), dim)
		}
	}
	return nil
}

// appendCopies copies each vector before appending so later caller mutation
// cannot corrupt the index.
func appendCopies(dst, vectors [][]float32) [][]float32 {
	for _, v := range vectors {
		cp := make([]float32, len(v))
		copy(cp, v)
		dst = append(dst, cp)
	}
	return dst
}

// selectNearest runs partial selection of the k smallest distances over n
// candidate positions. distFn is called once per position in insertion order.
func selectNearest(query []float32, n, k int, distFn func(pos int) float32) []Hit {
	if k > n {
		k = n
	}
	if k <= 0 {
		return []Hit{}
	}

	h := make(hitHeap, 0, k)
	for pos := 0; pos < n; pos++ {
		d := distFn(pos)
		if len(h) < k {
			heap.Push(&h, Hit{Position: pos, Distance: d})
			continue
		}
		// Strict < keeps the earlier inserted vector on equal distance,
		// since positions are visited in ascending order.
		if d < h[0].Distance {
			h[0] = Hit{Position: pos, Distance: d}
			heap.Fix(&h, 0)
		}
	}

	out := make([]Hit, len(h))
	for i := len(h) - 1; i >= 0; i-- {
		out[i] = heap.Pop(&h).(Hit)
	}
	return out
}

// hitHeap is a max-heap of Hits ordered by distance, with the later inserted
// position treated as worse on equal distance so it is evicted first.
type hitHeap []Hit

func (h hitHeap) Len() int { return len(h) }

func (h hitHeap) Less(i, j int) bool {
	if h[i].Distance != h[j].Distance {
		return h[i].Distance > h[j].Distance
	}
	return h[i].Position > h[j].Position
}

func (h hitHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *hitHeap) Push(v any) { *h = append(*h, v.(Hit)) }

func (h *hitHeap) Pop() any {
	old := *h
	n := len(old)
	v := old[n-1]
	*h = old[:n-1]
	return v
}
