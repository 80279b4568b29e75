package rag

import (
	"errors"
	"math"
	"testing"
)

// newTestIndexes returns one instance of each index variant at the given
// dimension so shared behavior can be verified against both.
func newTestIndexes(t *testing.T, dim int) map[string]Index {
	t.Helper()
	linear, err := NewLinearIndex(dim)
	if err != nil {
		t.Fatalf("new linear index: %v", err)
	}
	exact, err := NewExactIndex(dim)
	if err != nil {
		t.Fatalf("new exact index: %v", err)
	}
	return map[string]Index{"linear": linear, "exact": exact}
}

func Test_Index_RejectsNonPositiveDimension(t *testing.T) {
	t.Parallel()
	if _, err := NewLinearIndex(0); !errors.Is(err, ErrConfig) {
		t.Errorf("linear: want ErrConfig, got %v", err)
	}
	if _, err := NewExactIndex(-1); !errors.Is(err, ErrConfig) {
		t.Errorf("exact: want ErrConfig, got %v", err)
	}
}

func Test_Index_SearchOrdersByDistance(t *testing.T) {
	t.Parallel()
	for name, idx := range newTestIndexes(t, 2) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			err := idx.Add([][]float32{
				{10, 0}, // far
				{1, 0},  // near
				{4, 0},  // middle
			})
			if err != nil {
				t.Fatalf("add: %v", err)
			}

			hits, err := idx.Search([]float32{0, 0}, 3)
			if err != nil {
				t.Fatalf("search: %v", err)
			}
			if len(hits) != 3 {
				t.Fatalf("want 3 hits, got %d", len(hits))
			}

			wantOrder := []int{1, 2, 0}
			wantDist := []float32{1, 16, 100}
			for i, h := range hits {
				if h.Position != wantOrder[i] {
					t.Errorf("hit %d: want position %d, got %d", i, wantOrder[i], h.Position)
				}
				if math.Abs(float64(h.Distance-wantDist[i])) > 1e-3 {
					t.Errorf("hit %d: want distance %v, got %v", i, wantDist[i], h.Distance)
				}
			}
		})
	}
}

func Test_Index_SearchClampsToStoredCount(t *testing.T) {
	t.Parallel()
	for name, idx := range newTestIndexes(t, 2) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if err := idx.Add([][]float32{{1, 0}, {2, 0}}); err != nil {
				t.Fatalf("add: %v", err)
			}

			hits, err := idx.Search([]float32{0, 0}, 10)
			if err != nil {
				t.Fatalf("search: %v", err)
			}
			if len(hits) != 2 {
				t.Errorf("want 2 hits, got %d", len(hits))
			}
		})
	}
}

func Test_Index_TieGoesToEarlierInserted(t *testing.T) {
	t.Parallel()
	for name, idx := range newTestIndexes(t, 2) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			// Positions 0 and 1 are equidistant from the query.
			err := idx.Add([][]float32{
				{1, 0},
				{-1, 0},
				{5, 0},
			})
			if err != nil {
				t.Fatalf("add: %v", err)
			}

			hits, err := idx.Search([]float32{0, 0}, 1)
			if err != nil {
				t.Fatalf("search: %v", err)
			}
			if len(hits) != 1 {
				t.Fatalf("want 1 hit, got %d", len(hits))
			}
			if hits[0].Position != 0 {
				t.Errorf("tie should go to position 0, got %d", hits[0].Position)
			}
		})
	}
}

func Test_Index_AddIsAllOrNothing(t *testing.T) {
	t.Parallel()
	for name, idx := range newTestIndexes(t, 3) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			err := idx.Add([][]float32{
				{1, 2, 3},
				{1, 2}, // wrong dimension
			})
			if err == nil {
				t.Fatal("want error for mixed-dimension batch")
			}
			if idx.Len() != 0 {
				t.Errorf("failed batch must not add anything, index holds %d", idx.Len())
			}
		})
	}
}

func Test_Index_QueryDimensionMismatch(t *testing.T) {
	t.Parallel()
	for name, idx := range newTestIndexes(t, 4) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if _, err := idx.Search([]float32{1, 2}, 1); err == nil {
				t.Error("want error for query dimension mismatch")
			}
		})
	}
}

func Test_Index_ResetKeepsDimension(t *testing.T) {
	t.Parallel()
	for name, idx := range newTestIndexes(t, 2) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if err := idx.Add([][]float32{{1, 1}}); err != nil {
				t.Fatalf("add: %v", err)
			}
			idx.Reset()
			if idx.Len() != 0 {
				t.Errorf("want empty index after reset, got %d", idx.Len())
			}
			if idx.Dimensions() != 2 {
				t.Errorf("reset must keep dimension, got %d", idx.Dimensions())
			}
			if err := idx.Add([][]float32{{2, 2}}); err != nil {
				t.Errorf("add after reset: %v", err)
			}
		})
	}
}

func Test_Index_StoredVectorsAreCopies(t *testing.T) {
	t.Parallel()
	idx, err := NewLinearIndex(2)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	v := []float32{1, 0}
	if err := idx.Add([][]float32{v}); err != nil {
		t.Fatalf("add: %v", err)
	}
	v[0] = 1000 // caller mutates after Add

	hits, err := idx.Search([]float32{1, 0}, 1)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if hits[0].Distance != 0 {
		t.Errorf("index must store a copy; want distance 0, got %v", hits[0].Distance)
	}
}

func Test_Index_VariantsAgree(t *testing.T) {
	t.Parallel()
	vectors := [][]float32{
		{0.1, 0.9, 0.3},
		{0.8, 0.2, 0.5},
		{0.4, 0.4, 0.4},
		{0.9, 0.9, 0.1},
		{0.05, 0.85, 0.35},
	}
	query := []float32{0.1, 0.8, 0.3}

	linear, _ := NewLinearIndex(3)
	exact, _ := NewExactIndex(3)
	if err := linear.Add(vectors); err != nil {
		t.Fatalf("linear add: %v", err)
	}
	if err := exact.Add(vectors); err != nil {
		t.Fatalf("exact add: %v", err)
	}

	lh, err := linear.Search(query, 3)
	if err != nil {
		t.Fatalf("linear search: %v", err)
	}
	eh, err := exact.Search(query, 3)
	if err != nil {
		t.Fatalf("exact search: %v", err)
	}

	if len(lh) != len(eh) {
		t.Fatalf("hit count differs: linear %d, exact %d", len(lh), len(eh))
	}
	for i := range lh {
		if lh[i].Position != eh[i].Position {
			t.Errorf("hit %d: linear position %d, exact position %d", i, lh[i].Position, eh[i].Position)
		}
		if math.Abs(float64(lh[i].Distance-eh[i].Distance)) > 1e-4 {
			t.Errorf("hit %d: linear distance %v, exact distance %v", i, lh[i].Distance, eh[i].Distance)
		}
	}
}
