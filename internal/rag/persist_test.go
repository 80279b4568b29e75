package rag

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

func Test_VectorFile_RoundTrip(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nested", "dir", "vectors.index")

	want := [][]float32{
		{1.5, -2.25, 0},
		{0.001, 42, -7},
	}
	if err := writeVectorFile(path, 3, want); err != nil {
		t.Fatalf("write: %v", err)
	}

	dim, got, err := readVectorFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if dim != 3 {
		t.Errorf("want dimension 3, got %d", dim)
	}
	if len(got) != len(want) {
		t.Fatalf("want %d vectors, got %d", len(want), len(got))
	}
	for i := range want {
		for j := range want[i] {
			if got[i][j] != want[i][j] {
				t.Errorf("vector %d[%d]: want %v, got %v", i, j, want[i][j], got[i][j])
			}
		}
	}
}

func Test_VectorFile_EmptyIndex(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "empty.index")

	if err := writeVectorFile(path, 16, nil); err != nil {
		t.Fatalf("write: %v", err)
	}
	dim, vecs, err := readVectorFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if dim != 16 || len(vecs) != 0 {
		t.Errorf("want dim 16 and 0 vectors, got dim %d and %d vectors", dim, len(vecs))
	}
}

func Test_VectorFile_TruncatedFails(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "truncated.index")

	if err := writeVectorFile(path, 4, [][]float32{{1, 2, 3, 4}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if err := os.WriteFile(path, data[:len(data)-6], 0o644); err != nil {
		t.Fatalf("truncate: %v", err)
	}

	if _, _, err := readVectorFile(path); err == nil {
		t.Error("want error for truncated file")
	}
}

func Test_VectorFile_OversizedHeaderFails(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "oversized.index")

	// A header claiming 4 billion vectors of 4 billion dimensions must be
	// rejected from the byte count alone, without attempting the allocation.
	header := make([]byte, 8, 16)
	binary.LittleEndian.PutUint32(header[0:4], 0xFFFFFFFF)
	binary.LittleEndian.PutUint32(header[4:8], 0xFFFFFFFF)
	header = append(header, 1, 2, 3, 4)
	if err := os.WriteFile(path, header, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, _, err := readVectorFile(path); err == nil {
		t.Error("want error for oversized header")
	}
}

func Test_VectorFile_MissingFails(t *testing.T) {
	t.Parallel()
	if _, _, err := readVectorFile(filepath.Join(t.TempDir(), "absent.index")); err == nil {
		t.Error("want error for missing file")
	}
}
