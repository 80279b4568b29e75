package rag

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
)

// Vector file layout, little-endian: dim uint32, count uint32, then
// count*dim float32 values. The same codec serves both index variants so an
// index written by one can be loaded into the other.

// writeVectorFile persists dim and vecs to path, creating parent directories.
func writeVectorFile(path string, dim int, vecs [][]float32) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("rag: create index directory: %w", err)
	}

	buf := make([]byte, 0, 8+4*dim*len(vecs))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(dim))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(vecs)))
	for _, v := range vecs {
		for _, f := range v {
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(f))
		}
	}

	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("rag: write index file %s: %w", path, err)
	}
	return nil
}

// readVectorFile loads a vector file written by writeVectorFile and returns
// the dimension and the stored vectors.
func readVectorFile(path string) (int, [][]float32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, nil, fmt.Errorf("rag: read index file %s: %w", path, err)
	}
	if len(data) < 8 {
		return 0, nil, fmt.Errorf("rag: index file %s is truncated", path)
	}

	dim := int(binary.LittleEndian.Uint32(data[0:4]))
	count := int(binary.LittleEndian.Uint32(data[4:8]))
	if dim <= 0 && count > 0 {
		return 0, nil, fmt.Errorf("rag: index file %s has invalid dimension %d", path, dim)
	}
	// Bound count by the bytes actually present before allocating: the
	// header fields are untrusted and 4*dim*count can overflow.
	if count > 0 && count > (len(data)-8)/(4*dim) {
		return 0, nil, fmt.Errorf("rag: index file %s is truncated: %d bytes cannot hold %d vectors of dimension %d",
			path, len(data), count, dim)
	}

	off := 8
	vecs := make([][]float32, count)
	for i := 0; i < count; i++ {
		v := make([]float32, dim)
		for j := 0; j < dim; j++ {
			v[j] = math.Float32frombits(binary.LittleEndian.Uint32(data[off : off+4]))
			off += 4
		}
		vecs[i] = v
	}
	return dim, vecs, nil
}
