package embedder

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// DefaultLocalDimensions is the default vector size of the local embedder.
const DefaultLocalDimensions = 384

// localDigestSize is the BLAKE2b output length in bytes. The first four
// bytes select the bucket, the fifth byte's low bit selects the sign.
const localDigestSize = 8

// LocalEmbedder is a deterministic hashed bag-of-tokens embedder with no
// external dependency: each token is hashed with BLAKE2b and accumulated
// into a signed bucket, then the vector is L2-normalized. It is a
// development/offline fallback only — the output carries no semantic
// similarity guarantee and must not be used where embedding quality matters.
//
// The encoding is order-independent and collision-tolerant: repeated tokens
// and hash collisions accumulate in the same bucket and may cancel.
type LocalEmbedder struct {
	// dim is the fixed output vector length.
	dim int
}

// NewLocalEmbedder constructs a LocalEmbedder producing vectors of length dim.
func NewLocalEmbedder(dim int) (*LocalEmbedder, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("embedder: local embedding dimension must be positive, got %d", dim)
	}
	return &LocalEmbedder{dim: dim}, nil
}

// Dimensions returns the fixed output vector length.
func (e *LocalEmbedder) Dimensions() int { return e.dim }

// Embed encodes each text independently. The call never fails and is
// bit-deterministic: the same text always yields the same vector.
func (e *LocalEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = e.encode(text)
	}
	return out, nil
}

// encode maps one text to its hashed bag-of-tokens vector. A text with no
// alphanumeric or underscore characters encodes to the all-zero vector.
func (e *LocalEmbedder) encode(text string) []float32 {
	vec := make([]float32, e.dim)

	tokens := tokenize(strings.ToLower(text))
	if len(tokens) == 0 {
		return vec
	}

	for _, tok := range tokens {
		h, err := blake2b.New(localDigestSize, nil)
		if err != nil {
			// Unreachable: New fails only for oversized keys.
			panic(err)
		}
		h.Write([]byte(tok))
		digest := h.Sum(nil)

		bucket := binary.LittleEndian.Uint32(digest[0:4]) % uint32(e.dim)
		if digest[4]&1 == 0 {
			vec[bucket]++
		} else {
			vec[bucket]--
		}
	}

	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if norm := math.Sqrt(sum); norm > 0 {
		for i := range vec {
			vec[i] = float32(float64(vec[i]) / norm)
		}
	}
	return vec
}

// tokenize extracts maximal runs of ASCII letters, digits, and underscores.
// The input is expected to be lowercased already.
func tokenize(text string) []string {
	var tokens []string
	start := -1
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			tokens = append(tokens, text[start:i])
			start = -1
		}
	}
	if start >= 0 {
		tokens = append(tokens, text[start:])
	}
	return tokens
}
