// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"

	"github.com/pdiddy/evidence-engine/internal/lexicon"
)

// DefaultDimensions is the vector width of the hash embedder.
const DefaultDimensions = 384

// Hash is a deterministic bag-of-words embedder. Each token is hashed with
// SHA-256 into a signed bucket, so texts sharing words have positive cosine
// similarity. It needs no network and is used as the fallback backend.
type Hash struct {
	dims int
}

// NewHash creates a hash embedder; non-positive dims use DefaultDimensions.
func NewHash(dims int) *Hash {
	if dims <= 0 {
		dims = DefaultDimensions
	}
	return &Hash{dims: dims}
}

// Name implements Embedder.
func (h *Hash) Name() string { return "hash" }

// Embed implements Embedder. Empty text yields the zero vector.
func (h *Hash) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, h.dims)
	for _, tok := range lexicon.Tokenize(text) {
		sum := sha256.Sum256([]byte(tok))
		idx := binary.BigEndian.Uint32(sum[:4]) % uint32(h.dims)
		sign := float32(1)
		if sum[4]&1 == 1 {
			sign = -1
		}
		vec[idx] += sign
	}
	return normalize(vec), nil
}

func normalize(vec []float32) []float32 {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	n := float32(math.Sqrt(norm))
	for i := range vec {
		vec[i] /= n
	}
	return vec
}
