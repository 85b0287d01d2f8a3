package inmem

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"strings"
	"unicode"
)

// HashEmbedder creates deterministic embeddings without a network call.
// Each lowercased token is hashed into one of Dimensions buckets with a
// signed weight, so texts sharing words land close together and identical
// texts always produce identical vectors. Vectors are unit length.
type HashEmbedder struct {
	Dimensions int
}

// NewHashEmbedder creates a HashEmbedder producing dims-length vectors.
func NewHashEmbedder(dims int) *HashEmbedder {
	return &HashEmbedder{Dimensions: dims}
}

// Embed implements memory.Embedder.
func (e *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vec := make([]float32, e.Dimensions)
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	if len(tokens) == 0 {
		tokens = []string{text}
	}
	for _, tok := range tokens {
		sum := sha256.Sum256([]byte(tok))
		idx := binary.BigEndian.Uint32(sum[0:4]) % uint32(e.Dimensions)
		weight := float32(1)
		if sum[4]&1 == 1 {
			weight = -1
		}
		vec[idx] += weight
	}

	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	norm = float32(math.Sqrt(float64(norm)))
	if norm > 0 {
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec, nil
}
