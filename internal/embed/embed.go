// Package embed provides text embedding for the personalized recommender.
// Two providers are available: a deterministic hash embedder that needs no
// model files, and a local GGUF model via hybridgroup/yzma (build with
// -tags llamacpp).
package embed

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math/rand/v2"

	"github.com/mimus-sim/mimus/internal/vecmath"
)

// Func produces a dense vector for a piece of text.
type Func func(ctx context.Context, text string) ([]float32, error)

// DefaultHashDim is the vector width of the hash embedder.
const DefaultHashDim = 64

// Hasher is a deterministic pseudo-embedder. Equal texts always map to
// the same unit vector; unrelated texts map to effectively independent
// ones. It carries no semantic signal but keeps the personalized
// recommender fully exercisable without a model file.
type Hasher struct {
	dim int
}

// NewHasher creates a hash embedder producing vectors of the given
// width. Non-positive widths fall back to DefaultHashDim.
func NewHasher(dim int) *Hasher {
	if dim <= 0 {
		dim = DefaultHashDim
	}
	return &Hasher{dim: dim}
}

// Embed returns the unit vector derived from the text's digest.
func (h *Hasher) Embed(ctx context.Context, text string) ([]float32, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	sum := sha256.Sum256([]byte(text))
	rng := rand.New(rand.NewPCG(
		binary.LittleEndian.Uint64(sum[0:8]),
		binary.LittleEndian.Uint64(sum[8:16]),
	))

	vec := make([]float32, h.dim)
	for i := range vec {
		vec[i] = float32(rng.Float64()*2 - 1)
	}
	vecmath.Normalize(vec)
	return vec, nil
}
