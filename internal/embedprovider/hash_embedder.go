package embedprovider

import (
	"context"
	"hash/fnv"
	"math/rand"
)

// HashEmbedder produces deterministic pseudo-embeddings from a hash of
// the input text, seeding a per-text RNG so the same text always yields
// the same vector. It never calls out to a network and never fails on
// non-empty input; used for tests and the CLI demo in place of a live
// embedding model.
type HashEmbedder struct {
	dim int
}

// NewHashEmbedder creates a deterministic stub embedder producing
// dim-dimensional vectors.
func NewHashEmbedder(dim int) *HashEmbedder {
	return &HashEmbedder{dim: dim}
}

func (h *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	hasher := fnv.New64a()
	_, _ = hasher.Write([]byte(text))
	seed := int64(hasher.Sum64())

	rng := rand.New(rand.NewSource(seed))
	v := make([]float32, h.dim)
	for i := range v {
		v[i] = float32(rng.NormFloat64())
	}
	return v, nil
}

func (h *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := h.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (h *HashEmbedder) Dim() int { return h.dim }
