// Package embedprovider implements the embedding provider collaborator
// (§6): converting chunk text into dense vectors. The core (pkg/document,
// pkg/library) depends only on the Embedder interface; this package
// supplies the concrete implementations.
package embedprovider

import (
	"context"
	"fmt"

	"github.com/ragcore/ragcore/internal/apierr"
	"golang.org/x/sync/errgroup"
)

// Embedder converts text to vectors. Embed and EmbedBatch return vectors
// of the same length and order as their input; any failure is surfaced
// as apierr.ErrEmbeddingProvider.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dim() int
}

// BaseEmbedder supplies EmbedBatch for any provider whose native API is
// single-text, fanning requests out concurrently with errgroup rather
// than a raw channel loop.
type BaseEmbedder struct {
	embedFn     func(ctx context.Context, text string) ([]float32, error)
	dim         int
	maxInFlight int
}

// NewBaseEmbedder wraps embedFn with a concurrent batch implementation.
// maxInFlight <= 0 means unbounded concurrency.
func NewBaseEmbedder(dim int, maxInFlight int, embedFn func(ctx context.Context, text string) ([]float32, error)) *BaseEmbedder {
	return &BaseEmbedder{embedFn: embedFn, dim: dim, maxInFlight: maxInFlight}
}

func (b *BaseEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := b.embedFn(ctx, text)
	if err != nil {
		return nil, apierr.Wrap("embedprovider.embed", fmt.Errorf("%w: %v", apierr.ErrEmbeddingProvider, err))
	}
	return vec, nil
}

func (b *BaseEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	if b.maxInFlight > 0 {
		g.SetLimit(b.maxInFlight)
	}

	for i, text := range texts {
		i, text := i, text
		g.Go(func() error {
			vec, err := b.embedFn(gctx, text)
			if err != nil {
				return err
			}
			results[i] = vec
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, apierr.Wrap("embedprovider.embed_batch", fmt.Errorf("%w: %v", apierr.ErrEmbeddingProvider, err))
	}
	return results, nil
}

func (b *BaseEmbedder) Dim() int { return b.dim }
