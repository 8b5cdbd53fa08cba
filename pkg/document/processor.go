package document

import (
	"context"
	"fmt"

	"github.com/ragcore/ragcore/internal/apierr"
	"github.com/ragcore/ragcore/pkg/chunkstore"
	"github.com/ragcore/ragcore/pkg/library"
)

// Embedder is the external embedding collaborator (§6). The processor
// depends only on this interface, never on a concrete provider.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dim() int
}

// Request describes one document processor invocation (§4.5).
type Request struct {
	DocumentID string
	Text       string
	ChunkSize  int
	Metadata   map[string]string
	// IsUpdate, when true, replaces any prior chunks of DocumentID instead
	// of adding alongside them.
	IsUpdate bool
}

// Process splits text into chunks, embeds them in one batch, and
// atomically installs the resulting chunk set into lib (§4.5). Returns
// the installed chunk records.
func Process(ctx context.Context, lib *library.Library, embedder Embedder, req Request) ([]chunkstore.Chunk, error) {
	texts := Split(req.Text, req.ChunkSize)
	if len(texts) == 0 {
		if req.IsUpdate {
			lib.RemoveDocument(req.DocumentID)
		}
		return nil, nil
	}

	select {
	case <-ctx.Done():
		return nil, apierr.Wrap("document.process", ctx.Err())
	default:
	}

	vectors, err := embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, apierr.Wrap("document.process", fmt.Errorf("%w: %v", apierr.ErrEmbeddingProvider, err))
	}
	if len(vectors) != len(texts) {
		return nil, apierr.Wrap("document.process",
			fmt.Errorf("%w: embedder returned %d vectors for %d chunks", apierr.ErrEmbeddingProvider, len(vectors), len(texts)))
	}

	inputs := make([]library.ChunkInput, len(texts))
	for i, text := range texts {
		inputs[i] = library.ChunkInput{
			DocumentID: req.DocumentID,
			Text:       text,
			Embedding:  vectors[i],
			Metadata:   req.Metadata,
		}
	}

	select {
	case <-ctx.Done():
		return nil, apierr.Wrap("document.process", ctx.Err())
	default:
	}

	if req.IsUpdate {
		return lib.ReplaceDocumentChunks(req.DocumentID, inputs)
	}
	return lib.AddChunks(inputs)
}
