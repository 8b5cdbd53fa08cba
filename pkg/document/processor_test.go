package document

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ragcore/ragcore/internal/apierr"
	"github.com/ragcore/ragcore/pkg/index"
	"github.com/ragcore/ragcore/pkg/library"
	"github.com/stretchr/testify/require"
)

type stubEmbedder struct {
	dim     int
	failErr error
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if s.failErr != nil {
		return nil, s.failErr
	}
	v := make([]float32, s.dim)
	for i := range v {
		v[i] = float32(len(text) + i)
	}
	return v, nil
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if s.failErr != nil {
		return nil, s.failErr
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, _ := s.Embed(ctx, text)
		out[i] = v
	}
	return out, nil
}

func (s *stubEmbedder) Dim() int { return s.dim }

func newTestLib(t *testing.T) *library.Library {
	t.Helper()
	lib, err := library.New("lib1", "test", index.Naive, index.Params{}, library.Metadata{CreationTime: time.Now()}, nil)
	require.NoError(t, err)
	return lib
}

func TestProcessInstallsChunks(t *testing.T) {
	lib := newTestLib(t)
	embedder := &stubEmbedder{dim: 4}

	installed, err := Process(context.Background(), lib, embedder, Request{
		DocumentID: "doc1",
		Text:       "the quick brown fox jumps over the lazy dog",
		ChunkSize:  20,
	})
	require.NoError(t, err)
	require.NotEmpty(t, installed)
	require.Equal(t, len(installed), lib.Size())
	for _, c := range installed {
		require.Equal(t, "doc1", c.DocumentID)
	}
}

func TestProcessEmptyTextInstallsNothing(t *testing.T) {
	lib := newTestLib(t)
	embedder := &stubEmbedder{dim: 4}

	installed, err := Process(context.Background(), lib, embedder, Request{
		DocumentID: "doc1",
		Text:       "",
		ChunkSize:  20,
	})
	require.NoError(t, err)
	require.Empty(t, installed)
	require.Equal(t, 0, lib.Size())
}

func TestProcessSurfacesEmbeddingProviderError(t *testing.T) {
	lib := newTestLib(t)
	embedder := &stubEmbedder{dim: 4, failErr: errors.New("upstream down")}

	_, err := Process(context.Background(), lib, embedder, Request{
		DocumentID: "doc1",
		Text:       "hello world",
		ChunkSize:  20,
	})
	require.ErrorIs(t, err, apierr.ErrEmbeddingProvider)
	require.Equal(t, 0, lib.Size())
}

func TestProcessUpdateReplacesExistingChunks(t *testing.T) {
	lib := newTestLib(t)
	embedder := &stubEmbedder{dim: 4}

	_, err := Process(context.Background(), lib, embedder, Request{
		DocumentID: "doc1",
		Text:       "original document text here",
		ChunkSize:  15,
	})
	require.NoError(t, err)
	firstCount := lib.Size()
	require.Greater(t, firstCount, 0)

	installed, err := Process(context.Background(), lib, embedder, Request{
		DocumentID: "doc1",
		Text:       "brand new replacement text",
		ChunkSize:  15,
		IsUpdate:   true,
	})
	require.NoError(t, err)
	require.Equal(t, len(installed), lib.Size())
	for _, c := range installed {
		require.Contains(t, "brand new replacement text", c.Text)
	}
}

func TestProcessUpdateToEmptyTextRemovesDocument(t *testing.T) {
	lib := newTestLib(t)
	embedder := &stubEmbedder{dim: 4}

	_, err := Process(context.Background(), lib, embedder, Request{
		DocumentID: "doc1",
		Text:       "some content",
		ChunkSize:  15,
	})
	require.NoError(t, err)
	require.Greater(t, lib.Size(), 0)

	_, err = Process(context.Background(), lib, embedder, Request{
		DocumentID: "doc1",
		Text:       "",
		ChunkSize:  15,
		IsUpdate:   true,
	})
	require.NoError(t, err)
	require.Equal(t, 0, lib.Size())
}
