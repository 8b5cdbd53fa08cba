package chunkstore

import (
	"testing"

	"github.com/ragcore/ragcore/internal/apierr"
	"github.com/stretchr/testify/require"
)

func TestPutGetDelete(t *testing.T) {
	s := New()
	s.Put(Chunk{ID: "a", DocumentID: "doc1", Text: "hello"})

	got, err := s.Get("a")
	require.NoError(t, err)
	require.Equal(t, "hello", got.Text)

	require.True(t, s.Delete("a"))
	require.False(t, s.Delete("a"))

	_, err = s.Get("a")
	require.ErrorIs(t, err, apierr.ErrNotFound)
}

func TestIterIDsPreservesInsertionOrder(t *testing.T) {
	s := New()
	s.Put(Chunk{ID: "c", DocumentID: "doc1"})
	s.Put(Chunk{ID: "a", DocumentID: "doc1"})
	s.Put(Chunk{ID: "b", DocumentID: "doc1"})
	require.Equal(t, []string{"c", "a", "b"}, s.IterIDs())
}

func TestIterByDocument(t *testing.T) {
	s := New()
	s.Put(Chunk{ID: "a", DocumentID: "doc1"})
	s.Put(Chunk{ID: "b", DocumentID: "doc2"})
	s.Put(Chunk{ID: "c", DocumentID: "doc1"})

	require.Equal(t, []string{"a", "c"}, s.IterByDocument("doc1"))
	require.Equal(t, []string{"b"}, s.IterByDocument("doc2"))
	require.Empty(t, s.IterByDocument("missing"))
}

func TestCloneIsIndependent(t *testing.T) {
	s := New()
	s.Put(Chunk{ID: "a", Embedding: []float32{1, 2, 3}})

	clone := s.Clone()
	clone.Put(Chunk{ID: "b"})
	clone.records["a"] = Chunk{ID: "a", Embedding: []float32{9, 9, 9}}

	require.Equal(t, 1, s.Size())
	require.Equal(t, 2, clone.Size())

	original, err := s.Get("a")
	require.NoError(t, err)
	require.Equal(t, []float32{1, 2, 3}, original.Embedding)
}

func TestPutReplacesExistingWithoutDuplicatingOrder(t *testing.T) {
	s := New()
	s.Put(Chunk{ID: "a", Text: "v1"})
	s.Put(Chunk{ID: "a", Text: "v2"})

	require.Equal(t, []string{"a"}, s.IterIDs())
	got, err := s.Get("a")
	require.NoError(t, err)
	require.Equal(t, "v2", got.Text)
}
