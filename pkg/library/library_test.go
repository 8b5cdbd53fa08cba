package library

import (
	"math/rand"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/ragcore/ragcore/internal/apierr"
	"github.com/ragcore/ragcore/pkg/index"
	"github.com/stretchr/testify/require"
)

func newTestLibrary(t *testing.T, typ index.Type) *Library {
	t.Helper()
	lib, err := New("lib1", "test", typ, index.Params{Seed: 1, LeafSize: 4}, Metadata{CreationTime: time.Now()}, nil)
	require.NoError(t, err)
	return lib
}

func TestEmptyLibrarySearch(t *testing.T) {
	lib := newTestLibrary(t, index.Naive)
	results, total, _, err := lib.Search([]float32{1, 0, 0}, 5, 0)
	require.NoError(t, err)
	require.Empty(t, results)
	require.Equal(t, 0, total)
}

func TestAddChunksThenSelfRetrieval(t *testing.T) {
	lib := newTestLibrary(t, index.Naive)
	installed, err := lib.AddChunks([]ChunkInput{
		{DocumentID: "doc1", Text: "hello", Embedding: []float32{1, 0, 0}},
	})
	require.NoError(t, err)
	require.Len(t, installed, 1)

	results, total, _, err := lib.Search(installed[0].Embedding, 1, 0)
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, results, 1)
	require.Equal(t, installed[0].ID, results[0].Chunk.ID)
	require.GreaterOrEqual(t, results[0].Similarity, 1-1e-6)
}

func TestAddChunksRejectsDimensionMismatch(t *testing.T) {
	lib := newTestLibrary(t, index.Naive)
	_, err := lib.AddChunks([]ChunkInput{
		{DocumentID: "doc1", Text: "a", Embedding: []float32{1, 0, 0}},
		{DocumentID: "doc1", Text: "b", Embedding: []float32{1, 0}},
	})
	require.ErrorIs(t, err, apierr.ErrDimensionMismatch)
	require.Equal(t, 0, lib.Size())
	require.Equal(t, 0, lib.dimension)

	// A failed first-ever add must not have pinned the library's
	// dimension: a later add at a different width should succeed.
	installed, err := lib.AddChunks([]ChunkInput{
		{DocumentID: "doc1", Text: "c", Embedding: []float32{1, 0}},
	})
	require.NoError(t, err)
	require.Len(t, installed, 1)
}

func TestAddChunksRollsBackOnDegenerateVector(t *testing.T) {
	lib := newTestLibrary(t, index.Naive)
	_, err := lib.AddChunks([]ChunkInput{
		{DocumentID: "doc1", Text: "a", Embedding: []float32{1, 0, 0}},
		{DocumentID: "doc1", Text: "b", Embedding: []float32{0, 0, 0}},
	})
	require.ErrorIs(t, err, apierr.ErrDegenerateVector)
	require.Equal(t, 0, lib.Size())
	require.Equal(t, 0, lib.dimension)

	installed, err := lib.AddChunks([]ChunkInput{
		{DocumentID: "doc1", Text: "c", Embedding: []float32{1, 0}},
	})
	require.NoError(t, err)
	require.Len(t, installed, 1)
}

func TestRemoveChunksTolerantOfAbsence(t *testing.T) {
	lib := newTestLibrary(t, index.Naive)
	installed, err := lib.AddChunks([]ChunkInput{
		{DocumentID: "doc1", Embedding: []float32{1, 0, 0}},
	})
	require.NoError(t, err)

	removed := lib.RemoveChunks([]string{installed[0].ID, "missing"})
	require.Equal(t, 1, removed)
	require.Equal(t, 0, lib.Size())
}

func TestRemoveDocumentCascades(t *testing.T) {
	lib := newTestLibrary(t, index.Naive)
	_, err := lib.AddChunks([]ChunkInput{
		{DocumentID: "doc1", Embedding: []float32{1, 0, 0}},
		{DocumentID: "doc1", Embedding: []float32{0, 1, 0}},
		{DocumentID: "doc2", Embedding: []float32{0, 0, 1}},
	})
	require.NoError(t, err)

	removed := lib.RemoveDocument("doc1")
	require.Equal(t, 2, removed)
	require.Equal(t, 1, lib.Size())
}

func TestReplaceDocumentChunksRollsBackOnAddFailure(t *testing.T) {
	lib := newTestLibrary(t, index.Naive)
	installed, err := lib.AddChunks([]ChunkInput{
		{ID: "A", DocumentID: "doc1", Text: "a", Embedding: []float32{1, 0, 0}},
		{ID: "B", DocumentID: "doc1", Text: "b", Embedding: []float32{0, 1, 0}},
	})
	require.NoError(t, err)
	require.Len(t, installed, 2)

	_, err = lib.ReplaceDocumentChunks("doc1", []ChunkInput{
		{ID: "C", DocumentID: "doc1", Text: "c", Embedding: []float32{1, 0}},
	})
	require.ErrorIs(t, err, apierr.ErrDimensionMismatch)

	// The old chunk set must still be fully present: replace is
	// all-or-nothing.
	require.Equal(t, 2, lib.Size())
	results, _, _, err := lib.Search([]float32{1, 0, 0}, 2, -1)
	require.NoError(t, err)
	ids := map[string]bool{}
	for _, r := range results {
		ids[r.Chunk.ID] = true
	}
	require.True(t, ids["A"])
	require.True(t, ids["B"])
}

func TestSearchRejectsInvalidK(t *testing.T) {
	lib := newTestLibrary(t, index.Naive)
	_, _, _, err := lib.Search([]float32{1, 0, 0}, 0, 0)
	require.ErrorIs(t, err, apierr.ErrInvalidParameter)
}

func TestSearchRejectsZeroVector(t *testing.T) {
	lib := newTestLibrary(t, index.Naive)
	_, err := lib.AddChunks([]ChunkInput{{DocumentID: "doc1", Embedding: []float32{1, 0, 0}}})
	require.NoError(t, err)

	_, _, _, err = lib.Search([]float32{0, 0, 0}, 1, 0)
	require.ErrorIs(t, err, apierr.ErrDegenerateVector)
}

func TestNaiveAndVPTreeAgreeOnExactTopK(t *testing.T) {
	naiveLib := newTestLibrary(t, index.Naive)
	vpLib := newTestLibrary(t, index.VPTree)

	rng := rand.New(rand.NewSource(5))
	var inputs []ChunkInput
	for i := 0; i < 50; i++ {
		v := make([]float32, 8)
		for d := range v {
			v[d] = float32(rng.NormFloat64())
		}
		inputs = append(inputs, ChunkInput{ID: idOfLib(i), DocumentID: "doc1", Embedding: v})
	}

	_, err := naiveLib.AddChunks(inputs)
	require.NoError(t, err)
	_, err = vpLib.AddChunks(inputs)
	require.NoError(t, err)

	query := inputs[0].Embedding
	naiveResults, _, _, err := naiveLib.Search(query, 5, -1)
	require.NoError(t, err)
	vpResults, _, _, err := vpLib.Search(query, 5, -1)
	require.NoError(t, err)

	require.Equal(t, len(naiveResults), len(vpResults))
	for i := range naiveResults {
		require.Equal(t, naiveResults[i].Chunk.ID, vpResults[i].Chunk.ID)
		require.InDelta(t, naiveResults[i].Similarity, vpResults[i].Similarity, 1e-9)
	}
}

func TestConcurrentReadersAndWriterDoNotObserveMixedDocument(t *testing.T) {
	lib := newTestLibrary(t, index.Naive)
	_, err := lib.AddChunks([]ChunkInput{
		{ID: "A", DocumentID: "doc1", Embedding: []float32{1, 0, 0}},
		{ID: "B", DocumentID: "doc1", Embedding: []float32{0, 1, 0}},
		{ID: "C", DocumentID: "doc1", Embedding: []float32{0, 0, 1}},
	})
	require.NoError(t, err)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	var mixed int32
	oldSet := map[string]bool{"A": true, "B": true, "C": true}
	newSet := map[string]bool{"X": true, "Y": true}

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				results, _, _, err := lib.Search([]float32{1, 1, 1}, 3, -1)
				if err != nil {
					continue
				}
				seenOld, seenNew := false, false
				for _, r := range results {
					if oldSet[r.Chunk.ID] {
						seenOld = true
					}
					if newSet[r.Chunk.ID] {
						seenNew = true
					}
				}
				if seenOld && seenNew {
					mixed++
				}
			}
		}()
	}

	lib.RemoveDocument("doc1")
	_, err = lib.AddChunks([]ChunkInput{
		{ID: "X", DocumentID: "doc1", Embedding: []float32{1, 1, 0}},
		{ID: "Y", DocumentID: "doc1", Embedding: []float32{0, 1, 1}},
	})
	require.NoError(t, err)

	close(stop)
	wg.Wait()
	require.Equal(t, int32(0), mixed)
}

func idOfLib(i int) string {
	return "chunk-" + strconv.Itoa(i)
}
