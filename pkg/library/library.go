// Package library implements the per-library container (§4.4): one chunk
// store and one nearest-neighbor index guarded by a single fair
// reader-writer lock, exposing chunk mutation and search.
package library

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ragcore/ragcore/internal/apierr"
	"github.com/ragcore/ragcore/internal/obslog"
	"github.com/ragcore/ragcore/pkg/chunkstore"
	"github.com/ragcore/ragcore/pkg/index"
	"github.com/ragcore/ragcore/pkg/kernel"
)

// Metadata is the library-level metadata block (§3).
type Metadata struct {
	CreationTime time.Time
	LastUpdate   time.Time
	Username     string
	Tags         []string
}

// ChunkInput is a caller-supplied chunk awaiting normalization and
// installation. ID is optional; an empty ID is assigned a fresh UUID.
type ChunkInput struct {
	ID         string
	DocumentID string
	Text       string
	Embedding  []float32
	Metadata   map[string]string
}

// SearchResult pairs a hydrated chunk record with its query similarity.
type SearchResult struct {
	Chunk      chunkstore.Chunk
	Similarity float64
}

// Library wraps one chunk store and one index under a single fair
// reader-writer lock (§5). The zero value is not usable; construct with
// New.
type Library struct {
	ID          string
	Name        string
	IndexType   index.Type
	IndexParams index.Params
	Metadata    Metadata

	mu        *fairRWMutex
	dimension int // 0 until the first chunk is ever installed
	store     *chunkstore.Store
	idx       index.Index
	log       obslog.Logger
}

// New constructs a library container with the given index type. The
// underlying index itself is built lazily once the first chunk
// establishes the library's dimension (see ensureIndexLocked).
func New(id, name string, indexType index.Type, params index.Params, metadata Metadata, log obslog.Logger) (*Library, error) {
	switch indexType {
	case index.Naive, index.LSH, index.VPTree:
	default:
		return nil, apierr.Wrap("library.new", fmt.Errorf("%w: unknown index type %q", apierr.ErrInvalidParameter, indexType))
	}
	if log == nil {
		log = obslog.Nop()
	}
	return &Library{
		ID:          id,
		Name:        name,
		IndexType:   indexType,
		IndexParams: params,
		Metadata:    metadata,
		mu:          newFairRWMutex(),
		store:       chunkstore.New(),
		log:         log,
	}, nil
}

// ensureIndexLocked lazily constructs the index once the library's
// dimension is established, since index.New requires a fixed dimension
// up front but the library doesn't know it until the first chunk arrives.
func (l *Library) ensureIndexLocked(dimension int) error {
	if l.idx != nil {
		return nil
	}
	idx, err := index.New(l.IndexType, dimension, l.IndexParams)
	if err != nil {
		return err
	}
	l.idx = idx
	l.dimension = dimension
	return nil
}

// Size returns the number of chunks currently installed.
func (l *Library) Size() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.store.Size()
}

// UpdateMetadata replaces the Username and Tags fields and bumps
// LastUpdate. Empty username/nil tags leave the corresponding field
// untouched.
func (l *Library) UpdateMetadata(username string, tags []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if username != "" {
		l.Metadata.Username = username
	}
	if tags != nil {
		l.Metadata.Tags = tags
	}
	l.Metadata.LastUpdate = time.Now()
}

// MetadataSnapshot returns a copy of the library's current metadata.
func (l *Library) MetadataSnapshot() Metadata {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.Metadata
}

// AddChunks validates dimension consistency, normalizes embeddings,
// inserts into the chunk store, and adds to the index, bumping
// last_update. All-or-nothing: any failure rolls back every chunk staged
// during this call (§4.4).
func (l *Library) AddChunks(inputs []ChunkInput) ([]chunkstore.Chunk, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.addChunksLocked(inputs)
}

// addChunksLocked is AddChunks' body, callable by operations that already
// hold the write lock (such as ReplaceDocumentChunks' remove-then-add).
func (l *Library) addChunksLocked(inputs []ChunkInput) ([]chunkstore.Chunk, error) {
	if len(inputs) == 0 {
		return nil, nil
	}

	staged := l.store.Clone()
	firstEstablish := l.idx == nil
	var indexedIDs []string
	rollback := func() {
		for _, id := range indexedIDs {
			l.idx.Remove(id)
		}
		if firstEstablish {
			l.idx = nil
			l.dimension = 0
		}
	}

	expectedDim := l.dimension
	installed := make([]chunkstore.Chunk, 0, len(inputs))

	for i, in := range inputs {
		dim := len(in.Embedding)
		if expectedDim == 0 {
			expectedDim = dim
		}
		if dim != expectedDim {
			rollback()
			return nil, apierr.Wrap("library.add_chunks",
				fmt.Errorf("%w: chunk %d has dimension %d, library expects %d", apierr.ErrDimensionMismatch, i, dim, expectedDim))
		}

		normalized, err := kernel.Normalize(in.Embedding)
		if err != nil {
			rollback()
			return nil, apierr.Wrap("library.add_chunks", err)
		}

		id := in.ID
		if id == "" {
			id = uuid.NewString()
		}
		if _, err := staged.Get(id); err == nil {
			rollback()
			return nil, apierr.Wrap("library.add_chunks", fmt.Errorf("%w: chunk id %q", apierr.ErrAlreadyExists, id))
		}

		if err := l.ensureIndexLocked(expectedDim); err != nil {
			rollback()
			return nil, apierr.Wrap("library.add_chunks", err)
		}
		if err := l.idx.Add(id, normalized); err != nil {
			rollback()
			return nil, apierr.Wrap("library.add_chunks", err)
		}
		indexedIDs = append(indexedIDs, id)

		chunk := chunkstore.Chunk{
			ID:         id,
			DocumentID: in.DocumentID,
			Text:       in.Text,
			Embedding:  normalized,
			Metadata:   in.Metadata,
			CreatedAt:  time.Now(),
		}
		staged.Put(chunk)
		installed = append(installed, chunk)
	}

	l.store = staged
	l.dimension = expectedDim
	l.Metadata.LastUpdate = time.Now()
	return installed, nil
}

// removeChunksLocked removes ids from the index and chunk store. Absence
// is tolerated (no-op per id). Caller must hold the write lock.
func (l *Library) removeChunksLocked(ids []string) int {
	if len(ids) == 0 || l.idx == nil {
		return 0
	}
	staged := l.store.Clone()
	removed := 0
	for _, id := range ids {
		if _, err := staged.Get(id); err != nil {
			continue
		}
		l.idx.Remove(id)
		staged.Delete(id)
		removed++
	}
	l.store = staged
	if removed > 0 {
		l.Metadata.LastUpdate = time.Now()
	}
	return removed
}

// RemoveChunks removes the given chunk ids from the index, then the
// chunk store (§4.4).
func (l *Library) RemoveChunks(ids []string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.removeChunksLocked(ids)
}

// RemoveDocument enumerates every chunk id belonging to documentID and
// removes them atomically under one write-lock hold.
func (l *Library) RemoveDocument(documentID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	ids := l.store.IterByDocument(documentID)
	return l.removeChunksLocked(ids)
}

// ReplaceDocumentChunks removes every existing chunk of documentID and
// installs inputs in its place, both phases under a single write-lock
// hold so a concurrent reader observes either the full old chunk set or
// the full new one, never a mixture (§4.5 atomic install). If the add
// phase fails, the removed chunks are reinstated so the replace as a
// whole is all-or-nothing.
func (l *Library) ReplaceDocumentChunks(documentID string, inputs []ChunkInput) ([]chunkstore.Chunk, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ids := l.store.IterByDocument(documentID)
	removed := make([]chunkstore.Chunk, 0, len(ids))
	for _, id := range ids {
		if chunk, err := l.store.Get(id); err == nil {
			removed = append(removed, chunk)
		}
	}
	l.removeChunksLocked(ids)

	installed, err := l.addChunksLocked(inputs)
	if err != nil {
		l.restoreChunksLocked(removed)
		return nil, err
	}
	return installed, nil
}

// restoreChunksLocked reinserts previously-removed chunk records into the
// store and index unchanged, undoing a failed replace. Caller must hold
// the write lock.
func (l *Library) restoreChunksLocked(chunks []chunkstore.Chunk) {
	if len(chunks) == 0 {
		return
	}
	staged := l.store.Clone()
	for _, chunk := range chunks {
		if l.idx != nil {
			l.idx.Add(chunk.ID, chunk.Embedding)
		}
		staged.Put(chunk)
	}
	l.store = staged
}

// Search normalizes the query vector, delegates to the index, and
// hydrates matching ids to chunk records. An index result absent from the
// chunk store is dropped and logged as an internal inconsistency rather
// than surfaced as a failure (§4.4, §7).
func (l *Library) Search(queryVector []float32, k int, minSim float64) ([]SearchResult, int, time.Duration, error) {
	if k < 1 {
		return nil, 0, 0, apierr.Wrap("library.search", fmt.Errorf("%w: k must be >= 1", apierr.ErrInvalidParameter))
	}

	start := time.Now()
	l.mu.RLock()
	defer l.mu.RUnlock()

	total := l.store.Size()
	if l.idx == nil || total == 0 {
		return []SearchResult{}, total, time.Since(start), nil
	}

	normalized, err := kernel.Normalize(queryVector)
	if err != nil {
		return nil, total, time.Since(start), apierr.Wrap("library.search", err)
	}

	matches, err := l.idx.Query(normalized, k, minSim)
	if err != nil {
		return nil, total, time.Since(start), apierr.Wrap("library.search", err)
	}

	results := make([]SearchResult, 0, len(matches))
	for _, m := range matches {
		chunk, err := l.store.Get(m.ID)
		if err != nil {
			l.log.Error("index returned id absent from chunk store",
				"library_id", l.ID, "chunk_id", m.ID, "error", apierr.ErrInternalInconsistency.Error())
			continue
		}
		results = append(results, SearchResult{Chunk: chunk, Similarity: m.Similarity})
	}

	return results, total, time.Since(start), nil
}
