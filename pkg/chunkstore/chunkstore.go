// Package chunkstore is the per-library ordered record store for chunks
// (§4.3). It carries no indexing intelligence and never touches the
// nearest-neighbor index; it exists purely to hold and hydrate records.
package chunkstore

import (
	"time"

	"github.com/ragcore/ragcore/internal/apierr"
)

// Chunk is a single indexed text fragment.
type Chunk struct {
	ID         string
	DocumentID string
	Text       string
	Embedding  []float32
	Metadata   map[string]string
	CreatedAt  time.Time
}

// Store is an ordered map from chunk id to chunk record, preserving
// insertion order for iteration.
type Store struct {
	records map[string]Chunk
	order   []string
}

// New creates an empty chunk store.
func New() *Store {
	return &Store{records: make(map[string]Chunk)}
}

// Put inserts or replaces a chunk record.
func (s *Store) Put(c Chunk) {
	if _, exists := s.records[c.ID]; !exists {
		s.order = append(s.order, c.ID)
	}
	s.records[c.ID] = c
}

// Get retrieves a chunk by id.
func (s *Store) Get(id string) (Chunk, error) {
	c, exists := s.records[id]
	if !exists {
		return Chunk{}, apierr.Wrap("chunkstore.get", apierr.ErrNotFound)
	}
	return c, nil
}

// Delete removes a chunk by id. Returns whether it was present.
func (s *Store) Delete(id string) bool {
	if _, exists := s.records[id]; !exists {
		return false
	}
	delete(s.records, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// IterIDs returns every chunk id in insertion order.
func (s *Store) IterIDs() []string {
	ids := make([]string, len(s.order))
	copy(ids, s.order)
	return ids
}

// IterByDocument returns every chunk id belonging to documentID, in
// insertion order.
func (s *Store) IterByDocument(documentID string) []string {
	var ids []string
	for _, id := range s.order {
		if s.records[id].DocumentID == documentID {
			ids = append(ids, id)
		}
	}
	return ids
}

// Size returns the number of chunks currently stored.
func (s *Store) Size() int {
	return len(s.records)
}

// Clone returns a copy of the store with its own record map, order slice,
// and embedding slices; each chunk's Metadata map is shared with the
// original. Used by the library container to stage writes into a shadow
// structure before committing (§9 atomic multi-step writes).
func (s *Store) Clone() *Store {
	clone := &Store{
		records: make(map[string]Chunk, len(s.records)),
		order:   make([]string, len(s.order)),
	}
	copy(clone.order, s.order)
	for id, c := range s.records {
		cp := c
		cp.Embedding = append([]float32(nil), c.Embedding...)
		clone.records[id] = cp
	}
	return clone
}
