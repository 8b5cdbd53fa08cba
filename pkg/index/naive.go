package index

import (
	"container/heap"
	"fmt"
	"sort"
	"sync"

	"github.com/ragcore/ragcore/internal/apierr"
	"github.com/ragcore/ragcore/pkg/kernel"
)

// NaiveIndex stores (id, vector) pairs in a map and scores every point
// against the query on each call. O(n·d) per query; preferred for small
// libraries (n < ~1,000). Exact: it always returns the true top-k by
// cosine similarity.
type NaiveIndex struct {
	mu        sync.RWMutex
	dimension int
	vectors   map[string][]float32
	order     []string // insertion order of ids; Query does not use it
}

// NewNaive creates a brute-force exact index over vectors of the given
// dimension.
func NewNaive(dimension int) *NaiveIndex {
	return &NaiveIndex{
		dimension: dimension,
		vectors:   make(map[string][]float32),
	}
}

func (n *NaiveIndex) Build(points []Point) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	vectors := make(map[string][]float32, len(points))
	order := make([]string, 0, len(points))
	for _, p := range points {
		if len(p.Vector) != n.dimension {
			return dimensionError("naive.build", n.dimension, len(p.Vector))
		}
		v := make([]float32, len(p.Vector))
		copy(v, p.Vector)
		vectors[p.ID] = v
		order = append(order, p.ID)
	}

	n.vectors = vectors
	n.order = order
	return nil
}

func (n *NaiveIndex) Add(id string, vector []float32) error {
	if len(vector) != n.dimension {
		return dimensionError("naive.add", n.dimension, len(vector))
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	v := make([]float32, len(vector))
	copy(v, vector)
	if _, exists := n.vectors[id]; !exists {
		n.order = append(n.order, id)
	}
	n.vectors[id] = v
	return nil
}

func (n *NaiveIndex) Remove(id string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, exists := n.vectors[id]; !exists {
		return false
	}
	delete(n.vectors, id)
	for i, oid := range n.order {
		if oid == id {
			n.order = append(n.order[:i], n.order[i+1:]...)
			break
		}
	}
	return true
}

// naiveHeapItem is a candidate kept in the min-similarity heap while
// scanning for the top-k.
type naiveHeapItem struct {
	id  string
	sim float64
}

type naiveMinHeap []naiveHeapItem

func (h naiveMinHeap) Len() int { return len(h) }
func (h naiveMinHeap) Less(i, j int) bool {
	if h[i].sim != h[j].sim {
		return h[i].sim < h[j].sim
	}
	// Break ties by descending id so the eventual ascending-id tie-break
	// at equal similarity pops the "worst" id first when trimming.
	return h[i].id > h[j].id
}
func (h naiveMinHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *naiveMinHeap) Push(x any)   { *h = append(*h, x.(naiveHeapItem)) }
func (h *naiveMinHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

func (n *NaiveIndex) Query(vector []float32, k int, minSim float64) ([]Result, error) {
	if len(vector) != n.dimension {
		return nil, dimensionError("naive.query", n.dimension, len(vector))
	}
	if k < 1 {
		return nil, apierr.Wrap("naive.query", fmt.Errorf("%w: k must be >= 1", apierr.ErrInvalidParameter))
	}

	n.mu.RLock()
	defer n.mu.RUnlock()

	if len(n.vectors) == 0 {
		return []Result{}, nil
	}

	h := &naiveMinHeap{}
	heap.Init(h)
	for id, v := range n.vectors {
		sim := kernel.Cosine(vector, v)
		if sim < minSim {
			continue
		}
		if h.Len() < k {
			heap.Push(h, naiveHeapItem{id: id, sim: sim})
		} else if sim > (*h)[0].sim || (sim == (*h)[0].sim && id < (*h)[0].id) {
			heap.Pop(h)
			heap.Push(h, naiveHeapItem{id: id, sim: sim})
		}
	}

	results := make([]Result, h.Len())
	for i := len(results) - 1; i >= 0; i-- {
		item := heap.Pop(h).(naiveHeapItem)
		results[i] = Result{ID: item.id, Similarity: item.sim}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].ID < results[j].ID
	})

	return results, nil
}

func (n *NaiveIndex) Size() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.vectors)
}
