package index

import (
	"container/heap"
	"math/rand"
	"sort"
	"sync"

	"github.com/ragcore/ragcore/pkg/kernel"
)

const defaultLeafSize = 16

// vpDistance is the pseudometric the tree is built over: 1 − cosine. It is
// order-equivalent to cosine similarity for ranking purposes (§4.2.3), so
// top-k by ascending vpDistance is top-k by descending cosine.
func vpDistance(a, b []float32) float64 {
	return 1 - kernel.Cosine(a, b)
}

type vpPoint struct {
	id     string
	vector []float32
}

// vpNode is either a leaf (points != nil) or an internal node with a
// vantage point, a median split threshold, and two children.
type vpNode struct {
	// internal
	vantage   vpPoint
	threshold float64
	near      *vpNode
	far       *vpNode

	// leaf
	points []vpPoint
}

func (n *vpNode) isLeaf() bool { return n.near == nil && n.far == nil }

// VPTreeIndex implements exact nearest-neighbor search with a vantage-point
// binary tree over 1−cosine (§4.2.3). Removes are mark-and-sweep via a
// tombstone set; once tombstones exceed 25% of the tree it rebuilds.
type VPTreeIndex struct {
	mu sync.RWMutex

	dimension int
	leafSize  int
	seed      int64

	root      *vpNode
	size      int // live (non-tombstoned) point count
	tombstone map[string]struct{}
	all       map[string]vpPoint // every point ever built/added, for rebuilds
}

// NewVPTree creates a vantage-point tree index. A missing leaf size falls
// back to 16; a missing seed defaults to 0 (deterministic).
func NewVPTree(dimension int, params Params) *VPTreeIndex {
	leafSize := params.LeafSize
	if leafSize <= 0 {
		leafSize = defaultLeafSize
	}
	return &VPTreeIndex{
		dimension: dimension,
		leafSize:  leafSize,
		seed:      params.Seed,
		tombstone: make(map[string]struct{}),
		all:       make(map[string]vpPoint),
	}
}

func (t *VPTreeIndex) Build(points []Point) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	all := make(map[string]vpPoint, len(points))
	vps := make([]vpPoint, 0, len(points))
	for _, p := range points {
		if len(p.Vector) != t.dimension {
			return dimensionError("vptree.build", t.dimension, len(p.Vector))
		}
		v := make([]float32, len(p.Vector))
		copy(v, p.Vector)
		vp := vpPoint{id: p.ID, vector: v}
		all[p.ID] = vp
		vps = append(vps, vp)
	}

	t.all = all
	t.tombstone = make(map[string]struct{})
	rng := rand.New(rand.NewSource(t.seed))
	t.root = t.buildNode(vps, rng)
	t.size = len(vps)
	return nil
}

func (t *VPTreeIndex) buildNode(points []vpPoint, rng *rand.Rand) *vpNode {
	if len(points) == 0 {
		return nil
	}
	if len(points) <= t.leafSize {
		leaf := make([]vpPoint, len(points))
		copy(leaf, points)
		return &vpNode{points: leaf}
	}

	vi := rng.Intn(len(points))
	vantage := points[vi]
	rest := make([]vpPoint, 0, len(points)-1)
	for i, p := range points {
		if i != vi {
			rest = append(rest, p)
		}
	}

	distances := make([]float64, len(rest))
	for i, p := range rest {
		distances[i] = vpDistance(vantage.vector, p.vector)
	}

	sortedDist := append([]float64(nil), distances...)
	sort.Float64s(sortedDist)
	median := sortedDist[len(sortedDist)/2]

	var nearPts, farPts []vpPoint
	for i, p := range rest {
		if distances[i] <= median {
			nearPts = append(nearPts, p)
		} else {
			farPts = append(farPts, p)
		}
	}

	// Degenerate split guard: if every point landed on one side (e.g. all
	// distances equal), fall back to a leaf to guarantee termination.
	if len(nearPts) == 0 || len(farPts) == 0 {
		leaf := make([]vpPoint, len(points))
		copy(leaf, points)
		return &vpNode{points: leaf}
	}

	return &vpNode{
		vantage:   vantage,
		threshold: median,
		near:      t.buildNode(nearPts, rng),
		far:       t.buildNode(farPts, rng),
	}
}

func (t *VPTreeIndex) Add(id string, vector []float32) error {
	if len(vector) != t.dimension {
		return dimensionError("vptree.add", t.dimension, len(vector))
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	v := make([]float32, len(vector))
	copy(v, vector)
	vp := vpPoint{id: id, vector: v}
	t.all[id] = vp
	delete(t.tombstone, id)

	if t.root == nil {
		rng := rand.New(rand.NewSource(t.seed))
		t.root = t.buildNode([]vpPoint{vp}, rng)
		t.size = 1
		return nil
	}

	t.insertIntoLeaf(t.root, vp)
	t.size++
	return nil
}

// insertIntoLeaf walks to the nearest leaf by vantage-distance comparisons
// and appends, splitting that leaf with a fresh median if it overflows
// leafSize (§4.2.3 Add/remove).
func (t *VPTreeIndex) insertIntoLeaf(n *vpNode, vp vpPoint) {
	if n.isLeaf() {
		n.points = append(n.points, vp)
		if len(n.points) > t.leafSize {
			rng := rand.New(rand.NewSource(t.seed))
			replacement := t.buildNode(n.points, rng)
			*n = *replacement
		}
		return
	}

	d := vpDistance(n.vantage.vector, vp.vector)
	if d <= n.threshold {
		if n.near == nil {
			rng := rand.New(rand.NewSource(t.seed))
			n.near = t.buildNode([]vpPoint{vp}, rng)
			return
		}
		t.insertIntoLeaf(n.near, vp)
	} else {
		if n.far == nil {
			rng := rand.New(rand.NewSource(t.seed))
			n.far = t.buildNode([]vpPoint{vp}, rng)
			return
		}
		t.insertIntoLeaf(n.far, vp)
	}
}

func (t *VPTreeIndex) Remove(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.all[id]; !exists {
		return false
	}
	if _, dead := t.tombstone[id]; dead {
		return false
	}

	t.tombstone[id] = struct{}{}
	t.size--

	if len(t.tombstone) > 0 && len(t.all) > 0 && float64(len(t.tombstone))/float64(len(t.all)) > 0.25 {
		t.rebuildLocked()
	}
	return true
}

// rebuildLocked discards tombstoned points and rebuilds the tree from
// scratch. Called with mu already held for writing.
func (t *VPTreeIndex) rebuildLocked() {
	live := make([]vpPoint, 0, t.size)
	all := make(map[string]vpPoint, t.size)
	for id, vp := range t.all {
		if _, dead := t.tombstone[id]; dead {
			continue
		}
		live = append(live, vp)
		all[id] = vp
	}
	rng := rand.New(rand.NewSource(t.seed))
	t.root = t.buildNode(live, rng)
	t.all = all
	t.tombstone = make(map[string]struct{})
	t.size = len(live)
}

// vpCandidate is a best-so-far match kept in the query max-heap, ordered
// by similarity so the worst of the k-best sits at the top for eviction.
type vpCandidate struct {
	id  string
	sim float64
}

type vpMaxHeap []vpCandidate

func (h vpMaxHeap) Len() int { return len(h) }
func (h vpMaxHeap) Less(i, j int) bool {
	if h[i].sim != h[j].sim {
		return h[i].sim < h[j].sim
	}
	return h[i].id > h[j].id
}
func (h vpMaxHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *vpMaxHeap) Push(x any)   { *h = append(*h, x.(vpCandidate)) }
func (h *vpMaxHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

func (t *VPTreeIndex) Query(vector []float32, k int, minSim float64) ([]Result, error) {
	if len(vector) != t.dimension {
		return nil, dimensionError("vptree.query", t.dimension, len(vector))
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.root == nil || t.size == 0 {
		return []Result{}, nil
	}

	best := &vpMaxHeap{}
	heap.Init(best)
	tau := 2.0 // vpDistance ranges [0, 2]; unbounded until the heap fills

	var visit func(n *vpNode)
	visit = func(n *vpNode) {
		if n == nil {
			return
		}
		if n.isLeaf() {
			for _, p := range n.points {
				if _, dead := t.tombstone[p.id]; dead {
					continue
				}
				sim := kernel.Cosine(vector, p.vector)
				considerCandidate(best, k, p.id, sim)
				if best.Len() == k {
					tau = 1 - (*best)[0].sim
				}
			}
			return
		}

		if _, dead := t.tombstone[n.vantage.id]; !dead {
			sim := kernel.Cosine(vector, n.vantage.vector)
			considerCandidate(best, k, n.vantage.id, sim)
			if best.Len() == k {
				tau = 1 - (*best)[0].sim
			}
		}

		dq := vpDistance(n.vantage.vector, vector)
		nearFirst := dq <= n.threshold
		first, second := n.near, n.far
		if !nearFirst {
			first, second = n.far, n.near
		}

		visit(first)
		if second != nil {
			// Triangle-inequality pruning: only descend into the far side
			// if it could contain a point closer than tau.
			if best.Len() < k || absFloat(dq-n.threshold) < tau {
				visit(second)
			}
		}
	}
	visit(t.root)

	results := make([]Result, 0, best.Len())
	for best.Len() > 0 {
		c := heap.Pop(best).(vpCandidate)
		if c.sim >= minSim {
			results = append(results, Result{ID: c.id, Similarity: c.sim})
		}
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].ID < results[j].ID
	})
	return results, nil
}

// considerCandidate pushes (id, sim) onto the k-best heap, evicting the
// current worst when the heap is already full and this candidate beats it.
func considerCandidate(best *vpMaxHeap, k int, id string, sim float64) {
	if best.Len() < k {
		heap.Push(best, vpCandidate{id: id, sim: sim})
		return
	}
	worst := (*best)[0]
	if sim > worst.sim || (sim == worst.sim && id < worst.id) {
		heap.Pop(best)
		heap.Push(best, vpCandidate{id: id, sim: sim})
	}
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func (t *VPTreeIndex) Size() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.size
}
