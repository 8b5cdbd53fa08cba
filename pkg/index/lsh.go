package index

import (
	"math/rand"
	"sort"
	"sync"

	"github.com/ragcore/ragcore/pkg/kernel"
)

const (
	defaultNumTables      = 8
	defaultNumHyperplanes = 8
)

// LSHIndex implements approximate nearest-neighbor search by random
// hyperplane hashing over unit vectors (§4.2.2). Hyperplanes are sampled
// once at construction and fixed for the life of the index; resampling is
// never permitted.
type LSHIndex struct {
	mu sync.RWMutex

	dimension      int
	numTables      int
	numHyperplanes int
	probes         int
	hyperplanes    [][][]float32 // [table][hyperplane][dim]

	vectors map[string][]float32
	tables  []map[uint64][]string // table -> hash code -> ids
}

// NewLSH creates an LSH index. Missing params fall back to the documented
// defaults: 8 tables, 8 hyperplanes per table, a deterministic seed.
func NewLSH(dimension int, params Params) *LSHIndex {
	numTables := params.NumTables
	if numTables <= 0 {
		numTables = defaultNumTables
	}
	numHyperplanes := params.NumHyperplanes
	if numHyperplanes <= 0 {
		numHyperplanes = defaultNumHyperplanes
	}

	rng := rand.New(rand.NewSource(params.Seed))
	hyperplanes := make([][][]float32, numTables)
	tables := make([]map[uint64][]string, numTables)
	for t := 0; t < numTables; t++ {
		hyperplanes[t] = make([][]float32, numHyperplanes)
		for h := 0; h < numHyperplanes; h++ {
			plane := make([]float32, dimension)
			for d := 0; d < dimension; d++ {
				plane[d] = float32(rng.NormFloat64())
			}
			hyperplanes[t][h] = plane
		}
		tables[t] = make(map[uint64][]string)
	}

	return &LSHIndex{
		dimension:      dimension,
		numTables:      numTables,
		numHyperplanes: numHyperplanes,
		probes:         params.Probes,
		hyperplanes:    hyperplanes,
		vectors:        make(map[string][]float32),
		tables:         tables,
	}
}

// hashCode computes the sign-bit code for vector in the given table.
func (l *LSHIndex) hashCode(vector []float32, table int) uint64 {
	var code uint64
	for i, plane := range l.hyperplanes[table] {
		var dot float32
		for d := 0; d < len(vector); d++ {
			dot += vector[d] * plane[d]
		}
		if dot > 0 {
			code |= 1 << uint(i)
		}
	}
	return code
}

func (l *LSHIndex) insertLocked(id string, vector []float32) {
	for t := 0; t < l.numTables; t++ {
		code := l.hashCode(vector, t)
		l.tables[t][code] = append(l.tables[t][code], id)
	}
}

func (l *LSHIndex) removeLocked(id string, vector []float32) {
	for t := 0; t < l.numTables; t++ {
		code := l.hashCode(vector, t)
		bucket := l.tables[t][code]
		for i, bid := range bucket {
			if bid == id {
				l.tables[t][code] = append(bucket[:i], bucket[i+1:]...)
				break
			}
		}
		if len(l.tables[t][code]) == 0 {
			delete(l.tables[t], code)
		}
	}
}

func (l *LSHIndex) Build(points []Point) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	vectors := make(map[string][]float32, len(points))
	tables := make([]map[uint64][]string, l.numTables)
	for t := range tables {
		tables[t] = make(map[uint64][]string)
	}

	for _, p := range points {
		if len(p.Vector) != l.dimension {
			return dimensionError("lsh.build", l.dimension, len(p.Vector))
		}
		v := make([]float32, len(p.Vector))
		copy(v, p.Vector)
		vectors[p.ID] = v
		for t := 0; t < l.numTables; t++ {
			code := l.hashCode(v, t)
			tables[t][code] = append(tables[t][code], p.ID)
		}
	}

	l.vectors = vectors
	l.tables = tables
	return nil
}

func (l *LSHIndex) Add(id string, vector []float32) error {
	if len(vector) != l.dimension {
		return dimensionError("lsh.add", l.dimension, len(vector))
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	v := make([]float32, len(vector))
	copy(v, vector)
	l.vectors[id] = v
	l.insertLocked(id, v)
	return nil
}

func (l *LSHIndex) Remove(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	v, exists := l.vectors[id]
	if !exists {
		return false
	}
	l.removeLocked(id, v)
	delete(l.vectors, id)
	return true
}

// probeCodes returns code plus, when probes > 0, the `probes` nearby codes
// obtained by flipping the bits whose hyperplane margin was smallest —
// multi-probe widening, off by default (§9 open question).
func (l *LSHIndex) probeCodes(vector []float32, table, probes int) []uint64 {
	base := l.hashCode(vector, table)
	codes := []uint64{base}
	if probes <= 0 {
		return codes
	}

	type margin struct {
		bit int
		abs float32
	}
	margins := make([]margin, l.numHyperplanes)
	for i, plane := range l.hyperplanes[table] {
		var dot float32
		for d := 0; d < len(vector); d++ {
			dot += vector[d] * plane[d]
		}
		if dot < 0 {
			dot = -dot
		}
		margins[i] = margin{bit: i, abs: dot}
	}
	sort.Slice(margins, func(i, j int) bool { return margins[i].abs < margins[j].abs })

	for i := 0; i < probes && i < len(margins); i++ {
		codes = append(codes, base^(1<<uint(margins[i].bit)))
	}
	return codes
}

func (l *LSHIndex) Query(vector []float32, k int, minSim float64) ([]Result, error) {
	if len(vector) != l.dimension {
		return nil, dimensionError("lsh.query", l.dimension, len(vector))
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	if len(l.vectors) == 0 {
		return []Result{}, nil
	}

	candidates := make(map[string]struct{})
	for t := 0; t < l.numTables; t++ {
		for _, code := range l.probeCodes(vector, t, l.probes) {
			for _, id := range l.tables[t][code] {
				candidates[id] = struct{}{}
			}
		}
	}

	if len(candidates) == 0 {
		return []Result{}, nil
	}

	results := make([]Result, 0, len(candidates))
	for id := range candidates {
		sim := kernel.Cosine(vector, l.vectors[id])
		if sim >= minSim {
			results = append(results, Result{ID: id, Similarity: sim})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].ID < results[j].ID
	})

	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (l *LSHIndex) Size() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.vectors)
}
