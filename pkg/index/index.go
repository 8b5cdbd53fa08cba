// Package index provides the pluggable nearest-neighbor index family that
// backs each library: an exact linear scan (NAIVE), random-hyperplane
// locality-sensitive hashing (LSH), and a vantage-point tree (VPTREE). All
// three satisfy the same Index contract so a library can swap
// implementations without changing its own code.
package index

import (
	"fmt"

	"github.com/ragcore/ragcore/internal/apierr"
)

// Type names an index implementation.
type Type string

const (
	Naive  Type = "NAIVE"
	LSH    Type = "LSH"
	VPTree Type = "VPTREE"
)

// Point is a single (id, vector) pair as accepted by Build and Add. Vectors
// are expected to already be unit-normalized; the index family never
// normalizes on a caller's behalf.
type Point struct {
	ID     string
	Vector []float32
}

// Result is a single scored match returned by Query.
type Result struct {
	ID         string
	Similarity float64
}

// Index is the common contract for all three implementations (§4.2).
//
// Exactness: NAIVE and VPTREE return the exact top-k by cosine similarity.
// LSH is approximate — it may miss true neighbors or return fewer than k
// even when more exist, but every pair it does return is scored exactly.
type Index interface {
	// Build replaces any prior state with points. Idempotent on identical
	// input up to tie-break order.
	Build(points []Point) error

	// Add inserts a single point. id must not already be present.
	Add(id string, vector []float32) error

	// Remove deletes id. Returns whether id was present.
	Remove(id string) bool

	// Query returns at most k (id, similarity) pairs with similarity >=
	// minSim, sorted by similarity descending then id ascending.
	Query(vector []float32, k int, minSim float64) ([]Result, error)

	// Size returns the number of points currently indexed.
	Size() int
}

// Params configures index construction. Only the fields relevant to the
// chosen Type are consulted; zero values fall back to the documented
// defaults (§4.2.2, §4.2.3).
type Params struct {
	// LSH
	NumTables      int
	NumHyperplanes int
	Probes         int // multi-probe width; 0 disables widening (§9 open question)

	// VPTREE
	LeafSize int

	// Shared
	Seed int64
}

// New constructs an Index of the given type and dimension.
func New(typ Type, dimension int, params Params) (Index, error) {
	switch typ {
	case Naive:
		return NewNaive(dimension), nil
	case LSH:
		return NewLSH(dimension, params), nil
	case VPTree:
		return NewVPTree(dimension, params), nil
	default:
		return nil, apierr.Wrap("index.new", fmt.Errorf("%w: unknown index type %q", apierr.ErrInvalidParameter, typ))
	}
}

// dimensionError builds a dimension-mismatch error for a single (id, vector)
// pair, shared by all three implementations.
func dimensionError(op string, expected, got int) error {
	return apierr.Wrap(op, fmt.Errorf("%w: expected %d, got %d", apierr.ErrDimensionMismatch, expected, got))
}
