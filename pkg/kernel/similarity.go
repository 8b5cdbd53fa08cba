// Package kernel provides the small numeric primitives every index
// implementation builds on: L2 normalization and cosine similarity over
// already-normalized vectors.
package kernel

import (
	"math"

	"github.com/ragcore/ragcore/internal/apierr"
)

// Epsilon is the tolerance used when checking that a vector is unit length.
const Epsilon = 1e-6

// Normalize returns v/‖v‖₂. It fails with apierr.ErrDegenerateVector if v is
// the zero vector (or close enough that the norm underflows to zero).
func Normalize(v []float32) ([]float32, error) {
	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}

	norm := math.Sqrt(sumSquares)
	if norm == 0 {
		return nil, apierr.Wrap("normalize", apierr.ErrDegenerateVector)
	}

	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out, nil
}

// IsUnit reports whether v is already unit length within Epsilon.
func IsUnit(v []float32) bool {
	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}
	norm := math.Sqrt(sumSquares)
	return norm >= 1-Epsilon && norm <= 1+Epsilon
}

// Cosine computes the dot product of a and b. Both inputs are assumed to be
// unit-normalized already, so the dot product equals cosine similarity.
func Cosine(a, b []float32) float64 {
	var dot float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}
