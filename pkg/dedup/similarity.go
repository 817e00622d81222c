package dedup

import (
	"fmt"
	"math"
)

// DegenerateVectorError is returned when a vector has zero norm or a NaN or
// infinite component, for which cosine similarity is undefined.
type DegenerateVectorError struct {
	// Source names the offending vector: "candidate" or an index entry source.
	Source string
}

func (e *DegenerateVectorError) Error() string {
	return fmt.Sprintf("vector %s has zero norm or a non-finite component", e.Source)
}

// DimensionMismatchError is returned when two vectors have different lengths.
type DimensionMismatchError struct {
	Left  int
	Right int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("vector dimensions differ: %d != %d", e.Left, e.Right)
}

// CosineSimilarity returns dot(a, b) / (|a| * |b|).
func CosineSimilarity(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, &DimensionMismatchError{Left: len(a), Right: len(b)}
	}
	if !IsFinite(a) {
		return 0, &DegenerateVectorError{Source: "a"}
	}
	if !IsFinite(b) {
		return 0, &DegenerateVectorError{Source: "b"}
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || math.IsInf(normA, 0) {
		return 0, &DegenerateVectorError{Source: "a"}
	}
	if normB == 0 || math.IsInf(normB, 0) {
		return 0, &DegenerateVectorError{Source: "b"}
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	// Rounding can push parallel vectors just past 1.
	return math.Max(-1, math.Min(1, sim)), nil
}

// Norm returns the Euclidean length of v.
func Norm(v []float64) float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}

// IsFinite reports whether every component of v is neither NaN nor infinite.
func IsFinite(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
