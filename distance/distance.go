package distance

import (
	"fmt"
	"math"
)

// ErrDimensionMismatch is returned when two vectors do not share a length.
type ErrDimensionMismatch struct {
	Expected int // Expected dimensions
	Actual   int // Actual dimensions
}

// Error returns the error message for dimension mismatch
func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func checkDims(a, b []float32) error {
	if len(a) != len(b) {
		return &ErrDimensionMismatch{Expected: len(a), Actual: len(b)}
	}
	return nil
}

// Dot calculates the dot product of two vectors.
func Dot(a, b []float32) (float32, error) {
	if err := checkDims(a, b); err != nil {
		return 0, err
	}
	return dot(a, b), nil
}

// SquaredEuclidean calculates the squared L2 distance between two vectors.
// It is the ranking distance; the square root is only taken for reporting.
func SquaredEuclidean(a, b []float32) (float32, error) {
	if err := checkDims(a, b); err != nil {
		return 0, err
	}
	return squaredL2(a, b), nil
}

// EuclideanDistance calculates the L2 distance between two vectors.
func EuclideanDistance(a, b []float32) (float32, error) {
	if err := checkDims(a, b); err != nil {
		return 0, err
	}
	return float32(math.Sqrt(float64(squaredL2(a, b)))), nil
}

// AngularDistance returns 1 - dot(a,b)/(|a||b|).
//
// The result is clamped to [0, 2] to absorb rounding. A zero-length vector has
// no direction, so its distance to anything is 1.
func AngularDistance(a, b []float32) (float32, error) {
	if err := checkDims(a, b); err != nil {
		return 0, err
	}
	return angular(a, b), nil
}

// Magnitude returns the L2 norm of v.
func Magnitude(v []float32) float32 {
	return float32(math.Sqrt(float64(dot(v, v))))
}

// Normalize returns a unit-length copy of v.
// A zero vector is returned as a zero copy.
func Normalize(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	NormalizeInPlace(out)
	return out
}

// NormalizeInPlace scales v to unit length.
// Returns false if v has zero norm, in which case v is left unchanged.
func NormalizeInPlace(v []float32) bool {
	norm := float64(dot(v, v))
	if norm == 0 {
		return false
	}
	scaleInPlace(v, float32(1/math.Sqrt(norm)))
	return true
}

// NormalizeCorpus returns unit-length copies of every row.
// The rows share one backing array.
func NormalizeCorpus(corpus [][]float32) [][]float32 {
	if len(corpus) == 0 {
		return nil
	}
	dim := len(corpus[0])
	data := make([]float32, 0, len(corpus)*dim)
	out := make([][]float32, len(corpus))
	for i, row := range corpus {
		start := len(data)
		data = append(data, row...)
		out[i] = data[start:len(data):len(data)]
		NormalizeInPlace(out[i])
	}
	return out
}

func angular(a, b []float32) float32 {
	na := float64(dot(a, a))
	nb := float64(dot(b, b))
	if na == 0 || nb == 0 {
		return 1
	}
	d := 1 - float64(dot(a, b))/(math.Sqrt(na)*math.Sqrt(nb))
	switch {
	case d < 0:
		return 0
	case d > 2:
		return 2
	}
	return float32(d)
}
