package lsh

import (
	"math"
	"math/rand"

	"github.com/hupe1980/annforest/distance"
)

// EuclideanHash is a p-stable random projection.
//
// The projection vector is drawn from N(0,1)^d and scaled to unit length so
// that Width has the same meaning at every dimension.
type EuclideanHash struct {
	A     []float32
	B     float64
	Width float64
}

// NewEuclideanHash draws a hash for dim-dimensional vectors with bucket width r.
func NewEuclideanHash(dim int, width float64, rng *rand.Rand) EuclideanHash {
	a := make([]float32, dim)
	for i := range a {
		a[i] = float32(rng.NormFloat64())
	}
	distance.NormalizeInPlace(a)
	return EuclideanHash{
		A:     a,
		B:     rng.Float64() * width,
		Width: width,
	}
}

// Hash returns the bucket id of x.
func (h EuclideanHash) Hash(x []float32) (int64, error) {
	p, err := distance.Dot(h.A, x)
	if err != nil {
		return 0, err
	}
	return int64(math.Floor((float64(p) + h.B) / h.Width)), nil
}

// AngularHash is a random hyperplane through the origin.
type AngularHash struct {
	A []float32
}

// NewAngularHash draws a hyperplane normal from N(0,1)^dim.
func NewAngularHash(dim int, rng *rand.Rand) AngularHash {
	a := make([]float32, dim)
	for i := range a {
		a[i] = float32(rng.NormFloat64())
	}
	return AngularHash{A: a}
}

// Hash returns 0 if x lies on the negative side of the hyperplane, else 1.
func (h AngularHash) Hash(x []float32) (uint64, error) {
	p, err := distance.Dot(h.A, x)
	if err != nil {
		return 0, err
	}
	if p < 0 {
		return 0, nil
	}
	return 1, nil
}
