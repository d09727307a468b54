package lsh

import "math/rand"

// EuclideanComposite is K Euclidean hashes sharing one polynomial key.
type EuclideanComposite struct {
	Hashes []EuclideanHash
	Poly   PolynomialKey
}

// NewEuclideanComposite draws k hashes of width r and their key coefficients.
func NewEuclideanComposite(dim, k int, width float64, rng *rand.Rand) EuclideanComposite {
	hashes := make([]EuclideanHash, k)
	for i := range hashes {
		hashes[i] = NewEuclideanHash(dim, width, rng)
	}
	return EuclideanComposite{
		Hashes: hashes,
		Poly:   NewPolynomialKey(k, rng),
	}
}

// Key returns the bucket key of x. scratch must hold K values or be nil.
func (c EuclideanComposite) Key(x []float32, scratch []int64) (uint64, error) {
	if cap(scratch) < len(c.Hashes) {
		scratch = make([]int64, len(c.Hashes))
	}
	scratch = scratch[:len(c.Hashes)]
	for i, h := range c.Hashes {
		v, err := h.Hash(x)
		if err != nil {
			return 0, err
		}
		scratch[i] = v
	}
	return c.Poly.Key(scratch), nil
}

// AngularComposite is K hyperplanes whose sign bits form the bucket key.
type AngularComposite struct {
	Hashes []AngularHash
}

// NewAngularComposite draws k hyperplanes. k must pass ValidateAngularK.
func NewAngularComposite(dim, k int, rng *rand.Rand) AngularComposite {
	hashes := make([]AngularHash, k)
	for i := range hashes {
		hashes[i] = NewAngularHash(dim, rng)
	}
	return AngularComposite{Hashes: hashes}
}

// Key returns the packed sign pattern of x.
func (c AngularComposite) Key(x []float32) (uint64, error) {
	var key uint64
	for _, h := range c.Hashes {
		b, err := h.Hash(x)
		if err != nil {
			return 0, err
		}
		key = key<<1 | b
	}
	return key, nil
}
