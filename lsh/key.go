package lsh

import (
	"fmt"
	"math/bits"
	"math/rand"
)

// MersennePrime61 is the modulus of polynomial bucket keys.
const MersennePrime61 uint64 = 1<<61 - 1

// MaxAngularBits is the largest K an angular key can pack.
const MaxAngularBits = 64

// PolynomialKey folds K integer hashes into one key:
// sum(h_i * c_i) mod 2^61-1 with random c_i.
type PolynomialKey struct {
	Coefficients []uint64
}

// NewPolynomialKey draws k coefficients uniformly from [0, P-1).
func NewPolynomialKey(k int, rng *rand.Rand) PolynomialKey {
	c := make([]uint64, k)
	for i := range c {
		c[i] = uint64(rng.Int63n(int64(MersennePrime61 - 1)))
	}
	return PolynomialKey{Coefficients: c}
}

// Key combines hashes. len(hashes) must equal len(Coefficients).
// Negative hashes are reduced into [0, P) first; products use 128-bit
// intermediates so no term overflows.
func (p PolynomialKey) Key(hashes []int64) uint64 {
	var key uint64
	for i, h := range hashes {
		key = addMod(key, mulMod(reduce(h), p.Coefficients[i]))
	}
	return key
}

func reduce(h int64) uint64 {
	r := h % int64(MersennePrime61)
	if r < 0 {
		r += int64(MersennePrime61)
	}
	return uint64(r)
}

// mulMod requires a, b < P so the high word stays below P for Div64.
func mulMod(a, b uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	_, rem := bits.Div64(hi, lo, MersennePrime61)
	return rem
}

func addMod(a, b uint64) uint64 {
	s := a + b
	if s >= MersennePrime61 {
		s -= MersennePrime61
	}
	return s
}

// PackBits packs binary hashes most-significant first:
// key = key<<1 | bit for each bit in order.
func PackBits(hashes []uint64) uint64 {
	var key uint64
	for _, b := range hashes {
		key = key<<1 | (b & 1)
	}
	return key
}

// ValidateAngularK reports whether k bits fit in a packed key.
func ValidateAngularK(k int) error {
	if k <= 0 || k > MaxAngularBits {
		return fmt.Errorf("lsh: angular K must be in [1, %d], got %d", MaxAngularBits, k)
	}
	return nil
}
