// Package testutil provides deterministic data generators and recall helpers
// for tests and benchmarks.
package testutil

import (
	"math"
	"math/rand"
	"sort"
	"sync"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Rand returns a fresh *rand.Rand derived from the next value of r.
// Use it where an API takes an injected generator.
func (r *RNG) Rand() *rand.Rand {
	r.mu.Lock()
	defer r.mu.Unlock()
	return rand.New(rand.NewSource(r.rand.Int63()))
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// GaussianVectors generates random vectors with values from a standard normal distribution.
// Uses a single backing array for efficiency.
func (r *RNG) GaussianVectors(num int, dimensions int) [][]float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := make([]float32, num*dimensions)
	vectors := make([][]float32, num)

	for i := range num {
		vec := data[i*dimensions : (i+1)*dimensions : (i+1)*dimensions]
		for j := range vec {
			vec[j] = float32(r.rand.NormFloat64())
		}
		vectors[i] = vec
	}

	return vectors
}

// UnitVectors generates L2-normalized random vectors (on the hypersphere).
func (r *RNG) UnitVectors(num int, dimensions int) [][]float32 {
	vectors := r.GaussianVectors(num, dimensions)
	for _, vec := range vectors {
		var norm float64
		for _, v := range vec {
			norm += float64(v) * float64(v)
		}
		if norm == 0 {
			continue
		}
		inv := float32(1 / math.Sqrt(norm))
		for j := range vec {
			vec[j] *= inv
		}
	}
	return vectors
}

// ClusteredVectors generates vectors clustered around random centroids.
// Useful for testing ANN recall on non-uniform data.
func (r *RNG) ClusteredVectors(num, dim, clusters int, spread float32) [][]float32 {
	centroids := r.UnitVectors(clusters, dim)

	r.mu.Lock()
	defer r.mu.Unlock()

	data := make([]float32, num*dim)
	vectors := make([][]float32, num)

	for i := range num {
		centroid := centroids[i%clusters]
		vec := data[i*dim : (i+1)*dim : (i+1)*dim]
		for j := range dim {
			vec[j] = centroid[j] + float32(r.rand.NormFloat64())*spread
		}
		vectors[i] = vec
	}

	return vectors
}

// BruteForceNeighbors returns the ids of the k nearest corpus rows to q by
// squared L2, ties broken by id.
func BruteForceNeighbors(corpus [][]float32, q []float32, k int) []uint32 {
	type cand struct {
		id   uint32
		dist float64
	}
	cands := make([]cand, len(corpus))
	for i, v := range corpus {
		var d float64
		for j := range v {
			x := float64(v[j]) - float64(q[j])
			d += x * x
		}
		cands[i] = cand{id: uint32(i), dist: d}
	}
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].dist != cands[j].dist {
			return cands[i].dist < cands[j].dist
		}
		return cands[i].id < cands[j].id
	})
	k = min(k, len(cands))
	out := make([]uint32, k)
	for i := range k {
		out[i] = cands[i].id
	}
	return out
}

// ComputeRecall returns |truth ∩ approx| / min(len(truth), len(approx)).
func ComputeRecall(truth, approx []uint32) float64 {
	if len(truth) == 0 || len(approx) == 0 {
		if len(truth) == 0 && len(approx) == 0 {
			return 1.0
		}
		return 0.0
	}

	k := min(len(approx), len(truth))
	truthSet := make(map[uint32]struct{}, k)
	for i := range k {
		truthSet[truth[i]] = struct{}{}
	}

	hits := 0
	for _, id := range approx[:k] {
		if _, ok := truthSet[id]; ok {
			hits++
		}
	}
	return float64(hits) / float64(k)
}
