// Package pool provides pooled per-query scratch for ensemble voting.
// Uses sync.Pool for memory reuse and a bitset for admitted tracking.
package pool

import (
	"sync"

	"github.com/bits-and-blooms/bitset"
)

// DefaultCapacity is the initial number of ids a context tracks.
const DefaultCapacity = 1 << 16

// VoteContext holds vote counters for one query.
// Only touched entries are cleared on reset, so reuse costs O(touched).
type VoteContext struct {
	Counts   []uint32
	Weights  []float64
	Admitted *bitset.BitSet
	Touched  []uint32
}

var votePool = sync.Pool{
	New: func() any {
		return &VoteContext{
			Counts:   make([]uint32, DefaultCapacity),
			Weights:  make([]float64, DefaultCapacity),
			Admitted: bitset.New(DefaultCapacity),
		}
	},
}

// Get retrieves a cleared context able to track ids in [0, n).
func Get(n int) *VoteContext {
	vc := votePool.Get().(*VoteContext)
	vc.ensure(n)
	return vc
}

// Put clears vc and returns it to the pool.
func Put(vc *VoteContext) {
	vc.Reset()
	votePool.Put(vc)
}

func (vc *VoteContext) ensure(n int) {
	if n <= len(vc.Counts) {
		return
	}
	size := max(n, 2*len(vc.Counts))
	vc.Counts = make([]uint32, size)
	vc.Weights = make([]float64, size)
	vc.Admitted = bitset.New(uint(size))
	vc.Touched = vc.Touched[:0]
}

// Reset zeroes every touched entry.
func (vc *VoteContext) Reset() {
	for _, id := range vc.Touched {
		vc.Counts[id] = 0
		vc.Weights[id] = 0
	}
	vc.Touched = vc.Touched[:0]
	vc.Admitted.ClearAll()
}

func (vc *VoteContext) touch(id uint32) {
	if vc.Counts[id] == 0 && vc.Weights[id] == 0 {
		vc.Touched = append(vc.Touched, id)
	}
}

// AddCount increments the counter of id and returns the new value.
func (vc *VoteContext) AddCount(id uint32) uint32 {
	vc.touch(id)
	vc.Counts[id]++
	return vc.Counts[id]
}

// AddWeight adds w to the weight of id and returns the new total.
func (vc *VoteContext) AddWeight(id uint32, w float64) float64 {
	vc.touch(id)
	vc.Weights[id] += w
	return vc.Weights[id]
}

// Admit marks id as admitted. It reports false if id already was.
func (vc *VoteContext) Admit(id uint32) bool {
	if vc.Admitted.Test(uint(id)) {
		return false
	}
	vc.Admitted.Set(uint(id))
	return true
}
