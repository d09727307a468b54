package hashtable

import (
	"slices"

	"github.com/hupe1980/annforest/persistence"
)

// buckets maps a composite key to the ids that hashed to it, in corpus order.
type buckets map[uint64][]uint32

func (b buckets) encode(e *persistence.Encoder) {
	keys := make([]uint64, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	e.Uint32(uint32(len(keys)))
	for _, k := range keys {
		e.Uint64(k)
		e.Uint32s(b[k])
	}
}

func decodeBuckets(d *persistence.Decoder) buckets {
	n := d.Count(12)
	b := make(buckets, n)
	for range n {
		k := d.Uint64()
		b[k] = d.Uint32s()
	}
	return b
}

// largest returns the size of the biggest bucket.
func (b buckets) largest() int {
	m := 0
	for _, ids := range b {
		m = max(m, len(ids))
	}
	return m
}
