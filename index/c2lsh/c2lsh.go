// Package c2lsh implements collision counting LSH (C2LSH).
//
// K Euclidean hash functions of width 1 each index the whole corpus on their
// own. A query counts, per corpus point, how many functions put it in a
// bucket inside a window around the query's bucket, widening the windows
// until enough points have collided often enough.
package c2lsh

import (
	"fmt"
	"math"
	"math/rand"
	"slices"
	"sync"

	"github.com/hupe1980/annforest/index"
	"github.com/hupe1980/annforest/lsh"
	"github.com/hupe1980/annforest/persistence"
)

// Compile-time check to ensure Index satisfies index.Index.
var _ index.Index = (*Index)(nil)

const (
	magic   = 0x43324C48 // "C2LH"
	version = 1

	maxK = 1 << 14
)

func init() {
	index.Register(index.KindC2LSH, func() index.Index { return &Index{pool: &sync.Pool{}} })
}

// Options contains configuration options for the C2LSH index.
type Options struct {
	// K is the number of independent hash functions.
	K int

	// MinSize is the candidate count at which a query stops.
	MinSize int

	// Threshold is the collision count that admits a point.
	Threshold int

	// Ratio is the factor by which the window radius grows each round.
	Ratio int64

	// Width is the bucket width of every hash function.
	Width float64
}

// DefaultOptions contains the default configuration options for the C2LSH index.
var DefaultOptions = Options{
	K:         32,
	MinSize:   100,
	Threshold: 8,
	Ratio:     3,
	Width:     1,
}

// Index is a C2LSH index. Query parameters can be changed on a copy with
// WithParams without refitting.
type Index struct {
	dim    int
	n      int
	opts   Options
	hashes []lsh.EuclideanHash
	tables []map[int64][]uint32
	lo, hi []int64
	pool   *sync.Pool
}

// New creates an unfitted C2LSH index.
func New(dim int, rng *rand.Rand, optFns ...func(o *Options)) (*Index, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if dim <= 0 {
		return nil, fmt.Errorf("%w: dimension %d", index.ErrInvalidOption, dim)
	}
	if err := validate(opts); err != nil {
		return nil, err
	}
	hashes := make([]lsh.EuclideanHash, opts.K)
	for i := range hashes {
		hashes[i] = lsh.NewEuclideanHash(dim, opts.Width, rng)
	}
	return &Index{
		dim:    dim,
		opts:   opts,
		hashes: hashes,
		pool:   &sync.Pool{},
	}, nil
}

func validate(o Options) error {
	switch {
	case o.K <= 0 || o.K > maxK:
		return fmt.Errorf("%w: K must be in [1, %d], got %d", index.ErrInvalidOption, maxK, o.K)
	case o.MinSize <= 0:
		return fmt.Errorf("%w: min size must be positive, got %d", index.ErrInvalidOption, o.MinSize)
	case o.Threshold <= 0:
		return fmt.Errorf("%w: threshold must be positive, got %d", index.ErrInvalidOption, o.Threshold)
	case o.Ratio < 2:
		return fmt.Errorf("%w: ratio must be at least 2, got %d", index.ErrInvalidOption, o.Ratio)
	case o.Width <= 0:
		return fmt.Errorf("%w: width must be positive, got %g", index.ErrInvalidOption, o.Width)
	}
	return nil
}

// Factory returns an index.Factory producing C2LSH indexes.
func Factory(optFns ...func(o *Options)) index.Factory {
	return func(dim int, rng *rand.Rand) (index.Index, error) {
		return New(dim, rng, optFns...)
	}
}

// Fit builds one bucket map per hash function.
func (x *Index) Fit(corpus [][]float32) error {
	if err := index.ValidateCorpus(corpus, x.dim); err != nil {
		return err
	}
	k := len(x.hashes)
	tables := make([]map[int64][]uint32, k)
	lo := make([]int64, k)
	hi := make([]int64, k)
	for i, h := range x.hashes {
		t := make(map[int64][]uint32)
		lo[i], hi[i] = math.MaxInt64, math.MinInt64
		for id, v := range corpus {
			bid, err := h.Hash(v)
			if err != nil {
				return err
			}
			t[bid] = append(t[bid], uint32(id))
			lo[i] = min(lo[i], bid)
			hi[i] = max(hi[i], bid)
		}
		tables[i] = t
	}
	x.n = len(corpus)
	x.tables, x.lo, x.hi = tables, lo, hi
	return nil
}

// NewQuery hashes v and returns a query in StateInit.
func (x *Index) NewQuery(v []float32) (*Query, error) {
	if x.tables == nil {
		return nil, index.ErrNotFitted
	}
	if err := index.CheckQuery(x.dim, v); err != nil {
		return nil, err
	}
	bids := make([]int64, len(x.hashes))
	for i, h := range x.hashes {
		bid, err := h.Hash(v)
		if err != nil {
			return nil, err
		}
		bids[i] = bid
	}
	return &Query{
		idx:       x,
		minSize:   x.opts.MinSize,
		threshold: uint32(x.opts.Threshold),
		bids:      bids,
		freq:      x.getCounts(),
	}, nil
}

// Release returns the query's counters to the index. The query must not be
// used afterwards.
func (q *Query) Release() {
	if q.freq != nil {
		f := q.freq
		q.freq = nil
		q.idx.pool.Put(&f)
	}
}

func (x *Index) getCounts() []uint32 {
	if v, ok := x.pool.Get().(*[]uint32); ok && len(*v) == x.n {
		clear(*v)
		return *v
	}
	return make([]uint32, x.n)
}

// Search runs the collision counting query and returns the admitted points.
// The result is a fresh slice owned by the caller, in admission order.
func (x *Index) Search(v []float32) ([]uint32, error) {
	q, err := x.NewQuery(v)
	if err != nil {
		return nil, err
	}
	out := q.Run()
	q.Release()
	return out, nil
}

// WithParams returns a copy with different query parameters that shares the
// fitted bucket maps.
func (x *Index) WithParams(minSize, threshold int) (*Index, error) {
	opts := x.opts
	opts.MinSize = minSize
	opts.Threshold = threshold
	if err := validate(opts); err != nil {
		return nil, err
	}
	cp := *x
	cp.opts = opts
	return &cp, nil
}

// Kind returns index.KindC2LSH.
func (x *Index) Kind() index.Kind { return index.KindC2LSH }

// Dimension returns the vector length.
func (x *Index) Dimension() int { return x.dim }

// Options returns the current options.
func (x *Index) Options() Options { return x.opts }

// Hashes exposes the drawn hash functions.
func (x *Index) Hashes() []lsh.EuclideanHash { return x.hashes }

// MarshalBinary encodes the hash functions and bucket maps.
func (x *Index) MarshalBinary() ([]byte, error) {
	e := persistence.NewEncoder(4096)
	e.Header(magic, version)
	e.Uint32(uint32(x.dim))
	e.Uint32(uint32(x.n))
	e.Uint32(uint32(x.opts.K))
	e.Uint32(uint32(x.opts.MinSize))
	e.Uint32(uint32(x.opts.Threshold))
	e.Int64(x.opts.Ratio)
	e.Float64(x.opts.Width)
	for i, h := range x.hashes {
		e.Float32s(h.A)
		e.Float64(h.B)

		var t map[int64][]uint32
		if x.tables != nil {
			t = x.tables[i]
		}
		bids := make([]int64, 0, len(t))
		for bid := range t {
			bids = append(bids, bid)
		}
		slices.Sort(bids)
		e.Uint32(uint32(len(bids)))
		for _, bid := range bids {
			e.Int64(bid)
			e.Uint32s(t[bid])
		}
	}
	return e.Bytes(), nil
}

// UnmarshalBinary restores an index written by MarshalBinary.
func (x *Index) UnmarshalBinary(data []byte) error {
	d := persistence.NewDecoder(data)
	d.Header(magic, version)
	dim := int(d.Uint32())
	n := int(d.Uint32())
	opts := Options{
		K:         int(d.Uint32()),
		MinSize:   int(d.Uint32()),
		Threshold: int(d.Uint32()),
		Ratio:     d.Int64(),
		Width:     d.Float64(),
	}
	if err := d.Err(); err != nil {
		return err
	}
	if err := validate(opts); err != nil {
		return err
	}

	hashes := make([]lsh.EuclideanHash, opts.K)
	tables := make([]map[int64][]uint32, opts.K)
	lo := make([]int64, opts.K)
	hi := make([]int64, opts.K)
	for i := range hashes {
		a := d.Float32s()
		b := d.Float64()
		if d.Err() == nil && len(a) != dim {
			return fmt.Errorf("c2lsh: projection has %d components, want %d", len(a), dim)
		}
		hashes[i] = lsh.EuclideanHash{A: a, B: b, Width: opts.Width}

		count := d.Count(12)
		t := make(map[int64][]uint32, count)
		lo[i], hi[i] = math.MaxInt64, math.MinInt64
		for range count {
			bid := d.Int64()
			ids := d.Uint32s()
			for _, id := range ids {
				if int(id) >= n {
					d.Fail(fmt.Errorf("c2lsh: id %d out of range %d", id, n))
				}
			}
			t[bid] = ids
			lo[i] = min(lo[i], bid)
			hi[i] = max(hi[i], bid)
		}
		tables[i] = t
	}
	if err := d.Finish(); err != nil {
		return err
	}

	x.dim, x.n, x.opts, x.hashes = dim, n, opts, hashes
	x.tables, x.lo, x.hi = tables, lo, hi
	if n == 0 {
		x.tables = nil
	}
	if x.pool == nil {
		x.pool = &sync.Pool{}
	}
	return nil
}
