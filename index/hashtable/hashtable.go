// Package hashtable provides the classic and angular LSH bucket indexes.
package hashtable

import (
	"fmt"
	"math/rand"

	"github.com/hupe1980/annforest/index"
	"github.com/hupe1980/annforest/lsh"
	"github.com/hupe1980/annforest/persistence"
)

// Compile-time checks to ensure both tables satisfy index.Index.
var (
	_ index.Index = (*Table)(nil)
	_ index.Index = (*AngularTable)(nil)
)

const (
	magic        = 0x4C534854 // "LSHT"
	angularMagic = 0x414C5348 // "ALSH"
	version      = 1

	maxK = 1 << 12
)

func init() {
	index.Register(index.KindHashTable, func() index.Index { return &Table{} })
	index.Register(index.KindAngularHashTable, func() index.Index { return &AngularTable{} })
}

// Options contains configuration options for the Euclidean table.
type Options struct {
	// K is the number of hash functions folded into each bucket key.
	// Larger K gives smaller, more selective buckets.
	K int

	// Width is the bucket width r of every hash function.
	Width float64
}

// DefaultOptions contains the default configuration options for the Euclidean table.
var DefaultOptions = Options{
	K:     8,
	Width: 4,
}

// Table is a classic Euclidean LSH table.
type Table struct {
	dim     int
	opts    Options
	hashes  lsh.EuclideanComposite
	buckets buckets
}

// New creates an unfitted Euclidean table.
func New(dim int, rng *rand.Rand, optFns ...func(o *Options)) (*Table, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if dim <= 0 {
		return nil, fmt.Errorf("%w: dimension %d", index.ErrInvalidOption, dim)
	}
	if opts.K <= 0 {
		return nil, fmt.Errorf("%w: K must be positive, got %d", index.ErrInvalidOption, opts.K)
	}
	if opts.Width <= 0 {
		return nil, fmt.Errorf("%w: width must be positive, got %g", index.ErrInvalidOption, opts.Width)
	}
	return &Table{
		dim:    dim,
		opts:   opts,
		hashes: lsh.NewEuclideanComposite(dim, opts.K, opts.Width, rng),
	}, nil
}

// Factory returns an index.Factory producing Euclidean tables.
func Factory(optFns ...func(o *Options)) index.Factory {
	return func(dim int, rng *rand.Rand) (index.Index, error) {
		return New(dim, rng, optFns...)
	}
}

// Fit hashes every corpus point into its bucket.
func (t *Table) Fit(corpus [][]float32) error {
	if err := index.ValidateCorpus(corpus, t.dim); err != nil {
		return err
	}
	b := make(buckets)
	scratch := make([]int64, t.opts.K)
	for i, v := range corpus {
		key, err := t.hashes.Key(v, scratch)
		if err != nil {
			return err
		}
		b[key] = append(b[key], uint32(i))
	}
	t.buckets = b
	return nil
}

// Search returns the query's bucket, or nil if no corpus point shares it.
func (t *Table) Search(q []float32) ([]uint32, error) {
	if t.buckets == nil {
		return nil, index.ErrNotFitted
	}
	key, err := t.hashes.Key(q, nil)
	if err != nil {
		return nil, err
	}
	return t.buckets[key], nil
}

// Kind returns index.KindHashTable.
func (t *Table) Kind() index.Kind { return index.KindHashTable }

// Dimension returns the vector length.
func (t *Table) Dimension() int { return t.dim }

// Options returns the construction options.
func (t *Table) Options() Options { return t.opts }

// Hashes exposes the drawn hash functions and key coefficients.
func (t *Table) Hashes() lsh.EuclideanComposite { return t.hashes }

// BucketCount returns the number of non-empty buckets.
func (t *Table) BucketCount() int { return len(t.buckets) }

// LargestBucket returns the size of the biggest bucket.
func (t *Table) LargestBucket() int { return t.buckets.largest() }

// MarshalBinary encodes the hash parameters and buckets.
func (t *Table) MarshalBinary() ([]byte, error) {
	e := persistence.NewEncoder(1024)
	e.Header(magic, version)
	e.Uint32(uint32(t.dim))
	e.Uint32(uint32(t.opts.K))
	e.Float64(t.opts.Width)
	for _, h := range t.hashes.Hashes {
		e.Float32s(h.A)
		e.Float64(h.B)
	}
	e.Uint64s(t.hashes.Poly.Coefficients)
	t.buckets.encode(e)
	return e.Bytes(), nil
}

// UnmarshalBinary restores a table written by MarshalBinary.
func (t *Table) UnmarshalBinary(data []byte) error {
	d := persistence.NewDecoder(data)
	d.Header(magic, version)
	dim := int(d.Uint32())
	opts := Options{K: int(d.Uint32()), Width: d.Float64()}
	if err := d.Err(); err != nil {
		return err
	}
	if opts.K <= 0 || opts.K > maxK {
		return fmt.Errorf("hashtable: invalid K %d", opts.K)
	}

	hashes := make([]lsh.EuclideanHash, 0, opts.K)
	for range opts.K {
		a := d.Float32s()
		b := d.Float64()
		if d.Err() == nil && len(a) != dim {
			return fmt.Errorf("hashtable: projection has %d components, want %d", len(a), dim)
		}
		hashes = append(hashes, lsh.EuclideanHash{A: a, B: b, Width: opts.Width})
	}
	coef := d.Uint64s()
	bk := decodeBuckets(d)
	if err := d.Finish(); err != nil {
		return err
	}
	if len(coef) != opts.K {
		return fmt.Errorf("hashtable: %d key coefficients, want %d", len(coef), opts.K)
	}

	t.dim = dim
	t.opts = opts
	t.hashes = lsh.EuclideanComposite{Hashes: hashes, Poly: lsh.PolynomialKey{Coefficients: coef}}
	t.buckets = bk
	return nil
}
