package hashtable

import (
	"fmt"
	"math/rand"

	"github.com/hupe1980/annforest/index"
	"github.com/hupe1980/annforest/lsh"
	"github.com/hupe1980/annforest/persistence"
)

// AngularOptions contains configuration options for the angular table.
type AngularOptions struct {
	// K is the number of hyperplanes; the bucket key has K bits. At most 64.
	K int
}

// DefaultAngularOptions contains the default configuration options for the angular table.
var DefaultAngularOptions = AngularOptions{
	K: 16,
}

// AngularTable is an LSH table keyed by the sign pattern of K hyperplanes.
type AngularTable struct {
	dim     int
	hashes  lsh.AngularComposite
	buckets buckets
}

// NewAngular creates an unfitted angular table.
func NewAngular(dim int, rng *rand.Rand, optFns ...func(o *AngularOptions)) (*AngularTable, error) {
	opts := DefaultAngularOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if dim <= 0 {
		return nil, fmt.Errorf("%w: dimension %d", index.ErrInvalidOption, dim)
	}
	if err := lsh.ValidateAngularK(opts.K); err != nil {
		return nil, fmt.Errorf("%w: %w", index.ErrInvalidOption, err)
	}
	return &AngularTable{
		dim:    dim,
		hashes: lsh.NewAngularComposite(dim, opts.K, rng),
	}, nil
}

// AngularFactory returns an index.Factory producing angular tables.
func AngularFactory(optFns ...func(o *AngularOptions)) index.Factory {
	return func(dim int, rng *rand.Rand) (index.Index, error) {
		return NewAngular(dim, rng, optFns...)
	}
}

// Fit hashes every corpus point into its bucket.
func (t *AngularTable) Fit(corpus [][]float32) error {
	if err := index.ValidateCorpus(corpus, t.dim); err != nil {
		return err
	}
	b := make(buckets)
	for i, v := range corpus {
		key, err := t.hashes.Key(v)
		if err != nil {
			return err
		}
		b[key] = append(b[key], uint32(i))
	}
	t.buckets = b
	return nil
}

// Search returns the query's bucket, or nil if no corpus point shares it.
func (t *AngularTable) Search(q []float32) ([]uint32, error) {
	if t.buckets == nil {
		return nil, index.ErrNotFitted
	}
	key, err := t.hashes.Key(q)
	if err != nil {
		return nil, err
	}
	return t.buckets[key], nil
}

// Kind returns index.KindAngularHashTable.
func (t *AngularTable) Kind() index.Kind { return index.KindAngularHashTable }

// Dimension returns the vector length.
func (t *AngularTable) Dimension() int { return t.dim }

// K returns the number of hyperplanes.
func (t *AngularTable) K() int { return len(t.hashes.Hashes) }

// BucketCount returns the number of non-empty buckets.
func (t *AngularTable) BucketCount() int { return len(t.buckets) }

// MarshalBinary encodes the hyperplanes and buckets.
func (t *AngularTable) MarshalBinary() ([]byte, error) {
	e := persistence.NewEncoder(1024)
	e.Header(angularMagic, version)
	e.Uint32(uint32(t.dim))
	e.Uint32(uint32(len(t.hashes.Hashes)))
	for _, h := range t.hashes.Hashes {
		e.Float32s(h.A)
	}
	t.buckets.encode(e)
	return e.Bytes(), nil
}

// UnmarshalBinary restores a table written by MarshalBinary.
func (t *AngularTable) UnmarshalBinary(data []byte) error {
	d := persistence.NewDecoder(data)
	d.Header(angularMagic, version)
	dim := int(d.Uint32())
	k := int(d.Uint32())
	if err := d.Err(); err != nil {
		return err
	}
	if err := lsh.ValidateAngularK(k); err != nil {
		return err
	}
	hashes := make([]lsh.AngularHash, 0, k)
	for range k {
		a := d.Float32s()
		if d.Err() == nil && len(a) != dim {
			return fmt.Errorf("hashtable: hyperplane has %d components, want %d", len(a), dim)
		}
		hashes = append(hashes, lsh.AngularHash{A: a})
	}
	bk := decodeBuckets(d)
	if err := d.Finish(); err != nil {
		return err
	}

	t.dim = dim
	t.hashes = lsh.AngularComposite{Hashes: hashes}
	t.buckets = bk
	return nil
}
