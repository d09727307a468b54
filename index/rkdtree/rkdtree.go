// Package rkdtree implements the randomized k-d tree.
//
// Each node splits along a dimension picked uniformly at random among the
// few with the highest variance over the node's points.
package rkdtree

import (
	"fmt"
	"math/rand"

	"github.com/hupe1980/annforest/index"
	"github.com/hupe1980/annforest/index/tree"
	"github.com/hupe1980/annforest/internal/selection"
	"github.com/hupe1980/annforest/persistence"
)

// Compile-time check to ensure Tree satisfies index.Index.
var _ index.Index = (*Tree)(nil)

const (
	magic   = 0x524B4454 // "RKDT"
	version = 1
)

func init() {
	index.Register(index.KindRKDTree, func() index.Index { return &Tree{} })
}

// Options contains configuration options for the randomized k-d tree.
type Options struct {
	// MaxLeafSize stops splitting once a node holds fewer points.
	MaxLeafSize int

	// TopDims is how many highest-variance dimensions a split picks from.
	// Capped at the vector dimension.
	TopDims int
}

// DefaultOptions contains the default configuration options for the randomized k-d tree.
var DefaultOptions = Options{
	MaxLeafSize: 50,
	TopDims:     5,
}

type dimVariance struct {
	dim      int32
	variance float64
}

// Tree is a randomized k-d tree.
type Tree struct {
	dim  int
	opts Options
	rng  *rand.Rand
	tree tree.Tree
}

// New creates an unfitted tree. rng drives the per-node dimension choice.
func New(dim int, rng *rand.Rand, optFns ...func(o *Options)) (*Tree, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if dim <= 0 {
		return nil, fmt.Errorf("%w: dimension %d", index.ErrInvalidOption, dim)
	}
	if opts.MaxLeafSize <= 0 {
		return nil, fmt.Errorf("%w: max leaf size must be positive, got %d", index.ErrInvalidOption, opts.MaxLeafSize)
	}
	if opts.TopDims <= 0 {
		return nil, fmt.Errorf("%w: top dims must be positive, got %d", index.ErrInvalidOption, opts.TopDims)
	}
	opts.TopDims = min(opts.TopDims, dim)
	return &Tree{dim: dim, opts: opts, rng: rng}, nil
}

// Factory returns an index.Factory producing randomized k-d trees.
func Factory(optFns ...func(o *Options)) index.Factory {
	return func(dim int, rng *rand.Rand) (index.Index, error) {
		return New(dim, rng, optFns...)
	}
}

// Fit builds the tree.
func (t *Tree) Fit(corpus [][]float32) error {
	if t.rng == nil {
		return fmt.Errorf("%w: tree has no random source", index.ErrInvalidOption)
	}
	if err := index.ValidateCorpus(corpus, t.dim); err != nil {
		return err
	}
	dims := make([]dimVariance, t.dim)
	means := make([]float64, t.dim)
	built, err := tree.Build(len(corpus), t.opts.MaxLeafSize, func(ids []uint32, _ int, vals []float32) (int32, error) {
		variances(corpus, ids, dims, means)
		selection.TopM(dims, t.opts.TopDims, func(d dimVariance) float64 { return d.variance }, t.rng)
		axis := dims[t.rng.Intn(t.opts.TopDims)].dim
		for i, id := range ids {
			vals[i] = corpus[id][axis]
		}
		return axis, nil
	})
	if err != nil {
		return err
	}
	t.tree = built
	return nil
}

// variances fills dims with the per-dimension variance of the rows in ids.
func variances(corpus [][]float32, ids []uint32, dims []dimVariance, means []float64) {
	clear(means)
	for _, id := range ids {
		for j, v := range corpus[id] {
			means[j] += float64(v)
		}
	}
	n := float64(len(ids))
	for j := range means {
		means[j] /= n
		dims[j] = dimVariance{dim: int32(j)}
	}
	for _, id := range ids {
		for j, v := range corpus[id] {
			diff := float64(v) - means[j]
			dims[j].variance += diff * diff
		}
	}
	for j := range dims {
		dims[j].variance /= n
	}
}

// Search returns the leaf the query descends to.
func (t *Tree) Search(q []float32) ([]uint32, error) {
	if len(t.tree.Nodes) == 0 {
		return nil, index.ErrNotFitted
	}
	if err := index.CheckQuery(t.dim, q); err != nil {
		return nil, err
	}
	return t.tree.Descend(func(axis int32) float32 { return q[axis] }), nil
}

// Kind returns index.KindRKDTree.
func (t *Tree) Kind() index.Kind { return index.KindRKDTree }

// Dimension returns the vector length.
func (t *Tree) Dimension() int { return t.dim }

// Options returns the construction options.
func (t *Tree) Options() Options { return t.opts }

// Nodes exposes the fitted tree.
func (t *Tree) Nodes() *tree.Tree { return &t.tree }

// MarshalBinary encodes the nodes.
func (t *Tree) MarshalBinary() ([]byte, error) {
	e := persistence.NewEncoder(4096)
	e.Header(magic, version)
	e.Uint32(uint32(t.dim))
	e.Uint32(uint32(t.opts.MaxLeafSize))
	e.Uint32(uint32(t.opts.TopDims))
	if len(t.tree.Nodes) > 0 {
		e.Uint8(1)
		t.tree.Encode(e)
	} else {
		e.Uint8(0)
	}
	return e.Bytes(), nil
}

// UnmarshalBinary restores a tree written by MarshalBinary. The restored tree
// can be searched but not refitted.
func (t *Tree) UnmarshalBinary(data []byte) error {
	d := persistence.NewDecoder(data)
	d.Header(magic, version)
	dim := int(d.Uint32())
	opts := Options{MaxLeafSize: int(d.Uint32()), TopDims: int(d.Uint32())}

	var nodes tree.Tree
	if d.Uint8() == 1 {
		var err error
		nodes, err = tree.Decode(d, func(axis int32) error {
			if axis < 0 || int(axis) >= dim {
				return fmt.Errorf("%w: split dimension %d out of range %d", tree.ErrCorruptTree, axis, dim)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	if err := d.Finish(); err != nil {
		return err
	}
	if dim <= 0 || opts.MaxLeafSize <= 0 || opts.TopDims <= 0 {
		return fmt.Errorf("rkdtree: invalid header dim=%d leaf=%d top=%d", dim, opts.MaxLeafSize, opts.TopDims)
	}

	t.dim, t.opts, t.tree = dim, opts, nodes
	return nil
}
