// Package rptree implements the random projection tree.
//
// Every node at the same depth splits along one shared sparse random
// direction, drawn the first time the builder reaches that depth.
package rptree

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/hupe1980/annforest/index"
	"github.com/hupe1980/annforest/index/tree"
	"github.com/hupe1980/annforest/persistence"
)

// Compile-time check to ensure Tree satisfies index.Index.
var _ index.Index = (*Tree)(nil)

const (
	magic   = 0x52505452 // "RPTR"
	version = 1
)

func init() {
	index.Register(index.KindRPTree, func() index.Index { return &Tree{} })
}

// Options contains configuration options for the random projection tree.
type Options struct {
	// MaxLeafSize stops splitting once a node holds fewer points.
	MaxLeafSize int
}

// DefaultOptions contains the default configuration options for the random projection tree.
var DefaultOptions = Options{
	MaxLeafSize: 50,
}

// Projection is a sparse unit direction.
type Projection struct {
	Indices []uint32
	Values  []float32
}

// Dot projects v onto p.
func (p Projection) Dot(v []float32) float32 {
	var sum float64
	for i, j := range p.Indices {
		sum += float64(p.Values[i]) * float64(v[j])
	}
	return float32(sum)
}

// NewProjection draws a direction whose components are nonzero with
// probability 1/sqrt(dim), nonzero values ~N(0,1), then normalized.
// At least one component is nonzero.
func NewProjection(dim int, rng *rand.Rand) Projection {
	sparsity := 1 / math.Sqrt(float64(dim))
	for {
		var p Projection
		var norm float64
		for i := range dim {
			if rng.Float64() < sparsity {
				v := rng.NormFloat64()
				p.Indices = append(p.Indices, uint32(i))
				p.Values = append(p.Values, float32(v))
				norm += v * v
			}
		}
		if norm == 0 {
			continue
		}
		inv := 1 / math.Sqrt(norm)
		for i := range p.Values {
			p.Values[i] = float32(float64(p.Values[i]) * inv)
		}
		return p
	}
}

// Tree is a random projection tree.
type Tree struct {
	dim         int
	opts        Options
	rng         *rand.Rand
	projections []Projection
	tree        tree.Tree
}

// New creates an unfitted tree. rng draws the per-depth directions during Fit.
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
	return &Tree{dim: dim, opts: opts, rng: rng}, nil
}

// Factory returns an index.Factory producing random projection trees.
func Factory(optFns ...func(o *Options)) index.Factory {
	return func(dim int, rng *rand.Rand) (index.Index, error) {
		return New(dim, rng, optFns...)
	}
}

// Fit builds the tree, drawing a new direction per depth.
func (t *Tree) Fit(corpus [][]float32) error {
	if t.rng == nil {
		return fmt.Errorf("%w: tree has no random source", index.ErrInvalidOption)
	}
	if err := index.ValidateCorpus(corpus, t.dim); err != nil {
		return err
	}
	var projections []Projection
	built, err := tree.Build(len(corpus), t.opts.MaxLeafSize, func(ids []uint32, depth int, vals []float32) (int32, error) {
		if depth == len(projections) {
			projections = append(projections, NewProjection(t.dim, t.rng))
		}
		p := projections[depth]
		for i, id := range ids {
			vals[i] = p.Dot(corpus[id])
		}
		return int32(depth), nil
	})
	if err != nil {
		return err
	}
	t.projections = projections
	t.tree = built
	return nil
}

// Search returns the leaf the query descends to.
func (t *Tree) Search(q []float32) ([]uint32, error) {
	if len(t.tree.Nodes) == 0 {
		return nil, index.ErrNotFitted
	}
	if err := index.CheckQuery(t.dim, q); err != nil {
		return nil, err
	}
	return t.tree.Descend(func(axis int32) float32 {
		return t.projections[axis].Dot(q)
	}), nil
}

// Kind returns index.KindRPTree.
func (t *Tree) Kind() index.Kind { return index.KindRPTree }

// Dimension returns the vector length.
func (t *Tree) Dimension() int { return t.dim }

// Options returns the construction options.
func (t *Tree) Options() Options { return t.opts }

// Projections returns the per-depth directions.
func (t *Tree) Projections() []Projection { return t.projections }

// Nodes exposes the fitted tree.
func (t *Tree) Nodes() *tree.Tree { return &t.tree }

// MarshalBinary encodes the directions and nodes.
func (t *Tree) MarshalBinary() ([]byte, error) {
	e := persistence.NewEncoder(4096)
	e.Header(magic, version)
	e.Uint32(uint32(t.dim))
	e.Uint32(uint32(t.opts.MaxLeafSize))
	e.Uint32(uint32(len(t.projections)))
	for _, p := range t.projections {
		e.Uint32s(p.Indices)
		e.Float32s(p.Values)
	}
	fitted := len(t.tree.Nodes) > 0
	if fitted {
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
	opts := Options{MaxLeafSize: int(d.Uint32())}

	count := d.Count(8)
	projections := make([]Projection, count)
	for i := range projections {
		p := Projection{Indices: d.Uint32s(), Values: d.Float32s()}
		if d.Err() != nil {
			break
		}
		if len(p.Indices) != len(p.Values) {
			return fmt.Errorf("rptree: projection %d has %d indices and %d values", i, len(p.Indices), len(p.Values))
		}
		for _, j := range p.Indices {
			if int(j) >= dim {
				return fmt.Errorf("rptree: projection %d index %d out of range %d", i, j, dim)
			}
		}
		projections[i] = p
	}

	var nodes tree.Tree
	if d.Uint8() == 1 {
		var err error
		nodes, err = tree.Decode(d, func(axis int32) error {
			if axis < 0 || int(axis) >= len(projections) {
				return fmt.Errorf("%w: depth %d has no projection", tree.ErrCorruptTree, axis)
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
	if dim <= 0 || opts.MaxLeafSize <= 0 {
		return fmt.Errorf("rptree: invalid header dim=%d leaf=%d", dim, opts.MaxLeafSize)
	}

	t.dim, t.opts = dim, opts
	t.projections, t.tree = projections, nodes
	return nil
}
