// Package tree holds the flattened node layout, builder and codec shared by
// the randomized partition trees.
package tree

import (
	"errors"
	"fmt"
	"slices"

	"github.com/hupe1980/annforest/persistence"
)

// NoChild marks the child links of a leaf.
const NoChild = -1

// ErrCorruptTree is returned when decoded nodes do not form a tree.
var ErrCorruptTree = errors.New("tree: corrupt node layout")

// Node is one node of a flattened binary partition tree.
//
// Inner nodes route a point left when its coordinate along Axis is strictly
// below Split, right otherwise. What Axis selects is up to the tree variant.
type Node struct {
	Split float32
	Axis  int32
	Left  int32
	Right int32
	Leaf  []uint32
}

// IsLeaf reports whether n stores points.
func (n *Node) IsLeaf() bool { return n.Left == NoChild }

// Projector fills vals[i] with the coordinate of ids[i] along the axis it picks
// for a node at the given depth, and returns that axis.
type Projector func(ids []uint32, depth int, vals []float32) (int32, error)

// Tree is a flattened partition. Nodes[0] is the root; leaves are disjoint and
// cover ids 0..N-1.
type Tree struct {
	Nodes []Node
	N     int
}

type task struct {
	node  int32
	ids   []uint32
	depth int
}

// Build partitions ids 0..n-1. A node becomes a leaf when it holds fewer than
// maxLeafSize points or its split would leave one side empty.
func Build(n, maxLeafSize int, project Projector) (Tree, error) {
	if n <= 0 {
		return Tree{}, fmt.Errorf("tree: cannot build over %d points", n)
	}
	ids := make([]uint32, n)
	for i := range ids {
		ids[i] = uint32(i)
	}
	vals := make([]float32, n)
	scratch := make([]float32, n)
	tmp := make([]uint32, n)

	t := Tree{Nodes: []Node{{Left: NoChild, Right: NoChild}}, N: n}
	stack := []task{{node: 0, ids: ids}}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if len(cur.ids) < maxLeafSize {
			t.Nodes[cur.node].Leaf = cur.ids
			continue
		}

		v := vals[:len(cur.ids)]
		axis, err := project(cur.ids, cur.depth, v)
		if err != nil {
			return Tree{}, err
		}
		split := SplitValue(v, scratch)

		nl := partition(cur.ids, v, split, tmp)
		if nl == 0 || nl == len(cur.ids) {
			t.Nodes[cur.node].Leaf = cur.ids
			continue
		}

		left := int32(len(t.Nodes))
		t.Nodes = append(t.Nodes,
			Node{Left: NoChild, Right: NoChild},
			Node{Left: NoChild, Right: NoChild},
		)
		t.Nodes[cur.node] = Node{Split: split, Axis: axis, Left: left, Right: left + 1}

		stack = append(stack,
			task{node: left + 1, ids: cur.ids[nl:], depth: cur.depth + 1},
			task{node: left, ids: cur.ids[:nl:nl], depth: cur.depth + 1},
		)
	}
	return t, nil
}

// partition reorders ids stably so that points with vals < split come first
// and returns their count.
func partition(ids []uint32, vals []float32, split float32, tmp []uint32) int {
	nl := 0
	for _, v := range vals {
		if v < split {
			nl++
		}
	}
	l, r := 0, nl
	for i, v := range vals {
		if v < split {
			tmp[l] = ids[i]
			l++
		} else {
			tmp[r] = ids[i]
			r++
		}
	}
	copy(ids, tmp[:len(ids)])
	return nl
}

// SplitValue returns the median of vals, or their mean when the median equals
// the smallest or largest value. scratch must hold len(vals) elements.
func SplitValue(vals, scratch []float32) float32 {
	s := append(scratch[:0], vals...)
	slices.Sort(s)
	n := len(s)

	var median float32
	if n%2 == 0 {
		median = (s[n/2-1] + s[n/2]) / 2
	} else {
		median = s[n/2]
	}
	if median == s[0] || median == s[n-1] {
		var sum float64
		for _, v := range s {
			sum += float64(v)
		}
		return float32(sum / float64(n))
	}
	return median
}

// Descend follows splits from the root and returns the reached leaf.
// coord returns the query's coordinate along an axis.
func (t *Tree) Descend(coord func(axis int32) float32) []uint32 {
	if len(t.Nodes) == 0 {
		return nil
	}
	n := &t.Nodes[0]
	for !n.IsLeaf() {
		if coord(n.Axis) < n.Split {
			n = &t.Nodes[n.Left]
		} else {
			n = &t.Nodes[n.Right]
		}
	}
	return n.Leaf
}

// Leaves returns the number of leaves.
func (t *Tree) Leaves() int {
	c := 0
	for i := range t.Nodes {
		if t.Nodes[i].IsLeaf() {
			c++
		}
	}
	return c
}

// Depth returns the length of the longest root to leaf path.
func (t *Tree) Depth() int {
	if len(t.Nodes) == 0 {
		return 0
	}
	type entry struct {
		node  int32
		depth int
	}
	maxDepth := 0
	stack := []entry{{0, 0}}
	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := &t.Nodes[e.node]
		if n.IsLeaf() {
			maxDepth = max(maxDepth, e.depth)
			continue
		}
		stack = append(stack, entry{n.Left, e.depth + 1}, entry{n.Right, e.depth + 1})
	}
	return maxDepth
}

// Encode appends the tree to e.
func (t *Tree) Encode(e *persistence.Encoder) {
	e.Uint32(uint32(t.N))
	e.Uint32(uint32(len(t.Nodes)))
	for i := range t.Nodes {
		n := &t.Nodes[i]
		e.Float32(n.Split)
		e.Uint32(uint32(n.Axis))
		e.Uint32(uint32(n.Left))
		e.Uint32(uint32(n.Right))
		if n.IsLeaf() {
			e.Uint32s(n.Leaf)
		}
	}
}

// Decode reads a tree written by Encode. checkAxis validates inner node axes.
func Decode(d *persistence.Decoder, checkAxis func(axis int32) error) (Tree, error) {
	n := int(d.Uint32())
	count := d.Count(16)
	nodes := make([]Node, count)
	for i := range nodes {
		nodes[i] = Node{
			Split: d.Float32(),
			Axis:  int32(d.Uint32()),
			Left:  int32(d.Uint32()),
			Right: int32(d.Uint32()),
		}
		if nodes[i].IsLeaf() {
			nodes[i].Leaf = d.Uint32s()
		}
	}
	if err := d.Err(); err != nil {
		return Tree{}, err
	}
	t := Tree{Nodes: nodes, N: n}
	if err := t.validate(checkAxis); err != nil {
		return Tree{}, err
	}
	return t, nil
}

// validate checks that every node is reached once and leaves partition 0..N-1.
func (t *Tree) validate(checkAxis func(axis int32) error) error {
	if len(t.Nodes) == 0 {
		return fmt.Errorf("%w: no nodes", ErrCorruptTree)
	}
	total := 0
	for i := range t.Nodes {
		total += len(t.Nodes[i].Leaf)
	}
	if total != t.N {
		return fmt.Errorf("%w: leaves hold %d ids, want %d", ErrCorruptTree, total, t.N)
	}
	seen := make([]bool, t.N)
	visited := make([]bool, len(t.Nodes))
	covered := 0
	stack := []int32{0}
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[i] {
			return fmt.Errorf("%w: node %d reached twice", ErrCorruptTree, i)
		}
		visited[i] = true
		n := &t.Nodes[i]
		if n.IsLeaf() {
			for _, id := range n.Leaf {
				if int(id) >= t.N || seen[id] {
					return fmt.Errorf("%w: leaf id %d duplicated or out of range", ErrCorruptTree, id)
				}
				seen[id] = true
				covered++
			}
			continue
		}
		for _, c := range []int32{n.Left, n.Right} {
			if c <= 0 || int(c) >= len(t.Nodes) {
				return fmt.Errorf("%w: child %d out of range", ErrCorruptTree, c)
			}
			stack = append(stack, c)
		}
		if checkAxis != nil {
			if err := checkAxis(n.Axis); err != nil {
				return err
			}
		}
	}
	if covered != t.N {
		return fmt.Errorf("%w: leaves cover %d of %d points", ErrCorruptTree, covered, t.N)
	}
	return nil
}
