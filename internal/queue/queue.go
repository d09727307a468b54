// Package queue provides the bounded max-heap used for exact top-k selection.
package queue

import "container/heap"

// Compile time check to ensure Bounded satisfies the heap interface.
var _ heap.Interface = (*Bounded)(nil)

// Item is a corpus id with its ranking distance.
type Item struct {
	ID       uint32
	Distance float32
}

// Bounded keeps the k smallest items seen so far, ordered by distance and
// then by id. The root is the largest retained item, so a full heap rejects
// any candidate that does not order before the root in O(1).
type Bounded struct {
	k     int
	items []Item
}

// NewBounded creates a heap that retains at most k items.
func NewBounded(k int) *Bounded {
	if k < 0 {
		k = 0
	}
	return &Bounded{
		k:     k,
		items: make([]Item, 0, k),
	}
}

// Offer considers an item for retention.
// Equal to pushing and then popping the largest when the heap exceeds k.
func (b *Bounded) Offer(id uint32, distance float32) {
	if b.k == 0 {
		return
	}
	if len(b.items) < b.k {
		heap.Push(b, Item{ID: id, Distance: distance})
		return
	}
	it := Item{ID: id, Distance: distance}
	if !it.before(b.items[0]) {
		return
	}
	b.items[0] = it
	heap.Fix(b, 0)
}

// Top returns the largest retained item.
func (b *Bounded) Top() (Item, bool) {
	if len(b.items) == 0 {
		return Item{}, false
	}
	return b.items[0], true
}

// Cap returns k.
func (b *Bounded) Cap() int { return b.k }

// Drain empties the heap and returns its items ascending by distance.
func (b *Bounded) Drain() []Item {
	out := make([]Item, len(b.items))
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(b).(Item)
	}
	return out
}

// Reset clears the heap for reuse with a new bound.
func (b *Bounded) Reset(k int) {
	if k < 0 {
		k = 0
	}
	b.k = k
	b.items = b.items[:0]
}

// Len returns the number of elements in the heap.
func (b *Bounded) Len() int { return len(b.items) }

// before reports whether it ranks ahead of other.
func (it Item) before(other Item) bool {
	if it.Distance != other.Distance {
		return it.Distance < other.Distance
	}
	return it.ID < other.ID
}

// Less orders the heap largest first.
func (b *Bounded) Less(i, j int) bool {
	return b.items[j].before(b.items[i])
}

// Swap swaps the elements with indexes i and j.
func (b *Bounded) Swap(i, j int) {
	b.items[i], b.items[j] = b.items[j], b.items[i]
}

// Push adds x to the heap. Use Offer; this is for container/heap.
func (b *Bounded) Push(x any) {
	b.items = append(b.items, x.(Item))
}

// Pop removes the last element. Use Drain; this is for container/heap.
func (b *Bounded) Pop() any {
	n := len(b.items)
	item := b.items[n-1]
	b.items[n-1] = Item{}
	b.items = b.items[:n-1]
	return item
}
