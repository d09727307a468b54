// Package bruteforce ranks corpus points by exact distance.
//
// Results hold at most k neighbors ordered by ascending distance, ties by id.
// A candidate set smaller than k yields fewer results; callers that need a
// fixed width pad on their side.
package bruteforce

import (
	"errors"
	"fmt"
	"iter"
	"sync"

	"github.com/hupe1980/annforest/distance"
	"github.com/hupe1980/annforest/internal/queue"
)

var (
	// ErrEmptyCorpus is returned by New for a corpus without rows.
	ErrEmptyCorpus = errors.New("bruteforce: empty corpus")
	// ErrInvalidK is returned for k < 1.
	ErrInvalidK = errors.New("bruteforce: k must be positive")
)

// ErrIDOutOfRange is returned for candidate ids outside the corpus.
type ErrIDOutOfRange struct {
	ID uint32
	N  int
}

func (e *ErrIDOutOfRange) Error() string {
	return fmt.Sprintf("bruteforce: candidate id %d out of range [0, %d)", e.ID, e.N)
}

// Neighbor is a ranked corpus point.
type Neighbor struct {
	ID       uint32
	Distance float32
}

// KNN is an exact k nearest neighbor scanner over a fixed corpus.
// It is safe for concurrent use.
type KNN struct {
	corpus [][]float32
	dim    int
	metric distance.Metric
	rank   func(a, b []float32) float32
	heaps  sync.Pool
}

// New creates a scanner over corpus. Rows must all have the same length.
func New(corpus [][]float32, metric distance.Metric) (*KNN, error) {
	if len(corpus) == 0 {
		return nil, ErrEmptyCorpus
	}
	dim := len(corpus[0])
	for _, row := range corpus {
		if len(row) != dim {
			return nil, &distance.ErrDimensionMismatch{Expected: dim, Actual: len(row)}
		}
	}
	return &KNN{
		corpus: corpus,
		dim:    dim,
		metric: metric,
		rank:   metric.RankFunc(),
		heaps: sync.Pool{New: func() any {
			return queue.NewBounded(0)
		}},
	}, nil
}

// Len returns the corpus size.
func (b *KNN) Len() int { return len(b.corpus) }

// Dimension returns the row length.
func (b *KNN) Dimension() int { return b.dim }

// Metric returns the ranking metric.
func (b *KNN) Metric() distance.Metric { return b.metric }

// Search ranks the given candidates, which should be distinct.
func (b *KNN) Search(q []float32, candidates []uint32, k int) ([]Neighbor, error) {
	n := len(b.corpus)
	for _, id := range candidates {
		if int(id) >= n {
			return nil, &ErrIDOutOfRange{ID: id, N: n}
		}
	}
	return b.SearchSeq(q, func(yield func(uint32) bool) {
		for _, id := range candidates {
			if !yield(id) {
				return
			}
		}
	}, k)
}

// SearchAll ranks the entire corpus.
func (b *KNN) SearchAll(q []float32, k int) ([]Neighbor, error) {
	return b.SearchSeq(q, b.All(-1), k)
}

// All yields every corpus id except skip. Pass -1 to skip nothing.
func (b *KNN) All(skip int) iter.Seq[uint32] {
	return func(yield func(uint32) bool) {
		for i := range b.corpus {
			if i == skip {
				continue
			}
			if !yield(uint32(i)) {
				return
			}
		}
	}
}

// SearchSeq ranks the ids produced by ids. Ids must be in range.
func (b *KNN) SearchSeq(q []float32, ids iter.Seq[uint32], k int) ([]Neighbor, error) {
	if k < 1 {
		return nil, ErrInvalidK
	}
	if len(q) != b.dim {
		return nil, &distance.ErrDimensionMismatch{Expected: b.dim, Actual: len(q)}
	}

	h := b.heaps.Get().(*queue.Bounded)
	defer b.heaps.Put(h)
	h.Reset(k)

	for id := range ids {
		h.Offer(id, b.rank(q, b.corpus[id]))
	}

	items := h.Drain()
	out := make([]Neighbor, len(items))
	for i, it := range items {
		out[i] = Neighbor{ID: it.ID, Distance: b.metric.Report(it.Distance)}
	}
	return out, nil
}

// IDs returns the ids of ns in order.
func IDs(ns []Neighbor) []uint32 {
	out := make([]uint32, len(ns))
	for i, n := range ns {
		out[i] = n.ID
	}
	return out
}
