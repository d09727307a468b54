// Package groundtruth builds and stores exact k nearest neighbor tables.
//
// A Table is the secondary index consulted by the natural classifier
// strategies: row i lists the k corpus points closest to point i.
package groundtruth

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/annforest/bruteforce"
	"github.com/hupe1980/annforest/distance"
	"github.com/hupe1980/annforest/internal/resource"
	"github.com/hupe1980/annforest/persistence"
)

const (
	magic   = 0x47545255 // "GTRU"
	version = 1

	// DefaultChunkSize is the number of rows one build task computes.
	DefaultChunkSize = 1000
)

var (
	// ErrInvalidK is returned for a neighbor count the corpus cannot fill.
	ErrInvalidK = errors.New("groundtruth: invalid k")
	// ErrRaggedRows is returned by FromRows for rows of unequal length.
	ErrRaggedRows = errors.New("groundtruth: rows differ in length")
)

// Table is a row-major N x K neighbor table.
type Table struct {
	k   int
	n   int
	ids []uint32
}

// New wraps a flat row-major id slice. len(ids) must be n*k.
func New(ids []uint32, n, k int) (*Table, error) {
	if k < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidK, k)
	}
	if n < 1 || len(ids) != n*k {
		return nil, fmt.Errorf("groundtruth: %d ids do not form %d rows of %d", len(ids), n, k)
	}
	for _, id := range ids {
		if int(id) >= n {
			return nil, fmt.Errorf("groundtruth: neighbor id %d out of range %d", id, n)
		}
	}
	return &Table{k: k, n: n, ids: ids}, nil
}

// FromRows copies a table given as one slice per point.
func FromRows(rows [][]uint32) (*Table, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("groundtruth: no rows")
	}
	k := len(rows[0])
	ids := make([]uint32, 0, len(rows)*k)
	for i, row := range rows {
		if len(row) != k {
			return nil, fmt.Errorf("%w: row %d has %d ids, row 0 has %d", ErrRaggedRows, i, len(row), k)
		}
		ids = append(ids, row...)
	}
	return New(ids, len(rows), k)
}

// K returns the row length.
func (t *Table) K() int { return t.k }

// Len returns the number of rows.
func (t *Table) Len() int { return t.n }

// Row returns the neighbors of point i, nearest first. The slice aliases the
// table.
func (t *Table) Row(i uint32) []uint32 {
	off := int(i) * t.k
	return t.ids[off : off+t.k : off+t.k]
}

// IDs returns the flat row-major storage.
func (t *Table) IDs() []uint32 { return t.ids }

// Prefix returns a table keeping the first k neighbors of every row.
func (t *Table) Prefix(k int) (*Table, error) {
	if k < 1 || k > t.k {
		return nil, fmt.Errorf("%w: prefix %d of rows with %d", ErrInvalidK, k, t.k)
	}
	if k == t.k {
		return t, nil
	}
	ids := make([]uint32, 0, t.n*k)
	for i := range t.n {
		ids = append(ids, t.Row(uint32(i))[:k]...)
	}
	return &Table{k: k, n: t.n, ids: ids}, nil
}

// MarshalBinary encodes the table.
func (t *Table) MarshalBinary() ([]byte, error) {
	e := persistence.NewEncoder(16 + 4*len(t.ids))
	e.Header(magic, version)
	e.Uint32(uint32(t.n))
	e.Uint32(uint32(t.k))
	e.Uint32s(t.ids)
	return e.Bytes(), nil
}

// UnmarshalBinary restores a table written by MarshalBinary.
func (t *Table) UnmarshalBinary(data []byte) error {
	d := persistence.NewDecoder(data)
	d.Header(magic, version)
	n := int(d.Uint32())
	k := int(d.Uint32())
	ids := d.Uint32s()
	if err := d.Finish(); err != nil {
		return err
	}
	restored, err := New(ids, n, k)
	if err != nil {
		return err
	}
	*t = *restored
	return nil
}

// Options contains configuration options for Build.
type Options struct {
	// ChunkSize is the number of rows per task.
	ChunkSize int

	// IncludeSelf keeps each point in its own row. By default a row lists
	// the nearest other points.
	IncludeSelf bool

	// Metric ranks neighbors.
	Metric distance.Metric

	// Concurrency bounds parallel chunks when Controller is nil.
	// Defaults to GOMAXPROCS.
	Concurrency int

	// Controller, if set, bounds parallel chunks by its worker limit and
	// accounts for the table's memory while building.
	Controller *resource.Controller

	// Progress, if set, is called after each finished chunk.
	Progress func(done, total int)
}

// DefaultOptions contains the default configuration options for Build.
var DefaultOptions = Options{
	ChunkSize: DefaultChunkSize,
	Metric:    distance.MetricEuclidean,
}

// ChunkError reports the chunk whose task failed.
type ChunkError struct {
	Start, End int
	Err        error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("groundtruth: rows [%d, %d): %v", e.Start, e.End, e.Err)
}

func (e *ChunkError) Unwrap() error { return e.Err }

// Build computes the exact k nearest neighbors of every corpus point.
//
// Rows are split into chunks computed in parallel; every task writes only its
// own rows. Build waits for all tasks and returns no table if any fails.
func Build(ctx context.Context, corpus [][]float32, k int, optFns ...func(o *Options)) (*Table, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}

	knn, err := bruteforce.New(corpus, opts.Metric)
	if err != nil {
		return nil, err
	}
	n := len(corpus)
	available := n - 1
	if opts.IncludeSelf {
		available = n
	}
	if k < 1 || k > available {
		return nil, fmt.Errorf("%w: k=%d with %d candidate neighbors", ErrInvalidK, k, available)
	}

	size := int64(n) * int64(k) * 4
	if err := opts.Controller.AcquireMemory(size); err != nil {
		return nil, fmt.Errorf("groundtruth: reserve %d bytes: %w", size, err)
	}
	defer opts.Controller.ReleaseMemory(size)

	ids := make([]uint32, n*k)
	chunks := (n + opts.ChunkSize - 1) / opts.ChunkSize
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	if opts.Controller == nil {
		limit := opts.Concurrency
		if limit <= 0 {
			limit = runtime.GOMAXPROCS(0)
		}
		g.SetLimit(limit)
	}

	for c := range chunks {
		start := c * opts.ChunkSize
		end := min(start+opts.ChunkSize, n)
		if err := opts.Controller.AcquireWorker(gctx); err != nil {
			break
		}
		g.Go(func() error {
			defer opts.Controller.ReleaseWorker()
			if err := buildRows(gctx, knn, corpus, ids, start, end, k, opts.IncludeSelf); err != nil {
				return &ChunkError{Start: start, End: end, Err: err}
			}
			if opts.Progress != nil {
				opts.Progress(int(done.Add(1)), chunks)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Table{k: k, n: n, ids: ids}, nil
}

func buildRows(ctx context.Context, knn *bruteforce.KNN, corpus [][]float32, ids []uint32, start, end, k int, includeSelf bool) error {
	for i := start; i < end; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		skip := i
		if includeSelf {
			skip = -1
		}
		row, err := knn.SearchSeq(corpus[i], knn.All(skip), k)
		if err != nil {
			return err
		}
		out := ids[i*k : (i+1)*k]
		for j, nb := range row {
			out[j] = nb.ID
		}
	}
	return nil
}
