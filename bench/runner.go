package bench

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/hupe1980/annforest"
)

const (
	// SentinelID fills result slots beyond the genuine neighbors.
	SentinelID uint32 = math.MaxUint32

	// SentinelDistance fills distance slots beyond the genuine neighbors.
	SentinelDistance float32 = math.MaxFloat32
)

// Searcher answers one request. *annforest.Searcher implements it.
type Searcher interface {
	Search(q []float32, req annforest.Request) (annforest.Result, error)
}

// Compile-time check to ensure annforest.Searcher satisfies Searcher.
var _ Searcher = (*annforest.Searcher)(nil)

// QueryResult is the outcome of one query, padded to k slots.
type QueryResult struct {
	IDs       []uint32
	Distances []float32

	// Found is the number of genuine neighbors before padding.
	Found int

	// Candidates is the candidate set size before refinement.
	Candidates int

	Elapsed time.Duration
}

// Pad copies neighbors into k slots, filling the rest with the sentinels.
// Neighbors beyond k are dropped.
func Pad(neighbors []annforest.Neighbor, k int) QueryResult {
	r := QueryResult{
		IDs:       make([]uint32, k),
		Distances: make([]float32, k),
		Found:     min(len(neighbors), k),
	}
	for i := range k {
		if i < len(neighbors) {
			r.IDs[i] = neighbors[i].ID
			r.Distances[i] = neighbors[i].Distance
			continue
		}
		r.IDs[i] = SentinelID
		r.Distances[i] = SentinelDistance
	}
	return r
}

// Options contains configuration options for a Runner.
type Options struct {
	// Concurrency is the number of queries in flight. Latencies are most
	// comparable with 1.
	Concurrency int

	// QPS paces queries to at most this rate. Zero does not pace.
	QPS float64

	// Warmup queries are run and discarded before measuring.
	Warmup int

	// Logger defaults to annforest.NoopLogger.
	Logger *annforest.Logger
}

// DefaultOptions contains the default configuration options for a Runner.
var DefaultOptions = Options{
	Concurrency: 1,
}

// Runner runs strategies over query batches.
type Runner struct {
	searcher Searcher
	opts     Options
}

// NewRunner creates a runner for s.
func NewRunner(s Searcher, optFns ...func(o *Options)) *Runner {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Concurrency < 0 {
		opts.Concurrency = runtime.GOMAXPROCS(0)
	}
	if opts.Concurrency == 0 {
		opts.Concurrency = 1
	}
	if opts.Logger == nil {
		opts.Logger = annforest.NoopLogger()
	}
	return &Runner{searcher: s, opts: opts}
}

// Run is the outcome of one request over a query batch.
type Run struct {
	Request annforest.Request
	Results []QueryResult

	// Wall is the elapsed time of the whole batch.
	Wall time.Duration
}

// Run answers every query with req. Any failing query fails the run.
func (r *Runner) Run(ctx context.Context, queries [][]float32, req annforest.Request) (*Run, error) {
	if req.K < 1 {
		return nil, fmt.Errorf("bench: %s: %w", req, annforest.ErrInvalidK)
	}
	for i := range min(r.opts.Warmup, len(queries)) {
		if _, err := r.searcher.Search(queries[i], req); err != nil {
			return nil, fmt.Errorf("bench: warmup query %d: %w", i, err)
		}
	}

	var limiter *rate.Limiter
	if r.opts.QPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(r.opts.QPS), 1)
	}

	results := make([]QueryResult, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Concurrency)

	start := time.Now()
	var paceErr error
	for i, q := range queries {
		if limiter != nil {
			if paceErr = limiter.Wait(gctx); paceErr != nil {
				break
			}
		}
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			t0 := time.Now()
			res, err := r.searcher.Search(q, req)
			elapsed := time.Since(t0)
			if err != nil {
				return fmt.Errorf("bench: query %d: %w", i, err)
			}
			qr := Pad(res.Neighbors, req.K)
			qr.Candidates = res.Candidates
			qr.Elapsed = elapsed
			results[i] = qr
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if paceErr != nil {
		return nil, fmt.Errorf("bench: pacing: %w", paceErr)
	}

	run := &Run{Request: req, Results: results, Wall: time.Since(start)}
	r.opts.Logger.DebugContext(ctx, "benchmark run finished",
		"request", req.String(),
		"queries", len(queries),
		"wall", run.Wall,
	)
	return run, nil
}
