package annforest

import (
	"context"
	"fmt"
	"math/rand"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/annforest/index"
	"github.com/hupe1980/annforest/internal/resource"
)

// Ensemble is an ordered set of independently randomized index structures
// over one corpus.
type Ensemble struct {
	members []index.Index
}

// NewEnsemble wraps already fitted members. All must share a dimension.
func NewEnsemble(members ...index.Index) (*Ensemble, error) {
	if len(members) == 0 {
		return nil, ErrEmptyEnsemble
	}
	dim := members[0].Dimension()
	for _, m := range members[1:] {
		if m.Dimension() != dim {
			return nil, &ErrDimensionMismatch{Expected: dim, Actual: m.Dimension()}
		}
	}
	return &Ensemble{members: members}, nil
}

// Len returns the number of members.
func (e *Ensemble) Len() int { return len(e.members) }

// Dimension returns the vector length of the members.
func (e *Ensemble) Dimension() int { return e.members[0].Dimension() }

// Members returns the members in slot order. The slice must not be modified.
func (e *Ensemble) Members() []index.Index { return e.members }

// Prefix returns an ensemble of the first l members. Members are shared.
func (e *Ensemble) Prefix(l int) (*Ensemble, error) {
	if l < 1 || l > len(e.members) {
		return nil, fmt.Errorf("prefix %d of ensemble with %d members: %w", l, len(e.members), ErrEmptyEnsemble)
	}
	return &Ensemble{members: e.members[:l:l]}, nil
}

// EnsembleOptions contains configuration options for BuildEnsemble.
type EnsembleOptions struct {
	// Seed derives every member's random source. Member l draws from
	// MemberSeed(Seed, l), so builds are reproducible.
	Seed int64

	// Grain is the slot range size a task builds sequentially instead of
	// splitting further.
	Grain int

	// Controller bounds concurrent member builds. If nil, builds are bounded
	// by GOMAXPROCS.
	Controller *resource.Controller

	// Logger receives the build summary. Defaults to NoopLogger.
	Logger *Logger

	// MetricsCollector records the build. Defaults to NoopMetricsCollector.
	MetricsCollector MetricsCollector
}

// DefaultEnsembleOptions contains the default configuration options for BuildEnsemble.
var DefaultEnsembleOptions = EnsembleOptions{
	Seed:  1,
	Grain: 1,
}

// MemberSeed derives the seed of slot l from a base seed (SplitMix64 mix).
func MemberSeed(seed int64, l int) int64 {
	z := uint64(seed) + uint64(l+1)*0x9E3779B97F4A7C15
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return int64(z ^ (z >> 31))
}

// BuildEnsemble creates and fits size members from factory.
//
// The slot range is split in halves recursively until a range holds at most
// Grain slots; each task writes only its own slots. The first failure cancels
// the remaining tasks and no ensemble is returned.
func BuildEnsemble(ctx context.Context, corpus [][]float32, size int, factory index.Factory, optFns ...func(o *EnsembleOptions)) (*Ensemble, error) {
	opts := DefaultEnsembleOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Grain < 1 {
		opts.Grain = 1
	}
	if opts.Controller == nil {
		opts.Controller = resource.NewController(resource.Config{MaxWorkers: int64(runtime.GOMAXPROCS(0))})
	}
	if opts.Logger == nil {
		opts.Logger = NoopLogger()
	}
	if opts.MetricsCollector == nil {
		opts.MetricsCollector = NoopMetricsCollector{}
	}

	start := time.Now()
	ens, err := buildEnsemble(ctx, corpus, size, factory, opts)
	elapsed := time.Since(start)
	err = translateError(err)

	opts.MetricsCollector.RecordBuild(size, elapsed, err)
	opts.Logger.LogBuild(ctx, size, len(corpus), elapsed, err)
	return ens, err
}

func buildEnsemble(ctx context.Context, corpus [][]float32, size int, factory index.Factory, opts EnsembleOptions) (*Ensemble, error) {
	if size < 1 {
		return nil, fmt.Errorf("ensemble size %d: %w", size, ErrEmptyEnsemble)
	}
	if len(corpus) == 0 {
		return nil, ErrEmptyCorpus
	}

	b := &ensembleBuilder{
		corpus:  corpus,
		dim:     len(corpus[0]),
		factory: factory,
		opts:    opts,
		slots:   make([]index.Index, size),
	}
	if err := b.build(ctx, 0, size); err != nil {
		return nil, err
	}
	return &Ensemble{members: b.slots}, nil
}

type ensembleBuilder struct {
	corpus  [][]float32
	dim     int
	factory index.Factory
	opts    EnsembleOptions
	slots   []index.Index
}

// build fills slots [lo, hi).
func (b *ensembleBuilder) build(ctx context.Context, lo, hi int) error {
	if hi-lo <= b.opts.Grain {
		for l := lo; l < hi; l++ {
			if err := b.buildSlot(ctx, l); err != nil {
				return err
			}
		}
		return nil
	}

	mid := lo + (hi-lo)/2
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return b.build(gctx, lo, mid) })
	g.Go(func() error { return b.build(gctx, mid, hi) })
	return g.Wait()
}

func (b *ensembleBuilder) buildSlot(ctx context.Context, l int) error {
	if err := b.opts.Controller.AcquireWorker(ctx); err != nil {
		return err
	}
	defer b.opts.Controller.ReleaseWorker()

	rng := rand.New(rand.NewSource(MemberSeed(b.opts.Seed, l)))
	idx, err := b.factory(b.dim, rng)
	if err != nil {
		return &BuildError{Slot: l, Err: err}
	}
	if err := idx.Fit(b.corpus); err != nil {
		return &BuildError{Slot: l, Err: err}
	}
	b.slots[l] = idx
	return nil
}
