package annforest

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/annforest/bruteforce"
	"github.com/hupe1980/annforest/groundtruth"
	"github.com/hupe1980/annforest/index"
	"github.com/hupe1980/annforest/internal/pool"
	"github.com/hupe1980/annforest/internal/selection"
)

// Neighbor is a ranked corpus point.
type Neighbor = bruteforce.Neighbor

// Result is the outcome of one query.
type Result struct {
	// Neighbors holds up to k points, nearest first. It is shorter than k
	// when fewer candidates were found.
	Neighbors []Neighbor

	// Candidates is the candidate set size before refinement.
	Candidates int
}

// IDs returns the neighbor ids in rank order.
func (r Result) IDs() []uint32 { return bruteforce.IDs(r.Neighbors) }

// Searcher answers queries by merging the results of an ensemble and ranking
// the merged candidates exactly.
//
// Queries are read-only and safe for concurrent use. Per-query counters come
// from a pool and are cleared before reuse.
type Searcher struct {
	corpus  [][]float32
	members []index.Index
	knn     *bruteforce.KNN
	opts    options
}

// NewSearcher creates a searcher over corpus and an ensemble fitted on it.
func NewSearcher(corpus [][]float32, ensemble *Ensemble, optFns ...Option) (*Searcher, error) {
	if ensemble == nil || ensemble.Len() == 0 {
		return nil, ErrEmptyEnsemble
	}
	opts := applyOptions(optFns)
	knn, err := bruteforce.New(corpus, opts.metric)
	if err != nil {
		return nil, translateError(err)
	}
	if ensemble.Dimension() != knn.Dimension() {
		return nil, &ErrDimensionMismatch{Expected: knn.Dimension(), Actual: ensemble.Dimension()}
	}
	return &Searcher{
		corpus:  corpus,
		members: ensemble.Members(),
		knn:     knn,
		opts:    opts,
	}, nil
}

// SetSecondaryIndex replaces the ground-truth table. It must not be called
// concurrently with queries.
func (s *Searcher) SetSecondaryIndex(table *groundtruth.Table, expectedK int) {
	s.opts.secondary = table
	s.opts.secondaryK = expectedK
}

// Len returns the corpus size.
func (s *Searcher) Len() int { return len(s.corpus) }

// EnsembleSize returns the number of members.
func (s *Searcher) EnsembleSize() int { return len(s.members) }

// LookupSearch ranks the union of every member's result.
func (s *Searcher) LookupSearch(q []float32, k int) (Result, error) {
	return s.run(StrategyLookup, q, k, func() ([]uint32, error) {
		bm := roaring.New()
		for _, m := range s.members {
			ids, err := m.Search(q)
			if err != nil {
				return nil, err
			}
			bm.AddMany(ids)
		}
		return bm.ToArray(), nil
	})
}

// VotingSearch ranks the points returned by at least threshold members.
// A threshold of 1 gives the same candidates as LookupSearch.
func (s *Searcher) VotingSearch(q []float32, k, threshold int) (Result, error) {
	if threshold < 1 {
		return Result{}, fmt.Errorf("%w: voting threshold %d", ErrInvalidThreshold, threshold)
	}
	return s.run(StrategyVoting, q, k, func() ([]uint32, error) {
		vc := pool.Get(len(s.corpus))
		defer pool.Put(vc)

		var candidates []uint32
		for _, m := range s.members {
			ids, err := m.Search(q)
			if err != nil {
				return nil, err
			}
			for _, id := range ids {
				if vc.AddCount(id) == uint32(threshold) {
					candidates = append(candidates, id)
				}
			}
		}
		return candidates, nil
	})
}

// NaturalClassifierSearch spreads each member result R as votes of weight
// w(R) to the secondary neighbors of every point in R, and ranks the points
// whose accumulated weight reaches voteThreshold.
func (s *Searcher) NaturalClassifierSearch(q []float32, k int, voteThreshold float64) (Result, error) {
	if !(voteThreshold > 0) {
		return Result{}, fmt.Errorf("%w: vote threshold %g", ErrInvalidThreshold, voteThreshold)
	}
	return s.runSecondary(StrategyNaturalClassifier, q, k, func(table *groundtruth.Table) ([]uint32, error) {
		vc := pool.Get(len(s.corpus))
		defer pool.Put(vc)

		var candidates []uint32
		err := s.spreadVotes(q, table, func(id uint32, w float64) {
			if vc.AddWeight(id, w) >= voteThreshold && vc.Admit(id) {
				candidates = append(candidates, id)
			}
		})
		if err != nil {
			return nil, err
		}
		return candidates, nil
	})
}

// NaturalClassifierSetSizeSearch ranks at most setSize points with the
// largest natural classifier weight. All points with a nonzero weight are
// kept when there are fewer than setSize.
func (s *Searcher) NaturalClassifierSetSizeSearch(q []float32, k, setSize int) (Result, error) {
	if setSize < 1 {
		return Result{}, fmt.Errorf("%w: candidate set size %d", ErrInvalidThreshold, setSize)
	}
	return s.runSecondary(StrategyNaturalClassifierSetSize, q, k, func(table *groundtruth.Table) ([]uint32, error) {
		vc := pool.Get(len(s.corpus))
		defer pool.Put(vc)

		if err := s.spreadVotes(q, table, func(id uint32, w float64) {
			vc.AddWeight(id, w)
		}); err != nil {
			return nil, err
		}

		if len(vc.Touched) < setSize {
			return append([]uint32(nil), vc.Touched...), nil
		}
		votes := make([]selection.Vote, len(vc.Touched))
		for i, id := range vc.Touched {
			votes[i] = selection.Vote{ID: id, Weight: vc.Weights[id]}
		}
		selection.TopVotes(votes, setSize, nil)
		candidates := make([]uint32, setSize)
		for i := range candidates {
			candidates[i] = votes[i].ID
		}
		return candidates, nil
	})
}

// NaturalClassifierRawCountSearch counts one vote per secondary neighbor of
// every point in every member result, and ranks the points reaching threshold.
func (s *Searcher) NaturalClassifierRawCountSearch(q []float32, k, threshold int) (Result, error) {
	if threshold < 1 {
		return Result{}, fmt.Errorf("%w: raw count threshold %d", ErrInvalidThreshold, threshold)
	}
	return s.runSecondary(StrategyNaturalClassifierRawCount, q, k, func(table *groundtruth.Table) ([]uint32, error) {
		vc := pool.Get(len(s.corpus))
		defer pool.Put(vc)

		var candidates []uint32
		err := s.spreadVotes(q, table, func(id uint32, _ float64) {
			if vc.AddCount(id) == uint32(threshold) {
				candidates = append(candidates, id)
			}
		})
		if err != nil {
			return nil, err
		}
		return candidates, nil
	})
}

// BruteForceSearch ranks the entire corpus. It ignores the ensemble.
func (s *Searcher) BruteForceSearch(q []float32, k int) (Result, error) {
	start := time.Now()
	if err := s.checkQuery(q, k); err != nil {
		return s.finish(StrategyBruteForce, k, Result{}, start, err)
	}
	neighbors, err := s.knn.SearchAll(q, k)
	return s.finish(StrategyBruteForce, k, Result{Neighbors: neighbors, Candidates: len(s.corpus)}, start, err)
}

// Search dispatches to the strategy named in req.
func (s *Searcher) Search(q []float32, req Request) (Result, error) {
	switch req.Strategy {
	case StrategyLookup:
		return s.LookupSearch(q, req.K)
	case StrategyVoting:
		t, err := req.intThreshold()
		if err != nil {
			return Result{}, err
		}
		return s.VotingSearch(q, req.K, t)
	case StrategyNaturalClassifier:
		return s.NaturalClassifierSearch(q, req.K, req.Threshold)
	case StrategyNaturalClassifierSetSize:
		t, err := req.intThreshold()
		if err != nil {
			return Result{}, err
		}
		return s.NaturalClassifierSetSizeSearch(q, req.K, t)
	case StrategyNaturalClassifierRawCount:
		t, err := req.intThreshold()
		if err != nil {
			return Result{}, err
		}
		return s.NaturalClassifierRawCountSearch(q, req.K, t)
	case StrategyBruteForce:
		return s.BruteForceSearch(q, req.K)
	default:
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownStrategy, req.Strategy)
	}
}

// Request names a strategy and its parameters. Threshold is the voting or raw
// count threshold, the vote weight threshold or the candidate set size,
// depending on Strategy.
type Request struct {
	Strategy  Strategy
	K         int
	Threshold float64
}

// intThreshold returns Threshold for the strategies that take a count.
// Fractional or out of range values are rejected rather than truncated.
func (r Request) intThreshold() (int, error) {
	t := r.Threshold
	if t != math.Trunc(t) || t < math.MinInt32 || t > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %s needs an integral threshold, got %g", ErrInvalidThreshold, r.Strategy, t)
	}
	return int(t), nil
}

func (r Request) String() string {
	switch r.Strategy {
	case StrategyLookup, StrategyBruteForce:
		return fmt.Sprintf("%s(k=%d)", r.Strategy, r.K)
	default:
		return fmt.Sprintf("%s(k=%d, t=%g)", r.Strategy, r.K, r.Threshold)
	}
}

// spreadVotes calls vote for every secondary neighbor of every point in every
// member result, with that result's weight.
func (s *Searcher) spreadVotes(q []float32, table *groundtruth.Table, vote func(id uint32, w float64)) error {
	for _, m := range s.members {
		ids, err := m.Search(q)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			continue
		}
		w := s.opts.voteWeighting.weight(len(ids), len(s.members))
		for _, p := range ids {
			for _, nb := range table.Row(p) {
				vote(nb, w)
			}
		}
	}
	return nil
}

func (s *Searcher) checkQuery(q []float32, k int) error {
	if k < 1 {
		return ErrInvalidK
	}
	if len(q) != s.knn.Dimension() {
		return &ErrDimensionMismatch{Expected: s.knn.Dimension(), Actual: len(q)}
	}
	return nil
}

func (s *Searcher) checkSecondary() (*groundtruth.Table, error) {
	t := s.opts.secondary
	if t == nil {
		return nil, ErrNoSecondaryIndex
	}
	if t.K() != s.opts.secondaryK || t.Len() != len(s.corpus) {
		return nil, &ErrSecondaryIndexShape{
			ExpectedK:    s.opts.secondaryK,
			ActualK:      t.K(),
			ExpectedRows: len(s.corpus),
			ActualRows:   t.Len(),
		}
	}
	return t, nil
}

func (s *Searcher) runSecondary(strategy Strategy, q []float32, k int, collect func(*groundtruth.Table) ([]uint32, error)) (Result, error) {
	table, err := s.checkSecondary()
	if err != nil {
		return s.finish(strategy, k, Result{}, time.Now(), err)
	}
	return s.run(strategy, q, k, func() ([]uint32, error) { return collect(table) })
}

func (s *Searcher) run(strategy Strategy, q []float32, k int, collect func() ([]uint32, error)) (Result, error) {
	start := time.Now()
	if err := s.checkQuery(q, k); err != nil {
		return s.finish(strategy, k, Result{}, start, err)
	}
	candidates, err := collect()
	if err != nil {
		return s.finish(strategy, k, Result{}, start, err)
	}
	neighbors, err := s.knn.Search(q, candidates, k)
	return s.finish(strategy, k, Result{Neighbors: neighbors, Candidates: len(candidates)}, start, err)
}

func (s *Searcher) finish(strategy Strategy, k int, res Result, start time.Time, err error) (Result, error) {
	err = translateError(err)
	s.opts.metricsCollector.RecordSearch(strategy, k, res.Candidates, time.Since(start), err)
	s.opts.logger.LogSearch(context.Background(), strategy, k, res.Candidates, err)
	if err != nil {
		return Result{}, err
	}
	return res, nil
}
