package annforest

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sync/errgroup"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/annforest/groundtruth"
	"github.com/hupe1980/annforest/index"
	"github.com/hupe1980/annforest/index/hashtable"
	"github.com/hupe1980/annforest/testutil"
)

// fixedIndex returns the same ids for every query.
type fixedIndex struct {
	dim int
	ids []uint32
	err error
}

func (f *fixedIndex) Fit([][]float32) error              { return nil }
func (f *fixedIndex) Search([]float32) ([]uint32, error) { return f.ids, f.err }
func (f *fixedIndex) Kind() index.Kind                   { return index.KindHashTable }
func (f *fixedIndex) Dimension() int                     { return f.dim }
func (f *fixedIndex) MarshalBinary() ([]byte, error)     { return nil, errors.New("not supported") }
func (f *fixedIndex) UnmarshalBinary([]byte) error       { return errors.New("not supported") }

var square = [][]float32{{0, 0}, {1, 0}, {0, 1}, {5, 5}}

func fixedSearcher(t *testing.T, results [][]uint32, optFns ...Option) *Searcher {
	t.Helper()
	members := make([]index.Index, len(results))
	for i, ids := range results {
		members[i] = &fixedIndex{dim: 2, ids: ids}
	}
	ens, err := NewEnsemble(members...)
	require.NoError(t, err)
	s, err := NewSearcher(square, ens, optFns...)
	require.NoError(t, err)
	return s
}

// squareTable maps 0<->1 and 2<->3.
func squareTable(t *testing.T) *groundtruth.Table {
	t.Helper()
	table, err := groundtruth.FromRows([][]uint32{{1}, {0}, {3}, {2}})
	require.NoError(t, err)
	return table
}

func TestBruteForceSearch(t *testing.T) {
	s := fixedSearcher(t, [][]uint32{nil})
	q := []float32{0, 0}

	t.Run("UnitNeighborsBeforeFar", func(t *testing.T) {
		res, err := s.BruteForceSearch(q, 4)
		require.NoError(t, err)
		ids := res.IDs()
		require.Len(t, ids, 4)
		assert.Equal(t, uint32(0), ids[0])
		assert.ElementsMatch(t, []uint32{1, 2}, ids[1:3])
		assert.Equal(t, uint32(3), ids[3])
		assert.InDelta(t, 1, res.Neighbors[1].Distance, 1e-6)
		assert.InDelta(t, 1, res.Neighbors[2].Distance, 1e-6)
		assert.InDelta(t, math.Sqrt(50), res.Neighbors[3].Distance, 1e-4)
		assert.Equal(t, 4, res.Candidates)
	})

	t.Run("KEqualsN", func(t *testing.T) {
		rng := testutil.NewRNG(5)
		corpus := rng.GaussianVectors(200, 8)
		ens, err := NewEnsemble(&fixedIndex{dim: 8})
		require.NoError(t, err)
		bs, err := NewSearcher(corpus, ens)
		require.NoError(t, err)

		res, err := bs.BruteForceSearch(corpus[17], len(corpus))
		require.NoError(t, err)
		seen := make(map[uint32]bool)
		for _, id := range res.IDs() {
			assert.False(t, seen[id], "id %d returned twice", id)
			seen[id] = true
		}
		assert.Len(t, seen, len(corpus))
		assert.Equal(t, uint32(17), res.IDs()[0])
	})
}

func TestLookupAndVoting(t *testing.T) {
	s := fixedSearcher(t, [][]uint32{{0, 1}, {1, 2}, {3}})
	q := []float32{0.9, 0.1}

	lookup, err := s.LookupSearch(q, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, lookup.Candidates)
	assert.Equal(t, []uint32{1, 0, 2, 3}, lookup.IDs())

	tests := []struct {
		name      string
		threshold int
		wantIDs   []uint32
	}{
		{"ThresholdOneMatchesLookup", 1, lookup.IDs()},
		{"ThresholdTwo", 2, []uint32{1}},
		{"ThresholdAboveEnsemble", 4, []uint32{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := s.VotingSearch(q, 4, tt.threshold)
			require.NoError(t, err)
			assert.Equal(t, len(tt.wantIDs), res.Candidates)
			assert.Equal(t, tt.wantIDs, res.IDs())
		})
	}
}

func TestVotingMatchesLookupOnHashEnsemble(t *testing.T) {
	rng := testutil.NewRNG(11)
	corpus := rng.ClusteredVectors(500, 16, 8, 0.3)
	ens, err := BuildEnsemble(context.Background(), corpus, 6, hashtable.Factory(func(o *hashtable.Options) {
		o.K = 4
		o.Width = 2
	}))
	require.NoError(t, err)
	s, err := NewSearcher(corpus, ens)
	require.NoError(t, err)

	for _, qi := range []int{0, 99, 250, 499} {
		lookup, err := s.LookupSearch(corpus[qi], 10)
		require.NoError(t, err)
		voting, err := s.VotingSearch(corpus[qi], 10, 1)
		require.NoError(t, err)
		assert.Equal(t, lookup, voting)
		require.NotEmpty(t, lookup.Neighbors)
		assert.Equal(t, uint32(qi), lookup.Neighbors[0].ID)
	}
}

func TestNaturalClassifier(t *testing.T) {
	// Member results [0] and [0, 2] vote for the neighbors 1 and 3.
	results := [][]uint32{{0}, {0, 2}}
	q := []float32{1, 0}

	t.Run("EnsembleAverage", func(t *testing.T) {
		s := fixedSearcher(t, results, WithSecondaryIndex(squareTable(t), 1))

		res, err := s.NaturalClassifierSearch(q, 3, 0.5)
		require.NoError(t, err)
		assert.Equal(t, []uint32{1}, res.IDs())

		res, err = s.NaturalClassifierSearch(q, 3, 0.2)
		require.NoError(t, err)
		assert.Equal(t, []uint32{1, 3}, res.IDs())
		assert.Equal(t, 2, res.Candidates)
	})

	t.Run("PerMember", func(t *testing.T) {
		s := fixedSearcher(t, results,
			WithSecondaryIndex(squareTable(t), 1),
			WithVoteWeighting(VotePerMember))

		res, err := s.NaturalClassifierSearch(q, 3, 0.5)
		require.NoError(t, err)
		assert.Equal(t, []uint32{1, 3}, res.IDs())
	})

	t.Run("SetSize", func(t *testing.T) {
		s := fixedSearcher(t, results, WithSecondaryIndex(squareTable(t), 1))

		res, err := s.NaturalClassifierSetSizeSearch(q, 3, 1)
		require.NoError(t, err)
		assert.Equal(t, []uint32{1}, res.IDs())

		res, err = s.NaturalClassifierSetSizeSearch(q, 3, 5)
		require.NoError(t, err)
		assert.Equal(t, 2, res.Candidates)
		assert.Equal(t, []uint32{1, 3}, res.IDs())
	})

	t.Run("RawCount", func(t *testing.T) {
		s := fixedSearcher(t, results, WithSecondaryIndex(squareTable(t), 1))

		res, err := s.NaturalClassifierRawCountSearch(q, 3, 2)
		require.NoError(t, err)
		assert.Equal(t, []uint32{1}, res.IDs())

		res, err = s.NaturalClassifierRawCountSearch(q, 3, 1)
		require.NoError(t, err)
		assert.Equal(t, []uint32{1, 3}, res.IDs())
	})

	t.Run("AdmitsOnce", func(t *testing.T) {
		// Point 1 crosses the threshold on the first member and keeps gaining.
		s := fixedSearcher(t, [][]uint32{{0}, {0}, {0}}, WithSecondaryIndex(squareTable(t), 1))

		res, err := s.NaturalClassifierSearch(q, 3, 0.1)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Candidates)
		assert.Equal(t, []uint32{1}, res.IDs())
	})

	t.Run("SecondaryAttachedLater", func(t *testing.T) {
		s := fixedSearcher(t, results)
		_, err := s.NaturalClassifierSearch(q, 3, 0.5)
		require.ErrorIs(t, err, ErrNoSecondaryIndex)

		s.SetSecondaryIndex(squareTable(t), 1)
		res, err := s.NaturalClassifierSearch(q, 3, 0.5)
		require.NoError(t, err)
		assert.Equal(t, []uint32{1}, res.IDs())
	})
}

func TestSearcherErrors(t *testing.T) {
	q := []float32{0, 0}

	t.Run("NoSecondaryIndex", func(t *testing.T) {
		s := fixedSearcher(t, [][]uint32{{0}})
		for _, strategy := range []Strategy{
			StrategyNaturalClassifier,
			StrategyNaturalClassifierSetSize,
			StrategyNaturalClassifierRawCount,
		} {
			_, err := s.Search(q, Request{Strategy: strategy, K: 1, Threshold: 1})
			assert.ErrorIs(t, err, ErrNoSecondaryIndex, strategy.String())
		}
	})

	t.Run("SecondaryIndexShape", func(t *testing.T) {
		s := fixedSearcher(t, [][]uint32{{0}}, WithSecondaryIndex(squareTable(t), 2))
		_, err := s.NaturalClassifierSearch(q, 1, 0.5)
		var shape *ErrSecondaryIndexShape
		require.ErrorAs(t, err, &shape)
		assert.Equal(t, 2, shape.ExpectedK)
		assert.Equal(t, 1, shape.ActualK)
	})

	t.Run("SecondaryIndexRows", func(t *testing.T) {
		short, err := groundtruth.FromRows([][]uint32{{1}, {0}})
		require.NoError(t, err)
		s := fixedSearcher(t, [][]uint32{{0}}, WithSecondaryIndex(short, 1))
		_, err = s.NaturalClassifierRawCountSearch(q, 1, 1)
		var shape *ErrSecondaryIndexShape
		require.ErrorAs(t, err, &shape)
		assert.Equal(t, 4, shape.ExpectedRows)
		assert.Equal(t, 2, shape.ActualRows)
	})

	t.Run("InvalidK", func(t *testing.T) {
		s := fixedSearcher(t, [][]uint32{{0}})
		_, err := s.LookupSearch(q, 0)
		assert.ErrorIs(t, err, ErrInvalidK)
		_, err = s.BruteForceSearch(q, -1)
		assert.ErrorIs(t, err, ErrInvalidK)
	})

	t.Run("DimensionMismatch", func(t *testing.T) {
		s := fixedSearcher(t, [][]uint32{{0}})
		_, err := s.LookupSearch([]float32{1, 2, 3}, 1)
		var dm *ErrDimensionMismatch
		require.ErrorAs(t, err, &dm)
		assert.Equal(t, 2, dm.Expected)
		assert.Equal(t, 3, dm.Actual)
	})

	t.Run("InvalidThreshold", func(t *testing.T) {
		s := fixedSearcher(t, [][]uint32{{0}}, WithSecondaryIndex(squareTable(t), 1))
		tests := []Request{
			{Strategy: StrategyVoting, K: 1, Threshold: 0},
			{Strategy: StrategyNaturalClassifier, K: 1, Threshold: 0},
			{Strategy: StrategyNaturalClassifier, K: 1, Threshold: math.NaN()},
			{Strategy: StrategyNaturalClassifierSetSize, K: 1, Threshold: 0},
			{Strategy: StrategyNaturalClassifierRawCount, K: 1, Threshold: -1},
			{Strategy: StrategyVoting, K: 1, Threshold: 1.5},
			{Strategy: StrategyNaturalClassifierSetSize, K: 1, Threshold: 2.9},
			{Strategy: StrategyNaturalClassifierRawCount, K: 1, Threshold: 0.5},
			{Strategy: StrategyNaturalClassifierRawCount, K: 1, Threshold: math.NaN()},
			{Strategy: StrategyVoting, K: 1, Threshold: math.Inf(1)},
			{Strategy: StrategyVoting, K: 1, Threshold: 1e12},
		}
		for _, req := range tests {
			_, err := s.Search(q, req)
			assert.ErrorIs(t, err, ErrInvalidThreshold, req.String())
		}
	})

	t.Run("UnknownStrategy", func(t *testing.T) {
		s := fixedSearcher(t, [][]uint32{{0}})
		_, err := s.Search(q, Request{Strategy: Strategy(99), K: 1})
		assert.ErrorIs(t, err, ErrUnknownStrategy)
	})

	t.Run("MemberFailure", func(t *testing.T) {
		boom := errors.New("boom")
		ens, err := NewEnsemble(&fixedIndex{dim: 2, err: boom})
		require.NoError(t, err)
		s, err := NewSearcher(square, ens)
		require.NoError(t, err)
		_, err = s.LookupSearch(q, 1)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("EnsembleDimension", func(t *testing.T) {
		ens, err := NewEnsemble(&fixedIndex{dim: 3})
		require.NoError(t, err)
		_, err = NewSearcher(square, ens)
		var dm *ErrDimensionMismatch
		assert.ErrorAs(t, err, &dm)
	})

	t.Run("EmptyEnsemble", func(t *testing.T) {
		_, err := NewSearcher(square, nil)
		assert.ErrorIs(t, err, ErrEmptyEnsemble)
	})
}

func TestConcurrentQueries(t *testing.T) {
	rng := testutil.NewRNG(23)
	corpus := rng.ClusteredVectors(400, 8, 6, 0.3)
	ens, err := BuildEnsemble(context.Background(), corpus, 5, hashtable.Factory(func(o *hashtable.Options) {
		o.K = 3
		o.Width = 2
	}))
	require.NoError(t, err)
	table, err := groundtruth.Build(context.Background(), corpus, 5)
	require.NoError(t, err)
	s, err := NewSearcher(corpus, ens, WithSecondaryIndex(table, 5))
	require.NoError(t, err)

	queries := []int{0, 57, 123, 200, 311, 399}
	setSize := make([]Result, len(queries))
	voting := make([]Result, len(queries))
	for i, qi := range queries {
		setSize[i], err = s.NaturalClassifierSetSizeSearch(corpus[qi], 10, 40)
		require.NoError(t, err)
		voting[i], err = s.VotingSearch(corpus[qi], 10, 2)
		require.NoError(t, err)
	}

	var g errgroup.Group
	for w := range 8 {
		g.Go(func() error {
			for round := range 20 {
				i := (w + round) % len(queries)
				q := corpus[queries[i]]
				res, err := s.NaturalClassifierSetSizeSearch(q, 10, 40)
				if err != nil {
					return err
				}
				assert.Equal(t, setSize[i], res, "set size query %d", queries[i])
				res, err = s.VotingSearch(q, 10, 2)
				if err != nil {
					return err
				}
				assert.Equal(t, voting[i], res, "voting query %d", queries[i])
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
}

func TestFewerCandidatesThanK(t *testing.T) {
	s := fixedSearcher(t, [][]uint32{{3}, nil})
	res, err := s.LookupSearch([]float32{0, 0}, 3)
	require.NoError(t, err)
	assert.Equal(t, []uint32{3}, res.IDs())
	assert.Equal(t, 1, res.Candidates)

	res, err = s.VotingSearch([]float32{0, 0}, 3, 2)
	require.NoError(t, err)
	assert.Empty(t, res.Neighbors)
}

func TestSearchDispatch(t *testing.T) {
	s := fixedSearcher(t, [][]uint32{{0, 1}, {1, 2}}, WithSecondaryIndex(squareTable(t), 1))
	q := []float32{0, 0}
	thresholds := map[Strategy]float64{
		StrategyVoting:                    1,
		StrategyNaturalClassifier:         0.25,
		StrategyNaturalClassifierSetSize:  2,
		StrategyNaturalClassifierRawCount: 1,
	}

	for _, strategy := range Strategies() {
		t.Run(strategy.String(), func(t *testing.T) {
			res, err := s.Search(q, Request{Strategy: strategy, K: 2, Threshold: thresholds[strategy]})
			require.NoError(t, err)
			assert.NotEmpty(t, res.Neighbors)
			assert.LessOrEqual(t, len(res.Neighbors), 2)
		})
	}
}

func TestSearcherMetrics(t *testing.T) {
	mc := &BasicMetricsCollector{}
	s := fixedSearcher(t, [][]uint32{{0, 1}}, WithMetricsCollector(mc), WithLogger(nil))

	_, err := s.LookupSearch([]float32{0, 0}, 1)
	require.NoError(t, err)
	_, err = s.LookupSearch([]float32{0, 0}, 0)
	require.Error(t, err)

	stats := mc.GetStats()
	assert.Equal(t, int64(2), stats.SearchCount)
	assert.Equal(t, int64(1), stats.SearchErrors)
	assert.InDelta(t, 2, stats.CandidateAvg, 1e-9)
}

func TestRequestString(t *testing.T) {
	assert.Equal(t, "lookup(k=10)", Request{Strategy: StrategyLookup, K: 10}.String())
	assert.Equal(t, "nc(k=5, t=0.25)", Request{Strategy: StrategyNaturalClassifier, K: 5, Threshold: 0.25}.String())
}
