package groundtruth

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/hupe1980/annforest/distance"
	"github.com/hupe1980/annforest/internal/resource"
	"github.com/hupe1980/annforest/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild(t *testing.T) {
	corpus := testutil.NewRNG(1).GaussianVectors(300, 8)
	const k = 5

	table, err := Build(context.Background(), corpus, k, func(o *Options) { o.ChunkSize = 64 })
	require.NoError(t, err)
	require.Equal(t, k, table.K())
	require.Equal(t, len(corpus), table.Len())

	for i, v := range corpus {
		want := testutil.BruteForceNeighbors(corpus, v, k+1)
		require.Equal(t, uint32(i), want[0])
		assert.Equal(t, want[1:], table.Row(uint32(i)), "row %d", i)
	}
}

func TestBuildIncludeSelf(t *testing.T) {
	corpus := testutil.NewRNG(2).GaussianVectors(120, 4)
	table, err := Build(context.Background(), corpus, 3, func(o *Options) { o.IncludeSelf = true })
	require.NoError(t, err)
	for i, v := range corpus {
		assert.Equal(t, testutil.BruteForceNeighbors(corpus, v, 3), table.Row(uint32(i)))
	}

	full, err := Build(context.Background(), corpus, len(corpus), func(o *Options) { o.IncludeSelf = true })
	require.NoError(t, err)
	assert.Len(t, full.Row(0), len(corpus))
}

func TestBuildChunking(t *testing.T) {
	corpus := testutil.NewRNG(3).GaussianVectors(257, 6)
	reference, err := Build(context.Background(), corpus, 4, func(o *Options) { o.Concurrency = 1 })
	require.NoError(t, err)

	tests := []struct {
		name   string
		optFns []func(o *Options)
	}{
		{"CorpusSmallerThanChunk", nil},
		{"UnevenChunks", []func(o *Options){func(o *Options) { o.ChunkSize = 10 }}},
		{"SingleRowChunks", []func(o *Options){func(o *Options) { o.ChunkSize = 1 }}},
		{"Controller", []func(o *Options){func(o *Options) {
			o.ChunkSize = 50
			o.Controller = resource.NewController(resource.Config{MaxWorkers: 3})
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := Build(context.Background(), corpus, 4, tt.optFns...)
			require.NoError(t, err)
			assert.Equal(t, reference.IDs(), table.IDs())
		})
	}
}

func TestBuildProgress(t *testing.T) {
	corpus := testutil.NewRNG(4).GaussianVectors(95, 3)
	var calls, last atomic.Int64
	_, err := Build(context.Background(), corpus, 2, func(o *Options) {
		o.ChunkSize = 10
		o.Progress = func(done, total int) {
			calls.Add(1)
			assert.Equal(t, 10, total)
			if int64(done) > last.Load() {
				last.Store(int64(done))
			}
		}
	})
	require.NoError(t, err)
	assert.Equal(t, int64(10), calls.Load())
	assert.Equal(t, int64(10), last.Load())
}

func TestBuildAngular(t *testing.T) {
	corpus := distance.NormalizeCorpus(testutil.NewRNG(5).GaussianVectors(80, 5))
	table, err := Build(context.Background(), corpus, 3, func(o *Options) { o.Metric = distance.MetricAngular })
	require.NoError(t, err)

	// Unit vectors rank identically under both metrics.
	for i, v := range corpus {
		want := testutil.BruteForceNeighbors(corpus, v, 4)
		assert.Equal(t, want[1:], table.Row(uint32(i)))
	}
}

func TestBuildErrors(t *testing.T) {
	corpus := testutil.NewRNG(6).GaussianVectors(20, 3)
	ctx := context.Background()

	_, err := Build(ctx, corpus, 0)
	assert.ErrorIs(t, err, ErrInvalidK)
	_, err = Build(ctx, corpus, 20)
	assert.ErrorIs(t, err, ErrInvalidK, "self excluded leaves 19 neighbors")
	_, err = Build(ctx, nil, 1)
	assert.Error(t, err)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	table, err := Build(cancelled, corpus, 2, func(o *Options) { o.ChunkSize = 5 })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, table, "no partial table")

	rc := resource.NewController(resource.Config{MemoryLimitBytes: 16})
	table, err = Build(ctx, corpus, 2, func(o *Options) { o.Controller = rc })
	assert.ErrorIs(t, err, resource.ErrMemoryLimitExceeded)
	assert.Nil(t, table)
	assert.Zero(t, rc.MemoryUsage())
}

func TestFromRows(t *testing.T) {
	table, err := FromRows([][]uint32{{1, 2}, {0, 2}, {1, 0}})
	require.NoError(t, err)
	assert.Equal(t, 2, table.K())
	assert.Equal(t, 3, table.Len())
	assert.Equal(t, []uint32{0, 2}, table.Row(1))

	_, err = FromRows([][]uint32{{1, 2}, {0}})
	assert.ErrorIs(t, err, ErrRaggedRows)
	_, err = FromRows(nil)
	assert.Error(t, err)
	_, err = FromRows([][]uint32{{5}})
	assert.Error(t, err, "id out of range")
	_, err = FromRows([][]uint32{{}, {}})
	assert.ErrorIs(t, err, ErrInvalidK)
}

func TestPrefix(t *testing.T) {
	table, err := FromRows([][]uint32{{1, 2, 3}, {0, 2, 3}, {3, 1, 0}, {2, 1, 0}})
	require.NoError(t, err)

	p, err := table.Prefix(2)
	require.NoError(t, err)
	assert.Equal(t, 2, p.K())
	assert.Equal(t, []uint32{3, 1}, p.Row(2))
	assert.Equal(t, []uint32{1, 2, 0, 2, 3, 1, 2, 1}, p.IDs())

	same, err := table.Prefix(3)
	require.NoError(t, err)
	assert.Same(t, table, same)

	_, err = table.Prefix(4)
	assert.ErrorIs(t, err, ErrInvalidK)
	_, err = table.Prefix(0)
	assert.ErrorIs(t, err, ErrInvalidK)
}

func TestBinaryRoundTrip(t *testing.T) {
	corpus := testutil.NewRNG(7).GaussianVectors(60, 4)
	table, err := Build(context.Background(), corpus, 6)
	require.NoError(t, err)

	data, err := table.MarshalBinary()
	require.NoError(t, err)
	var got Table
	require.NoError(t, got.UnmarshalBinary(data))
	assert.Equal(t, table.K(), got.K())
	assert.Equal(t, table.IDs(), got.IDs())

	assert.Error(t, got.UnmarshalBinary(data[:len(data)-3]))
	assert.Equal(t, table.IDs(), got.IDs(), "failed decode leaves the table untouched")
}
