package dataset

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/annforest/blobstore"
	"github.com/hupe1980/annforest/distance"
	"github.com/hupe1980/annforest/testutil"
)

func TestVectorsRoundTrip(t *testing.T) {
	vecs := testutil.NewRNG(1).GaussianVectors(64, 7)

	var buf bytes.Buffer
	require.NoError(t, WriteVectors(&buf, vecs))
	got, err := ReadVectors(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	assert.Equal(t, vecs, got)
}

func TestReadVectorsUnordered(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, write(&buf, []VectorRecord{
		{ID: 2, Vector: []float32{2, 2}},
		{ID: 0, Vector: []float32{0, 0}},
		{ID: 1, Vector: []float32{1, 1}},
	}))
	got, err := ReadVectors(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0, 0}, {1, 1}, {2, 2}}, got)
}

func TestReadVectorsInvalid(t *testing.T) {
	tests := []struct {
		name string
		rows []VectorRecord
	}{
		{"Gap", []VectorRecord{{ID: 0, Vector: []float32{1}}, {ID: 2, Vector: []float32{1}}}},
		{"Ragged", []VectorRecord{{ID: 0, Vector: []float32{1, 2}}, {ID: 1, Vector: []float32{1}}}},
		{"Empty", []VectorRecord{{ID: 0, Vector: nil}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, write(&buf, tt.rows))
			_, err := ReadVectors(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
			assert.ErrorIs(t, err, ErrInvalidDataset)
		})
	}

	_, err := ReadVectors(bytes.NewReader([]byte("not parquet")), 11)
	assert.Error(t, err)
}

func TestNeighborsRoundTrip(t *testing.T) {
	rows := [][]uint32{{3, 1, 2}, {0, 2, 3}}

	var buf bytes.Buffer
	require.NoError(t, WriteNeighbors(&buf, rows))
	got, err := ReadNeighbors(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	assert.Equal(t, rows, got)
}

func TestLoadSave(t *testing.T) {
	ctx := context.Background()
	rng := testutil.NewRNG(2)
	train := rng.GaussianVectors(50, 4)
	test := rng.GaussianVectors(5, 4)
	neighbors := make([][]uint32, len(test))
	for i, q := range test {
		neighbors[i] = testutil.BruteForceNeighbors(train, q, 3)
	}

	for name, store := range map[string]blobstore.BlobStore{
		"Memory": blobstore.NewMemoryStore(),
		"Local":  blobstore.NewLocalStore(t.TempDir()),
	} {
		t.Run(name, func(t *testing.T) {
			d := &Dataset{Name: "gauss", Train: train, Test: test, Neighbors: neighbors}
			require.NoError(t, Save(ctx, store, d))

			got, err := Load(ctx, store, "gauss")
			require.NoError(t, err)
			assert.Equal(t, d, got)
			assert.Equal(t, 4, got.Dimension())
		})
	}

	t.Run("WithoutNeighbors", func(t *testing.T) {
		store := blobstore.NewMemoryStore()
		require.NoError(t, Save(ctx, store, &Dataset{Name: "plain", Train: train, Test: test}))
		got, err := Load(ctx, store, "plain")
		require.NoError(t, err)
		assert.Nil(t, got.Neighbors)
	})

	t.Run("Missing", func(t *testing.T) {
		_, err := Load(ctx, blobstore.NewMemoryStore(), "nope")
		assert.ErrorIs(t, err, blobstore.ErrNotFound)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		d    Dataset
	}{
		{"NoTrain", Dataset{}},
		{"QueryDimension", Dataset{Train: [][]float32{{1, 2}}, Test: [][]float32{{1}}}},
		{"NeighborRows", Dataset{Train: [][]float32{{1}}, Test: [][]float32{{1}}, Neighbors: [][]uint32{}}},
		{"NeighborRange", Dataset{Train: [][]float32{{1}}, Test: [][]float32{{1}}, Neighbors: [][]uint32{{1}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.d.Validate(), ErrInvalidDataset)
		})
	}
}

func TestNormalize(t *testing.T) {
	d := &Dataset{Train: [][]float32{{3, 4}}, Test: [][]float32{{0, 2}}}
	d.Normalize()
	assert.InDelta(t, 1, distance.Magnitude(d.Train[0]), 1e-6)
	assert.InDelta(t, 1, distance.Magnitude(d.Test[0]), 1e-6)
}

func TestResultsRoundTrip(t *testing.T) {
	rows := []ResultRecord{
		{Dataset: "sift", Index: "RPTree_leaf50", Members: 10, Strategy: "lookup", K: 10, Queries: 100, Recall: 0.91, MeanNanos: 1200, MinNanos: 800, MaxNanos: 4000},
		{Dataset: "sift", Index: "RPTree_leaf50", Members: 10, Strategy: "nc", Threshold: 0.25, K: 10, Queries: 100, Recall: 0.97},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteResults(&buf, rows))
	got, err := ReadResults(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	assert.Equal(t, rows, got)
}
