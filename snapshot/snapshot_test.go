package snapshot

import (
	"bytes"
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/annforest/blobstore"
	"github.com/hupe1980/annforest/codec"
	"github.com/hupe1980/annforest/groundtruth"
	"github.com/hupe1980/annforest/index"
	"github.com/hupe1980/annforest/index/hashtable"
	"github.com/hupe1980/annforest/index/rptree"
	"github.com/hupe1980/annforest/internal/resource"
	"github.com/hupe1980/annforest/testutil"
)

func fitMembers(t *testing.T, corpus [][]float32, l int) []index.Index {
	t.Helper()
	members := make([]index.Index, l)
	for i := range members {
		rng := rand.New(rand.NewSource(int64(i + 1)))
		var (
			idx index.Index
			err error
		)
		if i%2 == 0 {
			idx, err = rptree.New(len(corpus[0]), rng, func(o *rptree.Options) { o.MaxLeafSize = 10 })
		} else {
			idx, err = hashtable.New(len(corpus[0]), rng)
		}
		require.NoError(t, err)
		require.NoError(t, idx.Fit(corpus))
		members[i] = idx
	}
	return members
}

func TestEncodeDecode(t *testing.T) {
	compressible := bytes.Repeat([]byte("ensemble"), 512)
	random := make([]byte, 4096)
	_, _ = rand.New(rand.NewSource(1)).Read(random)

	tests := []struct {
		name     string
		body     []byte
		request  Compression
		wantUsed Compression
	}{
		{"None", compressible, CompressionNone, CompressionNone},
		{"LZ4", compressible, CompressionLZ4, CompressionLZ4},
		{"ZSTD", compressible, CompressionZSTD, CompressionZSTD},
		{"IncompressibleStoredRaw", random, CompressionZSTD, CompressionNone},
		{"Empty", nil, CompressionLZ4, CompressionNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Encode(Manifest{Kind: KindEnsemble, Key: "LSH_K8_r4.0", Points: 10}, tt.body,
				func(o *Options) { o.Compression = tt.request })
			require.NoError(t, err)

			m, body, err := Decode(data)
			require.NoError(t, err)
			assert.Equal(t, tt.wantUsed, m.Compression)
			assert.Equal(t, "LSH_K8_r4.0", m.Key)
			assert.Equal(t, 10, m.Points)
			assert.False(t, m.CreatedAt.IsZero())
			assert.Equal(t, len(tt.body), len(body))
			assert.True(t, bytes.Equal(tt.body, body))
		})
	}
}

func TestDecodeRejectsCorruption(t *testing.T) {
	data, err := Encode(Manifest{Kind: KindEnsemble}, bytes.Repeat([]byte{1, 2, 3}, 100))
	require.NoError(t, err)

	t.Run("FlippedByte", func(t *testing.T) {
		bad := bytes.Clone(data)
		bad[len(bad)/2] ^= 0xFF
		_, _, err := Decode(bad)
		assert.ErrorIs(t, err, ErrChecksumMismatch)
	})

	t.Run("Truncated", func(t *testing.T) {
		_, _, err := Decode(data[:len(data)-1])
		assert.ErrorIs(t, err, ErrChecksumMismatch)
		_, _, err = Decode(data[:2])
		assert.Error(t, err)
	})
}

func TestManifestCodec(t *testing.T) {
	data, err := Encode(Manifest{Kind: KindGroundTruth, K: 7}, []byte("x"),
		func(o *Options) { o.Codec = codec.JSON{} })
	require.NoError(t, err)
	assert.True(t, bytes.Contains(data, []byte(`"kind":"groundtruth"`)))

	m, _, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, 7, m.K)
}

func TestEnsembleRoundTrip(t *testing.T) {
	corpus := testutil.NewRNG(3).GaussianVectors(200, 6)
	members := fitMembers(t, corpus, 4)

	data, err := EncodeEnsemble(members, Manifest{Key: "mixed", Points: len(corpus), Seed: 9})
	require.NoError(t, err)

	m, restored, err := DecodeEnsemble(data, 0)
	require.NoError(t, err)
	assert.Equal(t, KindEnsemble, m.Kind)
	assert.Equal(t, 4, m.Members)
	assert.Equal(t, 6, m.Dimension)
	assert.Equal(t, int64(9), m.Seed)
	require.Len(t, restored, 4)

	for i := range members {
		assert.Equal(t, members[i].Kind(), restored[i].Kind())
		for _, q := range corpus[:20] {
			want, err := members[i].Search(q)
			require.NoError(t, err)
			got, err := restored[i].Search(q)
			require.NoError(t, err)
			assert.ElementsMatch(t, want, got)
		}
	}

	t.Run("Prefix", func(t *testing.T) {
		m, prefix, err := DecodeEnsemble(data, 2)
		require.NoError(t, err)
		assert.Equal(t, 4, m.Members)
		assert.Len(t, prefix, 2)
	})

	t.Run("WrongKind", func(t *testing.T) {
		_, _, err := DecodeGroundTruth(data)
		assert.ErrorIs(t, err, ErrKindMismatch)
	})

	t.Run("Empty", func(t *testing.T) {
		_, err := EncodeEnsemble(nil, Manifest{})
		assert.Error(t, err)
	})
}

func TestGroundTruthRoundTrip(t *testing.T) {
	corpus := testutil.NewRNG(4).GaussianVectors(120, 5)
	table, err := groundtruth.Build(context.Background(), corpus, 5)
	require.NoError(t, err)

	data, err := EncodeGroundTruth(table, Manifest{Key: "sift"}, func(o *Options) { o.Compression = CompressionZSTD })
	require.NoError(t, err)

	m, restored, err := DecodeGroundTruth(data)
	require.NoError(t, err)
	assert.Equal(t, 120, m.Points)
	assert.Equal(t, 5, m.K)
	assert.Equal(t, table.IDs(), restored.IDs())

	_, _, err = DecodeEnsemble(data, 0)
	assert.ErrorIs(t, err, ErrKindMismatch)
}

func TestWriteRead(t *testing.T) {
	ctx := context.Background()
	corpus := testutil.NewRNG(5).GaussianVectors(100, 4)
	members := fitMembers(t, corpus, 2)

	data, err := EncodeEnsemble(members, Manifest{Key: "mixed", Points: len(corpus)})
	require.NoError(t, err)

	ctrl := resource.NewController(resource.Config{IOLimitBytesPerSec: 1 << 30})
	stores := map[string]blobstore.BlobStore{
		"Memory": blobstore.NewMemoryStore(),
		"Local":  blobstore.NewLocalStore(t.TempDir()),
	}
	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, Write(ctx, store, "ensembles/mixed_L2.snap", data, ctrl))

			m, restored, err := Read(ctx, store, "ensembles/mixed_L2.snap", func(b []byte) (Manifest, []index.Index, error) {
				return DecodeEnsemble(b, 0)
			})
			require.NoError(t, err)
			assert.Equal(t, 2, m.Members)
			assert.Len(t, restored, 2)

			_, _, err = Read(ctx, store, "missing.snap", func(b []byte) (Manifest, []index.Index, error) {
				return DecodeEnsemble(b, 0)
			})
			assert.ErrorIs(t, err, blobstore.ErrNotFound)
		})
	}
}

func TestWriteCanceledLeavesNothing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := blobstore.NewMemoryStore()
	ctrl := resource.NewController(resource.Config{IOLimitBytesPerSec: 1})
	err := Write(ctx, store, "x.snap", bytes.Repeat([]byte{1}, 1024), ctrl)
	require.Error(t, err)
	assert.Zero(t, store.Len())
}

func TestParseCompression(t *testing.T) {
	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD} {
		got, err := ParseCompression(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}
	_, err := ParseCompression("brotli")
	assert.Error(t, err)
}
