package annforest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/annforest/blobstore"
	"github.com/hupe1980/annforest/catalog"
	"github.com/hupe1980/annforest/distance"
	"github.com/hupe1980/annforest/groundtruth"
	"github.com/hupe1980/annforest/index"
	"github.com/hupe1980/annforest/internal/resource"
	"github.com/hupe1980/annforest/snapshot"
)

// ErrSnapshotMismatch is returned when a stored snapshot was built over a
// different corpus shape than the one being opened.
var ErrSnapshotMismatch = errors.New("snapshot does not match corpus")

// OpenOptions contains configuration options for OpenEnsemble and
// OpenGroundTruth.
type OpenOptions struct {
	// Catalog finds stored snapshots. Defaults to a catalog over the store's
	// blob names.
	Catalog catalog.Catalog

	// Seed is the ensemble base seed used when building.
	Seed int64

	// Metric ranks ground-truth neighbors when building.
	Metric distance.Metric

	// Compression is applied to written snapshots.
	Compression snapshot.Compression

	// Controller bounds build workers and throttles snapshot writes.
	Controller *resource.Controller

	// Rebuild ignores stored snapshots.
	Rebuild bool

	// ReadOnly skips writing built structures back to the store.
	ReadOnly bool

	// Logger defaults to NoopLogger.
	Logger *Logger

	// MetricsCollector defaults to NoopMetricsCollector.
	MetricsCollector MetricsCollector
}

// DefaultOpenOptions contains the default configuration options for opening.
var DefaultOpenOptions = OpenOptions{
	Seed:        DefaultEnsembleOptions.Seed,
	Metric:      distance.MetricEuclidean,
	Compression: snapshot.DefaultOptions.Compression,
}

func applyOpenOptions(store blobstore.BlobStore, optFns []func(o *OpenOptions)) OpenOptions {
	opts := DefaultOpenOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Catalog == nil {
		opts.Catalog = catalog.NewBlob(store)
	}
	if opts.Logger == nil {
		opts.Logger = NoopLogger()
	}
	if opts.MetricsCollector == nil {
		opts.MetricsCollector = NoopMetricsCollector{}
	}
	return opts
}

// EnsembleKey returns the catalog key of an ensemble over a named dataset.
func EnsembleKey(dataset string, cfg IndexConfig) string {
	return dataset + "/" + cfg.Key()
}

// OpenEnsemble returns an ensemble of members structures built with cfg over
// corpus.
//
// A stored ensemble with the same dataset and build parameters and at least
// members members is loaded and cut to its prefix. Otherwise the ensemble is
// built and, unless ReadOnly is set, stored and registered. C2LSH query
// parameters from cfg are applied to loaded members.
func OpenEnsemble(ctx context.Context, store blobstore.BlobStore, dataset string, corpus [][]float32, cfg IndexConfig, members int, optFns ...func(o *OpenOptions)) (*Ensemble, error) {
	if members < 1 {
		return nil, fmt.Errorf("open %d members: %w", members, ErrEmptyEnsemble)
	}
	opts := applyOpenOptions(store, optFns)
	key := EnsembleKey(dataset, cfg)
	log := opts.Logger.WithKind(cfg.Kind.String())

	if !opts.Rebuild {
		ens, err := loadEnsemble(ctx, store, opts, key, corpus, cfg, members)
		switch {
		case err == nil:
			log.LogSnapshot(ctx, "loaded", key, nil)
			return ens, nil
		case !errors.Is(err, catalog.ErrNotFound):
			log.LogSnapshot(ctx, "load", key, err)
			return nil, err
		}
	}

	factory, err := cfg.Factory()
	if err != nil {
		return nil, err
	}
	ens, err := BuildEnsemble(ctx, corpus, members, factory, func(o *EnsembleOptions) {
		o.Seed = opts.Seed
		o.Controller = opts.Controller
		o.Logger = log
		o.MetricsCollector = opts.MetricsCollector
	})
	if err != nil {
		return nil, err
	}
	if opts.ReadOnly {
		return ens, nil
	}

	err = saveEnsemble(ctx, store, opts, key, ens, len(corpus))
	log.LogSnapshot(ctx, "saved", key, err)
	if err != nil {
		return nil, err
	}
	return ens, nil
}

func loadEnsemble(ctx context.Context, store blobstore.BlobStore, opts OpenOptions, key string, corpus [][]float32, cfg IndexConfig, members int) (*Ensemble, error) {
	entry, err := opts.Catalog.LookupEnsemble(ctx, key, members)
	if err != nil {
		return nil, err
	}
	m, loaded, err := snapshot.Read(ctx, store, entry.Name, func(data []byte) (snapshot.Manifest, []index.Index, error) {
		return snapshot.DecodeEnsemble(data, members)
	})
	if err != nil {
		return nil, err
	}
	if err := checkManifest(m, corpus); err != nil {
		return nil, fmt.Errorf("%s: %w", entry.Name, err)
	}
	if len(loaded) < members {
		return nil, fmt.Errorf("%s holds %d members, want %d: %w", entry.Name, len(loaded), members, ErrSnapshotMismatch)
	}
	for i, idx := range loaded {
		if loaded[i], err = cfg.Apply(idx); err != nil {
			return nil, fmt.Errorf("%s: member %d: %w", entry.Name, i, err)
		}
	}
	return NewEnsemble(loaded...)
}

func saveEnsemble(ctx context.Context, store blobstore.BlobStore, opts OpenOptions, key string, ens *Ensemble, points int) error {
	data, err := snapshot.EncodeEnsemble(ens.Members(), snapshot.Manifest{
		Key:       key,
		Points:    points,
		Seed:      opts.Seed,
		CreatedAt: time.Now().UTC(),
	}, func(o *snapshot.Options) {
		o.Compression = opts.Compression
	})
	if err != nil {
		return err
	}
	entry := catalog.EnsembleEntry(key, ens.Len())
	if err := snapshot.Write(ctx, store, entry.Name, data, opts.Controller); err != nil {
		return err
	}
	return opts.Catalog.Register(ctx, entry)
}

// OpenGroundTruth returns the k nearest neighbor table of corpus.
//
// A stored table for dataset with at least k neighbors per row is loaded and
// truncated to k. Otherwise the table is built and, unless ReadOnly is set,
// stored and registered.
func OpenGroundTruth(ctx context.Context, store blobstore.BlobStore, dataset string, corpus [][]float32, k int, optFns ...func(o *OpenOptions)) (*groundtruth.Table, error) {
	if k < 1 {
		return nil, fmt.Errorf("open ground truth k=%d: %w", k, ErrInvalidK)
	}
	opts := applyOpenOptions(store, optFns)

	if !opts.Rebuild {
		t, err := loadGroundTruth(ctx, store, opts, dataset, corpus, k)
		switch {
		case err == nil:
			opts.Logger.LogSnapshot(ctx, "loaded", dataset, nil)
			return t, nil
		case !errors.Is(err, catalog.ErrNotFound):
			opts.Logger.LogSnapshot(ctx, "load", dataset, err)
			return nil, err
		}
	}

	start := time.Now()
	t, err := groundtruth.Build(ctx, corpus, k, func(o *groundtruth.Options) {
		o.Metric = opts.Metric
		o.Controller = opts.Controller
	})
	elapsed := time.Since(start)
	err = translateError(err)
	opts.MetricsCollector.RecordGroundTruth(len(corpus), k, elapsed, err)
	opts.Logger.LogGroundTruth(ctx, len(corpus), k, elapsed, err)
	if err != nil {
		return nil, err
	}
	if opts.ReadOnly {
		return t, nil
	}

	err = saveGroundTruth(ctx, store, opts, dataset, t)
	opts.Logger.LogSnapshot(ctx, "saved", dataset, err)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func loadGroundTruth(ctx context.Context, store blobstore.BlobStore, opts OpenOptions, dataset string, corpus [][]float32, k int) (*groundtruth.Table, error) {
	entry, err := opts.Catalog.LookupGroundTruth(ctx, dataset, k)
	if err != nil {
		return nil, err
	}
	m, t, err := snapshot.Read(ctx, store, entry.Name, snapshot.DecodeGroundTruth)
	if err != nil {
		return nil, err
	}
	if m.Points != len(corpus) {
		return nil, fmt.Errorf("%s covers %d points, corpus has %d: %w", entry.Name, m.Points, len(corpus), ErrSnapshotMismatch)
	}
	return t.Prefix(k)
}

func saveGroundTruth(ctx context.Context, store blobstore.BlobStore, opts OpenOptions, dataset string, t *groundtruth.Table) error {
	data, err := snapshot.EncodeGroundTruth(t, snapshot.Manifest{
		Key:       dataset,
		CreatedAt: time.Now().UTC(),
	}, func(o *snapshot.Options) {
		o.Compression = opts.Compression
	})
	if err != nil {
		return err
	}
	entry := catalog.GroundTruthEntry(dataset, t.K())
	if err := snapshot.Write(ctx, store, entry.Name, data, opts.Controller); err != nil {
		return err
	}
	return opts.Catalog.Register(ctx, entry)
}

func checkManifest(m snapshot.Manifest, corpus [][]float32) error {
	if m.Points != len(corpus) {
		return fmt.Errorf("built over %d points, corpus has %d: %w", m.Points, len(corpus), ErrSnapshotMismatch)
	}
	if len(corpus) > 0 && m.Dimension != len(corpus[0]) {
		return fmt.Errorf("built for dimension %d, corpus has %d: %w", m.Dimension, len(corpus[0]), ErrSnapshotMismatch)
	}
	return nil
}
