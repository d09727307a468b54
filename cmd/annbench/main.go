// Command annbench benchmarks a search strategy over a stored dataset.
//
// Configuration is read from ANNBENCH_* environment variables, optionally
// from a .env file in the working directory:
//
//	ANNBENCH_DATASET=sift
//	ANNBENCH_INDEX=RKDTree_leaf50_o5
//	ANNBENCH_MEMBERS=20
//	ANNBENCH_STRATEGY=nc
//	ANNBENCH_ARGS="10 0.25;10 0.5"
//
// The ensemble and, for natural classifier strategies, the ground-truth table
// are loaded from the store when a large enough one exists and built and
// stored otherwise. Statistics are logged per argument set and written to a
// Parquet results file.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hupe1980/annforest"
	"github.com/hupe1980/annforest/bench"
	"github.com/hupe1980/annforest/blobstore"
	"github.com/hupe1980/annforest/blobstore/minio"
	"github.com/hupe1980/annforest/blobstore/s3"
	"github.com/hupe1980/annforest/catalog"
	"github.com/hupe1980/annforest/catalog/dynamodb"
	"github.com/hupe1980/annforest/dataset"
	"github.com/hupe1980/annforest/distance"
	"github.com/hupe1980/annforest/internal/resource"
	"github.com/hupe1980/annforest/promstats"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "annbench: .env: %v\n", err)
		os.Exit(1)
	}

	var cfg Config
	if err := envconfig.Process("ANNBENCH", &cfg); err != nil {
		fmt.Fprintf(os.Stderr, "annbench: %v\n", err)
		os.Exit(1)
	}
	if err := ValidateConfig(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "annbench: invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(&cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, &cfg, logger); err != nil {
		logger.Error("Benchmark failed", "error", err)
		os.Exit(1)
	}
}

func newLogger(cfg *Config) *annforest.Logger {
	level, _ := cfg.Level()
	if cfg.LogFormat == "json" {
		return annforest.NewJSONLogger(level)
	}
	return annforest.NewTextLogger(level)
}

func run(ctx context.Context, cfg *Config, logger *annforest.Logger) error {
	store, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	cat, err := openCatalog(ctx, cfg, store)
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}

	ds, err := dataset.Load(ctx, store, cfg.Dataset)
	if err != nil {
		return err
	}
	metric, _ := distance.ParseMetric(cfg.Metric)
	if metric == distance.MetricAngular {
		ds.Normalize()
	}
	logger.Info("Dataset loaded",
		"dataset", ds.Name,
		"points", len(ds.Train),
		"queries", len(ds.Test),
		"dimension", ds.Dimension(),
	)

	reg := prometheus.NewRegistry()
	collector, err := promstats.New(reg)
	if err != nil {
		return err
	}
	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr, reg, logger)
	}

	controller := resource.NewController(cfg.Resources())
	openOpts := func(o *annforest.OpenOptions) {
		o.Catalog = cat
		o.Metric = metric
		o.Compression = cfg.Compression
		o.Controller = controller
		o.Rebuild = cfg.Rebuild
		o.ReadOnly = cfg.ReadOnly
		o.Logger = logger
		o.MetricsCollector = collector
	}

	idxCfg, _ := annforest.ParseIndexConfig(cfg.Index)
	ens, err := annforest.OpenEnsemble(ctx, store, ds.Name, ds.Train, idxCfg, cfg.Members, openOpts)
	if err != nil {
		return err
	}

	reqs, _ := cfg.Requests()
	weighting, _ := cfg.Weighting()
	searchOpts := []annforest.Option{
		annforest.WithMetric(metric),
		annforest.WithVoteWeighting(weighting),
		annforest.WithMetricsCollector(collector),
		annforest.WithLogger(logger),
	}
	if reqs[0].Strategy.NeedsSecondary() {
		table, err := annforest.OpenGroundTruth(ctx, store, ds.Name, ds.Train, cfg.SecondaryK, openOpts)
		if err != nil {
			return err
		}
		searchOpts = append(searchOpts, annforest.WithSecondaryIndex(table, cfg.SecondaryK))
	}

	searcher, err := annforest.NewSearcher(ds.Train, ens, searchOpts...)
	if err != nil {
		return err
	}

	runner := bench.NewRunner(searcher, func(o *bench.Options) {
		o.Concurrency = cfg.Concurrency
		o.QPS = cfg.QPS
		o.Warmup = cfg.Warmup
		o.Logger = logger
	})

	records := make([]dataset.ResultRecord, 0, len(reqs))
	for _, req := range reqs {
		r, err := runner.Run(ctx, ds.Test, req)
		if err != nil {
			return err
		}
		stats := bench.Summarize(r, ds.Neighbors)
		logStats(logger, req, stats)
		records = append(records, bench.Record(ds.Name, idxCfg.Key(), cfg.Members, r, stats))
	}

	return writeResults(cfg.ResultsPath, records)
}

func openStore(ctx context.Context, cfg *Config) (blobstore.BlobStore, error) {
	switch cfg.Store {
	case "s3":
		optFns := []func(o *s3.Options){s3.WithPrefix(cfg.Prefix), s3.WithRegion(cfg.Region)}
		if cfg.Endpoint != "" {
			optFns = append(optFns, s3.WithEndpoint(cfg.Endpoint, true))
		}
		return s3.New(ctx, cfg.Bucket, optFns...)
	case "minio":
		store, err := minio.New(cfg.Endpoint, cfg.Bucket,
			minio.WithCredentials(cfg.AccessKey, cfg.SecretKey),
			minio.WithSecure(cfg.Secure),
			minio.WithRegion(cfg.Region),
			minio.WithPrefix(cfg.Prefix),
		)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return store, nil
	default:
		return blobstore.NewLocalStore(cfg.DataPath), nil
	}
}

func openCatalog(ctx context.Context, cfg *Config, store blobstore.BlobStore) (catalog.Catalog, error) {
	if cfg.Catalog == "dynamodb" {
		return dynamodb.New(ctx, cfg.CatalogTable)
	}
	return catalog.NewBlob(store), nil
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *annforest.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	logger.Info("Starting metrics server", "address", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("Metrics server stopped", "error", err)
	}
}

func logStats(logger *annforest.Logger, req annforest.Request, s bench.Stats) {
	attrs := []any{
		"request", req.String(),
		"queries", s.Queries,
		"mean", s.Mean,
		"std", s.StdDev,
		"min", s.Min,
		"max", s.Max,
		"p99", s.P99,
		"qps", s.QPS,
		"mean_candidates", s.MeanCandidates,
		"median_candidates", s.MedianCandidates,
		"mean_found", s.MeanFound,
	}
	if !math.IsNaN(s.Recall) {
		attrs = append(attrs, "recall", s.Recall)
	}
	logger.Info("Benchmark finished", attrs...)
}

func writeResults(path string, records []dataset.ResultRecord) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return dataset.WriteResults(f, records)
}
