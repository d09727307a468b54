package main

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/hupe1980/annforest"
	"github.com/hupe1980/annforest/bench"
	"github.com/hupe1980/annforest/distance"
	"github.com/hupe1980/annforest/internal/resource"
	"github.com/hupe1980/annforest/snapshot"
)

// Config validation errors
var (
	ErrInvalidDataset     = errors.New("dataset cannot be empty")
	ErrInvalidStore       = errors.New("store must be local, s3, or minio")
	ErrInvalidBucket      = errors.New("bucket cannot be empty for s3 or minio")
	ErrInvalidEndpoint    = errors.New("endpoint cannot be empty for minio")
	ErrInvalidCatalog     = errors.New("catalog must be blob or dynamodb")
	ErrInvalidTable       = errors.New("catalog_table cannot be empty for dynamodb")
	ErrInvalidMembers     = errors.New("members must be positive")
	ErrInvalidSecondaryK  = errors.New("secondary_k must be positive")
	ErrInvalidWeighting   = errors.New("vote_weighting must be ensemble or member")
	ErrInvalidConcurrency = errors.New("concurrency must not be zero")
	ErrInvalidLogFormat   = errors.New("log_format must be 'json' or 'text'")
	ErrInvalidLogLevel    = errors.New("log_level must be debug, info, warn, or error")
)

// Config is read from ANNBENCH_* environment variables.
type Config struct {
	Dataset string `envconfig:"DATASET"`

	// Store holds the dataset, snapshots and catalog entries.
	Store     string `envconfig:"STORE" default:"local"`
	DataPath  string `envconfig:"DATA_PATH" default:"./data"`
	Bucket    string `envconfig:"BUCKET"`
	Prefix    string `envconfig:"PREFIX"`
	Region    string `envconfig:"REGION"`
	Endpoint  string `envconfig:"ENDPOINT"`
	AccessKey string `envconfig:"ACCESS_KEY"`
	SecretKey string `envconfig:"SECRET_KEY"`
	Secure    bool   `envconfig:"SECURE" default:"true"`

	Catalog      string `envconfig:"CATALOG" default:"blob"`
	CatalogTable string `envconfig:"CATALOG_TABLE"`

	// Index is a parameter key such as RPTree_leaf50 or C2LSH_K32_w1_m100_l8_r3.
	Index   string `envconfig:"INDEX" default:"RPTree_leaf50"`
	Members int    `envconfig:"MEMBERS" default:"10"`

	// Strategy is run once per ";" separated argument set, for example
	// STRATEGY=voting ARGS="10 2;10 3;10 4".
	Strategy string `envconfig:"STRATEGY" default:"lookup"`
	Args     string `envconfig:"ARGS" default:"10"`

	Metric        string `envconfig:"METRIC" default:"euclidean"`
	VoteWeighting string `envconfig:"VOTE_WEIGHTING" default:"ensemble"`
	SecondaryK    int    `envconfig:"SECONDARY_K" default:"10"`

	Concurrency int     `envconfig:"CONCURRENCY" default:"1"`
	QPS         float64 `envconfig:"QPS"`
	Warmup      int     `envconfig:"WARMUP"`

	MaxWorkers  int64                `envconfig:"MAX_WORKERS" default:"4"`
	MemoryLimit int64                `envconfig:"MEMORY_LIMIT"`
	IOLimit     int64                `envconfig:"IO_LIMIT"`
	Compression snapshot.Compression `envconfig:"COMPRESSION" default:"zstd"`
	ReadOnly    bool                 `envconfig:"READ_ONLY"`
	Rebuild     bool                 `envconfig:"REBUILD"`

	// MetricsAddr serves /metrics when set.
	MetricsAddr string `envconfig:"METRICS_ADDR"`
	ResultsPath string `envconfig:"RESULTS_PATH" default:"results.parquet"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
}

// DefaultConfig returns a Config with default values
func DefaultConfig() Config {
	return Config{
		Store:         "local",
		DataPath:      "./data",
		Secure:        true,
		Catalog:       "blob",
		Index:         "RPTree_leaf50",
		Members:       10,
		Strategy:      "lookup",
		Args:          "10",
		Metric:        "euclidean",
		VoteWeighting: "ensemble",
		SecondaryK:    10,
		Concurrency:   1,
		MaxWorkers:    4,
		Compression:   snapshot.CompressionZSTD,
		ResultsPath:   "results.parquet",
		LogFormat:     "text",
		LogLevel:      "info",
	}
}

// ValidateConfig validates the configuration and returns an error if invalid
func ValidateConfig(cfg *Config) error {
	if cfg.Dataset == "" {
		return ErrInvalidDataset
	}
	switch cfg.Store {
	case "local":
	case "s3":
		if cfg.Bucket == "" {
			return ErrInvalidBucket
		}
	case "minio":
		if cfg.Bucket == "" {
			return ErrInvalidBucket
		}
		if cfg.Endpoint == "" {
			return ErrInvalidEndpoint
		}
	default:
		return ErrInvalidStore
	}
	switch cfg.Catalog {
	case "blob":
	case "dynamodb":
		if cfg.CatalogTable == "" {
			return ErrInvalidTable
		}
	default:
		return ErrInvalidCatalog
	}
	if _, err := annforest.ParseIndexConfig(cfg.Index); err != nil {
		return err
	}
	if cfg.Members <= 0 {
		return ErrInvalidMembers
	}
	if _, err := cfg.Requests(); err != nil {
		return err
	}
	if _, err := distance.ParseMetric(cfg.Metric); err != nil {
		return err
	}
	if _, err := cfg.Weighting(); err != nil {
		return err
	}
	if cfg.SecondaryK <= 0 {
		return ErrInvalidSecondaryK
	}
	if cfg.Concurrency == 0 {
		return ErrInvalidConcurrency
	}
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return ErrInvalidLogFormat
	}
	if _, err := cfg.Level(); err != nil {
		return err
	}
	return nil
}

// Requests parses one request per argument set.
func (c *Config) Requests() ([]annforest.Request, error) {
	var reqs []annforest.Request
	for _, set := range strings.Split(c.Args, ";") {
		if strings.TrimSpace(set) == "" {
			continue
		}
		req, err := bench.ParseRequest(c.Strategy, bench.ParseArgs(set))
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
	}
	if len(reqs) == 0 {
		return nil, bench.ErrInvalidArgs
	}
	return reqs, nil
}

// Weighting returns the natural classifier vote weighting.
func (c *Config) Weighting() (annforest.VoteWeighting, error) {
	switch c.VoteWeighting {
	case "ensemble", "":
		return annforest.VoteEnsembleAverage, nil
	case "member":
		return annforest.VotePerMember, nil
	default:
		return 0, ErrInvalidWeighting
	}
}

// Level returns the configured log level.
func (c *Config) Level() (slog.Level, error) {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, ErrInvalidLogLevel
	}
}

// Resources returns the build and IO limits.
func (c *Config) Resources() resource.Config {
	return resource.Config{
		MemoryLimitBytes:   c.MemoryLimit,
		MaxWorkers:         c.MaxWorkers,
		IOLimitBytesPerSec: c.IOLimit,
	}
}
