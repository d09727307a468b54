package annforest

import (
	"log/slog"

	"github.com/hupe1980/annforest/distance"
	"github.com/hupe1980/annforest/groundtruth"
)

type options struct {
	metricsCollector MetricsCollector
	logger           *Logger
	metric           distance.Metric
	voteWeighting    VoteWeighting
	secondary        *groundtruth.Table
	secondaryK       int
}

// Option configures a Searcher.
type Option func(*options)

// WithMetric sets the refinement distance. Default: distance.MetricEuclidean.
func WithMetric(m distance.Metric) Option {
	return func(o *options) {
		o.metric = m
	}
}

// WithVoteWeighting selects how natural classifier strategies weight a
// member's result. Default: VoteEnsembleAverage.
func WithVoteWeighting(w VoteWeighting) Option {
	return func(o *options) {
		o.voteWeighting = w
	}
}

// WithSecondaryIndex attaches the ground-truth table used by natural
// classifier strategies. expectedK is the row length callers rely on; a
// table with a different row length is rejected at query time.
//
// Example:
//
//	table, _ := groundtruth.Build(ctx, corpus, 10)
//	s, _ := annforest.NewSearcher(corpus, ensemble,
//	    annforest.WithSecondaryIndex(table, 10))
func WithSecondaryIndex(table *groundtruth.Table, expectedK int) Option {
	return func(o *options) {
		o.secondary = table
		o.secondaryK = expectedK
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &annforest.BasicMetricsCollector{}
//	s, _ := annforest.NewSearcher(corpus, ensemble, annforest.WithMetricsCollector(metrics))
//	// ... run queries ...
//	stats := metrics.GetStats()
//	fmt.Printf("Searches: %d, Avg latency: %dns\n", stats.SearchCount, stats.SearchAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := annforest.NewJSONLogger(slog.LevelInfo)
//	s, _ := annforest.NewSearcher(corpus, ensemble, annforest.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
		metric:           distance.MetricEuclidean,
		voteWeighting:    VoteEnsembleAverage,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.metricsCollector == nil {
		o.metricsCollector = NoopMetricsCollector{}
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	return o
}
