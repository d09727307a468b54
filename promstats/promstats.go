// Package promstats exports annforest metrics to Prometheus.
//
//	reg := prometheus.NewRegistry()
//	c, _ := promstats.New(reg)
//	s, _ := annforest.NewSearcher(corpus, ens, annforest.WithMetricsCollector(c))
//	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
package promstats

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/annforest"
)

// Compile time check to ensure Collector satisfies the MetricsCollector interface.
var _ annforest.MetricsCollector = (*Collector)(nil)

// Options contains configuration options for the collector.
type Options struct {
	// Namespace prefixes every metric name.
	Namespace string

	// LatencyBuckets are the search latency histogram buckets in seconds.
	LatencyBuckets []float64

	// CandidateBuckets are the candidate set size histogram buckets.
	CandidateBuckets []float64
}

// DefaultOptions contains the default configuration options for the collector.
var DefaultOptions = Options{
	Namespace:        "annforest",
	LatencyBuckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
	CandidateBuckets: prometheus.ExponentialBuckets(1, 4, 12),
}

// Collector implements annforest.MetricsCollector on Prometheus metrics.
type Collector struct {
	builds        *prometheus.CounterVec
	buildSeconds  prometheus.Histogram
	truths        *prometheus.CounterVec
	truthSeconds  prometheus.Histogram
	searches      *prometheus.CounterVec
	searchSeconds *prometheus.HistogramVec
	candidates    *prometheus.HistogramVec
}

// New creates a collector and registers its metrics with reg.
func New(reg prometheus.Registerer, optFns ...func(o *Options)) (*Collector, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	c := &Collector{
		builds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: opts.Namespace,
			Name:      "ensemble_builds_total",
			Help:      "Ensemble builds by status",
		}, []string{"status"}),
		buildSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: opts.Namespace,
			Name:      "ensemble_build_duration_seconds",
			Help:      "Ensemble build latency",
			Buckets:   prometheus.DefBuckets,
		}),
		truths: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: opts.Namespace,
			Name:      "groundtruth_builds_total",
			Help:      "Ground-truth table builds by status",
		}, []string{"status"}),
		truthSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: opts.Namespace,
			Name:      "groundtruth_build_duration_seconds",
			Help:      "Ground-truth table build latency",
			Buckets:   prometheus.DefBuckets,
		}),
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: opts.Namespace,
			Name:      "searches_total",
			Help:      "Queries by strategy and status",
		}, []string{"strategy", "status"}),
		searchSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: opts.Namespace,
			Name:      "search_duration_seconds",
			Help:      "Query latency by strategy",
			Buckets:   opts.LatencyBuckets,
		}, []string{"strategy"}),
		candidates: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: opts.Namespace,
			Name:      "search_candidates",
			Help:      "Candidate set size before refinement by strategy",
			Buckets:   opts.CandidateBuckets,
		}, []string{"strategy"}),
	}

	for _, col := range []prometheus.Collector{
		c.builds, c.buildSeconds, c.truths, c.truthSeconds,
		c.searches, c.searchSeconds, c.candidates,
	} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordBuild implements annforest.MetricsCollector.
func (c *Collector) RecordBuild(members int, duration time.Duration, err error) {
	c.builds.WithLabelValues(status(err)).Inc()
	if err == nil {
		c.buildSeconds.Observe(duration.Seconds())
	}
}

// RecordGroundTruth implements annforest.MetricsCollector.
func (c *Collector) RecordGroundTruth(rows, k int, duration time.Duration, err error) {
	c.truths.WithLabelValues(status(err)).Inc()
	if err == nil {
		c.truthSeconds.Observe(duration.Seconds())
	}
}

// RecordSearch implements annforest.MetricsCollector.
func (c *Collector) RecordSearch(strategy annforest.Strategy, k, candidates int, duration time.Duration, err error) {
	name := strategy.String()
	c.searches.WithLabelValues(name, status(err)).Inc()
	if err != nil {
		return
	}
	c.searchSeconds.WithLabelValues(name).Observe(duration.Seconds())
	c.candidates.WithLabelValues(name).Observe(float64(candidates))
}
