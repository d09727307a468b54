package annforest

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems; package
// promstats provides a Prometheus implementation.
type MetricsCollector interface {
	// RecordBuild is called after each ensemble build.
	// members is the requested ensemble size, err is nil if successful.
	RecordBuild(members int, duration time.Duration, err error)

	// RecordGroundTruth is called after each ground-truth table build.
	RecordGroundTruth(rows, k int, duration time.Duration, err error)

	// RecordSearch is called after each query. candidates is the size of
	// the candidate set before refinement.
	RecordSearch(strategy Strategy, k, candidates int, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordBuild(int, time.Duration, error)                 {}
func (NoopMetricsCollector) RecordGroundTruth(int, int, time.Duration, error)      {}
func (NoopMetricsCollector) RecordSearch(Strategy, int, int, time.Duration, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	BuildCount        atomic.Int64
	BuildErrors       atomic.Int64
	BuildTotalNanos   atomic.Int64
	GroundTruthCount  atomic.Int64
	GroundTruthErrors atomic.Int64
	SearchCount       atomic.Int64
	SearchErrors      atomic.Int64
	SearchTotalNanos  atomic.Int64
	CandidateTotal    atomic.Int64
}

// RecordBuild implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBuild(members int, duration time.Duration, err error) {
	b.BuildCount.Add(1)
	b.BuildTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.BuildErrors.Add(1)
	}
}

// RecordGroundTruth implements MetricsCollector.
func (b *BasicMetricsCollector) RecordGroundTruth(rows, k int, duration time.Duration, err error) {
	b.GroundTruthCount.Add(1)
	if err != nil {
		b.GroundTruthErrors.Add(1)
	}
}

// RecordSearch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSearch(strategy Strategy, k, candidates int, duration time.Duration, err error) {
	b.SearchCount.Add(1)
	b.SearchTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.SearchErrors.Add(1)
		return
	}
	b.CandidateTotal.Add(int64(candidates))
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		BuildCount:        b.BuildCount.Load(),
		BuildErrors:       b.BuildErrors.Load(),
		GroundTruthCount:  b.GroundTruthCount.Load(),
		GroundTruthErrors: b.GroundTruthErrors.Load(),
		SearchCount:       b.SearchCount.Load(),
		SearchErrors:      b.SearchErrors.Load(),
		SearchAvgNanos:    b.getAvgSearchNanos(),
		CandidateAvg:      b.getAvgCandidates(),
	}
}

func (b *BasicMetricsCollector) getAvgSearchNanos() int64 {
	count := b.SearchCount.Load()
	if count == 0 {
		return 0
	}
	return b.SearchTotalNanos.Load() / count
}

func (b *BasicMetricsCollector) getAvgCandidates() float64 {
	ok := b.SearchCount.Load() - b.SearchErrors.Load()
	if ok == 0 {
		return 0
	}
	return float64(b.CandidateTotal.Load()) / float64(ok)
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	BuildCount        int64
	BuildErrors       int64
	GroundTruthCount  int64
	GroundTruthErrors int64
	SearchCount       int64
	SearchErrors      int64
	SearchAvgNanos    int64
	CandidateAvg      float64
}
