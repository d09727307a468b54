package distance

import (
	"fmt"
	"math"
)

// Metric selects how neighbors are ranked and reported.
type Metric int

const (
	// MetricEuclidean ranks by squared L2 and reports L2.
	MetricEuclidean Metric = iota
	// MetricAngular ranks and reports by angular distance.
	MetricAngular
)

func (m Metric) String() string {
	switch m {
	case MetricEuclidean:
		return "euclidean"
	case MetricAngular:
		return "angular"
	default:
		return fmt.Sprintf("Unknown(%d)", m)
	}
}

// ParseMetric parses a metric name as written by String.
func ParseMetric(s string) (Metric, error) {
	switch s {
	case "euclidean", "l2", "":
		return MetricEuclidean, nil
	case "angular", "cosine":
		return MetricAngular, nil
	default:
		return 0, fmt.Errorf("distance: unknown metric %q", s)
	}
}

// RankFunc returns the ranking distance for the metric. Smaller is closer.
// Lengths are not checked; callers validate the query once.
func (m Metric) RankFunc() func(a, b []float32) float32 {
	if m == MetricAngular {
		return angular
	}
	return squaredL2
}

// Report converts a ranking distance to the reported distance.
func (m Metric) Report(rank float32) float32 {
	if m == MetricAngular {
		return rank
	}
	return float32(math.Sqrt(float64(rank)))
}
