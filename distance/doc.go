// Package distance provides the vector math used to rank and report neighbors.
//
// Every two-vector function checks that both inputs have the same length and
// returns *ErrDimensionMismatch otherwise. Sums are accumulated in float64 and
// returned as float32.
//
// # Supported Metrics
//
//   - MetricEuclidean: squared L2 for ranking, L2 for reporting (default)
//   - MetricAngular: 1 - cos(a, b), in [0, 2]
//
// # Usage
//
//	d, err := distance.EuclideanDistance(a, b)
//	unit, err := distance.Normalize(vec)
package distance
