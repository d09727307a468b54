// Package dataset reads and writes benchmark corpora as Parquet.
//
// A dataset named "sift" is stored under three blobs:
//
//	sift/train.parquet      corpus vectors, one row per point (id, vector)
//	sift/test.parquet       query vectors (id, vector)
//	sift/neighbors.parquet  exact neighbors of each query (id, neighbors)
//
// Rows may be stored in any order; ids must be 0..n-1 without gaps.
// Benchmark results are written with WriteResults.
package dataset
