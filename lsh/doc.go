// Package lsh provides the locality-sensitive hash families used by the
// hash-bucket indexes.
//
// # Families
//
//   - EuclideanHash: p-stable projection, floor((a.x + b) / r)
//   - AngularHash: random hyperplane sign, 0 if a.x < 0 else 1
//
// K hashes are combined into one bucket key: Euclidean outputs through a
// polynomial hash modulo the Mersenne prime 2^61-1, angular bits by packing.
//
// All randomness is drawn from the *rand.Rand passed to the constructor.
package lsh
