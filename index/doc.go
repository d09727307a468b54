// Package index defines the capability shared by every partitioning structure:
// Fit a corpus once, then Search it read-only from any number of goroutines.
//
// # Variants
//
//   - hashtable.Table: classic Euclidean LSH with a polynomial composite key
//   - hashtable.AngularTable: sign-bit LSH for angular data
//   - c2lsh.Index: collision counting over K independent hash functions
//   - rptree.Tree: random projection tree
//   - rkdtree.Tree: randomized k-d tree
//
// Implementations register themselves with Register so Unmarshal can restore
// any of them from the bytes produced by Marshal.
package index
