// Package blobstore provides the storage abstraction for ensemble and
// ground-truth snapshots.
//
// Snapshots are immutable: they are written once under a name derived from
// their build parameters and later read whole. Implementations must be safe
// for concurrent use.
//
// # Built-in Implementations
//
//   - LocalStore: local directory, reads through mmap
//   - MemoryStore: in-memory, for tests
//   - s3.Store: Amazon S3 with range reads and multipart uploads
//   - minio.Store: MinIO and other S3-compatible services
//
// # Reading
//
// View hands a blob's contents to a callback, zero-copy when the blob is
// Mappable:
//
//	err := blobstore.View(ctx, store, "ensembles/RPTree_leaf50_L20.snap", func(data []byte) error {
//	    return decode(data) // must not retain data
//	})
package blobstore
