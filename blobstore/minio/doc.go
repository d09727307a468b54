// Package minio provides a BlobStore implementation using the MinIO client.
//
// It works with MinIO and other S3-compatible services (Ceph, SeaweedFS,
// Garage) without AWS SDK dependencies.
//
//	store, err := minio.New("localhost:9000", "snapshots",
//	    minio.WithCredentials("minioadmin", "minioadmin"),
//	    minio.WithPrefix("sift/"),
//	)
//
// An existing *minio.Client can be wrapped with NewStore.
package minio
