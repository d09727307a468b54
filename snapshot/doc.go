// Package snapshot encodes fitted ensembles and ground-truth tables for
// storage.
//
// A snapshot is a single blob:
//
//	magic "AFSN" | version | codec name | manifest | compression | body | CRC32C
//
// The manifest is encoded with the named codec and describes what the body
// holds. The body is optionally LZ4 or ZSTD compressed and is stored raw when
// compression does not pay off. The trailing checksum covers every preceding
// byte and is verified before anything is decoded.
package snapshot
