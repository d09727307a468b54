// Package hash computes the CRC32-Castagnoli checksums that seal snapshot
// files and S3 uploads.
package hash

import (
	"encoding/base64"
	"encoding/binary"
	"hash/crc32"
)

// TrailerSize is the length of a checksum trailer.
const TrailerSize = 4

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// CRC32C computes the CRC32-Castagnoli checksum of data.
func CRC32C(data []byte) uint32 {
	return crc32.Checksum(data, castagnoli)
}

// AppendTrailer appends the little-endian checksum of b to b.
func AppendTrailer(b []byte) []byte {
	return binary.LittleEndian.AppendUint32(b, CRC32C(b))
}

// SplitTrailer separates data into its content and the trailer written by
// AppendTrailer. ok is false when data is too short to hold a trailer.
func SplitTrailer(data []byte) (content []byte, want uint32, ok bool) {
	if len(data) < TrailerSize {
		return nil, 0, false
	}
	content = data[:len(data)-TrailerSize]
	return content, binary.LittleEndian.Uint32(data[len(content):]), true
}

// S3Checksum returns the checksum in the form of the x-amz-checksum-crc32c
// header: base64 of the big-endian bytes.
func S3Checksum(data []byte) string {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], CRC32C(data))
	return base64.StdEncoding.EncodeToString(b[:])
}
