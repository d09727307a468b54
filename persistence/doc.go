// Package persistence provides the little-endian binary encoding used by
// index MarshalBinary implementations and atomic file writes.
//
// Encoder appends fixed-width values and length-prefixed slices to a byte
// buffer. Decoder reads them back with a sticky error: after the first
// failure every read returns a zero value and Err reports the cause, so
// callers check once at the end.
package persistence
