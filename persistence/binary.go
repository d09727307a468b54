package persistence

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var (
	// ErrTruncated is returned when the input ends before a value is complete.
	ErrTruncated = errors.New("persistence: truncated input")
	// ErrTrailingBytes is returned by Finish when input remains unread.
	ErrTrailingBytes = errors.New("persistence: trailing bytes")
	// ErrInvalidMagic is returned when a header does not start with the expected magic.
	ErrInvalidMagic = errors.New("persistence: invalid magic number")
	// ErrInvalidVersion is returned for an unsupported format version.
	ErrInvalidVersion = errors.New("persistence: unsupported version")
)

var le = binary.LittleEndian

// Encoder appends binary values to an internal buffer.
type Encoder struct {
	buf []byte
}

// NewEncoder creates an encoder with sizeHint bytes preallocated.
func NewEncoder(sizeHint int) *Encoder {
	return &Encoder{buf: make([]byte, 0, sizeHint)}
}

// Bytes returns the encoded buffer.
func (e *Encoder) Bytes() []byte { return e.buf }

// Len returns the number of encoded bytes.
func (e *Encoder) Len() int { return len(e.buf) }

// Header writes a magic number and format version.
func (e *Encoder) Header(magic uint32, version uint16) {
	e.Uint32(magic)
	e.Uint16(version)
}

func (e *Encoder) Uint8(v uint8) { e.buf = append(e.buf, v) }

func (e *Encoder) Uint16(v uint16) { e.buf = le.AppendUint16(e.buf, v) }

func (e *Encoder) Uint32(v uint32) { e.buf = le.AppendUint32(e.buf, v) }

func (e *Encoder) Uint64(v uint64) { e.buf = le.AppendUint64(e.buf, v) }

func (e *Encoder) Int64(v int64) { e.buf = le.AppendUint64(e.buf, uint64(v)) }

func (e *Encoder) Float32(v float32) { e.Uint32(math.Float32bits(v)) }

func (e *Encoder) Float64(v float64) { e.Uint64(math.Float64bits(v)) }

// Len-prefixed slices. The prefix is a uint32 element count.

func (e *Encoder) Float32s(v []float32) {
	e.Uint32(uint32(len(v)))
	for _, x := range v {
		e.Float32(x)
	}
}

func (e *Encoder) Uint32s(v []uint32) {
	e.Uint32(uint32(len(v)))
	for _, x := range v {
		e.Uint32(x)
	}
}

func (e *Encoder) Uint64s(v []uint64) {
	e.Uint32(uint32(len(v)))
	for _, x := range v {
		e.Uint64(x)
	}
}

func (e *Encoder) Int64s(v []int64) {
	e.Uint32(uint32(len(v)))
	for _, x := range v {
		e.Int64(x)
	}
}

func (e *Encoder) String(s string) {
	e.Uint32(uint32(len(s)))
	e.buf = append(e.buf, s...)
}

// Blob writes a length-prefixed byte slice.
func (e *Encoder) Blob(b []byte) {
	e.Uint32(uint32(len(b)))
	e.buf = append(e.buf, b...)
}

// Decoder reads values written by Encoder.
type Decoder struct {
	data []byte
	off  int
	err  error
}

// NewDecoder creates a decoder over data.
func NewDecoder(data []byte) *Decoder {
	return &Decoder{data: data}
}

// Err returns the first error encountered.
func (d *Decoder) Err() error { return d.err }

// Finish returns the first error, or ErrTrailingBytes if input remains.
func (d *Decoder) Finish() error {
	if d.err != nil {
		return d.err
	}
	if d.off != len(d.data) {
		return fmt.Errorf("%w: %d unread", ErrTrailingBytes, len(d.data)-d.off)
	}
	return nil
}

// Fail records err unless an earlier error is already set.
func (d *Decoder) Fail(err error) {
	if d.err == nil {
		d.err = err
	}
}

// Header reads and checks a magic number and version.
func (d *Decoder) Header(magic uint32, version uint16) {
	if got := d.Uint32(); d.err == nil && got != magic {
		d.Fail(fmt.Errorf("%w: got 0x%08x", ErrInvalidMagic, got))
		return
	}
	if got := d.Uint16(); d.err == nil && got != version {
		d.Fail(fmt.Errorf("%w: got %d", ErrInvalidVersion, got))
	}
}

func (d *Decoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if n < 0 || len(d.data)-d.off < n {
		d.err = ErrTruncated
		return nil
	}
	b := d.data[d.off : d.off+n]
	d.off += n
	return b
}

func (d *Decoder) Uint8() uint8 {
	b := d.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (d *Decoder) Uint16() uint16 {
	b := d.take(2)
	if b == nil {
		return 0
	}
	return le.Uint16(b)
}

func (d *Decoder) Uint32() uint32 {
	b := d.take(4)
	if b == nil {
		return 0
	}
	return le.Uint32(b)
}

func (d *Decoder) Uint64() uint64 {
	b := d.take(8)
	if b == nil {
		return 0
	}
	return le.Uint64(b)
}

func (d *Decoder) Int64() int64 { return int64(d.Uint64()) }

func (d *Decoder) Float32() float32 { return math.Float32frombits(d.Uint32()) }

func (d *Decoder) Float64() float64 { return math.Float64frombits(d.Uint64()) }

// count reads a slice length and checks that size*count bytes remain.
func (d *Decoder) count(size int) int {
	n := int(d.Uint32())
	if d.err != nil {
		return 0
	}
	if n > (len(d.data)-d.off)/size {
		d.err = ErrTruncated
		return 0
	}
	return n
}

func (d *Decoder) Float32s() []float32 {
	n := d.count(4)
	if n == 0 {
		return nil
	}
	out := make([]float32, n)
	for i := range out {
		out[i] = d.Float32()
	}
	return out
}

func (d *Decoder) Uint32s() []uint32 {
	n := d.count(4)
	if n == 0 {
		return nil
	}
	out := make([]uint32, n)
	for i := range out {
		out[i] = d.Uint32()
	}
	return out
}

func (d *Decoder) Uint64s() []uint64 {
	n := d.count(8)
	if n == 0 {
		return nil
	}
	out := make([]uint64, n)
	for i := range out {
		out[i] = d.Uint64()
	}
	return out
}

func (d *Decoder) Int64s() []int64 {
	n := d.count(8)
	if n == 0 {
		return nil
	}
	out := make([]int64, n)
	for i := range out {
		out[i] = d.Int64()
	}
	return out
}

// Blob reads a byte slice written by Encoder.Blob. The result aliases the
// input.
func (d *Decoder) Blob() []byte {
	n := d.count(1)
	return d.take(n)
}

func (d *Decoder) String() string {
	n := d.count(1)
	b := d.take(n)
	return string(b)
}

// Count reads a uint32 element count for a caller-decoded sequence whose
// elements occupy at least minSize bytes each.
func (d *Decoder) Count(minSize int) int {
	if minSize < 1 {
		minSize = 1
	}
	return d.count(minSize)
}
