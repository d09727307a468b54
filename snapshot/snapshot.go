package snapshot

import (
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/annforest/codec"
	"github.com/hupe1980/annforest/internal/hash"
	"github.com/hupe1980/annforest/persistence"
)

const (
	magic   = 0x4146534E // "AFSN"
	version = 1
)

var (
	// ErrChecksumMismatch is returned when the stored checksum does not match.
	ErrChecksumMismatch = errors.New("snapshot: checksum mismatch")
	// ErrKindMismatch is returned when a snapshot holds a different kind of body.
	ErrKindMismatch = errors.New("snapshot: unexpected kind")
)

// Kind names what a snapshot body holds.
type Kind string

const (
	KindEnsemble    Kind = "ensemble"
	KindGroundTruth Kind = "groundtruth"
)

// Manifest describes a snapshot body.
type Manifest struct {
	Kind Kind `json:"kind"`

	// Key is the build parameter key, for example "RPTree_leaf50".
	Key string `json:"key"`

	// Points is the corpus size.
	Points int `json:"points"`

	// Dimension is the vector length.
	Dimension int `json:"dimension,omitempty"`

	// Members is the ensemble size L.
	Members int `json:"members,omitempty"`

	// K is the ground-truth row length.
	K int `json:"k,omitempty"`

	// Seed is the ensemble base seed.
	Seed int64 `json:"seed,omitempty"`

	// Compression is the body compression actually applied.
	Compression Compression `json:"compression"`

	CreatedAt time.Time `json:"created_at"`
}

// Options contains configuration options for encoding.
type Options struct {
	// Compression is the requested body compression.
	Compression Compression

	// Codec encodes the manifest. Defaults to codec.Default.
	Codec codec.Codec
}

// DefaultOptions contains the default configuration options for encoding.
var DefaultOptions = Options{
	Compression: CompressionLZ4,
}

// Encode wraps body with a manifest header and checksum.
func Encode(m Manifest, body []byte, optFns ...func(o *Options)) ([]byte, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Codec == nil {
		opts.Codec = codec.Default
	}
	if uint64(len(body)) > uint64(^uint32(0)) {
		return nil, fmt.Errorf("snapshot: body of %d bytes too large", len(body))
	}

	packed, used, err := compress(body, opts.Compression)
	if err != nil {
		return nil, err
	}
	m.Compression = used
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	header, err := opts.Codec.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("snapshot: encode manifest: %w", err)
	}

	e := persistence.NewEncoder(len(packed) + len(header) + 64)
	e.Header(magic, version)
	e.String(opts.Codec.Name())
	e.Blob(header)
	e.Uint8(uint8(used))
	e.Uint32(uint32(len(body)))
	e.Blob(packed)

	return hash.AppendTrailer(e.Bytes()), nil
}

// Decode verifies data and returns its manifest and decompressed body.
// The body may alias data when it was stored raw.
func Decode(data []byte) (Manifest, []byte, error) {
	content, want, ok := hash.SplitTrailer(data)
	if !ok {
		return Manifest{}, nil, persistence.ErrTruncated
	}
	if got := hash.CRC32C(content); got != want {
		return Manifest{}, nil, fmt.Errorf("%w: got 0x%08x, want 0x%08x", ErrChecksumMismatch, got, want)
	}

	d := persistence.NewDecoder(content)
	d.Header(magic, version)
	codecName := d.String()
	header := d.Blob()
	used := Compression(d.Uint8())
	size := int(d.Uint32())
	packed := d.Blob()
	if err := d.Finish(); err != nil {
		return Manifest{}, nil, err
	}

	c, err := codec.ByName(codecName)
	if err != nil {
		return Manifest{}, nil, err
	}
	var m Manifest
	if err := c.Unmarshal(header, &m); err != nil {
		return Manifest{}, nil, fmt.Errorf("snapshot: decode manifest: %w", err)
	}
	if m.Compression != used {
		return Manifest{}, nil, fmt.Errorf("snapshot: manifest compression %s, body %s", m.Compression, used)
	}

	body, err := decompress(packed, used, size)
	if err != nil {
		return Manifest{}, nil, err
	}
	return m, body, nil
}

func expectKind(m Manifest, kind Kind) error {
	if m.Kind != kind {
		return fmt.Errorf("%w: %q, want %q", ErrKindMismatch, m.Kind, kind)
	}
	return nil
}
