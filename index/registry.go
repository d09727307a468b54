package index

import (
	"fmt"
	"sync"
)

// Constructor returns an empty index ready for UnmarshalBinary.
type Constructor func() Index

var (
	registryMu sync.RWMutex
	registry   = map[Kind]Constructor{}
)

// Register registers the constructor for a variant.
//
// Index implementations should typically call this from an init() function.
func Register(kind Kind, ctor Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[kind] = ctor
}

// New returns an empty index of the given kind.
func New(kind Kind) (Index, error) {
	registryMu.RLock()
	ctor, ok := registry[kind]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("index: unknown kind %s", kind)
	}
	return ctor(), nil
}

// Marshal encodes idx prefixed with its kind byte.
func Marshal(idx Index) ([]byte, error) {
	payload, err := idx.MarshalBinary()
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(payload)+1)
	out = append(out, byte(idx.Kind()))
	return append(out, payload...), nil
}

// Unmarshal restores an index written by Marshal.
func Unmarshal(data []byte) (Index, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("index: empty input")
	}
	idx, err := New(Kind(data[0]))
	if err != nil {
		return nil, err
	}
	if err := idx.UnmarshalBinary(data[1:]); err != nil {
		return nil, fmt.Errorf("index: decode %s: %w", Kind(data[0]), err)
	}
	return idx, nil
}
