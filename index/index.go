package index

import (
	"encoding"
	"errors"
	"fmt"
	"math/rand"

	"github.com/hupe1980/annforest/distance"
)

var (
	// ErrEmptyCorpus is returned when fitting zero points.
	ErrEmptyCorpus = errors.New("index: empty corpus")
	// ErrNotFitted is returned when searching before Fit.
	ErrNotFitted = errors.New("index: not fitted")
	// ErrInvalidOption is returned for out-of-range construction parameters.
	ErrInvalidOption = errors.New("index: invalid option")
)

// ErrDimensionMismatch is the error returned for vectors of the wrong length.
type ErrDimensionMismatch = distance.ErrDimensionMismatch

// Kind identifies an index variant.
type Kind uint8

const (
	KindHashTable Kind = iota + 1
	KindAngularHashTable
	KindC2LSH
	KindRPTree
	KindRKDTree
)

// String returns the variant name used in snapshot keys.
func (k Kind) String() string {
	switch k {
	case KindHashTable:
		return "LSH"
	case KindAngularHashTable:
		return "AngLSH"
	case KindC2LSH:
		return "C2LSH"
	case KindRPTree:
		return "RPTree"
	case KindRKDTree:
		return "RKDTree"
	default:
		return fmt.Sprintf("Unknown(%d)", k)
	}
}

// Index is a randomized partition of a corpus.
type Index interface {
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler

	// Fit partitions the corpus. Row i has id i.
	Fit(corpus [][]float32) error

	// Search returns the ids sharing the query's bucket or leaf.
	// A nil slice with a nil error means the query hit no bucket.
	// The slice aliases index storage and must not be modified.
	Search(q []float32) ([]uint32, error)

	// Kind returns the variant.
	Kind() Kind

	// Dimension returns the vector length the index was created for.
	Dimension() int
}

// Factory creates an unfitted index for dim-dimensional vectors, drawing all
// randomized parameters from rng.
type Factory func(dim int, rng *rand.Rand) (Index, error)

// ValidateCorpus checks that the corpus is non-empty and every row has dim
// components.
func ValidateCorpus(corpus [][]float32, dim int) error {
	if len(corpus) == 0 {
		return ErrEmptyCorpus
	}
	for _, row := range corpus {
		if len(row) != dim {
			return &ErrDimensionMismatch{Expected: dim, Actual: len(row)}
		}
	}
	return nil
}

// CheckQuery validates a query vector length.
func CheckQuery(dim int, q []float32) error {
	if len(q) != dim {
		return &ErrDimensionMismatch{Expected: dim, Actual: len(q)}
	}
	return nil
}
