package annforest

import (
	"errors"
	"fmt"

	"github.com/hupe1980/annforest/bruteforce"
	"github.com/hupe1980/annforest/distance"
	"github.com/hupe1980/annforest/groundtruth"
	"github.com/hupe1980/annforest/index"
)

var (
	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("k must be positive")

	// ErrEmptyCorpus is returned for a corpus without rows.
	ErrEmptyCorpus = errors.New("empty corpus")

	// ErrEmptyEnsemble is returned for an ensemble without members.
	ErrEmptyEnsemble = errors.New("ensemble has no members")

	// ErrNoSecondaryIndex is returned by natural classifier strategies when
	// no ground-truth table is configured.
	ErrNoSecondaryIndex = errors.New("no secondary index configured")

	// ErrInvalidThreshold is returned for a threshold or set size a strategy
	// cannot use.
	ErrInvalidThreshold = errors.New("invalid threshold")

	// ErrUnknownStrategy is returned for an unrecognized strategy.
	ErrUnknownStrategy = errors.New("unknown strategy")
)

// ErrDimensionMismatch indicates a vector/query dimensionality mismatch.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
	cause    error
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *ErrDimensionMismatch) Unwrap() error { return e.cause }

// ErrSecondaryIndexShape indicates a secondary index whose rows do not match
// the configured neighbor count or the corpus size.
type ErrSecondaryIndexShape struct {
	ExpectedK    int
	ActualK      int
	ExpectedRows int
	ActualRows   int
}

func (e *ErrSecondaryIndexShape) Error() string {
	return fmt.Sprintf("secondary index shape: want %d rows of %d neighbors, got %d rows of %d",
		e.ExpectedRows, e.ExpectedK, e.ActualRows, e.ActualK)
}

// BuildError reports the ensemble slot whose construction failed.
type BuildError struct {
	Slot int
	Err  error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("build ensemble member %d: %v", e.Slot, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

func translateError(err error) error {
	if err == nil {
		return nil
	}

	var dm *distance.ErrDimensionMismatch
	if errors.As(err, &dm) {
		return &ErrDimensionMismatch{Expected: dm.Expected, Actual: dm.Actual, cause: err}
	}
	if errors.Is(err, bruteforce.ErrInvalidK) {
		return fmt.Errorf("%w: %w", ErrInvalidK, err)
	}
	if errors.Is(err, bruteforce.ErrEmptyCorpus) || errors.Is(err, index.ErrEmptyCorpus) {
		return fmt.Errorf("%w: %w", ErrEmptyCorpus, err)
	}
	if errors.Is(err, groundtruth.ErrInvalidK) {
		return fmt.Errorf("%w: %w", ErrInvalidK, err)
	}

	return err
}
