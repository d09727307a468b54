// Package catalog finds stored snapshots by build parameters.
//
// Ensembles are matched by parameter key and member count: a stored ensemble
// with at least the requested number of members serves any smaller request
// through its prefix. Ground-truth tables are matched by dataset and row
// length: a table with at least the requested k serves it by truncation. When
// several entries qualify the smallest is chosen.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrNotFound is returned when no stored snapshot satisfies a lookup.
var ErrNotFound = errors.New("catalog: no matching snapshot")

const (
	ensemblePrefix    = "ensembles/"
	groundTruthPrefix = "groundtruth/"
	suffix            = ".snap"
)

// Entry describes one stored snapshot.
type Entry struct {
	// Name is the blob name.
	Name string

	// Key is the parameter key of an ensemble or the dataset of a
	// ground-truth table.
	Key string

	// Size is the member count of an ensemble or the row length of a table.
	Size int

	// GroundTruth distinguishes tables from ensembles.
	GroundTruth bool
}

// Catalog looks up stored snapshots.
type Catalog interface {
	// LookupEnsemble returns the smallest stored ensemble for key with at
	// least minMembers members.
	LookupEnsemble(ctx context.Context, key string, minMembers int) (Entry, error)

	// LookupGroundTruth returns the table for dataset with the smallest row
	// length of at least minK.
	LookupGroundTruth(ctx context.Context, dataset string, minK int) (Entry, error)

	// Register records a stored snapshot.
	Register(ctx context.Context, e Entry) error
}

// EnsembleEntry returns the entry under which an ensemble is stored.
func EnsembleEntry(key string, members int) Entry {
	return Entry{
		Name: fmt.Sprintf("%s%s_L%d%s", ensemblePrefix, key, members, suffix),
		Key:  key,
		Size: members,
	}
}

// GroundTruthEntry returns the entry under which a ground-truth table is
// stored.
func GroundTruthEntry(dataset string, k int) Entry {
	return Entry{
		Name:        fmt.Sprintf("%s%s_k%d%s", groundTruthPrefix, dataset, k, suffix),
		Key:         dataset,
		Size:        k,
		GroundTruth: true,
	}
}

// ParseName parses a blob name written by EnsembleEntry or GroundTruthEntry.
func ParseName(name string) (Entry, bool) {
	var (
		rest string
		sep  string
		gt   bool
	)
	switch {
	case strings.HasPrefix(name, ensemblePrefix):
		rest, sep = strings.TrimPrefix(name, ensemblePrefix), "_L"
	case strings.HasPrefix(name, groundTruthPrefix):
		rest, sep, gt = strings.TrimPrefix(name, groundTruthPrefix), "_k", true
	default:
		return Entry{}, false
	}
	rest, ok := strings.CutSuffix(rest, suffix)
	if !ok {
		return Entry{}, false
	}
	i := strings.LastIndex(rest, sep)
	if i <= 0 {
		return Entry{}, false
	}
	size, err := strconv.Atoi(rest[i+len(sep):])
	if err != nil || size <= 0 {
		return Entry{}, false
	}
	return Entry{Name: name, Key: rest[:i], Size: size, GroundTruth: gt}, true
}

// best returns the smallest entry with Size >= minSize.
func best(entries []Entry, minSize int) (Entry, error) {
	var (
		found Entry
		ok    bool
	)
	for _, e := range entries {
		if e.Size >= minSize && (!ok || e.Size < found.Size) {
			found, ok = e, true
		}
	}
	if !ok {
		return Entry{}, ErrNotFound
	}
	return found, nil
}
