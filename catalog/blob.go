package catalog

import (
	"context"
	"fmt"

	"github.com/hupe1980/annforest/blobstore"
)

// Compile-time check to ensure Blob satisfies Catalog.
var _ Catalog = (*Blob)(nil)

// Blob is a catalog that derives entries from the names in a blob store.
type Blob struct {
	store blobstore.BlobStore
}

// NewBlob creates a catalog over store.
func NewBlob(store blobstore.BlobStore) *Blob {
	return &Blob{store: store}
}

// LookupEnsemble implements Catalog.
func (c *Blob) LookupEnsemble(ctx context.Context, key string, minMembers int) (Entry, error) {
	entries, err := c.list(ctx, ensemblePrefix+key+"_L", key, false)
	if err != nil {
		return Entry{}, err
	}
	return best(entries, minMembers)
}

// LookupGroundTruth implements Catalog.
func (c *Blob) LookupGroundTruth(ctx context.Context, dataset string, minK int) (Entry, error) {
	entries, err := c.list(ctx, groundTruthPrefix+dataset+"_k", dataset, true)
	if err != nil {
		return Entry{}, err
	}
	return best(entries, minK)
}

// Register checks that the entry's blob exists. The name itself is the
// registration.
func (c *Blob) Register(ctx context.Context, e Entry) error {
	b, err := c.store.Open(ctx, e.Name)
	if err != nil {
		return fmt.Errorf("catalog: register %s: %w", e.Name, err)
	}
	return b.Close()
}

func (c *Blob) list(ctx context.Context, prefix, key string, gt bool) ([]Entry, error) {
	names, err := c.store.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("catalog: list %s: %w", prefix, err)
	}
	var entries []Entry
	for _, name := range names {
		e, ok := ParseName(name)
		if ok && e.Key == key && e.GroundTruth == gt {
			entries = append(entries, e)
		}
	}
	return entries, nil
}
