package dataset

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/hupe1980/annforest/blobstore"
	"github.com/hupe1980/annforest/distance"
)

const (
	trainFile     = "train.parquet"
	testFile      = "test.parquet"
	neighborsFile = "neighbors.parquet"
)

// Dataset is a corpus with its queries and, optionally, their exact neighbors.
type Dataset struct {
	Name string

	// Train is the corpus.
	Train [][]float32

	// Test holds the queries.
	Test [][]float32

	// Neighbors[i] lists the exact nearest corpus points of Test[i], nearest
	// first. Nil when the dataset ships without them.
	Neighbors [][]uint32
}

// Dimension returns the vector length.
func (d *Dataset) Dimension() int {
	if len(d.Train) == 0 {
		return 0
	}
	return len(d.Train[0])
}

// Validate checks that queries match the corpus dimension and neighbors
// reference corpus points.
func (d *Dataset) Validate() error {
	if len(d.Train) == 0 {
		return fmt.Errorf("%w: %s has no train vectors", ErrInvalidDataset, d.Name)
	}
	dim := d.Dimension()
	for i, q := range d.Test {
		if len(q) != dim {
			return fmt.Errorf("%w: query %d has %d components, corpus %d", ErrInvalidDataset, i, len(q), dim)
		}
	}
	if d.Neighbors == nil {
		return nil
	}
	if len(d.Neighbors) != len(d.Test) {
		return fmt.Errorf("%w: %d neighbor rows for %d queries", ErrInvalidDataset, len(d.Neighbors), len(d.Test))
	}
	for i, row := range d.Neighbors {
		for _, id := range row {
			if int(id) >= len(d.Train) {
				return fmt.Errorf("%w: query %d neighbor %d out of range %d", ErrInvalidDataset, i, id, len(d.Train))
			}
		}
	}
	return nil
}

// Normalize scales every train and test vector to unit length, for angular
// benchmarks.
func (d *Dataset) Normalize() {
	d.Train = distance.NormalizeCorpus(d.Train)
	d.Test = distance.NormalizeCorpus(d.Test)
}

// Load reads the dataset stored under name. The neighbors file is optional.
func Load(ctx context.Context, store blobstore.BlobStore, name string) (*Dataset, error) {
	d := &Dataset{Name: name}

	var err error
	if d.Train, err = loadVectors(ctx, store, path.Join(name, trainFile)); err != nil {
		return nil, err
	}
	if d.Test, err = loadVectors(ctx, store, path.Join(name, testFile)); err != nil {
		return nil, err
	}
	err = blobstore.View(ctx, store, path.Join(name, neighborsFile), func(data []byte) error {
		var err error
		d.Neighbors, err = ReadNeighbors(bytes.NewReader(data), int64(len(data)))
		return err
	})
	if err != nil && !errors.Is(err, blobstore.ErrNotFound) {
		return nil, fmt.Errorf("dataset: load %s: %w", neighborsFile, err)
	}

	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

func loadVectors(ctx context.Context, store blobstore.BlobStore, name string) ([][]float32, error) {
	var vecs [][]float32
	err := blobstore.View(ctx, store, name, func(data []byte) error {
		v, err := ReadVectors(bytes.NewReader(data), int64(len(data)))
		if err != nil {
			return err
		}
		// Decoded rows may alias a mapped blob.
		vecs = make([][]float32, len(v))
		for i := range v {
			vecs[i] = append([]float32(nil), v[i]...)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("dataset: load %s: %w", name, err)
	}
	return vecs, nil
}

// Save writes the dataset under d.Name.
func Save(ctx context.Context, store blobstore.BlobStore, d *Dataset) error {
	if err := d.Validate(); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := WriteVectors(&buf, d.Train); err != nil {
		return err
	}
	if err := store.Put(ctx, path.Join(d.Name, trainFile), buf.Bytes()); err != nil {
		return err
	}

	buf.Reset()
	if err := WriteVectors(&buf, d.Test); err != nil {
		return err
	}
	if err := store.Put(ctx, path.Join(d.Name, testFile), buf.Bytes()); err != nil {
		return err
	}

	if d.Neighbors == nil {
		return nil
	}
	buf.Reset()
	if err := WriteNeighbors(&buf, d.Neighbors); err != nil {
		return err
	}
	return store.Put(ctx, path.Join(d.Name, neighborsFile), buf.Bytes())
}
