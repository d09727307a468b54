package dataset

import (
	"cmp"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/parquet-go/parquet-go"
)

// ErrInvalidDataset is returned for files whose rows do not form a dense
// matrix.
var ErrInvalidDataset = errors.New("dataset: invalid data")

// VectorRecord is one row of a train or test file.
type VectorRecord struct {
	ID     int64     `parquet:"id"`
	Vector []float32 `parquet:"vector"`
}

// NeighborRecord is one row of a neighbors file.
type NeighborRecord struct {
	ID        int64   `parquet:"id"`
	Neighbors []int32 `parquet:"neighbors"`
}

// WriteVectors writes vecs with ids 0..n-1.
func WriteVectors(w io.Writer, vecs [][]float32) error {
	rows := make([]VectorRecord, len(vecs))
	for i, v := range vecs {
		rows[i] = VectorRecord{ID: int64(i), Vector: v}
	}
	return write(w, rows)
}

// WriteNeighbors writes one neighbor row per query.
func WriteNeighbors(w io.Writer, neighbors [][]uint32) error {
	rows := make([]NeighborRecord, len(neighbors))
	for i, nb := range neighbors {
		ids := make([]int32, len(nb))
		for j, id := range nb {
			ids[j] = int32(id)
		}
		rows[i] = NeighborRecord{ID: int64(i), Neighbors: ids}
	}
	return write(w, rows)
}

func write[T any](w io.Writer, rows []T) error {
	pw := parquet.NewGenericWriter[T](w, parquet.Compression(&parquet.Zstd))
	if _, err := pw.Write(rows); err != nil {
		_ = pw.Close()
		return fmt.Errorf("dataset: write rows: %w", err)
	}
	return pw.Close()
}

// ReadVectors reads a train or test file. Every vector must have the same
// length.
func ReadVectors(r io.ReaderAt, size int64) ([][]float32, error) {
	rows, err := read[VectorRecord](r, size)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(rows, func(a, b VectorRecord) int { return cmp.Compare(a.ID, b.ID) })

	out := make([][]float32, len(rows))
	for i, row := range rows {
		if row.ID != int64(i) {
			return nil, fmt.Errorf("%w: row %d has id %d", ErrInvalidDataset, i, row.ID)
		}
		if len(row.Vector) == 0 || len(row.Vector) != len(rows[0].Vector) {
			return nil, fmt.Errorf("%w: vector %d has %d components, vector 0 has %d", ErrInvalidDataset, i, len(row.Vector), len(rows[0].Vector))
		}
		out[i] = row.Vector
	}
	return out, nil
}

// ReadNeighbors reads a neighbors file.
func ReadNeighbors(r io.ReaderAt, size int64) ([][]uint32, error) {
	rows, err := read[NeighborRecord](r, size)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(rows, func(a, b NeighborRecord) int { return cmp.Compare(a.ID, b.ID) })

	out := make([][]uint32, len(rows))
	for i, row := range rows {
		if row.ID != int64(i) {
			return nil, fmt.Errorf("%w: row %d has id %d", ErrInvalidDataset, i, row.ID)
		}
		ids := make([]uint32, len(row.Neighbors))
		for j, id := range row.Neighbors {
			if id < 0 {
				return nil, fmt.Errorf("%w: row %d has negative neighbor %d", ErrInvalidDataset, i, id)
			}
			ids[j] = uint32(id)
		}
		out[i] = ids
	}
	return out, nil
}

func read[T any](r io.ReaderAt, size int64) ([]T, error) {
	pf, err := parquet.OpenFile(r, size)
	if err != nil {
		return nil, fmt.Errorf("dataset: open parquet: %w", err)
	}
	pr := parquet.NewGenericReader[T](pf)
	defer pr.Close()

	rows := make([]T, pr.NumRows())
	n, err := pr.Read(rows)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("dataset: read rows: %w", err)
	}
	return rows[:n], nil
}
