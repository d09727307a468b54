package snapshot

import (
	"context"
	"fmt"

	"github.com/hupe1980/annforest/blobstore"
	"github.com/hupe1980/annforest/internal/resource"
)

// writeChunk is the size of each throttled write.
const writeChunk = 256 << 10

// Write stores data under name. Writes are throttled by the controller's IO
// limit; a nil controller does not throttle.
func Write(ctx context.Context, store blobstore.BlobStore, name string, data []byte, c *resource.Controller) error {
	w, err := store.Create(ctx, name)
	if err != nil {
		return fmt.Errorf("snapshot: create %s: %w", name, err)
	}
	rw := resource.NewRateLimitedWriter(ctx, w, c)
	for off := 0; off < len(data); off += writeChunk {
		end := min(off+writeChunk, len(data))
		if _, err := rw.Write(data[off:end]); err != nil {
			abort(w)
			return fmt.Errorf("snapshot: write %s: %w", name, err)
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("snapshot: commit %s: %w", name, err)
	}
	return nil
}

type aborter interface {
	Abort() error
}

// abort cancels an upload when the writer supports it and closes it otherwise.
func abort(w blobstore.WritableBlob) {
	if a, ok := w.(aborter); ok {
		_ = a.Abort()
		return
	}
	_ = w.Close()
}

// Read loads and decodes the named snapshot with decode. decode must not
// retain its argument.
func Read[T any](ctx context.Context, store blobstore.BlobStore, name string, decode func(data []byte) (Manifest, T, error)) (Manifest, T, error) {
	var (
		m   Manifest
		out T
	)
	err := blobstore.View(ctx, store, name, func(data []byte) error {
		var err error
		m, out, err = decode(data)
		return err
	})
	if err != nil {
		var zero T
		return Manifest{}, zero, fmt.Errorf("snapshot: read %s: %w", name, err)
	}
	return m, out, nil
}
