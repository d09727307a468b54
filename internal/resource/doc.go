// Package resource implements the Controller for shared limits.
//
// The Controller governs three resources:
//
//   - Memory: track and cap large allocations such as ground-truth tables (non-blocking, fail-fast)
//   - Workers: bound concurrent ensemble member builds and ground-truth chunks
//   - IO: rate-limit snapshot writes
//
// # Memory
//
//	rc := resource.NewController(resource.Config{
//	    MemoryLimitBytes: 1 << 30,
//	})
//
//	if err := rc.AcquireMemory(tableBytes); err != nil {
//	    // ErrMemoryLimitExceeded
//	}
//	defer rc.ReleaseMemory(tableBytes)
//
// # Workers
//
//	if err := rc.AcquireWorker(ctx); err != nil {
//	    return err
//	}
//	defer rc.ReleaseWorker()
//
// # IO
//
//	w := resource.NewRateLimitedWriter(ctx, file, rc)
//
// # Nil Safety
//
// All methods handle a nil Controller gracefully; they become no-ops.
package resource
