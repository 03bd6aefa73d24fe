// Package execution provides the chunk dispatch engines: a serial runner
// for deterministic debugging runs, a bounded parallel worker pool, and the
// memory-aware smart-flush controller that bounds peak resident memory on
// very large runs.
package execution

import (
	"context"
	"iter"
	"runtime"
	"sync"

	"github.com/clhughes/reV/internal/ctxlog"
	"github.com/clhughes/reV/internal/points"
	"github.com/clhughes/reV/internal/sim"
)

// RunFunc executes one chunk and returns its records. Implementations own
// per-chunk failure isolation: a failed chunk comes back as an empty record
// set, never as an error that could abort sibling chunks.
type RunFunc func(ctx context.Context, chunk points.Chunk) sim.Records

// Serial runs every chunk to completion in order on the calling goroutine.
// No pooling, no reordering; used when the worker count is exactly one.
func Serial(ctx context.Context, chunks iter.Seq[points.Chunk], fn RunFunc) []sim.Records {
	logger := ctxlog.FromContext(ctx)
	var out []sim.Records
	for chunk := range chunks {
		logger.Debug("running chunk serially", "chunk", chunk.String())
		out = append(out, fn(ctx, chunk))
	}
	return out
}

// Parallel fans chunks out across a fixed-size worker pool and collects the
// record sets as they complete. Completion order is not submission order;
// callers must merge by site gid, not position. A non-positive worker count
// uses all available CPUs.
func Parallel(ctx context.Context, chunks iter.Seq[points.Chunk], fn RunFunc, workers int) []sim.Records {
	var out []sim.Records
	collect := func(recs sim.Records) error {
		out = append(out, recs)
		return nil
	}
	// Collection errors are impossible here, so the pool error is too.
	_ = pool(ctx, chunks, fn, workers, collect)
	return out
}

// pool is the shared dispatch loop: a feeder goroutine streams chunks from
// the planner, workers consume them, and the calling goroutine collects
// completions one at a time through collect. Collect runs on a single
// goroutine, so anything it touches needs no locking.
func pool(ctx context.Context, chunks iter.Seq[points.Chunk], fn RunFunc, workers int, collect func(sim.Records) error) error {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	logger := ctxlog.FromContext(ctx)
	logger.Debug("starting chunk worker pool", "workers", workers)

	feed := make(chan points.Chunk)
	results := make(chan sim.Records, workers)

	go func() {
		defer close(feed)
		for chunk := range chunks {
			select {
			case feed <- chunk:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(id int) {
			defer wg.Done()
			for chunk := range feed {
				results <- fn(ctxlog.With(ctx, "worker", id), chunk)
			}
		}(i)
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	for recs := range results {
		if err := collect(recs); err != nil {
			// Drain so the workers can finish; the error aborts the run
			// after in-flight chunks complete.
			for range results {
			}
			return err
		}
	}
	return nil
}
