package execution

import (
	"context"
	"fmt"
	"iter"

	"github.com/dustin/go-humanize"

	"github.com/clhughes/reV/internal/ctxlog"
	"github.com/clhughes/reV/internal/points"
	"github.com/clhughes/reV/internal/sim"
)

// DefaultMemLimit is the fractional system memory utilization above which
// the flush controller writes out and clears the accumulated results.
const DefaultMemLimit = 0.7

// Sink is the result accumulator the flush controller drives. Merge and
// FlushAndClear are only ever called from the controller's collector
// goroutine, so the two can never interleave.
type Sink interface {
	// Merge folds one chunk's records into the accumulated table.
	Merge(recs sim.Records)
	// Len is the number of accumulated site records.
	Len() int
	// FlushAndClear writes the accumulated table to persistent storage and
	// releases it. Must be a no-op on an empty table.
	FlushAndClear(ctx context.Context) error
}

// FlushController wraps the parallel dispatcher with a memory watchdog.
// After each chunk completion it merges the result, samples utilization, and
// when the configured fraction is exceeded it synchronously flushes and
// clears the sink before accepting further completions. Worker dispatch is
// not serialized behind the check: chunks keep streaming to idle workers
// while the collector merges and flushes.
type FlushController struct {
	// MemLimit is the fractional utilization threshold; non-positive means
	// DefaultMemLimit.
	MemLimit float64
	// Workers sizes the pool; non-positive means all CPUs.
	Workers int
	// Sample overrides the memory sampler. Nil means SystemMemory.
	Sample Sampler
	// Metrics is optional.
	Metrics *Metrics
}

// Run dispatches every chunk and drives the sink. Simulation failures never
// surface here (RunFunc isolates them); a flush failure does abort the run,
// since losing the table would lose every remaining site.
func (fc *FlushController) Run(ctx context.Context, chunks iter.Seq[points.Chunk], fn RunFunc, sink Sink) error {
	limit := fc.MemLimit
	if limit <= 0 {
		limit = DefaultMemLimit
	}
	sample := fc.Sample
	if sample == nil {
		sample = SystemMemory
	}
	logger := ctxlog.FromContext(ctx)

	collect := func(recs sim.Records) error {
		sink.Merge(recs)
		if fc.Metrics != nil {
			fc.Metrics.ChunksCompleted.Inc()
		}

		ms, err := sample()
		if err != nil {
			logger.Warn("memory sampling failed; skipping flush check", "error", err)
			return nil
		}
		if fc.Metrics != nil {
			fc.Metrics.MemUtilization.Set(ms.Fraction)
		}
		if ms.Fraction <= limit {
			return nil
		}

		logger.Info("memory utilization above limit, flushing accumulated results",
			"utilization", fmt.Sprintf("%.2f", ms.Fraction),
			"limit", fmt.Sprintf("%.2f", limit),
			"used", humanize.IBytes(ms.Used),
			"total", humanize.IBytes(ms.Total),
			"sites", sink.Len())
		if err := fc.flush(ctx, sink); err != nil {
			return err
		}
		return nil
	}

	if err := pool(ctx, chunks, fn, fc.Workers, collect); err != nil {
		return err
	}

	// Whatever is still resident goes out at run end.
	return fc.flush(ctx, sink)
}

func (fc *FlushController) flush(ctx context.Context, sink Sink) error {
	n := sink.Len()
	if err := sink.FlushAndClear(ctx); err != nil {
		return fmt.Errorf("flushing results: %w", err)
	}
	if fc.Metrics != nil && n > 0 {
		fc.Metrics.Flushes.Inc()
		fc.Metrics.SitesFlushed.Add(float64(n))
	}
	return nil
}
