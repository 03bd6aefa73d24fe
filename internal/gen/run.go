package gen

import (
	"context"
	"log/slog"

	"github.com/clhughes/reV/internal/ctxlog"
	"github.com/clhughes/reV/internal/execution"
	"github.com/clhughes/reV/internal/points"
	"github.com/clhughes/reV/internal/sim"
)

// RunChunk is the worker invocation boundary. It runs the simulation engine
// for one chunk and isolates its failures: any error or panic is logged
// with the chunk's identity and converted to an empty record set, so one
// chunk can never abort its siblings or the run. Failed sites are simply
// absent from the final table.
func (g *Gen) RunChunk(ctx context.Context, chunk points.Chunk) (recs sim.Records) {
	logger := g.workerLogger(ctx)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("simulation worker panicked; dropping chunk",
				"chunk", chunk.String(), "panic", r)
			if g.opts.Metrics != nil {
				g.opts.Metrics.ChunkFailures.Inc()
			}
			recs = sim.Records{}
		}
	}()

	recs, err := g.simulator.Simulate(ctx, chunk.Sites, g.res, g.req)
	if err != nil {
		logger.Error("simulation failed; dropping chunk",
			"chunk", chunk.String(), "error", err)
		if g.opts.Metrics != nil {
			g.opts.Metrics.ChunkFailures.Inc()
		}
		return sim.Records{}
	}
	logger.Debug("chunk simulation complete", "chunk", chunk.String(), "sites", len(recs))
	return recs
}

// workerLogger rebuilds the worker's logging through the registry, since
// pool workers do not inherit the dispatcher's live handler state.
func (g *Gen) workerLogger(ctx context.Context) *slog.Logger {
	if g.opts.Logs != nil {
		return g.opts.Logs.Ensure("generation.worker")
	}
	return ctxlog.FromContext(ctx)
}

// RunDirect executes the whole chunk plan, serially for a worker count of
// one and on a fixed pool otherwise, merges everything into the result
// table, and flushes once at the end.
func (g *Gen) RunDirect(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	var results []sim.Records
	if g.opts.Workers == 1 {
		logger.Debug("running serial generation", "control", g.control.String())
		results = execution.Serial(ctx, g.control.Chunks(), g.chunkFunc())
	} else {
		logger.Debug("running parallel generation", "control", g.control.String(), "workers", g.opts.Workers)
		results = execution.Parallel(ctx, g.control.Chunks(), g.chunkFunc(), g.opts.Workers)
	}

	for _, recs := range results {
		g.Apply(ctx, Merge{Records: recs})
		if g.opts.Metrics != nil {
			g.opts.Metrics.ChunksCompleted.Inc()
		}
	}
	return g.FlushAndClear(ctx)
}

// RunSmart executes the chunk plan under the smart-flush controller,
// bounding peak resident memory independent of total site count at the cost
// of potentially writing several partial output files.
func (g *Gen) RunSmart(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	logger.Info("running parallel generation with smart data flushing",
		"control", g.control.String(), "mem_limit", g.opts.MemLimit)

	controller := &execution.FlushController{
		MemLimit: g.opts.MemLimit,
		Workers:  g.opts.Workers,
		Sample:   g.opts.Sample,
		Metrics:  g.opts.Metrics,
	}
	return controller.Run(ctx, g.control.Chunks(), g.chunkFunc(), &sinkAdapter{ctx: ctx, g: g})
}

func (g *Gen) chunkFunc() execution.RunFunc {
	return func(ctx context.Context, chunk points.Chunk) sim.Records {
		return g.RunChunk(ctx, chunk)
	}
}

// sinkAdapter exposes the Gen result table to the flush controller through
// the tagged update variant.
type sinkAdapter struct {
	ctx context.Context
	g   *Gen
}

func (s *sinkAdapter) Merge(recs sim.Records) { s.g.Apply(s.ctx, Merge{Records: recs}) }
func (s *sinkAdapter) Len() int               { return s.g.Len() }
func (s *sinkAdapter) FlushAndClear(ctx context.Context) error {
	return s.g.FlushAndClear(ctx)
}
