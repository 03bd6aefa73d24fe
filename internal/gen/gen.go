// Package gen orchestrates a generation run: it plans chunks over the
// project points, dispatches them serially, in parallel, or under the
// smart-flush controller, aggregates per-chunk records into the run-wide
// result table, and persists means or profile output.
package gen

import (
	"encoding/json"
	"fmt"

	"github.com/clhughes/reV/internal/config"
	"github.com/clhughes/reV/internal/execution"
	"github.com/clhughes/reV/internal/logs"
	"github.com/clhughes/reV/internal/output"
	"github.com/clhughes/reV/internal/points"
	"github.com/clhughes/reV/internal/resource"
	"github.com/clhughes/reV/internal/sim"
)

// Options is the immutable run configuration handed to New. Every field is
// read-only once the Gen is constructed.
type Options struct {
	Tech       sim.Technology
	PointsSpec string
	SAMConfigs map[string]string
	ResFile    string
	// Profiles requests full time-series output in addition to means.
	Profiles bool
	// Workers: 1 is serial, >1 a fixed pool, <=0 all CPUs.
	Workers int
	// SitesPerChunk: non-positive adopts the resource file's chunking hint,
	// falling back to points.DefaultSitesPerChunk.
	SitesPerChunk int
	// PointsRange restricts the run to the linear site index sub-range
	// [Start, Stop); nil runs the full site set.
	PointsRange *[2]int
	// Fout is the output file name (no directory). Empty disables output.
	Fout   string
	Dirout string
	// MemLimit is the smart-flush utilization threshold fraction.
	MemLimit float64

	// Collaborators. Nil fields get working defaults.
	Logs      *logs.Registry
	Metrics   *execution.Metrics
	Writer    *output.Writer
	Simulator sim.Simulator
	// Sample overrides memory sampling in RunSmart, for tests.
	Sample execution.Sampler
}

// Gen owns one run's result table. The table is mutated only by the single
// collector goroutine that applies updates; workers only return records.
type Gen struct {
	opts      Options
	control   *points.Control
	res       *resource.File
	simulator sim.Simulator
	req       sim.OutputRequest
	writer    *output.Writer
	snapshot  string
	out       map[int]sim.Record
}

// New validates the run configuration, builds the site set and chunk plan,
// and opens the resource file. All configuration errors surface here, before
// any chunk is dispatched.
func New(opts Options) (*Gen, error) {
	pp, err := points.Parse(opts.PointsSpec, opts.SAMConfigs)
	if err != nil {
		return nil, err
	}

	res, err := resource.Open(opts.ResFile)
	if err != nil {
		return nil, err
	}

	sitesPerChunk := opts.SitesPerChunk
	if sitesPerChunk <= 0 {
		sitesPerChunk = res.SitesPerChunk(points.DefaultSitesPerChunk)
	}
	control := points.NewControl(pp, sitesPerChunk)
	if opts.PointsRange != nil {
		if control, err = control.Split(opts.PointsRange[0], opts.PointsRange[1]); err != nil {
			return nil, err
		}
		if pp.Len() > res.Len() {
			return nil, fmt.Errorf("%w: project points declare %d sites but resource file %q holds %d",
				config.ErrConfig, pp.Len(), opts.ResFile, res.Len())
		}
	}

	simulator := opts.Simulator
	if simulator == nil {
		simulator = opts.Tech.Simulator()
	}
	writer := opts.Writer
	if writer == nil {
		writer = output.NewWriter(nil)
	}

	snapshot, err := json.Marshal(map[string]any{
		"tech":            opts.Tech.String(),
		"points":          opts.PointsSpec,
		"sam_configs":     opts.SAMConfigs,
		"res_file":        opts.ResFile,
		"profiles":        opts.Profiles,
		"sites_per_chunk": sitesPerChunk,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding run configuration snapshot: %w", err)
	}

	return &Gen{
		opts:      opts,
		control:   control,
		res:       res,
		simulator: simulator,
		req:       sim.OutputRequest{CFProfile: opts.Profiles},
		writer:    writer,
		snapshot:  string(snapshot),
		out:       make(map[int]sim.Record),
	}, nil
}

// Control exposes the chunk plan.
func (g *Gen) Control() *points.Control { return g.control }

// Resource exposes the opened resource file.
func (g *Gen) Resource() *resource.File { return g.res }

// Out returns the resident result table. Exposed for callers that run
// without a configured output file.
func (g *Gen) Out() map[int]sim.Record { return g.out }

// Len implements execution.Sink.
func (g *Gen) Len() int { return len(g.out) }
