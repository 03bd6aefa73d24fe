package app

import (
	"context"
	"fmt"
	"time"

	"github.com/clhughes/reV/internal/ctxlog"
	"github.com/clhughes/reV/internal/fanout"
	"github.com/clhughes/reV/internal/gen"
	"github.com/clhughes/reV/internal/output"
	"github.com/clhughes/reV/internal/points"
	"github.com/clhughes/reV/internal/sched"
	"github.com/clhughes/reV/internal/sim"
)

// Run executes the configured generation job: once per requested year for
// config-file runs, once for a direct flag run.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)

	if a.cfg.StatusPort > 0 {
		a.startStatusServer(ctx)
	}

	// Unrecognized technologies fail here, before any chunk or node job is
	// dispatched.
	tech, err := sim.ParseTechnology(a.cfg.Tech)
	if err != nil {
		return err
	}

	if len(a.cfg.Years) == 0 {
		return a.runOne(ctx, tech, a.cfg.Name, a.cfg.ResFile, a.cfg.Fout)
	}
	for i, year := range a.cfg.Years {
		name := fmt.Sprintf("%s_%02d", a.cfg.Name, year%100)
		fout := a.cfg.Fout
		if fout == "" {
			fout = fmt.Sprintf("%s_%d%s", a.cfg.Name, year, output.Ext)
		}
		if err := a.runOne(ctx, tech, name, a.cfg.ResFiles[i], fout); err != nil {
			return fmt.Errorf("year %d: %w", year, err)
		}
	}
	return nil
}

func (a *App) runOne(ctx context.Context, tech sim.Technology, name, resFile, fout string) error {
	switch a.cfg.Exec {
	case "local":
		return a.runLocal(ctx, tech, resFile, fout)
	case "peregrine":
		return a.submitNodes(ctx, sched.NewPBS(), tech, name, resFile, fout)
	case "eagle":
		return a.submitNodes(ctx, sched.NewSlurm(), tech, name, resFile, fout)
	}
	return fmt.Errorf("execution option not recognized: %q", a.cfg.Exec)
}

// runLocal executes the generation pipeline in this process. A worker count
// of one runs the deterministic serial path; anything else runs under the
// smart-flush controller.
func (a *App) runLocal(ctx context.Context, tech sim.Technology, resFile, fout string) error {
	logger := ctxlog.FromContext(ctx)

	opts := gen.Options{
		Tech:          tech,
		PointsSpec:    a.cfg.Points,
		SAMConfigs:    a.cfg.SAMConfigs,
		ResFile:       resFile,
		Profiles:      a.cfg.Profiles,
		Workers:       a.cfg.Workers,
		SitesPerChunk: a.cfg.SitesPerChunk,
		Fout:          fout,
		Dirout:        a.cfg.Dirout,
		MemLimit:      a.cfg.MemLimit,
		Logs:          a.registry,
		Metrics:       a.metrics,
	}
	if a.cfg.PointsRange != "" {
		start, stop, err := points.ParseRange(a.cfg.PointsRange)
		if err != nil {
			return err
		}
		opts.PointsRange = &[2]int{start, stop}
	}

	g, err := gen.New(opts)
	if err != nil {
		return err
	}

	t0 := time.Now()
	logger.Info("starting local generation",
		"tech", tech.String(), "points", a.cfg.Points, "res_file", resFile,
		"control", g.Control().String(), "workers", a.cfg.Workers)

	if a.cfg.Workers == 1 {
		err = g.RunDirect(ctx)
	} else {
		err = g.RunSmart(ctx)
	}
	if err != nil {
		return err
	}

	logger.Info("generation complete",
		"elapsed", time.Since(t0).Round(time.Second).String(), "dirout", a.cfg.Dirout)
	return nil
}

// submitNodes fans the run out across cluster nodes via the scheduler
// adapter. Per-node submission failures are independent; the run errors
// only when no node at all was accepted.
func (a *App) submitNodes(ctx context.Context, client sched.Client, tech sim.Technology, name, resFile, fout string) error {
	logger := ctxlog.FromContext(ctx)

	pp, err := points.Parse(a.cfg.Points, a.cfg.SAMConfigs)
	if err != nil {
		return err
	}
	if fout == "" {
		fout = name + output.Ext
	}

	spec := fanout.RunSpec{
		Name:          name,
		Tech:          tech,
		PointsSpec:    a.cfg.Points,
		SAMConfigs:    a.cfg.SAMConfigs,
		ResFile:       resFile,
		SitesPerChunk: a.cfg.SitesPerChunk,
		Fout:          fout,
		Dirout:        a.cfg.Dirout,
		Logdir:        a.cfg.Logdir,
		Profiles:      a.cfg.Profiles,
		Verbose:       a.cfg.LogLevel == "debug",
		MemLimit:      a.cfg.MemLimit,
	}
	template := sched.Request{
		Alloc:         a.cfg.Alloc,
		Queue:         a.cfg.Queue,
		WalltimeHours: a.cfg.WalltimeHours,
		MemoryGB:      a.cfg.MemoryGB,
		Feature:       a.cfg.Feature,
		StdoutPath:    a.cfg.StdoutPath,
	}

	subs := fanout.Submit(ctx, client, spec, pp.Len(), a.cfg.Nodes, template)
	failed := 0
	for _, sub := range subs {
		if sub.Err != nil {
			failed++
			fmt.Fprintf(a.outW, "unable to kick off generation job %q: %v\n", sub.Name, sub.Err)
		} else {
			fmt.Fprintf(a.outW, "kicked off generation job %q (%s) on %s\n", sub.Name, sub.JobID, client.Family())
		}
	}
	logger.Info("node fan-out complete", "nodes", len(subs), "failed", failed)
	if failed == len(subs) && len(subs) > 0 {
		return fmt.Errorf("all %d node submissions failed", failed)
	}
	return nil
}
