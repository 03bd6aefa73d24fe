package gen

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/clhughes/reV/internal/ctxlog"
	"github.com/clhughes/reV/internal/output"
)

// sortedGids returns the finished site gids in ascending numeric order. Both
// derived views emit sites in this order regardless of chunk completion
// order.
func (g *Gen) sortedGids() []int {
	gids := make([]int, 0, len(g.out))
	for gid := range g.out {
		gids = append(gids, gid)
	}
	sort.Ints(gids)
	return gids
}

// Means derives the scalar view: one capacity factor mean per finished
// site, sorted by gid.
func (g *Gen) Means() (gids []int, means []float64) {
	gids = g.sortedGids()
	means = make([]float64, len(gids))
	for i, gid := range gids {
		means[i] = g.out[gid].CFMean
	}
	return gids, means
}

// Profiles derives the time-series view: a time-major sites-by-time matrix,
// site columns sorted by gid. Errors if any finished site's profile does
// not span the resource time index.
func (g *Gen) Profiles() (gids []int, profiles [][]float32, err error) {
	gids = g.sortedGids()
	steps := len(g.res.TimeIndex())
	profiles = make([][]float32, steps)
	for t := range profiles {
		profiles[t] = make([]float32, len(gids))
	}
	for s, gid := range gids {
		series := g.out[gid].CFProfile
		if len(series) != steps {
			return nil, nil, fmt.Errorf("site %d profile spans %d steps, time index has %d", gid, len(series), steps)
		}
		for t := range series {
			profiles[t][s] = series[t]
		}
	}
	return gids, profiles, nil
}

// meta derives the output metadata table for the given gids: resource site
// metadata plus the technology name and the cf_mean column.
func (g *Gen) meta(gids []int) ([]output.SiteRecord, error) {
	rows, err := g.res.Meta(gids)
	if err != nil {
		return nil, err
	}
	out := make([]output.SiteRecord, len(rows))
	for i, m := range rows {
		out[i] = output.SiteRecord{
			Gid:       m.Gid,
			Latitude:  m.Latitude,
			Longitude: m.Longitude,
			Timezone:  m.Timezone,
			Elevation: m.Elevation,
			Tech:      g.opts.Tech.String(),
			CFMean:    g.out[gids[i]].CFMean,
		}
	}
	return out, nil
}

// FlushAndClear writes the resident result table to disk and releases it.
// A run without a configured output file keeps its table resident for the
// caller; an empty table is never written.
func (g *Gen) FlushAndClear(ctx context.Context) error {
	if g.opts.Fout == "" || len(g.out) == 0 {
		return nil
	}
	logger := ctxlog.FromContext(ctx)
	target := g.opts.Fout
	if g.opts.Dirout != "" {
		target = filepath.Join(g.opts.Dirout, g.opts.Fout)
	}

	var (
		written string
		err     error
	)
	if g.opts.Profiles {
		gids, profiles, perr := g.Profiles()
		if perr != nil {
			return perr
		}
		meta, merr := g.meta(gids)
		if merr != nil {
			return merr
		}
		written, err = g.writer.WriteProfiles(ctx, target, meta, g.res.TimeIndex(), profiles, g.snapshot, output.Overwrite)
	} else {
		gids, _ := g.Means()
		meta, merr := g.meta(gids)
		if merr != nil {
			return merr
		}
		written, err = g.writer.WriteMeans(ctx, target, meta, g.snapshot, output.Overwrite)
	}
	if err != nil {
		return err
	}

	logger.Info("flushed generation output", "file", written, "sites", len(g.out))
	g.Apply(ctx, Clear{})
	return nil
}
