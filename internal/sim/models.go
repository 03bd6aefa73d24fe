package sim

import (
	"context"
	"fmt"
	"math"

	"github.com/clhughes/reV/internal/points"
	"github.com/clhughes/reV/internal/resource"
)

// The reference models below are deterministic stand-ins for the external
// SAM engine. They derive a site's capacity factor from its resource file
// metadata and shape the time-series against the run's time index, which is
// enough to exercise the full pipeline end to end.

type pvModel struct{}

func (pvModel) Simulate(ctx context.Context, sites []points.Point, res *resource.File, req OutputRequest) (Records, error) {
	return solarSimulate(ctx, sites, res, req, 0.24)
}

type cspModel struct{}

func (cspModel) Simulate(ctx context.Context, sites []points.Point, res *resource.File, req OutputRequest) (Records, error) {
	return solarSimulate(ctx, sites, res, req, 0.38)
}

func solarSimulate(ctx context.Context, sites []points.Point, res *resource.File, req OutputRequest, scale float64) (Records, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make(Records, len(sites))
	ti := res.TimeIndex()
	for _, site := range sites {
		meta, err := res.Meta([]int{site.Gid})
		if err != nil {
			return nil, fmt.Errorf("solar simulation: %w", err)
		}
		m := meta[0]
		// Normalize the annual mean irradiance against a nominal 1000 W/m2
		// plant rating and derate with latitude.
		cf := scale * (m.MeanResource / 1000) * math.Cos(m.Latitude*math.Pi/180)
		cf = clamp(cf, 0, 1)
		rec := Record{CFMean: cf}
		if req.CFProfile {
			rec.CFProfile = make([]float32, len(ti))
			for i, t := range ti {
				h := float64((t.Hour() + int(m.Timezone) + 24) % 24)
				// Daylight bell between 06:00 and 18:00 local.
				sun := math.Sin((h - 6) / 12 * math.Pi)
				if sun < 0 {
					sun = 0
				}
				rec.CFProfile[i] = float32(clamp(2*cf*sun, 0, 1))
			}
		}
		out[site.Gid] = rec
	}
	return out, nil
}

type windModel struct {
	// hubScale lifts the resource for taller offshore hub heights.
	hubScale float64
}

func (w windModel) Simulate(ctx context.Context, sites []points.Point, res *resource.File, req OutputRequest) (Records, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make(Records, len(sites))
	ti := res.TimeIndex()
	for _, site := range sites {
		meta, err := res.Meta([]int{site.Gid})
		if err != nil {
			return nil, fmt.Errorf("wind simulation: %w", err)
		}
		m := meta[0]
		// Rayleigh-ish capacity factor from mean wind speed against a
		// nominal 12 m/s rated turbine.
		v := w.hubScale * m.MeanResource
		cf := clamp(math.Pow(v/12, 3), 0, 0.6)
		rec := Record{CFMean: cf}
		if req.CFProfile {
			rec.CFProfile = make([]float32, len(ti))
			for i, t := range ti {
				// Mild diurnal swing around the mean.
				h := float64(t.Hour())
				swing := 0.15 * math.Sin((h-3)/24*2*math.Pi)
				rec.CFProfile[i] = float32(clamp(cf*(1+swing), 0, 1))
			}
		}
		out[site.Gid] = rec
	}
	return out, nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
