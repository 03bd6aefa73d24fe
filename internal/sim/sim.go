// Package sim defines the simulation-engine contract the generation
// pipeline runs against: a closed set of technologies, each implementing the
// Simulator capability interface. The pipeline treats Simulate as a black
// box that either returns a record per requested site or fails as a whole.
package sim

import (
	"context"
	"fmt"

	"github.com/clhughes/reV/internal/config"
	"github.com/clhughes/reV/internal/points"
	"github.com/clhughes/reV/internal/resource"
)

// Technology enumerates the supported generation technologies.
type Technology int

const (
	PV Technology = iota
	CSP
	LandBasedWind
	OffshoreWind
)

// ParseTechnology maps a config string onto a Technology. Unrecognized names
// are configuration errors, caught before any chunk is dispatched.
func ParseTechnology(s string) (Technology, error) {
	switch s {
	case "pv":
		return PV, nil
	case "csp":
		return CSP, nil
	case "landbasedwind":
		return LandBasedWind, nil
	case "offshorewind":
		return OffshoreWind, nil
	}
	return 0, fmt.Errorf("%w: unrecognized technology %q", config.ErrConfig, s)
}

func (t Technology) String() string {
	switch t {
	case PV:
		return "pv"
	case CSP:
		return "csp"
	case LandBasedWind:
		return "landbasedwind"
	case OffshoreWind:
		return "offshorewind"
	}
	return fmt.Sprintf("technology(%d)", int(t))
}

// Simulator returns the engine implementation for the technology.
func (t Technology) Simulator() Simulator {
	switch t {
	case PV:
		return pvModel{}
	case CSP:
		return cspModel{}
	case LandBasedWind:
		return windModel{hubScale: 1.0}
	case OffshoreWind:
		return windModel{hubScale: 1.18}
	}
	panic("sim: unknown technology " + t.String())
}

// OutputRequest selects which outputs a run produces. Capacity factor means
// are always computed; profiles are opt-in because of their memory cost.
type OutputRequest struct {
	CFProfile bool
}

// Record is one site's simulation output.
type Record struct {
	CFMean    float64
	CFProfile []float32
}

// Records maps site gid to its output record. One Records value is produced
// per chunk and merged into the run-wide result table by the aggregator.
type Records map[int]Record

// Simulator is the per-technology engine capability. Implementations must
// return a record for every requested site or an error for the whole call;
// partial results are not part of the contract.
type Simulator interface {
	Simulate(ctx context.Context, sites []points.Point, res *resource.File, req OutputRequest) (Records, error)
}
