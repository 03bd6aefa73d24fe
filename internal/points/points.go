// Package points models the set of project sites to simulate and plans its
// split into bounded chunks of work.
//
// A ProjectPoints is the immutable site set: ordered unique site gids, each
// bound to the key of a SAM configuration. A Control walks a ProjectPoints
// (or a contiguous sub-range of it, when the run is one node's share of a
// fanned-out job) and lazily yields chunks that partition the range exactly.
package points

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/clhughes/reV/internal/config"
)

// DefaultSitesPerChunk is the fallback chunk size when neither the caller
// nor the resource file provides one.
const DefaultSitesPerChunk = 100

// Point is one site bound to a SAM configuration key.
type Point struct {
	Gid    int
	Config string
}

// ProjectPoints is the full ordered site set for a run. Immutable once
// constructed.
type ProjectPoints struct {
	points []Point
}

// Parse builds a ProjectPoints from a declarative site specification:
//
//   - "start:stop"   the half-open gid range [start, stop)
//   - "1,5,9"        an explicit gid list
//   - "sites.csv"    a tabular file with gid,config columns
//
// configs is the table of known SAM configuration keys. Range and list specs
// require exactly one config, which every site is bound to; CSV rows may name
// their config per site. Unrecognized spec forms and unresolvable config keys
// are configuration errors.
func Parse(spec string, configs map[string]string) (*ProjectPoints, error) {
	switch {
	case strings.HasSuffix(spec, ".csv"):
		f, err := os.Open(spec)
		if err != nil {
			return nil, fmt.Errorf("%w: opening project points file: %v", config.ErrConfig, err)
		}
		defer f.Close()
		return fromCSV(f, configs)
	case strings.Contains(spec, ":"):
		start, stop, err := ParseRange(spec)
		if err != nil {
			return nil, err
		}
		key, err := soleConfig(configs)
		if err != nil {
			return nil, err
		}
		pts := make([]Point, 0, stop-start)
		for gid := start; gid < stop; gid++ {
			pts = append(pts, Point{Gid: gid, Config: key})
		}
		return New(pts)
	case spec != "":
		key, err := soleConfig(configs)
		if err != nil {
			return nil, err
		}
		var pts []Point
		for _, field := range strings.Split(spec, ",") {
			gid, err := strconv.Atoi(strings.TrimSpace(field))
			if err != nil {
				return nil, fmt.Errorf("%w: project points spec %q is not a range, list, or csv file", config.ErrConfig, spec)
			}
			pts = append(pts, Point{Gid: gid, Config: key})
		}
		return New(pts)
	}
	return nil, fmt.Errorf("%w: empty project points spec", config.ErrConfig)
}

// New builds a ProjectPoints from explicit points, enforcing gid uniqueness.
func New(pts []Point) (*ProjectPoints, error) {
	seen := make(map[int]struct{}, len(pts))
	for _, p := range pts {
		if _, dup := seen[p.Gid]; dup {
			return nil, fmt.Errorf("%w: duplicate site gid %d in project points", config.ErrConfig, p.Gid)
		}
		seen[p.Gid] = struct{}{}
	}
	cp := make([]Point, len(pts))
	copy(cp, pts)
	return &ProjectPoints{points: cp}, nil
}

func fromCSV(r io.Reader, configs map[string]string) (*ProjectPoints, error) {
	rows, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: reading project points csv: %v", config.ErrConfig, err)
	}
	var pts []Point
	for i, row := range rows {
		if len(row) < 1 {
			continue
		}
		gid, err := strconv.Atoi(strings.TrimSpace(row[0]))
		if err != nil {
			if i == 0 {
				// header row
				continue
			}
			return nil, fmt.Errorf("%w: project points row %d: bad gid %q", config.ErrConfig, i, row[0])
		}
		key := ""
		if len(row) > 1 {
			key = strings.TrimSpace(row[1])
		}
		if key == "" {
			if key, err = soleConfig(configs); err != nil {
				return nil, fmt.Errorf("%w: project points row %d names no SAM config and none is unambiguous", config.ErrConfig, i)
			}
		} else if _, ok := configs[key]; !ok {
			return nil, fmt.Errorf("%w: project points row %d references unknown SAM config %q", config.ErrConfig, i, key)
		}
		pts = append(pts, Point{Gid: gid, Config: key})
	}
	return New(pts)
}

// ParseRange decodes a "start:stop" half-open index range.
func ParseRange(spec string) (int, int, error) {
	parts := strings.SplitN(spec, ":", 2)
	start, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	stop, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err1 != nil || err2 != nil || stop < start || start < 0 {
		return 0, 0, fmt.Errorf("%w: bad project points range %q", config.ErrConfig, spec)
	}
	return start, stop, nil
}

func soleConfig(configs map[string]string) (string, error) {
	if len(configs) != 1 {
		return "", fmt.Errorf("%w: range/list project points require exactly one SAM config, got %d", config.ErrConfig, len(configs))
	}
	for key := range configs {
		return key, nil
	}
	panic("unreachable")
}

// Len is the number of sites.
func (pp *ProjectPoints) Len() int { return len(pp.points) }

// Gids returns the site gids in order.
func (pp *ProjectPoints) Gids() []int {
	gids := make([]int, len(pp.points))
	for i, p := range pp.points {
		gids[i] = p.Gid
	}
	return gids
}

// At returns the point at linear index i.
func (pp *ProjectPoints) At(i int) Point { return pp.points[i] }

// Configs returns the sorted set of SAM config keys referenced by the set.
func (pp *ProjectPoints) Configs() []string {
	set := map[string]struct{}{}
	for _, p := range pp.points {
		set[p.Config] = struct{}{}
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
