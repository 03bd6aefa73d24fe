package points

import (
	"fmt"
	"iter"

	"github.com/clhughes/reV/internal/config"
)

// Chunk is one bounded unit of work: a contiguous slice of the site set,
// dispatched exactly once to a worker.
type Chunk struct {
	// Index is the chunk's ordinal within its Control, used for log identity.
	Index int
	// Start and Stop are the chunk's linear index range within the full
	// ProjectPoints, half-open.
	Start, Stop int
	// Sites are the member points in original order.
	Sites []Point
}

func (c Chunk) String() string {
	return fmt.Sprintf("chunk %d [%d:%d) (%d sites)", c.Index, c.Start, c.Stop, len(c.Sites))
}

// Control plans the split of a ProjectPoints range into chunks. The zero
// value is not usable; construct with NewControl or Control.Split.
type Control struct {
	pp            *ProjectPoints
	sitesPerChunk int
	start, stop   int
}

// NewControl plans chunks of sitesPerChunk sites over the whole site set.
// A non-positive sitesPerChunk falls back to DefaultSitesPerChunk.
func NewControl(pp *ProjectPoints, sitesPerChunk int) *Control {
	if sitesPerChunk <= 0 {
		sitesPerChunk = DefaultSitesPerChunk
	}
	return &Control{pp: pp, sitesPerChunk: sitesPerChunk, start: 0, stop: pp.Len()}
}

// Split returns a Control covering only the linear index sub-range
// [start, stop), re-chunked independently. This is how one cluster node is
// handed its share of the run without materializing a per-node site set.
func (c *Control) Split(start, stop int) (*Control, error) {
	if start < 0 || stop > c.pp.Len() || start > stop {
		return nil, fmt.Errorf("%w: points range [%d:%d) outside site set of %d sites",
			config.ErrConfig, start, stop, c.pp.Len())
	}
	return &Control{pp: c.pp, sitesPerChunk: c.sitesPerChunk, start: start, stop: stop}, nil
}

// Range reports the linear index range this control covers.
func (c *Control) Range() (start, stop int) { return c.start, c.stop }

// Len is the number of sites in this control's range.
func (c *Control) Len() int { return c.stop - c.start }

// SitesPerChunk is the planned chunk size.
func (c *Control) SitesPerChunk() int { return c.sitesPerChunk }

// Project returns the underlying site set.
func (c *Control) Project() *ProjectPoints { return c.pp }

// Chunks lazily yields the ordered chunks partitioning this control's range.
// Every site in [start, stop) appears in exactly one chunk.
func (c *Control) Chunks() iter.Seq[Chunk] {
	return func(yield func(Chunk) bool) {
		index := 0
		for lo := c.start; lo < c.stop; lo += c.sitesPerChunk {
			hi := min(lo+c.sitesPerChunk, c.stop)
			sites := make([]Point, hi-lo)
			for i := range sites {
				sites[i] = c.pp.At(lo + i)
			}
			if !yield(Chunk{Index: index, Start: lo, Stop: hi, Sites: sites}) {
				return
			}
			index++
		}
	}
}

func (c *Control) String() string {
	return fmt.Sprintf("points control [%d:%d) @ %d sites/chunk", c.start, c.stop, c.sitesPerChunk)
}
