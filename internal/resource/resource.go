// Package resource reads the per-site resource files that drive a
// generation run. A resource file is a parquet table of site metadata rows
// with the run's time index stored as file key/value metadata; the parquet
// row-group size doubles as the file's native chunking hint, which the chunk
// planner adopts as its default sites-per-chunk.
package resource

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/clhughes/reV/internal/config"
)

// TimeIndexKey is the parquet key/value metadata key holding the JSON-encoded
// RFC3339 time index.
const TimeIndexKey = "rev:time_index"

// SiteMeta is one site's metadata row.
type SiteMeta struct {
	Gid          int64   `parquet:"gid"`
	Latitude     float64 `parquet:"latitude"`
	Longitude    float64 `parquet:"longitude"`
	Timezone     int32   `parquet:"timezone"`
	Elevation    float64 `parquet:"elevation"`
	MeanResource float64 `parquet:"mean_resource"`
}

// File is an opened resource file. Read-only.
type File struct {
	path          string
	meta          map[int64]SiteMeta
	timeIndex     []time.Time
	sitesPerChunk int
}

// Open reads a resource file fully into memory. Time steps falling on a leap
// day (month 2, day 29) are dropped from the effective time index before it
// is exposed to callers.
func Open(path string) (*File, error) {
	// A missing or unreadable resource file is part of the fail-fast
	// configuration class: it is always caught before any chunk dispatches.
	osf, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening resource file: %v", config.ErrConfig, err)
	}
	defer osf.Close()

	st, err := osf.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: stat resource file: %v", config.ErrConfig, err)
	}
	pf, err := parquet.OpenFile(osf, st.Size())
	if err != nil {
		return nil, fmt.Errorf("%w: parsing resource file %q: %v", config.ErrConfig, path, err)
	}

	f := &File{path: path, meta: make(map[int64]SiteMeta)}

	if groups := pf.RowGroups(); len(groups) > 0 {
		f.sitesPerChunk = int(groups[0].NumRows())
	}

	rows, err := parquet.Read[SiteMeta](osf, st.Size())
	if err != nil {
		return nil, fmt.Errorf("reading site meta from %q: %w", path, err)
	}
	for _, m := range rows {
		f.meta[m.Gid] = m
	}

	if raw, ok := pf.Lookup(TimeIndexKey); ok {
		var stamps []string
		if err := json.Unmarshal([]byte(raw), &stamps); err != nil {
			return nil, fmt.Errorf("decoding time index of %q: %w", path, err)
		}
		for _, s := range stamps {
			t, err := time.Parse(time.RFC3339, s)
			if err != nil {
				return nil, fmt.Errorf("decoding time index of %q: %w", path, err)
			}
			if t.Month() == time.February && t.Day() == 29 {
				continue
			}
			f.timeIndex = append(f.timeIndex, t)
		}
	}

	return f, nil
}

// Path returns the file path this handle was opened from.
func (f *File) Path() string { return f.path }

// TimeIndex returns the effective (leap-day-free) time index.
func (f *File) TimeIndex() []time.Time { return f.timeIndex }

// Len is the number of sites in the file.
func (f *File) Len() int { return len(f.meta) }

// Meta looks up the metadata rows for the given gids, in the given order.
func (f *File) Meta(gids []int) ([]SiteMeta, error) {
	out := make([]SiteMeta, 0, len(gids))
	for _, gid := range gids {
		m, ok := f.meta[int64(gid)]
		if !ok {
			return nil, fmt.Errorf("site gid %d not present in resource file %q", gid, f.path)
		}
		out = append(out, m)
	}
	return out, nil
}

// SitesPerChunk reports the file's native chunking granularity, falling back
// to def when the file carries no usable hint.
func (f *File) SitesPerChunk(def int) int {
	if f.sitesPerChunk <= 0 {
		return def
	}
	return f.sitesPerChunk
}

// Write serializes a resource file: one metadata row per site, the time
// index as key/value metadata, and row groups of rowGroupSize sites. Used by
// fixtures and the resource tooling; the read side is Open.
func Write(path string, meta []SiteMeta, timeIndex []time.Time, rowGroupSize int) error {
	stamps := make([]string, len(timeIndex))
	for i, t := range timeIndex {
		stamps[i] = t.Format(time.RFC3339)
	}
	raw, err := json.Marshal(stamps)
	if err != nil {
		return fmt.Errorf("encoding time index: %w", err)
	}

	opts := []parquet.WriterOption{
		parquet.KeyValueMetadata(TimeIndexKey, string(raw)),
	}
	if rowGroupSize > 0 {
		opts = append(opts, parquet.MaxRowsPerRowGroup(int64(rowGroupSize)))
	}

	osf, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating resource file: %w", err)
	}
	step := rowGroupSize
	if step <= 0 {
		step = max(len(meta), 1)
	}
	w := parquet.NewGenericWriter[SiteMeta](osf, opts...)
	for lo := 0; lo < len(meta); lo += step {
		hi := min(lo+step, len(meta))
		if _, err := w.Write(meta[lo:hi]); err != nil {
			osf.Close()
			return fmt.Errorf("writing resource rows: %w", err)
		}
		if err := w.Flush(); err != nil {
			osf.Close()
			return fmt.Errorf("flushing resource row group: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		osf.Close()
		return fmt.Errorf("closing resource writer: %w", err)
	}
	return osf.Close()
}
