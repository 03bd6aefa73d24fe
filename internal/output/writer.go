// Package output persists generation results. A write is either a "means"
// write (one scalar per site) or a "profile" write (one time series per
// site); never both. Files are parquet tables carrying the site metadata
// columns, the output data, and the run configuration snapshot in key/value
// metadata. Requested paths are corrected and de-collided, never silently
// overwritten.
package output

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/spf13/afero"

	"github.com/clhughes/reV/internal/ctxlog"
)

// Ext is the one extension the output container accepts.
const Ext = ".parquet"

// Parquet key/value metadata keys.
const (
	ConfigKey    = "rev:config"
	ModeKey      = "rev:mode"
	TimeIndexKey = "rev:time_index"
)

// Mode selects append-vs-overwrite behavior for a write.
type Mode int

const (
	// Overwrite writes a fresh file, disambiguating colliding paths.
	Overwrite Mode = iota
	// Append folds new rows into an existing file at the exact given path.
	Append
)

// SiteRecord is one row of the derived metadata table.
type SiteRecord struct {
	Gid       int64   `parquet:"gid"`
	Latitude  float64 `parquet:"latitude"`
	Longitude float64 `parquet:"longitude"`
	Timezone  int32   `parquet:"timezone"`
	Elevation float64 `parquet:"elevation"`
	Tech      string  `parquet:"rev_tech"`
	CFMean    float64 `parquet:"cf_mean"`
}

type profileRow struct {
	SiteRecord
	CFProfile []float32 `parquet:"cf_profile"`
}

// Writer serializes result views to a filesystem. The filesystem is
// abstracted so collision and naming behavior is testable in memory.
type Writer struct {
	fs afero.Fs
}

// NewWriter builds a writer over the given filesystem; nil means the OS
// filesystem.
func NewWriter(fs afero.Fs) *Writer {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Writer{fs: fs}
}

// Fs exposes the writer's filesystem, mainly so tests and the read side
// share it.
func (w *Writer) Fs() afero.Fs { return w.fs }

// WriteMeans persists the means view: the metadata table whose cf_mean
// column is the scalar output. Returns the path actually written.
func (w *Writer) WriteMeans(ctx context.Context, path string, meta []SiteRecord, cfg string, mode Mode) (string, error) {
	path, err := w.preparePath(ctx, path, mode)
	if err != nil {
		return "", err
	}
	if mode == Append {
		old, err := readRows[SiteRecord](w.fs, path)
		if err != nil {
			return "", err
		}
		meta = append(old, meta...)
	}
	opts := []parquet.WriterOption{
		parquet.KeyValueMetadata(ModeKey, "means"),
		parquet.KeyValueMetadata(ConfigKey, cfg),
	}
	if err := writeRows(w.fs, path, meta, opts); err != nil {
		return "", err
	}
	return path, nil
}

// WriteProfiles persists the profile view. profiles is time-major: one row
// per time step, one column per site, column order matching meta.
func (w *Writer) WriteProfiles(ctx context.Context, path string, meta []SiteRecord, timeIndex []time.Time, profiles [][]float32, cfg string, mode Mode) (string, error) {
	if len(profiles) > 0 && len(profiles[0]) != len(meta) {
		return "", fmt.Errorf("profile matrix has %d site columns for %d meta rows", len(profiles[0]), len(meta))
	}
	path, err := w.preparePath(ctx, path, mode)
	if err != nil {
		return "", err
	}

	rows := make([]profileRow, len(meta))
	for s, m := range meta {
		series := make([]float32, len(profiles))
		for t := range profiles {
			series[t] = profiles[t][s]
		}
		rows[s] = profileRow{SiteRecord: m, CFProfile: series}
	}
	if mode == Append {
		old, err := readRows[profileRow](w.fs, path)
		if err != nil {
			return "", err
		}
		rows = append(old, rows...)
	}

	stamps := make([]string, len(timeIndex))
	for i, t := range timeIndex {
		stamps[i] = t.Format(time.RFC3339)
	}
	rawTI, err := json.Marshal(stamps)
	if err != nil {
		return "", fmt.Errorf("encoding time index: %w", err)
	}
	opts := []parquet.WriterOption{
		parquet.KeyValueMetadata(ModeKey, "profile"),
		parquet.KeyValueMetadata(ConfigKey, cfg),
		parquet.KeyValueMetadata(TimeIndexKey, string(rawTI)),
	}
	if err := writeRows(w.fs, path, rows, opts); err != nil {
		return "", err
	}
	return path, nil
}

// preparePath corrects the extension and, for overwrite mode, resolves
// collisions with a unique numeric suffix.
func (w *Writer) preparePath(ctx context.Context, path string, mode Mode) (string, error) {
	path = w.ensureExt(ctx, path)
	if dir := filepath.Dir(path); dir != "." {
		if err := w.fs.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("creating output directory: %w", err)
		}
	}
	if mode == Append {
		return path, nil
	}
	return w.uniquePath(path)
}

// ensureExt corrects a missing or wrong extension with a warning rather
// than failing the run.
func (w *Writer) ensureExt(ctx context.Context, path string) string {
	if strings.HasSuffix(path, Ext) {
		return path
	}
	fixed := strings.TrimSuffix(path, filepath.Ext(path)) + Ext
	ctxlog.FromContext(ctx).Warn("output file request corrected to the supported container extension",
		"requested", path, "using", fixed)
	return fixed
}

// uniquePath resolves an existing target by appending an incrementing _x000
// tag before the extension. An explicit bounded loop keeps the termination
// condition auditable.
func (w *Writer) uniquePath(path string) (string, error) {
	exists, err := afero.Exists(w.fs, path)
	if err != nil {
		return "", err
	}
	if !exists {
		return path, nil
	}
	base := strings.TrimSuffix(path, Ext)
	for tag := 0; tag < 10000; tag++ {
		candidate := fmt.Sprintf("%s_x%03d%s", base, tag, Ext)
		exists, err := afero.Exists(w.fs, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no unique output name available for %q after 10000 attempts", path)
}

func writeRows[T any](fs afero.Fs, path string, rows []T, opts []parquet.WriterOption) error {
	f, err := fs.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file %q: %w", path, err)
	}
	pw := parquet.NewGenericWriter[T](f, opts...)
	if _, err := pw.Write(rows); err != nil {
		f.Close()
		return fmt.Errorf("writing output rows to %q: %w", path, err)
	}
	if err := pw.Close(); err != nil {
		f.Close()
		return fmt.Errorf("closing output file %q: %w", path, err)
	}
	return f.Close()
}
