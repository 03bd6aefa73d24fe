package output

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/spf13/afero"
)

// ReadMeans opens a means-mode output file and returns its metadata table
// (cf_mean column included) plus the stored configuration snapshot.
func ReadMeans(fs afero.Fs, path string) ([]SiteRecord, string, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	rows, err := readRows[SiteRecord](fs, path)
	if err != nil {
		return nil, "", err
	}
	cfg, _, err := fileMeta(fs, path)
	if err != nil {
		return nil, "", err
	}
	return rows, cfg, nil
}

// ReadProfiles opens a profile-mode output file, returning the metadata
// table, the stored time index, and the time-major profile matrix.
func ReadProfiles(fs afero.Fs, path string) ([]SiteRecord, []time.Time, [][]float32, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	rows, err := readRows[profileRow](fs, path)
	if err != nil {
		return nil, nil, nil, err
	}
	_, rawTI, err := fileMeta(fs, path)
	if err != nil {
		return nil, nil, nil, err
	}

	var stamps []string
	if rawTI != "" {
		if err := json.Unmarshal([]byte(rawTI), &stamps); err != nil {
			return nil, nil, nil, fmt.Errorf("decoding time index of %q: %w", path, err)
		}
	}
	timeIndex := make([]time.Time, len(stamps))
	for i, s := range stamps {
		if timeIndex[i], err = time.Parse(time.RFC3339, s); err != nil {
			return nil, nil, nil, fmt.Errorf("decoding time index of %q: %w", path, err)
		}
	}

	meta := make([]SiteRecord, len(rows))
	steps := 0
	if len(rows) > 0 {
		steps = len(rows[0].CFProfile)
	}
	profiles := make([][]float32, steps)
	for t := range profiles {
		profiles[t] = make([]float32, len(rows))
	}
	for s, row := range rows {
		meta[s] = row.SiteRecord
		if len(row.CFProfile) != steps {
			return nil, nil, nil, fmt.Errorf("profile rows of %q are ragged: row %d spans %d steps, expected %d",
				path, s, len(row.CFProfile), steps)
		}
		for t, v := range row.CFProfile {
			profiles[t][s] = v
		}
	}
	return meta, timeIndex, profiles, nil
}

func readRows[T any](fs afero.Fs, path string) ([]T, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening output file %q: %w", path, err)
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat output file %q: %w", path, err)
	}
	rows, err := parquet.Read[T](f, st.Size())
	if err != nil {
		return nil, fmt.Errorf("reading output rows from %q: %w", path, err)
	}
	return rows, nil
}

func fileMeta(fs afero.Fs, path string) (cfg, timeIndex string, err error) {
	f, err := fs.Open(path)
	if err != nil {
		return "", "", fmt.Errorf("opening output file %q: %w", path, err)
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return "", "", fmt.Errorf("stat output file %q: %w", path, err)
	}
	pf, err := parquet.OpenFile(f, st.Size())
	if err != nil {
		return "", "", fmt.Errorf("parsing output file %q: %w", path, err)
	}
	cfg, _ = pf.Lookup(ConfigKey)
	timeIndex, _ = pf.Lookup(TimeIndexKey)
	return cfg, timeIndex, nil
}
