package resource

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clhughes/reV/internal/config"
)

func testMeta(n int) []SiteMeta {
	meta := make([]SiteMeta, n)
	for i := range meta {
		meta[i] = SiteMeta{
			Gid:          int64(i),
			Latitude:     35.0 + float64(i)*0.1,
			Longitude:    -105.0 - float64(i)*0.1,
			Timezone:     -7,
			Elevation:    1600,
			MeanResource: 450 + float64(i),
		}
	}
	return meta
}

func hourlyIndex(from time.Time, hours int) []time.Time {
	out := make([]time.Time, hours)
	for i := range out {
		out[i] = from.Add(time.Duration(i) * time.Hour)
	}
	return out
}

func TestOpen_RoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nsrdb_2013.parquet")
	meta := testMeta(25)
	ti := hourlyIndex(time.Date(2013, 6, 1, 0, 0, 0, 0, time.UTC), 48)
	require.NoError(t, Write(path, meta, ti, 10))

	f, err := Open(path)
	require.NoError(t, err)

	assert.Equal(t, path, f.Path())
	assert.Equal(t, 25, f.Len())
	assert.Equal(t, ti, f.TimeIndex())

	rows, err := f.Meta([]int{24, 0, 7})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, int64(24), rows[0].Gid)
	assert.Equal(t, int64(0), rows[1].Gid)
	assert.InDelta(t, 457.0, rows[2].MeanResource, 1e-9)
}

func TestOpen_DropsLeapDay(t *testing.T) {
	t.Parallel()

	// 2012 is a leap year; an hourly index across Feb 28 to Mar 1 carries 24
	// Feb 29 steps that must not survive into the effective time index.
	path := filepath.Join(t.TempDir(), "nsrdb_2012.parquet")
	ti := hourlyIndex(time.Date(2012, 2, 28, 0, 0, 0, 0, time.UTC), 72)
	require.NoError(t, Write(path, testMeta(3), ti, 0))

	f, err := Open(path)
	require.NoError(t, err)

	require.Len(t, f.TimeIndex(), 48)
	for _, ts := range f.TimeIndex() {
		assert.False(t, ts.Month() == time.February && ts.Day() == 29,
			"leap day timestamp %s survived", ts)
	}
	assert.Equal(t, time.Date(2012, 2, 28, 23, 0, 0, 0, time.UTC), f.TimeIndex()[23])
	assert.Equal(t, time.Date(2012, 3, 1, 0, 0, 0, 0, time.UTC), f.TimeIndex()[24])
}

func TestSitesPerChunk_Hint(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "res.parquet")
	require.NoError(t, Write(path, testMeta(50), nil, 20))

	f, err := Open(path)
	require.NoError(t, err)

	// The first row group's size is the file's native chunking granularity.
	assert.Equal(t, 20, f.SitesPerChunk(100))
}

func TestMeta_UnknownGid(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "res.parquet")
	require.NoError(t, Write(path, testMeta(5), nil, 0))

	f, err := Open(path)
	require.NoError(t, err)

	_, err = f.Meta([]int{99})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gid 99")
}

func TestOpen_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := Open(filepath.Join(t.TempDir(), "absent.parquet"))
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrConfig)
}

func TestOpen_CorruptFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "garbage.parquet")
	require.NoError(t, os.WriteFile(path, []byte("not a parquet file"), 0o600))

	_, err := Open(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrConfig)
}
