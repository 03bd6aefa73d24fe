package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_DirectRun(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	cfg, shouldExit, err := Parse([]string{
		"-tech", "pv",
		"-points", "0:100",
		"-sam", "fixed=sam/fixed.json,tracking=sam/tracking.json",
		"-res", "nsrdb_2013.parquet",
		"-workers", "8",
		"-profiles",
		"-fout", "gen.parquet",
	}, out)

	require.NoError(t, err)
	require.False(t, shouldExit)
	require.NotNil(t, cfg)

	assert.Equal(t, "rev_gen", cfg.Name)
	assert.Equal(t, "pv", cfg.Tech)
	assert.Equal(t, "0:100", cfg.Points)
	assert.Equal(t, map[string]string{
		"fixed":    "sam/fixed.json",
		"tracking": "sam/tracking.json",
	}, cfg.SAMConfigs)
	assert.Equal(t, "nsrdb_2013.parquet", cfg.ResFile)
	assert.Equal(t, 8, cfg.Workers)
	assert.True(t, cfg.Profiles)
	assert.Equal(t, "gen.parquet", cfg.Fout)

	// Defaults.
	assert.Equal(t, "local", cfg.Exec)
	assert.Equal(t, 0.7, cfg.MemLimit)
	assert.Equal(t, "./out/gen_out", cfg.Dirout)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestParse_HPCFlags(t *testing.T) {
	t.Parallel()

	cfg, _, err := Parse([]string{
		"-tech", "landbasedwind",
		"-exec", "eagle",
		"-nodes", "10",
		"-alloc", "windanalysis",
		"-queue", "standard",
		"-walltime", "4.5",
		"-memory", "192",
		"-feature", "24core",
	}, &bytes.Buffer{})

	require.NoError(t, err)
	assert.Equal(t, "eagle", cfg.Exec)
	assert.Equal(t, 10, cfg.Nodes)
	assert.Equal(t, "windanalysis", cfg.Alloc)
	assert.Equal(t, "standard", cfg.Queue)
	assert.Equal(t, 4.5, cfg.WalltimeHours)
	assert.Equal(t, 192, cfg.MemoryGB)
	assert.Equal(t, "24core", cfg.Feature)
}

func TestParse_NoArgsPrintsUsage(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	cfg, shouldExit, err := Parse(nil, out)

	require.NoError(t, err)
	assert.True(t, shouldExit)
	assert.Nil(t, cfg)
	assert.Contains(t, out.String(), "Options:")
}

func TestParse_VerboseForcesDebug(t *testing.T) {
	t.Parallel()

	cfg, _, err := Parse([]string{"-tech", "pv", "-v"}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestParse_InvalidValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
	}{
		{"bad log format", []string{"-tech", "pv", "-log-format", "xml"}},
		{"bad log level", []string{"-tech", "pv", "-log-level", "trace"}},
		{"unknown flag", []string{"-tech", "pv", "-frobnicate"}},
		{"duplicate sam key", []string{"-tech", "pv", "-sam", "a=1.json,a=2.json"}},
		{"malformed sam pair", []string{"-tech", "pv", "-sam", "a=1.json,nokey"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, _, err := Parse(tc.args, &bytes.Buffer{})
			require.Error(t, err)
			var exitErr *ExitError
			require.ErrorAs(t, err, &exitErr)
			assert.Equal(t, 2, exitErr.Code)
		})
	}
}

func TestParseSAM(t *testing.T) {
	t.Parallel()

	t.Run("bare path becomes the default config", func(t *testing.T) {
		t.Parallel()
		got, err := parseSAM("sam/fixed.json")
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"default": "sam/fixed.json"}, got)
	})

	t.Run("empty yields nil", func(t *testing.T) {
		t.Parallel()
		got, err := parseSAM("")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("pairs", func(t *testing.T) {
		t.Parallel()
		got, err := parseSAM("a=1.json, b=2.json")
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"a": "1.json", "b": "2.json"}, got)
	})
}
