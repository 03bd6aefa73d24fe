package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run.hcl")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_FullConfig(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
name     = "gen_co"
tech     = "pv"
points   = "0:1000"
profiles = true
dirout   = "./results"

sam "fixed" {
  file = "sam/fixed.json"
}
sam "tracking" {
  file = "sam/tracking.json"
}

years = [2012, 2013]

resource "2012" {
  file = "res/nsrdb_2012.parquet"
}
resource "2013" {
  file = "res/nsrdb_2013.parquet"
}

execution {
  option          = "eagle"
  nodes           = 4
  workers         = 0
  sites_per_chunk = 100
  mem_limit       = 0.8
  alloc           = "rev"
  queue           = "short"
  walltime        = "02:30:00"
  node_mem_gb     = 192
  feature         = "24core"
}
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "gen_co", cfg.Name)
	assert.Equal(t, "pv", cfg.Tech)
	assert.Equal(t, "0:1000", cfg.Points)
	assert.True(t, cfg.Profiles)
	assert.Equal(t, "./results", cfg.Dirout)
	assert.Equal(t, "./out/log_gen", cfg.Logdir, "unset logdir takes the default")
	assert.Equal(t, map[string]string{
		"fixed":    "sam/fixed.json",
		"tracking": "sam/tracking.json",
	}, cfg.SAMConfigs)
	assert.Equal(t, []int{2012, 2013}, cfg.Years)
	assert.Equal(t, []string{"res/nsrdb_2012.parquet", "res/nsrdb_2013.parquet"}, cfg.ResFiles)

	ec := cfg.Execution
	assert.Equal(t, "eagle", ec.Option)
	assert.Equal(t, 4, ec.Nodes)
	assert.Equal(t, 100, ec.SitesPerChunk)
	assert.Equal(t, 0.8, ec.MemLimit)
	assert.Equal(t, "rev", ec.Alloc)
	assert.InDelta(t, 2.5, ec.WalltimeHours, 1e-9)
	assert.Equal(t, 192, ec.NodeMemGB)
	assert.Equal(t, "24core", ec.Feature)
}

func TestLoad_WalltimeAsHours(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
tech   = "pv"
points = "0:10"
sam "default" { file = "sam.json" }
resource "2013" { file = "nsrdb_2013.parquet" }
execution {
  option   = "local"
  walltime = 1.5
}
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.InDelta(t, 1.5, cfg.Execution.WalltimeHours, 1e-9)
}

func TestLoad_SingleResourceWithoutYears(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
tech   = "landbasedwind"
points = "0:10"
sam "default" { file = "sam.json" }
resource "2013" { file = "wtk_2013.parquet" }
execution { option = "local" }
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "rev_gen", cfg.Name)
	assert.Equal(t, []int{2013}, cfg.Years)
	assert.Equal(t, []string{"wtk_2013.parquet"}, cfg.ResFiles)
	assert.Equal(t, 1, cfg.Execution.Nodes, "nodes defaults to 1")
}

func TestLoad_SAMDirScan(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fixed.json"), []byte("{}"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tracking.json"), []byte("{}"), 0o600))

	path := writeConfig(t, `
tech    = "pv"
points  = "0:10"
sam_dir = `+`"`+dir+`"`+`
resource "2013" { file = "nsrdb_2013.parquet" }
execution { option = "local" }
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"fixed":    filepath.Join(dir, "fixed.json"),
		"tracking": filepath.Join(dir, "tracking.json"),
	}, cfg.SAMConfigs)
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{
			"year without resource block",
			`
tech   = "pv"
points = "0:10"
sam "default" { file = "sam.json" }
years = [2012, 2013]
resource "2012" { file = "nsrdb_2012.parquet" }
execution { option = "local" }
`,
		},
		{
			"resource file name does not carry the year",
			`
tech   = "pv"
points = "0:10"
sam "default" { file = "sam.json" }
years = [2013]
resource "2013" { file = "nsrdb_2012.parquet" }
execution { option = "local" }
`,
		},
		{
			"unknown execution option",
			`
tech   = "pv"
points = "0:10"
sam "default" { file = "sam.json" }
resource "2013" { file = "nsrdb_2013.parquet" }
execution { option = "cloud" }
`,
		},
		{
			"missing execution block",
			`
tech   = "pv"
points = "0:10"
sam "default" { file = "sam.json" }
resource "2013" { file = "nsrdb_2013.parquet" }
`,
		},
		{
			"no sam configs",
			`
tech   = "pv"
points = "0:10"
resource "2013" { file = "nsrdb_2013.parquet" }
execution { option = "local" }
`,
		},
		{
			"duplicate sam keys",
			`
tech   = "pv"
points = "0:10"
sam "default" { file = "a.json" }
sam "default" { file = "b.json" }
resource "2013" { file = "nsrdb_2013.parquet" }
execution { option = "local" }
`,
		},
		{
			"malformed walltime string",
			`
tech   = "pv"
points = "0:10"
sam "default" { file = "sam.json" }
resource "2013" { file = "nsrdb_2013.parquet" }
execution {
  option   = "local"
  walltime = "90 minutes"
}
`,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := Load(writeConfig(t, tc.body))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrConfig)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "absent.hcl"))
	require.Error(t, err)
}
