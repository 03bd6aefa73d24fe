// Package config loads and validates the HCL run configuration for a
// generation job. The schema structs mirror the config file layout; Load
// translates them into the validated RunConfig model the app consumes.
package config

import (
	"github.com/hashicorp/hcl/v2"
)

// samBlock binds a SAM configuration key to its input file.
type samBlock struct {
	Key  string `hcl:"key,label"`
	File string `hcl:"file"`
}

// resourceBlock binds a year to its resource file.
type resourceBlock struct {
	Year string `hcl:"year,label"`
	File string `hcl:"file"`
}

// executionBlock is the execution-control section.
type executionBlock struct {
	// Option selects where the run executes: "local", "peregrine" (PBS),
	// or "eagle" (SLURM).
	Option        string         `hcl:"option"`
	Nodes         int            `hcl:"nodes,optional"`
	Workers       int            `hcl:"workers,optional"`
	SitesPerChunk int            `hcl:"sites_per_chunk,optional"`
	MemLimit      float64        `hcl:"mem_limit,optional"`
	Alloc         string         `hcl:"alloc,optional"`
	Queue         string         `hcl:"queue,optional"`
	Walltime      hcl.Expression `hcl:"walltime,optional"`
	NodeMemGB     int            `hcl:"node_mem_gb,optional"`
	Feature       string         `hcl:"feature,optional"`
	StdoutPath    string         `hcl:"stdout_path,optional"`
}

// fileSchema is the top-level config file layout.
type fileSchema struct {
	Name      string          `hcl:"name,optional"`
	Tech      string          `hcl:"tech"`
	Points    string          `hcl:"points"`
	Profiles  bool            `hcl:"profiles,optional"`
	Dirout    string          `hcl:"dirout,optional"`
	Logdir    string          `hcl:"logdir,optional"`
	LogLevel  string          `hcl:"log_level,optional"`
	SAMDir    string          `hcl:"sam_dir,optional"`
	SAM       []samBlock      `hcl:"sam,block"`
	Years     []int           `hcl:"years,optional"`
	Resources []resourceBlock `hcl:"resource,block"`
	Execution *executionBlock `hcl:"execution,block"`
}

// RunConfig is the validated, immutable run configuration model.
type RunConfig struct {
	Name     string
	Tech     string
	Points   string
	Profiles bool
	Dirout   string
	Logdir   string
	LogLevel string
	// SAMConfigs maps config keys to input file paths.
	SAMConfigs map[string]string
	// Years pairs with ResFiles index-wise.
	Years    []int
	ResFiles []string

	Execution ExecutionControl
}

// ExecutionControl is the validated execution section.
type ExecutionControl struct {
	Option        string
	Nodes         int
	Workers       int
	SitesPerChunk int
	MemLimit      float64
	Alloc         string
	Queue         string
	WalltimeHours float64
	NodeMemGB     int
	Feature       string
	StdoutPath    string
}
