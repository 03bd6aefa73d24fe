package config

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/clhughes/reV/internal/fsutil"
)

// Load parses and validates an HCL run configuration file.
func Load(path string) (*RunConfig, error) {
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("%w: parsing %q: %s", ErrConfig, path, diags.Error())
	}

	var raw fileSchema
	if diags := gohcl.DecodeBody(hclFile.Body, nil, &raw); diags.HasErrors() {
		return nil, fmt.Errorf("%w: decoding %q: %s", ErrConfig, path, diags.Error())
	}

	cfg := &RunConfig{
		Name:       raw.Name,
		Tech:       raw.Tech,
		Points:     raw.Points,
		Profiles:   raw.Profiles,
		Dirout:     raw.Dirout,
		Logdir:     raw.Logdir,
		LogLevel:   raw.LogLevel,
		SAMConfigs: make(map[string]string, len(raw.SAM)),
	}
	if cfg.Name == "" {
		cfg.Name = "rev_gen"
	}
	if cfg.Dirout == "" {
		cfg.Dirout = "./out/gen_out"
	}
	if cfg.Logdir == "" {
		cfg.Logdir = "./out/log_gen"
	}

	for _, block := range raw.SAM {
		if _, dup := cfg.SAMConfigs[block.Key]; dup {
			return nil, fmt.Errorf("%w: duplicate sam config key %q", ErrConfig, block.Key)
		}
		cfg.SAMConfigs[block.Key] = block.File
	}
	if raw.SAMDir != "" {
		files, err := fsutil.FindFilesByExtension(raw.SAMDir, ".json")
		if err != nil {
			return nil, fmt.Errorf("%w: scanning sam_dir %q: %v", ErrConfig, raw.SAMDir, err)
		}
		for _, f := range files {
			key := strings.TrimSuffix(filepath.Base(f), filepath.Ext(f))
			if _, dup := cfg.SAMConfigs[key]; dup {
				return nil, fmt.Errorf("%w: sam_dir entry %q collides with sam config key %q", ErrConfig, f, key)
			}
			cfg.SAMConfigs[key] = f
		}
	}
	if len(cfg.SAMConfigs) == 0 {
		return nil, fmt.Errorf("%w: no sam configs declared", ErrConfig)
	}

	if err := pairYears(cfg, raw); err != nil {
		return nil, err
	}

	if raw.Execution == nil {
		return nil, fmt.Errorf("%w: missing execution block", ErrConfig)
	}
	exec, err := decodeExecution(raw.Execution)
	if err != nil {
		return nil, err
	}
	cfg.Execution = exec

	return cfg, nil
}

// pairYears validates the year/resource pairing: every requested year needs
// a resource block, and the year must appear in the resource file name so a
// mismatched pairing fails before any work is dispatched.
func pairYears(cfg *RunConfig, raw fileSchema) error {
	byYear := make(map[string]string, len(raw.Resources))
	for _, r := range raw.Resources {
		byYear[r.Year] = r.File
	}

	years := raw.Years
	if len(years) == 0 {
		// A single un-yeared run is allowed with exactly one resource block.
		if len(raw.Resources) != 1 {
			return fmt.Errorf("%w: %d resource blocks but no years list", ErrConfig, len(raw.Resources))
		}
		year, err := strconv.Atoi(raw.Resources[0].Year)
		if err != nil {
			return fmt.Errorf("%w: resource label %q is not a year", ErrConfig, raw.Resources[0].Year)
		}
		years = []int{year}
	}

	for _, y := range years {
		ys := strconv.Itoa(y)
		file, ok := byYear[ys]
		if !ok {
			return fmt.Errorf("%w: year %d has no resource block", ErrConfig, y)
		}
		if !strings.Contains(filepath.Base(file), ys) {
			return fmt.Errorf("%w: resource file %q and year %d do not appear to match", ErrConfig, file, y)
		}
		cfg.Years = append(cfg.Years, y)
		cfg.ResFiles = append(cfg.ResFiles, file)
	}
	return nil
}

// decodeExecution validates the execution block, evaluating the walltime
// expression, which may be a number of hours or an "HH:MM:SS" string.
func decodeExecution(raw *executionBlock) (ExecutionControl, error) {
	exec := ExecutionControl{
		Option:        raw.Option,
		Nodes:         raw.Nodes,
		Workers:       raw.Workers,
		SitesPerChunk: raw.SitesPerChunk,
		MemLimit:      raw.MemLimit,
		Alloc:         raw.Alloc,
		Queue:         raw.Queue,
		NodeMemGB:     raw.NodeMemGB,
		Feature:       raw.Feature,
		StdoutPath:    raw.StdoutPath,
	}
	switch exec.Option {
	case "local", "peregrine", "eagle":
	default:
		return exec, fmt.Errorf("%w: execution option not recognized: %q", ErrConfig, exec.Option)
	}
	if exec.Nodes <= 0 {
		exec.Nodes = 1
	}

	if raw.Walltime != nil {
		val, diags := raw.Walltime.Value(nil)
		if diags.HasErrors() {
			return exec, fmt.Errorf("%w: evaluating walltime: %s", ErrConfig, diags.Error())
		}
		hours, err := walltimeHours(val)
		if err != nil {
			return exec, err
		}
		exec.WalltimeHours = hours
	}
	return exec, nil
}

func walltimeHours(val cty.Value) (float64, error) {
	if val.IsNull() {
		return 0, nil
	}
	switch val.Type() {
	case cty.Number:
		f, _ := val.AsBigFloat().Float64()
		return f, nil
	case cty.String:
		parts := strings.Split(val.AsString(), ":")
		if len(parts) != 3 {
			return 0, fmt.Errorf("%w: walltime string must be HH:MM:SS", ErrConfig)
		}
		var secs float64
		for _, p := range parts {
			n, err := strconv.Atoi(p)
			if err != nil {
				return 0, fmt.Errorf("%w: walltime string must be HH:MM:SS", ErrConfig)
			}
			secs = secs*60 + float64(n)
		}
		return secs / 3600, nil
	}
	return 0, fmt.Errorf("%w: walltime must be hours or an HH:MM:SS string", ErrConfig)
}
