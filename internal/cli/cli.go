// Package cli parses command-line arguments into an app.Config.
package cli

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/clhughes/reV/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated app.Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	flagSet := flag.NewFlagSet("rev", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
reV generation - distributed renewable generation analysis.

Run from an HCL config file:
  rev -config run.hcl

Or directly from flags:
  rev -tech pv -points 0:100 -sam default=sam.json -res nsrdb_2012.parquet

Options:
`)
		flagSet.PrintDefaults()
	}

	nameFlag := flagSet.String("name", "rev_gen", "Job name.")
	configFlag := flagSet.String("config", "", "Path to an HCL run configuration file.")
	verboseFlag := flagSet.Bool("v", false, "Turn on debug logging.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Logging level: 'debug', 'info', 'warn', or 'error'.")
	statusPortFlag := flagSet.Int("status-port", 0, "Port for the status/metrics HTTP server. 0 is disabled.")

	techFlag := flagSet.String("tech", "", "Technology to analyze: pv, csp, landbasedwind, offshorewind.")
	pointsFlag := flagSet.String("points", "", "Project points: 'start:stop' range, gid list, or csv path.")
	pointsRangeFlag := flagSet.String("points-range", "", "Optional 'start:stop' site index sub-range to run.")
	samFlag := flagSet.String("sam", "", "SAM configs as comma-separated 'key=path' pairs, or one bare path.")
	resFlag := flagSet.String("res", "", "Resource file path.")
	sitesPerChunkFlag := flagSet.Int("sites-per-chunk", 0, "Sites per chunk. 0 uses the resource file's chunking.")
	workersFlag := flagSet.Int("workers", 1, "Worker count. 1 is serial, 0 all CPUs.")
	memLimitFlag := flagSet.Float64("mem-limit", 0.7, "Fractional memory utilization flush threshold.")
	foutFlag := flagSet.String("fout", "", "Output file name. Empty keeps results in memory only.")
	diroutFlag := flagSet.String("dirout", "./out/gen_out", "Output directory.")
	logdirFlag := flagSet.String("logdir", "./out/log_gen", "Log file directory.")
	profilesFlag := flagSet.Bool("profiles", false, "Save capacity factor profiles, not just means.")

	execFlag := flagSet.String("exec", "local", "Execution option: local, peregrine (PBS), or eagle (SLURM).")
	nodesFlag := flagSet.Int("nodes", 1, "Number of cluster nodes for HPC execution.")
	allocFlag := flagSet.String("alloc", "rev", "HPC allocation account name.")
	queueFlag := flagSet.String("queue", "short", "HPC queue or partition.")
	walltimeFlag := flagSet.Float64("walltime", 1.0, "HPC walltime request in hours.")
	memoryFlag := flagSet.Int("memory", 96, "HPC node memory request in GB.")
	featureFlag := flagSet.String("feature", "", "HPC feature request, e.g. '64GB' or '24core'.")
	stdoutPathFlag := flagSet.String("stdout-path", "./out/stdout", "HPC job standard output path.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	if *configFlag == "" && *techFlag == "" {
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}
	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}
	if *verboseFlag {
		logLevel = "debug"
	}

	samConfigs, err := parseSAM(*samFlag)
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	cfg := &app.Config{
		Name:          *nameFlag,
		ConfigFile:    *configFlag,
		LogFormat:     logFormat,
		LogLevel:      logLevel,
		StatusPort:    *statusPortFlag,
		Tech:          *techFlag,
		Points:        *pointsFlag,
		PointsRange:   *pointsRangeFlag,
		SAMConfigs:    samConfigs,
		ResFile:       *resFlag,
		SitesPerChunk: *sitesPerChunkFlag,
		Workers:       *workersFlag,
		MemLimit:      *memLimitFlag,
		Fout:          *foutFlag,
		Dirout:        *diroutFlag,
		Logdir:        *logdirFlag,
		Profiles:      *profilesFlag,
		Exec:          *execFlag,
		Nodes:         *nodesFlag,
		Alloc:         *allocFlag,
		Queue:         *queueFlag,
		WalltimeHours: *walltimeFlag,
		MemoryGB:      *memoryFlag,
		Feature:       *featureFlag,
		StdoutPath:    *stdoutPathFlag,
	}
	return cfg, false, nil
}

// parseSAM decodes the -sam flag: comma-separated key=path pairs, or a bare
// path which becomes the sole "default" config.
func parseSAM(s string) (map[string]string, error) {
	if s == "" {
		return nil, nil
	}
	out := make(map[string]string)
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		key, path, found := strings.Cut(field, "=")
		if !found {
			if !strings.Contains(s, ",") {
				return map[string]string{"default": field}, nil
			}
			return nil, fmt.Errorf("sam config entry %q is not key=path", field)
		}
		if _, dup := out[key]; dup {
			return nil, fmt.Errorf("duplicate sam config key %q", key)
		}
		out[key] = path
	}
	return out, nil
}
