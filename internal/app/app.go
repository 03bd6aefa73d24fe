// Package app wires a generation run together: logging, metrics, run
// configuration, and the dispatch to local execution or cluster fan-out.
package app

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/clhughes/reV/internal/config"
	"github.com/clhughes/reV/internal/execution"
	"github.com/clhughes/reV/internal/logs"
)

// Config holds every knob of a run, populated from CLI flags and optionally
// overridden by an HCL config file. Immutable once the App is constructed;
// it is also what fan-out serializes back into per-node command lines.
type Config struct {
	Name       string
	ConfigFile string
	LogFormat  string
	LogLevel   string
	StatusPort int

	Tech          string
	Points        string
	PointsRange   string
	SAMConfigs    map[string]string
	ResFile       string
	SitesPerChunk int
	Workers       int
	MemLimit      float64
	Fout          string
	Dirout        string
	Logdir        string
	Profiles      bool

	Exec          string
	Nodes         int
	Alloc         string
	Queue         string
	WalltimeHours float64
	MemoryGB      int
	Feature       string
	StdoutPath    string

	// Years and ResFiles pair index-wise for multi-year config-file runs.
	// A direct flag run leaves Years empty and uses ResFile alone.
	Years    []int
	ResFiles []string
}

// App encapsulates one process's dependencies and lifecycle.
type App struct {
	outW       io.Writer
	cfg        *Config
	logger     *slog.Logger
	registry   *logs.Registry
	metrics    *execution.Metrics
	promReg    *prometheus.Registry
	runID      string
	httpServer *http.Server
}

// NewApp constructs the application: loads and merges the HCL config file if
// one is named, builds the logger registry and metrics. A failure to load
// configuration is a fatal startup error and panics; main recovers it into a
// clean exit message.
func NewApp(outW io.Writer, cfg *Config) *App {
	if cfg.ConfigFile != "" {
		rc, err := config.Load(cfg.ConfigFile)
		if err != nil {
			panic(fmt.Errorf("failed to load configuration: %w", err))
		}
		cfg.applyFile(rc)
	}

	registry, err := logs.NewRegistry(logs.Options{
		Dir:    cfg.Logdir,
		Name:   cfg.Name,
		Level:  logs.ParseLevel(cfg.LogLevel),
		Format: cfg.LogFormat,
		Stderr: outW,
	})
	if err != nil {
		panic(fmt.Errorf("failed to initialize logging: %w", err))
	}

	runID := uuid.NewString()[:8]
	logger := registry.Register("rev", "name", cfg.Name, "run_id", runID)
	logger.Debug("logger registry configured", "logdir", cfg.Logdir)

	promReg := prometheus.NewRegistry()
	return &App{
		outW:     outW,
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		metrics:  execution.NewMetrics(promReg),
		promReg:  promReg,
		runID:    runID,
	}
}

// applyFile overlays the HCL run configuration onto the flag-derived config.
func (c *Config) applyFile(rc *config.RunConfig) {
	if rc.Name != "" {
		c.Name = rc.Name
	}
	c.Tech = rc.Tech
	c.Points = rc.Points
	c.Profiles = rc.Profiles
	c.Dirout = rc.Dirout
	c.Logdir = rc.Logdir
	if rc.LogLevel != "" {
		c.LogLevel = rc.LogLevel
	}
	c.SAMConfigs = rc.SAMConfigs
	c.Years = rc.Years
	c.ResFiles = rc.ResFiles

	ec := rc.Execution
	c.Exec = ec.Option
	c.Nodes = ec.Nodes
	c.Workers = ec.Workers
	c.SitesPerChunk = ec.SitesPerChunk
	if ec.MemLimit > 0 {
		c.MemLimit = ec.MemLimit
	}
	if ec.Alloc != "" {
		c.Alloc = ec.Alloc
	}
	if ec.Queue != "" {
		c.Queue = ec.Queue
	}
	if ec.WalltimeHours > 0 {
		c.WalltimeHours = ec.WalltimeHours
	}
	if ec.NodeMemGB > 0 {
		c.MemoryGB = ec.NodeMemGB
	}
	if ec.Feature != "" {
		c.Feature = ec.Feature
	}
	if ec.StdoutPath != "" {
		c.StdoutPath = ec.StdoutPath
	}
}

// Registry returns the application's logger registry, primarily for testing.
func (a *App) Registry() *logs.Registry { return a.registry }
