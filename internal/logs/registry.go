// Package logs owns the process-wide logger registry. Each pipeline
// component (generation, execution, scheduler) gets a named logger backed by
// a shared stderr handler plus an optional per-run log file. The registry has
// an explicit lifecycle: it is constructed once at process start and passed
// to whoever needs it, so there is no ambient module-level handler state.
// Workers spawned by the dispatcher do not inherit live handler state and
// call Ensure to rebuild their logger.
package logs

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Options configures the handlers built by a Registry.
type Options struct {
	// Dir is the log file directory. Empty disables file sinks.
	Dir string
	// Name is the run name; the file sink is <Dir>/<Name>.log.
	Name string
	// Level is the minimum level for all handlers.
	Level slog.Level
	// Format selects "json" or "text" handlers.
	Format string
	// Stderr overrides the console sink, mainly for tests.
	Stderr io.Writer
}

// Registry tracks which component loggers have been constructed so that
// repeated initialization (CLI setup, worker re-init, nested invocations)
// never attaches duplicate sinks.
type Registry struct {
	mu      sync.Mutex
	opts    Options
	file    io.Writer
	loggers map[string]*slog.Logger
}

// NewRegistry builds a registry and, when a log directory is configured,
// creates it and opens the shared run log file in append mode.
func NewRegistry(opts Options) (*Registry, error) {
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	r := &Registry{opts: opts, loggers: make(map[string]*slog.Logger)}
	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating log directory %q: %w", opts.Dir, err)
		}
		path := filepath.Join(opts.Dir, opts.Name+".log")
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("opening log file %q: %w", path, err)
		}
		r.file = f
	}
	return r, nil
}

// Register constructs (or returns the already-constructed) logger for a
// component name, tagged with the given attributes.
func (r *Registry) Register(name string, args ...any) *slog.Logger {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.loggers[name]; ok {
		return l
	}
	out := r.opts.Stderr
	if r.file != nil {
		out = io.MultiWriter(r.opts.Stderr, r.file)
	}
	handlerOpts := &slog.HandlerOptions{Level: r.opts.Level}
	var handler slog.Handler
	if r.opts.Format == "json" {
		handler = slog.NewJSONHandler(out, handlerOpts)
	} else {
		handler = slog.NewTextHandler(out, handlerOpts)
	}
	l := slog.New(handler).With("component", name).With(args...)
	r.loggers[name] = l
	return l
}

// Ensure returns the logger for a component, constructing it with no extra
// attributes if it has not been registered yet. Idempotent; safe to call
// from every worker.
func (r *Registry) Ensure(name string) *slog.Logger {
	return r.Register(name)
}

// ParseLevel maps a config string onto a slog.Level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
