// Package sched submits node-level generation commands to HPC job
// schedulers. The pipeline only depends on the contract "submit this command
// with these resource constraints, return a job handle"; one adapter exists
// per scheduler family.
package sched

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Family identifies a scheduler family.
type Family int

const (
	SLURM Family = iota
	PBS
)

func (f Family) String() string {
	switch f {
	case SLURM:
		return "slurm"
	case PBS:
		return "pbs"
	}
	return fmt.Sprintf("family(%d)", int(f))
}

// NameLimit is the scheduler's job-name length limit. Fan-out truncates
// base names against it before appending node suffixes.
func (f Family) NameLimit() int {
	switch f {
	case SLURM:
		return 8
	case PBS:
		return 16
	}
	return 16
}

// JobID is a scheduler-issued job handle.
type JobID string

// Request is one submission: a self-contained command plus the resource
// constraints the target scheduler understands. Unused fields are ignored by
// adapters that have no counterpart for them.
type Request struct {
	Name string
	Cmd  string
	// Alloc is the allocation/account the job charges against.
	Alloc string
	// Queue is the target queue (PBS) or partition (SLURM).
	Queue string
	// WalltimeHours is the requested walltime.
	WalltimeHours float64
	// MemoryGB is the requested node memory.
	MemoryGB int
	// Feature is a scheduler feature request, e.g. "64GB" or "24core".
	Feature string
	// StdoutPath is the directory for scheduler stdout/stderr files.
	StdoutPath string
}

// Client submits commands to one scheduler family.
type Client interface {
	Family() Family
	Submit(ctx context.Context, req Request) (JobID, error)
}

// runner executes a submission binary with a script on stdin and returns its
// standard output. Injectable so adapters are testable without a cluster.
type runner func(ctx context.Context, stdin string, name string, args ...string) (string, error)

func execRunner(ctx context.Context, stdin string, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = strings.NewReader(stdin)
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%s failed: %w: %s", name, err, strings.TrimSpace(errb.String()))
	}
	return out.String(), nil
}

// script wraps a node command in a minimal batch script.
func script(cmd string) string {
	return "#!/bin/bash\n" + cmd + "\n"
}

// walltime renders fractional hours as HH:MM:SS.
func walltime(hours float64) string {
	total := int(hours * 3600)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}
