package sched

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/clhughes/reV/internal/ctxlog"
)

// SlurmClient submits jobs through sbatch.
type SlurmClient struct {
	run runner
}

// NewSlurm builds a SLURM adapter using the real sbatch binary.
func NewSlurm() *SlurmClient { return &SlurmClient{run: execRunner} }

func (c *SlurmClient) Family() Family { return SLURM }

var slurmJobID = regexp.MustCompile(`Submitted batch job (\d+)`)

// Submit pipes a batch script into sbatch and parses the issued job ID.
func (c *SlurmClient) Submit(ctx context.Context, req Request) (JobID, error) {
	args := []string{
		"--job-name=" + req.Name,
		"--nodes=1",
	}
	if req.Alloc != "" {
		args = append(args, "--account="+req.Alloc)
	}
	if req.Queue != "" {
		args = append(args, "--partition="+req.Queue)
	}
	if req.WalltimeHours > 0 {
		args = append(args, "--time="+walltime(req.WalltimeHours))
	}
	if req.MemoryGB > 0 {
		args = append(args, fmt.Sprintf("--mem=%dG", req.MemoryGB))
	}
	if req.Feature != "" {
		args = append(args, "--constraint="+req.Feature)
	}
	if req.StdoutPath != "" {
		args = append(args, "--output="+filepath.Join(req.StdoutPath, req.Name+"_%j.o"))
		args = append(args, "--error="+filepath.Join(req.StdoutPath, req.Name+"_%j.e"))
	}

	ctxlog.FromContext(ctx).Debug("submitting slurm job", "name", req.Name, "args", strings.Join(args, " "))
	out, err := c.run(ctx, script(req.Cmd), "sbatch", args...)
	if err != nil {
		return "", err
	}
	m := slurmJobID.FindStringSubmatch(out)
	if m == nil {
		return "", fmt.Errorf("sbatch output carried no job id: %q", strings.TrimSpace(out))
	}
	return JobID(m[1]), nil
}
