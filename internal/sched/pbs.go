package sched

import (
	"context"
	"fmt"
	"strings"

	"github.com/clhughes/reV/internal/ctxlog"
)

// PBSClient submits jobs through qsub.
type PBSClient struct {
	run runner
}

// NewPBS builds a PBS adapter using the real qsub binary.
func NewPBS() *PBSClient { return &PBSClient{run: execRunner} }

func (c *PBSClient) Family() Family { return PBS }

// Submit pipes a batch script into qsub. qsub prints the new job identifier
// (e.g. "1234567.host") as its only stdout line.
func (c *PBSClient) Submit(ctx context.Context, req Request) (JobID, error) {
	args := []string{"-N", req.Name}
	if req.Alloc != "" {
		args = append(args, "-A", req.Alloc)
	}
	if req.Queue != "" {
		args = append(args, "-q", req.Queue)
	}
	if req.WalltimeHours > 0 {
		args = append(args, "-l", "walltime="+walltime(req.WalltimeHours))
	}
	if req.Feature != "" {
		args = append(args, "-l", "feature="+req.Feature)
	}
	if req.StdoutPath != "" {
		args = append(args, "-o", req.StdoutPath, "-e", req.StdoutPath)
	}

	ctxlog.FromContext(ctx).Debug("submitting pbs job", "name", req.Name, "args", strings.Join(args, " "))
	out, err := c.run(ctx, script(req.Cmd), "qsub", args...)
	if err != nil {
		return "", err
	}
	id := strings.TrimSpace(out)
	if id == "" {
		return "", fmt.Errorf("qsub output carried no job id")
	}
	return JobID(id), nil
}
