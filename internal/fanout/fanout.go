// Package fanout splits one logical generation run across cluster nodes.
// Each node gets a contiguous share of the site set, a node-unique job name
// and output file, and a fully self-contained command that reproduces a
// local run over its share; submissions are independent, so one node's
// failure never blocks its siblings.
package fanout

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/clhughes/reV/internal/ctxlog"
	"github.com/clhughes/reV/internal/output"
	"github.com/clhughes/reV/internal/sched"
	"github.com/clhughes/reV/internal/sim"
)

// Split partitions total sites across nodes into contiguous half-open
// ranges. Sizing is balanced: earlier nodes absorb the remainder, so for
// 100 sites over 3 nodes the ranges are [0,34), [34,67), [67,100). An empty
// site set yields no ranges.
func Split(total, nodes int) [][2]int {
	if total <= 0 {
		return nil
	}
	if nodes <= 0 {
		nodes = 1
	}
	if nodes > total {
		nodes = total
	}
	ranges := make([][2]int, 0, nodes)
	size, rem := total/nodes, total%nodes
	start := 0
	for i := 0; i < nodes; i++ {
		stop := start + size
		if i < rem {
			stop++
		}
		ranges = append(ranges, [2]int{start, stop})
		start = stop
	}
	return ranges
}

// NodeName derives the node's job name: the base truncated to fit the
// scheduler's name limit, then the node index rendered with at least two
// digits. The suffix is never truncated, so wider indexes cost base
// characters instead of breaking the limit.
func NodeName(base string, node, limit int) string {
	suffix := fmt.Sprintf("%02d", node)
	if keep := max(limit-len(suffix), 0); len(base) > keep {
		base = base[:keep]
	}
	return base + suffix
}

// NodeFout derives the node's output file name by tagging the base name
// with the node index before the extension.
func NodeFout(fout string, node int) string {
	base := strings.TrimSuffix(fout, output.Ext)
	return fmt.Sprintf("%s_node%02d%s", base, node, output.Ext)
}

// RunSpec is everything needed to rebuild an equivalent local run on a
// node. Fields mirror the CLI flags of the direct local invocation.
type RunSpec struct {
	Binary        string
	Name          string
	Tech          sim.Technology
	PointsSpec    string
	SAMConfigs    map[string]string
	ResFile       string
	SitesPerChunk int
	Fout          string
	Dirout        string
	Logdir        string
	Profiles      bool
	Verbose       bool
	MemLimit      float64
}

// Command serializes the spec into one self-contained command line over the
// given site sub-range. The node runs locally with all CPUs and must not
// fan out again, so the execution option is forced to local.
func Command(spec RunSpec, start, stop int) string {
	binary := spec.Binary
	if binary == "" {
		binary = "rev"
	}

	keys := make([]string, 0, len(spec.SAMConfigs))
	for k := range spec.SAMConfigs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = k + "=" + spec.SAMConfigs[k]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s -name %q -exec local", binary, spec.Name)
	fmt.Fprintf(&b, " -tech %s -points %q -points-range %d:%d", spec.Tech, spec.PointsSpec, start, stop)
	fmt.Fprintf(&b, " -sam %q -res %q", strings.Join(pairs, ","), spec.ResFile)
	fmt.Fprintf(&b, " -fout %q -dirout %q -logdir %q", spec.Fout, spec.Dirout, spec.Logdir)
	fmt.Fprintf(&b, " -workers 0 -sites-per-chunk %d -mem-limit %g", spec.SitesPerChunk, spec.MemLimit)
	if spec.Profiles {
		b.WriteString(" -profiles")
	}
	if spec.Verbose {
		b.WriteString(" -v")
	}
	return b.String()
}

// Submission records the outcome of one node's job submission. A failed
// submission carries its error and no job ID.
type Submission struct {
	Node  int
	Name  string
	Fout  string
	Range [2]int
	JobID sched.JobID
	Err   error
}

// Submit fans the run out: one submission per node range, built from the
// spec and the request template (which carries the resource constraints).
// Per-node failures are logged and recorded; remaining submissions proceed.
func Submit(ctx context.Context, client sched.Client, spec RunSpec, total, nodes int, template sched.Request) []Submission {
	logger := ctxlog.FromContext(ctx)
	limit := client.Family().NameLimit()

	ranges := Split(total, nodes)
	subs := make([]Submission, 0, len(ranges))
	for i, r := range ranges {
		nodeSpec := spec
		nodeSpec.Name = NodeName(spec.Name, i, limit)
		nodeSpec.Fout = NodeFout(spec.Fout, i)

		req := template
		req.Name = nodeSpec.Name
		req.Cmd = Command(nodeSpec, r[0], r[1])

		sub := Submission{Node: i, Name: nodeSpec.Name, Fout: nodeSpec.Fout, Range: r}
		sub.JobID, sub.Err = client.Submit(ctx, req)
		if sub.Err != nil {
			logger.Error("node job submission failed; continuing with remaining nodes",
				"node", i, "name", nodeSpec.Name, "error", sub.Err)
		} else {
			logger.Info("node job submitted",
				"node", i, "name", nodeSpec.Name, "job_id", string(sub.JobID),
				"points_range", fmt.Sprintf("[%d:%d)", r[0], r[1]))
		}
		subs = append(subs, sub)
	}
	return subs
}
