package fanout

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/clhughes/reV/internal/sched"
	"github.com/clhughes/reV/internal/sim"
)

func TestSplit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		total, nodes int
		want         [][2]int
	}{
		{"remainder spreads forward", 100, 3, [][2]int{{0, 34}, {34, 67}, {67, 100}}},
		{"even split", 100, 4, [][2]int{{0, 25}, {25, 50}, {50, 75}, {75, 100}}},
		{"single node", 10, 1, [][2]int{{0, 10}}},
		{"more nodes than sites", 2, 5, [][2]int{{0, 1}, {1, 2}}},
		{"zero nodes clamps to one", 7, 0, [][2]int{{0, 7}}},
		{"empty site set yields no ranges", 0, 3, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, Split(tc.total, tc.nodes))
		})
	}
}

func TestSplit_CoversContiguously(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		total := rapid.IntRange(1, 10000).Draw(t, "total")
		nodes := rapid.IntRange(1, 64).Draw(t, "nodes")

		ranges := Split(total, nodes)
		next := 0
		for i, r := range ranges {
			if r[0] != next {
				t.Fatalf("range %d starts at %d, previous stopped at %d", i, r[0], next)
			}
			if r[1] <= r[0] {
				t.Fatalf("range %d is empty: [%d:%d)", i, r[0], r[1])
			}
			next = r[1]
		}
		if next != total {
			t.Fatalf("ranges cover [0:%d) of %d sites", next, total)
		}
		// Balanced: no range more than one site larger than another.
		minSize, maxSize := total, 0
		for _, r := range ranges {
			minSize = min(minSize, r[1]-r[0])
			maxSize = max(maxSize, r[1]-r[0])
		}
		if maxSize-minSize > 1 {
			t.Fatalf("unbalanced split: sizes range from %d to %d", minSize, maxSize)
		}
	})
}

func TestNodeName(t *testing.T) {
	t.Parallel()

	// SLURM limits names to 8 characters; the node suffix survives intact.
	assert.Equal(t, "genera03", NodeName("generation_2013", 3, sched.SLURM.NameLimit()))
	// PBS allows 16.
	assert.Equal(t, "generation_20105", NodeName("generation_2013", 5, sched.PBS.NameLimit()))
	// Short names are untouched.
	assert.Equal(t, "rev07", NodeName("rev", 7, sched.SLURM.NameLimit()))
	// Three-digit node indexes widen the suffix; the limit still holds.
	assert.Equal(t, "gener123", NodeName("generation_2013", 123, sched.SLURM.NameLimit()))
	assert.Len(t, NodeName("generation_2013", 456, sched.PBS.NameLimit()), 16)
}

func TestNodeFout(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "gen_2013_node00.parquet", NodeFout("gen_2013.parquet", 0))
	assert.Equal(t, "gen_2013_node11.parquet", NodeFout("gen_2013.parquet", 11))
}

func TestCommand_SelfContained(t *testing.T) {
	t.Parallel()

	spec := RunSpec{
		Name:          "gen00",
		Tech:          sim.PV,
		PointsSpec:    "0:100",
		SAMConfigs:    map[string]string{"tracking": "t.json", "fixed": "f.json"},
		ResFile:       "nsrdb_2013.parquet",
		SitesPerChunk: 25,
		Fout:          "gen_node00.parquet",
		Dirout:        "./out/gen_out",
		Logdir:        "./out/log_gen",
		Profiles:      true,
		Verbose:       true,
		MemLimit:      0.7,
	}

	cmd := Command(spec, 34, 67)

	assert.Contains(t, cmd, `rev -name "gen00" -exec local`)
	assert.Contains(t, cmd, `-tech pv -points "0:100" -points-range 34:67`)
	// SAM pairs serialize in sorted key order.
	assert.Contains(t, cmd, `-sam "fixed=f.json,tracking=t.json"`)
	assert.Contains(t, cmd, `-res "nsrdb_2013.parquet"`)
	assert.Contains(t, cmd, `-workers 0 -sites-per-chunk 25 -mem-limit 0.7`)
	assert.Contains(t, cmd, " -profiles")
	assert.Contains(t, cmd, " -v")
}

// fakeClient records submissions and fails the node indexes it is told to.
type fakeClient struct {
	family   sched.Family
	requests []sched.Request
	failOn   map[int]bool
}

func (c *fakeClient) Family() sched.Family { return c.family }

func (c *fakeClient) Submit(_ context.Context, req sched.Request) (sched.JobID, error) {
	n := len(c.requests)
	c.requests = append(c.requests, req)
	if c.failOn[n] {
		return "", errors.New("queue rejected the job")
	}
	return sched.JobID(fmt.Sprintf("job-%d", n)), nil
}

func TestSubmit_EmptySiteSet(t *testing.T) {
	t.Parallel()

	// A degenerate range spec like "5:5" produces a valid empty site set;
	// fan-out must submit nothing rather than panic on the split.
	client := &fakeClient{family: sched.SLURM}
	spec := RunSpec{Name: "generation", Tech: sim.PV, Fout: "gen.parquet"}

	subs := Submit(context.Background(), client, spec, 0, 3, sched.Request{})

	assert.Empty(t, subs)
	assert.Empty(t, client.requests)
}

func TestSubmit_IndependentFailures(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	client := &fakeClient{family: sched.SLURM, failOn: map[int]bool{1: true}}
	spec := RunSpec{
		Name:       "generation",
		Tech:       sim.PV,
		PointsSpec: "0:100",
		SAMConfigs: map[string]string{"default": "sam.json"},
		ResFile:    "res.parquet",
		Fout:       "gen.parquet",
	}

	// --- Act ---
	subs := Submit(context.Background(), client, spec, 100, 3, sched.Request{Alloc: "rev"})

	// --- Assert ---
	require.Len(t, subs, 3)

	assert.Equal(t, sched.JobID("job-0"), subs[0].JobID)
	require.Error(t, subs[1].Err)
	assert.Empty(t, subs[1].JobID)
	assert.Equal(t, sched.JobID("job-2"), subs[2].JobID, "a failed node must not block later nodes")

	assert.Equal(t, [2]int{0, 34}, subs[0].Range)
	assert.Equal(t, [2]int{34, 67}, subs[1].Range)
	assert.Equal(t, [2]int{67, 100}, subs[2].Range)

	// Node identity flows into names, output files, and commands.
	assert.Equal(t, "genera01", subs[1].Name)
	assert.Equal(t, "gen_node02.parquet", subs[2].Fout)
	require.Len(t, client.requests, 3)
	assert.Equal(t, "rev", client.requests[0].Alloc)
	assert.Contains(t, client.requests[2].Cmd, "-points-range 67:100")
	assert.Contains(t, client.requests[2].Cmd, `-fout "gen_node02.parquet"`)
}
