package execution

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clhughes/reV/internal/points"
	"github.com/clhughes/reV/internal/sim"
)

func testChunks(t *testing.T, sites, perChunk int) *points.Control {
	t.Helper()
	pts := make([]points.Point, sites)
	for i := range pts {
		pts[i] = points.Point{Gid: i, Config: "default"}
	}
	pp, err := points.New(pts)
	require.NoError(t, err)
	return points.NewControl(pp, perChunk)
}

// doubleGid is a deterministic stand-in engine: every site's record encodes
// its own gid, so merged results are comparable across dispatch strategies.
func doubleGid(_ context.Context, chunk points.Chunk) sim.Records {
	recs := make(sim.Records, len(chunk.Sites))
	for _, site := range chunk.Sites {
		recs[site.Gid] = sim.Record{CFMean: float64(site.Gid) * 2}
	}
	return recs
}

func merge(results []sim.Records) map[int]sim.Record {
	out := make(map[int]sim.Record)
	for _, recs := range results {
		for gid, rec := range recs {
			out[gid] = rec
		}
	}
	return out
}

func TestSerial_OrderedAndComplete(t *testing.T) {
	t.Parallel()

	control := testChunks(t, 25, 10)
	results := Serial(context.Background(), control.Chunks(), doubleGid)

	require.Len(t, results, 3)
	// Serial preserves chunk order.
	_, first := results[0][0]
	assert.True(t, first)
	_, last := results[2][24]
	assert.True(t, last)

	merged := merge(results)
	require.Len(t, merged, 25)
	assert.Equal(t, 14.0, merged[7].CFMean)
}

func TestParallel_MatchesSerial(t *testing.T) {
	t.Parallel()

	control := testChunks(t, 137, 10)
	ctx := context.Background()

	serial := merge(Serial(ctx, control.Chunks(), doubleGid))

	for _, workers := range []int{0, 1, 4, 32} {
		parallel := merge(Parallel(ctx, control.Chunks(), doubleGid, workers))
		assert.Equal(t, serial, parallel, "workers=%d", workers)
	}
}

func TestParallel_EmptyPlan(t *testing.T) {
	t.Parallel()

	control := testChunks(t, 0, 10)
	results := Parallel(context.Background(), control.Chunks(), doubleGid, 4)
	assert.Empty(t, results)
}
