package gen

import (
	"context"

	"github.com/clhughes/reV/internal/ctxlog"
	"github.com/clhughes/reV/internal/sim"
)

// Update is the tagged variant of result-table mutations: either a set of
// records to merge or a clear. Consumed by exhaustive matching in Apply.
type Update interface{ isUpdate() }

// Merge folds one chunk's records into the table.
type Merge struct{ Records sim.Records }

// Clear drops the resident table.
type Clear struct{}

func (Merge) isUpdate() {}
func (Clear) isUpdate() {}

// Apply mutates the result table. Only the single collector goroutine may
// call it. Under correct chunk partitioning a gid is merged exactly once
// between clears; a duplicate is an invariant violation that is diagnosed
// loudly, with last write winning.
func (g *Gen) Apply(ctx context.Context, u Update) {
	switch v := u.(type) {
	case Merge:
		logger := ctxlog.FromContext(ctx)
		for gid, rec := range v.Records {
			if _, dup := g.out[gid]; dup {
				logger.Error("invariant violation: site gid merged twice between flushes",
					"gid", gid)
			}
			g.out[gid] = rec
		}
	case Clear:
		g.out = make(map[int]sim.Record)
	default:
		panic("gen: unknown result update variant")
	}
}
