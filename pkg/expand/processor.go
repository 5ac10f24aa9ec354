// Package expand grows the target graph from a target-level diff, prunes what is
// no longer reachable from the universe and reports the graph-wide consequences.
package expand

import (
	"context"
	"errors"
	"fmt"

	"github.com/ritzau/syncgraph/pkg/graph"
	"github.com/ritzau/syncgraph/pkg/logging"
	"github.com/ritzau/syncgraph/pkg/model"
)

// ErrQueryFailed wraps a dependency query failure. The graph is untouched when it is returned.
var ErrQueryFailed = errors.New("dependency query failed")

// DependencyQuery resolves direct dependencies for a set of targets. The result
// only mentions dependencies that are themselves in the queried set. It must either
// succeed for the whole set or return an error.
type DependencyQuery interface {
	DirectDependencies(ctx context.Context, targets []model.Label) (map[model.Label][]model.Label, error)
}

// GraphStore owns the graph a processor mutates.
type GraphStore interface {
	Get() *graph.TargetGraph
	Mark()
}

// Options controls a single pass
type Options struct {
	// Full discards the whole graph before applying the diff
	Full bool
}

// Processor applies target-level diffs to a graph. It is not safe for concurrent
// use; callers must not overlap passes on the same store.
type Processor struct {
	store GraphStore
	query DependencyQuery
}

func NewProcessor(store GraphStore, query DependencyQuery) *Processor {
	return &Processor{store: store, query: query}
}

// Process runs one expansion and pruning pass. The dependency query runs before any
// mutation, so a failed or cancelled query leaves the graph exactly as it was.
func (p *Processor) Process(ctx context.Context, diff model.ColdDiff, opts Options) (model.ColdDiff, error) {
	added := model.NewLabelSet(diff.Added()...)
	removed := model.NewLabelSet(diff.Removed()...)
	changed := model.NewLabelSet(diff.Changed()...)

	queried := append(diff.Added(), diff.Changed()...)

	deps := map[model.Label][]model.Label{}
	if len(queried) > 0 {
		var err error
		deps, err = p.query.DirectDependencies(ctx, queried)
		if err != nil {
			return model.ColdDiff{}, fmt.Errorf("%w: %w", ErrQueryFailed, err)
		}
	}
	if err := ctx.Err(); err != nil {
		return model.ColdDiff{}, err
	}

	// Nothing below can fail; the pass commits as a whole
	g := p.store.Get()
	if opts.Full {
		logging.DebugContext(ctx, "discarding graph for full resync", "vertices", g.Len())
		g.Clear()
	}

	for _, l := range queried {
		g.AddUniverseVertex(l)
	}
	for l := range removed {
		g.RemoveUniverseVertex(l)
	}

	for l := range changed {
		if id, ok := g.VertexID(l); ok {
			g.ClearSuccessors(id)
		}
	}

	// Results may describe targets outside the queried set (e.g. the rules of
	// direct dependencies). Their lists are merged without duplicating edges;
	// only changed targets have their edges replaced.
	reported := model.NewLabelSet()
	ensure := func(l model.Label) int64 {
		if !g.HasVertex(l) {
			added.Add(l)
			removed.Remove(l)
		}
		reported.Add(l)
		return g.AddVertex(l)
	}
	for _, target := range model.NewLabelSet(mapKeys(deps)...).Sorted() {
		from := ensure(target)
		replace := changed.Has(target)
		for _, dep := range deps[target] {
			to := ensure(dep)
			if replace || !g.HasEdgeFromTo(from, to) {
				g.AddEdge(from, to)
			}
		}
	}

	// A removed target that the query still reports as a dependency stays a
	// vertex; it only leaves the universe
	for l := range removed {
		if reported.Has(l) {
			continue
		}
		g.RemoveVertexByLabel(l)
	}

	unreachable := g.ComputeUnreachableVertices()
	orphans := 0
	for id := range unreachable {
		label, _ := g.Label(id)
		if added.Has(label) {
			added.Remove(label)
			orphans++
			continue
		}
		removed.Add(label)
	}
	g.RemoveAllVertices(unreachable)

	// A removal request for a target that survives through other edges is not reported
	for l := range removed {
		if g.HasVertex(l) {
			removed.Remove(l)
		}
	}

	p.store.Mark()

	result := model.NewColdDiff(added.Sorted(), removed.Sorted(), changed.Sorted())
	logging.InfoContext(ctx, "expanded target graph",
		"added", len(result.Added()),
		"removed", len(result.Removed()),
		"changed", len(result.Changed()),
		"pruned", len(unreachable),
		"orphans", orphans,
		"vertices", g.Len())
	return result, nil
}

func mapKeys(m map[model.Label][]model.Label) []model.Label {
	keys := make([]model.Label, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
