package cycles

import (
	"sort"

	"gonum.org/v1/gonum/graph/topo"

	"github.com/ritzau/syncgraph/pkg/graph"
	"github.com/ritzau/syncgraph/pkg/model"
)

// TargetCycle represents a circular dependency between build targets
type TargetCycle struct {
	Targets []model.Label `json:"targets"` // Sorted labels in the strongly connected component
}

// FindTargetCycles finds all circular dependencies in the target graph.
// A component counts as a cycle if it has more than one target or a self edge.
func FindTargetCycles(g *graph.TargetGraph) []TargetCycle {
	sccs := topo.TarjanSCC(g)

	cycles := make([]TargetCycle, 0)
	for _, scc := range sccs {
		if len(scc) == 1 && !g.HasEdgeFromTo(scc[0].ID(), scc[0].ID()) {
			continue
		}

		targets := make(model.LabelSet, len(scc))
		for _, node := range scc {
			if label, ok := g.Label(node.ID()); ok {
				targets.Add(label)
			}
		}
		cycles = append(cycles, TargetCycle{Targets: targets.Sorted()})
	}

	// Deterministic order: by first label
	sort.Slice(cycles, func(i, j int) bool {
		return cycles[i].Targets[0] < cycles[j].Targets[0]
	})

	return cycles
}
