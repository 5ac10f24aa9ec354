package lens

import (
	"strings"

	"github.com/ritzau/syncgraph/pkg/graph"
	"github.com/ritzau/syncgraph/pkg/model"
)

// Unlimited disables the distance bound of a Focus
const Unlimited = -1

// Focus selects the part of a target graph around a set of selected targets or packages
type Focus struct {
	// Selected holds target labels ("//main:app") or packages ("//main")
	Selected []string
	// MaxDistance bounds the undirected hop distance from the selection
	MaxDistance int
}

// distanceQueueNode represents a node in the BFS queue
type distanceQueueNode struct {
	id       int64
	distance int
}

// expandSelection resolves packages to their targets. Unknown entries are dropped.
// For example, "//main" becomes ["//main:app", "//main:lib"].
func expandSelection(g *graph.TargetGraph, selected []string) []int64 {
	var ids []int64
	for _, s := range selected {
		if !strings.Contains(s, ":") {
			for _, l := range g.LabelsInPackage(strings.TrimSuffix(s, "/")) {
				id, _ := g.VertexID(l)
				ids = append(ids, id)
			}
			continue
		}
		label, err := model.ParseLabel(s)
		if err != nil {
			continue
		}
		if id, ok := g.VertexID(label); ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// ComputeDistances calculates the shortest undirected distance from each target to the
// nearest selected one. Targets missing from the result are infinitely far away.
func ComputeDistances(g *graph.TargetGraph, selected []string) map[model.Label]int {
	dist := make(map[int64]int)

	queue := []distanceQueueNode{}
	for _, id := range expandSelection(g, selected) {
		if _, seen := dist[id]; seen {
			continue
		}
		dist[id] = 0
		queue = append(queue, distanceQueueNode{id: id})
	}

	// Dependencies and dependents are both one hop away
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		neighbours := append(g.Successors(current.id), g.Predecessors(current.id)...)
		for _, next := range neighbours {
			if _, seen := dist[next]; seen {
				continue
			}
			dist[next] = current.distance + 1
			queue = append(queue, distanceQueueNode{id: next, distance: current.distance + 1})
		}
	}

	out := make(map[model.Label]int, len(dist))
	for id, d := range dist {
		if l, ok := g.Label(id); ok {
			out[l] = d
		}
	}
	return out
}

// Apply returns the distance of every target inside the focus
func (f Focus) Apply(g *graph.TargetGraph) map[model.Label]int {
	dist := ComputeDistances(g, f.Selected)
	if f.MaxDistance < 0 {
		return dist
	}
	for l, d := range dist {
		if d > f.MaxDistance {
			delete(dist, l)
		}
	}
	return dist
}
