package graph

import (
	gonum "gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/iterator"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/traverse"
)

// TargetGraph exposes a gonum view so gonum's traversal and topology
// algorithms can run on it directly. Duplicate edges collapse to one.
var _ gonum.Directed = (*TargetGraph)(nil)

// Node returns the node with the given id, or nil if it is not live.
func (g *TargetGraph) Node(id int64) gonum.Node {
	if !g.isLive(id) {
		return nil
	}
	return simple.Node(id)
}

// Nodes returns all live nodes in ascending id order.
func (g *TargetGraph) Nodes() gonum.Nodes {
	return toNodes(g.VertexIDs())
}

// From returns the distinct successors of id.
func (g *TargetGraph) From(id int64) gonum.Nodes {
	return toNodes(distinct(g.successors[id]))
}

// To returns the distinct predecessors of id.
func (g *TargetGraph) To(id int64) gonum.Nodes {
	return toNodes(distinct(g.predecessors[id]))
}

// HasEdgeBetween reports whether an edge exists between xid and yid in either direction.
func (g *TargetGraph) HasEdgeBetween(xid, yid int64) bool {
	return g.HasEdgeFromTo(xid, yid) || g.HasEdgeFromTo(yid, xid)
}

// HasEdgeFromTo reports whether uid depends directly on vid.
func (g *TargetGraph) HasEdgeFromTo(uid, vid int64) bool {
	for _, succ := range g.successors[uid] {
		if succ == vid {
			return true
		}
	}
	return false
}

// Edge returns the edge uid -> vid, or nil if none exists.
func (g *TargetGraph) Edge(uid, vid int64) gonum.Edge {
	if !g.HasEdgeFromTo(uid, vid) {
		return nil
	}
	return simple.Edge{F: simple.Node(uid), T: simple.Node(vid)}
}

// reachableFromUniverse runs one breadth-first walk per root, sharing the visited set,
// and returns a membership test over that set.
func (g *TargetGraph) reachableFromUniverse() func(id int64) bool {
	var bfs traverse.BreadthFirst
	for _, id := range g.Universe() {
		root := simple.Node(id)
		if bfs.Visited(root) {
			continue
		}
		bfs.Walk(g, root, nil)
	}
	return func(id int64) bool {
		return bfs.Visited(simple.Node(id))
	}
}

func toNodes(ids []int64) gonum.Nodes {
	if len(ids) == 0 {
		return gonum.Empty
	}
	nodes := make([]gonum.Node, len(ids))
	for i, id := range ids {
		nodes[i] = simple.Node(id)
	}
	return iterator.NewOrderedNodes(nodes)
}

func distinct(ids []int64) []int64 {
	if len(ids) < 2 {
		return ids
	}
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
