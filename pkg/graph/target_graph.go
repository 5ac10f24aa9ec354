package graph

import (
	"slices"
	"strings"

	"github.com/ritzau/syncgraph/pkg/model"
)

// EmptyID is never assigned to a vertex. Lookups that miss return it.
const EmptyID int64 = 0

// TargetGraph is a directed multigraph over dense vertex ids, each bound to a target label.
// An edge from -> to means "from depends on to". A subset of vertices forms the universe:
// the synchronization roots every other vertex must be reachable from after pruning.
//
// TargetGraph is not safe for concurrent use; callers serialize access.
type TargetGraph struct {
	nextID       int64
	universe     map[int64]struct{}
	id2Label     map[int64]model.Label
	label2ID     map[model.Label]int64
	successors   map[int64][]int64
	predecessors map[int64][]int64
}

// NewTargetGraph creates an empty target graph.
func NewTargetGraph() *TargetGraph {
	return &TargetGraph{
		nextID:       1,
		universe:     make(map[int64]struct{}),
		id2Label:     make(map[int64]model.Label),
		label2ID:     make(map[model.Label]int64),
		successors:   make(map[int64][]int64),
		predecessors: make(map[int64][]int64),
	}
}

// AddVertex returns the id bound to label, creating a vertex if none exists.
func (g *TargetGraph) AddVertex(label model.Label) int64 {
	if id, ok := g.label2ID[label]; ok {
		return id
	}
	id := g.nextID
	g.nextID++
	g.id2Label[id] = label
	g.label2ID[label] = id
	return id
}

// HasVertex reports whether a live vertex exists for label.
func (g *TargetGraph) HasVertex(label model.Label) bool {
	_, ok := g.label2ID[label]
	return ok
}

// VertexID returns the id bound to label.
func (g *TargetGraph) VertexID(label model.Label) (int64, bool) {
	id, ok := g.label2ID[label]
	return id, ok
}

// Label returns the label bound to id.
func (g *TargetGraph) Label(id int64) (model.Label, bool) {
	label, ok := g.id2Label[id]
	return label, ok
}

func (g *TargetGraph) isLive(id int64) bool {
	_, ok := g.id2Label[id]
	return ok
}

// RemoveVertex removes the vertex, every edge incident to it, its universe membership
// and its label mapping. It returns false if id is not live.
func (g *TargetGraph) RemoveVertex(id int64) (model.Label, bool) {
	label, ok := g.id2Label[id]
	if !ok {
		return "", false
	}
	delete(g.id2Label, id)
	delete(g.label2ID, label)
	delete(g.universe, id)

	for _, succ := range g.successors[id] {
		if succ == id {
			continue
		}
		g.predecessors[succ] = removeAll(g.predecessors[succ], id)
		if len(g.predecessors[succ]) == 0 {
			delete(g.predecessors, succ)
		}
	}
	for _, pred := range g.predecessors[id] {
		if pred == id {
			continue
		}
		g.successors[pred] = removeAll(g.successors[pred], id)
		if len(g.successors[pred]) == 0 {
			delete(g.successors, pred)
		}
	}
	delete(g.successors, id)
	delete(g.predecessors, id)

	return label, true
}

// RemoveVertexByLabel removes the vertex bound to label, if any.
func (g *TargetGraph) RemoveVertexByLabel(label model.Label) bool {
	id, ok := g.label2ID[label]
	if !ok {
		return false
	}
	_, removed := g.RemoveVertex(id)
	return removed
}

// RemoveAllVertices removes every listed vertex. Ids that are not live are ignored.
func (g *TargetGraph) RemoveAllVertices(ids map[int64]struct{}) {
	for id := range ids {
		g.RemoveVertex(id)
	}
}

// AddEdge records that from depends on to. Duplicate edges are kept.
// Both endpoints must be live; otherwise the call is a no-op and returns false.
func (g *TargetGraph) AddEdge(from, to int64) bool {
	if !g.isLive(from) || !g.isLive(to) {
		return false
	}
	g.successors[from] = append(g.successors[from], to)
	g.predecessors[to] = append(g.predecessors[to], from)
	return true
}

// RemoveEdge removes every edge from -> to.
func (g *TargetGraph) RemoveEdge(from, to int64) {
	if succ, ok := g.successors[from]; ok {
		succ = removeAll(succ, to)
		if len(succ) == 0 {
			delete(g.successors, from)
		} else {
			g.successors[from] = succ
		}
	}
	if pred, ok := g.predecessors[to]; ok {
		pred = removeAll(pred, from)
		if len(pred) == 0 {
			delete(g.predecessors, to)
		} else {
			g.predecessors[to] = pred
		}
	}
}

// ClearSuccessors removes all outgoing edges of id.
func (g *TargetGraph) ClearSuccessors(id int64) {
	for _, succ := range g.successors[id] {
		pred := removeAll(g.predecessors[succ], id)
		if len(pred) == 0 {
			delete(g.predecessors, succ)
		} else {
			g.predecessors[succ] = pred
		}
	}
	delete(g.successors, id)
}

// Successors returns a copy of the successor list of id, duplicates included.
// Unknown ids yield an empty list.
func (g *TargetGraph) Successors(id int64) []int64 {
	return slices.Clone(g.successors[id])
}

// Predecessors returns a copy of the predecessor list of id, duplicates included.
// Unknown ids yield an empty list.
func (g *TargetGraph) Predecessors(id int64) []int64 {
	return slices.Clone(g.predecessors[id])
}

// SuccessorLabels returns the distinct labels label depends on, sorted.
func (g *TargetGraph) SuccessorLabels(label model.Label) []model.Label {
	return g.labelsOf(g.successors[g.label2ID[label]])
}

// PredecessorLabels returns the distinct labels depending on label, sorted.
func (g *TargetGraph) PredecessorLabels(label model.Label) []model.Label {
	return g.labelsOf(g.predecessors[g.label2ID[label]])
}

func (g *TargetGraph) labelsOf(ids []int64) []model.Label {
	set := make(model.LabelSet, len(ids))
	for _, id := range ids {
		if l, ok := g.id2Label[id]; ok {
			set.Add(l)
		}
	}
	return set.Sorted()
}

// AddUniverseVertex makes label a synchronization root, creating its vertex if needed.
func (g *TargetGraph) AddUniverseVertex(label model.Label) int64 {
	id := g.AddVertex(label)
	g.universe[id] = struct{}{}
	return id
}

// RemoveUniverseVertex drops label from the root set. The vertex itself stays.
func (g *TargetGraph) RemoveUniverseVertex(label model.Label) {
	if id, ok := g.label2ID[label]; ok {
		delete(g.universe, id)
	}
}

// IsUniverse reports whether id is a synchronization root.
func (g *TargetGraph) IsUniverse(id int64) bool {
	_, ok := g.universe[id]
	return ok
}

// Universe returns the root ids in ascending order.
func (g *TargetGraph) Universe() []int64 {
	ids := make([]int64, 0, len(g.universe))
	for id := range g.universe {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// UniverseLabels returns the root labels, sorted.
func (g *TargetGraph) UniverseLabels() []model.Label {
	return g.labelsOf(g.Universe())
}

// VertexIDs returns every live id in ascending order.
func (g *TargetGraph) VertexIDs() []int64 {
	ids := make([]int64, 0, len(g.id2Label))
	for id := range g.id2Label {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Labels returns every live label, sorted.
func (g *TargetGraph) Labels() []model.Label {
	set := make(model.LabelSet, len(g.label2ID))
	for l := range g.label2ID {
		set.Add(l)
	}
	return set.Sorted()
}

// LabelsInPackage returns the live labels whose package is pkg (e.g., "//main").
func (g *TargetGraph) LabelsInPackage(pkg string) []model.Label {
	set := make(model.LabelSet)
	prefix := pkg + ":"
	for l := range g.label2ID {
		if strings.HasPrefix(string(l), prefix) {
			set.Add(l)
		}
	}
	return set.Sorted()
}

// Len returns the number of live vertices.
func (g *TargetGraph) Len() int {
	return len(g.id2Label)
}

// EdgeCount returns the number of edges, duplicates included.
func (g *TargetGraph) EdgeCount() int {
	n := 0
	for _, succ := range g.successors {
		n += len(succ)
	}
	return n
}

// Clear discards every vertex, edge and root. Ids keep increasing across a clear.
func (g *TargetGraph) Clear() {
	next := g.nextID
	*g = *NewTargetGraph()
	g.nextID = next
}

// Stats summarizes the graph
type Stats struct {
	Vertices int `json:"vertices"`
	Edges    int `json:"edges"`
	Universe int `json:"universe"`
}

// Stats returns the vertex, edge and universe counts.
func (g *TargetGraph) Stats() Stats {
	return Stats{
		Vertices: g.Len(),
		Edges:    g.EdgeCount(),
		Universe: len(g.universe),
	}
}

// ComputeUnreachableVertices returns every live vertex that is neither a root nor
// reachable from one over successor edges. The traversal covers the full live-id set,
// so vertices without outgoing edges are classified like any other.
func (g *TargetGraph) ComputeUnreachableVertices() map[int64]struct{} {
	visited := g.reachableFromUniverse()
	unreachable := make(map[int64]struct{})
	for id := range g.id2Label {
		if !visited(id) {
			unreachable[id] = struct{}{}
		}
	}
	return unreachable
}

func removeAll(ids []int64, target int64) []int64 {
	return slices.DeleteFunc(ids, func(id int64) bool { return id == target })
}
