package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ritzau/syncgraph/pkg/model"
)

const (
	app  = model.Label("//main:app")
	core = model.Label("//core:core")
	util = model.Label("//util:util")
	log  = model.Label("//util:log")
)

func TestNewTargetGraph(t *testing.T) {
	g := NewTargetGraph()
	assert.Equal(t, 0, g.Len())
	assert.Equal(t, 0, g.EdgeCount())
	assert.Empty(t, g.Universe())
	assert.Empty(t, g.ComputeUnreachableVertices())
}

func TestAddVertexBijection(t *testing.T) {
	g := NewTargetGraph()

	for _, l := range []model.Label{app, core, util} {
		id := g.AddVertex(l)
		assert.NotEqual(t, EmptyID, id)

		got, ok := g.Label(id)
		require.True(t, ok)
		assert.Equal(t, l, got)

		back, ok := g.VertexID(l)
		require.True(t, ok)
		assert.Equal(t, id, back)
	}
}

func TestAddVertexIdempotent(t *testing.T) {
	g := NewTargetGraph()

	first := g.AddVertex(app)
	second := g.AddVertex(app)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, g.Len())
}

func TestIDsIncreaseAndAreNotReused(t *testing.T) {
	g := NewTargetGraph()

	a := g.AddVertex(app)
	b := g.AddVertex(core)
	assert.Greater(t, b, a)

	g.RemoveVertex(b)
	c := g.AddVertex(core)
	assert.Greater(t, c, b, "a removed id must not be handed out again")

	g.Clear()
	d := g.AddVertex(util)
	assert.Greater(t, d, c)
}

func TestEdgeSymmetry(t *testing.T) {
	g := NewTargetGraph()
	a := g.AddVertex(app)
	b := g.AddVertex(core)

	require.True(t, g.AddEdge(a, b))
	assert.Contains(t, g.Successors(a), b)
	assert.Contains(t, g.Predecessors(b), a)

	g.RemoveEdge(a, b)
	assert.NotContains(t, g.Successors(a), b)
	assert.NotContains(t, g.Predecessors(b), a)
	assert.Equal(t, 0, g.EdgeCount())
}

func TestDuplicateEdges(t *testing.T) {
	g := NewTargetGraph()
	a := g.AddVertex(app)
	b := g.AddVertex(core)

	g.AddEdge(a, b)
	g.AddEdge(a, b)

	assert.Equal(t, []int64{b, b}, g.Successors(a))
	assert.Equal(t, []int64{a, a}, g.Predecessors(b))
	assert.Equal(t, 2, g.EdgeCount())
	assert.Equal(t, []model.Label{core}, g.SuccessorLabels(app))

	// RemoveEdge drops every parallel edge
	g.RemoveEdge(a, b)
	assert.Empty(t, g.Successors(a))
	assert.Empty(t, g.Predecessors(b))
}

func TestAddEdgeRequiresLiveEndpoints(t *testing.T) {
	g := NewTargetGraph()
	a := g.AddVertex(app)

	assert.False(t, g.AddEdge(a, 42))
	assert.False(t, g.AddEdge(42, a))
	assert.Equal(t, 0, g.EdgeCount())
}

func TestRemoveVertexCascade(t *testing.T) {
	g := NewTargetGraph()
	a := g.AddVertex(app)
	c := g.AddVertex(core)
	u := g.AddVertex(util)

	g.AddEdge(a, c)
	g.AddEdge(c, u)
	g.AddEdge(a, u)
	g.AddEdge(c, c)
	g.AddUniverseVertex(core)

	label, ok := g.RemoveVertex(c)
	require.True(t, ok)
	assert.Equal(t, core, label)

	assert.False(t, g.HasVertex(core))
	assert.Equal(t, []int64{u}, g.Successors(a))
	assert.Equal(t, []int64{a}, g.Predecessors(u))
	assert.Empty(t, g.Successors(c))
	assert.Empty(t, g.Predecessors(c))
	assert.Empty(t, g.Universe(), "removing a vertex drops its universe membership")
	assert.Equal(t, 1, g.EdgeCount())
}

func TestUnknownIDsAreTotal(t *testing.T) {
	g := NewTargetGraph()

	assert.Empty(t, g.Successors(99))
	assert.Empty(t, g.Predecessors(99))

	_, ok := g.RemoveVertex(99)
	assert.False(t, ok)
	assert.False(t, g.RemoveVertexByLabel(app))

	g.RemoveEdge(1, 2)
	g.ClearSuccessors(7)
	g.RemoveUniverseVertex(app)
	assert.Equal(t, 0, g.Len())
}

func TestSuccessorsReturnsCopy(t *testing.T) {
	g := NewTargetGraph()
	a := g.AddVertex(app)
	b := g.AddVertex(core)
	g.AddEdge(a, b)

	succ := g.Successors(a)
	succ[0] = 1234

	assert.Equal(t, []int64{b}, g.Successors(a))
}

func TestClearSuccessors(t *testing.T) {
	g := NewTargetGraph()
	a := g.AddVertex(app)
	b := g.AddVertex(core)
	c := g.AddVertex(util)
	g.AddEdge(a, b)
	g.AddEdge(a, c)
	g.AddEdge(b, c)

	g.ClearSuccessors(a)

	assert.Empty(t, g.Successors(a))
	assert.Empty(t, g.Predecessors(b))
	assert.Equal(t, []int64{b}, g.Predecessors(c))
}

func TestUniverseMembership(t *testing.T) {
	g := NewTargetGraph()

	id := g.AddUniverseVertex(app)
	assert.True(t, g.HasVertex(app))
	assert.True(t, g.IsUniverse(id))
	assert.Equal(t, []model.Label{app}, g.UniverseLabels())

	g.RemoveUniverseVertex(app)
	assert.False(t, g.IsUniverse(id))
	assert.True(t, g.HasVertex(app), "leaving the universe keeps the vertex")

	// Removing an absent label is a no-op
	g.RemoveUniverseVertex(core)
}

func TestComputeUnreachableVertices(t *testing.T) {
	g := NewTargetGraph()
	a := g.AddUniverseVertex(app)
	c := g.AddVertex(core)
	u := g.AddVertex(util)
	l := g.AddVertex(log)
	orphan := g.AddVertex("//orphan:orphan")

	g.AddEdge(a, c)
	g.AddEdge(c, u)
	// log depends on util but nothing reaches log
	g.AddEdge(l, u)

	unreachable := g.ComputeUnreachableVertices()

	assert.Equal(t, map[int64]struct{}{l: {}, orphan: {}}, unreachable)
}

func TestComputeUnreachableIncludesLeafVertices(t *testing.T) {
	// Vertices with no outgoing edges at all must still be classified
	g := NewTargetGraph()
	a := g.AddUniverseVertex(app)
	leaf := g.AddVertex(util)
	isolated := g.AddVertex(log)
	g.AddEdge(a, leaf)

	unreachable := g.ComputeUnreachableVertices()

	assert.NotContains(t, unreachable, leaf)
	assert.NotContains(t, unreachable, a)
	assert.Contains(t, unreachable, isolated)
}

func TestComputeUnreachableHandlesCycles(t *testing.T) {
	g := NewTargetGraph()
	a := g.AddUniverseVertex(app)
	c := g.AddVertex(core)
	u := g.AddVertex(util)
	x := g.AddVertex("//x:x")
	y := g.AddVertex("//y:y")

	g.AddEdge(a, c)
	g.AddEdge(c, u)
	g.AddEdge(u, c)
	g.AddEdge(x, y)
	g.AddEdge(y, x)

	unreachable := g.ComputeUnreachableVertices()
	assert.Equal(t, map[int64]struct{}{x: {}, y: {}}, unreachable)

	g.RemoveAllVertices(unreachable)
	assert.Empty(t, g.ComputeUnreachableVertices())
	assert.Equal(t, 3, g.Len())
}

func TestLabelsInPackage(t *testing.T) {
	g := NewTargetGraph()
	g.AddVertex(util)
	g.AddVertex(log)
	g.AddVertex(core)
	g.AddVertex("//util/sub:sub")

	assert.Equal(t, []model.Label{log, util}, g.LabelsInPackage("//util"))
	assert.Empty(t, g.LabelsInPackage("//missing"))
}

func TestGonumView(t *testing.T) {
	g := NewTargetGraph()
	a := g.AddVertex(app)
	c := g.AddVertex(core)
	g.AddEdge(a, c)
	g.AddEdge(a, c)

	assert.NotNil(t, g.Node(a))
	assert.Nil(t, g.Node(99))
	assert.Equal(t, 2, g.Nodes().Len())
	assert.Equal(t, 1, g.From(a).Len(), "parallel edges collapse in the gonum view")
	assert.Equal(t, 1, g.To(c).Len())
	assert.True(t, g.HasEdgeFromTo(a, c))
	assert.False(t, g.HasEdgeFromTo(c, a))
	assert.True(t, g.HasEdgeBetween(c, a))
	assert.NotNil(t, g.Edge(a, c))
	assert.Nil(t, g.Edge(c, a))
}
