package output

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"github.com/ritzau/syncgraph/pkg/analysis"
	"github.com/ritzau/syncgraph/pkg/cycles"
	"github.com/ritzau/syncgraph/pkg/graph"
	"github.com/ritzau/syncgraph/pkg/model"
)

func init() {
	color.NoColor = true
}

func TestPrintDiff(t *testing.T) {
	var buf bytes.Buffer
	diff := model.NewColdDiff([]model.Label{"//a:a"}, []model.Label{"//b:b"}, []model.Label{"//c:c"})

	PrintDiff(&buf, diff, graph.Stats{Vertices: 3, Edges: 2, Universe: 1})

	out := buf.String()
	assert.Contains(t, out, "  + //a:a\n")
	assert.Contains(t, out, "  - //b:b\n")
	assert.Contains(t, out, "  ~ //c:c\n")
	assert.Contains(t, out, "Targets: 1 added, 1 removed, 1 changed")
	assert.Contains(t, out, "Graph: 3 vertices, 2 edges, 1 in universe")
}

func TestPrintDiffEmpty(t *testing.T) {
	var buf bytes.Buffer
	PrintDiff(&buf, model.ColdDiff{}, graph.Stats{})
	assert.Contains(t, buf.String(), "up to date")
}

func TestPrintGraphReport(t *testing.T) {
	g := graph.NewTargetGraph()
	a := g.AddUniverseVertex("//a:a")
	b := g.AddVertex("//b:b")
	g.AddEdge(a, b)
	g.AddEdge(b, a)

	var buf bytes.Buffer
	PrintGraphReport(&buf, "ws", g, cycles.FindTargetCycles(g))

	out := buf.String()
	assert.Contains(t, out, "Workspace: ws")
	assert.Contains(t, out, "//a:a (1 deps)")
	assert.Contains(t, out, "DEPENDENCY CYCLES: 1")
	assert.Contains(t, out, "//a:a -> //b:b")
}

func TestPrintPackageDependencies(t *testing.T) {
	var buf bytes.Buffer
	PrintPackageDependencies(&buf, []analysis.PackageDependency{
		{From: "//core", To: "//util", Edges: []analysis.Edge{{}, {}}},
	})
	assert.Equal(t, "PACKAGE DEPENDENCIES:\n  //core -> //util (2)\n\n", buf.String())

	buf.Reset()
	PrintPackageDependencies(&buf, nil)
	assert.Empty(t, buf.String())
}
