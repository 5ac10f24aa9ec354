package cycles

import (
	"testing"

	"github.com/ritzau/syncgraph/pkg/graph"
	"github.com/ritzau/syncgraph/pkg/model"
)

func addDependency(g *graph.TargetGraph, from, to model.Label) {
	g.AddEdge(g.AddVertex(from), g.AddVertex(to))
}

func TestFindTargetCycles_NoCycles(t *testing.T) {
	g := graph.NewTargetGraph()

	// A simple acyclic chain: app -> core -> util
	addDependency(g, "//main:app", "//core:core")
	addDependency(g, "//core:core", "//util:util")

	cycles := FindTargetCycles(g)

	if len(cycles) != 0 {
		t.Errorf("Expected no cycles, but found %d", len(cycles))
	}
}

func TestFindTargetCycles_SimpleCycle(t *testing.T) {
	g := graph.NewTargetGraph()

	addDependency(g, "//a:a", "//b:b")
	addDependency(g, "//b:b", "//a:a")

	cycles := FindTargetCycles(g)

	if len(cycles) != 1 {
		t.Fatalf("Expected 1 cycle, but found %d", len(cycles))
	}

	got := cycles[0].Targets
	if len(got) != 2 || got[0] != "//a:a" || got[1] != "//b:b" {
		t.Errorf("Expected cycle [//a:a //b:b], got %v", got)
	}
}

func TestFindTargetCycles_SelfEdge(t *testing.T) {
	g := graph.NewTargetGraph()

	addDependency(g, "//a:a", "//a:a")
	addDependency(g, "//a:a", "//b:b")

	cycles := FindTargetCycles(g)

	if len(cycles) != 1 || len(cycles[0].Targets) != 1 {
		t.Fatalf("Expected a single self cycle, got %v", cycles)
	}
}

func TestFindTargetCycles_MultipleCycles(t *testing.T) {
	g := graph.NewTargetGraph()

	addDependency(g, "//a:a", "//b:b")
	addDependency(g, "//b:b", "//c:c")
	addDependency(g, "//c:c", "//a:a")
	addDependency(g, "//x:x", "//y:y")
	addDependency(g, "//y:y", "//x:x")
	addDependency(g, "//c:c", "//x:x")

	cycles := FindTargetCycles(g)

	if len(cycles) != 2 {
		t.Fatalf("Expected 2 cycles, but found %d", len(cycles))
	}
	if len(cycles[0].Targets) != 3 {
		t.Errorf("Expected first cycle of length 3, got %d", len(cycles[0].Targets))
	}
	if len(cycles[1].Targets) != 2 {
		t.Errorf("Expected second cycle of length 2, got %d", len(cycles[1].Targets))
	}
}
