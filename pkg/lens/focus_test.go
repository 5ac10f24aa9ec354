package lens

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ritzau/syncgraph/pkg/graph"
	"github.com/ritzau/syncgraph/pkg/model"
)

// app -> engine -> strings, tool -> strings, island is disconnected
func buildGraph() *graph.TargetGraph {
	g := graph.NewTargetGraph()
	app := g.AddUniverseVertex("//main:app")
	tool := g.AddUniverseVertex("//main:tool")
	engine := g.AddVertex("//core:engine")
	strs := g.AddVertex("//util:strings")
	g.AddUniverseVertex("//island:island")

	g.AddEdge(app, engine)
	g.AddEdge(engine, strs)
	g.AddEdge(tool, strs)
	return g
}

func TestComputeDistances(t *testing.T) {
	tests := []struct {
		name     string
		selected []string
		want     map[model.Label]int
	}{
		{
			name:     "single target walks both directions",
			selected: []string{"//core:engine"},
			want: map[model.Label]int{
				"//core:engine":  0,
				"//main:app":     1,
				"//util:strings": 1,
				"//main:tool":    2,
			},
		},
		{
			name:     "package selects all its targets",
			selected: []string{"//main"},
			want: map[model.Label]int{
				"//main:app":     0,
				"//main:tool":    0,
				"//core:engine":  1,
				"//util:strings": 1,
			},
		},
		{
			name:     "unknown selection",
			selected: []string{"//nope:nope", "//nope", "bad:label:"},
			want:     map[model.Label]int{},
		},
		{
			name:     "nothing selected",
			selected: nil,
			want:     map[model.Label]int{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeDistances(buildGraph(), tt.selected))
		})
	}
}

func TestFocusApply(t *testing.T) {
	g := buildGraph()

	near := Focus{Selected: []string{"//main:app"}, MaxDistance: 1}.Apply(g)
	assert.Equal(t, map[model.Label]int{"//main:app": 0, "//core:engine": 1}, near)

	all := Focus{Selected: []string{"//main:app"}, MaxDistance: Unlimited}.Apply(g)
	assert.Len(t, all, 4)
	assert.NotContains(t, all, model.Label("//island:island"))
}
