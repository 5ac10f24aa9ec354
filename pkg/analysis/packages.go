package analysis

import (
	"cmp"
	"slices"

	"github.com/ritzau/syncgraph/pkg/graph"
	"github.com/ritzau/syncgraph/pkg/model"
)

// Edge represents a single dependency edge between targets
type Edge struct {
	FromTarget model.Label `json:"fromTarget"`
	ToTarget   model.Label `json:"toTarget"`
}

// PackageDependency aggregates the target edges from one package into another
type PackageDependency struct {
	From  string `json:"from"` // e.g., "//core"
	To    string `json:"to"`   // e.g., "//util"
	Edges []Edge `json:"edges"`
}

// FindPackageDependencies groups every cross-package edge of g by package pair.
// Edges within a package are skipped; parallel edges count once.
// The result is sorted by From, then To.
func FindPackageDependencies(g *graph.TargetGraph) []PackageDependency {
	byPair := make(map[[2]string]*PackageDependency)

	for _, from := range g.Labels() {
		for _, to := range g.SuccessorLabels(from) {
			fromPkg, toPkg := from.Package(), to.Package()
			if fromPkg == toPkg {
				continue
			}

			key := [2]string{fromPkg, toPkg}
			dep, ok := byPair[key]
			if !ok {
				dep = &PackageDependency{From: fromPkg, To: toPkg}
				byPair[key] = dep
			}
			dep.Edges = append(dep.Edges, Edge{FromTarget: from, ToTarget: to})
		}
	}

	result := make([]PackageDependency, 0, len(byPair))
	for _, dep := range byPair {
		result = append(result, *dep)
	}
	slices.SortFunc(result, func(a, b PackageDependency) int {
		return cmp.Or(cmp.Compare(a.From, b.From), cmp.Compare(a.To, b.To))
	})
	return result
}

// PackageDependencies returns the dependencies leaving or entering pkg
func PackageDependencies(g *graph.TargetGraph, pkg string) []PackageDependency {
	var out []PackageDependency
	for _, dep := range FindPackageDependencies(g) {
		if dep.From == pkg || dep.To == pkg {
			out = append(out, dep)
		}
	}
	return out
}
