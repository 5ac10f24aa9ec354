package output

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/ritzau/syncgraph/pkg/analysis"
	"github.com/ritzau/syncgraph/pkg/cycles"
	"github.com/ritzau/syncgraph/pkg/graph"
	"github.com/ritzau/syncgraph/pkg/model"
)

// PrintDiff prints a sync result with one colored line per target
func PrintDiff(w io.Writer, diff model.ColdDiff, stats graph.Stats) {
	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	yellow := color.New(color.FgYellow)

	bold.Fprintln(w, "Sync Result")
	bold.Fprintln(w, "===========")

	if diff.IsEmpty() {
		green.Fprintln(w, "✓ Target graph is up to date")
	}
	for _, l := range diff.Added() {
		green.Fprintf(w, "  + %s\n", l)
	}
	for _, l := range diff.Removed() {
		red.Fprintf(w, "  - %s\n", l)
	}
	for _, l := range diff.Changed() {
		yellow.Fprintf(w, "  ~ %s\n", l)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Targets: %d added, %d removed, %d changed\n",
		len(diff.Added()), len(diff.Removed()), len(diff.Changed()))
	printStats(w, stats)
}

// PrintGraphReport prints graph statistics, the universe and any dependency cycles
func PrintGraphReport(w io.Writer, workspace string, g *graph.TargetGraph, found []cycles.TargetCycle) {
	bold := color.New(color.Bold)
	red := color.New(color.FgRed)
	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan)

	bold.Fprintln(w, "Target Graph")
	bold.Fprintln(w, "============")
	fmt.Fprintf(w, "Workspace: %s\n", workspace)
	printStats(w, g.Stats())
	fmt.Fprintln(w)

	universe := g.UniverseLabels()
	if len(universe) > 0 {
		bold.Fprintln(w, "UNIVERSE:")
		for _, l := range universe {
			cyan.Fprintf(w, "  %s", l)
			fmt.Fprintf(w, " (%d deps)\n", len(g.SuccessorLabels(l)))
		}
		fmt.Fprintln(w)
	}

	if len(found) == 0 {
		green.Fprintln(w, "✓ No dependency cycles")
		return
	}
	red.Fprintf(w, "DEPENDENCY CYCLES: %d\n", len(found))
	for i, c := range found {
		fmt.Fprintf(w, "  %d. ", i+1)
		for j, l := range c.Targets {
			if j > 0 {
				fmt.Fprint(w, " -> ")
			}
			fmt.Fprint(w, l)
		}
		fmt.Fprintln(w)
	}
}

// PrintPackageDependencies prints one line per package pair with its edge count
func PrintPackageDependencies(w io.Writer, deps []analysis.PackageDependency) {
	if len(deps) == 0 {
		return
	}
	bold := color.New(color.Bold)
	bold.Fprintln(w, "PACKAGE DEPENDENCIES:")
	for _, d := range deps {
		fmt.Fprintf(w, "  %s -> %s (%d)\n", d.From, d.To, len(d.Edges))
	}
	fmt.Fprintln(w)
}

func printStats(w io.Writer, stats graph.Stats) {
	fmt.Fprintf(w, "Graph: %d vertices, %d edges, %d in universe\n", stats.Vertices, stats.Edges, stats.Universe)
}
