package bazel

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ritzau/syncgraph/pkg/logging"
	"github.com/ritzau/syncgraph/pkg/model"
)

// GraphView is the read-only part of the target graph the mapper consults
type GraphView interface {
	HasVertex(label model.Label) bool
	LabelsInPackage(pkg string) []model.Label
}

// Mapping is the target-level translation of a file-level diff
type Mapping struct {
	Diff model.ColdDiff
	// FullResync is set when a workspace root file changed and no incremental
	// translation is meaningful
	FullResync bool
}

// Mapper translates changed build definition files into changed targets.
type Mapper struct {
	executor  Executor
	workspace string
	patterns  []string
	opts      QueryOptions
}

func NewMapper(executor Executor, workspace string, patterns []string, opts QueryOptions) *Mapper {
	return &Mapper{
		executor:  executor,
		workspace: workspace,
		patterns:  patterns,
		opts:      opts.withDefaults(),
	}
}

// MapFiles translates a file diff:
//   - added or changed BUILD files yield their package's rules, reported as changed when
//     the graph already has them and as added otherwise; graph targets of the package
//     that the query no longer reports are removed
//   - removed BUILD files yield every graph target of their package as removed
//   - .bzl files yield the rules of every package loading them, as changed, with the
//     same removal rule
//   - a workspace root file requests a full resync
func (m *Mapper) MapFiles(ctx context.Context, diff model.FileDiff, view GraphView) (Mapping, error) {
	var (
		added, removed, changed []model.Label
		present                 = make(map[string]struct{})
		gone                    = make(map[string]struct{})
		dependencyFiles         []string
	)

	groups := []struct {
		state   model.ChangeState
		entries []model.FileEntry
	}{
		{model.ChangeAdded, diff.Added},
		{model.ChangeRemoved, diff.Removed},
		{model.ChangeChanged, diff.Changed},
	}
	for _, group := range groups {
		for _, e := range group.entries {
			switch e.Kind {
			case model.FileKindWorkspaceRoot:
				logging.InfoContext(ctx, "workspace root file changed, full resync required", "path", e.Path)
				return Mapping{FullResync: true}, nil
			case model.FileKindBuild:
				if group.state == model.ChangeRemoved {
					gone[packageOf(e.Path)] = struct{}{}
				} else {
					present[packageOf(e.Path)] = struct{}{}
				}
			case model.FileKindDependency:
				dependencyFiles = append(dependencyFiles, e.Path)
			}
		}
	}

	// BUILD replaced by BUILD.bazel (or back) keeps the package alive
	for pkg := range gone {
		if _, ok := present[pkg]; !ok {
			removed = append(removed, view.LabelsInPackage(pkg)...)
		}
	}

	if len(dependencyFiles) > 0 {
		pkgs, err := m.loadingPackages(ctx, dependencyFiles)
		if err != nil {
			return Mapping{}, err
		}
		loading := without(pkgs, present)
		fromDeps, err := m.TargetsInPackages(ctx, loading)
		if err != nil {
			return Mapping{}, err
		}
		changed = append(changed, fromDeps...)
		removed = append(removed, vanished(view, loading, fromDeps)...)
	}

	edited := keys(present)
	targets, err := m.TargetsInPackages(ctx, edited)
	if err != nil {
		return Mapping{}, err
	}
	removed = append(removed, vanished(view, edited, targets)...)
	for _, l := range targets {
		if view.HasVertex(l) {
			changed = append(changed, l)
		} else {
			added = append(added, l)
		}
	}

	out := Mapping{Diff: model.NewColdDiff(added, removed, changed)}
	logging.DebugContext(ctx, "mapped files to targets",
		"files", diff.Len(),
		"added", len(out.Diff.Added()),
		"removed", len(out.Diff.Removed()),
		"changed", len(out.Diff.Changed()))
	return out, nil
}

// TargetsInPackages returns the rules of the given packages that match the configured patterns
func (m *Mapper) TargetsInPackages(ctx context.Context, pkgs []string) ([]model.Label, error) {
	if len(pkgs) == 0 {
		return nil, nil
	}
	slices.Sort(pkgs)

	var mu sync.Mutex
	found := make(model.LabelSet)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(m.opts.Parallelism)
	for _, batch := range chunk(pkgs, m.opts.BatchSize) {
		g.Go(func() error {
			all := make([]string, len(batch))
			for i, p := range batch {
				all[i] = p + ":all"
			}
			expr := fmt.Sprintf("kind(rule, set(%s)) intersect (%s)", strings.Join(all, " "), patternExpr(m.patterns))
			out, err := m.executor.Run(ctx, m.workspace, queryArgs(expr, "label", m.opts.KeepGoing)...)
			if err != nil {
				return err
			}

			mu.Lock()
			defer mu.Unlock()
			for _, l := range ParseLabelOutput(out) {
				found.Add(l)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return found.Sorted(), nil
}

// loadingPackages returns the packages whose BUILD files load any of the given files
func (m *Mapper) loadingPackages(ctx context.Context, files []string) ([]string, error) {
	slices.Sort(files)
	expr := fmt.Sprintf("rbuildfiles(%s)", strings.Join(files, ", "))
	out, err := m.executor.Run(ctx, m.workspace, queryArgs(expr, "label", m.opts.KeepGoing)...)
	if err != nil {
		return nil, err
	}

	pkgs := make(map[string]struct{})
	for _, l := range ParseLabelOutput(out) {
		if l.IsMainRepo() {
			pkgs[l.Package()] = struct{}{}
		}
	}
	return keys(pkgs), nil
}

// vanished returns the graph targets of pkgs missing from current
func vanished(view GraphView, pkgs []string, current []model.Label) []model.Label {
	live := model.NewLabelSet(current...)
	var out []model.Label
	for _, pkg := range pkgs {
		for _, l := range view.LabelsInPackage(pkg) {
			if !live.Has(l) {
				out = append(out, l)
			}
		}
	}
	return out
}

func keys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

func without(items []string, exclude map[string]struct{}) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if _, skip := exclude[it]; !skip {
			out = append(out, it)
		}
	}
	return out
}
