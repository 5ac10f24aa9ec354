package bazel

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ritzau/syncgraph/pkg/logging"
	"github.com/ritzau/syncgraph/pkg/model"
)

// QueryOptions tunes how large target sets are split into bazel invocations
type QueryOptions struct {
	BatchSize   int
	Parallelism int
	KeepGoing   bool
}

func (o QueryOptions) withDefaults() QueryOptions {
	if o.BatchSize <= 0 {
		o.BatchSize = 200
	}
	if o.Parallelism <= 0 {
		o.Parallelism = 1
	}
	return o
}

// DependencyQuery resolves direct dependencies with `deps(set(...), 1)`.
type DependencyQuery struct {
	executor  Executor
	workspace string
	opts      QueryOptions
}

func NewDependencyQuery(executor Executor, workspace string, opts QueryOptions) *DependencyQuery {
	return &DependencyQuery{executor: executor, workspace: workspace, opts: opts.withDefaults()}
}

// DirectDependencies returns, for every rule in the result, its direct inputs that are
// themselves rules in the result. Batches run in parallel; if any batch fails the
// whole call fails and no partial result is returned.
func (q *DependencyQuery) DirectDependencies(ctx context.Context, targets []model.Label) (map[model.Label][]model.Label, error) {
	batches := chunk(targets, q.opts.BatchSize)

	var mu sync.Mutex
	var rules []Rule

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(q.opts.Parallelism)
	for i, batch := range batches {
		g.Go(func() error {
			expr := fmt.Sprintf("deps(set(%s), 1)", joinLabels(batch))
			out, err := q.executor.Run(ctx, q.workspace, queryArgs(expr, "xml", q.opts.KeepGoing)...)
			if err != nil {
				return fmt.Errorf("batch %d/%d: %w", i+1, len(batches), err)
			}
			parsed, err := ParseQueryOutput(out)
			if err != nil {
				return fmt.Errorf("batch %d/%d: %w", i+1, len(batches), err)
			}

			mu.Lock()
			rules = append(rules, parsed...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	known := make(model.LabelSet, len(rules))
	for _, r := range rules {
		known.Add(r.Label)
	}

	result := make(map[model.Label][]model.Label, len(rules))
	for _, r := range rules {
		if _, seen := result[r.Label]; seen {
			continue
		}
		deps := make([]model.Label, 0, len(r.Inputs))
		for _, in := range r.Inputs {
			if known.Has(in) && in != r.Label {
				deps = append(deps, in)
			}
		}
		result[r.Label] = deps
	}

	logging.DebugContext(ctx, "resolved direct dependencies",
		"targets", len(targets), "batches", len(batches), "rules", len(result))
	return result, nil
}

func chunk[T any](items []T, size int) [][]T {
	var out [][]T
	for len(items) > size {
		out = append(out, items[:size])
		items = items[size:]
	}
	if len(items) > 0 {
		out = append(out, items)
	}
	return out
}

func joinLabels(labels []model.Label) string {
	parts := make([]string, len(labels))
	for i, l := range labels {
		parts[i] = string(l)
	}
	return strings.Join(parts, " ")
}
