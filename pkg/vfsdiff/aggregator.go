// Package vfsdiff turns filesystem churn into a file-level diff of build definition files.
package vfsdiff

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/ritzau/syncgraph/pkg/logging"
	"github.com/ritzau/syncgraph/pkg/model"
	"github.com/ritzau/syncgraph/pkg/watcher"
)

// BuildFilesQuery lists the build definition files reachable from target patterns
type BuildFilesQuery interface {
	BuildFiles(ctx context.Context, patterns []string) ([]string, error)
}

// ChangeSource hands out accumulated per-path change states
type ChangeSource interface {
	Drain() map[string]model.ChangeState
	Restore(states map[string]model.ChangeState)
}

// Batch is one collected file diff together with the raw states it was built from,
// so a failed pass can put them back.
type Batch struct {
	Diff   model.FileDiff
	states map[string]model.ChangeState
}

// Aggregator produces file diffs either by bulk discovery or from watched changes.
type Aggregator struct {
	query    BuildFilesQuery
	source   ChangeSource
	patterns []string
}

func NewAggregator(query BuildFilesQuery, source ChangeSource, patterns []string) *Aggregator {
	return &Aggregator{query: query, source: source, patterns: patterns}
}

// Discover reports every build definition file of the configured patterns as added.
func (a *Aggregator) Discover(ctx context.Context) (model.FileDiff, error) {
	files, err := a.query.BuildFiles(ctx, a.patterns)
	if err != nil {
		return model.FileDiff{}, fmt.Errorf("failed to discover build files: %w", err)
	}

	var diff model.FileDiff
	for _, f := range files {
		kind := watcher.Classify(f)
		if kind == model.FileKindSource {
			continue
		}
		diff.Added = append(diff.Added, model.FileEntry{Path: f, Kind: kind})
	}
	sortEntries(diff.Added)

	logging.InfoContext(ctx, "bulk discovery complete", "files", len(diff.Added))
	return diff, nil
}

// Collect drains the change source and keeps only build definition files.
func (a *Aggregator) Collect(ctx context.Context) Batch {
	states := a.source.Drain()

	var diff model.FileDiff
	dropped := 0
	for path, state := range states {
		kind := watcher.Classify(path)
		if kind == model.FileKindSource {
			dropped++
			continue
		}
		entry := model.FileEntry{Path: path, Kind: kind}
		switch state {
		case model.ChangeAdded:
			diff.Added = append(diff.Added, entry)
		case model.ChangeRemoved:
			diff.Removed = append(diff.Removed, entry)
		case model.ChangeChanged:
			diff.Changed = append(diff.Changed, entry)
		}
	}
	sortEntries(diff.Added)
	sortEntries(diff.Removed)
	sortEntries(diff.Changed)

	logging.DebugContext(ctx, "collected file changes",
		"paths", len(states), "relevant", diff.Len(), "ignored", dropped)
	return Batch{Diff: diff, states: states}
}

// Requeue puts the states of a batch back into the change source. Paths that
// changed again since the batch was collected keep their newer state.
func (a *Aggregator) Requeue(b Batch) {
	a.source.Restore(b.states)
}

func sortEntries(entries []model.FileEntry) {
	slices.SortFunc(entries, func(x, y model.FileEntry) int {
		return cmp.Compare(x.Path, y.Path)
	})
}
