package vfsdiff

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ritzau/syncgraph/pkg/model"
	"github.com/ritzau/syncgraph/pkg/watcher"
)

type fakeBuildFiles struct {
	files    []string
	err      error
	patterns []string
}

func (f *fakeBuildFiles) BuildFiles(_ context.Context, patterns []string) ([]string, error) {
	f.patterns = patterns
	return f.files, f.err
}

func TestDiscoverReportsEverythingAsAdded(t *testing.T) {
	query := &fakeBuildFiles{files: []string{"main/BUILD", "BUILD.bazel", "tools/defs.bzl", "MODULE.bazel"}}
	a := NewAggregator(query, watcher.NewListener(), []string{"//..."})

	diff, err := a.Discover(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"//..."}, query.patterns)
	assert.Empty(t, diff.Removed)
	assert.Empty(t, diff.Changed)
	assert.Equal(t, []model.FileEntry{
		{Path: "BUILD.bazel", Kind: model.FileKindBuild},
		{Path: "MODULE.bazel", Kind: model.FileKindWorkspaceRoot},
		{Path: "main/BUILD", Kind: model.FileKindBuild},
		{Path: "tools/defs.bzl", Kind: model.FileKindDependency},
	}, diff.Added)
}

func TestDiscoverFailure(t *testing.T) {
	a := NewAggregator(&fakeBuildFiles{err: errors.New("boom")}, watcher.NewListener(), nil)

	_, err := a.Discover(context.Background())
	assert.Error(t, err)
}

func TestCollectGroupsAndDropsSources(t *testing.T) {
	l := watcher.NewListener()
	l.Handle(watcher.RawEvent{Op: watcher.OpCreate, Path: "a/BUILD"})
	l.Handle(watcher.RawEvent{Op: watcher.OpDelete, Path: "b/BUILD.bazel"})
	l.Handle(watcher.RawEvent{Op: watcher.OpModify, Path: "defs.bzl"})
	l.Handle(watcher.RawEvent{Op: watcher.OpModify, Path: "a/main.cc"})
	l.Handle(watcher.RawEvent{Op: watcher.OpCreate, Path: "Main.py"})

	a := NewAggregator(&fakeBuildFiles{}, l, nil)
	batch := a.Collect(context.Background())

	assert.Equal(t, []model.FileEntry{{Path: "a/BUILD", Kind: model.FileKindBuild}}, batch.Diff.Added)
	assert.Equal(t, []model.FileEntry{{Path: "b/BUILD.bazel", Kind: model.FileKindBuild}}, batch.Diff.Removed)
	assert.Equal(t, []model.FileEntry{{Path: "defs.bzl", Kind: model.FileKindDependency}}, batch.Diff.Changed)
	assert.Equal(t, 0, l.Len(), "collect drains the listener")
}

func TestRequeueRestoresDrainedStates(t *testing.T) {
	l := watcher.NewListener()
	l.Handle(watcher.RawEvent{Op: watcher.OpCreate, Path: "a/BUILD"})
	l.Handle(watcher.RawEvent{Op: watcher.OpCreate, Path: "b/BUILD"})

	a := NewAggregator(&fakeBuildFiles{}, l, nil)
	batch := a.Collect(context.Background())

	l.Handle(watcher.RawEvent{Op: watcher.OpDelete, Path: "b/BUILD"})
	a.Requeue(batch)

	again := a.Collect(context.Background())
	assert.Equal(t, []model.FileEntry{{Path: "a/BUILD", Kind: model.FileKindBuild}}, again.Diff.Added)
	assert.Equal(t, []model.FileEntry{{Path: "b/BUILD", Kind: model.FileKindBuild}}, again.Diff.Removed)
}
