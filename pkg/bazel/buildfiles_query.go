package bazel

import (
	"context"
	"fmt"
	"slices"

	"github.com/ritzau/syncgraph/pkg/logging"
)

// BuildFilesQuery lists the BUILD and .bzl files the configured targets are defined by.
type BuildFilesQuery struct {
	executor  Executor
	workspace string
	keepGoing bool
}

func NewBuildFilesQuery(executor Executor, workspace string, keepGoing bool) *BuildFilesQuery {
	return &BuildFilesQuery{executor: executor, workspace: workspace, keepGoing: keepGoing}
}

// BuildFiles returns the workspace-relative paths of every build definition file in the
// transitive closure of patterns. Files owned by external repositories are dropped.
func (q *BuildFilesQuery) BuildFiles(ctx context.Context, patterns []string) ([]string, error) {
	expr := fmt.Sprintf("buildfiles(%s)", patternExpr(patterns))
	out, err := q.executor.Run(ctx, q.workspace, queryArgs(expr, "label", q.keepGoing)...)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	for _, l := range ParseLabelOutput(out) {
		if !l.IsMainRepo() {
			continue
		}
		seen[labelToPath(l)] = struct{}{}
	}

	files := make([]string, 0, len(seen))
	for f := range seen {
		files = append(files, f)
	}
	slices.Sort(files)

	logging.DebugContext(ctx, "discovered build files", "count", len(files))
	return files, nil
}
