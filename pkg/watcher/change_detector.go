package watcher

import (
	"slices"

	"github.com/ritzau/syncgraph/pkg/model"
)

// ChangeAnalysis describes what a file-level diff implies for the next sync pass
type ChangeAnalysis struct {
	NeedFullResync  bool
	WorkspaceFiles  []string
	BuildFiles      int
	DependencyFiles int
}

// AnalyzeChanges determines whether a file-level diff can be handled incrementally.
// Any change to a workspace root file (MODULE.bazel, WORKSPACE, ...) can alter
// repository mappings for every target, so it requires a full resync.
func AnalyzeChanges(diff model.FileDiff) *ChangeAnalysis {
	analysis := &ChangeAnalysis{}

	for path := range diff.All() {
		switch Classify(path) {
		case model.FileKindWorkspaceRoot:
			analysis.NeedFullResync = true
			analysis.WorkspaceFiles = append(analysis.WorkspaceFiles, path)
		case model.FileKindBuild:
			analysis.BuildFiles++
		case model.FileKindDependency:
			analysis.DependencyFiles++
		}
	}
	slices.Sort(analysis.WorkspaceFiles)

	return analysis
}
