package watcher

import (
	"path/filepath"
	"strings"

	"github.com/ritzau/syncgraph/pkg/model"
)

// Classify derives the semantic kind of a workspace file from its name alone.
// It never touches the filesystem and accepts any path.
func Classify(path string) model.FileKind {
	name := filepath.Base(filepath.ToSlash(path))
	switch name {
	case "BUILD", "BUILD.bazel":
		return model.FileKindBuild
	case "WORKSPACE", "WORKSPACE.bazel", "MODULE.bazel", "WORKSPACE.bzlmod":
		return model.FileKindWorkspaceRoot
	}
	if strings.HasSuffix(name, ".bzl") {
		return model.FileKindDependency
	}
	return model.FileKindSource
}
