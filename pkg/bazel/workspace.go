package bazel

import (
	"context"
	"path/filepath"
	"regexp"
	"strings"
)

var rootModuleRegex = regexp.MustCompile(`<root>\s+\(([^@)]+)`)

// GetWorkspaceName attempts to determine the workspace/module name from:
// 1. `bazel mod graph` (if using Bazel modules/bzlmod)
// 2. Directory name as fallback
func GetWorkspaceName(ctx context.Context, executor Executor, workspacePath string) string {
	if output, err := executor.Run(ctx, workspacePath, "mod", "graph"); err == nil {
		// Output format: <root> (module_name@version)
		if matches := rootModuleRegex.FindStringSubmatch(string(output)); len(matches) > 1 {
			if name := strings.TrimSpace(matches[1]); name != "" {
				return name
			}
		}
	}

	absPath, err := filepath.Abs(workspacePath)
	if err != nil {
		return filepath.Base(workspacePath)
	}
	return filepath.Base(absPath)
}
