package finder

import (
	"io/fs"
	"path/filepath"
	"strings"
)

// SkipDir reports whether a directory with this base name is never part of the
// source tree: bazel-* output symlinks, VCS metadata, vendored node modules and
// the default store directory.
func SkipDir(name string) bool {
	if strings.HasPrefix(name, "bazel-") {
		return true
	}
	switch name {
	case ".git", ".jj", "node_modules", ".syncgraph":
		return true
	}
	return false
}

// FindDirectories walks root and returns every directory worth watching,
// root included, excluding build artifacts and VCS metadata.
func FindDirectories(root string) ([]string, error) {
	var dirs []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Skip entries we can't access
			if d != nil && d.IsDir() && path != root {
				return filepath.SkipDir
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && SkipDir(d.Name()) {
			return filepath.SkipDir
		}
		dirs = append(dirs, path)
		return nil
	})

	return dirs, err
}

// FindFiles walks root and returns the workspace-relative, slash-separated paths
// of every file accepted by match.
func FindFiles(root string, match func(path string) bool) ([]string, error) {
	var files []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && SkipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if match(rel) {
			files = append(files, rel)
		}
		return nil
	})

	return files, err
}
