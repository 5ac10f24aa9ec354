package finder

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func makeTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	for _, p := range []string{
		"BUILD",
		"MODULE.bazel",
		"app/BUILD.bazel",
		"app/main.cc",
		"lib/defs.bzl",
		"lib/sub/BUILD",
		"bazel-out/k8/BUILD",
		".git/config",
		"node_modules/x/BUILD",
	} {
		full := filepath.Join(root, filepath.FromSlash(p))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func TestFindDirectories(t *testing.T) {
	root := makeTree(t)

	dirs, err := FindDirectories(root)
	if err != nil {
		t.Fatalf("FindDirectories() error = %v", err)
	}

	got := make(map[string]bool)
	for _, d := range dirs {
		rel, _ := filepath.Rel(root, d)
		got[filepath.ToSlash(rel)] = true
	}

	for _, want := range []string{".", "app", "lib", "lib/sub"} {
		if !got[want] {
			t.Errorf("FindDirectories() missing %q", want)
		}
	}
	for _, skipped := range []string{"bazel-out", "bazel-out/k8", ".git", "node_modules"} {
		if got[skipped] {
			t.Errorf("FindDirectories() should skip %q", skipped)
		}
	}
}

func TestFindFiles(t *testing.T) {
	root := makeTree(t)

	files, err := FindFiles(root, func(p string) bool {
		return strings.HasSuffix(p, "BUILD") || strings.HasSuffix(p, "BUILD.bazel")
	})
	if err != nil {
		t.Fatalf("FindFiles() error = %v", err)
	}

	want := map[string]bool{"BUILD": true, "app/BUILD.bazel": true, "lib/sub/BUILD": true}
	if len(files) != len(want) {
		t.Fatalf("FindFiles() = %v, want %d files", files, len(want))
	}
	for _, f := range files {
		if !want[f] {
			t.Errorf("FindFiles() unexpected file %q", f)
		}
	}
}

func TestSkipDir(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"bazel-bin", true},
		{"bazel-out", true},
		{".git", true},
		{".jj", true},
		{"node_modules", true},
		{".syncgraph", true},
		{"src", false},
		{"bazel", false},
	}

	for _, tt := range tests {
		if got := SkipDir(tt.name); got != tt.want {
			t.Errorf("SkipDir(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}
