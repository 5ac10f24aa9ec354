package bazel

import (
	"path"
	"strings"

	"github.com/ritzau/syncgraph/pkg/model"
)

// labelToPath converts a Bazel label to a workspace-relative file path
// e.g., "//util:strings.cc" -> "util/strings.cc"
// e.g., "//:MODULE.bazel" -> "MODULE.bazel"
func labelToPath(label model.Label) string {
	pkg := strings.TrimPrefix(label.Package(), "//")
	return path.Join(pkg, label.Name())
}

// packageOf returns the package owning a BUILD file at the given workspace-relative path
// e.g., "util/BUILD.bazel" -> "//util", "BUILD" -> "//"
func packageOf(file string) string {
	dir := path.Dir(file)
	if dir == "." || dir == "/" {
		dir = ""
	}
	return "//" + dir
}

// patternExpr turns target patterns into a query expression. Patterns starting
// with "-" are subtracted.
func patternExpr(patterns []string) string {
	var include, exclude []string
	for _, p := range patterns {
		if rest, ok := strings.CutPrefix(p, "-"); ok {
			exclude = append(exclude, rest)
		} else {
			include = append(include, p)
		}
	}
	if len(include) == 0 {
		include = []string{"//..."}
	}
	expr := strings.Join(include, " + ")
	if len(exclude) > 0 {
		expr = "(" + expr + ") - (" + strings.Join(exclude, " + ") + ")"
	}
	return expr
}
