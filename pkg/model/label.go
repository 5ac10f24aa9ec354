package model

import (
	"fmt"
	"sort"
	"strings"
)

// Label is the canonical name of a Bazel build target (e.g., "//main:app").
// It is the vertex key of the target dependency graph.
type Label string

// ParseLabel canonicalizes a Bazel label.
//
//	//foo/bar      -> //foo/bar:bar
//	@//foo:x       -> //foo:x
//	@@//foo:x      -> //foo:x
//	@repo//foo     -> @repo//foo:foo
func ParseLabel(s string) (Label, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("empty label")
	}

	// Main repository spellings
	for _, prefix := range []string{"@@//", "@//"} {
		if strings.HasPrefix(s, prefix) {
			s = "//" + strings.TrimPrefix(s, prefix)
		}
	}
	switch {
	case strings.HasPrefix(s, "@"):
		if !strings.Contains(s, "//") {
			return "", fmt.Errorf("invalid label %q: missing //", s)
		}
	case !strings.HasPrefix(s, "//"):
		s = "//" + s
	}

	idx := strings.Index(s, "//")
	repo, rest := s[:idx], s[idx+2:]
	pkg, name, hasName := strings.Cut(rest, ":")
	if !hasName {
		if pkg == "" {
			return "", fmt.Errorf("invalid label %q: root package needs a target name", s)
		}
		name = pkg[strings.LastIndex(pkg, "/")+1:]
	}
	if name == "" {
		return "", fmt.Errorf("invalid label %q: empty target name", s)
	}

	return Label(repo + "//" + pkg + ":" + name), nil
}

// MustParseLabel is like ParseLabel but panics on invalid input. Intended for tests and constants.
func MustParseLabel(s string) Label {
	l, err := ParseLabel(s)
	if err != nil {
		panic(err)
	}
	return l
}

func (l Label) String() string {
	return string(l)
}

// Repo returns the external repository name without the leading "@",
// or "" for the main repository.
func (l Label) Repo() string {
	s := string(l)
	idx := strings.Index(s, "//")
	if idx <= 0 {
		return ""
	}
	return strings.TrimLeft(s[:idx], "@")
}

// IsMainRepo reports whether the target is owned by the main repository.
func (l Label) IsMainRepo() bool {
	return l.Repo() == ""
}

// Package returns the package part of the label (e.g., "//main" for "//main:app").
func (l Label) Package() string {
	s := string(l)
	if idx := strings.LastIndex(s, ":"); idx >= 0 {
		return s[:idx]
	}
	return s
}

// Name returns the target name (e.g., "app" for "//main:app").
func (l Label) Name() string {
	s := string(l)
	if idx := strings.LastIndex(s, ":"); idx >= 0 {
		return s[idx+1:]
	}
	return s
}

// LabelSet is an unordered set of labels.
type LabelSet map[Label]struct{}

// NewLabelSet creates a set containing the given labels.
func NewLabelSet(labels ...Label) LabelSet {
	s := make(LabelSet, len(labels))
	for _, l := range labels {
		s[l] = struct{}{}
	}
	return s
}

func (s LabelSet) Add(l Label) {
	s[l] = struct{}{}
}

func (s LabelSet) Remove(l Label) {
	delete(s, l)
}

func (s LabelSet) Has(l Label) bool {
	_, ok := s[l]
	return ok
}

func (s LabelSet) Len() int {
	return len(s)
}

// Sorted returns the labels in lexical order.
func (s LabelSet) Sorted() []Label {
	out := make([]Label, 0, len(s))
	for l := range s {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Clone returns a shallow copy of the set.
func (s LabelSet) Clone() LabelSet {
	out := make(LabelSet, len(s))
	for l := range s {
		out[l] = struct{}{}
	}
	return out
}
