package model

// FileKind is the semantic kind of a workspace file, derived from its name
type FileKind int

const (
	FileKindSource FileKind = iota
	FileKindBuild
	FileKindDependency
	FileKindWorkspaceRoot
)

func (k FileKind) String() string {
	switch k {
	case FileKindBuild:
		return "build"
	case FileKindDependency:
		return "dependency"
	case FileKindWorkspaceRoot:
		return "workspace_root"
	default:
		return "source"
	}
}

// ChangeState is the net change of a single path within one batch
type ChangeState int

const (
	ChangeAdded ChangeState = iota + 1
	ChangeRemoved
	ChangeChanged
)

func (s ChangeState) String() string {
	switch s {
	case ChangeAdded:
		return "added"
	case ChangeRemoved:
		return "removed"
	case ChangeChanged:
		return "changed"
	default:
		return "unknown"
	}
}

// FileEntry is a classified path
type FileEntry struct {
	Path string   `json:"path"`
	Kind FileKind `json:"kind"`
}

// FileDiff is a file-level diff grouped by change state
type FileDiff struct {
	Added   []FileEntry `json:"added"`
	Removed []FileEntry `json:"removed"`
	Changed []FileEntry `json:"changed"`
}

func (d FileDiff) Len() int {
	return len(d.Added) + len(d.Removed) + len(d.Changed)
}

func (d FileDiff) IsEmpty() bool {
	return d.Len() == 0
}

// All returns every entry together with its change state.
func (d FileDiff) All() map[string]ChangeState {
	out := make(map[string]ChangeState, d.Len())
	for _, e := range d.Added {
		out[e.Path] = ChangeAdded
	}
	for _, e := range d.Removed {
		out[e.Path] = ChangeRemoved
	}
	for _, e := range d.Changed {
		out[e.Path] = ChangeChanged
	}
	return out
}
