package session

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/ritzau/syncgraph/pkg/bazel"
	"github.com/ritzau/syncgraph/pkg/config"
	"github.com/ritzau/syncgraph/pkg/graph"
	"github.com/ritzau/syncgraph/pkg/logging"
	"github.com/ritzau/syncgraph/pkg/pubsub"
	"github.com/ritzau/syncgraph/pkg/store"
	"github.com/ritzau/syncgraph/pkg/watcher"
)

// GraphKey is the store key of the persisted target graph
const GraphKey = "target_graph"

// Open builds a session for the configured workspace, backed by bazel and the
// configured store. The persisted graph is loaded if present.
func Open(ctx context.Context, cfg *config.Config, executor bazel.Executor, publisher pubsub.Publisher) (*Session, error) {
	workspace, err := filepath.Abs(cfg.Workspace)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workspace: %w", err)
	}

	dir := cfg.Store.Dir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(workspace, dir)
	}
	backend, err := store.NewBackend(cfg.Store.Backend, dir)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, backend, GraphKey, graph.Codec{}, graph.NewTargetGraph)
	if err != nil {
		backend.Close()
		return nil, err
	}

	opts := bazel.QueryOptions{
		BatchSize:   cfg.Query.BatchSize,
		Parallelism: cfg.Query.Parallelism,
		KeepGoing:   cfg.Query.KeepGoing,
	}

	logging.InfoContext(ctx, "opened sync session",
		"workspace", workspace,
		"store", cfg.Store.Backend,
		"targets", cfg.Targets,
		"vertices", st.Get().Len())

	return New(Deps{
		Store:      st,
		Listener:   watcher.NewListener(),
		BuildFiles: bazel.NewBuildFilesQuery(executor, workspace, cfg.Query.KeepGoing),
		Mapper:     bazel.NewMapper(executor, workspace, cfg.Targets, opts),
		Query:      bazel.NewDependencyQuery(executor, workspace, opts),
		Publisher:  publisher,
		Patterns:   cfg.Targets,
	}), nil
}
