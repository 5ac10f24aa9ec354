// Package session owns one workspace's target graph and runs synchronization passes on it.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ritzau/syncgraph/pkg/bazel"
	"github.com/ritzau/syncgraph/pkg/cycles"
	"github.com/ritzau/syncgraph/pkg/expand"
	"github.com/ritzau/syncgraph/pkg/graph"
	"github.com/ritzau/syncgraph/pkg/logging"
	"github.com/ritzau/syncgraph/pkg/model"
	"github.com/ritzau/syncgraph/pkg/pubsub"
	"github.com/ritzau/syncgraph/pkg/store"
	"github.com/ritzau/syncgraph/pkg/vfsdiff"
	"github.com/ritzau/syncgraph/pkg/watcher"
)

// TargetMapper translates file diffs into target diffs
type TargetMapper interface {
	MapFiles(ctx context.Context, diff model.FileDiff, view bazel.GraphView) (bazel.Mapping, error)
}

// Deps are the collaborators of a session
type Deps struct {
	Store      *store.Store[*graph.TargetGraph]
	Listener   *watcher.Listener
	BuildFiles vfsdiff.BuildFilesQuery
	Mapper     TargetMapper
	Query      expand.DependencyQuery
	Publisher  pubsub.Publisher // optional
	Patterns   []string
}

// Options controls a single sync pass
type Options struct {
	// Full rebuilds the graph from bulk discovery instead of watched changes
	Full bool
}

// Result is the outcome of a sync pass
type Result struct {
	PassID   string         `json:"pass_id"`
	Full     bool           `json:"full"`
	Diff     model.ColdDiff `json:"diff"`
	Stats    graph.Stats    `json:"stats"`
	Duration time.Duration  `json:"duration"`
}

// Session serializes sync passes against one graph. Overlapping Sync calls with
// the same options share one pass.
type Session struct {
	store      *store.Store[*graph.TargetGraph]
	listener   *watcher.Listener
	aggregator *vfsdiff.Aggregator
	mapper     TargetMapper
	processor  *expand.Processor
	publisher  pubsub.Publisher

	mu             sync.Mutex // held for the whole pass and for graph reads
	group          singleflight.Group
	needsDiscovery bool

	lastMu sync.RWMutex
	last   *Result
}

func New(deps Deps) *Session {
	return &Session{
		store:          deps.Store,
		listener:       deps.Listener,
		aggregator:     vfsdiff.NewAggregator(deps.BuildFiles, deps.Listener, deps.Patterns),
		mapper:         deps.Mapper,
		processor:      expand.NewProcessor(deps.Store, deps.Query),
		publisher:      deps.Publisher,
		needsDiscovery: deps.Store.Get().Len() == 0,
	}
}

// Listener returns the change listener fed by the filesystem watcher
func (s *Session) Listener() *watcher.Listener {
	return s.listener
}

// Sync runs one pass. The first pass after a reset (or an empty persisted graph)
// always runs bulk discovery.
func (s *Session) Sync(ctx context.Context, opts Options) (*Result, error) {
	key := "incremental"
	if opts.Full {
		key = "full"
	}
	v, err, shared := s.group.Do(key, func() (any, error) {
		return s.sync(ctx, opts)
	})
	if shared {
		logging.DebugContext(ctx, "joined in-flight sync pass", "mode", key)
	}
	if err != nil {
		return nil, err
	}
	return v.(*Result), nil
}

func (s *Session) sync(ctx context.Context, opts Options) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	passID := logging.NewPassID()
	ctx = logging.WithPassID(ctx, passID)
	full := opts.Full || s.needsDiscovery

	// Drained states go back to the listener if the pass fails
	batch := s.aggregator.Collect(ctx)

	targetDiff, full, err := s.targetDiff(ctx, batch, full, passID)
	if err != nil {
		return nil, s.fail(ctx, batch, passID, full, err)
	}

	// Nothing to expand; the graph and the store stay untouched
	if !full && targetDiff.IsEmpty() {
		logging.DebugContext(ctx, "no relevant changes", "files", batch.Diff.Len())
		return &Result{PassID: passID, Stats: s.store.Get().Stats(), Duration: time.Since(start)}, nil
	}

	s.publishStatus(pubsub.StateExpanding, "expanding target graph", passID, full)
	diff, err := s.processor.Process(ctx, targetDiff, expand.Options{Full: full})
	if err != nil {
		return nil, s.fail(ctx, batch, passID, full, err)
	}
	s.needsDiscovery = false

	if err := s.store.Flush(ctx); err != nil {
		// The in-memory graph is correct; the next flush retries
		logging.ErrorContext(ctx, "failed to persist target graph", "error", err)
	}

	g := s.store.Get()
	result := &Result{
		PassID:   passID,
		Full:     full,
		Diff:     diff,
		Stats:    g.Stats(),
		Duration: time.Since(start),
	}
	s.setLast(result)

	logging.InfoContext(ctx, "Targets added/removed/changed",
		"added", len(diff.Added()),
		"removed", len(diff.Removed()),
		"changed", len(diff.Changed()),
		"full", full,
		"duration", result.Duration.Round(time.Millisecond))

	s.publishStatus(pubsub.StateReady, fmt.Sprintf("synced %s", diff), passID, full)
	s.publish(pubsub.TopicSyncDiff, "diff", pubsub.SyncDiff{
		PassID: passID,
		Diff:   diff,
		Graph:  result.Stats,
		Cycles: cycleLabels(cycles.FindTargetCycles(g)),
	})
	return result, nil
}

// targetDiff computes the target-level input of a pass. It may upgrade an
// incremental pass to a full one.
func (s *Session) targetDiff(ctx context.Context, batch vfsdiff.Batch, full bool, passID string) (model.ColdDiff, bool, error) {
	g := s.store.Get()

	if !full {
		if analysis := watcher.AnalyzeChanges(batch.Diff); analysis.NeedFullResync {
			logging.InfoContext(ctx, "workspace root files changed", "files", analysis.WorkspaceFiles)
			full = true
		}
	}

	if !full {
		if batch.Diff.IsEmpty() {
			return model.ColdDiff{}, false, nil
		}
		s.publishStatus(pubsub.StateQuerying, fmt.Sprintf("mapping %d changed files", batch.Diff.Len()), passID, false)
		mapping, err := s.mapper.MapFiles(ctx, batch.Diff, g)
		if err != nil {
			return model.ColdDiff{}, false, err
		}
		if !mapping.FullResync {
			return mapping.Diff, false, nil
		}
		full = true
	}

	s.publishStatus(pubsub.StateDiscovering, "discovering build files", passID, true)
	discovered, err := s.aggregator.Discover(ctx)
	if err != nil {
		return model.ColdDiff{}, true, err
	}

	// Every package is covered by its BUILD file; .bzl and root files add nothing here
	buildFiles := model.FileDiff{}
	for _, e := range discovered.Added {
		if e.Kind == model.FileKindBuild {
			buildFiles.Added = append(buildFiles.Added, e)
		}
	}

	s.publishStatus(pubsub.StateQuerying, fmt.Sprintf("mapping %d build files", len(buildFiles.Added)), passID, true)
	mapping, err := s.mapper.MapFiles(ctx, buildFiles, emptyView{})
	if err != nil {
		return model.ColdDiff{}, true, err
	}

	// Old roots that no longer exist are reported as removed
	targets := model.NewLabelSet(mapping.Diff.Added()...)
	var removed []model.Label
	for _, l := range g.UniverseLabels() {
		if !targets.Has(l) {
			removed = append(removed, l)
		}
	}
	return model.NewColdDiff(targets.Sorted(), removed, nil), true, nil
}

func (s *Session) fail(ctx context.Context, batch vfsdiff.Batch, passID string, full bool, err error) error {
	s.aggregator.Requeue(batch)
	logging.ErrorContext(ctx, "sync pass failed", "error", err, "full", full)
	s.publishStatus(pubsub.StateFailed, err.Error(), passID, full)
	return fmt.Errorf("sync failed: %w", err)
}

// ResetState discards the graph and all pending changes; the next pass runs bulk discovery.
func (s *Session) ResetState(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.store.Reset()
	s.listener.Reset()
	s.needsDiscovery = true
	s.setLast(nil)

	logging.InfoContext(ctx, "sync state reset")
	s.publishStatus(pubsub.StateIdle, "state reset", "", false)
	return s.store.Flush(ctx)
}

// Watch runs an incremental pass for every trigger until ctx is done or triggers closes.
// Failed passes are logged; their changes are retried with the next trigger.
func (s *Session) Watch(ctx context.Context, triggers <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-triggers:
			if !ok {
				return
			}
			if _, err := s.Sync(ctx, Options{}); err != nil && ctx.Err() == nil {
				logging.WarnContext(ctx, "watch pass failed, changes kept for the next pass", "error", err)
			}
		}
	}
}

// GraphStats returns the current size of the graph
func (s *Session) GraphStats() graph.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Get().Stats()
}

// Universe returns the current root labels
func (s *Session) Universe() []model.Label {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Get().UniverseLabels()
}

// Neighbours returns what label depends on and what depends on it
func (s *Session) Neighbours(label model.Label) (deps, rdeps []model.Label, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g := s.store.Get()
	if !g.HasVertex(label) {
		return nil, nil, false
	}
	return g.SuccessorLabels(label), g.PredecessorLabels(label), true
}

// Cycles returns the dependency cycles of the current graph
func (s *Session) Cycles() []cycles.TargetCycle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cycles.FindTargetCycles(s.store.Get())
}

// WithGraph runs fn with exclusive access to the graph
func (s *Session) WithGraph(fn func(g *graph.TargetGraph)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.store.Get())
}

// LastResult returns the outcome of the most recent successful pass, or nil
func (s *Session) LastResult() *Result {
	s.lastMu.RLock()
	defer s.lastMu.RUnlock()
	return s.last
}

func (s *Session) setLast(r *Result) {
	s.lastMu.Lock()
	defer s.lastMu.Unlock()
	s.last = r
}

func (s *Session) publishStatus(state, message, passID string, full bool) {
	s.publish(pubsub.TopicSyncStatus, state, pubsub.SyncStatus{
		State:   state,
		Message: message,
		PassID:  passID,
		Full:    full,
	})
}

func (s *Session) publish(topic, eventType string, data any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(topic, eventType, data); err != nil {
		logging.Warn("failed to publish event", "topic", topic, "error", err)
	}
}

// Close flushes pending graph changes and releases the store
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.listener.Detach()
	if err := s.store.Flush(ctx); err != nil {
		s.store.Close()
		return err
	}
	return s.store.Close()
}

type emptyView struct{}

func (emptyView) HasVertex(model.Label) bool           { return false }
func (emptyView) LabelsInPackage(string) []model.Label { return nil }

func cycleLabels(found []cycles.TargetCycle) [][]model.Label {
	if len(found) == 0 {
		return nil
	}
	out := make([][]model.Label, len(found))
	for i, c := range found {
		out[i] = c.Targets
	}
	return out
}
