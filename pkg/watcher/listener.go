package watcher

import (
	"context"
	"maps"
	"sync"

	"github.com/ritzau/syncgraph/pkg/logging"
	"github.com/ritzau/syncgraph/pkg/model"
)

// Op is the kind of a raw filesystem notification
type Op int

const (
	OpCreate Op = iota + 1
	OpDelete
	OpModify
	OpCopy
	OpMove
)

func (o Op) String() string {
	switch o {
	case OpCreate:
		return "create"
	case OpDelete:
		return "delete"
	case OpModify:
		return "modify"
	case OpCopy:
		return "copy"
	case OpMove:
		return "move"
	default:
		return "unknown"
	}
}

// RawEvent is a single filesystem notification. OldPath is only set for OpMove.
// For OpCopy, Path is the destination.
type RawEvent struct {
	Op      Op
	Path    string
	OldPath string
}

// Listener accumulates the net change state of every path it hears about.
// The policy is strict last-write-wins: each event overwrites the state of the
// paths it touches, so Create followed by Modify yields Changed.
//
// The listener never mutates the target graph; it only records paths until a
// sync pass drains them.
type Listener struct {
	mu     sync.Mutex
	states map[string]model.ChangeState
	notify chan struct{}

	attachMu sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewListener creates a detached listener with no recorded changes.
func NewListener() *Listener {
	return &Listener{
		states: make(map[string]model.ChangeState),
		notify: make(chan struct{}, 1),
	}
}

// Handle applies one event.
func (l *Listener) Handle(ev RawEvent) {
	l.mu.Lock()
	switch ev.Op {
	case OpCreate, OpCopy:
		l.states[ev.Path] = model.ChangeAdded
	case OpDelete:
		l.states[ev.Path] = model.ChangeRemoved
	case OpModify:
		l.states[ev.Path] = model.ChangeChanged
	case OpMove:
		if ev.OldPath != "" {
			l.states[ev.OldPath] = model.ChangeRemoved
		}
		l.states[ev.Path] = model.ChangeAdded
	default:
		l.mu.Unlock()
		logging.Warn("ignoring unknown filesystem event", "op", ev.Op, "path", ev.Path)
		return
	}
	l.mu.Unlock()

	logging.Trace("filesystem event", "op", ev.Op, "path", ev.Path)

	// Wake at most one waiter; a pending wake-up already covers this event
	select {
	case l.notify <- struct{}{}:
	default:
	}
}

// Notify returns a channel that receives a value whenever new changes were recorded.
func (l *Listener) Notify() <-chan struct{} {
	return l.notify
}

// Attach starts consuming events from the source. Attaching an already attached
// listener is a no-op and returns false.
func (l *Listener) Attach(ctx context.Context, events <-chan RawEvent) bool {
	l.attachMu.Lock()
	defer l.attachMu.Unlock()

	if l.cancel != nil {
		return false
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	l.cancel = cancel
	l.done = done

	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				l.Handle(ev)
			}
		}
	}()

	logging.Debug("listener attached")
	return true
}

// Detach stops consuming events and waits for the consumer to exit.
// Accumulated state is kept. Detaching a detached listener is a no-op.
func (l *Listener) Detach() {
	l.attachMu.Lock()
	defer l.attachMu.Unlock()

	if l.cancel == nil {
		return
	}
	l.cancel()
	<-l.done
	l.cancel = nil
	l.done = nil

	logging.Debug("listener detached")
}

// Attached reports whether an event source is currently being consumed.
func (l *Listener) Attached() bool {
	l.attachMu.Lock()
	defer l.attachMu.Unlock()
	return l.cancel != nil
}

// Drain returns the accumulated states and starts a new batch.
func (l *Listener) Drain() map[string]model.ChangeState {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := l.states
	l.states = make(map[string]model.ChangeState)
	return out
}

// Snapshot returns a copy of the accumulated states without draining them.
func (l *Listener) Snapshot() map[string]model.ChangeState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return maps.Clone(l.states)
}

// Restore puts previously drained states back. Paths that saw a newer event
// since the drain keep their newer state.
func (l *Listener) Restore(states map[string]model.ChangeState) {
	if len(states) == 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for path, state := range states {
		if _, newer := l.states[path]; !newer {
			l.states[path] = state
		}
	}
}

// Reset discards every accumulated state.
func (l *Listener) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.states = make(map[string]model.ChangeState)
}

// Len returns the number of paths with a pending state.
func (l *Listener) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.states)
}
