package watcher

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/ritzau/syncgraph/pkg/finder"
	"github.com/ritzau/syncgraph/pkg/logging"
	"github.com/ritzau/syncgraph/pkg/model"
)

// FileWatcher watches a Bazel workspace recursively and emits raw events with
// workspace-relative, slash-separated paths.
type FileWatcher struct {
	watcher   *fsnotify.Watcher
	workspace string
	events    chan RawEvent
	done      chan struct{}
	closeOnce sync.Once

	// Workspace-relative paths, owned by Start and then the event goroutine
	dirs  map[string]struct{}
	known map[string]struct{}
}

// NewFileWatcher creates a new file system watcher for a Bazel workspace
func NewFileWatcher(workspace string) (*FileWatcher, error) {
	abs, err := filepath.Abs(workspace)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workspace: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &FileWatcher{
		watcher:   watcher,
		workspace: abs,
		events:    make(chan RawEvent, 256),
		done:      make(chan struct{}),
		dirs:      make(map[string]struct{}),
		known:     make(map[string]struct{}),
	}, nil
}

// Start registers every workspace directory and begins translating events.
// The events channel is closed when ctx is cancelled or Close is called.
func (fw *FileWatcher) Start(ctx context.Context) error {
	count, err := fw.watchTree(fw.workspace)
	if err != nil {
		return fmt.Errorf("failed to watch workspace: %w", err)
	}
	tracked, err := fw.remember(fw.workspace, func(p string) bool { return Classify(p) != model.FileKindSource })
	if err != nil {
		return fmt.Errorf("failed to list workspace: %w", err)
	}

	logging.Info("started watching workspace", "path", fw.workspace, "directories", count, "files", len(tracked))

	go fw.processEvents(ctx)
	return nil
}

// watchTree adds dir and every directory below it
func (fw *FileWatcher) watchTree(dir string) (int, error) {
	dirs, err := finder.FindDirectories(dir)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, d := range dirs {
		if err := fw.watcher.Add(d); err != nil {
			logging.Warn("failed to watch directory", "path", d, "error", err)
			continue
		}
		if rel, err := fw.rel(d); err == nil {
			fw.dirs[rel] = struct{}{}
		}
		count++
	}
	return count, nil
}

func (fw *FileWatcher) processEvents(ctx context.Context) {
	defer close(fw.events)

	for {
		select {
		case <-ctx.Done():
			fw.Close()
			return

		case <-fw.done:
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			for _, ev := range fw.translate(event) {
				select {
				case fw.events <- ev:
				case <-ctx.Done():
					fw.Close()
					return
				case <-fw.done:
					return
				}
			}

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			logging.Error("watcher error", "error", err)
		}
	}
}

// translate maps one fsnotify event to raw events. A rename only reports the
// old name; the new name arrives separately as a create.
func (fw *FileWatcher) translate(event fsnotify.Event) []RawEvent {
	rel, err := fw.rel(event.Name)
	if err != nil {
		logging.Warn("event outside workspace", "path", event.Name)
		return nil
	}

	switch {
	case event.Has(fsnotify.Create):
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if finder.SkipDir(filepath.Base(event.Name)) {
				return nil
			}
			if _, err := fw.watchTree(event.Name); err != nil {
				logging.Warn("failed to watch new directory", "path", event.Name, "error", err)
			}
			return fw.existingFiles(event.Name)
		}
		if Classify(rel) != model.FileKindSource {
			fw.known[rel] = struct{}{}
		}
		return []RawEvent{{Op: OpCreate, Path: rel}}
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		if _, ok := fw.dirs[rel]; ok {
			return fw.forgetTree(rel)
		}
		delete(fw.known, rel)
		return []RawEvent{{Op: OpDelete, Path: rel}}
	case event.Has(fsnotify.Write), event.Has(fsnotify.Chmod):
		return []RawEvent{{Op: OpModify, Path: rel}}
	}
	return nil
}

// forgetTree handles a watched directory that was removed or moved away. The
// directory yields a single event, so every tracked file below it is reported
// as deleted.
func (fw *FileWatcher) forgetTree(dir string) []RawEvent {
	prefix := dir + "/"
	for d := range fw.dirs {
		if d == dir || strings.HasPrefix(d, prefix) {
			delete(fw.dirs, d)
			// A moved directory keeps its inotify watch
			_ = fw.watcher.Remove(filepath.Join(fw.workspace, filepath.FromSlash(d)))
		}
	}

	var files []string
	for f := range fw.known {
		if strings.HasPrefix(f, prefix) {
			files = append(files, f)
			delete(fw.known, f)
		}
	}
	slices.Sort(files)

	events := []RawEvent{{Op: OpDelete, Path: dir}}
	for _, f := range files {
		events = append(events, RawEvent{Op: OpDelete, Path: f})
	}
	logging.Debug("watched directory removed", "path", dir, "files", len(files))
	return events
}

// existingFiles reports files that already exist in a directory that just appeared,
// e.g. one moved into the workspace or created by a bulk checkout.
func (fw *FileWatcher) existingFiles(dir string) []RawEvent {
	files, err := fw.remember(dir, func(string) bool { return true })
	if err != nil {
		logging.Warn("failed to list new directory", "path", dir, "error", err)
		return nil
	}
	events := make([]RawEvent, 0, len(files))
	for _, f := range files {
		events = append(events, RawEvent{Op: OpCreate, Path: f})
	}
	return events
}

// remember lists the files below dir accepted by match as workspace-relative
// paths and tracks the non-source ones.
func (fw *FileWatcher) remember(dir string, match func(rel string) bool) ([]string, error) {
	prefix, err := fw.rel(dir)
	if err != nil {
		return nil, err
	}
	files, err := finder.FindFiles(dir, func(p string) bool { return match(path.Join(prefix, p)) })
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(files))
	for _, f := range files {
		rel := path.Join(prefix, f)
		if Classify(rel) != model.FileKindSource {
			fw.known[rel] = struct{}{}
		}
		out = append(out, rel)
	}
	return out, nil
}

func (fw *FileWatcher) rel(name string) (string, error) {
	rel, err := filepath.Rel(fw.workspace, name)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

// Events returns the channel of raw events
func (fw *FileWatcher) Events() <-chan RawEvent {
	return fw.events
}

// Close stops the file watcher. It is safe to call more than once.
func (fw *FileWatcher) Close() error {
	var err error
	fw.closeOnce.Do(func() {
		close(fw.done)
		err = fw.watcher.Close()
	})
	return err
}
