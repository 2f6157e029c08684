package filesystem

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/knowledge-core/internal/core/domain"
	"github.com/custodia-labs/knowledge-core/internal/core/ports/driven"
)

// DefaultDebounce is the window in which repeated events for the same
// path collapse into a single change.
const DefaultDebounce = 300 * time.Millisecond

// Watcher streams change events for supported files under a source
// tree. It implements the SourceWatcher port on top of fsnotify.
type Watcher struct {
	debounce   time.Duration
	extensions map[string]struct{}
}

// Ensure Watcher implements the interface.
var _ driven.SourceWatcher = (*Watcher)(nil)

// NewWatcher creates a watcher with the given debounce window. A
// non-positive debounce falls back to DefaultDebounce; with no
// extensions the default extension set is watched.
func NewWatcher(debounce time.Duration, extensions ...string) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	set := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		set[strings.ToLower(ext)] = struct{}{}
	}
	return &Watcher{debounce: debounce, extensions: set}
}

// Watch emits change events for supported files under the source path.
// The returned stop function tears the watcher down and closes the
// channel; cancelling the context does the same. Stop is safe to call
// more than once.
func (w *Watcher) Watch(ctx context.Context, source domain.KnowledgeSource) (<-chan domain.FileChange, func(), error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, fmt.Errorf("create watcher: %w", err)
	}

	if err := addRecursive(fsw, source.Path); err != nil {
		fsw.Close()
		return nil, nil, err
	}

	events := make(chan domain.FileChange)
	done := make(chan struct{})
	var stopOnce sync.Once
	stop := func() { stopOnce.Do(func() { close(done) }) }

	go w.run(ctx, fsw, source, events, done)

	return events, stop, nil
}

// run pumps fsnotify events into the change channel, debouncing bursts
// per path. It owns the fsnotify watcher and the events channel.
func (w *Watcher) run(ctx context.Context, fsw *fsnotify.Watcher, source domain.KnowledgeSource, events chan<- domain.FileChange, done <-chan struct{}) {
	defer close(events)
	defer fsw.Close()

	pending := make(map[string]domain.FileChange)
	flush := time.NewTimer(w.debounce)
	if !flush.Stop() {
		<-flush.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			// New directories join the watch set.
			if event.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = addRecursive(fsw, event.Name)
					continue
				}
			}
			change := w.translate(event, source)
			if change == nil {
				continue
			}
			merge(pending, *change)
			flush.Reset(w.debounce)
		case _, ok := <-fsw.Errors:
			if !ok {
				return
			}
			// Watch errors are not fatal; the next full scan
			// reconciles anything missed.
		case <-flush.C:
			for _, change := range pending {
				select {
				case events <- change:
				case <-ctx.Done():
					return
				case <-done:
					return
				}
			}
			pending = make(map[string]domain.FileChange)
		}
	}
}

// translate maps an fsnotify event to a domain change, or nil when the
// event does not concern a supported file.
func (w *Watcher) translate(event fsnotify.Event, source domain.KnowledgeSource) *domain.FileChange {
	rel, err := filepath.Rel(source.Path, event.Name)
	if err != nil || isHidden(rel) {
		return nil
	}
	if _, ok := w.extensions[strings.ToLower(filepath.Ext(event.Name))]; !ok {
		return nil
	}

	var changeType domain.ChangeType
	switch {
	case event.Op.Has(fsnotify.Create):
		changeType = domain.ChangeCreated
	case event.Op.Has(fsnotify.Write):
		changeType = domain.ChangeUpdated
	case event.Op.Has(fsnotify.Remove), event.Op.Has(fsnotify.Rename):
		changeType = domain.ChangeDeleted
	default:
		return nil
	}

	// Directories emit the same ops as files; only files matter.
	if changeType != domain.ChangeDeleted {
		info, err := os.Stat(event.Name)
		if err != nil || info.IsDir() {
			return nil
		}
	}

	return &domain.FileChange{Type: changeType, Path: event.Name, SourceID: source.ID}
}

// merge folds a change into the pending set. Within a debounce window
// a create followed by writes stays a create; a delete supersedes
// whatever came before it.
func merge(pending map[string]domain.FileChange, change domain.FileChange) {
	prev, ok := pending[change.Path]
	if ok && prev.Type == domain.ChangeCreated && change.Type == domain.ChangeUpdated {
		return
	}
	pending[change.Path] = change
}

// addRecursive registers root and every visible subdirectory with the
// watcher.
func addRecursive(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root {
			rel, relErr := filepath.Rel(root, path)
			if relErr == nil && isHidden(rel) {
				return filepath.SkipDir
			}
		}
		if addErr := fsw.Add(path); addErr != nil {
			return fmt.Errorf("watch %s: %w", path, addErr)
		}
		return nil
	})
}
