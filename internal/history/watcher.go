package history

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DebounceDelay is the default delay for debouncing file system events.
// Agents rewrite transcripts in bursts; one notification per burst is enough.
const DebounceDelay = 200 * time.Millisecond

// ChangeEvent notifies that a workspace's transcripts changed.
type ChangeEvent struct {
	// Workspace is the workspace path whose history changed.
	Workspace string
	// Timestamp is when the change was detected.
	Timestamp time.Time
}

// Watcher monitors a store's project directories and notifies a callback
// when transcripts change. Rapid bursts of events collapse into one
// notification per workspace.
//
// Thread-safety: all public methods are safe for concurrent use.
type Watcher struct {
	mu sync.Mutex

	watcher *fsnotify.Watcher
	store   *Store
	// dirWorkspace maps watched project directories back to workspaces.
	dirWorkspace map[string]string

	debounceDelay time.Duration
	pending       map[string]struct{}
	debounceTimer *time.Timer

	onChange func(ChangeEvent)
	logger   *slog.Logger

	done    chan struct{}
	stopped chan struct{}
}

// NewWatcher creates a watcher over the store's project directories.
// Call Start() to begin watching and Close() when done.
func NewWatcher(store *Store, onChange func(ChangeEvent), logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Watcher{
		watcher:       fsw,
		store:         store,
		dirWorkspace:  make(map[string]string),
		debounceDelay: DebounceDelay,
		pending:       make(map[string]struct{}),
		onChange:      onChange,
		logger:        logger,
		done:          make(chan struct{}),
		stopped:       make(chan struct{}),
	}, nil
}

// SetDebounceDelay sets the debounce delay for batching rapid changes.
// Must be called before Start().
func (w *Watcher) SetDebounceDelay(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.debounceDelay = d
}

// Start begins the event processing loop.
func (w *Watcher) Start() {
	go w.eventLoop()
}

// Close stops the watcher and releases resources. After Close returns, no
// more events are delivered.
func (w *Watcher) Close() error {
	close(w.done)
	err := w.watcher.Close()
	<-w.stopped

	w.mu.Lock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.mu.Unlock()
	return err
}

// WatchWorkspace starts watching the project directories of one workspace.
// Directories that don't exist yet are skipped; call again after the agent
// creates them.
func (w *Watcher) WatchWorkspace(workspacePath string) error {
	resolved := resolveWorkspace(workspacePath)

	w.mu.Lock()
	defer w.mu.Unlock()

	for _, dir := range w.store.projectDirs(workspacePath, resolved) {
		if _, watched := w.dirWorkspace[dir]; watched {
			continue
		}
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			continue
		}
		if err := w.watcher.Add(dir); err != nil {
			return err
		}
		w.dirWorkspace[dir] = workspacePath
		w.logger.Debug("watching history dir", "dir", dir, "workspace", workspacePath)
	}
	return nil
}

// UnwatchWorkspace stops watching the project directories of one workspace.
func (w *Watcher) UnwatchWorkspace(workspacePath string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for dir, ws := range w.dirWorkspace {
		if ws != workspacePath {
			continue
		}
		_ = w.watcher.Remove(dir)
		delete(w.dirWorkspace, dir)
	}
}

func (w *Watcher) eventLoop() {
	defer close(w.stopped)

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !isTranscriptEvent(event) {
				continue
			}
			w.recordChange(filepath.Dir(event.Name))

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("history watcher error", "error", err)
		}
	}
}

// isTranscriptEvent filters events down to transcript file writes, creates
// and removals.
func isTranscriptEvent(event fsnotify.Event) bool {
	name := filepath.Base(event.Name)
	if !strings.HasPrefix(name, SessionFilePrefix) || !strings.HasSuffix(name, SessionFileSuffix) {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0
}

// recordChange marks the workspace dirty and arms the debounce timer.
func (w *Watcher) recordChange(dir string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	workspace, ok := w.dirWorkspace[dir]
	if !ok {
		return
	}
	w.pending[workspace] = struct{}{}

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.debounceDelay, w.flushPending)
}

// flushPending delivers one change event per dirty workspace.
func (w *Watcher) flushPending() {
	w.mu.Lock()
	pending := w.pending
	w.pending = make(map[string]struct{})
	w.mu.Unlock()

	now := time.Now()
	for workspace := range pending {
		select {
		case <-w.done:
			return
		default:
		}
		w.onChange(ChangeEvent{Workspace: workspace, Timestamp: now})
	}
}
