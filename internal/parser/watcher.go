package parser

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vyrodovalexey/nacmval/internal/nacm"
	"github.com/vyrodovalexey/nacmval/internal/observability"
)

// ReloadCallback receives the freshly merged policy after a successful
// reload, together with the advisory merge conflicts.
type ReloadCallback func(policy *nacm.Policy, conflicts []nacm.Conflict)

// ErrorCallback is called when a reload fails or a source is skipped.
type ErrorCallback func(error)

// Watcher watches a source directory for changes and re-merges the policy.
// Every reload produces a brand-new Policy; the callback is expected to
// swap it into the running engine atomically, never to patch the old one.
type Watcher struct {
	dir           string
	watcher       *fsnotify.Watcher
	callback      ReloadCallback
	errorCallback ErrorCallback
	logger        observability.Logger
	debounceDelay time.Duration
	lastPolicy    *nacm.Policy
	mu            sync.RWMutex
	stopCh        chan struct{}
	stoppedCh     chan struct{}
	running       bool
}

// WatcherOption is a functional option for configuring the watcher.
type WatcherOption func(*Watcher)

// WithDebounceDelay sets the debounce delay for file changes.
func WithDebounceDelay(delay time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounceDelay = delay
	}
}

// WithLogger sets the logger for the watcher.
func WithLogger(logger observability.Logger) WatcherOption {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// WithErrorCallback sets the error callback for the watcher.
func WithErrorCallback(callback ErrorCallback) WatcherOption {
	return func(w *Watcher) {
		w.errorCallback = callback
	}
}

// NewWatcher creates a watcher over the given source directory.
func NewWatcher(dir string, callback ReloadCallback, opts ...WatcherOption) (*Watcher, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		dir:           absDir,
		watcher:       fsWatcher,
		callback:      callback,
		debounceDelay: 100 * time.Millisecond,
		logger:        observability.NopLogger(),
		stopCh:        make(chan struct{}),
		stoppedCh:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w, nil
}

// Start performs an initial load and begins watching the directory. The
// initial load failing is fatal; later reload failures keep the previous
// policy in effect and are reported through the error callback.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	policy, conflicts, err := w.load()
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.lastPolicy = policy
	w.mu.Unlock()

	if err := w.watcher.Add(w.dir); err != nil {
		return err
	}

	w.logger.Info("started watching policy sources",
		observability.String("dir", w.dir),
	)

	if w.callback != nil {
		w.callback(policy, conflicts)
	}

	go w.watch(ctx)

	return nil
}

// Stop stops watching the source directory.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.stoppedCh

	return w.watcher.Close()
}

// LastPolicy returns the last successfully merged policy.
func (w *Watcher) LastPolicy() *nacm.Policy {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastPolicy
}

// watch is the main watch loop.
func (w *Watcher) watch(ctx context.Context) {
	defer close(w.stoppedCh)

	var debounceTimer *time.Timer
	var debounceCh <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("policy watcher stopped due to context cancellation")
			return

		case <-w.stopCh:
			w.logger.Info("policy watcher stopped")
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			debounceTimer, debounceCh = w.handleFileEvent(event, debounceTimer, debounceCh)

		case <-debounceCh:
			debounceCh = nil
			w.reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.handleWatchError(err)
		}
	}
}

// handleFileEvent processes a file system event and returns the updated
// debounce timer. Only .xml sources in the watched directory count.
func (w *Watcher) handleFileEvent(
	event fsnotify.Event,
	debounceTimer *time.Timer,
	debounceCh <-chan time.Time,
) (timer *time.Timer, ch <-chan time.Time) {
	if !strings.EqualFold(filepath.Ext(event.Name), ".xml") {
		return debounceTimer, debounceCh
	}

	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return debounceTimer, debounceCh
	}

	w.logger.Debug("policy source changed",
		observability.String("path", event.Name),
		observability.String("op", event.Op.String()),
	)

	if debounceTimer != nil {
		debounceTimer.Stop()
	}
	debounceTimer = time.NewTimer(w.debounceDelay)
	return debounceTimer, debounceTimer.C
}

// handleWatchError handles watcher errors.
func (w *Watcher) handleWatchError(err error) {
	w.logger.Error("policy watcher error",
		observability.Error(err),
	)
	if w.errorCallback != nil {
		w.errorCallback(err)
	}
}

// load loads all sources and merges them. Skipped sources are reported
// through the error callback but do not fail the load.
func (w *Watcher) load() (*nacm.Policy, []nacm.Conflict, error) {
	policies, failures, err := LoadDir(w.dir)
	if err != nil {
		return nil, nil, err
	}

	for _, failure := range failures {
		w.logger.Warn("skipping unparsable policy source",
			observability.String("path", failure.Path),
			observability.Error(failure.Err),
		)
		if w.errorCallback != nil {
			w.errorCallback(failure)
		}
	}

	policy, conflicts := nacm.Merge(policies)
	for _, conflict := range conflicts {
		w.logger.Warn("policy merge conflict",
			observability.String("kind", string(conflict.Kind)),
			observability.String("name", conflict.Name),
			observability.String("detail", conflict.Detail),
		)
	}

	return policy, conflicts, nil
}

// reload attempts to reload the policy sources after a change.
func (w *Watcher) reload() {
	w.logger.Info("reloading policy sources",
		observability.String("dir", w.dir),
	)

	policy, conflicts, err := w.load()
	if err != nil {
		w.logger.Error("failed to reload policy sources",
			observability.Error(err),
		)
		if w.errorCallback != nil {
			w.errorCallback(err)
		}
		return
	}

	w.mu.Lock()
	w.lastPolicy = policy
	w.mu.Unlock()

	w.logger.Info("policy sources reloaded",
		observability.Int("groups", len(policy.Groups)),
		observability.Int("rule_lists", len(policy.RuleLists)),
	)

	if w.callback != nil {
		w.callback(policy, conflicts)
	}
}
