package plugin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

// DefaultWatchDebounce is the quiet period before a rescan.
const DefaultWatchDebounce = 500 * time.Millisecond

// Watcher rescans the plugins directory when plugin files appear, change
// or disappear. Bursts of events collapse into one ScanForPlugins.
type Watcher struct {
	mu sync.Mutex

	manager  *Manager
	fsw      *fsnotify.Watcher
	dir      string
	debounce time.Duration
	clock    clockwork.Clock
	log      *logrus.Entry

	// Pending rescan
	timer clockwork.Timer

	onScan func(names []string, err error)

	// Lifecycle. closedWg covers processLoop and any running rescan.
	closed   bool
	closeCh  chan struct{}
	closedWg sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets the quiet period before a rescan.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithWatchClock sets the clock driving the debounce timer.
func WithWatchClock(c clockwork.Clock) WatcherOption {
	return func(w *Watcher) {
		if c != nil {
			w.clock = c
		}
	}
}

// OnScan registers a callback run after each triggered rescan.
func OnScan(fn func(names []string, err error)) WatcherOption {
	return func(w *Watcher) {
		w.onScan = fn
	}
}

// NewWatcher starts watching m's plugins directory, creating it if
// needed.
func NewWatcher(m *Manager, opts ...WatcherOption) (*Watcher, error) {
	dir := m.config.PluginsDir
	if !m.platform.FileBacked() {
		return nil, fmt.Errorf("platform has no plugin files to watch")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, newError(KindFilesystem, "", "watch", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, newError(KindFilesystem, "", "watch", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, newError(KindFilesystem, "", "watch", err)
	}

	w := &Watcher{
		manager:  m,
		fsw:      fsw,
		dir:      dir,
		debounce: DefaultWatchDebounce,
		clock:    m.clock,
		log:      m.log.WithField("dir", dir),
		closeCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.ctx, w.cancel = context.WithCancel(context.Background())

	w.closedWg.Add(1)
	go w.processLoop()
	return w, nil
}

// Dir returns the watched directory.
func (w *Watcher) Dir() string {
	return w.dir
}

// Close stops the watcher, cancels a pending rescan and waits for a
// running one to finish.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.closeCh)
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.mu.Unlock()

	w.cancel()
	w.closedWg.Wait()
	return w.fsw.Close()
}

// processLoop handles incoming fsnotify events.
func (w *Watcher) processLoop() {
	defer w.closedWg.Done()

	for {
		select {
		case <-w.closeCh:
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if w.relevant(ev) {
				w.schedule()
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.WithError(err).Warn("plugin directory watch error")
		}
	}
}

// relevant reports whether ev concerns a file following the platform
// naming convention.
func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Write) &&
		!ev.Op.Has(fsnotify.Rename) && !ev.Op.Has(fsnotify.Remove) {
		return false
	}
	_, ok := w.manager.platform.PluginName(filepath.Base(ev.Name))
	return ok
}

// schedule (re)starts the debounce timer.
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = w.clock.AfterFunc(w.debounce, w.rescan)
}

func (w *Watcher) rescan() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.timer = nil
	w.closedWg.Add(1)
	w.mu.Unlock()
	defer w.closedWg.Done()

	names, err := w.manager.ScanForPlugins(w.ctx)
	if err != nil {
		w.log.WithError(err).Warn("plugin rescan reported errors")
	} else {
		w.log.WithField("found", len(names)).Debug("plugin directory rescanned")
	}
	if w.onScan != nil {
		w.onScan(names, err)
	}
}
