// Package watch keeps reloadable configuration sources current. File sources
// are reloaded on filesystem events, database sources on a polling interval.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/eugenenazirov/confkit/pkg/source"
)

const defaultDebounce = 200 * time.Millisecond

// Refresher is a source that re-reads its backing store on demand.
type Refresher interface {
	Name() string
	Refresh(ctx context.Context) error
}

// ReloadHook is called after every reload attempt.
type ReloadHook func(name string, err error)

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets how long a file must stay quiet before it is reloaded.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithPollInterval enables periodic refresh of refreshers. Zero disables polling.
func WithPollInterval(d time.Duration) Option {
	return func(w *Watcher) {
		w.poll = d
	}
}

// WithReloadHook registers fn to observe reloads.
func WithReloadHook(fn ReloadHook) Option {
	return func(w *Watcher) {
		w.hook = fn
	}
}

// Watcher reloads file sources when their files change.
type Watcher struct {
	mu         sync.Mutex
	watcher    *fsnotify.Watcher
	logger     *zap.Logger
	files      map[string]source.Reloadable
	dirs       map[string]struct{}
	refreshers []Refresher
	pending    map[string]time.Time
	debounce   time.Duration
	poll       time.Duration
	hook       ReloadHook
	stopCh     chan struct{}
	doneCh     chan struct{}
	running    bool
	closed     bool
}

// New creates a Watcher. Call Start to begin watching and Stop to release it.
func New(logger *zap.Logger, opts ...Option) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fs watcher: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	w := &Watcher{
		watcher:  fw,
		logger:   logger,
		files:    make(map[string]source.Reloadable),
		dirs:     make(map[string]struct{}),
		pending:  make(map[string]time.Time),
		debounce: defaultDebounce,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// AddFile watches the backing file of s. The parent directory is watched so
// that editors replacing the file atomically are noticed.
func (w *Watcher) AddFile(s source.Reloadable) error {
	path := filepath.Clean(s.Path())
	if s.Path() == "" {
		return source.ErrNotReloadable
	}
	dir := filepath.Dir(path)

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.dirs[dir]; !ok {
		if err := w.watcher.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
		w.dirs[dir] = struct{}{}
	}
	w.files[path] = s
	return nil
}

// AddSources watches every reloadable source and polls every refresher among sources.
func (w *Watcher) AddSources(sources []source.Source) error {
	for _, s := range sources {
		switch v := s.(type) {
		case source.Reloadable:
			if v.Path() == "" {
				continue
			}
			if err := w.AddFile(v); err != nil {
				return err
			}
		case Refresher:
			w.AddRefresher(v)
		}
	}
	return nil
}

// AddRefresher polls r every poll interval.
func (w *Watcher) AddRefresher(r Refresher) {
	w.mu.Lock()
	w.refreshers = append(w.refreshers, r)
	w.mu.Unlock()
}

// Start begins watching. It does not block.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("watcher stopped")
	}
	if w.running {
		return nil
	}
	w.running = true

	go w.run(ctx)

	w.logger.Info("configuration watcher started",
		zap.Int("files", len(w.files)),
		zap.Int("refreshers", len(w.refreshers)),
	)
	return nil
}

// Stop stops the watch loop, waits for it to exit and releases the fs watcher.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	running := w.running
	w.mu.Unlock()

	if running {
		close(w.stopCh)
		<-w.doneCh
	}

	if err := w.watcher.Close(); err != nil {
		w.logger.Error("closing fs watcher failed", zap.Error(err))
	}
	w.logger.Info("configuration watcher stopped")
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	debounceTicker := time.NewTicker(w.tick())
	defer debounceTicker.Stop()

	var pollC <-chan time.Time
	if w.poll > 0 {
		pollTicker := time.NewTicker(w.poll)
		defer pollTicker.Stop()
		pollC = pollTicker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("fs watcher error", zap.Error(err))
		case <-debounceTicker.C:
			w.processPending()
		case <-pollC:
			w.refreshAll(ctx)
		}
	}
}

func (w *Watcher) tick() time.Duration {
	if t := w.debounce / 2; t > time.Millisecond {
		return t
	}
	return time.Millisecond
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	path := filepath.Clean(event.Name)

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.files[path]; !ok {
		return
	}

	switch {
	case event.Op&(fsnotify.Create|fsnotify.Write) != 0:
		w.pending[path] = time.Now()
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		w.logger.Warn("configuration file removed, keeping last properties", zap.String("path", path))
	}
}

func (w *Watcher) processPending() {
	now := time.Now()

	w.mu.Lock()
	var due []source.Reloadable
	for path, at := range w.pending {
		if now.Sub(at) < w.debounce {
			continue
		}
		due = append(due, w.files[path])
		delete(w.pending, path)
	}
	w.mu.Unlock()

	for _, s := range due {
		err := s.Reload()
		if err != nil {
			w.logger.Warn("configuration reload failed, keeping last properties",
				zap.String("source", s.Name()),
				zap.Error(err),
			)
		} else {
			w.logger.Info("configuration reloaded", zap.String("source", s.Name()))
		}
		w.notify(s.Name(), err)
	}
}

func (w *Watcher) refreshAll(ctx context.Context) {
	w.mu.Lock()
	refreshers := make([]Refresher, len(w.refreshers))
	copy(refreshers, w.refreshers)
	w.mu.Unlock()

	for _, r := range refreshers {
		err := r.Refresh(ctx)
		if err != nil {
			w.logger.Warn("configuration refresh failed", zap.String("source", r.Name()), zap.Error(err))
		}
		w.notify(r.Name(), err)
	}
}

func (w *Watcher) notify(name string, err error) {
	if w.hook != nil {
		w.hook(name, err)
	}
}
