package watcher

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"cdr.dev/slog/v3"
	"github.com/fsnotify/fsnotify"
	"github.com/gofrs/flock"

	"github.com/justdice/usagestats/internal/ingest"
)

// LockName is the lock file created inside the spool directory.
const LockName = ".usagestats.lock"

// DefaultRescanInterval is how often the spool is rescanned in full.
const DefaultRescanInterval = 30 * time.Second

// ErrAlreadyRunning is returned by Start when another watcher holds the
// spool lock.
var ErrAlreadyRunning = errors.New("another watcher is already serving this spool directory")

// Watcher imports dumps dropped into a spool directory.
type Watcher struct {
	importer *ingest.Importer
	dir      string
	interval time.Duration
	logger   slog.Logger

	lock     *flock.Flock
	fsw      *fsnotify.Watcher
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	started  bool
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithRescanInterval overrides DefaultRescanInterval.
func WithRescanInterval(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// New creates a new Watcher instance.
func New(importer *ingest.Importer, dir string, logger slog.Logger, opts ...Option) (*Watcher, error) {
	if importer == nil {
		return nil, fmt.Errorf("importer cannot be nil")
	}
	if dir == "" {
		return nil, fmt.Errorf("spool directory cannot be empty")
	}
	w := &Watcher{
		importer: importer,
		dir:      dir,
		interval: DefaultRescanInterval,
		logger:   logger.Named("watcher"),
		lock:     flock.New(filepath.Join(dir, LockName)),
		stopCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start takes the spool lock, imports whatever is already waiting and
// begins watching. It returns ErrAlreadyRunning if the lock is held.
func (w *Watcher) Start(ctx context.Context) error {
	locked, err := w.lock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to lock %s: %w", w.lock.Path(), err)
	}
	if !locked {
		return ErrAlreadyRunning
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.lock.Unlock()
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fsw.Add(w.dir); err != nil {
		fsw.Close()
		w.lock.Unlock()
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}
	w.fsw = fsw
	w.started = true

	w.logger.Info(ctx, "watching spool directory", slog.F("dir", w.dir), slog.F("rescan", w.interval))
	w.rescan(ctx)

	w.wg.Add(1)
	go w.loop(ctx)
	return nil
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleFileEvent(ctx, ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn(ctx, "file watcher error", slog.Error(err))
		case <-ticker.C:
			w.rescan(ctx)
		case <-ctx.Done():
			return
		case <-w.stopCh:
			// Final pass for anything that arrived since the last event.
			w.rescan(context.WithoutCancel(ctx))
			return
		}
	}
}

// handleFileEvent imports a dump that was created or written to.
func (w *Watcher) handleFileEvent(ctx context.Context, ev fsnotify.Event) {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return
	}
	if _, ok := ingest.FormatFor(ev.Name); !ok {
		return
	}
	if _, err := w.importer.ImportFile(ctx, ev.Name); err != nil {
		// Likely still being written; the next event or rescan retries.
		w.logger.Debug(ctx, "dump not imported yet", slog.F("path", ev.Name), slog.Error(err))
	}
}

func (w *Watcher) rescan(ctx context.Context) {
	// ImportDir logs failing files itself.
	if _, err := w.importer.ImportDir(ctx, w.dir); err != nil && ctx.Err() == nil {
		w.logger.Debug(ctx, "rescan left dumps behind", slog.Error(err))
	}
}

// Stop halts the watcher, runs a final rescan and releases the lock. It
// is safe to call before Start and more than once.
func (w *Watcher) Stop() error {
	w.stopOnce.Do(func() { close(w.stopCh) })
	if !w.started {
		return nil
	}
	w.wg.Wait()
	w.started = false

	var errs []error
	if err := w.fsw.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close file watcher: %w", err))
	}
	if err := w.lock.Unlock(); err != nil {
		errs = append(errs, fmt.Errorf("failed to release %s: %w", w.lock.Path(), err))
	}
	return errors.Join(errs...)
}

// Run starts the watcher and blocks until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return w.Stop()
}
