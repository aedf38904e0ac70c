package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"
)

var ErrWatcherClosed = errors.New("watcher already stopped")

const DefaultQuietPeriod = 2 * time.Second

// Syncer is the part of Service the watcher drives.
type Syncer interface {
	Sync(ctx context.Context) (Result, error)
	RemoveFile(ctx context.Context, path string) (bool, error)
	Supports(path string) bool
}

// Watcher keeps the library in step with the music root between full syncs. Every path
// gets its own debouncer; once a path has been quiet for the configured period its final
// state on disk decides the action. New files trigger a coalesced full sync, vanished
// files are removed one by one.
//
// A Watcher goes Idle -> Watching -> stopped. Start and Stop are idempotent; a stopped
// watcher cannot be restarted.
type Watcher struct {
	root   string
	syncer Syncer
	quiet  time.Duration
	logger *slog.Logger

	mu         sync.Mutex
	fsw        *fsnotify.Watcher
	stopped    bool
	dirs       map[string]struct{}
	debouncers map[string]func(func())
	trigger    chan struct{}
	done       chan struct{}
	wg         sync.WaitGroup
}

func NewWatcher(root string, syncer Syncer, quiet time.Duration, logger *slog.Logger) *Watcher {
	if quiet <= 0 {
		quiet = DefaultQuietPeriod
	}

	return &Watcher{
		root:   filepath.Clean(root),
		syncer: syncer,
		quiet:  quiet,
		logger: logger.With("component", "watcher"),
	}
}

func (w *Watcher) Watching() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.fsw != nil
}

func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return ErrWatcherClosed
	}
	if w.fsw != nil {
		return nil
	}

	info, err := os.Stat(w.root)
	if err != nil {
		return fmt.Errorf("stat music root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("music root %s is not a directory", w.root)
	}
	if canonical, err := filepath.EvalSymlinks(w.root); err == nil {
		w.root = canonical
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}

	w.fsw = fsw
	w.dirs = make(map[string]struct{})
	w.debouncers = make(map[string]func(func()))
	w.trigger = make(chan struct{}, 1)
	w.done = make(chan struct{})

	if err := w.addTreeLocked(w.root); err != nil {
		_ = fsw.Close()
		w.fsw = nil
		return err
	}

	w.wg.Add(2)
	go w.loop(fsw, w.done)
	go w.syncLoop(w.trigger, w.done)

	w.logger.Info("watching music directory", "root", w.root, "directories", len(w.dirs), "quietPeriod", w.quiet)
	return nil
}

// Stop closes the fsnotify handle and waits for an in-flight sync or removal to finish.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	w.stopped = true
	fsw := w.fsw
	if fsw == nil {
		w.mu.Unlock()
		return nil
	}
	w.fsw = nil
	close(w.done)
	w.debouncers = nil
	w.mu.Unlock()

	closeErr := fsw.Close()
	w.wg.Wait()

	w.logger.Info("watcher stopped", "root", w.root)
	if closeErr != nil {
		return fmt.Errorf("close fsnotify watcher: %w", closeErr)
	}
	return nil
}

func (w *Watcher) loop(fsw *fsnotify.Watcher, done <-chan struct{}) {
	defer w.wg.Done()

	for {
		select {
		case <-done:
			return
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	path := filepath.Clean(event.Name)

	switch {
	case event.Has(fsnotify.Create):
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			w.mu.Lock()
			if w.fsw != nil {
				if err := w.addTreeLocked(path); err != nil {
					w.logger.Warn("failed to watch new directory", "dir", path, "error", err)
				}
			}
			w.mu.Unlock()
			w.schedule(path)
			return
		}
		if w.syncer.Supports(path) {
			w.schedule(path)
		}
	case event.Has(fsnotify.Write):
		if w.syncer.Supports(path) {
			w.schedule(path)
		}
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		if w.syncer.Supports(path) || w.isWatchedDir(path) {
			w.schedule(path)
		}
	}
}

func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	if w.debouncers == nil {
		w.mu.Unlock()
		return
	}
	debounced, ok := w.debouncers[path]
	if !ok {
		debounced = debounce.New(w.quiet)
		w.debouncers[path] = debounced
	}
	w.mu.Unlock()

	debounced(func() { w.dispatch(path) })
}

// dispatch runs once a path has been quiet for the full window.
func (w *Watcher) dispatch(path string) {
	w.mu.Lock()
	if w.fsw == nil {
		w.mu.Unlock()
		return
	}
	delete(w.debouncers, path)
	_, wasDir := w.dirs[path]
	w.wg.Add(1)
	w.mu.Unlock()
	defer w.wg.Done()

	info, err := os.Stat(path)
	switch {
	case err == nil && info.IsDir():
		w.logger.Info("directory added", "dir", path)
		w.requestSync()
	case err == nil && w.syncer.Supports(path):
		w.logger.Info("file added", "file", path)
		w.requestSync()
	case errors.Is(err, fs.ErrNotExist) && wasDir:
		w.forgetTree(path)
		w.logger.Info("directory removed", "dir", path)
		w.requestSync()
	case errors.Is(err, fs.ErrNotExist):
		removed, removeErr := w.syncer.RemoveFile(context.Background(), path)
		if removeErr != nil {
			w.logger.Error("failed to remove track", "file", path, "error", removeErr)
			return
		}
		w.logger.Info("file removed", "file", path, "trackRemoved", removed)
	case err != nil:
		w.logger.Warn("cannot stat changed path", "path", path, "error", err)
	}
}

// requestSync queues a full sync; requests arriving while one is pending collapse into it.
func (w *Watcher) requestSync() {
	w.mu.Lock()
	trigger := w.trigger
	w.mu.Unlock()

	select {
	case trigger <- struct{}{}:
	default:
	}
}

func (w *Watcher) syncLoop(trigger <-chan struct{}, done <-chan struct{}) {
	defer w.wg.Done()

	for {
		select {
		case <-done:
			return
		case <-trigger:
			result, err := w.syncer.Sync(context.Background())
			if err != nil {
				w.logger.Error("watcher-triggered sync failed", "error", err)
				continue
			}
			w.logger.Info("watcher-triggered sync finished", "added", result.Added, "pruned", result.Pruned, "errors", len(result.Errors))
		}
	}
}

func (w *Watcher) addTreeLocked(root string) error {
	return filepath.WalkDir(root, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == root {
				return walkErr
			}
			w.logger.Warn("skipping unreadable directory", "dir", path, "error", walkErr)
			return fs.SkipDir
		}
		if !entry.IsDir() {
			return nil
		}

		if _, ok := w.dirs[path]; ok {
			return nil
		}
		if err := w.fsw.Add(path); err != nil {
			if path == root {
				return fmt.Errorf("watch %s: %w", path, err)
			}
			w.logger.Warn("failed to watch directory", "dir", path, "error", err)
			return fs.SkipDir
		}
		w.dirs[path] = struct{}{}
		return nil
	})
}

func (w *Watcher) isWatchedDir(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.dirs[path]
	return ok
}

func (w *Watcher) forgetTree(root string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	prefix := root + string(filepath.Separator)
	for dir := range w.dirs {
		if dir == root || strings.HasPrefix(dir, prefix) {
			delete(w.dirs, dir)
		}
	}
}
