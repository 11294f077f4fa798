package inbox

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watcher turns fsnotify events on one directory into settled file paths.
// A path is emitted once its size and mtime stop changing.
type watcher struct {
	logger  *slog.Logger
	opts    Options
	fs      *fsnotify.Watcher
	pending map[string]*pendingFile
	mu      sync.Mutex

	settled chan string
	done    chan struct{}
	wg      sync.WaitGroup
}

type pendingFile struct {
	size    int64
	modTime time.Time
	timer   *time.Timer
}

func newWatcher(logger *slog.Logger, opts Options) (*watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := fs.Add(opts.Path); err != nil {
		fs.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", opts.Path, err)
	}
	return &watcher{
		logger:  logger,
		opts:    opts,
		fs:      fs,
		pending: make(map[string]*pendingFile),
		settled: make(chan string, 64),
		done:    make(chan struct{}),
	}, nil
}

// start forwards fsnotify events until ctx is done or stop is called.
func (w *watcher) start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
}

func (w *watcher) run(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("inbox watch error", "error", err)
		}
	}
}

func (w *watcher) handle(ev fsnotify.Event) {
	if w.opts.shouldIgnore(ev.Name) {
		return
	}
	switch {
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		w.cancel(ev.Name)
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		w.settle(ev.Name)
	}
}

// settle (re)starts the settle timer for path.
func (w *watcher) settle(path string) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if p, ok := w.pending[path]; ok {
		p.timer.Stop()
	}
	w.pending[path] = &pendingFile{
		size:    info.Size(),
		modTime: info.ModTime(),
		timer:   time.AfterFunc(w.opts.SettleDelay, func() { w.check(path) }),
	}
}

func (w *watcher) check(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	p, ok := w.pending[path]
	if !ok {
		return
	}
	info, err := os.Stat(path)
	if err != nil {
		delete(w.pending, path)
		return
	}
	if info.Size() != p.size || !info.ModTime().Equal(p.modTime) {
		p.size, p.modTime = info.Size(), info.ModTime()
		p.timer = time.AfterFunc(w.opts.SettleDelay, func() { w.check(path) })
		return
	}

	delete(w.pending, path)
	select {
	case w.settled <- path:
	case <-w.done:
	}
}

func (w *watcher) cancel(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if p, ok := w.pending[path]; ok {
		p.timer.Stop()
		delete(w.pending, path)
	}
}

func (w *watcher) stop() error {
	close(w.done)

	w.mu.Lock()
	for _, p := range w.pending {
		p.timer.Stop()
	}
	clear(w.pending)
	w.mu.Unlock()

	err := w.fs.Close()
	w.wg.Wait()
	return err
}
