// Package shaderwatch reloads gx shaders when their SPIR-V files change on
// disk.
//
// File events arrive on a background goroutine and are only recorded there.
// The reload itself happens in Poll, which must be called from the goroutine
// that owns the GX, typically once per frame before recording commands.
package shaderwatch

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"

	"github.com/celer/gx"
)

var logger atomic.Pointer[slog.Logger]

// SetLogger overrides the logger used by watchers. A nil logger restores
// gx.Logger.
func SetLogger(l *slog.Logger) {
	logger.Store(l)
}

func log() *slog.Logger {
	if l := logger.Load(); l != nil {
		return l
	}
	return gx.Logger()
}

type Watcher struct {
	g  *gx.GX
	fs *fsnotify.Watcher

	mu      sync.Mutex
	shaders map[string]gx.ShaderHandle
	dirs    map[string]int
	dirty   map[string]struct{}

	done chan struct{}
	wg   sync.WaitGroup
}

func New(g *gx.GX) (*Watcher, error) {
	if g == nil {
		return nil, errors.New("shaderwatch: nil GX")
	}
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "create file watcher")
	}
	w := &Watcher{
		g:       g,
		fs:      fs,
		shaders: make(map[string]gx.ShaderHandle),
		dirs:    make(map[string]int),
		dirty:   make(map[string]struct{}),
		done:    make(chan struct{}),
	}
	w.wg.Add(1)
	go w.run()
	return w, nil
}

// Watch reloads h from path whenever the file is written or replaced. The
// parent directory is watched rather than the file so editors that save
// through a rename are picked up too.
func (w *Watcher) Watch(path string, h gx.ShaderHandle) error {
	if h.Empty() {
		return errors.Newf("watch %s: empty shader handle", path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return errors.Wrapf(err, "watch %s", path)
	}
	dir := filepath.Dir(abs)

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.shaders[abs]; ok {
		w.shaders[abs] = h
		return nil
	}
	if w.dirs[dir] == 0 {
		if err := w.fs.Add(dir); err != nil {
			return errors.Wrapf(err, "watch %s", dir)
		}
	}
	w.dirs[dir]++
	w.shaders[abs] = h
	log().Debug("watching shader", "path", abs, "shader", h.String())
	return nil
}

func (w *Watcher) Unwatch(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return errors.Wrapf(err, "unwatch %s", path)
	}
	dir := filepath.Dir(abs)

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.shaders[abs]; !ok {
		return nil
	}
	delete(w.shaders, abs)
	delete(w.dirty, abs)
	w.dirs[dir]--
	if w.dirs[dir] > 0 {
		return nil
	}
	delete(w.dirs, dir)
	return errors.Wrapf(w.fs.Remove(dir), "unwatch %s", dir)
}

// Pending reports how many watched files changed since the last Poll.
func (w *Watcher) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.dirty)
}

// Poll reloads every shader whose file changed since the previous call and
// returns how many were reloaded. Files that fail to read or compile keep
// their previous module; the failures are combined into the returned error.
func (w *Watcher) Poll() (int, error) {
	w.mu.Lock()
	if len(w.dirty) == 0 {
		w.mu.Unlock()
		return 0, nil
	}
	changed := make(map[string]gx.ShaderHandle, len(w.dirty))
	for path := range w.dirty {
		changed[path] = w.shaders[path]
	}
	w.dirty = make(map[string]struct{})
	w.mu.Unlock()

	var (
		n    int
		errs error
	)
	for path, h := range changed {
		data, err := os.ReadFile(path)
		if err != nil {
			errs = errors.CombineErrors(errs, errors.Wrapf(err, "read shader %s", path))
			continue
		}
		if err := w.g.ReloadShader(h, data); err != nil {
			log().Warn("shader reload failed", "path", path, "err", err)
			errs = errors.CombineErrors(errs, err)
			continue
		}
		n++
	}
	return n, errs
}

func (w *Watcher) Close() error {
	select {
	case <-w.done:
		return nil
	default:
	}
	close(w.done)
	err := w.fs.Close()
	w.wg.Wait()
	return errors.Wrap(err, "close file watcher")
}

func (w *Watcher) run() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			w.mark(ev.Name)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			log().Warn("shader watcher error", "err", err)
		}
	}
}

func (w *Watcher) mark(name string) {
	abs, err := filepath.Abs(name)
	if err != nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.shaders[abs]; ok {
		w.dirty[abs] = struct{}{}
	}
}
