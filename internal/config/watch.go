package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce coalesces bursts of file events into one reload.
const watchDebounce = 100 * time.Millisecond

// watcher reloads the settings file when it changes on disk.
type watcher struct {
	fsw     *fsnotify.Watcher
	manager *Manager

	mu    sync.Mutex
	timer *time.Timer

	done chan struct{}
	wg   sync.WaitGroup
}

// Watch starts reloading the settings file on change. The parent
// directory is watched so save-by-rename editors still deliver events.
// Calling Watch on a watching manager is a no-op.
func (m *Manager) Watch() error {
	m.mu.Lock()
	if m.watch != nil {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: start watcher: %w", err)
	}
	dir := filepath.Dir(m.path)
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return fmt.Errorf("config: watch %s: %w", dir, err)
	}

	w := &watcher{
		fsw:     fsw,
		manager: m,
		done:    make(chan struct{}),
	}

	m.mu.Lock()
	m.watch = w
	m.mu.Unlock()

	w.wg.Add(1)
	go w.loop()
	return nil
}

// loop filters directory events down to the settings file.
func (w *watcher) loop() {
	defer w.wg.Done()

	base := filepath.Base(w.manager.path)
	for {
		select {
		case <-w.done:
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != base {
				continue
			}
			if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Rename) {
				continue
			}
			w.schedule()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.manager.log.WithField("error", err).Debug("settings watcher error")
		}
	}
}

// schedule arms the debounce timer, replacing a pending one.
func (w *watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(watchDebounce, w.reload)
}

// reload re-reads the file; a broken file keeps the previous settings.
func (w *watcher) reload() {
	if err := w.manager.Load(); err != nil {
		w.manager.log.WithField("error", err).Warn("settings reload failed")
	}
}

// close stops the watcher and waits for the loop to exit.
func (w *watcher) close() error {
	close(w.done)
	err := w.fsw.Close()
	w.wg.Wait()

	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	return err
}
