package app

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/dshills/markview/internal/document"
	"github.com/dshills/markview/internal/logger"
)

// reloadDebounce coalesces bursts of file events into one reload.
const reloadDebounce = 100 * time.Millisecond

// mirror keeps an on-disk file and a document buffer in step: disk edits
// flow into the buffer, buffer mutations (checkbox toggles, resolved
// uploads) are written back out.
type mirror struct {
	buf  *document.Buffer
	path string

	fsw *fsnotify.Watcher
	sub *document.Subscription

	mu    sync.Mutex
	timer *time.Timer

	done chan struct{}
	wg   sync.WaitGroup
	log  *logrus.Entry
}

// newMirror pairs buf with the file at path. Call Start to begin syncing.
func newMirror(buf *document.Buffer, path string) *mirror {
	return &mirror{
		buf:  buf,
		path: path,
		done: make(chan struct{}),
		log:  logger.WithComponent("mirror"),
	}
}

// Start watches the file's directory and subscribes to buffer changes.
// The parent directory is watched so save-by-rename editors still deliver
// events.
func (m *mirror) Start() error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("app: start file watcher: %w", err)
	}
	dir := filepath.Dir(m.path)
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return fmt.Errorf("app: watch %s: %w", dir, err)
	}
	m.fsw = fsw
	m.sub = m.buf.Events().Subscribe(m.onBufferEvent)

	m.wg.Add(1)
	go m.loop()
	return nil
}

// loop filters directory events down to the mirrored file.
func (m *mirror) loop() {
	defer m.wg.Done()

	base := filepath.Base(m.path)
	for {
		select {
		case <-m.done:
			return

		case ev, ok := <-m.fsw.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != base {
				continue
			}
			if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Rename) {
				continue
			}
			m.schedule()

		case err, ok := <-m.fsw.Errors:
			if !ok {
				return
			}
			m.log.WithField("error", err).Debug("file watcher error")
		}
	}
}

// schedule arms the debounce timer, replacing a pending one.
func (m *mirror) schedule() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = time.AfterFunc(reloadDebounce, m.reload)
}

// reload pulls the file into the buffer. An on-disk save renders even
// when live_update is off, so the change is published as a save too.
func (m *mirror) reload() {
	data, err := os.ReadFile(m.path)
	if err != nil {
		m.log.WithField("error", err).Warn("reload failed")
		return
	}
	text := string(data)
	if text == m.buf.Text() {
		return
	}
	m.buf.SetText(text)
	m.buf.Save()
}

// onBufferEvent writes buffer mutations back to disk. Content pulled in
// by reload compares equal and is skipped, which keeps the two directions
// from chasing each other.
func (m *mirror) onBufferEvent(ev document.Event) {
	if ev.Kind != document.EventChange {
		return
	}

	text := m.buf.Text()
	data, err := os.ReadFile(m.path)
	if err == nil && string(data) == text {
		return
	}
	if err := os.WriteFile(m.path, []byte(text), 0o644); err != nil {
		m.log.WithField("error", err).Warn("write-back failed")
	}
}

// Close stops both sync directions. Safe to call before Start.
func (m *mirror) Close() {
	select {
	case <-m.done:
		return
	default:
		close(m.done)
	}

	if m.sub != nil {
		m.sub.Unsubscribe()
	}
	if m.fsw != nil {
		m.fsw.Close()
	}
	m.wg.Wait()

	m.mu.Lock()
	if m.timer != nil {
		m.timer.Stop()
	}
	m.mu.Unlock()
}
