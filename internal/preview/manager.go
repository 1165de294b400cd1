package preview

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/dshills/markview/internal/config"
	"github.com/dshills/markview/internal/document"
	"github.com/dshills/markview/internal/logger"
	"github.com/dshills/markview/internal/rescache"
	"github.com/dshills/markview/internal/surface"
	"github.com/dshills/markview/internal/uploader"
)

// Manager owns the preview sessions for a process. At most one session
// exists per document, plus a single shared session when single_preview
// is set; the shared session rebinds to whichever document the user
// opens a preview for next.
type Manager struct {
	mu        sync.Mutex
	sessions  map[document.Identity]*Session
	shared    *Session
	uploaders *uploader.Registry

	cache       *rescache.Cache
	config      *config.Manager
	notifier    Notifier
	host        document.Host
	opener      surface.Opener
	projectRoot string

	cfgSub *config.Subscription
	log    *logrus.Entry
}

// Option configures a Manager.
type Option func(*Manager)

// WithNotifier routes user-visible messages through n.
func WithNotifier(n Notifier) Option {
	return func(m *Manager) {
		m.notifier = n
	}
}

// WithHost wires the editor integration used to open document links
// inside the editor instead of through the native opener.
func WithHost(h document.Host) Option {
	return func(m *Manager) {
		m.host = h
	}
}

// WithOpener overrides how native targets are opened.
func WithOpener(o surface.Opener) Option {
	return func(m *Manager) {
		m.opener = o
	}
}

// WithProjectRoot sets the workspace root handed to engines and used to
// resolve the image folder.
func WithProjectRoot(root string) Option {
	return func(m *Manager) {
		m.projectRoot = root
	}
}

// NewManager creates a session manager that reads settings from cfg and
// caches engines in cache. The manager re-renders every session when
// settings change and rebuilds its uploader registry when the image
// configuration moves.
func NewManager(cache *rescache.Cache, cfg *config.Manager, opts ...Option) *Manager {
	m := &Manager{
		sessions: make(map[document.Identity]*Session),
		cache:    cache,
		config:   cfg,
		opener:   surface.NativeOpener{},
		log:      logger.WithComponent("preview"),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.notifier == nil {
		m.notifier = NewLogNotifier()
	}
	m.uploaders = buildUploaders(cfg.Settings(), m.projectRoot, m.log)
	m.cfgSub = cfg.Subscribe(m.onSettingsChange)
	return m
}

// Open returns the session for doc, creating one if needed. In
// single-preview mode the shared session is rebound to doc instead and
// surf is adopted only when no shared session exists yet; callers own
// surf until a session adopts it.
func (m *Manager) Open(doc document.Document, surf surface.Surface) (*Session, error) {
	if doc == nil {
		return nil, ErrNoDocument
	}

	if m.settings().SinglePreview {
		m.mu.Lock()
		if s := m.shared; s != nil {
			m.mu.Unlock()
			if err := s.Bind(doc); err != nil {
				return nil, err
			}
			return s, nil
		}
		s := newSession(m, doc, surf)
		m.shared = s
		m.mu.Unlock()
		m.log.WithField("document", doc.ID().String()).Debug("shared session opened")
		return s, nil
	}

	id := doc.ID()
	m.mu.Lock()
	if s, ok := m.sessions[id]; ok {
		m.mu.Unlock()
		return s, nil
	}
	s := newSession(m, doc, surf)
	s.key = id
	m.sessions[id] = s
	m.mu.Unlock()
	m.log.WithField("document", id.String()).Debug("session opened")
	return s, nil
}

// SessionFor returns the session currently bound to id, nil when none is.
func (m *Manager) SessionFor(id document.Identity) *Session {
	m.mu.Lock()
	s, ok := m.sessions[id]
	shared := m.shared
	m.mu.Unlock()

	if ok {
		return s
	}
	if shared != nil {
		if doc := shared.Document(); doc != nil && doc.ID() == id {
			return shared
		}
	}
	return nil
}

// Len reports how many sessions are open.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.sessions)
	if m.shared != nil {
		n++
	}
	return n
}

// CloseAll closes every session and drops the engine cache, returning
// the first close error.
func (m *Manager) CloseAll() error {
	m.cfgSub.Unsubscribe()

	var firstErr error
	for _, s := range m.all() {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	m.cache.InvalidateAll()
	return firstErr
}

// all snapshots the open sessions.
func (m *Manager) all() []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*Session, 0, len(m.sessions)+1)
	if m.shared != nil {
		out = append(out, m.shared)
	}
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

// remove forgets a session. Called from Session.Close; a session that
// was already replaced under its key is left alone.
func (m *Manager) remove(s *Session) {
	m.mu.Lock()
	if m.shared == s {
		m.shared = nil
	} else if cur, ok := m.sessions[s.key]; ok && cur == s {
		delete(m.sessions, s.key)
	}
	m.mu.Unlock()
}

// onDocumentClosed applies the close policy when a session's document
// goes away. The shared session always survives unbound, ready for the
// next document; per-document sessions are torn down when
// close_preview_automatically is set.
func (m *Manager) onDocumentClosed(s *Session) {
	m.mu.Lock()
	shared := m.shared == s
	m.mu.Unlock()

	if shared || !m.settings().ClosePreviewAutomatically {
		s.Unbind()
		return
	}
	if err := s.Close(); err != nil {
		m.log.WithField("error", err).Debug("session close failed")
	}
}

// onSettingsChange propagates a settings change to the engines and
// re-renders every session. Changing the engine command invalidates the
// cache outright since the running processes are the wrong binary; any
// other change is pushed to the live engines in place.
func (m *Manager) onSettingsChange(old, updated config.Settings) {
	if !sameCommand(old.EngineCommand, updated.EngineCommand) {
		m.cache.InvalidateAll()
	} else {
		m.cache.UpdateConfiguration(engineConfig(updated))
	}

	if old.ImageFolderPath != updated.ImageFolderPath || old.UploaderScript != updated.UploaderScript {
		reg := buildUploaders(updated, m.projectRoot, m.log)
		m.mu.Lock()
		m.uploaders = reg
		m.mu.Unlock()
	}

	for _, s := range m.all() {
		s.Render(TriggerRefresh)
	}
}

// settings snapshots the current configuration.
func (m *Manager) settings() config.Settings {
	return m.config.Settings()
}

// uploaderFor resolves a named uploader from the current registry.
func (m *Manager) uploaderFor(name string) (uploader.Uploader, error) {
	m.mu.Lock()
	reg := m.uploaders
	m.mu.Unlock()
	return reg.Get(name)
}

// buildUploaders assembles the registry for the given settings. The
// local copier is always present; a configured script that fails to
// load is reported and skipped rather than blocking the rest.
func buildUploaders(st config.Settings, projectRoot string, log *logrus.Entry) *uploader.Registry {
	reg := uploader.NewRegistry()
	reg.Register(uploader.NewLocal(st.ImageFolderPath, projectRoot))

	if st.UploaderScript != "" {
		script, err := uploader.NewScript(st.UploaderScript)
		if err != nil {
			log.WithFields(logrus.Fields{
				"script": st.UploaderScript,
				"error":  err,
			}).Warn("uploader script rejected")
		} else {
			reg.Register(script)
		}
	}
	return reg
}

// engineConfig projects the settings an engine cares about.
func engineConfig(st config.Settings) map[string]any {
	return map[string]any{
		"liveUpdate":      st.LiveUpdate,
		"scrollSync":      st.ScrollSync,
		"imageFolderPath": st.ImageFolderPath,
		"zoomLevel":       st.ZoomLevel,
	}
}

func sameCommand(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
