// Package config loads and watches the preview settings file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sync"

	"github.com/pelletier/go-toml/v2"
	"github.com/sirupsen/logrus"

	"github.com/dshills/markview/internal/logger"
)

// Settings are the recognized preview options. Unknown keys in the file
// are ignored.
type Settings struct {
	// SinglePreview shares one preview across documents instead of one
	// per document.
	SinglePreview bool `toml:"single_preview"`

	// LiveUpdate renders on every settle; false renders only on save.
	LiveUpdate bool `toml:"live_update"`

	// ScrollSync keeps document and preview viewports aligned.
	ScrollSync bool `toml:"scroll_sync"`

	// ClosePreviewAutomatically destroys a preview when its document
	// closes. Ignored in single-preview mode.
	ClosePreviewAutomatically bool `toml:"close_preview_automatically"`

	// ImageFolderPath is where pasted images land: project-root-relative
	// when it starts with "/", document-relative otherwise.
	ImageFolderPath string `toml:"image_folder_path"`

	// ImageUploader selects the transfer backend for explicit uploads.
	ImageUploader string `toml:"image_uploader"`

	// UploaderScript is the Lua script backing the "script" uploader.
	UploaderScript string `toml:"uploader_script"`

	// ZoomLevel is the initial preview zoom.
	ZoomLevel float64 `toml:"zoom_level"`

	// EngineCommand launches the render engine process.
	EngineCommand []string `toml:"engine_command"`

	// SettleDelay is the debounce before a live-update render, in
	// milliseconds.
	SettleDelay int `toml:"settle_delay"`
}

// Default returns the built-in settings.
func Default() Settings {
	return Settings{
		SinglePreview:             true,
		LiveUpdate:                true,
		ScrollSync:                true,
		ClosePreviewAutomatically: false,
		ImageFolderPath:           "/assets",
		ImageUploader:             "local",
		ZoomLevel:                 1.0,
		SettleDelay:               300,
	}
}

// Equal reports whether two settings carry the same values.
func (s Settings) Equal(other Settings) bool {
	if len(s.EngineCommand) != len(other.EngineCommand) {
		return false
	}
	for i := range s.EngineCommand {
		if s.EngineCommand[i] != other.EngineCommand[i] {
			return false
		}
	}
	// Compare the slice element-wise above so nil and empty are equal,
	// then let reflect handle the remaining fields.
	a, b := s, other
	a.EngineCommand, b.EngineCommand = nil, nil
	return reflect.DeepEqual(a, b)
}

// Observer is called with the settings before and after a change.
type Observer func(old, updated Settings)

// Subscription is an active observer registration.
type Subscription struct {
	id      uint64
	manager *Manager
}

// Unsubscribe removes this subscription.
func (s *Subscription) Unsubscribe() {
	if s.manager != nil {
		s.manager.unsubscribe(s.id)
	}
}

// Manager holds the current settings and tells observers when they
// change.
type Manager struct {
	mu sync.RWMutex

	settings Settings
	path     string

	observers map[uint64]Observer
	nextID    uint64

	watch *watcher
	log   *logrus.Entry
}

// Option configures a Manager.
type Option func(*Manager)

// WithPath sets the settings file location.
func WithPath(path string) Option {
	return func(m *Manager) {
		m.path = path
	}
}

// NewManager creates a manager primed with defaults.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		settings:  Default(),
		observers: make(map[uint64]Observer),
		log:       logger.WithComponent("config"),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.path == "" {
		m.path = DefaultPath()
	}
	return m
}

// DefaultPath returns the settings file under the user config directory.
func DefaultPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "markview", "settings.toml")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "markview", "settings.toml")
}

// Load reads the settings file over the defaults. A missing file leaves
// the defaults in place; a malformed one is an error.
func (m *Manager) Load() error {
	s := Default()

	data, err := os.ReadFile(m.path)
	switch {
	case os.IsNotExist(err):
		// Defaults only.
	case err != nil:
		return fmt.Errorf("config: read %s: %w", m.path, err)
	default:
		if err := toml.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("config: parse %s: %w", m.path, err)
		}
	}

	if err := validate(s); err != nil {
		return err
	}

	m.apply(s)
	return nil
}

// validate rejects values no component can work with.
func validate(s Settings) error {
	if s.ZoomLevel <= 0 {
		return fmt.Errorf("%w: zoom_level must be positive", ErrInvalidSetting)
	}
	if s.SettleDelay < 0 {
		return fmt.Errorf("%w: settle_delay must not be negative", ErrInvalidSetting)
	}
	return nil
}

// apply swaps the settings in and notifies observers of the change.
func (m *Manager) apply(s Settings) {
	m.mu.Lock()
	old := m.settings
	m.settings = s
	observers := make([]Observer, 0, len(m.observers))
	for _, obs := range m.observers {
		observers = append(observers, obs)
	}
	m.mu.Unlock()

	if old.Equal(s) {
		return
	}
	for _, obs := range observers {
		obs(old, s)
	}
}

// Settings returns a snapshot of the current settings.
func (m *Manager) Settings() Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings
}

// Path returns the settings file location.
func (m *Manager) Path() string {
	return m.path
}

// Subscribe registers an observer for settings changes.
func (m *Manager) Subscribe(obs Observer) *Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := m.nextID
	m.observers[id] = obs
	return &Subscription{id: id, manager: m}
}

// unsubscribe removes an observer by id.
func (m *Manager) unsubscribe(id uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.observers, id)
}

// Close stops watching, if a watcher is running.
func (m *Manager) Close() error {
	m.mu.Lock()
	w := m.watch
	m.watch = nil
	m.mu.Unlock()

	if w != nil {
		return w.close()
	}
	return nil
}
