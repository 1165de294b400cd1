// Package app wires a markview process for standalone file mode: one
// markdown file mirrored into a document buffer, one preview session, and
// a surface transport on stdio.
package app

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/dshills/markview/internal/config"
	"github.com/dshills/markview/internal/document"
	"github.com/dshills/markview/internal/engine"
	"github.com/dshills/markview/internal/logger"
	"github.com/dshills/markview/internal/preview"
	"github.com/dshills/markview/internal/rescache"
	"github.com/dshills/markview/internal/surface"
)

// Options configure application startup.
type Options struct {
	// File is the markdown document to serve.
	File string

	// ConfigPath overrides the settings file location.
	ConfigPath string

	// LogLevel is the minimum log level (debug, info, warn, error).
	LogLevel string

	// In and Out carry the surface transport. They default to stdin and
	// stdout.
	In  io.Reader
	Out io.Writer
}

// Application is a running markview process.
type Application struct {
	cfg       *config.Manager
	manager   *preview.Manager
	session   *preview.Session
	transport *surface.Transport
	mirror    *mirror

	shutdownOnce sync.Once
	log          *logrus.Entry
}

// New builds the application: configuration, engine cache, preview
// manager, the mirrored document, and the surface transport. Nothing
// starts running until Run.
func New(opts Options) (*Application, error) {
	logger.Init(logger.Config{Level: opts.LogLevel})

	cfg := config.NewManager(config.WithPath(opts.ConfigPath))
	if err := cfg.Load(); err != nil {
		return nil, err
	}

	command := cfg.Settings().EngineCommand
	if len(command) == 0 {
		return nil, ErrNoEngineCommand
	}

	path, err := filepath.Abs(opts.File)
	if err != nil {
		return nil, fmt.Errorf("app: resolve %s: %w", opts.File, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("app: read %s: %w", path, err)
	}
	buf := document.NewBuffer(document.Identity(path), string(data))

	cache := rescache.New(engine.RemoteFactory(command[0], command[1:]...))
	manager := preview.NewManager(cache, cfg,
		preview.WithProjectRoot(filepath.Dir(path)),
	)

	in := opts.In
	if in == nil {
		in = os.Stdin
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	a := &Application{
		cfg:     cfg,
		manager: manager,
		log:     logger.WithComponent("app"),
	}
	a.transport = surface.NewTransport(in, out, func(env *surface.Envelope) {
		a.session.HandleEnvelope(env)
	})

	session, err := manager.Open(buf, surface.NewRemoteSurface(a.transport))
	if err != nil {
		return nil, err
	}
	a.session = session
	a.mirror = newMirror(buf, path)
	return a, nil
}

// Session returns the application's preview session.
func (a *Application) Session() *preview.Session {
	return a.session
}

// Run starts the mirror, the settings watcher, and the transport read
// loop, triggers the first render, and blocks until the surface
// disconnects or Shutdown is called.
func (a *Application) Run() error {
	if err := a.cfg.Watch(); err != nil {
		a.log.WithField("error", err).Warn("settings watch unavailable")
	}
	if err := a.mirror.Start(); err != nil {
		return err
	}
	a.transport.Start()

	a.log.WithField("document", a.mirror.path).Info("serving preview")
	a.session.Render(preview.TriggerRefresh)

	<-a.transport.Done()
	return nil
}

// Shutdown tears the application down. Safe to call more than once and
// from any goroutine.
func (a *Application) Shutdown() {
	a.shutdownOnce.Do(func() {
		a.mirror.Close()
		if err := a.manager.CloseAll(); err != nil {
			a.log.WithField("error", err).Debug("session close failed")
		}
		a.transport.Close()
		if err := a.cfg.Close(); err != nil {
			a.log.WithField("error", err).Debug("config close failed")
		}
	})
}
