// Package logger provides the process-wide structured logger for markview.
//
// Components obtain a component-scoped entry via WithComponent so every log
// line carries the subsystem that emitted it.
package logger

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	log  *logrus.Logger
	once sync.Once
)

// Config controls logger initialization.
type Config struct {
	// Level is the minimum level to emit ("debug", "info", "warn", "error").
	Level string

	// Output is where log lines are written. Defaults to os.Stderr.
	Output io.Writer
}

// DefaultConfig returns the default logger configuration.
// The level may be overridden with the MARKVIEW_LOG env variable.
func DefaultConfig() Config {
	level := "info"
	if env := os.Getenv("MARKVIEW_LOG"); env != "" {
		level = env
	}
	return Config{Level: level, Output: os.Stderr}
}

// Init configures the process logger. Safe to call more than once; later
// calls adjust level and output on the existing logger.
func Init(cfg Config) {
	l := get()
	if cfg.Output != nil {
		l.SetOutput(cfg.Output)
	}
	if parsed, err := logrus.ParseLevel(strings.ToLower(cfg.Level)); err == nil {
		l.SetLevel(parsed)
	}
}

// get returns the underlying logrus logger, creating it on first use.
func get() *logrus.Logger {
	once.Do(func() {
		log = logrus.New()
		log.SetOutput(os.Stderr)
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
		log.SetLevel(logrus.InfoLevel)
	})
	return log
}

// WithComponent returns an entry scoped to the named component.
func WithComponent(component string) *logrus.Entry {
	return get().WithField("component", component)
}
