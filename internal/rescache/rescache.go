// Package rescache caches per-document rendering resources: engine
// instances and temp output paths, both keyed by document identity.
package rescache

import (
	"fmt"
	"os"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/dshills/markview/internal/document"
	"github.com/dshills/markview/internal/engine"
	"github.com/dshills/markview/internal/logger"
)

// Cache holds per-document engines and output paths for the process
// lifetime. Entries never expire; InvalidateAll clears everything at once.
type Cache struct {
	mu sync.Mutex

	factory engine.Factory
	engines map[document.Identity]engine.Engine
	outputs map[document.Identity]string

	tempDir string
	log     *logrus.Entry
}

// Option configures a Cache.
type Option func(*Cache)

// WithTempDir overrides the directory used for output files.
func WithTempDir(dir string) Option {
	return func(c *Cache) {
		c.tempDir = dir
	}
}

// New creates a cache that constructs engines with the given factory.
func New(factory engine.Factory, opts ...Option) *Cache {
	c := &Cache{
		factory: factory,
		engines: make(map[document.Identity]engine.Engine),
		outputs: make(map[document.Identity]string),
		log:     logger.WithComponent("rescache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// EngineFor returns the cached engine for id, constructing one with params
// on first access.
func (c *Cache) EngineFor(id document.Identity, params engine.Params) (engine.Engine, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if eng, ok := c.engines[id]; ok {
		return eng, nil
	}

	eng, err := c.factory(params)
	if err != nil {
		return nil, fmt.Errorf("rescache: construct engine for %s: %w", id, err)
	}
	c.engines[id] = eng
	c.log.WithField("document", id.String()).Debug("engine constructed")
	return eng, nil
}

// OutputPathFor returns the cached temp output path for id, allocating the
// file on first access. Allocation failure is returned, never masked.
func (c *Cache) OutputPathFor(id document.Identity) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if path, ok := c.outputs[id]; ok {
		return path, nil
	}

	f, err := os.CreateTemp(c.tempDir, "markview-*.html")
	if err != nil {
		return "", fmt.Errorf("rescache: allocate output file for %s: %w", id, err)
	}
	path := f.Name()
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("rescache: allocate output file for %s: %w", id, err)
	}

	c.outputs[id] = path
	return path, nil
}

// Remove drops the entries for a single document, closing its engine.
func (c *Cache) Remove(id document.Identity) {
	c.mu.Lock()
	eng, had := c.engines[id]
	delete(c.engines, id)
	delete(c.outputs, id)
	c.mu.Unlock()

	if had {
		if err := eng.Close(); err != nil {
			c.log.WithField("error", err).Debug("engine close failed")
		}
	}
}

// InvalidateAll clears both tables, closing every cached engine. The next
// access reconstructs from scratch.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	engines := c.engines
	c.engines = make(map[document.Identity]engine.Engine)
	c.outputs = make(map[document.Identity]string)
	c.mu.Unlock()

	for id, eng := range engines {
		if err := eng.Close(); err != nil {
			c.log.WithFields(logrus.Fields{
				"document": id.String(),
				"error":    err,
			}).Debug("engine close failed")
		}
	}
}

// UpdateConfiguration pushes a configuration snapshot to every cached
// engine.
func (c *Cache) UpdateConfiguration(cfg map[string]any) {
	c.mu.Lock()
	engines := make([]engine.Engine, 0, len(c.engines))
	for _, eng := range c.engines {
		engines = append(engines, eng)
	}
	c.mu.Unlock()

	for _, eng := range engines {
		eng.UpdateConfiguration(cfg)
	}
}

// Len reports how many engines are cached.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.engines)
}
