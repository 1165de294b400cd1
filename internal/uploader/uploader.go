// Package uploader moves pasted or dropped images to their destination
// and resolves the placeholder hints left in the document meanwhile.
package uploader

import (
	"context"
	"sync"
)

// Result describes a completed transfer.
type Result struct {
	// Target is what the markdown image reference points at: a URL for
	// remote uploads, a document-relative path for local copies.
	Target string

	// Description is the human-readable alt text, derived from the
	// original file stem.
	Description string
}

// Uploader transfers one image file.
type Uploader interface {
	// Name is the selector this uploader registers under.
	Name() string

	// Upload transfers sourcePath and returns the reference target.
	// docDir is the directory of the owning document.
	Upload(ctx context.Context, sourcePath, docDir string) (*Result, error)
}

// Registry resolves uploader selectors to implementations.
type Registry struct {
	mu        sync.RWMutex
	uploaders map[string]Uploader
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{uploaders: make(map[string]Uploader)}
}

// Register adds an uploader under its selector name, replacing any
// previous registration.
func (r *Registry) Register(u Uploader) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.uploaders[u.Name()] = u
}

// Get returns the uploader registered under name.
func (r *Registry) Get(name string) (Uploader, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.uploaders[name]
	if !ok {
		return nil, ErrUnknownUploader
	}
	return u, nil
}

// Names lists the registered selectors.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.uploaders))
	for name := range r.uploaders {
		names = append(names, name)
	}
	return names
}
