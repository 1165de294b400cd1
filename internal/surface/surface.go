// Package surface defines the message protocol between a preview session
// and its rendering surface, and the transports that carry it.
package surface

// Surface is the rendering surface a session drives. All operations are
// fire-and-forget: errors report transport failure, never a response.
type Surface interface {
	// Load points the surface at a rendered artifact on disk.
	Load(path string) error

	// Reload asks the surface to re-read its current artifact.
	Reload() error

	// Post pushes an outbound envelope.
	Post(env *Envelope) error

	// Close releases the surface.
	Close() error
}

// RemoteSurface drives a rendering surface across a Transport.
type RemoteSurface struct {
	t *Transport
}

// NewRemoteSurface wraps a transport as a Surface.
func NewRemoteSurface(t *Transport) *RemoteSurface {
	return &RemoteSurface{t: t}
}

// Load sends the load-preview command.
func (s *RemoteSurface) Load(path string) error {
	return s.t.Post(NewEnvelope(OutLoadPreview, path))
}

// Reload sends the reload-preview command.
func (s *RemoteSurface) Reload() error {
	return s.t.Post(NewEnvelope(OutReloadPreview, nil))
}

// Post forwards an envelope to the surface.
func (s *RemoteSurface) Post(env *Envelope) error {
	return s.t.Post(env)
}

// Close shuts the underlying transport down.
func (s *RemoteSurface) Close() error {
	return s.t.Close()
}
