package surface

import (
	"encoding/json"
	"io"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/dshills/markview/internal/logger"
	"github.com/dshills/markview/internal/wire"
)

// Handler consumes inbound envelopes. Dispatch and command filtering
// belong to the owning session, not the transport.
type Handler func(env *Envelope)

// Transport carries envelopes over a framed byte stream, one read loop
// per connection. Writes are fire-and-forget.
type Transport struct {
	reader  *wire.Reader
	writer  *wire.Writer
	handler Handler

	closed atomic.Bool
	done   chan struct{}

	closers []io.Closer
	log     *logrus.Entry
}

// NewTransport wraps a read/write stream pair. Any of the streams that
// also implement io.Closer are closed with the transport.
func NewTransport(r io.Reader, w io.Writer, handler Handler) *Transport {
	t := &Transport{
		reader:  wire.NewReader(r),
		writer:  wire.NewWriter(w),
		handler: handler,
		done:    make(chan struct{}),
		log:     logger.WithComponent("surface.transport"),
	}
	if c, ok := r.(io.Closer); ok {
		t.closers = append(t.closers, c)
	}
	if c, ok := w.(io.Closer); ok {
		t.closers = append(t.closers, c)
	}
	return t
}

// Start launches the inbound read loop.
func (t *Transport) Start() {
	go t.readLoop()
}

// readLoop decodes inbound envelopes until the stream ends.
func (t *Transport) readLoop() {
	defer close(t.done)

	for {
		frame, err := t.reader.ReadFrame()
		if err != nil {
			if !t.closed.Load() && err != io.EOF {
				t.log.WithField("error", err).Debug("surface stream ended")
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(frame, &env); err != nil {
			t.log.WithField("error", err).Debug("malformed envelope dropped")
			continue
		}
		if t.handler != nil {
			t.handler(&env)
		}
	}
}

// Post writes an envelope to the surface. No response is awaited.
func (t *Transport) Post(env *Envelope) error {
	if t.closed.Load() {
		return ErrTransportClosed
	}
	return t.writer.WriteFrame(env)
}

// Done closes when the read loop exits, signalling the peer is gone.
func (t *Transport) Done() <-chan struct{} {
	return t.done
}

// Close tears the transport down. Safe to call more than once.
func (t *Transport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	for _, c := range t.closers {
		c.Close()
	}
	return nil
}
