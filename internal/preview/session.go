package preview

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/dshills/markview/internal/document"
	"github.com/dshills/markview/internal/logger"
	"github.com/dshills/markview/internal/scrollsync"
	"github.com/dshills/markview/internal/surface"
)

// State is the render decision machine's phase.
type State int

const (
	// StateIdle means no render is in flight.
	StateIdle State = iota

	// StateRendering means a render request is awaiting engine output.
	StateRendering

	// StateAwaitingReload means a full artifact was regenerated and the
	// surface has not yet confirmed loading it.
	StateAwaitingReload
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRendering:
		return "rendering"
	case StateAwaitingReload:
		return "awaiting-reload"
	default:
		return "unknown"
	}
}

// Session binds one document to one rendering surface. It holds the render
// decision state, the scroll suppression window, and the zoom factor, and
// rebinds to a new document when the user switches editors without closing
// the preview.
type Session struct {
	mu           sync.Mutex
	doc          document.Document
	docSub       *document.Subscription
	settle       *time.Timer
	state        State
	deps         []string
	rendered     bool
	presentation bool
	zoom         float64
	loadedPath   string
	closed       bool

	id       string
	key      document.Identity
	mgr      *Manager
	surface  surface.Surface
	suppress scrollsync.Suppression
	animator *scrollsync.Animator
	gen      atomic.Int64
	log      *logrus.Entry
}

// newSession wires a session for doc speaking to surf. Sessions are
// created through Manager.Open.
func newSession(m *Manager, doc document.Document, surf surface.Surface) *Session {
	id := uuid.NewString()
	s := &Session{
		id:      id,
		mgr:     m,
		surface: surf,
		zoom:    m.settings().ZoomLevel,
		log:     logger.WithComponent("preview").WithField("session", id[:8]),
	}
	s.animator = scrollsync.NewAnimator(&s.suppress)
	s.doc = doc
	s.docSub = doc.Events().Subscribe(s.onDocEvent)
	return s
}

// ID returns the session's unique identifier.
func (s *Session) ID() string {
	return s.id
}

// Document returns the bound document, nil when unbound.
func (s *Session) Document() document.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc
}

// Zoom returns the current zoom factor.
func (s *Session) Zoom() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.zoom
}

// State returns the render machine's phase.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Bind swaps the session over to a new document, resetting the render
// state so the first render of the new document reloads wholesale.
func (s *Session) Bind(doc document.Document) error {
	if doc == nil {
		return ErrNoDocument
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.docSub != nil {
		s.docSub.Unsubscribe()
	}
	if s.settle != nil {
		s.settle.Stop()
		s.settle = nil
	}
	s.doc = doc
	s.docSub = doc.Events().Subscribe(s.onDocEvent)
	s.rendered = false
	s.deps = nil
	s.presentation = false
	s.state = StateIdle
	s.mu.Unlock()

	s.animator.Stop()
	return nil
}

// Unbind detaches the session from its document, leaving the session
// alive for a later Bind.
func (s *Session) Unbind() {
	s.mu.Lock()
	if s.docSub != nil {
		s.docSub.Unsubscribe()
		s.docSub = nil
	}
	if s.settle != nil {
		s.settle.Stop()
		s.settle = nil
	}
	s.doc = nil
	s.mu.Unlock()

	s.animator.Stop()
}

// Close detaches the session, stops its animation, and releases the
// surface. Close is idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	if s.docSub != nil {
		s.docSub.Unsubscribe()
		s.docSub = nil
	}
	if s.settle != nil {
		s.settle.Stop()
		s.settle = nil
	}
	s.doc = nil
	s.mu.Unlock()

	s.animator.Stop()
	s.mgr.remove(s)
	return s.surface.Close()
}

// onDocEvent routes document events to their session reactions.
func (s *Session) onDocEvent(ev document.Event) {
	switch ev.Kind {
	case document.EventChange:
		s.onChange()
	case document.EventSave:
		s.Render(TriggerSave)
	case document.EventClose:
		s.mgr.onDocumentClosed(s)
	case document.EventScroll:
		s.onScroll()
	case document.EventCursor:
		s.onCursor()
	}
}

// onChange arms the settle timer; rapid edits keep pushing the render out.
func (s *Session) onChange() {
	st := s.mgr.settings()
	if !st.LiveUpdate {
		return
	}
	delay := time.Duration(st.SettleDelay) * time.Millisecond

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if s.settle != nil {
		s.settle.Stop()
	}
	s.settle = time.AfterFunc(delay, func() { s.Render(TriggerSettle) })
	s.mu.Unlock()
}

// onScroll announces the viewport's sync target to the surface, unless
// the scroll was caused by our own programmatic animation.
func (s *Session) onScroll() {
	if !s.mgr.settings().ScrollSync || s.suppress.Active() {
		return
	}
	s.mu.Lock()
	doc := s.doc
	s.mu.Unlock()
	if doc == nil {
		return
	}

	vp := doc.Viewport()
	line, ratio := scrollsync.SyncTarget(vp.FirstLine, vp.LastLine, doc.LineCount())
	s.post(surface.OutChangeSelection, SelectionPayload{Line: line, TopRatio: ratio})
}

// onCursor announces the cursor's position within the visible range.
func (s *Session) onCursor() {
	if !s.mgr.settings().ScrollSync || s.suppress.Active() {
		return
	}
	s.mu.Lock()
	doc := s.doc
	s.mu.Unlock()
	if doc == nil {
		return
	}

	cur := doc.Cursor()
	vp := doc.Viewport()
	ratio := scrollsync.TopRatio(cur.Line, vp.FirstLine, vp.LastLine)
	s.post(surface.OutChangeSelection, SelectionPayload{Line: cur.Line, TopRatio: ratio})
}

// post sends a fire-and-forget envelope to the surface.
func (s *Session) post(cmd surface.Command, payload any) {
	if err := s.surface.Post(surface.NewEnvelope(cmd, payload)); err != nil {
		s.log.WithFields(logrus.Fields{
			"command": cmd.String(),
			"error":   err,
		}).Debug("surface post failed")
	}
}
