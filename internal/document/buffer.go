package document

import (
	"strings"
	"sync"
)

// Buffer is an in-memory Document implementation. Standalone file mode
// mirrors an on-disk file into a Buffer; tests drive it directly.
type Buffer struct {
	mu       sync.RWMutex
	id       Identity
	lines    []string
	cursor   Position
	viewport Viewport
	feed     *Feed
	closed   bool
}

// NewBuffer creates a buffer with the given identity and initial text.
func NewBuffer(id Identity, text string) *Buffer {
	return &Buffer{
		id:    id,
		lines: splitLines(text),
		viewport: Viewport{
			LastLine:   0,
			LineHeight: 1,
			Height:     1,
		},
		feed: NewFeed(),
	}
}

// splitLines splits text into lines without trailing newlines.
// The empty string is a single empty line.
func splitLines(text string) []string {
	return strings.Split(text, "\n")
}

// ID returns the buffer's identity.
func (b *Buffer) ID() Identity {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.id
}

// Text returns the full buffer text.
func (b *Buffer) Text() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return strings.Join(b.lines, "\n")
}

// LineCount returns the number of lines.
func (b *Buffer) LineCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.lines)
}

// Line returns the text of a zero-based line.
func (b *Buffer) Line(n int) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if n < 0 || n >= len(b.lines) {
		return "", false
	}
	return b.lines[n], true
}

// Cursor returns the cursor position.
func (b *Buffer) Cursor() Position {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.cursor
}

// Viewport returns the viewport state.
func (b *Buffer) Viewport() Viewport {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.viewport
}

// Events returns the buffer's event feed.
func (b *Buffer) Events() *Feed {
	return b.feed
}

// IsClosed returns true if the buffer has been closed.
func (b *Buffer) IsClosed() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.closed
}

// SetText replaces the full buffer text. Publishes a change event.
func (b *Buffer) SetText(text string) {
	b.mu.Lock()
	b.lines = splitLines(text)
	b.clampCursorLocked()
	b.mu.Unlock()

	b.feed.Publish(Event{Kind: EventChange, Doc: b.id})
}

// SetCursor moves the cursor. Publishes a cursor event.
func (b *Buffer) SetCursor(pos Position) {
	b.mu.Lock()
	b.cursor = pos
	b.clampCursorLocked()
	b.mu.Unlock()

	b.feed.Publish(Event{Kind: EventCursor, Doc: b.id})
}

// SetViewport replaces the viewport state. Publishes a scroll event.
func (b *Buffer) SetViewport(vp Viewport) {
	b.mu.Lock()
	b.viewport = vp
	b.mu.Unlock()

	b.feed.Publish(Event{Kind: EventScroll, Doc: b.id})
}

// SetScrollOffset scrolls to a pixel offset, recomputing the visible range
// from the viewport metrics. Publishes a scroll event.
func (b *Buffer) SetScrollOffset(offset float64) {
	b.mu.Lock()
	if offset < 0 {
		offset = 0
	}
	b.viewport.ScrollOffset = offset
	if b.viewport.LineHeight > 0 {
		first := int(offset / b.viewport.LineHeight)
		visible := int(b.viewport.Height / b.viewport.LineHeight)
		if visible < 1 {
			visible = 1
		}
		last := first + visible - 1
		if last > len(b.lines)-1 {
			last = len(b.lines) - 1
		}
		if first > last {
			first = last
		}
		b.viewport.FirstLine = first
		b.viewport.LastLine = last
	}
	b.mu.Unlock()

	b.feed.Publish(Event{Kind: EventScroll, Doc: b.id})
}

// Save publishes a save event. The buffer itself has no backing store;
// standalone mode persists through its own writer.
func (b *Buffer) Save() {
	b.feed.Publish(Event{Kind: EventSave, Doc: b.id})
}

// Close marks the buffer closed and publishes a close event.
func (b *Buffer) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()

	b.feed.Publish(Event{Kind: EventClose, Doc: b.id})
}

// InsertAt inserts text at the given position. Publishes a change event.
func (b *Buffer) InsertAt(pos Position, text string) error {
	b.mu.Lock()

	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	if pos.Line < 0 || pos.Line >= len(b.lines) {
		b.mu.Unlock()
		return ErrLineOutOfRange
	}

	line := b.lines[pos.Line]
	col := pos.Column
	if col < 0 {
		col = 0
	}
	if col > len(line) {
		col = len(line)
	}

	inserted := splitLines(line[:col] + text + line[col:])
	b.lines = append(b.lines[:pos.Line], append(inserted, b.lines[pos.Line+1:]...)...)
	b.mu.Unlock()

	b.feed.Publish(Event{Kind: EventChange, Doc: b.id})
	return nil
}

// ReplaceLineRange replaces lines [start, end) with text.
// Publishes a change event.
func (b *Buffer) ReplaceLineRange(start, end int, text string) error {
	b.mu.Lock()

	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	if start < 0 || end < start || start > len(b.lines) || end > len(b.lines) {
		b.mu.Unlock()
		return ErrLineOutOfRange
	}

	replacement := splitLines(text)
	b.lines = append(b.lines[:start], append(replacement, b.lines[end:]...)...)
	b.clampCursorLocked()
	b.mu.Unlock()

	b.feed.Publish(Event{Kind: EventChange, Doc: b.id})
	return nil
}

// clampCursorLocked keeps the cursor inside the buffer. Caller holds b.mu.
func (b *Buffer) clampCursorLocked() {
	if len(b.lines) == 0 {
		b.lines = []string{""}
	}
	if b.cursor.Line < 0 {
		b.cursor.Line = 0
	}
	if b.cursor.Line > len(b.lines)-1 {
		b.cursor.Line = len(b.lines) - 1
	}
	if b.cursor.Column < 0 {
		b.cursor.Column = 0
	}
	if max := len(b.lines[b.cursor.Line]); b.cursor.Column > max {
		b.cursor.Column = max
	}
}
