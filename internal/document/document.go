// Package document defines the host document model markview coordinates
// against: the text, cursor, and viewport of an open editor buffer, plus the
// change events a preview session subscribes to.
//
// The host editor implements Document for its own buffers. Buffer is the
// in-repo implementation used by tests and by standalone file mode.
package document

import (
	"path/filepath"
)

// Identity is the stable key identifying an open document across its editing
// session. For file-backed documents this is the absolute path.
type Identity string

// FromPath builds an Identity from a file path, normalizing to absolute form.
func FromPath(path string) Identity {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Identity(path)
	}
	return Identity(abs)
}

// Dir returns the directory portion of a file-backed identity.
func (id Identity) Dir() string {
	return filepath.Dir(string(id))
}

// String returns the identity as a string.
func (id Identity) String() string {
	return string(id)
}

// Position is a buffer position in line/column space (both zero-based).
type Position struct {
	Line   int
	Column int
}

// Viewport describes the visible portion of a document and the metrics
// needed to address it in pixel space. Screen rows map one-to-one onto
// buffer lines; hosts with soft wrap resolve their own mapping before
// reporting.
type Viewport struct {
	// FirstLine and LastLine bound the visible range, inclusive.
	FirstLine int
	LastLine  int

	// LineHeight is the pixel height of one screen row.
	LineHeight float64

	// Height is the pixel height of the viewport.
	Height float64

	// ScrollOffset is the current vertical scroll position in pixels.
	ScrollOffset float64
}

// Document is the host text buffer a preview session binds to.
type Document interface {
	// ID returns the document's stable identity.
	ID() Identity

	// Text returns the full document text.
	Text() string

	// LineCount returns the number of lines in the document.
	LineCount() int

	// Line returns the text of the given zero-based line, without its
	// trailing newline. ok is false when the line does not exist.
	Line(n int) (text string, ok bool)

	// Cursor returns the primary cursor position.
	Cursor() Position

	// Viewport returns the current viewport state.
	Viewport() Viewport

	// SetScrollOffset scrolls the view to the given pixel offset.
	// The host clamps to its own valid range.
	SetScrollOffset(offset float64)

	// InsertAt inserts text at the given position.
	InsertAt(pos Position, text string) error

	// ReplaceLineRange replaces lines [start, end) with the given text.
	// The replacement text may span a different number of lines.
	ReplaceLineRange(start, end int, text string) error

	// Events returns the document's event feed.
	Events() *Feed
}

// Host is the part of the editor surface that exists outside any single
// document: opening documents and revealing files.
type Host interface {
	// OpenDocument opens (or focuses) the document at the given path.
	OpenDocument(path string) error
}
