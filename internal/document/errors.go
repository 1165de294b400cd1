package document

import "errors"

// Document errors.
var (
	// ErrLineOutOfRange indicates a line index outside the document.
	ErrLineOutOfRange = errors.New("document: line out of range")

	// ErrClosed indicates an operation on a closed document.
	ErrClosed = errors.New("document: document is closed")
)
