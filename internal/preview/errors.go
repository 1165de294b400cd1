package preview

import "errors"

var (
	// ErrNoDocument indicates an operation that needs a bound document.
	ErrNoDocument = errors.New("preview: no document")

	// ErrSessionClosed indicates the session has been closed.
	ErrSessionClosed = errors.New("preview: session closed")
)
