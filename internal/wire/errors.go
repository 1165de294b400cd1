package wire

import "errors"

// Wire errors.
var (
	// ErrMissingLength indicates a frame without a Content-Length header.
	ErrMissingLength = errors.New("wire: missing Content-Length header")
)
