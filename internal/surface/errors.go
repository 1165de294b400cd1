package surface

import "errors"

var (
	// ErrTransportClosed indicates the surface transport has shut down.
	ErrTransportClosed = errors.New("surface: transport closed")

	// ErrMissingArg indicates an envelope lacked a positional argument.
	ErrMissingArg = errors.New("surface: missing argument")
)
