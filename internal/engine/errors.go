package engine

import "errors"

var (
	// ErrAlreadyStarted indicates the engine process is already running.
	ErrAlreadyStarted = errors.New("engine: already started")

	// ErrEngineClosed indicates the engine has been shut down.
	ErrEngineClosed = errors.New("engine: closed")
)
