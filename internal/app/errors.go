package app

import "errors"

// ErrNoEngineCommand means the settings file does not configure an engine
// process to launch.
var ErrNoEngineCommand = errors.New("app: no engine_command configured")
