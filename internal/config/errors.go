package config

import "errors"

// ErrInvalidSetting indicates a settings value outside its valid range.
var ErrInvalidSetting = errors.New("config: invalid setting")
