package block

import "errors"

// ErrBadSize is returned when a caller's buffer is not exactly one sector.
var ErrBadSize = errors.New("block: buffer must be exactly one sector")
