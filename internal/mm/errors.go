package mm

import "errors"

// Error sentinels mirror original_source/src/memory/fallible.rs's AllocError
// enum (OutOfMemory/InvalidSize/InvalidAlignment/CorruptionDetected), in the
// errors.New-sentinel idiom LeftHandCold-hybridAllocator/hybrid/errors.go
// uses rather than a custom error type hierarchy.
var (
	ErrOutOfMemory    = errors.New("mm: out of memory")
	ErrInvalidSize    = errors.New("mm: invalid size")
	ErrInvalidAlign   = errors.New("mm: invalid alignment")
	ErrCorruption     = errors.New("mm: corruption detected")
	ErrDoubleFree     = errors.New("mm: double free")
	ErrNotFound       = errors.New("mm: address not owned by this allocator")
	ErrTransactionOpen = errors.New("mm: transaction already open")
	ErrNoTransaction   = errors.New("mm: no open transaction")
)
