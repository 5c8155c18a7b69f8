package kernel

import "errors"

var (
	ErrOutOfRange    = errors.New("kernel: address outside the process heap")
	ErrInvalidSize   = errors.New("kernel: invalid mapping size")
	ErrBadMapping    = errors.New("kernel: no matching mapping")
	ErrBadFD         = errors.New("kernel: bad file descriptor")
	ErrNotADirectory = errors.New("kernel: not a directory")
	ErrIsADirectory  = errors.New("kernel: is a directory")
	ErrBadAddress    = errors.New("kernel: bad user-space pointer")
)
