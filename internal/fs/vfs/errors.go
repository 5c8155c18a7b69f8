package vfs

import "errors"

var (
	ErrNoFilesystem  = errors.New("vfs: no recognized filesystem")
	ErrNotFound      = errors.New("vfs: no such file or directory")
	ErrNotADirectory = errors.New("vfs: not a directory")
	ErrIsADirectory  = errors.New("vfs: is a directory")
	ErrUnsupported   = errors.New("vfs: operation not supported by this filesystem")
)
