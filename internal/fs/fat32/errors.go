package fat32

import "errors"

var (
	ErrInvalidBootSector = errors.New("fat32: invalid boot sector signature")
	ErrFileNotFound      = errors.New("fat32: file not found")
	ErrFileExists        = errors.New("fat32: file already exists")
	ErrIsADirectory      = errors.New("fat32: is a directory")
	ErrNoSpace           = errors.New("fat32: no free cluster")
	ErrNoDirectorySpace  = errors.New("fat32: directory is full")
	ErrCorruptChain      = errors.New("fat32: FAT chain did not terminate")
	ErrNameTooLong       = errors.New("fat32: long filenames are not supported")
)
