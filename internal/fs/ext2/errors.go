package ext2

import "errors"

var (
	ErrInvalidSuperblock     = errors.New("ext2: invalid superblock magic")
	ErrInvalidInode          = errors.New("ext2: invalid inode number")
	ErrUnsupportedFilesystem = errors.New("ext2: unsupported filesystem layout")
	ErrCorruptedFilesystem   = errors.New("ext2: corrupted filesystem metadata")
	ErrFileNotFound          = errors.New("ext2: file not found")
	ErrFileExists            = errors.New("ext2: file already exists")
	ErrIsADirectory          = errors.New("ext2: is a directory")
	ErrNotADirectory         = errors.New("ext2: not a directory")
	ErrDirectoryNotEmpty     = errors.New("ext2: directory not empty")
	ErrNoSpace               = errors.New("ext2: filesystem full")
	ErrNameTooLong           = errors.New("ext2: name too long")
)
