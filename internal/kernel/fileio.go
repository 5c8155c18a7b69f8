package kernel

// openFile is a single entry in the process's (thin: one process) file
// table. Both backing filesystems only expose whole-file read/write, with
// no streaming I/O primitive, so a file opened for reading is loaded into
// buf once at open time and a file opened for writing accumulates into
// buf and is flushed back to the filesystem on
// every Write, keeping "no write-behind, no cache to flush later" (§5)
// true at this layer too.
type openFile struct {
	path   string
	isDir  bool
	offset int
	buf    []byte
	dirs   []direntry
}

type direntry struct {
	name  string
	isDir bool
}

// Linux open(2) flag bits this kernel recognizes. Only O_CREAT changes
// behavior; O_RDONLY/O_WRONLY/O_RDWR are accepted but not enforced, since
// neither backing driver has a permission model to violate.
const (
	oCreat = 0x40
)

// OpenAt resolves path against the VFS facade's current working directory
// and returns a new file descriptor. dirfd is accepted for ABI compliance
// but not otherwise used: this kernel has no fd-relative directory handles,
// only the VFS's own single cwd cursor, so every openat behaves as if
// dirfd were AT_FDCWD.
func (k *Kernel) OpenAt(dirfd int64, path string, flags uint64, mode uint64) (int64, error) {
	_ = dirfd
	_ = mode
	if path == "" {
		return 0, ErrBadAddress
	}
	if flags&oCreat != 0 && !k.vfs.FileExists(path) {
		if err := k.vfs.Create(path); err != nil {
			return 0, err
		}
	}

	entries, err := k.vfs.List(path)
	if err == nil {
		dirs := make([]direntry, len(entries))
		for i, e := range entries {
			dirs[i] = direntry{name: e.Name, isDir: e.IsDir}
		}
		f := &openFile{path: path, isDir: true, dirs: dirs}
		return k.install(f), nil
	}

	buf := make([]byte, maxOpenFileSz)
	n, err := k.vfs.ReadFile(path, buf)
	if err != nil {
		return 0, err
	}
	f := &openFile{path: path, buf: buf[:n]}
	return k.install(f), nil
}

func (k *Kernel) install(f *openFile) int64 {
	fd := k.nextFD
	k.nextFD++
	k.files[fd] = f
	return fd
}

// Close removes fd from the file table. There is nothing to flush: Write
// already persisted every change by the time it returned.
func (k *Kernel) Close(fd int64) error {
	if _, ok := k.files[fd]; !ok {
		return ErrBadFD
	}
	delete(k.files, fd)
	return nil
}

// Read copies up to len(buf) bytes from fd's current offset and advances
// it, returning 0 once the offset reaches the end of the file per the
// ordinary EOF convention.
func (k *Kernel) Read(fd int64, buf []byte) (int, error) {
	f, ok := k.files[fd]
	if !ok {
		return 0, ErrBadFD
	}
	if f.isDir {
		return 0, ErrIsADirectory
	}
	if f.offset >= len(f.buf) {
		return 0, nil
	}
	n := copy(buf, f.buf[f.offset:])
	f.offset += n
	return n, nil
}

// Write overwrites fd's resident copy starting at its current offset,
// growing it if necessary, advances the offset, and persists the whole
// file back through the VFS facade — the only write primitive either
// backing driver has.
func (k *Kernel) Write(fd int64, buf []byte) (int, error) {
	f, ok := k.files[fd]
	if !ok {
		return 0, ErrBadFD
	}
	if f.isDir {
		return 0, ErrIsADirectory
	}
	end := f.offset + len(buf)
	if end > len(f.buf) {
		grown := make([]byte, end)
		copy(grown, f.buf)
		f.buf = grown
	}
	copy(f.buf[f.offset:end], buf)
	f.offset = end

	if _, err := k.vfs.Write(f.path, f.buf); err != nil {
		return 0, err
	}
	return len(buf), nil
}

// Getdents64 encodes fd's remaining directory entries into buf using a
// compact variable-length record (a directory flag byte, the name length,
// then the name bytes) rather than the kernel-internal Linux dirent64 layout: nothing in
// this kernel parses a foreign dirent64 blob, so there is no reason to
// reproduce its exact d_ino/d_off/d_reclen padding, only its incremental,
// buffer-bounded contract: a call once the cursor is exhausted returns 0,
// not an error.
func (k *Kernel) Getdents64(fd int64, buf []byte) (int, error) {
	f, ok := k.files[fd]
	if !ok {
		return 0, ErrBadFD
	}
	if !f.isDir {
		return 0, ErrNotADirectory
	}

	written := 0
	for f.offset < len(f.dirs) {
		e := f.dirs[f.offset]
		recLen := 2 + len(e.name)
		if written+recLen > len(buf) {
			break
		}
		buf[written] = boolByte(e.isDir)
		buf[written+1] = byte(len(e.name))
		copy(buf[written+2:written+2+len(e.name)], e.name)
		written += recLen
		f.offset++
	}
	return written, nil
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
