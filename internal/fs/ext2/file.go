package ext2

// ListRoot lists the entries of the root directory, mirroring fat32.FS's
// root-only API shape for callers that never need to leave "/".
func (fs *FS) ListRoot() ([]Entry, error) { return fs.ListDir(RootInode) }

// FileExists reports whether name exists in the root directory.
func (fs *FS) FileExists(name string) bool {
	_, found, err := fs.LookupIn(RootInode, name)
	return err == nil && found
}

// ReadFile copies as much of name's content into buf as fits and returns
// the number of bytes copied.
func (fs *FS) ReadFile(name string, buf []byte) (int, error) {
	return fs.ReadFileIn(RootInode, name, buf)
}

// Create adds a new, empty regular file to the root directory.
func (fs *FS) Create(name string) error { return fs.CreateIn(RootInode, name) }

// Unlink frees name's data blocks and inode and removes its directory entry.
func (fs *FS) Unlink(name string) error { return fs.UnlinkIn(RootInode, name) }

// Write replaces name's entire content with data. name must already exist.
func (fs *FS) Write(name string, data []byte) (int, error) {
	return fs.WriteIn(RootInode, name, data)
}

// Mkdir creates a new subdirectory of root with "." and ".." entries.
func (fs *FS) Mkdir(name string) error { return fs.MkdirIn(RootInode, name) }

// Rmdir removes name if it is an empty directory (containing only "." and
// "..").
func (fs *FS) Rmdir(name string) error { return fs.RmdirIn(RootInode, name) }

// ReadFileIn is ReadFile against an arbitrary directory inode, letting the
// VFS facade (C14) operate below root.
func (fs *FS) ReadFileIn(parentInode uint32, name string, buf []byte) (int, error) {
	entry, found, err := fs.LookupIn(parentInode, name)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, ErrFileNotFound
	}
	in, err := fs.readInode(entry.Inode)
	if err != nil {
		return 0, err
	}
	if in.IsDir() {
		return 0, ErrIsADirectory
	}
	if in.Size() == 0 {
		return 0, nil
	}

	blocks, err := fs.resolveDataBlocks(in)
	if err != nil {
		return 0, err
	}

	want := int(in.Size())
	if want > len(buf) {
		want = len(buf)
	}
	written := 0
	for _, blockNum := range blocks {
		if written >= want {
			break
		}
		data, err := fs.readBlock(uint64(blockNum))
		if err != nil {
			return written, err
		}
		end := want
		if end-written > len(data) {
			end = written + len(data)
		}
		n := copy(buf[written:end], data)
		written += n
	}
	return written, nil
}

// CreateIn is Create against an arbitrary directory inode.
func (fs *FS) CreateIn(parentInode uint32, name string) error {
	if len(name) > 255 {
		return ErrNameTooLong
	}
	if _, found, err := fs.LookupIn(parentInode, name); err != nil {
		return err
	} else if found {
		return ErrFileExists
	}

	inodeNum, err := fs.allocateInode()
	if err != nil {
		return err
	}
	newInode := Inode{Mode: 0o100644, LinksCount: 1}
	if err := fs.writeInode(inodeNum, newInode); err != nil {
		return err
	}
	return fs.addDirEntry(parentInode, inodeNum, name, ftRegFile)
}

// UnlinkIn is Unlink against an arbitrary directory inode.
func (fs *FS) UnlinkIn(parentInode uint32, name string) error {
	entry, found, err := fs.LookupIn(parentInode, name)
	if err != nil {
		return err
	}
	if !found {
		return ErrFileNotFound
	}
	in, err := fs.readInode(entry.Inode)
	if err != nil {
		return err
	}
	if in.IsDir() {
		return ErrIsADirectory
	}

	blocks, err := fs.resolveDataBlocks(in)
	if err != nil {
		return err
	}
	for _, b := range blocks {
		if err := fs.freeBlock(b); err != nil {
			return err
		}
	}
	if err := fs.freeInode(entry.Inode); err != nil {
		return err
	}
	return fs.removeDirEntry(parentInode, name)
}

// WriteIn is Write against an arbitrary directory inode.
func (fs *FS) WriteIn(parentInode uint32, name string, data []byte) (int, error) {
	entry, found, err := fs.LookupIn(parentInode, name)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, ErrFileNotFound
	}
	in, err := fs.readInode(entry.Inode)
	if err != nil {
		return 0, err
	}
	if in.IsDir() {
		return 0, ErrIsADirectory
	}

	oldBlocks, err := fs.resolveDataBlocks(in)
	if err != nil {
		return 0, err
	}
	for _, b := range oldBlocks {
		if err := fs.freeBlock(b); err != nil {
			return 0, err
		}
	}

	var newBlocks [15]uint32
	needed := (len(data) + fs.blockSize - 1) / fs.blockSize
	if needed > 12 {
		return 0, ErrUnsupportedFilesystem
	}
	for i := 0; i < needed; i++ {
		b, err := fs.allocateBlock()
		if err != nil {
			return 0, err
		}
		newBlocks[i] = b
		start := i * fs.blockSize
		end := start + fs.blockSize
		if end > len(data) {
			end = len(data)
		}
		block := make([]byte, fs.blockSize)
		copy(block, data[start:end])
		if err := fs.writeBlock(uint64(b), block); err != nil {
			return 0, err
		}
	}

	in.Flags &^= extentsFlag
	in.Block = newBlocks
	in.SizeLo = uint32(len(data))
	in.SizeHigh = uint32(uint64(len(data)) >> 32)
	if err := fs.writeInode(entry.Inode, in); err != nil {
		return 0, err
	}
	return len(data), nil
}

// MkdirIn is Mkdir against an arbitrary parent directory inode.
func (fs *FS) MkdirIn(parentInode uint32, name string) error {
	if len(name) > 255 {
		return ErrNameTooLong
	}
	parent, err := fs.readInode(parentInode)
	if err != nil {
		return err
	}
	if _, found, err := fs.LookupIn(parentInode, name); err != nil {
		return err
	} else if found {
		return ErrFileExists
	}

	inodeNum, err := fs.allocateInode()
	if err != nil {
		return err
	}
	dataBlock, err := fs.allocateBlock()
	if err != nil {
		return err
	}

	buf := make([]byte, fs.blockSize)
	dotLen := align4(dirEntryHeader + 1)
	writeDirEntry(buf, inodeNum, uint16(dotLen), ".", ftDir)
	writeDirEntry(buf[dotLen:], parentInode, uint16(fs.blockSize-dotLen), "..", ftDir)
	if err := fs.writeBlock(uint64(dataBlock), buf); err != nil {
		return err
	}

	newInode := Inode{Mode: 0o040755, LinksCount: 2, SizeLo: uint32(fs.blockSize)}
	newInode.Block[0] = dataBlock
	if err := fs.writeInode(inodeNum, newInode); err != nil {
		return err
	}

	parent.LinksCount++
	if err := fs.writeInode(parentInode, parent); err != nil {
		return err
	}
	return fs.addDirEntry(parentInode, inodeNum, name, ftDir)
}

// RmdirIn is Rmdir against an arbitrary parent directory inode.
func (fs *FS) RmdirIn(parentInode uint32, name string) error {
	entry, found, err := fs.LookupIn(parentInode, name)
	if err != nil {
		return err
	}
	if !found {
		return ErrFileNotFound
	}
	in, err := fs.readInode(entry.Inode)
	if err != nil {
		return err
	}
	if !in.IsDir() {
		return ErrNotADirectory
	}

	entries, err := fs.listDirInode(in)
	if err != nil {
		return err
	}
	if len(entries) > 0 {
		return ErrDirectoryNotEmpty
	}

	blocks, err := fs.resolveDataBlocks(in)
	if err != nil {
		return err
	}
	for _, b := range blocks {
		if err := fs.freeBlock(b); err != nil {
			return err
		}
	}
	if err := fs.freeInode(entry.Inode); err != nil {
		return err
	}
	parent, err := fs.readInode(parentInode)
	if err != nil {
		return err
	}
	parent.LinksCount--
	if err := fs.writeInode(parentInode, parent); err != nil {
		return err
	}
	return fs.removeDirEntry(parentInode, name)
}
