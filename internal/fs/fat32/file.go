package fat32

// FileExists reports whether name (an 8.3 name) exists in the root
// directory.
func (fs *FS) FileExists(name string) bool { return fs.FileExistsIn(fs.rootCluster, name) }

// ReadFile copies as much of name's content into buf as fits, starting from
// the first byte, and returns the number of bytes copied. The empty-file
// edge case (FirstCluster == 0) returns 0 with no chain traversal.
func (fs *FS) ReadFile(name string, buf []byte) (int, error) {
	return fs.ReadFileIn(fs.rootCluster, name, buf)
}

// Create adds a new, empty file entry to the root directory.
func (fs *FS) Create(name string) error { return fs.CreateIn(fs.rootCluster, name) }

// Unlink frees name's cluster chain and marks its directory entry deleted.
func (fs *FS) Unlink(name string) error { return fs.UnlinkIn(fs.rootCluster, name) }

// Write replaces name's entire content with data, allocating clusters from
// the FAT as needed and freeing any clusters the file no longer needs.
// name must already exist (via Create); Write does not implicitly create
// files.
func (fs *FS) Write(name string, data []byte) (int, error) {
	return fs.WriteIn(fs.rootCluster, name, data)
}

// FileExistsIn is FileExists against an arbitrary directory's first
// cluster, letting the VFS facade (C14) resolve names below root.
func (fs *FS) FileExistsIn(dirCluster uint32, name string) bool {
	name83, err := to83(name)
	if err != nil {
		return false
	}
	_, _, found, err := fs.findEntryIn(dirCluster, name83)
	return err == nil && found
}

// ReadFileIn is ReadFile against an arbitrary directory's first cluster.
func (fs *FS) ReadFileIn(dirCluster uint32, name string, buf []byte) (int, error) {
	name83, err := to83(name)
	if err != nil {
		return 0, err
	}
	entry, _, found, err := fs.findEntryIn(dirCluster, name83)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, ErrFileNotFound
	}
	if entry.IsDir {
		return 0, ErrIsADirectory
	}
	if entry.FirstCluster == 0 || entry.Size == 0 {
		return 0, nil
	}

	chain, err := fs.followChain(entry.FirstCluster)
	if err != nil {
		return 0, err
	}

	want := int(entry.Size)
	if want > len(buf) {
		want = len(buf)
	}
	written := 0
	for _, cluster := range chain {
		if written >= want {
			break
		}
		data, err := fs.readCluster(cluster)
		if err != nil {
			return written, err
		}
		n := copy(buf[written:want], data)
		written += n
	}
	return written, nil
}

// CreateIn is Create against an arbitrary directory's first cluster.
func (fs *FS) CreateIn(dirCluster uint32, name string) error {
	name83, err := to83(name)
	if err != nil {
		return err
	}
	_, _, found, err := fs.findEntryIn(dirCluster, name83)
	if err != nil {
		return err
	}
	if found {
		return ErrFileExists
	}
	slot, err := fs.findFreeSlotIn(dirCluster)
	if err != nil {
		return err
	}
	raw := buildDirEntry(name83, false, 0, 0)
	return fs.writeSlot(slot, raw)
}

// UnlinkIn is Unlink against an arbitrary directory's first cluster.
func (fs *FS) UnlinkIn(dirCluster uint32, name string) error {
	name83, err := to83(name)
	if err != nil {
		return err
	}
	entry, slot, found, err := fs.findEntryIn(dirCluster, name83)
	if err != nil {
		return err
	}
	if !found {
		return ErrFileNotFound
	}
	if entry.IsDir {
		return ErrIsADirectory
	}
	if entry.FirstCluster != 0 {
		if err := fs.freeChain(entry.FirstCluster); err != nil {
			return err
		}
	}
	return fs.deleteSlot(slot)
}

// WriteIn is Write against an arbitrary directory's first cluster.
func (fs *FS) WriteIn(dirCluster uint32, name string, data []byte) (int, error) {
	name83, err := to83(name)
	if err != nil {
		return 0, err
	}
	entry, slot, found, err := fs.findEntryIn(dirCluster, name83)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, ErrFileNotFound
	}
	if entry.IsDir {
		return 0, ErrIsADirectory
	}

	if entry.FirstCluster != 0 {
		if err := fs.freeChain(entry.FirstCluster); err != nil {
			return 0, err
		}
	}

	newFirst := uint32(0)
	if len(data) > 0 {
		clusterBytes := fs.clusterBytes()
		needed := (len(data) + clusterBytes - 1) / clusterBytes

		var prev uint32
		for i := 0; i < needed; i++ {
			c, err := fs.findFreeCluster()
			if err != nil {
				return 0, err
			}
			if err := fs.writeFATEntry(c, fat32EOCMin); err != nil {
				return 0, err
			}
			if prev != 0 {
				if err := fs.writeFATEntry(prev, c); err != nil {
					return 0, err
				}
			} else {
				newFirst = c
			}
			start := i * clusterBytes
			end := start + clusterBytes
			if end > len(data) {
				end = len(data)
			}
			if err := fs.writeCluster(c, data[start:end]); err != nil {
				return 0, err
			}
			prev = c
		}
	}

	raw := buildDirEntry(name83, false, newFirst, uint32(len(data)))
	if err := fs.writeSlot(slot, raw); err != nil {
		return 0, err
	}
	return len(data), nil
}
