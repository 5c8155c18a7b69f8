package ext2

// ListDir lists the entries of an arbitrary directory inode, letting the
// VFS facade (C14) walk multi-component paths through directories this
// package's root-scoped public API never names directly.
func (fs *FS) ListDir(dirInode uint32) ([]Entry, error) {
	in, err := fs.readInode(dirInode)
	if err != nil {
		return nil, err
	}
	return fs.listDirInode(in)
}

// LookupIn resolves name within an arbitrary directory inode.
func (fs *FS) LookupIn(dirInode uint32, name string) (Entry, bool, error) {
	in, err := fs.readInode(dirInode)
	if err != nil {
		return Entry{}, false, err
	}
	childNum, found, err := fs.findInDirInode(in, name)
	if err != nil || !found {
		return Entry{}, false, err
	}
	child, err := fs.readInode(childNum)
	if err != nil {
		return Entry{}, false, err
	}
	return Entry{Name: name, Inode: childNum, IsDir: child.IsDir()}, true, nil
}

// IsDir reports whether inodeNum names a directory.
func (fs *FS) IsDir(inodeNum uint32) (bool, error) {
	in, err := fs.readInode(inodeNum)
	if err != nil {
		return false, err
	}
	return in.IsDir(), nil
}
