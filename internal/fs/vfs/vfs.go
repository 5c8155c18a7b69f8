// Package vfs implements the VFS facade (C14): one active filesystem
// (whichever internal/fs.Detect found at boot), UNIX-like path resolution
// with "." and "..", and a process-scoped current-working-directory cursor
// initialized to "/".
package vfs

import (
	stdpath "path"
	"strings"

	"github.com/xwings/elinOS/internal/block"
	fsdetect "github.com/xwings/elinOS/internal/fs"
	"github.com/xwings/elinOS/internal/fs/ext2"
	"github.com/xwings/elinOS/internal/fs/fat32"
)

// Entry is one file or directory found in a directory listing, normalized
// across both backing filesystems.
type Entry struct {
	Name  string
	IsDir bool
}

// VFS presents one mounted filesystem through a single, backend-agnostic
// path-based API. There is no virtual dispatch table: the backend set is
// closed (FAT32 or ext2), so every operation switches on the detected kind
// directly rather than through an interface neither backend's on-disk
// format needs.
type VFS struct {
	kind fsdetect.Kind
	fat  *fat32.FS
	ext  *ext2.FS
	cwd  string
}

// Mount detects the filesystem on dev and mounts it with the matching
// driver (C12 or C13).
func Mount(dev *block.Cache) (*VFS, error) {
	kind, err := fsdetect.Detect(dev)
	if err != nil {
		return nil, err
	}

	v := &VFS{kind: kind, cwd: "/"}
	switch kind {
	case fsdetect.FAT32:
		fs, err := fat32.Mount(dev)
		if err != nil {
			return nil, err
		}
		v.fat = fs
	case fsdetect.Ext2:
		fs, err := ext2.Mount(dev)
		if err != nil {
			return nil, err
		}
		v.ext = fs
	default:
		return nil, ErrNoFilesystem
	}
	return v, nil
}

// Kind reports which filesystem is mounted.
func (v *VFS) Kind() fsdetect.Kind { return v.kind }

// Getwd returns the current working directory.
func (v *VFS) Getwd() string { return v.cwd }

func (v *VFS) rootHandle() uint32 {
	if v.kind == fsdetect.FAT32 {
		return v.fat.RootCluster()
	}
	return ext2.RootInode
}

// clean resolves path against cwd (if relative) and collapses "." and ".."
// components, the way stdlib "path" does for any slash-separated
// hierarchy — there is no UNIX path-resolution library anywhere in the
// pack, and reimplementing Clean/Join's component algebra by hand would
// just be a worse copy of the standard library's own.
func (v *VFS) clean(p string) string {
	if p == "" {
		p = "."
	}
	if !stdpath.IsAbs(p) {
		p = stdpath.Join(v.cwd, p)
	}
	return stdpath.Clean(p)
}

func splitComponents(cleanAbs string) []string {
	trimmed := strings.Trim(cleanAbs, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// resolveDir walks path's components from root, requiring every component
// to be a directory, and returns the final directory's handle (an ext2
// inode number or a FAT32 cluster number — both uint32, but never
// interchangeable across kinds).
func (v *VFS) resolveDir(path string) (uint32, error) {
	clean := v.clean(path)
	handle := v.rootHandle()
	for _, name := range splitComponents(clean) {
		next, isDir, err := v.lookupChild(handle, name)
		if err != nil {
			return 0, err
		}
		if !isDir {
			return 0, ErrNotADirectory
		}
		handle = next
	}
	return handle, nil
}

// resolveParent splits path into its containing directory's handle and its
// final component name, without requiring the final component to exist.
func (v *VFS) resolveParent(path string) (uint32, string, error) {
	clean := v.clean(path)
	if clean == "/" {
		return 0, "", ErrIsADirectory
	}
	dir, base := stdpath.Split(clean)
	handle, err := v.resolveDir(stdpath.Clean(dir))
	return handle, base, err
}

func (v *VFS) lookupChild(dirHandle uint32, name string) (next uint32, isDir bool, err error) {
	switch v.kind {
	case fsdetect.FAT32:
		entries, err := v.fat.ListDirAt(dirHandle)
		if err != nil {
			return 0, false, err
		}
		for _, e := range entries {
			if strings.EqualFold(e.Name, name) {
				return e.FirstCluster, e.IsDir, nil
			}
		}
		return 0, false, ErrNotFound
	case fsdetect.Ext2:
		entry, found, err := v.ext.LookupIn(dirHandle, name)
		if err != nil {
			return 0, false, err
		}
		if !found {
			return 0, false, ErrNotFound
		}
		return entry.Inode, entry.IsDir, nil
	default:
		return 0, false, ErrNoFilesystem
	}
}

// Chdir changes the working directory, failing if path does not resolve to
// an existing directory.
func (v *VFS) Chdir(path string) error {
	clean := v.clean(path)
	if clean != "/" {
		if _, err := v.resolveDir(clean); err != nil {
			return err
		}
	}
	v.cwd = clean
	return nil
}

// List returns the entries of the directory at path.
func (v *VFS) List(path string) ([]Entry, error) {
	handle, err := v.resolveDir(path)
	if err != nil {
		return nil, err
	}
	switch v.kind {
	case fsdetect.FAT32:
		raw, err := v.fat.ListDirAt(handle)
		if err != nil {
			return nil, err
		}
		entries := make([]Entry, len(raw))
		for i, e := range raw {
			entries[i] = Entry{Name: e.Name, IsDir: e.IsDir}
		}
		return entries, nil
	case fsdetect.Ext2:
		raw, err := v.ext.ListDir(handle)
		if err != nil {
			return nil, err
		}
		entries := make([]Entry, len(raw))
		for i, e := range raw {
			entries[i] = Entry{Name: e.Name, IsDir: e.IsDir}
		}
		return entries, nil
	default:
		return nil, ErrNoFilesystem
	}
}

// FileExists reports whether path names an existing file or directory.
func (v *VFS) FileExists(path string) bool {
	clean := v.clean(path)
	if clean == "/" {
		return true
	}
	dirHandle, name, err := v.resolveParent(clean)
	if err != nil {
		return false
	}
	_, _, err = v.lookupChild(dirHandle, name)
	return err == nil
}

// ReadFile copies path's content into buf.
func (v *VFS) ReadFile(path string, buf []byte) (int, error) {
	dirHandle, name, err := v.resolveParent(path)
	if err != nil {
		return 0, err
	}
	switch v.kind {
	case fsdetect.FAT32:
		return v.fat.ReadFileIn(dirHandle, name, buf)
	case fsdetect.Ext2:
		return v.ext.ReadFileIn(dirHandle, name, buf)
	default:
		return 0, ErrNoFilesystem
	}
}

// Create adds a new, empty file at path.
func (v *VFS) Create(path string) error {
	dirHandle, name, err := v.resolveParent(path)
	if err != nil {
		return err
	}
	switch v.kind {
	case fsdetect.FAT32:
		return v.fat.CreateIn(dirHandle, name)
	case fsdetect.Ext2:
		return v.ext.CreateIn(dirHandle, name)
	default:
		return ErrNoFilesystem
	}
}

// Unlink removes the file at path.
func (v *VFS) Unlink(path string) error {
	dirHandle, name, err := v.resolveParent(path)
	if err != nil {
		return err
	}
	switch v.kind {
	case fsdetect.FAT32:
		return v.fat.UnlinkIn(dirHandle, name)
	case fsdetect.Ext2:
		return v.ext.UnlinkIn(dirHandle, name)
	default:
		return ErrNoFilesystem
	}
}

// Write replaces path's entire content with data. path must already exist.
func (v *VFS) Write(path string, data []byte) (int, error) {
	dirHandle, name, err := v.resolveParent(path)
	if err != nil {
		return 0, err
	}
	switch v.kind {
	case fsdetect.FAT32:
		return v.fat.WriteIn(dirHandle, name, data)
	case fsdetect.Ext2:
		return v.ext.WriteIn(dirHandle, name, data)
	default:
		return 0, ErrNoFilesystem
	}
}

// Mkdir creates a new directory at path. FAT32 has no directory-creation
// operation in this driver (only ext2 gains mkdir/rmdir), so Mkdir on a
// FAT32-mounted volume always reports ErrUnsupported.
func (v *VFS) Mkdir(path string) error {
	if v.kind != fsdetect.Ext2 {
		return ErrUnsupported
	}
	dirHandle, name, err := v.resolveParent(path)
	if err != nil {
		return err
	}
	return v.ext.MkdirIn(dirHandle, name)
}

// Rmdir removes the empty directory at path. FAT32-mounted volumes always
// report ErrUnsupported, matching Mkdir.
func (v *VFS) Rmdir(path string) error {
	if v.kind != fsdetect.Ext2 {
		return ErrUnsupported
	}
	dirHandle, name, err := v.resolveParent(path)
	if err != nil {
		return err
	}
	return v.ext.RmdirIn(dirHandle, name)
}
