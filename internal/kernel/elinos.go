package kernel

import (
	"fmt"
	"unsafe"

	"github.com/xwings/elinOS/internal/elf"
)

// readWholeFile loads path's content into a single buffer capped at
// maxELFSize. ELF images in this version are never larger than a few
// hundred KiB (no dynamic linker, no loadable modules), so a fixed cap
// is simpler than plumbing a file-size query through the VFS facade.
func (k *Kernel) readWholeFile(path string) ([]byte, error) {
	buf := make([]byte, maxELFSize)
	n, err := k.vfs.ReadFile(path, buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

// LoadELF validates and loads path's PT_LOAD segments into physical memory
// via the fallible allocation API, returning the entry point.
func (k *Kernel) LoadELF(path string) (uint64, error) {
	data, err := k.readWholeFile(path)
	if err != nil {
		return 0, err
	}
	loaded, err := elf.Load(data, k.alloc)
	if err != nil {
		return 0, err
	}
	return loaded.Entry, nil
}

// ELFInfo validates path's header without loading any segment and reports
// a human-readable summary for the elf-info shell command (external
// collaborator).
func (k *Kernel) ELFInfo(path string) (string, error) {
	data, err := k.readWholeFile(path)
	if err != nil {
		return "", err
	}
	h, err := elf.Validate(data)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ELF64 RISC-V entry=%#x phnum=%d", h.Entry, h.PhNum), nil
}

// ExecELF loads path and simulates execution: there is no MMU to switch
// into user mode behind (a documented non-goal), so "executing" means
// reporting the entry point and segment layout a real exec would have
// jumped to, rather than actually transferring control there.
func (k *Kernel) ExecELF(path string) (uint64, error) {
	data, err := k.readWholeFile(path)
	if err != nil {
		return 0, err
	}
	loaded, err := elf.Load(data, k.alloc)
	if err != nil {
		return 0, err
	}
	entry, _ := elf.Exec(loaded)
	k.proc.transition(procRunning)
	return entry, nil
}

// maxUserCopy bounds ReadUserBytes/WriteUserBytes the same way
// internal/syscall already bounds a single read/write/getdents64 call.
const maxUserCopy = 1 << 20

// ReadUserBytes copies n bytes starting at addr into a fresh kernel-owned
// slice. Memory is identity-mapped and there is no MMU enforcing user/
// kernel separation in this version, so this only performs the null/range
// check a real copy_from_user would before touching the pointer.
func (k *Kernel) ReadUserBytes(addr uint64, n uint64) ([]byte, error) {
	if addr == 0 || n == 0 || n > maxUserCopy {
		return nil, ErrBadAddress
	}
	src := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(addr))), n)
	dst := make([]byte, n)
	copy(dst, src)
	return dst, nil
}

// WriteUserBytes copies data to addr, identity-mapped physical memory.
func (k *Kernel) WriteUserBytes(addr uint64, data []byte) error {
	if addr == 0 || uint64(len(data)) > maxUserCopy {
		return ErrBadAddress
	}
	dst := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(addr))), len(data))
	copy(dst, data)
	return nil
}
