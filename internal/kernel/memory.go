package kernel

import "github.com/xwings/elinOS/internal/mm"

// Brk adjusts the single process's program break within the fixed user
// heap reserved at Boot. addr == 0 queries the current break without
// moving it, matching Linux's brk(2) convention; any other addr outside
// [brkBase, brkLimit] is rejected rather than silently clamped, since this
// kernel has no way to grow the reservation after boot.
func (k *Kernel) Brk(addr uint64) (uint64, error) {
	if addr == 0 {
		return k.brk, nil
	}
	if addr < k.brkBase || addr > k.brkLimit {
		return k.brk, ErrOutOfRange
	}
	k.brk = addr
	return k.brk, nil
}

// Mmap creates an anonymous mapping of length bytes (rounded up to a page),
// the only kind this kernel's mmap syscall supports — there is no backing
// file-mapped mmap, since the VFS facade has no page-cache concept to map
// from.
func (k *Kernel) Mmap(length uint64, prot uint64, flags uint64) (uint64, error) {
	size := (length + mm.PageSize - 1) &^ (mm.PageSize - 1)
	if size == 0 || size > uint64(^uint32(0)) {
		return 0, ErrInvalidSize
	}
	addr, err := k.alloc.Alloc(uint32(size), mm.PageSize)
	if err != nil {
		return 0, err
	}
	k.mmaps[addr] = size
	return addr, nil
}

// Munmap releases a mapping previously returned by Mmap. addr and length
// must match the original call exactly; this kernel does not support
// partial unmapping of a region.
func (k *Kernel) Munmap(addr uint64, length uint64) error {
	size := (length + mm.PageSize - 1) &^ (mm.PageSize - 1)
	have, ok := k.mmaps[addr]
	if !ok || have != size {
		return ErrBadMapping
	}
	delete(k.mmaps, addr)
	return k.alloc.Free(addr, uint32(size))
}
