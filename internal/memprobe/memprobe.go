// Package memprobe discovers usable physical memory (C3): it walks the
// flattened device tree SBI hands the kernel at boot for a "memory" node,
// falling back to the QEMU virt machine's documented layout when the DTB
// is missing or malformed, then carves the kernel image's own footprint out
// of whatever it finds and classifies what remains into DMA/Normal/High
// zones (internal/mm.Zone).
package memprobe

import (
	"unsafe"

	"github.com/xwings/elinOS/internal/klog"
	"github.com/xwings/elinOS/internal/mm"
)

// Flattened device tree tag values, same constants the teacher's
// dtb_qemu.go parser uses for the aarch64/QEMU virt DTB; the layout is
// architecture-independent so the tags carry over unchanged to RV64's DTB.
const (
	fdtMagic     = 0xd00dfeed
	fdtBeginNode = 1
	fdtEndNode   = 2
	fdtProp      = 3
	fdtNop       = 4
	fdtEnd       = 9
)

// fallbackBase/fallbackSize are QEMU virt's documented RAM window when no
// DTB is available, per SPEC_FULL.md §3's supplemented "known-layout
// fallback" (128 MiB at 0x8000_0000).
const (
	fallbackBase = 0x8000_0000
	fallbackSize = 128 * 1024 * 1024
)

// KernelEnd is set by the boot entry to the first byte past the kernel's
// own image and initial stacks, so Probe can carve that range out of
// whatever memory it discovers. It defaults to a conservative estimate,
// 0x8060_0000, of where the kernel image and its stacks end.
var KernelEnd uint64 = 0x8060_0000

func be32(addr uint64) uint32 {
	p := (*[4]byte)(unsafe.Pointer(uintptr(addr)))
	return uint32(p[0])<<24 | uint32(p[1])<<16 | uint32(p[2])<<8 | uint32(p[3])
}

func be64(addr uint64) uint64 {
	hi := be32(addr)
	lo := be32(addr + 4)
	return uint64(hi)<<32 | uint64(lo)
}

// Probe returns the usable physical memory regions, with everything below
// KernelEnd removed from whichever region contains the kernel image. dtb is the
// pointer the boot entry received in a1; a dtb of 0 or one that fails to
// parse falls back to the known QEMU layout.
func Probe(dtb uint64) []mm.Region {
	base, size, ok := probeDTB(dtb)
	if !ok {
		klog.Info("memprobe: no usable device tree, falling back to %d MiB at %#x", fallbackSize/(1024*1024), uint64(fallbackBase))
		base, size = fallbackBase, fallbackSize
	}

	regions := carveKernel(base, size)
	if len(regions) == 0 {
		klog.Fatal("memprobe: no usable memory remains after kernel carve-out")
	}
	for i := range regions {
		regions[i].Zone = mm.ClassifyZone(regions[i].Base)
	}
	return regions
}

// carveKernel splits [base,base+size) around [base, KernelEnd) when the
// kernel image falls inside it, returning the remaining usable region(s).
// A remainder below 16 MiB is fatal here (klog.Fatal) rather than silently
// booting with too little memory.
func carveKernel(base, size uint64) []mm.Region {
	end := base + size
	if KernelEnd <= base || KernelEnd >= end {
		return []mm.Region{{Base: base, Length: size, Usable: true}}
	}
	remaining := end - KernelEnd
	const minUsable = 16 * 1024 * 1024
	if remaining < minUsable {
		klog.Fatal("memprobe: only %d bytes remain after kernel carve-out, need at least %d", remaining, uint64(minUsable))
	}
	return []mm.Region{{Base: KernelEnd, Length: remaining, Usable: true}}
}

// probeDTB walks the flattened device tree structure block for the first
// "memory" node's reg property, interpreted as #address-cells=2,
// #size-cells=2 (QEMU virt's default), returning its base and size.
func probeDTB(dtb uint64) (base, size uint64, ok bool) {
	if dtb == 0 {
		return 0, 0, false
	}
	if be32(dtb) != fdtMagic {
		return 0, 0, false
	}
	offStruct := uint64(be32(dtb + 8))
	offStrings := uint64(be32(dtb + 12))
	p := dtb + offStruct

	inMemoryNode := false
	const maxTags = 1 << 16
	for i := 0; i < maxTags; i++ {
		tag := be32(p)
		p += 4
		switch tag {
		case fdtBeginNode:
			name := cstringAt(p)
			if len(name) >= 6 && name[:6] == "memory" {
				inMemoryNode = true
			}
			p += align4(uint64(len(name)) + 1)
		case fdtEndNode:
			inMemoryNode = false
		case fdtProp:
			length := be32(p)
			nameoff := be32(p + 4)
			valAddr := p + 8
			p += 8 + align4(uint64(length))
			if inMemoryNode && cstringAt(dtb+offStrings+uint64(nameoff)) == "reg" && length >= 16 {
				return be64(valAddr), be64(valAddr + 8), true
			}
		case fdtNop:
		case fdtEnd:
			return 0, 0, false
		default:
			return 0, 0, false
		}
	}
	return 0, 0, false
}

func align4(n uint64) uint64 { return (n + 3) &^ 3 }

func cstringAt(addr uint64) string {
	n := 0
	for n < 256 {
		if *(*byte)(unsafe.Pointer(uintptr(addr) + uintptr(n))) == 0 {
			break
		}
		n++
	}
	return string(unsafe.Slice((*byte)(unsafe.Pointer(uintptr(addr))), n))
}
