package memprobe

import (
	"encoding/binary"
	"runtime"
	"testing"
	"unsafe"
)

func TestCarveKernelInsideRegion(t *testing.T) {
	old := KernelEnd
	defer func() { KernelEnd = old }()
	KernelEnd = 0x8020_0000

	regions := carveKernel(0x8000_0000, 128*1024*1024)
	if len(regions) != 1 {
		t.Fatalf("expected one region, got %d", len(regions))
	}
	if regions[0].Base != KernelEnd {
		t.Errorf("region base = %#x, want %#x", regions[0].Base, KernelEnd)
	}
	want := (0x8000_0000 + uint64(128*1024*1024)) - KernelEnd
	if regions[0].Length != want {
		t.Errorf("region length = %#x, want %#x", regions[0].Length, want)
	}
}

func TestCarveKernelOutsideRegion(t *testing.T) {
	old := KernelEnd
	defer func() { KernelEnd = old }()
	KernelEnd = 0x9000_0000 // outside [base, base+size)

	regions := carveKernel(0x8000_0000, 16*1024*1024)
	if len(regions) != 1 || regions[0].Base != 0x8000_0000 {
		t.Fatalf("expected the whole region untouched, got %+v", regions)
	}
}

// buildFDT assembles a minimal flattened device tree with a single
// top-level "memory" node carrying a two-cell reg property, enough for
// probeDTB to parse without needing a real boot-time DTB.
func buildFDT(base, size uint64) []byte {
	var structBlock []byte
	be32 := func(v uint32) {
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], v)
		structBlock = append(structBlock, b[:]...)
	}
	pad := func(s string) {
		structBlock = append(structBlock, s...)
		structBlock = append(structBlock, 0)
		for len(structBlock)%4 != 0 {
			structBlock = append(structBlock, 0)
		}
	}

	be32(fdtBeginNode)
	pad("memory@80000000")
	be32(fdtProp)
	be32(16)  // length
	be32(0)   // nameoff -> "reg" at strings offset 0
	var regVal [16]byte
	binary.BigEndian.PutUint64(regVal[0:8], base)
	binary.BigEndian.PutUint64(regVal[8:16], size)
	structBlock = append(structBlock, regVal[:]...)
	be32(fdtEndNode)
	be32(fdtEnd)

	strings := []byte("reg\x00")

	header := make([]byte, 40)
	binary.BigEndian.PutUint32(header[0:4], fdtMagic)
	binary.BigEndian.PutUint32(header[8:12], 40)                           // off_dt_struct
	binary.BigEndian.PutUint32(header[12:16], uint32(40+len(structBlock))) // off_dt_strings

	blob := append(header, structBlock...)
	blob = append(blob, strings...)
	return blob
}

func TestProbeDTB(t *testing.T) {
	blob := buildFDT(0x8000_0000, 256*1024*1024)
	addr := uint64(uintptr(unsafe.Pointer(&blob[0])))

	base, size, ok := probeDTB(addr)
	runtime.KeepAlive(blob)
	if !ok {
		t.Fatal("expected probeDTB to succeed")
	}
	if base != 0x8000_0000 || size != 256*1024*1024 {
		t.Errorf("got base=%#x size=%#x", base, size)
	}
}

func TestProbeDTBRejectsBadMagic(t *testing.T) {
	blob := make([]byte, 64)
	addr := uint64(uintptr(unsafe.Pointer(&blob[0])))
	_, _, ok := probeDTB(addr)
	runtime.KeepAlive(blob)
	if ok {
		t.Fatal("expected probeDTB to reject a bad magic number")
	}
}

func TestProbeDTBZeroPointer(t *testing.T) {
	if _, _, ok := probeDTB(0); ok {
		t.Fatal("expected probeDTB(0) to fail")
	}
}
