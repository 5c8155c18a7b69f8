package fs

import (
	"runtime"
	"testing"
	"unsafe"

	"github.com/xwings/elinOS/internal/block"
	"github.com/xwings/elinOS/internal/mm"
)

// fakeDevice is a flat in-memory sector array satisfying block.Device.
type fakeDevice struct {
	sectors map[uint64][]byte
}

func newFakeDevice() *fakeDevice { return &fakeDevice{sectors: make(map[uint64][]byte)} }

func (d *fakeDevice) ReadSector(sector uint64, out []byte) error {
	data, ok := d.sectors[sector]
	if !ok {
		data = make([]byte, 512)
	}
	copy(out, data)
	return nil
}

func (d *fakeDevice) WriteSector(sector uint64, in []byte) error {
	d.sectors[sector] = append([]byte(nil), in...)
	return nil
}

func testAllocator(t *testing.T) *mm.Allocator {
	t.Helper()
	const pages = 4
	length := uint64(pages * mm.PageSize)
	buf := make([]byte, 2*int(length))
	raw := uintptr(unsafe.Pointer(&buf[0]))
	aligned := (raw + uintptr(length) - 1) &^ (uintptr(length) - 1)
	b := mm.NewBuddy(uint64(aligned), length)
	a := mm.NewAllocator(b, mm.NewSlab(b), mm.Simple)
	t.Cleanup(func() { runtime.KeepAlive(buf) })
	return a
}

func testCache(t *testing.T, dev *fakeDevice) *block.Cache {
	t.Helper()
	c, err := block.New(dev, testAllocator(t))
	if err != nil {
		t.Fatalf("block.New: %v", err)
	}
	return c
}

func TestDetectFAT32(t *testing.T) {
	dev := newFakeDevice()
	sector0 := make([]byte, 512)
	copy(sector0[82:], []byte("FAT32   "))
	sector0[510] = 0x55
	sector0[511] = 0xAA
	dev.sectors[0] = sector0

	kind, err := Detect(testCache(t, dev))
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if kind != FAT32 {
		t.Fatalf("got %v, want FAT32", kind)
	}
}

func TestDetectExt2(t *testing.T) {
	dev := newFakeDevice()
	sector2 := make([]byte, 512)
	sector2[56] = 0x53
	sector2[57] = 0xEF
	dev.sectors[2] = sector2

	kind, err := Detect(testCache(t, dev))
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if kind != Ext2 {
		t.Fatalf("got %v, want Ext2", kind)
	}
}

func TestDetectUnknown(t *testing.T) {
	dev := newFakeDevice()
	kind, err := Detect(testCache(t, dev))
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if kind != Unknown {
		t.Fatalf("got %v, want Unknown", kind)
	}
}

func TestDetectBootSignatureWithoutFAT32LabelIsNotFAT32(t *testing.T) {
	dev := newFakeDevice()
	sector0 := make([]byte, 512)
	sector0[510] = 0x55
	sector0[511] = 0xAA
	dev.sectors[0] = sector0

	kind, err := Detect(testCache(t, dev))
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if kind != Unknown {
		t.Fatalf("got %v, want Unknown (no FAT32 label present)", kind)
	}
}
