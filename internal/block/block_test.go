package block

import (
	"bytes"
	"runtime"
	"testing"
	"unsafe"

	"github.com/xwings/elinOS/internal/mm"
)

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

// fakeDevice is an in-memory stand-in for a virtio.BlockDevice: a flat map
// of sector number to its 512-byte contents.
type fakeDevice struct {
	sectors map[uint64][]byte
	reads   int
	writes  int
	failNext bool
}

func newFakeDevice() *fakeDevice { return &fakeDevice{sectors: make(map[uint64][]byte)} }

func (d *fakeDevice) ReadSector(sector uint64, out []byte) error {
	d.reads++
	if d.failNext {
		d.failNext = false
		return errIOFault
	}
	data, ok := d.sectors[sector]
	if !ok {
		data = make([]byte, sectorSize)
	}
	copy(out, data)
	return nil
}

func (d *fakeDevice) WriteSector(sector uint64, in []byte) error {
	d.writes++
	if d.failNext {
		d.failNext = false
		return errIOFault
	}
	d.sectors[sector] = append([]byte(nil), in...)
	return nil
}

var errIOFault = testIOError("simulated device failure")

type testIOError string

func (e testIOError) Error() string { return string(e) }

func TestReadBlockRejectsWrongSize(t *testing.T) {
	c, err := New(newFakeDevice(), testAllocator(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := c.ReadBlock(0, make([]byte, 10)); err != ErrBadSize {
		t.Fatalf("got %v, want ErrBadSize", err)
	}
}

func TestWriteBlockRejectsWrongSize(t *testing.T) {
	c, err := New(newFakeDevice(), testAllocator(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := c.WriteBlock(0, make([]byte, sectorSize+1)); err != ErrBadSize {
		t.Fatalf("got %v, want ErrBadSize", err)
	}
}

func TestWriteThenReadRoundTrips(t *testing.T) {
	dev := newFakeDevice()
	c, err := New(dev, testAllocator(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	want := bytes.Repeat([]byte{0xAB}, sectorSize)
	if err := c.WriteBlock(5, want); err != nil {
		t.Fatalf("WriteBlock: %v", err)
	}

	got := make([]byte, sectorSize)
	if err := c.ReadBlock(5, got); err != nil {
		t.Fatalf("ReadBlock: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("round trip mismatch")
	}
	if dev.writes != 1 || dev.reads != 1 {
		t.Fatalf("writes=%d reads=%d, want 1/1", dev.writes, dev.reads)
	}
}

func TestReadBlockPropagatesDeviceError(t *testing.T) {
	dev := newFakeDevice()
	dev.failNext = true
	c, err := New(dev, testAllocator(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := c.ReadBlock(0, make([]byte, sectorSize)); err != errIOFault {
		t.Fatalf("got %v, want errIOFault", err)
	}
}

func TestUnrelatedSectorsDoNotAlias(t *testing.T) {
	dev := newFakeDevice()
	c, err := New(dev, testAllocator(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	a := bytes.Repeat([]byte{0x11}, sectorSize)
	b := bytes.Repeat([]byte{0x22}, sectorSize)
	if err := c.WriteBlock(1, a); err != nil {
		t.Fatalf("WriteBlock(1): %v", err)
	}
	if err := c.WriteBlock(2, b); err != nil {
		t.Fatalf("WriteBlock(2): %v", err)
	}
	gotA := make([]byte, sectorSize)
	gotB := make([]byte, sectorSize)
	c.ReadBlock(1, gotA)
	c.ReadBlock(2, gotB)
	if !bytes.Equal(gotA, a) || !bytes.Equal(gotB, b) {
		t.Fatalf("sector contents crossed")
	}
}
