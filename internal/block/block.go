// Package block implements the thin block cache (C10): sector-aligned
// read/write pass-through to the VirtIO block driver, using bounce buffers
// allocated through the fallible allocation API. There is no caching here
// by design — every read and write goes to the device, and a write is
// durable by the time the call returns.
package block

import (
	"sync"
	"unsafe"

	"github.com/xwings/elinOS/internal/mm"
)

const sectorSize = 512

// Device is the subset of internal/virtio.BlockDevice the block cache
// depends on, kept narrow so this package never imports virtio directly
// and so tests can supply a fake.
type Device interface {
	ReadSector(sector uint64, out []byte) error
	WriteSector(sector uint64, in []byte) error
}

// Cache is the block cache: one lock serializing every request onto the
// single-inflight-request virtqueue underneath, and one sector-sized
// bounce buffer reused across calls.
type Cache struct {
	mu     sync.Mutex
	dev    Device
	alloc  *mm.Allocator
	bounce []byte
}

// New allocates the bounce buffer and returns a Cache over dev.
func New(dev Device, alloc *mm.Allocator) (*Cache, error) {
	addr, err := alloc.Alloc(sectorSize, sectorSize)
	if err != nil {
		return nil, err
	}
	buf := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(addr))), sectorSize)
	return &Cache{dev: dev, alloc: alloc, bounce: buf}, nil
}

// ReadBlock reads one sector into out, which must be exactly sectorSize
// bytes. The device writes into the bounce buffer first; out never touches
// the device directly, since the caller's slice may not be sector-aligned.
func (c *Cache) ReadBlock(sector uint64, out []byte) error {
	if len(out) != sectorSize {
		return ErrBadSize
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.dev.ReadSector(sector, c.bounce); err != nil {
		return err
	}
	copy(out, c.bounce)
	return nil
}

// WriteBlock writes one sector from in, which must be exactly sectorSize
// bytes. By the time WriteBlock returns, the data has been accepted by the
// device (no write-behind, no cache to flush later).
func (c *Cache) WriteBlock(sector uint64, in []byte) error {
	if len(in) != sectorSize {
		return ErrBadSize
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	copy(c.bounce, in)
	return c.dev.WriteSector(sector, c.bounce)
}

// SectorSize reports the fixed sector size every ReadBlock/WriteBlock call
// operates on.
func SectorSize() int { return sectorSize }
