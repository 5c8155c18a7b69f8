package virtio

import (
	"unsafe"

	"github.com/xwings/elinOS/internal/arch/riscv64"
	"github.com/xwings/elinOS/internal/mm"
)

// descChain flags, matching mazarin/virtqueue.go's VirtQDesc.Flags bits.
const (
	descFNext  = 1
	descFWrite = 2
)

type virtqDesc struct {
	addr  uint64
	len   uint32
	flags uint16
	next  uint16
}

type virtqAvailable struct {
	flags uint16
	idx   uint16
	ring  [256]uint16 // sized for the largest queue this kernel negotiates (128)
}

type virtqUsedElem struct {
	id  uint32
	len uint32
}

type virtqUsed struct {
	flags uint16
	idx   uint16
	ring  [256]virtqUsedElem
}

// virtqueue is the split-layout virtqueue: a descriptor table plus
// available and used rings, each on its own page-aligned allocation, the
// same three-region layout mazarin/virtqueue.go builds (virtqueueInit),
// generalized from that file's fixed-size queue to a size negotiated with
// the device (min(device_max, 128)).
type virtqueue struct {
	size int

	descBase uint64
	availBase uint64
	usedBase uint64

	desc  []virtqDesc
	avail *virtqAvailable
	used  *virtqUsed

	freeHead    uint16
	numFree     int
	lastUsedIdx uint16

	notifyBase uintptr // device MMIO base, set by install; queue-notify doorbell target
}

func newVirtqueue(size int, alloc *mm.Allocator) (*virtqueue, error) {
	descBytes := uint32(size * 16)
	availBytes := uint32(6 + 2*size)
	usedBytes := uint32(6 + 8*size)

	descAddr, err := alloc.Alloc(align4096(descBytes), 4096)
	if err != nil {
		return nil, deviceError("failed to allocate descriptor table")
	}
	availAddr, err := alloc.Alloc(align4096(availBytes), 4096)
	if err != nil {
		return nil, deviceError("failed to allocate available ring")
	}
	usedAddr, err := alloc.Alloc(align4096(usedBytes), 4096)
	if err != nil {
		return nil, deviceError("failed to allocate used ring")
	}

	q := &virtqueue{
		size:      size,
		descBase:  descAddr,
		availBase: availAddr,
		usedBase:  usedAddr,
		desc:      unsafe.Slice((*virtqDesc)(unsafe.Pointer(uintptr(descAddr))), size),
		avail:     (*virtqAvailable)(unsafe.Pointer(uintptr(availAddr))),
		used:      (*virtqUsed)(unsafe.Pointer(uintptr(usedAddr))),
		numFree:   size,
	}
	for i := 0; i < size-1; i++ {
		q.desc[i].next = uint16(i + 1)
	}
	q.freeHead = 0
	return q, nil
}

func align4096(n uint32) uint32 { return (n + 4095) &^ 4095 }

// install writes the queue's addresses to the device's MMIO registers,
// in the legacy QUEUE_PFN/QUEUE_ALIGN form or the modern split-register
// form depending on the negotiated transport, per
// original_source/src/virtio_blk.rs.
func (q *virtqueue) install(base uintptr, legacy bool) {
	q.notifyBase = base
	if legacy {
		const pageSize = 4096
		riscv64.MmioWrite32(base+regQueueAlignLegacy, pageSize)
		riscv64.MmioWrite32(base+regQueuePFNLegacy, uint32(q.descBase/pageSize))
		return
	}
	riscv64.MmioWrite32(base+regQueueDescLow, uint32(q.descBase))
	riscv64.MmioWrite32(base+regQueueDescHigh, uint32(q.descBase>>32))
	riscv64.MmioWrite32(base+regQueueDriverLow, uint32(q.availBase))
	riscv64.MmioWrite32(base+regQueueDriverHigh, uint32(q.availBase>>32))
	riscv64.MmioWrite32(base+regQueueDeviceLow, uint32(q.usedBase))
	riscv64.MmioWrite32(base+regQueueDeviceHigh, uint32(q.usedBase>>32))
	riscv64.MmioWrite32(base+regQueueReady, 1)
}

func (q *virtqueue) allocDesc() (uint16, bool) {
	if q.numFree == 0 {
		return 0, false
	}
	id := q.freeHead
	q.freeHead = q.desc[id].next
	q.numFree--
	return id, true
}

func (q *virtqueue) freeDescChain(head uint16) {
	id := head
	for {
		next := q.desc[id].next
		hasNext := q.desc[id].flags&descFNext != 0
		q.desc[id].next = q.freeHead
		q.freeHead = id
		q.numFree++
		if !hasNext {
			break
		}
		id = next
	}
}

// submitBlockRequest builds the standard VirtIO block request's 3-descriptor
// chain (header read-only, data direction-dependent, status write-only),
// publishes it, notifies the device, and busy-polls the used ring for
// completion — single request inflight at a time, as the block cache above
// serializes callers with its own lock.
func (q *virtqueue) submitBlockRequest(sector uint64, buf []byte, typ uint32) (byte, error) {
	hdr := blkReqHeader{typ: typ, sector: sector}
	hdrAddr := uint64(uintptr(unsafe.Pointer(&hdr)))
	var status byte
	statusAddr := uint64(uintptr(unsafe.Pointer(&status)))

	hdrID, ok := q.allocDesc()
	if !ok {
		return 0, deviceError("descriptor table exhausted")
	}
	dataID, ok := q.allocDesc()
	if !ok {
		q.freeDescChain(hdrID)
		return 0, deviceError("descriptor table exhausted")
	}
	statusID, ok := q.allocDesc()
	if !ok {
		q.freeDescChain(hdrID)
		return 0, deviceError("descriptor table exhausted")
	}

	dataFlags := uint16(descFNext)
	if typ == blkTypeIn {
		dataFlags |= descFWrite
	}

	q.desc[hdrID] = virtqDesc{addr: hdrAddr, len: uint32(unsafe.Sizeof(hdr)), flags: descFNext, next: dataID}
	q.desc[dataID] = virtqDesc{addr: uint64(uintptr(unsafe.Pointer(&buf[0]))), len: uint32(len(buf)), flags: dataFlags, next: statusID}
	q.desc[statusID] = virtqDesc{addr: statusAddr, len: 1, flags: descFWrite, next: 0}

	slot := q.avail.idx % uint16(q.size)
	q.avail.ring[slot] = hdrID
	riscv64.FenceRW()
	q.avail.idx++
	riscv64.MmioWrite32(q.notifyBase+regQueueNotify, 0) // queue 0, the only queue this driver negotiates

	return q.pollCompletion(hdrID, &status)
}

// pollCompletion busy-polls the used ring until the device posts a
// completion. There is no timeout or cancellation: a device that never
// completes stalls the caller forever, rather than surfacing a spurious
// I/O error for a request that may still complete.
func (q *virtqueue) pollCompletion(headID uint16, status *byte) (byte, error) {
	for {
		riscv64.FenceRW()
		if q.used.idx != q.lastUsedIdx {
			break
		}
	}
	elem := q.used.ring[q.lastUsedIdx%uint16(q.size)]
	q.lastUsedIdx++
	_ = elem // id/len recorded for diagnostics only; single request inflight
	q.freeDescChain(headID)
	return *status, nil
}
