// Package virtio implements the VirtIO-MMIO block driver (C9): device
// discovery over the platform's fixed MMIO window, the init state machine,
// and single-inflight block request submission over a split-layout
// virtqueue. The virtqueue struct shapes and publication-fence discipline
// are carried over from mazarin/virtqueue.go; the register layout and
// request/status format come from original_source/src/virtio_blk.rs.
package virtio

import (
	"github.com/xwings/elinOS/internal/arch/riscv64"
	"github.com/xwings/elinOS/internal/errno"
	"github.com/xwings/elinOS/internal/klog"
	"github.com/xwings/elinOS/internal/mm"
)

// MMIO probing window: 8 slots at 4 KiB stride starting at the virt
// machine's documented VirtIO base.
const (
	ScanBase   = 0x1000_1000
	ScanStride = 0x1000
	ScanSlots  = 8
)

// VirtIO-MMIO register offsets (version-independent header, common to
// legacy (v1) and modern (v2) transports).
const (
	regMagic       = 0x000
	regVersion     = 0x004
	regDeviceID    = 0x008
	regDeviceFeat  = 0x010
	regDeviceFeatSel = 0x014
	regDriverFeat  = 0x020
	regDriverFeatSel = 0x024
	regQueueSel    = 0x030
	regQueueNumMax = 0x034
	regQueueNum    = 0x038
	regQueueReady  = 0x044 // modern only
	regQueueNotify = 0x050
	regInterruptStatus = 0x060
	regInterruptAck = 0x064
	regStatus      = 0x070

	// Legacy (version 1) queue address registers.
	regQueueAlignLegacy = 0x03c
	regQueuePFNLegacy   = 0x040

	// Modern (version 2) split queue address registers.
	regQueueDescLow  = 0x080
	regQueueDescHigh = 0x084
	regQueueDriverLow  = 0x090
	regQueueDriverHigh = 0x094
	regQueueDeviceLow  = 0x0a0
	regQueueDeviceHigh = 0x0a4

	magicValue = 0x74726976 // "virt"
	blockDeviceID = 2
)

// Device status bits (VIRTIO_STATUS_*).
const (
	statusAcknowledge = 1
	statusDriver      = 2
	statusFailed      = 128
	statusFeaturesOK  = 8
	statusDriverOK    = 4
)

// VIRTIO_F_VERSION_1 is feature bit 32: it lives in feature word 1 (bits
// 32-63), at bit 0 of that word, and must be negotiated for the modern
// (non-legacy) transport.
const featureVersion1Word1Bit = 1 << 0

// Probe scans the fixed VirtIO-MMIO window for the first block device and
// initializes it. It returns errNoDevice (mapped to ENODEV at the syscall
// boundary) if no slot holds a VirtIO block device.
func Probe(alloc *mm.Allocator) (*BlockDevice, error) {
	for i := 0; i < ScanSlots; i++ {
		base := uintptr(ScanBase + i*ScanStride)
		if riscv64.MmioRead32(base+regMagic) != magicValue {
			continue
		}
		if riscv64.MmioRead32(base+regDeviceID) != blockDeviceID {
			continue
		}
		dev, err := newBlockDevice(base, alloc)
		if err != nil {
			klog.Error("virtio: slot %d init failed: %v", i, err)
			continue
		}
		return dev, nil
	}
	return nil, errNoDevice
}

var errNoDevice = deviceError("no virtio-blk device found in scan window")

type deviceError string

func (e deviceError) Error() string { return string(e) }

// BlockDevice is one VirtIO-MMIO block device: its register base, the
// negotiated transport version, and its single virtqueue. Only one request
// is ever inflight at a time, serialized by the block cache's lock above
// it, so there is no per-request bookkeeping beyond the queue itself.
type BlockDevice struct {
	base    uintptr
	legacy  bool
	queueSz int
	q       *virtqueue

	capacitySectors uint64
}

func newBlockDevice(base uintptr, alloc *mm.Allocator) (*BlockDevice, error) {
	version := riscv64.MmioRead32(base + regVersion)
	legacy := version == 1
	if version != 1 && version != 2 {
		return nil, deviceError("unsupported virtio-mmio version")
	}

	riscv64.MmioWrite32(base+regStatus, 0) // reset
	riscv64.MmioWrite32(base+regStatus, statusAcknowledge)
	riscv64.MmioWrite32(base+regStatus, statusAcknowledge|statusDriver)

	riscv64.MmioWrite32(base+regDeviceFeatSel, 0)
	features0 := riscv64.MmioRead32(base + regDeviceFeat)
	riscv64.MmioWrite32(base+regDriverFeatSel, 0)
	riscv64.MmioWrite32(base+regDriverFeat, features0) // accept whatever is offered

	riscv64.MmioWrite32(base+regDeviceFeatSel, 1)
	features1 := riscv64.MmioRead32(base + regDeviceFeat)
	if !legacy && features1&featureVersion1Word1Bit == 0 {
		riscv64.MmioWrite32(base+regStatus, statusFailed)
		return nil, deviceError("device did not offer VIRTIO_F_VERSION_1")
	}
	riscv64.MmioWrite32(base+regDriverFeatSel, 1)
	riscv64.MmioWrite32(base+regDriverFeat, features1&featureVersion1Word1Bit)

	riscv64.MmioWrite32(base+regStatus, statusAcknowledge|statusDriver|statusFeaturesOK)
	if riscv64.MmioRead32(base+regStatus)&statusFeaturesOK == 0 {
		riscv64.MmioWrite32(base+regStatus, statusFailed)
		return nil, deviceError("device rejected FEATURES_OK")
	}

	riscv64.MmioWrite32(base+regQueueSel, 0)
	devMax := riscv64.MmioRead32(base + regQueueNumMax)
	if devMax == 0 {
		riscv64.MmioWrite32(base+regStatus, statusFailed)
		return nil, deviceError("device reports queue 0 unavailable")
	}
	qsize := devMax
	if qsize > 128 {
		qsize = 128
	}
	riscv64.MmioWrite32(base+regQueueNum, qsize)

	q, err := newVirtqueue(int(qsize), alloc)
	if err != nil {
		riscv64.MmioWrite32(base+regStatus, statusFailed)
		return nil, err
	}
	q.install(base, legacy)

	riscv64.MmioWrite32(base+regStatus, statusAcknowledge|statusDriver|statusFeaturesOK|statusDriverOK)

	return &BlockDevice{base: base, legacy: legacy, queueSz: int(qsize), q: q}, nil
}

// VirtIO block request types and status codes (original_source/src/
// virtio_blk.rs).
const (
	blkTypeIn    = 0
	blkTypeOut   = 1
	blkTypeFlush = 4

	blkStatusOK     = 0
	blkStatusIOErr  = 1
	blkStatusUnsupp = 2
)

// blkReqHeader is the VirtIO block request header, little-endian on the
// wire (RISC-V is little-endian natively, so the in-memory struct layout
// is already correct).
type blkReqHeader struct {
	typ      uint32
	reserved uint32
	sector   uint64
}

const sectorSize = 512

// ReadSector reads one 512-byte sector into out (len(out) must be 512).
func (d *BlockDevice) ReadSector(sector uint64, out []byte) error {
	return d.doRequest(sector, out, blkTypeIn)
}

// WriteSector writes one 512-byte sector from in (len(in) must be 512).
func (d *BlockDevice) WriteSector(sector uint64, in []byte) error {
	return d.doRequest(sector, in, blkTypeOut)
}

func (d *BlockDevice) doRequest(sector uint64, buf []byte, typ uint32) error {
	if len(buf) != sectorSize {
		return errno_invalidSize
	}
	status, err := d.q.submitBlockRequest(sector, buf, typ)
	if err != nil {
		return err
	}
	switch status {
	case blkStatusOK:
		return nil
	case blkStatusIOErr:
		return errIO
	case blkStatusUnsupp:
		return errUnsupported
	default:
		return errIO
	}
}

var (
	errno_invalidSize = deviceError("buffer must be exactly one sector")
	errIO             = deviceError("virtio-blk status: io error")
	errUnsupported    = deviceError("virtio-blk status: unsupported op")
)

// ToErrno maps a virtio error to the negated Linux errno the syscall
// boundary expects.
func ToErrno(err error) int64 {
	switch err {
	case nil:
		return 0
	case errIO, errno_invalidSize:
		return errno.EIO
	case errUnsupported:
		return errno.ENODEV
	case errNoDevice:
		return errno.ENODEV
	default:
		return errno.EIO
	}
}
