// Package kernel implements the single kernel-context object: the
// allocator, the mounted filesystem, the block device and the thin
// single-process state machine, all owned here instead of as
// package-level statics scattered across the components that need them.
// Boot wires this object into internal/syscall.Ops and internal/trap's
// ExceptionHandler, the two seams those packages expose precisely so they
// never need to import internal/kernel themselves.
package kernel

import (
	"github.com/xwings/elinOS/internal/block"
	"github.com/xwings/elinOS/internal/console"
	"github.com/xwings/elinOS/internal/fs/vfs"
	"github.com/xwings/elinOS/internal/klog"
	"github.com/xwings/elinOS/internal/memprobe"
	"github.com/xwings/elinOS/internal/mm"
	"github.com/xwings/elinOS/internal/sbi"
	"github.com/xwings/elinOS/internal/syscall"
	"github.com/xwings/elinOS/internal/trap"
	"github.com/xwings/elinOS/internal/virtio"
)

// Version is elinOS-Go's reported version string, surfaced by the
// elinOS-specific version syscall and the version/config shell commands
// (external collaborators).
const Version = "elinOS 0.1.0 (riscv64, Go port)"

// userHeapSize bounds the single process's brk-managed heap.
// There is no MMU in this kernel (a documented non-goal), so "user" memory
// is just a reserved slice of the same physical address space the kernel
// itself runs in.
const (
	userHeapSize  = 4 * 1024 * 1024
	maxELFSize    = 16 * 1024 * 1024
	maxOpenFileSz = 1 << 20
)

// Kernel is the kernel-context object: the allocator, the mounted
// filesystem, the block device, and the single process's state. One
// instance is constructed at boot and lives for the lifetime of the
// machine.
type Kernel struct {
	alloc *mm.Allocator
	block *block.Cache
	vfs   *vfs.VFS

	proc processState

	brkBase, brkLimit, brk uint64

	mmaps map[uint64]uint64 // addr -> length, for anonymous mmap/munmap

	files  map[int64]*openFile
	nextFD int64
}

// Boot runs the full boot sequence against the device tree pointer the
// entry assembly received in a1, and returns the constructed kernel-context
// object with itself already registered into internal/syscall.Ops and
// internal/trap.ExceptionHandler. It never returns an error: this runs
// before there is any process or shell to report a failure to, so every
// unrecoverable failure along the way is fatal via klog.Fatal's WFI halt.
func Boot(dtb uint64) *Kernel {
	console.Console.Init()
	klog.Init(&console.Console)
	klog.SetLevel(klog.LevelInfo)
	klog.Info("elinOS booting...")

	trap.Init()
	klog.Info("trap vector installed")

	regions := memprobe.Probe(dtb)
	buddy := buildBuddy(regions)
	alloc := mm.NewAllocator(buddy, mm.NewSlab(buddy), mm.Hybrid)
	klog.Info("memory: %d region(s) probed", len(regions))

	dev, err := virtio.Probe(alloc)
	if err != nil {
		klog.Fatal("kernel: no virtio-blk device found: %v", err)
	}
	cache, err := block.New(dev, alloc)
	if err != nil {
		klog.Fatal("kernel: block cache init failed: %v", err)
	}

	filesystem, err := vfs.Mount(cache)
	if err != nil {
		klog.Fatal("kernel: filesystem mount failed: %v", err)
	}
	klog.Info("filesystem: mounted %s", filesystem.Kind())

	heapBase, err := alloc.Alloc(userHeapSize, mm.PageSize)
	if err != nil {
		klog.Fatal("kernel: failed to reserve user heap: %v", err)
	}

	k := &Kernel{
		alloc:    alloc,
		block:    cache,
		vfs:      filesystem,
		brkBase:  heapBase,
		brk:      heapBase,
		brkLimit: heapBase + userHeapSize,
		mmaps:    make(map[uint64]uint64),
		files:    make(map[int64]*openFile),
		nextFD:   3, // 0-2 reserved for stdio, which this kernel does not wire to a fd
	}
	k.proc.transition(procRunning)

	syscall.Ops = k
	trap.ExceptionHandler = k.handleException

	klog.Info("elinOS ready")
	return k
}

// buildBuddy picks the first usable region memprobe found and hands it to
// the buddy allocator. A single Normal region after kernel carve-out is
// the common case on the boards this kernel targets, so the first usable
// region is always the right one in this version.
func buildBuddy(regions []mm.Region) *mm.Buddy {
	for _, r := range regions {
		if r.Usable {
			return mm.NewBuddy(r.Base, r.Length)
		}
	}
	klog.Fatal("kernel: memprobe returned no usable region")
	return nil
}

// handleException is installed as trap.ExceptionHandler. A synchronous
// exception other than a U-mode ecall terminates the active process; with
// only one process and no scheduler to switch away to, there is nothing
// left to resume, so the halt is the only sound outcome.
func (k *Kernel) handleException(f *trap.Frame, scause uint64) {
	k.proc.transition(procExited)
	k.proc.exitStatus = -1
	klog.Fatal("kernel: process terminated by exception (%s) sepc=%#x stval=%#x", trap.CauseName(scause), f.Sepc, f.Stval)
}

// Shutdown powers the machine off via SBI.
func (k *Kernel) Shutdown() { sbi.Shutdown() }

// Reboot performs a cold reboot via SBI.
func (k *Kernel) Reboot() { sbi.Reboot() }

// Version reports the build string the elinOS-specific version syscall
// surfaces.
func (k *Kernel) Version() string { return Version }

// DebugPrint is the backing implementation for the elinOS-specific debug
// syscall: it routes straight to the kernel logger at Debug level.
func (k *Kernel) DebugPrint(msg string) { klog.Debug("%s", msg) }
