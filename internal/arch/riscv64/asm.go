// Package riscv64 provides the low-level primitives the rest of the kernel
// is built on: MMIO accessors, memory fences, CSR access, and the SBI ecall
// trampoline. Everything that must be a single uninterruptible instruction
// sequence lives in asm_riscv64.s; this file declares the Go-visible
// signatures and the handful of helpers that are safe to express in Go.

//go:build riscv64

package riscv64

import "unsafe"

// SbiCall invokes the SBI firmware via ecall with EID in a7, FID in a6, and
// up to three arguments in a0-a2. It returns the firmware's (error, value)
// pair exactly as placed in a0/a1 on return, matching the standard SBI
// calling convention.
//
//go:noescape
func SbiCall(eid, fid, arg0, arg1, arg2 uintptr) (errorCode, value uintptr)

// Wfi executes the wait-for-interrupt instruction. Used by the fatal-error
// halt loop and by the idle path when there is no work.
//
//go:noescape
func Wfi()

// FenceRW issues a full read/write memory fence. Required at the two
// virtqueue publication points: after writing descriptors and before
// publishing available.idx, and before reading used.idx, so the device
// never observes a partially written descriptor chain.
//
//go:noescape
func FenceRW()

// ReadScause, ReadSepc, ReadStval and ReadSstatus read the corresponding
// supervisor CSRs. WriteSepc, WriteSstatus and WriteStvec write them. These
// back the trap frame save/restore discipline in internal/trap.
//
//go:noescape
func ReadScause() uint64

//go:noescape
func ReadSepc() uint64

//go:noescape
func ReadStval() uint64

//go:noescape
func ReadSstatus() uint64

//go:noescape
func WriteSepc(v uint64)

//go:noescape
func WriteSstatus(v uint64)

//go:noescape
func WriteStvec(v uint64)

// MmioRead8/16/32/64 and MmioWrite8/16/32/64 perform a single volatile-width
// access at addr. They never get reordered or coalesced by the compiler
// because they go through assembly, which is required for correctness
// against device registers: a plain Go load/store at this address could be
// split, merged, or reordered by the compiler in ways a real register
// never tolerates.
//
//go:noescape
func MmioRead8(addr uintptr) uint8

//go:noescape
func MmioRead16(addr uintptr) uint16

//go:noescape
func MmioRead32(addr uintptr) uint32

//go:noescape
func MmioRead64(addr uintptr) uint64

//go:noescape
func MmioWrite8(addr uintptr, v uint8)

//go:noescape
func MmioWrite16(addr uintptr, v uint16)

//go:noescape
func MmioWrite32(addr uintptr, v uint32)

//go:noescape
func MmioWrite64(addr uintptr, v uint64)

// PageSize is the RV64 base page size used throughout the memory subsystem.
const PageSize = 4096

// AlignUpPage rounds size up to the next page boundary.
func AlignUpPage(size uintptr) uintptr {
	return (size + PageSize - 1) &^ (PageSize - 1)
}

// PtrToUint and Uint64ToPtr convert between unsafe.Pointer and the integer
// addresses the memory and device code passes around. Kept in one place so
// every cast goes through the same, auditable choke point.
func PtrToUint(p unsafe.Pointer) uintptr {
	return uintptr(p)
}

func UintToPtr(addr uintptr) unsafe.Pointer {
	return unsafe.Pointer(addr) //nolint:govet // identity-mapped physical memory
}
