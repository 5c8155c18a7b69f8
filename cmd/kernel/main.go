// Command kernel is elinOS-Go's entry point: the freestanding RV64GC binary
// QEMU's `virt` machine loads at 0x8040_0000 and OpenSBI jumps to in
// supervisor mode with interrupts disabled.
// boot_riscv64.s sets up the initial stack, stashes the two boot registers
// SBI handed it (hart id, device tree pointer) and jumps into the ordinary
// Go runtime entry; by the time main runs here, those registers have long
// since been clobbered, so they're read back out of the globals the
// assembly stored them in.
package main

import (
	"github.com/xwings/elinOS/internal/arch/riscv64"
	"github.com/xwings/elinOS/internal/kernel"
)

// bootHartID and bootDTB are populated by boot_riscv64.s before the Go
// runtime's own startup path runs. bootStack is never read from Go; it
// exists so the assembly's GLOBL has a matching Go-visible symbol, the
// same pairing trap.go's savedFrame gives trap_riscv64.s.
var (
	bootHartID uint64
	bootDTB    uint64
	bootStack  [16384]byte
)

func main() {
	_ = bootHartID // single-hart kernel; kept for the entry contract's shape

	k := kernel.Boot(bootDTB)
	idle(k)
}

// idle parks the hart once boot completes. The shell surface
// (help/ls/cat/...) is an external collaborator this core is driven by,
// not something this repository implements; absent that driver, the
// kernel's own idle path is a WFI loop with no work to do.
func idle(k *kernel.Kernel) {
	_ = k
	for {
		riscv64.Wfi()
	}
}
