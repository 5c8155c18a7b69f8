// Package trap implements the supervisor trap vector and its synchronous/
// asynchronous cause dispatch (C7): it owns the single per-hart TrapFrame,
// installs the trap vector into stvec, and routes ecalls from U-mode into
// internal/syscall while turning every other synchronous exception into a
// process termination and every interrupt into a no-op acknowledgment.
package trap

import (
	"github.com/xwings/elinOS/internal/arch/riscv64"
	"github.com/xwings/elinOS/internal/klog"
	"github.com/xwings/elinOS/internal/syscall"
)

// Frame is the fixed-size, statically-allocated trap frame the assembly
// vector saves the register file into before calling handle. It is a plain
// record with no heap allocation anywhere in the trap path, and since only
// a single hart is in play, one package-level instance suffices instead of
// a per-hart array.
//
// X holds integer registers x0..x31 in RISC-V register-number order; x0 is
// always zero and is saved/restored only for layout simplicity.
type Frame struct {
	X       [32]uint64
	Sstatus uint64
	Sepc    uint64
	Stval   uint64
	Scause  uint64
}

var savedFrame Frame

// Cause values from original_source/src/trap.rs's TrapCause: the high bit
// of scause marks an interrupt, the low bits are the exception/interrupt
// code.
const (
	causeInterruptBit = uint64(1) << 63

	excInstructionAddrMisaligned = 0
	excIllegalInstruction        = 2
	excBreakpoint                = 3
	excLoadAddrMisaligned        = 4
	excLoadAccessFault           = 5
	excStoreAddrMisaligned       = 6
	excStoreAccessFault          = 7
	excEcallFromU                = 8
	excEcallFromS                = 9
	excInstructionPageFault      = 12
	excLoadPageFault             = 13
	excStorePageFault            = 15
)

// CauseName renders a synchronous exception code for diagnostics.
func CauseName(code uint64) string {
	switch code {
	case excInstructionAddrMisaligned:
		return "instruction address misaligned"
	case excIllegalInstruction:
		return "illegal instruction"
	case excBreakpoint:
		return "breakpoint"
	case excLoadAddrMisaligned:
		return "load address misaligned"
	case excLoadAccessFault:
		return "load access fault"
	case excStoreAddrMisaligned:
		return "store address misaligned"
	case excStoreAccessFault:
		return "store access fault"
	case excEcallFromU:
		return "ecall from U-mode"
	case excEcallFromS:
		return "ecall from S-mode"
	case excInstructionPageFault:
		return "instruction page fault"
	case excLoadPageFault:
		return "load page fault"
	case excStorePageFault:
		return "store page fault"
	default:
		return "unknown exception"
	}
}

// ExceptionHandler is invoked for every synchronous exception other than a
// U-mode ecall. It receives the trap frame and the raw scause value and is
// expected to terminate the active process with an "exception" reason. The
// kernel package installs the real handler at boot; the default just logs
// and halts, since there is no process yet before that point.
var ExceptionHandler = func(f *Frame, scause uint64) {
	klog.Fatal("trap: unhandled synchronous exception (%s) sepc=%#x stval=%#x", CauseName(scause), f.Sepc, f.Stval)
}

// TrapVector is the raw assembly entry point installed into stvec. It is
// never called from Go.
func TrapVector()

// trapVectorAddr returns TrapVector's code address. A Go func value isn't
// itself a code pointer (it may be a closure descriptor), so the assembly
// side hands back the address of the ·TrapVector(SB) symbol directly
// instead of Init() trying to unwrap a func value.
func trapVectorAddr() uint64

// Init installs TrapVector as the supervisor trap handler. Must be called
// exactly once, after the UART and kernel logger are up, since a trap
// arriving before this point is unrecoverable.
func Init() {
	riscv64.WriteStvec(trapVectorAddr())
}

// handle is called by the assembly vector with the register file, sepc,
// sstatus, stval and scause already captured in savedFrame. It classifies the
// cause and never returns to the caller by unwinding Go's stack — it
// returns normally, and the assembly vector does the sret.
//
//go:nosplit
func handle() {
	f := &savedFrame
	scause := f.Scause

	if scause&causeInterruptBit != 0 {
		// Timer/external interrupt: acknowledge only, there is no scheduler
		// here to do anything else with it.
		return
	}

	if scause == excEcallFromU {
		f.Sepc += 4
		num := f.X[17]  // a7
		args := [6]uint64{f.X[10], f.X[11], f.X[12], f.X[13], f.X[14], f.X[15]}
		ret := syscall.Dispatch(num, args)
		f.X[10] = uint64(ret)
		return
	}

	ExceptionHandler(f, scause)
}
