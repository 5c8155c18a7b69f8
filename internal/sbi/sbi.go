// Package sbi implements the handful of Supervisor Binary Interface calls
// elinOS depends on: legacy console I/O and system reset. Grounded on
// original_source/src/sbi.rs, adapted from inline RISC-V asm! blocks to the
// riscv64.SbiCall trampoline (internal/arch/riscv64).
package sbi

import "github.com/xwings/elinOS/internal/arch/riscv64"

// Extension and function IDs. The legacy console calls use EID 0 implicitly
// encoded by convention in the original firmware — OpenSBI accepts the
// legacy extension IDs directly as the EID.
const (
	extConsolePutchar = 0x01
	extConsoleGetchar = 0x02
	extLegacyShutdown = 0x08
	extSystemReset    = 0x53525354 // "SRST"
)

// System reset types and reasons, per the SBI System Reset extension.
const (
	resetTypeShutdown    = 0
	resetTypeColdReboot  = 1
	resetTypeWarmReboot  = 2
	resetReasonNone      = 0
)

// PutChar writes one byte to the SBI console. It never blocks: on real
// OpenSBI the legacy putchar call always completes.
func PutChar(ch byte) {
	riscv64.SbiCall(extConsolePutchar, 0, uintptr(ch), 0, 0)
}

// GetChar reads one byte from the SBI console. ok is false when no byte is
// currently available (OpenSBI returns -1 in a0 in that case).
func GetChar() (b byte, ok bool) {
	errorCode, value := riscv64.SbiCall(extConsoleGetchar, 0, 0, 0, 0)
	if int(errorCode) < 0 {
		return 0, false
	}
	return byte(errorCode), true
}

// Shutdown powers the machine off via SBI. It never returns. The modern
// System Reset extension is tried first; if the firmware doesn't implement
// it (pre-0.3 SBI spec), the legacy shutdown EID is used instead — the
// fallback chain from original_source/src/sbi.rs, carried forward since
// real firmware in the wild still only implements the legacy extension.
func Shutdown() {
	errorCode, _ := riscv64.SbiCall(extSystemReset, 0, resetTypeShutdown, resetReasonNone, 0)
	if int(errorCode) != 0 {
		riscv64.SbiCall(extLegacyShutdown, 0, 0, 0, 0)
	}
	for {
		riscv64.Wfi()
	}
}

// Reboot performs a cold reboot via SBI. It never returns on success; if
// the firmware rejects the request the hart is parked in WFI rather than
// falling through to undefined behavior.
func Reboot() {
	riscv64.SbiCall(extSystemReset, 0, resetTypeColdReboot, resetReasonNone, 0)
	for {
		riscv64.Wfi()
	}
}
