// Package console implements the memory-mapped 16550-style UART elinOS uses
// for its one byte-oriented console. The register-block layout and the
// small, //go:nosplit-flavored accessor style follow the teacher's
// uart_qemu.go, adapted from the PL011 register set it targets to the
// 16550 set QEMU's virt machine exposes.
package console

import "github.com/xwings/elinOS/internal/arch/riscv64"

// Base is the fixed platform MMIO address of the UART on the QEMU virt
// machine, just below the VirtIO MMIO window in the platform's documented
// memory map.
const Base uintptr = 0x1000_0000

// 16550 register offsets (byte-addressed, DLAB=0 for RBR/THR/IER).
const (
	regRBR = 0x00 // receiver buffer (read)
	regTHR = 0x00 // transmitter holding (write)
	regIER = 0x01 // interrupt enable
	regLSR = 0x05 // line status
)

// Line Status Register bits.
const (
	lsrDataReady   = 1 << 0
	lsrThrEmpty    = 1 << 5
)

// UART is a handle to the console device. elinOS has exactly one; Console
// is the process-wide instance other packages use.
type UART struct {
	base uintptr
}

// Console is the single UART instance other packages share, rather than
// each constructing their own handle to the same hardware register block.
var Console = UART{base: Base}

// Init disables UART interrupts; elinOS drives the console by polling
// instead, since there is no interrupt controller wired up yet.
func (u *UART) Init() {
	riscv64.MmioWrite8(u.base+regIER, 0)
}

// PutByte writes one byte, spinning until the transmit holding register is
// empty.
func (u *UART) PutByte(b byte) {
	for riscv64.MmioRead8(u.base+regLSR)&lsrThrEmpty == 0 {
	}
	riscv64.MmioWrite8(u.base+regTHR, b)
}

// GetByte reads one byte if available without blocking.
func (u *UART) GetByte() (b byte, ok bool) {
	if riscv64.MmioRead8(u.base+regLSR)&lsrDataReady == 0 {
		return 0, false
	}
	return riscv64.MmioRead8(u.base + regRBR), true
}

// WriteString writes a UTF-8 string byte-for-byte.
func (u *UART) WriteString(s string) {
	for i := 0; i < len(s); i++ {
		u.PutByte(s[i])
	}
}

// Write implements io.Writer so standard-library consumers (internal/klog's
// log.Logger) can target the UART directly.
func (u *UART) Write(p []byte) (int, error) {
	for _, b := range p {
		u.PutByte(b)
	}
	return len(p), nil
}
