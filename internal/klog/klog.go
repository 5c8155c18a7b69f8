// Package klog is the kernel's diagnostic logger. It generalizes
// LeftHandCold-hybridAllocator/hybrid/logger.go's pattern — a LogLevel enum
// gating package-level Debug/Info/Error/Fatal helpers backed by
// *log.Logger — to a freestanding target: the io.Writer passed to log.New
// is the UART console (internal/console) instead of os.Stdout/os.Stderr,
// since neither exists here.
package klog

import (
	"fmt"
	"io"
	"log"

	"github.com/xwings/elinOS/internal/arch/riscv64"
)

// Level mirrors hybrid/logger.go's LogLevel: higher values enable more
// output.
type Level int

const (
	LevelNone Level = iota
	LevelFatal
	LevelError
	LevelInfo
	LevelDebug
)

var current = LevelInfo

var logger *log.Logger

// Init wires the logger to w (normally &console.Console). Call once during
// early boot, before any other package logs.
func Init(w io.Writer) {
	logger = log.New(w, "", 0)
}

// SetLevel changes the minimum level that is emitted.
func SetLevel(l Level) {
	current = l
}

func output(prefix string, format string, v ...any) {
	if logger == nil {
		return
	}
	logger.Output(2, prefix+fmt.Sprintf(format, v...))
}

// Debug logs at LevelDebug.
func Debug(format string, v ...any) {
	if current >= LevelDebug {
		output("[DEBUG] ", format, v...)
	}
}

// Info logs at LevelInfo.
func Info(format string, v ...any) {
	if current >= LevelInfo {
		output("[INFO] ", format, v...)
	}
}

// Error logs at LevelError.
func Error(format string, v ...any) {
	if current >= LevelError {
		output("[ERROR] ", format, v...)
	}
}

// Fatal logs unconditionally and then parks the hart in WFI forever. This
// is the only path a kernel-invariant violation (buddy/slab corruption, an
// unhandled synchronous exception) is allowed to take: there is no
// supervisor above this kernel to recover into, so it never panics the Go
// runtime, it drops into a diagnostic halt instead.
func Fatal(format string, v ...any) {
	output("[FATAL] ", format, v...)
	for {
		riscv64.Wfi()
	}
}
