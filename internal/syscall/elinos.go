package syscall

import "github.com/xwings/elinOS/internal/errno"

// elinOS-specific syscalls (900-999): not part of any Linux ABI, used by
// the shell surface to drive version/shutdown/reboot and the ELF loader's
// simulated-exec flow.
const (
	sysVersion  = 900
	sysShutdown = 901
	sysReboot   = 902
	sysLoadELF  = 903
	sysELFInfo  = 904
	sysExecELF  = 905
	sysDebug    = 906
)

func dispatchElinOS(num Number, args Args) int64 {
	if !requireOps() {
		return errno.ENODEV
	}
	switch num {
	case sysVersion:
		return writeStringOut(args[0], args[1], Ops.Version())
	case sysShutdown:
		Ops.Shutdown()
		return 0 // unreachable: Shutdown never returns
	case sysReboot:
		Ops.Reboot()
		return 0 // unreachable: Reboot never returns
	case sysLoadELF:
		return loadELF(args)
	case sysELFInfo:
		return elfInfo(args)
	case sysExecELF:
		return execELF(args)
	case sysDebug:
		return debugPrint(args)
	default:
		return errno.ENOSYS
	}
}

func pathArg(addr uint64) (string, bool) {
	if !userPtrValid(addr) {
		return "", false
	}
	raw, err := Ops.ReadUserBytes(addr, maxPathLen)
	if err != nil {
		return "", false
	}
	return cStringFrom(raw), true
}

func loadELF(args Args) int64 {
	path, ok := pathArg(args[0])
	if !ok || path == "" {
		return errno.EFAULT
	}
	entry, err := Ops.LoadELF(path)
	if err != nil {
		return errno.ENOENT
	}
	return int64(entry)
}

func elfInfo(args Args) int64 {
	path, ok := pathArg(args[0])
	if !ok || path == "" {
		return errno.EFAULT
	}
	info, err := Ops.ELFInfo(path)
	if err != nil {
		return errno.ENOENT
	}
	return writeStringOut(args[1], args[2], info)
}

func execELF(args Args) int64 {
	path, ok := pathArg(args[0])
	if !ok || path == "" {
		return errno.EFAULT
	}
	entry, err := Ops.ExecELF(path)
	if err != nil {
		return errno.ENOENT
	}
	return int64(entry)
}

func debugPrint(args Args) int64 {
	msg, ok := pathArg(args[0])
	if !ok {
		return errno.EFAULT
	}
	Ops.DebugPrint(msg)
	return 0
}

// writeStringOut copies s into the user buffer at addr (capacity cap),
// truncating rather than faulting if the buffer is too small, and returns
// the number of bytes written.
func writeStringOut(addr, capacity uint64, s string) int64 {
	if !userPtrValid(addr) || capacity == 0 {
		return errno.EFAULT
	}
	if uint64(len(s)) > capacity {
		s = s[:capacity]
	}
	if err := Ops.WriteUserBytes(addr, []byte(s)); err != nil {
		return errno.EFAULT
	}
	return int64(len(s))
}
