package syscall

import "github.com/xwings/elinOS/internal/errno"

// Linux syscall numbers in the 93-178 / 220-221 range this kernel
// implements. clone (220) and execve (221) are accepted and immediately
// reported as stubbed: there is only ever one process, so neither one has
// anything real to do.
const (
	sysExit    = 93
	sysGetpid  = 172
	sysGetppid = 173
	sysGetuid  = 174
	sysGettid  = 178
	sysGetgid  = 176
	sysClone   = 220
	sysExecve  = 221
)

func dispatchProcess(num Number, args Args) int64 {
	if !requireOps() {
		return errno.ENODEV
	}
	switch num {
	case sysExit:
		Ops.Exit(int64(args[0]))
		return 0
	case sysGetpid:
		return Ops.Pid()
	case sysGetppid:
		return Ops.Ppid()
	case sysGetuid, sysGeteuidAlias:
		return Ops.Uid()
	case sysGetgid:
		return Ops.Gid()
	case sysGettid:
		return Ops.Tid()
	case sysClone, sysExecve:
		return errno.ENOSYS
	default:
		return errno.ENOSYS
	}
}

// sysGeteuidAlias exists because geteuid (175) shares elinOS's uid model
// with getuid in this single-user version; kept distinct from sysGetuid so
// a future multi-user revision has a seam to split them at.
const sysGeteuidAlias = 175
