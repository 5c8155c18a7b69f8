package syscall

import "github.com/xwings/elinOS/internal/errno"

// Linux syscall numbers in the 214-239 Memory range this kernel
// implements: brk, mmap (anonymous only), munmap.
const (
	sysBrk    = 214
	sysMunmap = 215
	sysMmap   = 222
)

func dispatchMemory(num Number, args Args) int64 {
	if !requireOps() {
		return errno.ENODEV
	}
	switch num {
	case sysBrk:
		addr, err := Ops.Brk(args[0])
		if err != nil {
			return errno.ENOMEM
		}
		return int64(addr)
	case sysMmap:
		length, prot, flags := args[1], args[2], args[3]
		if length == 0 {
			return errno.EINVAL
		}
		addr, err := Ops.Mmap(length, prot, flags)
		if err != nil {
			return errno.ENOMEM
		}
		return int64(addr)
	case sysMunmap:
		addr, length := args[0], args[1]
		if addr == 0 || length == 0 {
			return errno.EINVAL
		}
		if err := Ops.Munmap(addr, length); err != nil {
			return errno.EINVAL
		}
		return 0
	default:
		return errno.ENOSYS
	}
}
