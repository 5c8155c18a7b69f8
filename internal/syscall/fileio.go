package syscall

import "github.com/xwings/elinOS/internal/errno"

// Linux syscall numbers this range covers (RV64 numbering): openat, close,
// read, write, getdents64. Everything else in range is accepted-but-
// unimplemented and reported as ENOSYS rather than silently routed to the
// wrong handler.
const (
	sysGetdents64 = 61
	sysRead       = 63
	sysWrite      = 64
	sysClose      = 57
	sysOpenat     = 56
)

func dispatchFileIO(num Number, args Args) int64 {
	if !requireOps() {
		return errno.ENODEV
	}
	switch num {
	case sysOpenat:
		return sysOpenAt(args)
	case sysClose:
		return sysCloseFD(args)
	case sysRead:
		return sysReadFD(args)
	case sysWrite:
		return sysWriteFD(args)
	case sysGetdents64:
		return sysGetdentsFD(args)
	default:
		return errno.ENOSYS
	}
}

func sysOpenAt(args Args) int64 {
	dirfd, pathAddr, flags, mode := int64(args[0]), args[1], args[2], args[3]
	if !userPtrValid(pathAddr) {
		return errno.EFAULT
	}
	raw, err := Ops.ReadUserBytes(pathAddr, maxPathLen)
	if err != nil {
		return errno.EFAULT
	}
	path := cStringFrom(raw)
	if len(path) == 0 {
		return errno.EINVAL
	}
	fd, err := Ops.OpenAt(dirfd, path, flags, mode)
	if err != nil {
		return errno.ENOENT
	}
	return fd
}

func sysCloseFD(args Args) int64 {
	if err := Ops.Close(int64(args[0])); err != nil {
		return errno.EINVAL
	}
	return 0
}

func sysReadFD(args Args) int64 {
	fd, bufAddr, count := int64(args[0]), args[1], args[2]
	if !userPtrValid(bufAddr) || count == 0 {
		return errno.EFAULT
	}
	if count > maxIOSize {
		count = maxIOSize
	}
	buf := make([]byte, count)
	n, err := Ops.Read(fd, buf)
	if err != nil {
		return errno.EIO
	}
	if err := Ops.WriteUserBytes(bufAddr, buf[:n]); err != nil {
		return errno.EFAULT
	}
	return int64(n)
}

func sysWriteFD(args Args) int64 {
	fd, bufAddr, count := int64(args[0]), args[1], args[2]
	if !userPtrValid(bufAddr) || count == 0 {
		return errno.EFAULT
	}
	if count > maxIOSize {
		count = maxIOSize
	}
	buf, err := Ops.ReadUserBytes(bufAddr, count)
	if err != nil {
		return errno.EFAULT
	}
	n, err := Ops.Write(fd, buf)
	if err != nil {
		return errno.EIO
	}
	return int64(n)
}

func sysGetdentsFD(args Args) int64 {
	fd, bufAddr, count := int64(args[0]), args[1], args[2]
	if !userPtrValid(bufAddr) || count == 0 {
		return errno.EFAULT
	}
	if count > maxIOSize {
		count = maxIOSize
	}
	buf := make([]byte, count)
	n, err := Ops.Getdents64(fd, buf)
	if err != nil {
		return errno.EIO
	}
	if err := Ops.WriteUserBytes(bufAddr, buf[:n]); err != nil {
		return errno.EFAULT
	}
	return int64(n)
}

func cStringFrom(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
