package syscall

import (
	"errors"
	"testing"

	"github.com/xwings/elinOS/internal/errno"
)

// fakeOps is an in-memory KernelOps good enough to exercise argument
// validation and range routing without any real filesystem, allocator or
// ELF loader behind it.
type fakeOps struct {
	mem       map[uint64][]byte
	nextAddr  uint64
	exitCode  int64
	exited    bool
	openPaths []string
}

func newFakeOps() *fakeOps {
	return &fakeOps{mem: make(map[uint64][]byte), nextAddr: 0x1000}
}

func (f *fakeOps) put(addr uint64, data []byte) {
	f.mem[addr] = append([]byte(nil), data...)
}

func (f *fakeOps) OpenAt(dirfd int64, path string, flags, mode uint64) (int64, error) {
	f.openPaths = append(f.openPaths, path)
	return 3, nil
}
func (f *fakeOps) Close(fd int64) error { return nil }
func (f *fakeOps) Read(fd int64, buf []byte) (int, error) {
	copy(buf, []byte("hello"))
	return 5, nil
}
func (f *fakeOps) Write(fd int64, buf []byte) (int, error) { return len(buf), nil }
func (f *fakeOps) Getdents64(fd int64, buf []byte) (int, error) { return 0, nil }
func (f *fakeOps) Exit(code int64)                              { f.exited = true; f.exitCode = code }
func (f *fakeOps) Pid() int64                                   { return 1 }
func (f *fakeOps) Ppid() int64                                  { return 0 }
func (f *fakeOps) Uid() int64                                   { return 0 }
func (f *fakeOps) Gid() int64                                   { return 0 }
func (f *fakeOps) Tid() int64                                   { return 1 }
func (f *fakeOps) Brk(addr uint64) (uint64, error)              { return addr, nil }
func (f *fakeOps) Mmap(length, prot, flags uint64) (uint64, error) {
	addr := f.nextAddr
	f.nextAddr += length
	return addr, nil
}
func (f *fakeOps) Munmap(addr, length uint64) error { return nil }
func (f *fakeOps) Version() string                  { return "elinOS-test" }
func (f *fakeOps) Shutdown()                        {}
func (f *fakeOps) Reboot()                          {}
func (f *fakeOps) LoadELF(path string) (uint64, error) {
	if path == "" {
		return 0, errors.New("not found")
	}
	return 0x1000, nil
}
func (f *fakeOps) ELFInfo(path string) (string, error) { return "elf info", nil }
func (f *fakeOps) ExecELF(path string) (uint64, error) { return 0x1000, nil }
func (f *fakeOps) DebugPrint(msg string)               {}
func (f *fakeOps) ReadUserBytes(addr, n uint64) ([]byte, error) {
	b, ok := f.mem[addr]
	if !ok {
		return make([]byte, n), nil
	}
	if uint64(len(b)) < n {
		b = append(b, make([]byte, n-uint64(len(b)))...)
	}
	return b[:n], nil
}
func (f *fakeOps) WriteUserBytes(addr uint64, data []byte) error {
	f.put(addr, data)
	return nil
}

func withOps(t *testing.T) *fakeOps {
	t.Helper()
	old := Ops
	f := newFakeOps()
	Ops = f
	t.Cleanup(func() { Ops = old })
	return f
}

func TestDispatchUnknownNumber(t *testing.T) {
	withOps(t)
	if got := Dispatch(999999, Args{}); got >= 0 {
		t.Fatalf("Dispatch(999999) = %d, want negative", got)
	}
	if got := Dispatch(999999, Args{}); got != errno.ENOSYS {
		t.Fatalf("Dispatch(999999) = %d, want %d", got, errno.ENOSYS)
	}
}

func TestDispatchNoOpsInstalled(t *testing.T) {
	old := Ops
	Ops = nil
	defer func() { Ops = old }()
	if got := Dispatch(sysGetpid, Args{}); got != errno.ENODEV {
		t.Fatalf("got %d, want ENODEV", got)
	}
}

func TestDispatchOpenAtAndRead(t *testing.T) {
	f := withOps(t)
	f.put(0x2000, []byte("hello.txt\x00"))

	ret := Dispatch(sysOpenat, Args{0, 0x2000, 0, 0})
	if ret < 0 {
		t.Fatalf("openat failed: %d", ret)
	}
	if len(f.openPaths) != 1 || f.openPaths[0] != "hello.txt" {
		t.Fatalf("openPaths = %v", f.openPaths)
	}

	ret = Dispatch(sysRead, Args{uint64(ret), 0x3000, 5})
	if ret != 5 {
		t.Fatalf("read returned %d, want 5", ret)
	}
	if string(f.mem[0x3000]) != "hello" {
		t.Fatalf("read output = %q", f.mem[0x3000])
	}
}

func TestDispatchReadNullBuffer(t *testing.T) {
	withOps(t)
	if got := Dispatch(sysRead, Args{3, 0, 10}); got != errno.EFAULT {
		t.Fatalf("got %d, want EFAULT", got)
	}
}

func TestDispatchExit(t *testing.T) {
	f := withOps(t)
	ret := Dispatch(sysExit, Args{7})
	if ret != 0 || !f.exited || f.exitCode != 7 {
		t.Fatalf("exit not propagated: ret=%d exited=%v code=%d", ret, f.exited, f.exitCode)
	}
}

func TestDispatchGetpid(t *testing.T) {
	withOps(t)
	if got := Dispatch(sysGetpid, Args{}); got != 1 {
		t.Fatalf("getpid = %d, want 1", got)
	}
}

func TestDispatchCloneStubbed(t *testing.T) {
	withOps(t)
	if got := Dispatch(sysClone, Args{}); got != errno.ENOSYS {
		t.Fatalf("clone = %d, want ENOSYS", got)
	}
}

func TestDispatchMmapMunmap(t *testing.T) {
	withOps(t)
	addr := Dispatch(sysMmap, Args{0, 4096, 3, 0})
	if addr < 0 {
		t.Fatalf("mmap failed: %d", addr)
	}
	if got := Dispatch(sysMunmap, Args{uint64(addr), 4096}); got != 0 {
		t.Fatalf("munmap = %d, want 0", got)
	}
	if got := Dispatch(sysMunmap, Args{0, 0}); got != errno.EINVAL {
		t.Fatalf("munmap(0,0) = %d, want EINVAL", got)
	}
}

func TestDispatchVersion(t *testing.T) {
	withOps(t)
	n := Dispatch(sysVersion, Args{0x4000, 64})
	if n <= 0 {
		t.Fatalf("version returned %d", n)
	}
}

func TestDispatchUnknownRangeIsNegative(t *testing.T) {
	withOps(t)
	if got := Dispatch(1, Args{}); got != errno.ENOSYS {
		t.Fatalf("syscall 1 (outside every range) = %d, want ENOSYS", got)
	}
}
