package mm

import (
	"runtime"
	"testing"
	"unsafe"
)

func testAllocator(t *testing.T, pages int, mode Mode) (*Allocator, func()) {
	t.Helper()
	length := uint64(pages * PageSize)
	buf := make([]byte, 2*int(length))
	raw := uintptr(unsafe.Pointer(&buf[0]))
	aligned := (raw + uintptr(length) - 1) &^ (uintptr(length) - 1)
	b := NewBuddy(uint64(aligned), length)
	a := NewAllocator(b, NewSlab(b), mode)
	return a, func() { runtime.KeepAlive(buf) }
}

func TestAllocatorSimpleRoutesToBuddy(t *testing.T) {
	a, keep := testAllocator(t, 4, Simple)
	defer keep()

	addr, err := a.Alloc(16, 8)
	if err != nil {
		t.Fatalf("alloc: %v", err)
	}
	if addr%PageSize != 0 {
		t.Errorf("Simple mode should hand out page-aligned blocks, got %#x", addr)
	}
	if err := a.Free(addr, 16); err != nil {
		t.Fatalf("free: %v", err)
	}
}

func TestAllocatorTwoTierSmallUsesSlab(t *testing.T) {
	a, keep := testAllocator(t, 4, TwoTier)
	defer keep()

	first, err := a.Alloc(32, 8)
	if err != nil {
		t.Fatalf("alloc: %v", err)
	}
	second, err := a.Alloc(32, 8)
	if err != nil {
		t.Fatalf("alloc: %v", err)
	}
	// Two 32-byte slab allocations from the same page should land closer
	// together than a page-order buddy allocation ever would.
	diff := second - first
	if diff > 64 {
		t.Errorf("expected adjacent slab slots, got addresses %#x and %#x", first, second)
	}
	if err := a.Free(first, 32); err != nil {
		t.Fatalf("free first: %v", err)
	}
	if err := a.Free(second, 32); err != nil {
		t.Fatalf("free second: %v", err)
	}
}

func TestAllocatorTwoTierLargeUsesBuddy(t *testing.T) {
	a, keep := testAllocator(t, 8, TwoTier)
	defer keep()

	addr, err := a.Alloc(8192, 8)
	if err != nil {
		t.Fatalf("alloc: %v", err)
	}
	if addr%PageSize != 0 {
		t.Errorf("large allocation should be page-aligned (buddy-backed), got %#x", addr)
	}
	if err := a.Free(addr, 8192); err != nil {
		t.Fatalf("free: %v", err)
	}
}

func TestAllocatorHybridFallsBackOnSlabOOM(t *testing.T) {
	// A single page is all the buddy tier has. Once the slab tier has taken
	// it, Hybrid's fallback to a direct buddy allocation has nothing left to
	// give either, so a request that needs a new page must end in a clean
	// ErrOutOfMemory and leave the earlier allocation intact.
	a, keep := testAllocator(t, 1, Hybrid)
	defer keep()

	first, err := a.Alloc(16, 8)
	if err != nil {
		t.Fatalf("first alloc: %v", err)
	}
	// The single backing page is now owned by the 16-byte slab class.
	// A second small request for a different class needs its own page,
	// which the buddy tier cannot supply, so Hybrid must still succeed by
	// whatever means are available or fail cleanly.
	_, err = a.Alloc(32, 8)
	if err != nil && err != ErrOutOfMemory {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := a.Free(first, 16); err != nil {
		t.Fatalf("free: %v", err)
	}
}

func TestAllocatorInvalidArgs(t *testing.T) {
	a, keep := testAllocator(t, 1, Simple)
	defer keep()

	if _, err := a.Alloc(0, 8); err != ErrInvalidSize {
		t.Errorf("size 0: got %v, want ErrInvalidSize", err)
	}
	if _, err := a.Alloc(16, 3); err != ErrInvalidAlign {
		t.Errorf("non-power-of-two align: got %v, want ErrInvalidAlign", err)
	}
}

func TestTransactionRollback(t *testing.T) {
	a, keep := testAllocator(t, 4, Simple)
	defer keep()

	before := a.Stats()

	tx, err := a.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, err := tx.Alloc(16, 8); err != nil {
		t.Fatalf("tx alloc: %v", err)
	}
	if _, err := tx.Alloc(32, 8); err != nil {
		t.Fatalf("tx alloc: %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("rollback: %v", err)
	}

	after := a.Stats()
	if after.Frees-before.Frees != 2 {
		t.Fatalf("expected rollback to free 2 allocations, freed %d", after.Frees-before.Frees)
	}
}

func TestTransactionCommitKeepsAllocations(t *testing.T) {
	a, keep := testAllocator(t, 4, Simple)
	defer keep()

	tx, err := a.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	addr, err := tx.Alloc(16, 8)
	if err != nil {
		t.Fatalf("tx alloc: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := a.Free(addr, 16); err != nil {
		t.Fatalf("expected committed allocation to still be freeable: %v", err)
	}
}

func TestTransactionNestedRejected(t *testing.T) {
	a, keep := testAllocator(t, 4, Simple)
	defer keep()

	tx, err := a.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, err := a.Begin(); err != ErrTransactionOpen {
		t.Fatalf("second Begin: got %v, want ErrTransactionOpen", err)
	}
	tx.Rollback()

	if _, err := a.Begin(); err != nil {
		t.Fatalf("Begin after rollback should succeed: %v", err)
	}
}

func TestStatsHealth(t *testing.T) {
	s := Stats{Allocations: 95, Failures: 5}
	if s.IsHealthy() {
		t.Error("5% failure rate should be at the unhealthy boundary")
	}
	s2 := Stats{Allocations: 96, Failures: 4}
	if !s2.IsHealthy() {
		t.Error("4% failure rate should be healthy")
	}
}
