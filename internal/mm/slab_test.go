package mm

import (
	"runtime"
	"testing"
	"unsafe"
)

func testBuddyFor(t *testing.T, pages int) (*Buddy, func()) {
	t.Helper()
	length := uint64(pages * PageSize)
	buf := make([]byte, 2*int(length))
	raw := uintptr(unsafe.Pointer(&buf[0]))
	aligned := (raw + uintptr(length) - 1) &^ (uintptr(length) - 1)
	return NewBuddy(uint64(aligned), length), func() { runtime.KeepAlive(buf) }
}

func TestClassFor(t *testing.T) {
	cases := map[uint32]uint32{
		1:    8,
		8:    8,
		9:    16,
		100:  128,
		4096: 4096,
	}
	for size, want := range cases {
		got, ok := ClassFor(size)
		if !ok || got != want {
			t.Errorf("ClassFor(%d) = %d, %v, want %d", size, got, ok, want)
		}
	}
	if _, ok := ClassFor(4097); ok {
		t.Error("ClassFor(4097) should report no class")
	}
}

func TestSlabAllocWithinRange(t *testing.T) {
	b, keep := testBuddyFor(t, 4)
	defer keep()
	s := NewSlab(b)

	addrs := make([]uint64, 0, 64)
	for i := 0; i < 64; i++ {
		addr, err := s.Alloc(32)
		if err != nil {
			t.Fatalf("alloc %d: %v", i, err)
		}
		addrs = append(addrs, addr)
	}
	seen := make(map[uint64]bool)
	for _, a := range addrs {
		if seen[a] {
			t.Fatalf("duplicate slot address %#x", a)
		}
		seen[a] = true
		if a%32 != 0 {
			t.Errorf("slot %#x not aligned to class size 32", a)
		}
	}
}

func TestSlabFreeAndReuse(t *testing.T) {
	b, keep := testBuddyFor(t, 1)
	defer keep()
	s := NewSlab(b)

	a, err := s.Alloc(16)
	if err != nil {
		t.Fatalf("alloc: %v", err)
	}
	if err := s.Free(a, 16); err != nil {
		t.Fatalf("free: %v", err)
	}
	a2, err := s.Alloc(16)
	if err != nil {
		t.Fatalf("alloc after free: %v", err)
	}
	if a2 != a {
		t.Fatalf("expected the freed slot to be reused, got %#x want %#x", a2, a)
	}
}

func TestSlabDoubleFree(t *testing.T) {
	b, keep := testBuddyFor(t, 1)
	defer keep()
	s := NewSlab(b)

	a, err := s.Alloc(64)
	if err != nil {
		t.Fatalf("alloc: %v", err)
	}
	if err := s.Free(a, 64); err != nil {
		t.Fatalf("first free: %v", err)
	}
	if err := s.Free(a, 64); err != ErrDoubleFree {
		t.Fatalf("second free: got %v, want ErrDoubleFree", err)
	}
}

func TestSlabFreeUnowned(t *testing.T) {
	b, keep := testBuddyFor(t, 1)
	defer keep()
	s := NewSlab(b)

	if err := s.Free(0xdeadbeef, 64); err != ErrNotFound {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestSlabFreeReturnsSecondEmptyPage(t *testing.T) {
	b, keep := testBuddyFor(t, 8)
	defer keep()
	s := NewSlab(b)

	// The 4096-byte class holds exactly one slot per page, so two
	// allocations force two distinct pages.
	a1, err := s.Alloc(4096)
	if err != nil {
		t.Fatalf("alloc 1: %v", err)
	}
	a2, err := s.Alloc(4096)
	if err != nil {
		t.Fatalf("alloc 2: %v", err)
	}

	if err := s.Free(a1, 4096); err != nil {
		t.Fatalf("free 1: %v", err)
	}
	_, freeAfterFirst := b.Stats()

	if err := s.Free(a2, 4096); err != nil {
		t.Fatalf("free 2: %v", err)
	}
	_, freeAfterSecond := b.Stats()

	if freeAfterSecond <= freeAfterFirst {
		t.Fatalf("expected the second empty page to be returned to the buddy allocator, free bytes %d -> %d", freeAfterFirst, freeAfterSecond)
	}

	// The class should still have one page in reserve, reusable without
	// growing again.
	a3, err := s.Alloc(4096)
	if err != nil {
		t.Fatalf("alloc after returning empty page: %v", err)
	}
	if a3 != a1 {
		t.Fatalf("expected the kept reserve page's slot to be reused, got %#x want %#x", a3, a1)
	}
}

func TestSlabGrowsWhenFull(t *testing.T) {
	b, keep := testBuddyFor(t, 8)
	defer keep()
	s := NewSlab(b)

	// A 4096-byte class page holds exactly one slot; allocating several
	// forces the class to grow across multiple pages.
	var addrs []uint64
	for i := 0; i < 3; i++ {
		a, err := s.Alloc(4096)
		if err != nil {
			t.Fatalf("alloc %d: %v", i, err)
		}
		addrs = append(addrs, a)
	}
	for i := range addrs {
		for j := range addrs {
			if i != j && addrs[i] == addrs[j] {
				t.Fatalf("two 4096-byte allocations share address %#x", addrs[i])
			}
		}
	}
}
