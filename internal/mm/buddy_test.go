package mm

import (
	"runtime"
	"testing"
	"unsafe"
)

// testRegion backs a Buddy with real, writable Go memory so the intrusive
// free-list headers the allocator writes into its blocks land somewhere
// valid. The kernel itself backs a Buddy with physical RAM; this is the
// hosted-test equivalent.
// pages must be a power of two: the region is aligned to its own length so
// the decomposition in NewBuddy always yields exactly one top-level block,
// keeping these tests' buddy-pairing reasoning unambiguous.
func testRegion(t *testing.T, pages int) (base, length uint64, keepAlive func()) {
	t.Helper()
	length = uint64(pages * PageSize)
	buf := make([]byte, 2*int(length))
	raw := uintptr(unsafe.Pointer(&buf[0]))
	aligned := (raw + uintptr(length) - 1) &^ (uintptr(length) - 1)
	base = uint64(aligned)
	return base, length, func() { runtime.KeepAlive(buf) }
}

func TestBuddyInitialFreeBlock(t *testing.T) {
	base, length, keep := testRegion(t, 1<<10) // 1024 pages = 4 MiB
	defer keep()

	b := NewBuddy(base, length)
	total, free := b.Stats()
	if total != length {
		t.Fatalf("total = %d, want %d", total, length)
	}
	if free != total {
		t.Fatalf("free = %d, want %d (nothing allocated yet)", free, total)
	}
}

func TestBuddyAllocAlignment(t *testing.T) {
	base, length, keep := testRegion(t, 256)
	defer keep()
	b := NewBuddy(base, length)

	for order := 0; order <= 4; order++ {
		addr, ok := b.Alloc(order)
		if !ok {
			t.Fatalf("order %d: alloc failed", order)
		}
		size := orderSize(order)
		if addr%size != 0 {
			t.Errorf("order %d: addr %#x not aligned to %#x", order, addr, size)
		}
		b.Free(addr, order)
	}
}

func TestBuddyNoOverlap(t *testing.T) {
	base, length, keep := testRegion(t, 64)
	defer keep()
	b := NewBuddy(base, length)

	type span struct{ start, end uint64 }
	var spans []span
	for {
		addr, ok := b.Alloc(0)
		if !ok {
			break
		}
		spans = append(spans, span{addr, addr + PageSize})
	}
	if len(spans) == 0 {
		t.Fatal("expected at least one page-order allocation to succeed")
	}
	for i := range spans {
		for j := range spans {
			if i == j {
				continue
			}
			if spans[i].start < spans[j].end && spans[j].start < spans[i].end {
				t.Fatalf("overlapping allocations: %#x and %#x", spans[i].start, spans[j].start)
			}
		}
	}
}

func TestBuddyCoalesceOnFree(t *testing.T) {
	base, length, keep := testRegion(t, 2)
	defer keep()
	b := NewBuddy(base, length)

	_, totalFreeBefore := b.Stats()

	left, ok := b.Alloc(0)
	if !ok {
		t.Fatal("alloc left failed")
	}
	right, ok := b.Alloc(0)
	if !ok {
		t.Fatal("alloc right failed")
	}
	if left == right {
		t.Fatal("two allocations returned the same address")
	}

	b.Free(left, 0)
	b.Free(right, 0)

	_, totalFreeAfter := b.Stats()
	if totalFreeAfter != totalFreeBefore {
		t.Fatalf("after freeing both buddies, free bytes = %d, want %d (fully coalesced)", totalFreeAfter, totalFreeBefore)
	}

	// Having coalesced back to the parent order, a same-sized allocation
	// must succeed again at order 0 by splitting the parent block.
	if _, ok := b.Alloc(0); !ok {
		t.Fatal("expected allocation after coalesce to succeed")
	}
}

func TestBuddyOOMBoundary(t *testing.T) {
	base, length, keep := testRegion(t, 1)
	defer keep()
	b := NewBuddy(base, length)

	if _, ok := b.Alloc(0); !ok {
		t.Fatal("expected the single page to be allocatable")
	}
	if _, ok := b.Alloc(0); ok {
		t.Fatal("expected OOM once the single page is exhausted")
	}
}

func TestSizeToOrder(t *testing.T) {
	cases := map[uint64]int{
		1:     0,
		4096:  0,
		4097:  1,
		8192:  1,
		16384: 2,
	}
	for size, want := range cases {
		if got := SizeToOrder(size); got != want {
			t.Errorf("SizeToOrder(%d) = %d, want %d", size, got, want)
		}
	}
}
