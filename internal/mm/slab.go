package mm

import (
	"sync"
	"unsafe"
)

// slabClasses are the fixed object sizes the slab allocator serves, a
// power-of-two ladder from 8 bytes up to a page. Any request larger
// than the largest class is out of scope for the slab tier and must go to
// the buddy allocator directly.
var slabClasses = [...]uint32{8, 16, 32, 64, 128, 256, 512, 1024, 2048, 4096}

// ClassFor returns the smallest slab class that fits size, or false if size
// exceeds every class.
func ClassFor(size uint32) (uint32, bool) {
	for _, c := range slabClasses {
		if size <= c {
			return c, true
		}
	}
	return 0, false
}

// slabPage is one PageSize-sized page carved into fixed-size slots for a
// single class. freeMask has one bit per slot (bit set = free); a page whose
// freeMask is all zero is full and is skipped by the next allocation without
// being unlinked, matching the "linear scan, no compaction" simplicity of
// the allocators in the pack rather than maintaining separate full/partial
// lists.
type slabPage struct {
	base     uint64
	freeMask []uint64
	slots    int
	objSize  uint32
	next     *slabPage
}

func (p *slabPage) slotAddr(i int) uint64 { return p.base + uint64(i)*uint64(p.objSize) }

// allFree reports whether every slot in the page is currently free, i.e.
// the page holds no live allocations and is a candidate to hand back to
// the buddy allocator.
func (p *slabPage) allFree() bool {
	full := p.slots / 64
	for i := 0; i < full; i++ {
		if p.freeMask[i] != ^uint64(0) {
			return false
		}
	}
	if rem := p.slots % 64; rem != 0 {
		want := uint64(1)<<uint(rem) - 1
		if p.freeMask[full]&want != want {
			return false
		}
	}
	return true
}

type slabClassState struct {
	objSize uint32
	pages   *slabPage
}

// Slab is the slab allocator (C5): one free-list-of-pages per size class,
// each page's slots tracked by a bitmap rather than LeftHandCold-
// hybridAllocator/hybrid/slab.go's bump-pointer-within-slab scheme, so a
// freed slot in the middle of a page is reusable immediately instead of
// only at the next full-page reset.
type Slab struct {
	mu      sync.Mutex
	buddy   *Buddy
	classes [len(slabClasses)]slabClassState
}

func NewSlab(buddy *Buddy) *Slab {
	s := &Slab{buddy: buddy}
	for i, sz := range slabClasses {
		s.classes[i].objSize = sz
	}
	return s
}

func (s *Slab) classIndex(size uint32) (int, bool) {
	for i, c := range slabClasses {
		if size <= c {
			return i, true
		}
	}
	return 0, false
}

func (s *Slab) newPage(objSize uint32) (*slabPage, bool) {
	addr, ok := s.buddy.Alloc(0)
	if !ok {
		return nil, false
	}
	slots := PageSize / int(objSize)
	words := (slots + 63) / 64
	mask := make([]uint64, words)
	for i := 0; i < slots; i++ {
		mask[i/64] |= 1 << uint(i%64)
	}
	return &slabPage{base: addr, freeMask: mask, slots: slots, objSize: objSize}, true
}

// Alloc returns a zero-initialized slot for the given size class, growing
// the class with a fresh buddy-backed page when every existing page is
// full.
func (s *Slab) Alloc(size uint32) (uint64, error) {
	idx, ok := s.classIndex(size)
	if !ok {
		return 0, ErrInvalidSize
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cs := &s.classes[idx]

	for p := cs.pages; p != nil; p = p.next {
		if slot, ok := firstSetBit(p.freeMask); ok {
			p.freeMask[slot/64] &^= 1 << uint(slot%64)
			addr := p.slotAddr(slot)
			zero(addr, uint64(cs.objSize))
			return addr, nil
		}
	}

	page, ok := s.newPage(cs.objSize)
	if !ok {
		return 0, ErrOutOfMemory
	}
	page.next = cs.pages
	cs.pages = page
	slot, _ := firstSetBit(page.freeMask)
	page.freeMask[slot/64] &^= 1 << uint(slot%64)
	addr := page.slotAddr(slot)
	zero(addr, uint64(cs.objSize))
	return addr, nil
}

// Free releases a slot previously returned by Alloc for the same size.
// Freeing an address the class doesn't own, or freeing the same address
// twice, returns an error rather than corrupting the bitmap silently. If
// the freed slot leaves its page fully empty and the class already keeps
// one empty page in reserve, this page is unlinked and returned to the
// buddy allocator instead of being kept around as a second idle page.
func (s *Slab) Free(addr uint64, size uint32) error {
	idx, ok := s.classIndex(size)
	if !ok {
		return ErrInvalidSize
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cs := &s.classes[idx]

	var prev *slabPage
	for p := cs.pages; p != nil; p = p.next {
		if addr < p.base || addr >= p.base+PageSize {
			prev = p
			continue
		}
		off := addr - p.base
		if off%uint64(cs.objSize) != 0 {
			return ErrInvalidAlign
		}
		slot := int(off / uint64(cs.objSize))
		word, bit := slot/64, uint(slot%64)
		if p.freeMask[word]&(1<<bit) != 0 {
			return ErrDoubleFree
		}
		p.freeMask[word] |= 1 << bit

		if p.allFree() && s.hasOtherEmptyPage(cs, p) {
			if prev == nil {
				cs.pages = p.next
			} else {
				prev.next = p.next
			}
			s.buddy.Free(p.base, 0)
		}
		return nil
	}
	return ErrNotFound
}

// hasOtherEmptyPage reports whether the class already keeps an empty page
// in reserve besides except, so except (also fully empty) is a second
// idle page that can be returned to the buddy allocator.
func (s *Slab) hasOtherEmptyPage(cs *slabClassState, except *slabPage) bool {
	for p := cs.pages; p != nil; p = p.next {
		if p != except && p.allFree() {
			return true
		}
	}
	return false
}

func firstSetBit(mask []uint64) (int, bool) {
	for w, word := range mask {
		if word == 0 {
			continue
		}
		for b := 0; b < 64; b++ {
			if word&(1<<uint(b)) != 0 {
				return w*64 + b, true
			}
		}
	}
	return 0, false
}

func zero(addr uint64, n uint64) {
	p := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(addr))), n)
	for i := range p {
		p[i] = 0
	}
}
