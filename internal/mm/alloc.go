package mm

import "sync"

// Mode selects how Allocator routes a request.
type Mode int

const (
	// Simple always goes straight to the buddy allocator, one order-sized
	// block per request, regardless of size.
	Simple Mode = iota
	// TwoTier routes requests at or below the largest slab class to the
	// slab allocator and everything larger to the buddy allocator.
	TwoTier
	// Hybrid behaves like TwoTier but falls back to a direct buddy
	// allocation when the slab tier reports OutOfMemory, per
	// original_source/src/memory/fallible.rs's Hybrid strategy.
	Hybrid
)

// Stats mirrors fallible.rs's allocator statistics: enough to compute a
// failure rate and a coarse health verdict.
type Stats struct {
	Allocations uint64
	Frees       uint64
	Failures    uint64
}

// FailureRate returns Failures as a fraction of attempted allocations.
func (s Stats) FailureRate() float64 {
	attempts := s.Allocations + s.Failures
	if attempts == 0 {
		return 0
	}
	return float64(s.Failures) / float64(attempts)
}

// IsHealthy matches fallible.rs's is_healthy: a failure rate under 5%.
func (s Stats) IsHealthy() bool { return s.FailureRate() < 0.05 }

// Allocator is the fallible allocation API (C6): a single entry point over
// the buddy and slab tiers, switchable between Simple/TwoTier/Hybrid at
// runtime, with transaction support for grouped allocations that must all
// succeed or all be rolled back.
type Allocator struct {
	mu    sync.Mutex
	buddy *Buddy
	slab  *Slab
	mode  Mode
	stats Stats

	txOpen bool
}

func NewAllocator(buddy *Buddy, slab *Slab, mode Mode) *Allocator {
	return &Allocator{buddy: buddy, slab: slab, mode: mode}
}

// SetMode switches the routing strategy. Safe to call with allocations
// already outstanding: Free always re-derives the owning tier from the
// address and size rather than trusting the allocator's current mode, so
// objects allocated under one mode are freed correctly after a mode switch.
func (a *Allocator) SetMode(m Mode) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.mode = m
}

func (a *Allocator) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}

// Alloc returns size bytes, zeroed, honoring align (align must be a power
// of two no larger than PageSize; the buddy tier is naturally page-aligned,
// and every slab class is itself a power of two so any align up to the
// class size is satisfied for free; a request whose align exceeds its slab
// class is served by the buddy tier instead).
func (a *Allocator) Alloc(size uint32, align uint32) (uint64, error) {
	if size == 0 {
		return 0, ErrInvalidSize
	}
	if align == 0 || align&(align-1) != 0 {
		return 0, ErrInvalidAlign
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	addr, err := a.allocLocked(size, align)
	if err != nil {
		a.stats.Failures++
		return 0, err
	}
	a.stats.Allocations++
	return addr, nil
}

func (a *Allocator) allocLocked(size, align uint32) (uint64, error) {
	switch a.mode {
	case Simple:
		return a.buddyAlloc(size, align)
	case TwoTier:
		return a.twoTierAlloc(size, align)
	case Hybrid:
		addr, err := a.twoTierAlloc(size, align)
		if err == ErrOutOfMemory {
			return a.buddyAlloc(size, align)
		}
		return addr, err
	default:
		return 0, ErrInvalidSize
	}
}

func (a *Allocator) twoTierAlloc(size, align uint32) (uint64, error) {
	if class, ok := ClassFor(size); ok && class >= align {
		addr, err := a.slab.Alloc(class)
		if err != nil {
			return 0, err
		}
		return addr, nil
	}
	return a.buddyAlloc(size, align)
}

func (a *Allocator) buddyAlloc(size, align uint32) (uint64, error) {
	order := SizeToOrder(uint64(size))
	if orderSize(order) < uint64(align) {
		order = SizeToOrder(uint64(align))
	}
	addr, ok := a.buddy.Alloc(order)
	if !ok {
		return 0, ErrOutOfMemory
	}
	zero(addr, orderSize(order))
	return addr, nil
}

// Free releases an allocation previously returned by Alloc for the same
// size. It tries the slab tier first (which rejects addresses it doesn't
// own with ErrNotFound) and falls back to the buddy tier, so Hybrid-mode
// allocations placed by either tier are freed correctly without the caller
// tracking which tier served them.
func (a *Allocator) Free(addr uint64, size uint32) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if class, ok := ClassFor(size); ok {
		err := a.slab.Free(addr, class)
		if err == nil {
			a.stats.Frees++
			return nil
		}
		if err != ErrNotFound {
			return err
		}
	}
	order := SizeToOrder(uint64(size))
	a.buddy.Free(addr, order)
	a.stats.Frees++
	return nil
}

// txEntry is one allocation recorded by an open Transaction, in allocation
// order so Rollback can free it in reverse order.
type txEntry struct {
	addr uint64
	size uint32
}

// Transaction groups allocations that must either all succeed or all be
// undone together. original_source/src/memory/fallible.rs uses Rust's Drop
// to roll back automatically unless Commit (mem::forget) was called; Go has
// no equivalent, so the contract here is explicit: every Begin must be
// followed by exactly one Commit or Rollback.
type Transaction struct {
	a       *Allocator
	entries []txEntry
	done    bool
}

// Begin opens a transaction. Only one transaction may be open on an
// Allocator at a time; a second Begin before the first resolves returns
// ErrTransactionOpen, matching fallible.rs's single-outstanding-transaction
// rule.
func (a *Allocator) Begin() (*Transaction, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.txOpen {
		return nil, ErrTransactionOpen
	}
	a.txOpen = true
	return &Transaction{a: a}, nil
}

// Alloc performs an allocation and records it so Rollback can undo it.
func (t *Transaction) Alloc(size, align uint32) (uint64, error) {
	if t.done {
		return 0, ErrNoTransaction
	}
	addr, err := t.a.Alloc(size, align)
	if err != nil {
		return 0, err
	}
	t.entries = append(t.entries, txEntry{addr, size})
	return addr, nil
}

// Commit finalizes the transaction: its allocations remain live and it can
// no longer be rolled back.
func (t *Transaction) Commit() error {
	if t.done {
		return ErrNoTransaction
	}
	t.done = true
	t.a.mu.Lock()
	t.a.txOpen = false
	t.a.mu.Unlock()
	return nil
}

// Rollback frees every allocation the transaction made, most recent first.
func (t *Transaction) Rollback() error {
	if t.done {
		return ErrNoTransaction
	}
	t.done = true
	for i := len(t.entries) - 1; i >= 0; i-- {
		e := t.entries[i]
		t.a.Free(e.addr, e.size)
	}
	t.a.mu.Lock()
	t.a.txOpen = false
	t.a.mu.Unlock()
	return nil
}
