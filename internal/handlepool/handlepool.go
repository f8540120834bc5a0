// Package handlepool implements the generational socket/stream handle pool
// shared by the core-bus server and IPC broker: a fixed-capacity slot table
// mapping a 32-bit opaque Handle to an open file descriptor (or, in this
// Go rendition, a net.Conn plus arbitrary per-connection side state).
//
// A fixed-capacity pool of checked-in/checked-out slots, generalized to
// the invariant that for any currently-valid handle,
// pool[slot].generation == handle.generation && pool[slot].fd >= 0.
package handlepool

import (
	"sync"

	apierrors "github.com/edgecore/edgeagentd/internal/errors"
)

// Handle is a 32-bit opaque token: (16-bit generation, 16-bit slot).
type Handle uint32

// NewHandle packs a generation and slot into a Handle.
func NewHandle(generation, slot uint16) Handle {
	return Handle(uint32(generation)<<16 | uint32(slot))
}

// Generation returns the handle's 16-bit generation.
func (h Handle) Generation() uint16 { return uint16(h >> 16) }

// Slot returns the handle's 16-bit slot index.
func (h Handle) Slot() uint16 { return uint16(h & 0xFFFF) }

type slot struct {
	generation uint16
	occupied   bool
	value      interface{}
}

// RegisterFunc is invoked after a value is registered into a fresh slot,
// allowing a caller to build per-handle side tables (e.g. per-connection
// authorization state) kept in sync with the pool.
type RegisterFunc func(h Handle, value interface{})

// ReleaseFunc is invoked before a slot is released and its fd/value
// discarded, allowing per-handle side tables to be torn down. Exactly one
// ReleaseFunc call happens per successful Release, before the slot is
// reused.
type ReleaseFunc func(h Handle, value interface{})

// Pool is a fixed-capacity generational handle pool. All lookups, inserts,
// and releases take a single mutex; callbacks (onRegister/onRelease) run
// outside the lock so they may safely re-enter the pool.
type Pool struct {
	mu        sync.Mutex
	slots     []slot
	free      []uint16
	onRegister RegisterFunc
	onRelease  ReleaseFunc
}

// New creates a Pool of fixed capacity. onRegister/onRelease may be nil.
func New(capacity int, onRegister RegisterFunc, onRelease ReleaseFunc) *Pool {
	p := &Pool{
		slots:      make([]slot, capacity),
		free:       make([]uint16, capacity),
		onRegister: onRegister,
		onRelease:  onRelease,
	}
	for i := 0; i < capacity; i++ {
		p.free[i] = uint16(capacity - 1 - i)
	}
	return p
}

// Cap returns the pool's fixed capacity.
func (p *Pool) Cap() int { return len(p.slots) }

// Register assigns value to a free slot, returning its handle. Returns
// ErrNoMem if the pool is at capacity.
func (p *Pool) Register(value interface{}) (Handle, error) {
	p.mu.Lock()
	if len(p.free) == 0 {
		p.mu.Unlock()
		return 0, apierrors.WrapKind(apierrors.New("handle pool exhausted"), apierrors.ErrNoMem, "register handle")
	}
	idx := len(p.free) - 1
	s := p.free[idx]
	p.free = p.free[:idx]

	p.slots[s].occupied = true
	p.slots[s].value = value
	gen := p.slots[s].generation
	p.mu.Unlock()

	h := NewHandle(gen, s)
	if p.onRegister != nil {
		p.onRegister(h, value)
	}
	return h, nil
}

// Lookup resolves a handle to its registered value. Returns ErrNoEntry if
// the handle is stale (generation mismatch) or the slot is out of range or
// unoccupied — a stale token never aliases a freshly reused slot.
func (p *Pool) Lookup(h Handle) (interface{}, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := h.Slot()
	if int(s) >= len(p.slots) {
		return nil, apierrors.WrapKind(apierrors.New("handle slot out of range"), apierrors.ErrNoEntry, "lookup handle")
	}
	entry := p.slots[s]
	if !entry.occupied || entry.generation != h.Generation() {
		return nil, apierrors.WrapKind(apierrors.New("stale or unoccupied handle"), apierrors.ErrNoEntry, "lookup handle")
	}
	return entry.value, nil
}

// Release invalidates h: the slot's generation is incremented (so the
// handle is never again valid) and the slot returned to the free list.
// onRelease is invoked, with the slot's value, outside the lock before the
// slot is actually freed for reuse.
func (p *Pool) Release(h Handle) error {
	p.mu.Lock()
	s := h.Slot()
	if int(s) >= len(p.slots) {
		p.mu.Unlock()
		return apierrors.WrapKind(apierrors.New("handle slot out of range"), apierrors.ErrNoEntry, "release handle")
	}
	entry := &p.slots[s]
	if !entry.occupied || entry.generation != h.Generation() {
		p.mu.Unlock()
		return apierrors.WrapKind(apierrors.New("stale or unoccupied handle"), apierrors.ErrNoEntry, "release handle")
	}
	value := entry.value
	p.mu.Unlock()

	if p.onRelease != nil {
		p.onRelease(h, value)
	}

	p.mu.Lock()
	entry.occupied = false
	entry.value = nil
	entry.generation++
	p.free = append(p.free, s)
	p.mu.Unlock()
	return nil
}

// InUse returns the number of currently occupied slots.
func (p *Pool) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.slots) - len(p.free)
}
