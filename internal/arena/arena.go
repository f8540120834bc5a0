// Package arena implements a bump allocator over a single contiguous byte
// region. Decoded trees (config responses, EventStream headers, recipe
// documents) carve space out of an arena rather than allocating per object;
// callers release everything at once by resetting the cursor.
package arena

import (
	"sync"

	apierrors "github.com/edgecore/edgeagentd/internal/errors"
)

// Arena is a single contiguous byte region with a high-water-mark cursor.
// Safe for concurrent use; callers needing lock-free allocation should take
// their own arena per goroutine instead of sharing one.
type Arena struct {
	mu     sync.Mutex
	region []byte
	cursor int
}

// New creates an Arena over a freshly allocated region of the given size.
func New(size int) *Arena {
	return &Arena{region: make([]byte, size)}
}

// Cursor returns the current high-water mark, usable with Rewind.
func (a *Arena) Cursor() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cursor
}

// Cap returns the arena's total capacity.
func (a *Arena) Cap() int {
	return len(a.region)
}

// Alloc reserves n bytes aligned to alignment and returns a slice into the
// arena's backing region. Alignment must be a power of two; 1 means no
// padding. Returns ErrNoMem if the region is exhausted.
func (a *Arena) Alloc(n int, alignment int) ([]byte, error) {
	if n < 0 {
		return nil, apierrors.WrapKind(apierrors.New("negative allocation size"), apierrors.ErrInvalid, "arena alloc")
	}
	if alignment <= 0 {
		alignment = 1
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	aligned := alignUp(a.cursor, alignment)
	end := aligned + n
	if end > len(a.region) || end < aligned {
		return nil, apierrors.WrapKind(apierrors.New("arena exhausted"), apierrors.ErrNoMem, "arena alloc %d bytes", n)
	}

	a.cursor = end
	return a.region[aligned:end:end], nil
}

// Reset rewinds the cursor to zero, reclaiming the whole region. The caller
// MUST NOT do so while any previously handed-out slice is still in use.
func (a *Arena) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cursor = 0
}

// Rewind restores the cursor to a previously recorded value. The caller
// MUST NOT do so while any pointer allocated after that cursor is in use.
func (a *Arena) Rewind(cursor int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if cursor < 0 || cursor > a.cursor {
		return apierrors.WrapKind(apierrors.New("invalid rewind cursor"), apierrors.ErrInvalid, "arena rewind")
	}
	a.cursor = cursor
	return nil
}

func alignUp(offset, alignment int) int {
	mask := alignment - 1
	return (offset + mask) &^ mask
}
