// Package buffer implements zero-copy byte-buffer views and fixed-capacity
// append vectors over a borrowed region, the substrate the value tree and
// EventStream codec are built on.
package buffer

import "bytes"

// View is a zero-copy slice into someone else's backing array. Equality is
// bytewise; Sub never allocates.
type View []byte

// Sub returns a zero-copy view clipped to [i, min(j, len(v))).
func (v View) Sub(i, j int) View {
	if i < 0 {
		i = 0
	}
	if j > len(v) {
		j = len(v)
	}
	if i >= j {
		return View{}
	}
	return v[i:j]
}

// Equal reports bytewise equality.
func (v View) Equal(other View) bool {
	return bytes.Equal(v, other)
}

// String returns the view's bytes converted to a string (copies).
func (v View) String() string {
	return string(v)
}

// RemovePrefix advances the view past prefix if it matches, reporting
// whether the match (and advance) happened.
func (v *View) RemovePrefix(prefix View) bool {
	if len(*v) < len(prefix) || !bytes.Equal((*v)[:len(prefix)], prefix) {
		return false
	}
	*v = (*v)[len(prefix):]
	return true
}
