package value

// Map is an ordered map whose keys are buffers (strings) and values are
// *Value. Insertion order is preserved; a later write to an existing key
// replaces the value in place without changing its position.
type Map struct {
	order []string
	items map[string]*Value
}

// NewMap creates an empty ordered map.
func NewMap() *Map {
	return &Map{items: make(map[string]*Value)}
}

// Len returns the number of keys in the map.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.order)
}

// Get returns the value at key, and whether it was present.
func (m *Map) Get(key string) (*Value, bool) {
	if m == nil {
		return nil, false
	}
	v, ok := m.items[key]
	return v, ok
}

// Set inserts key/value, or replaces the value in place if key already
// exists (order unchanged on replace).
func (m *Map) Set(key string, v *Value) {
	if _, exists := m.items[key]; !exists {
		m.order = append(m.order, key)
	}
	m.items[key] = v
}

// Delete removes key, reporting whether it was present.
func (m *Map) Delete(key string) bool {
	if _, ok := m.items[key]; !ok {
		return false
	}
	delete(m.items, key)
	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return true
}

// Keys returns the keys in insertion order.
func (m *Map) Keys() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// Equal reports deep structural equality, order-insensitive (two maps with
// the same keys/values in different insertion order are still equal —
// insertion order affects iteration, not equality).
func (m *Map) Equal(other *Map) bool {
	if m.Len() != other.Len() {
		return false
	}
	for _, k := range m.Keys() {
		v1, _ := m.Get(k)
		v2, ok := other.Get(k)
		if !ok || !Equal(v1, v2) {
			return false
		}
	}
	return true
}

// Clone returns a shallow copy of the map (values are shared, not deep
// copied).
func (m *Map) Clone() *Map {
	clone := NewMap()
	for _, k := range m.Keys() {
		v, _ := m.Get(k)
		clone.Set(k, v)
	}
	return clone
}
