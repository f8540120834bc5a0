// Package store implements the in-process reference external config store:
// a key-path tree with timestamp-ordered merges, list/read/delete, and
// subtree subscriptions. It is reachable only through the core-bus
// gg_config address (internal/config/kv), so swapping in a real external
// config daemon later requires no client-side change.
//
// Structured the way a thin interface sits in front of a storage engine,
// holding a key-path tree in place of SQL rows.
package store

import (
	"strings"
	"sync"

	apierrors "github.com/edgecore/edgeagentd/internal/errors"
	"github.com/edgecore/edgeagentd/internal/value"
)

// MaxKeyDepth is the maximum key-path depth.
const MaxKeyDepth = value.MaxDepth

// node is one tree node. A node is either a leaf (Value set, Children nil)
// or a parent (Children set, Value nil) — never both: a key that holds a
// value cannot simultaneously be a parent. Children preserve insertion
// order the same way value.Map does, so List/Read round-trip a subtree's
// key order instead of scrambling it through Go's map iteration.
type node struct {
	value     *value.Value
	timestamp float64
	order     []string
	children  map[string]*node
}

func newParentNode() *node {
	return &node{children: make(map[string]*node)}
}

func (n *node) isLeaf() bool { return n.children == nil }

// childNames returns the child key names in insertion order.
func (n *node) childNames() []string {
	out := make([]string, len(n.order))
	copy(out, n.order)
	return out
}

// setChild inserts or replaces a child, preserving its position in order
// on replace.
func (n *node) setChild(key string, child *node) {
	if _, exists := n.children[key]; !exists {
		n.order = append(n.order, key)
	}
	n.children[key] = child
}

// deleteChild removes a child, reporting whether it was present.
func (n *node) deleteChild(key string) bool {
	if _, ok := n.children[key]; !ok {
		return false
	}
	delete(n.children, key)
	for i, k := range n.order {
		if k == key {
			n.order = append(n.order[:i], n.order[i+1:]...)
			break
		}
	}
	return true
}

// Subscriber receives the full key path of any modification to the subtree
// it subscribed to (including nested descendants). No initial snapshot is
// pushed.
type Subscriber func(keyPath []string)

// Store is the in-process config tree. Safe for concurrent use.
type Store struct {
	mu   sync.Mutex
	root *node

	subMu sync.Mutex
	subs  map[int]subscription
	nextSubID int
}

type subscription struct {
	keyPath []string
	fn      Subscriber
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		root: newParentNode(),
		subs: make(map[int]subscription),
	}
}

func validateKeyPath(keyPath []string) error {
	if len(keyPath) == 0 {
		return apierrors.WrapKind(apierrors.New("empty key path"), apierrors.ErrInvalid, "validate key path")
	}
	if len(keyPath) > MaxKeyDepth {
		return apierrors.WrapKind(apierrors.New("key path too deep"), apierrors.ErrRange, "validate key path")
	}
	return nil
}

// Read returns the value tree rooted at keyPath. NOENTRY if missing.
func (s *Store) Read(keyPath []string) (*value.Value, error) {
	if err := validateKeyPath(keyPath); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.find(keyPath)
	if err != nil {
		return nil, err
	}
	return nodeToValue(n), nil
}

// ReadString is a convenience over Read that errors with ErrConfig if the
// value is not a buffer.
func (s *Store) ReadString(keyPath []string) (string, error) {
	v, err := s.Read(keyPath)
	if err != nil {
		return "", err
	}
	return v.AsString()
}

// List returns the immediate children names of keyPath. INVALID if the key
// is a leaf; NOENTRY if missing; an empty-map key returns an empty list.
func (s *Store) List(keyPath []string) ([]string, error) {
	if err := validateKeyPath(keyPath); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.find(keyPath)
	if err != nil {
		return nil, err
	}
	if n.isLeaf() {
		return nil, apierrors.WrapKind(apierrors.New("key is a leaf, not a parent"), apierrors.ErrInvalid, "list %v", keyPath)
	}
	return n.childNames(), nil
}

// find walks keyPath from root, returning NOENTRY if any segment is
// missing.
func (s *Store) find(keyPath []string) (*node, error) {
	cur := s.root
	for _, seg := range keyPath {
		if cur.isLeaf() {
			return nil, apierrors.WrapKind(apierrors.New("key path descends through a leaf"), apierrors.ErrNoEntry, "find %v", keyPath)
		}
		next, ok := cur.children[seg]
		if !ok {
			return nil, apierrors.WrapKind(apierrors.New("no such key"), apierrors.ErrNoEntry, "find %v", keyPath)
		}
		cur = next
	}
	return cur, nil
}

// Write merges v at keyPath at the given timestamp (0 when the caller has
// none; such a write loses to any leaf stored at a later timestamp). Semantics:
//   - A write whose timestamp is older than the stored timestamp is
//     silently ignored; equal or newer timestamps overwrite.
//   - Writing an empty map over a non-empty map is a no-op.
//   - Writing a map over a leaf, or a leaf over a map, is rejected
//     (ErrFailure — "type-stomp prevention").
func (s *Store) Write(keyPath []string, v *value.Value, timestamp float64) error {
	if err := validateKeyPath(keyPath); err != nil {
		return err
	}
	s.mu.Lock()
	changed, err := s.writeLocked(s.root, keyPath, v, timestamp)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	if changed {
		s.notify(keyPath)
	}
	return nil
}

func (s *Store) writeLocked(root *node, keyPath []string, v *value.Value, timestamp float64) (bool, error) {
	parent := root
	for _, seg := range keyPath[:len(keyPath)-1] {
		if parent.isLeaf() {
			return false, apierrors.WrapKind(apierrors.New("write descends through a leaf"), apierrors.ErrFailure, "write %v", keyPath)
		}
		next, ok := parent.children[seg]
		if !ok {
			next = newParentNode()
			parent.setChild(seg, next)
		}
		parent = next
	}

	last := keyPath[len(keyPath)-1]
	existing, hasExisting := parent.children[last]
	return mergeNode(parent, last, existing, hasExisting, v, timestamp)
}

// mergeNode applies the merge/type-stomp/timestamp rules for a single
// key, recursing into nested maps.
func mergeNode(parent *node, key string, existing *node, hasExisting bool, v *value.Value, timestamp float64) (bool, error) {
	if v.Kind == value.KindMap {
		if !hasExisting {
			n := valueToNode(v, timestamp)
			parent.setChild(key, n)
			return true, nil
		}
		if existing.isLeaf() {
			return false, apierrors.WrapKind(apierrors.New("cannot write a map over a leaf"), apierrors.ErrFailure, "write %s", key)
		}
		if v.Map.Len() == 0 {
			// Writing an empty map over a non-empty map is a no-op.
			return false, nil
		}
		anyChanged := false
		for _, childKey := range v.Map.Keys() {
			childVal, _ := v.Map.Get(childKey)
			childExisting, childHas := existing.children[childKey]
			changed, err := mergeNode(existing, childKey, childExisting, childHas, childVal, timestamp)
			if err != nil {
				return anyChanged, err
			}
			anyChanged = anyChanged || changed
		}
		return anyChanged, nil
	}

	// Leaf write.
	if hasExisting && !existing.isLeaf() {
		return false, apierrors.WrapKind(apierrors.New("cannot write a leaf over a map"), apierrors.ErrFailure, "write %s", key)
	}
	if hasExisting && timestamp < existing.timestamp {
		return false, nil
	}
	parent.setChild(key, &node{value: v, timestamp: timestamp})
	return true, nil
}

func valueToNode(v *value.Value, timestamp float64) *node {
	n := newParentNode()
	if v.Kind != value.KindMap {
		return &node{value: v, timestamp: timestamp}
	}
	for _, k := range v.Map.Keys() {
		child, _ := v.Map.Get(k)
		n.setChild(k, valueToNode(child, timestamp))
	}
	return n
}

func nodeToValue(n *node) *value.Value {
	if n.isLeaf() {
		return n.value
	}
	m := value.NewMap()
	for _, k := range n.childNames() {
		m.Set(k, nodeToValue(n.children[k]))
	}
	return value.MapValue(m)
}

// Delete recursively removes keyPath. Non-existent keys succeed
// (idempotent).
func (s *Store) Delete(keyPath []string) error {
	if err := validateKeyPath(keyPath); err != nil {
		return err
	}
	s.mu.Lock()
	parent := s.root
	ok := true
	for _, seg := range keyPath[:len(keyPath)-1] {
		if parent.isLeaf() {
			ok = false
			break
		}
		next, exists := parent.children[seg]
		if !exists {
			ok = false
			break
		}
		parent = next
	}
	deleted := false
	if ok && !parent.isLeaf() {
		last := keyPath[len(keyPath)-1]
		deleted = parent.deleteChild(last)
	}
	s.mu.Unlock()

	if deleted {
		s.notify(keyPath)
	}
	return nil
}

// Subscribe registers fn to be called with the full key path of any
// modification to the subtree rooted at keyPath, including nested
// descendants. Returns an unsubscribe function.
func (s *Store) Subscribe(keyPath []string, fn Subscriber) (unsubscribe func(), err error) {
	if err := validateKeyPath(keyPath); err != nil {
		return nil, err
	}
	s.subMu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subs[id] = subscription{keyPath: keyPath, fn: fn}
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}, nil
}

func (s *Store) notify(changedPath []string) {
	s.subMu.Lock()
	toCall := make([]subscription, 0, len(s.subs))
	for _, sub := range s.subs {
		if isPrefix(sub.keyPath, changedPath) {
			toCall = append(toCall, sub)
		}
	}
	s.subMu.Unlock()

	for _, sub := range toCall {
		sub.fn(changedPath)
	}
}

func isPrefix(prefix, path []string) bool {
	if len(prefix) > len(path) {
		return false
	}
	for i, seg := range prefix {
		if path[i] != seg {
			return false
		}
	}
	return true
}

// KeyPathString joins a key path with '/' for logging.
func KeyPathString(keyPath []string) string {
	return strings.Join(keyPath, "/")
}
