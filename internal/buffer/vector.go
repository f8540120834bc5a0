package buffer

import (
	apierrors "github.com/edgecore/edgeagentd/internal/errors"
)

// ByteVector is a fixed-capacity append buffer over a borrowed region.
// Push fails with ErrRange on overflow rather than growing.
type ByteVector struct {
	region []byte
	len    int
}

// NewByteVector wraps a caller-owned region as an empty vector of that
// capacity.
func NewByteVector(region []byte) *ByteVector {
	return &ByteVector{region: region}
}

// Len returns the number of bytes pushed so far.
func (v *ByteVector) Len() int { return v.len }

// Cap returns the vector's fixed capacity.
func (v *ByteVector) Cap() int { return len(v.region) }

// Bytes returns a view over the bytes pushed so far.
func (v *ByteVector) Bytes() View { return v.region[:v.len] }

// Push appends b, failing with ErrRange if it would overflow capacity.
func (v *ByteVector) Push(b []byte) error {
	if v.len+len(b) > len(v.region) {
		return apierrors.WrapKind(apierrors.New("byte vector capacity exceeded"), apierrors.ErrRange, "push %d bytes", len(b))
	}
	copy(v.region[v.len:], b)
	v.len += len(b)
	return nil
}

// PushByte appends a single byte.
func (v *ByteVector) PushByte(b byte) error {
	return v.Push([]byte{b})
}

// Reset empties the vector without releasing its region.
func (v *ByteVector) Reset() { v.len = 0 }

// ChainAppend threads an error through a builder-style sequence of pushes:
// once err is set, subsequent Push calls are no-ops that preserve the first
// error.
type ChainAppend struct {
	vec *ByteVector
	err error
}

// NewChainAppend wraps a vector for chained pushes.
func NewChainAppend(v *ByteVector) *ChainAppend {
	return &ChainAppend{vec: v}
}

// Push appends b if no prior error occurred; returns the receiver for
// chaining.
func (c *ChainAppend) Push(b []byte) *ChainAppend {
	if c.err != nil {
		return c
	}
	c.err = c.vec.Push(b)
	return c
}

// Err returns the first error encountered, if any.
func (c *ChainAppend) Err() error { return c.err }

// ObjectVector is a fixed-capacity append vector of arbitrary typed
// elements, generalized over ByteVector's overflow-as-error discipline.
type ObjectVector[T any] struct {
	items []T
	cap   int
}

// NewObjectVector creates an ObjectVector with the given fixed capacity.
func NewObjectVector[T any](capacity int) *ObjectVector[T] {
	return &ObjectVector[T]{items: make([]T, 0, capacity), cap: capacity}
}

// Len returns the number of elements pushed so far.
func (v *ObjectVector[T]) Len() int { return len(v.items) }

// Cap returns the vector's fixed capacity.
func (v *ObjectVector[T]) Cap() int { return v.cap }

// Items returns the elements pushed so far.
func (v *ObjectVector[T]) Items() []T { return v.items }

// Push appends item, failing with ErrRange on overflow.
func (v *ObjectVector[T]) Push(item T) error {
	if len(v.items) >= v.cap {
		return apierrors.WrapKind(apierrors.New("object vector capacity exceeded"), apierrors.ErrRange, "push item")
	}
	v.items = append(v.items, item)
	return nil
}

// KVPair is a single key/value entry of a KVVector.
type KVPair[K comparable, V any] struct {
	Key   K
	Value V
}

// KVVector is a fixed-capacity append vector of key/value pairs, preserving
// insertion order the way the value tree's ordered maps require.
type KVVector[K comparable, V any] struct {
	pairs []KVPair[K, V]
	cap   int
}

// NewKVVector creates a KVVector with the given fixed capacity.
func NewKVVector[K comparable, V any](capacity int) *KVVector[K, V] {
	return &KVVector[K, V]{pairs: make([]KVPair[K, V], 0, capacity), cap: capacity}
}

// Len returns the number of pairs pushed so far.
func (v *KVVector[K, V]) Len() int { return len(v.pairs) }

// Pairs returns the pairs in insertion order.
func (v *KVVector[K, V]) Pairs() []KVPair[K, V] { return v.pairs }

// Push appends a pair, failing with ErrRange on overflow.
func (v *KVVector[K, V]) Push(key K, value V) error {
	if len(v.pairs) >= v.cap {
		return apierrors.WrapKind(apierrors.New("kv vector capacity exceeded"), apierrors.ErrRange, "push kv pair")
	}
	v.pairs = append(v.pairs, KVPair[K, V]{Key: key, Value: value})
	return nil
}
