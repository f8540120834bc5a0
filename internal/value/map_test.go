package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapPreservesInsertionOrderAndReplacesInPlace(t *testing.T) {
	m := NewMap()
	m.Set("a", IntValue(1))
	m.Set("b", IntValue(2))
	m.Set("c", IntValue(3))

	require.Equal(t, []string{"a", "b", "c"}, m.Keys())

	m.Set("b", IntValue(20))
	require.Equal(t, []string{"a", "b", "c"}, m.Keys(), "replacing a key must not move it")

	v, ok := m.Get("b")
	require.True(t, ok)
	i, err := v.AsInt()
	require.NoError(t, err)
	assert.Equal(t, int64(20), i)
}

func TestMapDelete(t *testing.T) {
	m := NewMap()
	m.Set("a", IntValue(1))
	m.Set("b", IntValue(2))

	assert.True(t, m.Delete("a"))
	assert.False(t, m.Delete("a"))
	assert.Equal(t, []string{"b"}, m.Keys())
}

func TestMapClone(t *testing.T) {
	m := NewMap()
	m.Set("a", IntValue(1))

	clone := m.Clone()
	clone.Set("b", IntValue(2))

	assert.Equal(t, 1, m.Len())
	assert.Equal(t, 2, clone.Len())
}
