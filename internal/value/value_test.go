package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsStringWrongKind(t *testing.T) {
	_, err := IntValue(1).AsString()
	require.Error(t, err)
}

func TestAsIntWrongKind(t *testing.T) {
	_, err := StringValue("x").AsInt()
	require.Error(t, err)
}

func TestEqualScalars(t *testing.T) {
	assert.True(t, Equal(IntValue(1), IntValue(1)))
	assert.False(t, Equal(IntValue(1), IntValue(2)))
	assert.True(t, Equal(Null(), Null()))
	assert.True(t, Equal(nil, Null()))
}

func TestEqualNested(t *testing.T) {
	m1 := NewMap()
	m1.Set("a", IntValue(1))
	m1.Set("b", ListValue([]*Value{StringValue("x"), StringValue("y")}))

	m2 := NewMap()
	m2.Set("a", IntValue(1))
	m2.Set("b", ListValue([]*Value{StringValue("x"), StringValue("y")}))

	assert.True(t, Equal(MapValue(m1), MapValue(m2)))

	m2.Set("a", IntValue(2))
	assert.False(t, Equal(MapValue(m1), MapValue(m2)))
}
