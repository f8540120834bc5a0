package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "github.com/edgecore/edgeagentd/internal/errors"
	"github.com/edgecore/edgeagentd/internal/value"
)

func mustMap(pairs ...interface{}) *value.Value {
	m := value.NewMap()
	for i := 0; i < len(pairs); i += 2 {
		m.Set(pairs[i].(string), pairs[i+1].(*value.Value))
	}
	return value.MapValue(m)
}

func TestReadMissingIsNoEntry(t *testing.T) {
	s := New()
	_, err := s.Read([]string{"system", "thingName"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apierrors.ErrNoEntry)
}

// TestConfigMergeWithTimestamps covers merging a config update that
// carries per-key timestamps older than what is already stored.
func TestConfigMergeWithTimestamps(t *testing.T) {
	s := New()
	require.NoError(t, s.Write([]string{"c", "x"}, mustMap("k", value.StringValue("v1")), 1001))
	require.NoError(t, s.Write([]string{"c", "x"}, mustMap("k", value.StringValue("v2")), 1000))
	require.NoError(t, s.Write([]string{"c", "x"}, mustMap("k", value.StringValue("v3")), 1001))

	v, err := s.ReadString([]string{"c", "x", "k"})
	require.NoError(t, err)
	assert.Equal(t, "v3", v)
}

// TestTypeStompPrevention covers rejecting a write that would replace a
// map node with a scalar (or vice versa) at the same key path.
func TestTypeStompPrevention(t *testing.T) {
	s := New()
	require.NoError(t, s.Write([]string{"c", "foo", "bar"}, mustMap("key", value.StringValue("v1")), 0))

	err := s.Write([]string{"c", "foo", "bar", "key"}, mustMap("sub", value.StringValue("v2")), 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, apierrors.ErrFailure)

	v, err := s.ReadString([]string{"c", "foo", "bar", "key"})
	require.NoError(t, err)
	assert.Equal(t, "v1", v)
}

func TestWritingEmptyMapOverNonEmptyMapIsNoOp(t *testing.T) {
	s := New()
	require.NoError(t, s.Write([]string{"c"}, mustMap("k", value.StringValue("v1")), 0))

	empty := value.MapValue(value.NewMap())
	require.NoError(t, s.Write([]string{"c"}, empty, 0))

	v, err := s.ReadString([]string{"c", "k"})
	require.NoError(t, err)
	assert.Equal(t, "v1", v)
}

func TestListRejectsLeaf(t *testing.T) {
	s := New()
	require.NoError(t, s.Write([]string{"system", "thingName"}, value.StringValue("my-thing"), 0))

	_, err := s.List([]string{"system", "thingName"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apierrors.ErrInvalid)
}

func TestListEmptyMapReturnsEmptyList(t *testing.T) {
	s := New()
	require.NoError(t, s.Write([]string{"services"}, mustMap(), 0))

	names, err := s.List([]string{"services"})
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestDeleteIsIdempotent(t *testing.T) {
	s := New()
	require.NoError(t, s.Write([]string{"c", "k"}, value.StringValue("v"), 0))
	require.NoError(t, s.Delete([]string{"c", "k"}))
	require.NoError(t, s.Delete([]string{"c", "k"}))

	_, err := s.Read([]string{"c", "k"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apierrors.ErrNoEntry)
}

func TestSubscribeFiresOnNestedDescendantChange(t *testing.T) {
	s := New()
	var got []string
	unsub, err := s.Subscribe([]string{"services", "myComponent"}, func(keyPath []string) {
		got = append(got, KeyPathString(keyPath))
	})
	require.NoError(t, err)
	defer unsub()

	require.NoError(t, s.Write([]string{"services", "myComponent", "configuration", "x"}, value.StringValue("1"), 0))
	require.NoError(t, s.Write([]string{"services", "other"}, value.StringValue("2"), 0))

	require.Len(t, got, 1)
	assert.Equal(t, "services/myComponent/configuration/x", got[0])
}

func TestMaxKeyDepthExceeded(t *testing.T) {
	s := New()
	deep := make([]string, MaxKeyDepth+1)
	for i := range deep {
		deep[i] = "a"
	}
	err := s.Write(deep, value.StringValue("v"), 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, apierrors.ErrRange)
}
