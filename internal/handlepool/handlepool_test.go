package handlepool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "github.com/edgecore/edgeagentd/internal/errors"
)

func TestHandlePackUnpack(t *testing.T) {
	h := NewHandle(3, 7)
	assert.Equal(t, uint16(3), h.Generation())
	assert.Equal(t, uint16(7), h.Slot())
}

func TestRegisterLookupRelease(t *testing.T) {
	p := New(4, nil, nil)

	h0, err := p.Register(7)
	require.NoError(t, err)

	v, err := p.Lookup(h0)
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	require.NoError(t, p.Release(h0))

	_, err = p.Lookup(h0)
	require.Error(t, err)
	assert.ErrorIs(t, err, apierrors.ErrNoEntry)
}

// TestStaleHandleDoesNotAliasReusedSlot covers slot reuse: register
// fd 7 -> h0; release h0; register fd 9 -> h1 with same slot but
// incremented generation; operation on h0 fails, operation on h1 succeeds.
func TestStaleHandleDoesNotAliasReusedSlot(t *testing.T) {
	p := New(1, nil, nil)

	h0, err := p.Register(7)
	require.NoError(t, err)

	require.NoError(t, p.Release(h0))

	h1, err := p.Register(9)
	require.NoError(t, err)

	assert.Equal(t, h0.Slot(), h1.Slot())
	assert.NotEqual(t, h0.Generation(), h1.Generation())

	_, err = p.Lookup(h0)
	require.Error(t, err)
	assert.ErrorIs(t, err, apierrors.ErrNoEntry)

	v, err := p.Lookup(h1)
	require.NoError(t, err)
	assert.Equal(t, 9, v)
}

func TestRegisterExhaustion(t *testing.T) {
	p := New(1, nil, nil)
	_, err := p.Register(1)
	require.NoError(t, err)

	_, err = p.Register(2)
	require.Error(t, err)
	assert.ErrorIs(t, err, apierrors.ErrNoMem)
}

func TestOnRegisterAndOnReleaseCallbacks(t *testing.T) {
	var registered, released []Handle
	p := New(2, func(h Handle, value interface{}) {
		registered = append(registered, h)
	}, func(h Handle, value interface{}) {
		released = append(released, h)
	})

	h0, err := p.Register("conn-a")
	require.NoError(t, err)
	require.NoError(t, p.Release(h0))

	assert.Equal(t, []Handle{h0}, registered)
	assert.Equal(t, []Handle{h0}, released)
}
