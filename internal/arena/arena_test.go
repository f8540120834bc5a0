package arena

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "github.com/edgecore/edgeagentd/internal/errors"
)

func TestArenaAllocAndReset(t *testing.T) {
	a := New(16)

	b1, err := a.Alloc(8, 1)
	require.NoError(t, err)
	assert.Len(t, b1, 8)

	b2, err := a.Alloc(8, 1)
	require.NoError(t, err)
	assert.Len(t, b2, 8)

	_, err = a.Alloc(1, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, apierrors.ErrNoMem)

	a.Reset()
	b3, err := a.Alloc(16, 1)
	require.NoError(t, err)
	assert.Len(t, b3, 16)
}

func TestArenaAlignment(t *testing.T) {
	a := New(32)

	_, err := a.Alloc(3, 1)
	require.NoError(t, err)

	b, err := a.Alloc(4, 4)
	require.NoError(t, err)
	assert.Len(t, b, 4)
}

func TestArenaRewind(t *testing.T) {
	a := New(16)

	cursor := a.Cursor()
	_, err := a.Alloc(8, 1)
	require.NoError(t, err)

	require.NoError(t, a.Rewind(cursor))
	assert.Equal(t, cursor, a.Cursor())

	_, err = a.Alloc(16, 1)
	require.NoError(t, err)
}

func TestArenaRewindRejectsFutureCursor(t *testing.T) {
	a := New(16)
	err := a.Rewind(8)
	require.Error(t, err)
	assert.ErrorIs(t, err, apierrors.ErrInvalid)
}
