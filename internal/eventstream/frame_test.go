package eventstream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "github.com/edgecore/edgeagentd/internal/errors"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	f := NewFrame()
	f.SetMessageType(MessageTypeApplicationMessage)
	f.SetStreamID(1)
	f.SetOperation("GetConfiguration")
	f.Payload = []byte(`{"keyPath":["system","thingName"]}`)

	encoded, err := EncodeBytes(f)
	require.NoError(t, err)
	assert.NotEmpty(t, encoded)

	decoded, err := DecodeBytes(encoded)
	require.NoError(t, err)

	mt, ok := decoded.MessageType()
	require.True(t, ok)
	assert.Equal(t, MessageTypeApplicationMessage, mt)

	sid, ok := decoded.StreamID()
	require.True(t, ok)
	assert.Equal(t, int32(1), sid)

	op, ok := decoded.Operation()
	require.True(t, ok)
	assert.Equal(t, "GetConfiguration", op)

	assert.Equal(t, f.Payload, decoded.Payload)
}

func TestDecodeTamperedCRCFails(t *testing.T) {
	f := NewFrame()
	f.SetMessageType(MessageTypeApplicationMessage)
	f.SetStreamID(1)
	f.Payload = []byte(`{"hello":"world"}`)

	encoded, err := EncodeBytes(f)
	require.NoError(t, err)

	tampered := make([]byte, len(encoded))
	copy(tampered, encoded)
	tampered[len(tampered)-5] ^= 0xFF

	_, err = DecodeBytes(tampered)
	require.Error(t, err)
	assert.ErrorIs(t, err, apierrors.ErrParse)
}

func TestConnectAckFlags(t *testing.T) {
	f := NewFrame()
	f.SetMessageType(MessageTypeConnectAck)
	f.SetMessageFlags(FlagConnectionAccepted)
	f.SetSVCUID("abc123")

	assert.Equal(t, FlagConnectionAccepted, f.MessageFlags())
	svcuid, ok := f.SVCUID()
	require.True(t, ok)
	assert.Equal(t, "abc123", svcuid)
}
