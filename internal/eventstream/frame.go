// Package eventstream wraps aws-sdk-go-v2's eventstream wire codec
// (prelude / headers / payload / CRC-32) with the domain-specific header
// set used by the core-bus and IPC wire protocol: :message-type,
// :message-flags, :stream-id, operation, service-model-type, svcuid.
//
// The underlying library already implements the AWS EventStream framing
// byte-for-byte (12-byte prelude, CRC-32 IEEE with correct OR-assembly of
// big-endian integers), so this package is a thin typed wrapper rather than
// a reimplementation of the wire format.
package eventstream

import (
	"bytes"
	"io"

	awses "github.com/aws/aws-sdk-go-v2/aws/protocol/eventstream"

	apierrors "github.com/edgecore/edgeagentd/internal/errors"
)

// Message types used on the core-bus and IPC wire protocol.
const (
	MessageTypeApplicationMessage int32 = 0
	MessageTypeApplicationError   int32 = 1
	MessageTypePing               int32 = 2
	MessageTypePingResponse       int32 = 3
	MessageTypeConnect            int32 = 4
	MessageTypeConnectAck         int32 = 5
)

// Message-flags bits.
const (
	FlagConnectionAccepted int32 = 1
	FlagTerminateStream    int32 = 1
)

// Common header names.
const (
	HeaderMessageType      = ":message-type"
	HeaderMessageFlags     = ":message-flags"
	HeaderStreamID         = ":stream-id"
	HeaderOperation        = "operation"
	HeaderServiceModelType = "service-model-type"
	HeaderSVCUID           = "svcuid"
)

// Frame is a decoded or to-be-encoded EventStream message: an ordered
// header list plus a payload. A decoded Frame holds its own copy of the
// bytes; it does not share storage with the input it was decoded from.
type Frame struct {
	Headers awses.Headers
	Payload []byte
}

// NewFrame creates an empty frame ready to have headers set on it.
func NewFrame() *Frame {
	return &Frame{}
}

// SetInt32 sets an INT32-typed header, replacing any existing header of the
// same name.
func (f *Frame) SetInt32(name string, v int32) {
	f.Headers.Set(name, awses.Int32Value(v))
}

// SetString sets a STRING-typed header, replacing any existing header of
// the same name.
func (f *Frame) SetString(name string, v string) {
	f.Headers.Set(name, awses.StringValue(v))
}

// GetInt32 returns a header's value as int32, with ok=false if the header
// is absent or not INT32-typed.
func (f *Frame) GetInt32(name string) (int32, bool) {
	h := f.Headers.Get(name)
	if h == nil {
		return 0, false
	}
	v, ok := h.Get().(int32)
	return v, ok
}

// GetString returns a header's value as a string, with ok=false if the
// header is absent or not STRING-typed.
func (f *Frame) GetString(name string) (string, bool) {
	h := f.Headers.Get(name)
	if h == nil {
		return "", false
	}
	v, ok := h.Get().(string)
	return v, ok
}

// MessageType returns the frame's :message-type header.
func (f *Frame) MessageType() (int32, bool) { return f.GetInt32(HeaderMessageType) }

// SetMessageType sets the frame's :message-type header.
func (f *Frame) SetMessageType(t int32) { f.SetInt32(HeaderMessageType, t) }

// MessageFlags returns the frame's :message-flags header, defaulting to 0
// if absent.
func (f *Frame) MessageFlags() int32 {
	v, ok := f.GetInt32(HeaderMessageFlags)
	if !ok {
		return 0
	}
	return v
}

// SetMessageFlags sets the frame's :message-flags header.
func (f *Frame) SetMessageFlags(flags int32) { f.SetInt32(HeaderMessageFlags, flags) }

// StreamID returns the frame's :stream-id header.
func (f *Frame) StreamID() (int32, bool) { return f.GetInt32(HeaderStreamID) }

// SetStreamID sets the frame's :stream-id header.
func (f *Frame) SetStreamID(id int32) { f.SetInt32(HeaderStreamID, id) }

// Operation returns the frame's operation header.
func (f *Frame) Operation() (string, bool) { return f.GetString(HeaderOperation) }

// SetOperation sets the frame's operation header.
func (f *Frame) SetOperation(op string) { f.SetString(HeaderOperation, op) }

// ServiceModelType returns the frame's service-model-type header.
func (f *Frame) ServiceModelType() (string, bool) { return f.GetString(HeaderServiceModelType) }

// SetServiceModelType sets the frame's service-model-type header.
func (f *Frame) SetServiceModelType(t string) { f.SetString(HeaderServiceModelType, t) }

// SVCUID returns the frame's svcuid header.
func (f *Frame) SVCUID() (string, bool) { return f.GetString(HeaderSVCUID) }

// SetSVCUID sets the frame's svcuid header.
func (f *Frame) SetSVCUID(id string) { f.SetString(HeaderSVCUID, id) }

// Encode writes frame to w in EventStream wire format: prelude, headers,
// payload, and both CRCs, filled in by the underlying codec.
func Encode(w io.Writer, f *Frame) error {
	enc := awses.NewEncoder()
	msg := awses.Message{Headers: f.Headers, Payload: f.Payload}
	if err := enc.Encode(w, msg); err != nil {
		return apierrors.WrapKind(err, apierrors.ErrRange, "encoding eventstream frame")
	}
	return nil
}

// EncodeBytes is a convenience wrapper over Encode that returns the
// serialized frame as a byte slice.
func EncodeBytes(f *Frame) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, f); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode reads one frame from r, validating both CRCs and all header type
// tags before returning. A prelude or message CRC mismatch, or an
// unsupported header type tag, surfaces as ErrParse — the frame is
// malformed by definition, never silently repaired.
func Decode(r io.Reader) (*Frame, error) {
	dec := awses.NewDecoder()
	msg, err := dec.Decode(r, nil)
	if err != nil {
		return nil, apierrors.WrapKind(err, apierrors.ErrParse, "decoding eventstream frame")
	}
	return &Frame{Headers: msg.Headers, Payload: msg.Payload}, nil
}

// DecodeBytes decodes a single frame out of a byte slice. The frame is read
// through a bytes.Reader, so its payload is a copy and does not alias data.
func DecodeBytes(data []byte) (*Frame, error) {
	return Decode(bytes.NewReader(data))
}
