package corebus

import (
	"context"
	"encoding/json"
	"net"
	"sync"
	"sync/atomic"
	"time"

	apierrors "github.com/edgecore/edgeagentd/internal/errors"
	"github.com/edgecore/edgeagentd/internal/eventstream"
)

// Client is a core-bus client connection to one address. One Client may
// multiplex many concurrent Calls and Subscriptions over its single
// connection, each on its own stream id.
type Client struct {
	conn     net.Conn
	writeMu  sync.Mutex
	streamID int32

	mu        sync.Mutex
	pending   map[int32]chan *eventstream.Frame
	subs      map[int32]func(*eventstream.Frame)
	closeOnce sync.Once
	closed    chan struct{}
}

// Dial connects to addr via table, starting a background reader that
// demultiplexes responses and subscription events by stream id.
func Dial(table *AddressTable, addr Address) (*Client, error) {
	path := table.Resolve(addr)
	conn, err := net.Dial("unix", path)
	if err != nil {
		return nil, apierrors.WrapKind(err, apierrors.ErrNoConn, "dial %s", path)
	}
	c := &Client{
		conn:    conn,
		pending: make(map[int32]chan *eventstream.Frame),
		subs:    make(map[int32]func(*eventstream.Frame)),
		closed:  make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) readLoop() {
	for {
		frame, err := eventstream.Decode(c.conn)
		if err != nil {
			close(c.closed)
			return
		}
		streamID, _ := frame.StreamID()

		c.mu.Lock()
		if ch, ok := c.pending[streamID]; ok {
			delete(c.pending, streamID)
			c.mu.Unlock()
			ch <- frame
			continue
		}
		if fn, ok := c.subs[streamID]; ok {
			c.mu.Unlock()
			fn(frame)
			continue
		}
		c.mu.Unlock()
	}
}

func (c *Client) nextStreamID() int32 {
	return atomic.AddInt32(&c.streamID, 1)
}

func (c *Client) send(op string, streamID int32, params interface{}) error {
	payload, err := json.Marshal(params)
	if err != nil {
		return apierrors.WrapKind(err, apierrors.ErrInvalid, "marshal params")
	}
	f := eventstream.NewFrame()
	f.SetMessageType(eventstream.MessageTypeApplicationMessage)
	f.SetStreamID(streamID)
	f.SetOperation(op)
	f.Payload = payload

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(IOTimeout))
	return eventstream.Encode(c.conn, f)
}

// Call issues a synchronous request/response, decoding the JSON result into
// out (a pointer), or returning ErrRemote wrapping the peer's error kind.
func (c *Client) Call(ctx context.Context, method string, args interface{}, out interface{}) error {
	streamID := c.nextStreamID()
	ch := make(chan *eventstream.Frame, 1)

	c.mu.Lock()
	c.pending[streamID] = ch
	c.mu.Unlock()

	if err := c.send(method, streamID, args); err != nil {
		c.mu.Lock()
		delete(c.pending, streamID)
		c.mu.Unlock()
		return err
	}

	select {
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, streamID)
		c.mu.Unlock()
		return apierrors.WrapKind(ctx.Err(), apierrors.ErrNoConn, "call %s", method)
	case <-c.closed:
		return apierrors.WrapKind(apierrors.New("connection closed"), apierrors.ErrNoConn, "call %s", method)
	case frame := <-ch:
		if mt, _ := frame.MessageType(); mt == eventstream.MessageTypeApplicationError {
			var e struct {
				ErrorCode string `json:"_errorCode"`
				Message   string `json:"_message"`
			}
			_ = json.Unmarshal(frame.Payload, &e)
			kind := apierrors.KindFromString(e.ErrorCode)
			return apierrors.WrapKind(kind, apierrors.ErrRemote, "%s: %s", method, e.Message)
		}
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(frame.Payload, out); err != nil {
			return apierrors.WrapKind(err, apierrors.ErrParse, "decode %s result", method)
		}
		return nil
	}
}

// Notify issues a fire-and-forget request with no response.
func (c *Client) Notify(method string, args interface{}) error {
	return c.send(method, c.nextStreamID(), args)
}

// Subscribe issues a subscribe request; onEvent is called for every pushed
// event, onClose when the stream ends. Returns an unsubscribe function.
func (c *Client) Subscribe(method string, args interface{}, onEvent func(payload json.RawMessage), onClose func()) (func(), error) {
	streamID := c.nextStreamID()

	c.mu.Lock()
	c.subs[streamID] = func(frame *eventstream.Frame) {
		if mt, _ := frame.MessageType(); mt == eventstream.MessageTypeApplicationError {
			onClose()
			return
		}
		onEvent(frame.Payload)
	}
	c.mu.Unlock()

	if err := c.send(method, streamID, args); err != nil {
		c.mu.Lock()
		delete(c.subs, streamID)
		c.mu.Unlock()
		return nil, err
	}

	return func() {
		c.mu.Lock()
		delete(c.subs, streamID)
		c.mu.Unlock()
	}, nil
}

// Close closes the client's connection.
func (c *Client) Close() error {
	c.closeOnce.Do(func() { _ = c.conn.Close() })
	return nil
}
