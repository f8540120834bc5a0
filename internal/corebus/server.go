// Package corebus implements the intra-process RPC transport used by every
// subsystem to exchange calls, notifications, and subscriptions over local
// AF_UNIX stream sockets, framed with internal/eventstream.
//
// Go's net package already returns EPIPE as a write error on a closed
// socket rather than raising SIGPIPE, so there is no Go-side action needed
// to ignore SIGPIPE before a socket is created.
package corebus

import (
	"context"
	"encoding/json"
	"net"
	"os"
	"sync"
	"time"

	apierrors "github.com/edgecore/edgeagentd/internal/errors"
	"github.com/edgecore/edgeagentd/internal/eventstream"
	"github.com/edgecore/edgeagentd/internal/handlepool"
	"github.com/edgecore/edgeagentd/pkg/logger"
)

// IOTimeout is the per-read/write deadline on a socket.
const IOTimeout = 5 * time.Second

// Handler processes a synchronous call. It MUST terminate by returning a
// result or an error; the server encodes the response frame.
type Handler func(ctx context.Context, params json.RawMessage) (interface{}, error)

// SubscriptionHandler processes a subscribe request. It MUST terminate by
// either returning an error (the subscription is rejected) or accepting the
// stream and returning; events are then pushed via the returned Stream
// until the handler calls Close or the peer disconnects.
type SubscriptionHandler func(ctx context.Context, params json.RawMessage, stream *Stream) error

type methodEntry struct {
	name      string
	isSub     bool
	handler   Handler
	subHandler SubscriptionHandler
}

// Server owns one UDS listener for one core-bus address and dispatches
// incoming frames to registered method handlers. One goroutine per
// connection substitutes for epoll-style readiness multiplexing, while
// still serializing writes per connection.
type Server struct {
	addr     Address
	path     string
	log      logger.Logger
	listener net.Listener

	mu       sync.RWMutex
	methods  map[string]methodEntry

	pool *handlepool.Pool

	wg sync.WaitGroup
}

// NewServer creates a Server for addr, resolving its socket path via table.
func NewServer(addr Address, table *AddressTable, log logger.Logger) *Server {
	return &Server{
		addr:    addr,
		path:    table.Resolve(addr),
		log:     log,
		methods: make(map[string]methodEntry),
		pool:    handlepool.New(1024, nil, nil),
	}
}

// Register adds a synchronous call handler for method.
func (s *Server) Register(method string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.methods[method] = methodEntry{name: method, handler: h}
}

// RegisterSubscription adds a subscription handler for method.
func (s *Server) RegisterSubscription(method string, h SubscriptionHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.methods[method] = methodEntry{name: method, isSub: true, subHandler: h}
}

// Serve listens on the server's socket path (mode 0660) and accepts
// connections until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	_ = os.Remove(s.path)
	l, err := net.Listen("unix", s.path)
	if err != nil {
		return apierrors.WrapKind(err, apierrors.ErrFailure, "listen on %s", s.path)
	}
	if err := os.Chmod(s.path, 0o660); err != nil {
		s.log.Warn("failed to set socket mode", logger.String("path", s.path), logger.Error(err))
	}
	s.listener = l

	go func() {
		<-ctx.Done()
		_ = l.Close()
	}()

	for {
		conn, err := l.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				s.wg.Wait()
				return nil
			default:
				return apierrors.WrapKind(err, apierrors.ErrFailure, "accept on %s", s.path)
			}
		}
		handle, err := s.pool.Register(conn)
		if err != nil {
			s.log.Warn("rejecting connection, handle pool exhausted", logger.Error(err))
			conn.Close()
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.pool.Release(handle)
			s.serveConn(ctx, conn, handle)
		}()
	}
}

// Address returns the server's core-bus address.
func (s *Server) Address() Address { return s.addr }

// Path returns the server's socket path.
func (s *Server) Path() string { return s.path }

func (s *Server) serveConn(ctx context.Context, conn net.Conn, handle handlepool.Handle) {
	defer conn.Close()
	var writeMu sync.Mutex

	for {
		_ = conn.SetReadDeadline(time.Now().Add(IOTimeout))
		frame, err := eventstream.Decode(conn)
		if err != nil {
			s.log.Debug("connection closed", logger.Int("slot", int(handle.Slot())))
			return
		}

		op, _ := frame.Operation()
		streamID, _ := frame.StreamID()

		s.mu.RLock()
		entry, ok := s.methods[op]
		s.mu.RUnlock()

		if !ok {
			writeError(conn, &writeMu, streamID, apierrors.ErrNoEntry, "unknown method "+op)
			continue
		}

		if entry.isSub {
			stream := newStream(conn, &writeMu, streamID)
			if err := entry.subHandler(ctx, frame.Payload, stream); err != nil {
				writeError(conn, &writeMu, streamID, err, "subscription rejected")
			}
			continue
		}

		result, err := entry.handler(ctx, frame.Payload)
		if err != nil {
			writeError(conn, &writeMu, streamID, err, "call failed")
			continue
		}
		writeResult(conn, &writeMu, streamID, result)
	}
}

func writeResult(conn net.Conn, writeMu *sync.Mutex, streamID int32, result interface{}) {
	payload, err := json.Marshal(result)
	if err != nil {
		payload = []byte(`{}`)
	}
	f := eventstream.NewFrame()
	f.SetMessageType(eventstream.MessageTypeApplicationMessage)
	f.SetStreamID(streamID)
	f.Payload = payload

	writeMu.Lock()
	defer writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(IOTimeout))
	_ = eventstream.Encode(conn, f)
}

func writeError(conn net.Conn, writeMu *sync.Mutex, streamID int32, err error, message string) {
	payload, _ := json.Marshal(map[string]string{
		"_errorCode": apierrors.KindString(err),
		"_message":   message,
	})
	f := eventstream.NewFrame()
	f.SetMessageType(eventstream.MessageTypeApplicationError)
	f.SetStreamID(streamID)
	f.Payload = payload

	writeMu.Lock()
	defer writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(IOTimeout))
	_ = eventstream.Encode(conn, f)
}

// Stream represents one subscription's outbound event channel. Events are
// written atomically under the connection's write lock so concurrent
// handlers on the same connection cannot interleave bytes.
type Stream struct {
	conn     net.Conn
	writeMu  *sync.Mutex
	streamID int32
	closed   bool
}

func newStream(conn net.Conn, writeMu *sync.Mutex, streamID int32) *Stream {
	return &Stream{conn: conn, writeMu: writeMu, streamID: streamID}
}

// PushEvent sends one APPLICATION_MESSAGE event on the subscription's
// stream id.
func (st *Stream) PushEvent(payload interface{}) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return apierrors.WrapKind(err, apierrors.ErrInvalid, "marshal event payload")
	}
	f := eventstream.NewFrame()
	f.SetMessageType(eventstream.MessageTypeApplicationMessage)
	f.SetStreamID(st.streamID)
	f.Payload = b

	st.writeMu.Lock()
	defer st.writeMu.Unlock()
	_ = st.conn.SetWriteDeadline(time.Now().Add(IOTimeout))
	return eventstream.Encode(st.conn, f)
}

// Close tears down the stream's underlying connection.
func (st *Stream) Close() error {
	st.closed = true
	return st.conn.Close()
}
