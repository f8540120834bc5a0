// Package ipc implements the component-facing IPC broker: a
// dedicated AF_UNIX EventStream socket, separate from the intra-process
// core-bus (internal/corebus), that performs the CONNECT handshake, mints
// per-connection SVCUIDs, authorizes every request, and dispatches the
// recognized component operations.
package ipc

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net"
	"os"
	"sync"
	"time"

	"github.com/edgecore/edgeagentd/internal/arena"
	"github.com/edgecore/edgeagentd/internal/auth/jwt"
	"github.com/edgecore/edgeagentd/internal/authz"
	"github.com/edgecore/edgeagentd/internal/buffer"
	"github.com/edgecore/edgeagentd/internal/config/kv"
	apierrors "github.com/edgecore/edgeagentd/internal/errors"
	"github.com/edgecore/edgeagentd/internal/eventstream"
	"github.com/edgecore/edgeagentd/internal/handlepool"
	"github.com/edgecore/edgeagentd/pkg/logger"
)

// MaxMsgLen is GGL_IPC_MAX_MSG_LEN's default: the size of the broker's
// single shared arena, reused for one inbound frame and then its outbound
// reply in turn.
const MaxMsgLen = 10_000

// ioTimeout is the per-read/write deadline on the IPC socket, matching internal/corebus.IOTimeout.
const ioTimeout = 5 * time.Second

// CloudSession is the MQTT black box PublishToIoTCore / SubscribeToIoTCore
// dispatch onto.
type CloudSession interface {
	Publish(topic string, qos byte, payload []byte) error
	Subscribe(filter string, handler func(topic string, payload []byte)) (unsubscribe func(), err error)
}

// LifecycleChecker reports whether a component name is currently tracked
// by the lifecycle executor (satisfied by *lifecycle.Registry).
type LifecycleChecker interface {
	IsRegistered(name string) bool
}

// Broker is the component-facing IPC server.
type Broker struct {
	path   string
	log    logger.Logger
	svcuid jwt.Generator
	authz  *authz.Engine
	life   LifecycleChecker
	config kv.Client
	bus    *localBus
	cloud  CloudSession

	thingName  string
	rootCAPath string
	rootPath   string

	pool *handlepool.Pool

	// arenaMu serializes the whole request/response cycle: each request's
	// payload and its reply are bump-allocated from the same arena region,
	// so two concurrent requests must not interleave their use of it.
	arenaMu sync.Mutex
	arena   *arena.Arena

	listener net.Listener
	wg       sync.WaitGroup
}

// session is per-connection state keyed by the handle pool slot.
type session struct {
	componentName string
	svcuid        string
	handle        handlepool.Handle
}

// SystemInfo supplies the top-level system keys GetSystemConfig serves
//.
type SystemInfo struct {
	ThingName  string
	RootCAPath string
	RootPath   string
}

// NewBroker creates a Broker. config may be nil only in tests that do not
// exercise GetConfiguration/UpdateConfiguration.
func NewBroker(path string, log logger.Logger, svcuid jwt.Generator, engine *authz.Engine, life LifecycleChecker, config kv.Client, cloud CloudSession, sys SystemInfo) *Broker {
	return &Broker{
		path:       path,
		log:        log,
		svcuid:     svcuid,
		authz:      engine,
		life:       life,
		config:     config,
		bus:        newLocalBus(),
		cloud:      cloud,
		thingName:  sys.ThingName,
		rootCAPath: sys.RootCAPath,
		rootPath:   sys.RootPath,
		pool:       handlepool.New(4096, nil, nil),
		arena:      arena.New(MaxMsgLen),
	}
}

// Serve listens on the broker's socket (mode 0660) until ctx is cancelled.
func (b *Broker) Serve(ctx context.Context) error {
	_ = os.Remove(b.path)
	l, err := net.Listen("unix", b.path)
	if err != nil {
		return apierrors.WrapKind(err, apierrors.ErrFailure, "listen on %s", b.path)
	}
	if err := os.Chmod(b.path, 0o660); err != nil {
		b.log.Warn("failed to set ipc socket mode", logger.String("path", b.path), logger.Error(err))
	}
	b.listener = l

	go func() {
		<-ctx.Done()
		_ = l.Close()
	}()

	for {
		conn, err := l.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				b.wg.Wait()
				return nil
			default:
				return apierrors.WrapKind(err, apierrors.ErrFailure, "accept on %s", b.path)
			}
		}
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			b.serveConn(ctx, conn)
		}()
	}
}

// Path returns the broker's socket path.
func (b *Broker) Path() string { return b.path }

func (b *Broker) serveConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	var writeMu sync.Mutex

	_ = conn.SetReadDeadline(time.Now().Add(ioTimeout))
	frame, err := eventstream.Decode(conn)
	if err != nil {
		return
	}
	mt, _ := frame.MessageType()
	if mt != eventstream.MessageTypeConnect {
		return
	}

	sess, accepted := b.handshake(frame)
	ackFlags := int32(0)
	if accepted {
		ackFlags = eventstream.FlagConnectionAccepted
	}
	ack := eventstream.NewFrame()
	ack.SetMessageType(eventstream.MessageTypeConnectAck)
	ack.SetMessageFlags(ackFlags)
	if accepted {
		ack.SetSVCUID(sess.svcuid)
	}
	_ = conn.SetWriteDeadline(time.Now().Add(ioTimeout))
	_ = eventstream.Encode(conn, ack)
	if !accepted {
		return
	}
	defer b.pool.Release(sess.handle)

	for {
		_ = conn.SetReadDeadline(time.Now().Add(ioTimeout))
		frame, err := eventstream.Decode(conn)
		if err != nil {
			return
		}
		if len(frame.Payload) > MaxMsgLen {
			streamID, _ := frame.StreamID()
			writeErrorDirect(conn, &writeMu, streamID, apierrors.ErrNoMem, "message exceeds GGL_IPC_MAX_MSG_LEN")
			continue
		}

		b.arenaMu.Lock()
		b.arena.Reset()
		region, err := b.arena.Alloc(len(frame.Payload), 1)
		if err != nil {
			b.arenaMu.Unlock()
			streamID, _ := frame.StreamID()
			writeErrorDirect(conn, &writeMu, streamID, apierrors.ErrNoMem, "message exceeds GGL_IPC_MAX_MSG_LEN")
			continue
		}
		vec := buffer.NewByteVector(region)
		_ = vec.Push(frame.Payload)
		frame.Payload = []byte(vec.Bytes())
		b.handleRequest(ctx, conn, &writeMu, sess, frame)
		b.arenaMu.Unlock()
	}
}

func (b *Broker) handshake(frame *eventstream.Frame) (*session, bool) {
	var req struct {
		ComponentName string `json:"componentName"`
	}
	if err := json.Unmarshal(frame.Payload, &req); err != nil || req.ComponentName == "" {
		return nil, false
	}
	if b.life != nil && !b.life.IsRegistered(req.ComponentName) {
		return nil, false
	}

	h, err := b.pool.Register(req.ComponentName)
	if err != nil {
		return nil, false
	}
	token, err := b.svcuid.Generate(req.ComponentName, h.Generation(), h.Slot())
	if err != nil {
		_ = b.pool.Release(h)
		return nil, false
	}
	sess := &session{componentName: req.ComponentName, svcuid: token, handle: h}
	return sess, true
}

// writeResult marshals result, copies it into the broker's shared arena in
// place of the request payload it just finished serving, and writes the
// reply frame. Callers must already hold b.arenaMu (handleRequest's call
// chain does, via serveConn's request loop).
func (b *Broker) writeResult(conn net.Conn, writeMu *sync.Mutex, streamID int32, result interface{}) {
	payload, err := json.Marshal(result)
	if err != nil {
		payload = []byte(`{}`)
	}
	encodeResultFrame(conn, writeMu, streamID, b.throughArena(payload))
}

// writeError is writeResult's error-frame counterpart.
func (b *Broker) writeError(conn net.Conn, writeMu *sync.Mutex, streamID int32, err error, message string) {
	payload, _ := json.Marshal(map[string]string{
		"_errorCode": apierrors.KindString(err),
		"_message":   message,
	})
	encodeErrorFrame(conn, writeMu, streamID, b.throughArena(payload))
}

// throughArena resets the broker's shared arena and bump-allocates payload's
// bytes from it, reusing the inbound frame's budget for the outbound reply.
// A reply too large to fit falls back to its own heap copy rather than
// failing the write outright.
func (b *Broker) throughArena(payload []byte) []byte {
	b.arena.Reset()
	region, err := b.arena.Alloc(len(payload), 1)
	if err != nil {
		return payload
	}
	vec := buffer.NewByteVector(region)
	_ = vec.Push(payload)
	return []byte(vec.Bytes())
}

// encodeResultFrame and encodeErrorFrame build and write an already-prepared
// payload as an APPLICATION_MESSAGE/APPLICATION_ERROR frame, independent of
// any arena: used both by the arena-backed request path above and by
// subStream.push, whose async subscription events run outside a request's
// arena-locked span and so must not share its buffer.
func encodeResultFrame(conn net.Conn, writeMu *sync.Mutex, streamID int32, payload []byte) {
	f := eventstream.NewFrame()
	f.SetMessageType(eventstream.MessageTypeApplicationMessage)
	f.SetStreamID(streamID)
	f.Payload = payload

	writeMu.Lock()
	defer writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(ioTimeout))
	_ = eventstream.Encode(conn, f)
}

func encodeErrorFrame(conn net.Conn, writeMu *sync.Mutex, streamID int32, payload []byte) {
	f := eventstream.NewFrame()
	f.SetMessageType(eventstream.MessageTypeApplicationError)
	f.SetStreamID(streamID)
	f.Payload = payload

	writeMu.Lock()
	defer writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(ioTimeout))
	_ = eventstream.Encode(conn, f)
}

// writeErrorDirect reports a rejection that happens before a request enters
// the arena-locked span (e.g. an oversized frame) without touching the
// shared arena.
func writeErrorDirect(conn net.Conn, writeMu *sync.Mutex, streamID int32, err error, message string) {
	payload, _ := json.Marshal(map[string]string{
		"_errorCode": apierrors.KindString(err),
		"_message":   message,
	})
	encodeErrorFrame(conn, writeMu, streamID, payload)
}

// subStream is the subset of functionality an active subscription needs
// from its connection to push events.
type subStream struct {
	conn     net.Conn
	writeMu  *sync.Mutex
	streamID int32
}

func (s *subStream) push(payload interface{}) {
	b, err := json.Marshal(payload)
	if err != nil {
		return
	}
	encodeResultFrame(s.conn, s.writeMu, s.streamID, b)
}

func base64Decode(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, apierrors.WrapKind(err, apierrors.ErrInvalid, "decode base64 payload")
	}
	return b, nil
}

func base64Encode(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}
