// Package mqttsession is the paho.mqtt.golang-backed adapter the rest of
// the agent treats as "the cloud MQTT session": connection
// lifecycle, publish, and subscribe, with every client-library callback
// posted onto a bounded queue and drained on a dedicated goroutine rather
// than run inline on paho's own connection thread.
package mqttsession

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	apierrors "github.com/edgecore/edgeagentd/internal/errors"
	"github.com/edgecore/edgeagentd/pkg/logger"
)

// callbackQueueDepth bounds the pending-callback channel; a client library
// thread that fills it blocks rather than growing memory without limit.
const callbackQueueDepth = 256

// connectTimeout bounds how long Connect waits for the initial handshake.
const connectTimeout = 15 * time.Second

// Config is the connection and mTLS material needed to dial the IoT Core
// data endpoint.
type Config struct {
	ThingName        string
	Endpoint         string // host[:port], defaults to :8883
	RootCAPath       string
	CertificatePath  string
	PrivateKeyPath   string
	ClientIDOverride string
}

// Session wraps a paho MQTT client, serializing every inbound callback
// (connect, connection-lost, message arrival) through one queue so
// application code never runs on paho's own goroutines.
type Session struct {
	cfg    Config
	log    logger.Logger
	client mqtt.Client

	mu               sync.Mutex
	onConnect        func(first bool)
	onConnectionLost func(error)
	connectedOnce    bool

	callbacks chan func()
	stop      chan struct{}
	stopOnce  sync.Once
}

// New builds a Session and its underlying paho client, but does not dial
// the broker; call Connect to do that.
func New(cfg Config, log logger.Logger) (*Session, error) {
	tlsConfig, err := buildTLSConfig(cfg)
	if err != nil {
		return nil, err
	}

	s := &Session{
		cfg:       cfg,
		log:       log,
		callbacks: make(chan func(), callbackQueueDepth),
		stop:      make(chan struct{}),
	}

	clientID := cfg.ClientIDOverride
	if clientID == "" {
		clientID = cfg.ThingName
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL(cfg.Endpoint))
	opts.SetClientID(clientID)
	opts.SetTLSConfig(tlsConfig)
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(false)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		s.enqueue(s.handleConnect)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		s.enqueue(func() { s.handleConnectionLost(err) })
	})

	s.client = mqtt.NewClient(opts)
	go s.drainCallbacks()
	return s, nil
}

func brokerURL(endpoint string) string {
	if endpoint == "" {
		return "ssl://localhost:8883"
	}
	return fmt.Sprintf("ssl://%s", endpoint)
}

func buildTLSConfig(cfg Config) (*tls.Config, error) {
	pool := x509.NewCertPool()
	caPEM, err := os.ReadFile(cfg.RootCAPath)
	if err != nil {
		return nil, apierrors.WrapKind(err, apierrors.ErrFailure, "read root CA %s", cfg.RootCAPath)
	}
	if !pool.AppendCertsFromPEM(caPEM) {
		return nil, apierrors.WrapKind(fmt.Errorf("no certificates parsed"), apierrors.ErrInvalid, "parse root CA %s", cfg.RootCAPath)
	}

	cert, err := tls.LoadX509KeyPair(cfg.CertificatePath, cfg.PrivateKeyPath)
	if err != nil {
		return nil, apierrors.WrapKind(err, apierrors.ErrFailure, "load device certificate/key")
	}

	return &tls.Config{
		RootCAs:      pool,
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// drainCallbacks is the single goroutine every paho callback is funneled
// through.
func (s *Session) drainCallbacks() {
	for {
		select {
		case fn := <-s.callbacks:
			fn()
		case <-s.stop:
			return
		}
	}
}

func (s *Session) enqueue(fn func()) {
	select {
	case s.callbacks <- fn:
	case <-s.stop:
	}
}

func (s *Session) handleConnect() {
	s.mu.Lock()
	first := !s.connectedOnce
	s.connectedOnce = true
	cb := s.onConnect
	s.mu.Unlock()

	if s.log != nil {
		if first {
			s.log.Info("mqtt session connected (initial)")
		} else {
			s.log.Info("mqtt session reconnected")
		}
	}
	if cb != nil {
		cb(first)
	}
}

func (s *Session) handleConnectionLost(err error) {
	if s.log != nil {
		s.log.Warn("mqtt connection lost", logger.Error(err))
	}
	s.mu.Lock()
	cb := s.onConnectionLost
	s.mu.Unlock()
	if cb != nil {
		cb(err)
	}
}

// OnConnect registers fn to run (on the callback-drain goroutine) every
// time the session establishes or re-establishes a connection; first is
// true only for the very first successful connect. The fleet status
// publisher uses this to distinguish NUCLEUS_LAUNCH from RECONNECT
//.
func (s *Session) OnConnect(fn func(first bool)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onConnect = fn
}

// OnConnectionLost registers fn to run when the broker connection drops.
func (s *Session) OnConnectionLost(fn func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onConnectionLost = fn
}

// Connect dials the broker and blocks until the handshake completes or the
// wait times out: at ctx's deadline if it has one, otherwise after
// connectTimeout. Cancelling ctx does not end the wait early.
func (s *Session) Connect(ctx context.Context) error {
	token := s.client.Connect()
	deadline, hasDeadline := ctx.Deadline()
	var waited bool
	if hasDeadline {
		waited = token.WaitTimeout(time.Until(deadline))
	} else {
		waited = token.WaitTimeout(connectTimeout)
	}
	if !waited {
		return apierrors.WrapKind(fmt.Errorf("timed out"), apierrors.ErrFailure, "mqtt connect")
	}
	if err := token.Error(); err != nil {
		return apierrors.WrapKind(err, apierrors.ErrFailure, "mqtt connect")
	}
	return nil
}

// Close disconnects the client and stops the callback-drain goroutine.
func (s *Session) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
	if s.client != nil && s.client.IsConnected() {
		s.client.Disconnect(250)
	}
}

// Publish implements internal/ipc.CloudSession, backing PublishToIoTCore.
func (s *Session) Publish(topic string, qos byte, payload []byte) error {
	token := s.client.Publish(topic, qos, false, payload)
	token.Wait()
	if err := token.Error(); err != nil {
		return apierrors.WrapKind(err, apierrors.ErrFailure, "publish to %s", topic)
	}
	return nil
}

// Subscribe implements internal/ipc.CloudSession, backing
// SubscribeToIoTCore. The handler is invoked on the callback-drain
// goroutine, never on paho's own thread.
func (s *Session) Subscribe(filter string, handler func(topic string, payload []byte)) (func(), error) {
	token := s.client.Subscribe(filter, 1, func(_ mqtt.Client, msg mqtt.Message) {
		topic := msg.Topic()
		payload := append([]byte(nil), msg.Payload()...)
		s.enqueue(func() { handler(topic, payload) })
	})
	token.Wait()
	if err := token.Error(); err != nil {
		return nil, apierrors.WrapKind(err, apierrors.ErrFailure, "subscribe to %s", filter)
	}

	unsubscribe := func() {
		unsubToken := s.client.Unsubscribe(filter)
		unsubToken.Wait()
	}
	return unsubscribe, nil
}
