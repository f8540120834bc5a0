package tes

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	apierrors "github.com/edgecore/edgeagentd/internal/errors"
	"github.com/edgecore/edgeagentd/pkg/logger"
)

// readHeaderTimeout guards against slow-loris connections on the loopback
// listener, matching the 5 s socket-I/O ceiling used elsewhere.
const readHeaderTimeout = 5 * time.Second

// Server is the loopback HTTP credential vendor components reach via
// AWS_CONTAINER_CREDENTIALS_FULL_URI. It is deliberately built on net/http
// rather than gin: a single GET route behind a trust boundary that never
// faces the network gains nothing from a router/middleware stack, unlike
// the public-facing debug API (internal/debugapi).
type Server struct {
	cache    *Cache
	log      logger.Logger
	listener net.Listener
	srv      *http.Server
}

// NewServer creates a Server bound to a loopback address. Pass "127.0.0.1:0"
// to let the OS choose a port, then read it back via Addr().
func NewServer(addr string, cache *Cache, log logger.Logger) (*Server, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, apierrors.WrapKind(err, apierrors.ErrFailure, "listen on %s", addr)
	}

	s := &Server{cache: cache, log: log, listener: l}
	mux := http.NewServeMux()
	mux.HandleFunc(CredentialPath, s.handleCredentials)
	s.srv = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return s, nil
}

// Addr returns the listener's bound address, e.g. "127.0.0.1:51234".
func (s *Server) Addr() string { return s.listener.Addr().String() }

// Serve blocks, serving requests until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = s.srv.Close()
	}()
	err := s.srv.Serve(s.listener)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// handleCredentials serves the AWS container-credentials document for the
// caller identified by its Authorization header, per the
// AWS_CONTAINER_CREDENTIALS_FULL_URI / AWS_CONTAINER_AUTHORIZATION_TOKEN
// contract.
func (s *Server) handleCredentials(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	authToken := strings.TrimSpace(r.Header.Get("Authorization"))
	if authToken == "" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	// The presented token doubles as the cache key: a component only ever
	// has one valid authorization token at a time, minted alongside its
	// SVCUID at IPC handshake (internal/ipc.handshake).
	creds, err := s.cache.Get(r.Context(), authToken, authToken)
	if err != nil {
		if s.log != nil {
			s.log.Warn("TES credential fetch failed", logger.Error(err))
		}
		w.WriteHeader(http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(creds)
}
