// Package bridge exposes a client.Manager to browser UIs over WebSocket.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/crypto/bcrypt"

	"github.com/lawnchairsociety/tlcsview/internal/client"
	"github.com/lawnchairsociety/tlcsview/internal/config"
	"github.com/lawnchairsociety/tlcsview/internal/logger"
	"github.com/lawnchairsociety/tlcsview/internal/metrics"
	"github.com/lawnchairsociety/tlcsview/internal/protocol"
)

const bcryptCost = 12

// Relay is the part of client.Manager the bridge drives.
type Relay interface {
	Subscribe() *client.Subscription
	Status() (client.Status, string)
	Snapshot() client.Snapshot
	Connect(ctx context.Context, cfg client.ConnectionConfig) error
	Disconnect() error
	Reconnect(ctx context.Context) error
	SendAction(action protocol.Action) error
	SetAutoReconnect(enabled bool)
}

// Server serves /ws, /healthz and optionally /metrics.
type Server struct {
	cfg     config.BridgeConfig
	relay   Relay
	metrics *metrics.Collector

	conns  *connLimiter
	tokens *tokenLimiter

	mu      sync.Mutex
	clients map[string]*wsClient

	httpServer   *http.Server
	closed       bool
	shutdownOnce sync.Once
}

// New creates a bridge for relay. collector may be nil.
func New(cfg config.BridgeConfig, relay Relay, collector *metrics.Collector) *Server {
	return &Server{
		cfg:     cfg,
		relay:   relay,
		metrics: collector,
		conns:   newConnLimiter(cfg.MaxClients, cfg.MaxClientsPerIP),
		tokens:  newTokenLimiter(cfg.TokenLockout),
		clients: make(map[string]*wsClient),
	}
}

// HashToken returns the bcrypt hash to store as bridge.token_hash.
func HashToken(token string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash token: %w", err)
	}
	return string(hash), nil
}

// Handler returns the bridge's HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocketUpgrade)
	mux.HandleFunc("/healthz", s.handleHealth)
	if s.cfg.MetricsEnabled && s.metrics != nil {
		mux.Handle("/metrics", s.metrics.Handler())
	}
	return mux
}

// ListenAndServe serves on the configured address until Shutdown.
func (s *Server) ListenAndServe() error {
	listener, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return fmt.Errorf("failed to start bridge: %w", err)
	}
	return s.Serve(listener)
}

// Serve serves on listener until Shutdown.
func (s *Server) Serve(listener net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		listener.Close()
		return nil
	}
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.httpServer
	s.mu.Unlock()

	logger.Info("WebSocket bridge listening", "address", listener.Addr().String())
	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the HTTP server and closes every bridge client.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		srv := s.httpServer
		clients := make([]*wsClient, 0, len(s.clients))
		for _, c := range s.clients {
			clients = append(clients, c)
		}
		s.mu.Unlock()

		s.tokens.Stop()
		if srv != nil {
			err = srv.Shutdown(ctx)
		}
		for _, c := range clients {
			c.close()
		}
		logger.Info("WebSocket bridge shutdown complete")
	})
	return err
}

// ClientCount returns the number of open bridge connections.
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, _ := s.relay.Status()
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "ok %s\n", status)
}

// authorized checks the bearer token against the configured bcrypt hash.
// The token may also be passed as ?token= since browsers cannot set
// headers on WebSocket requests.
func (s *Server) authorized(r *http.Request) bool {
	if s.cfg.TokenHash == "" {
		return true
	}
	token := r.URL.Query().Get("token")
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		token = strings.TrimPrefix(auth, "Bearer ")
	}
	if token == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(s.cfg.TokenHash), []byte(token)) == nil
}

func (s *Server) handleWebSocketUpgrade(w http.ResponseWriter, r *http.Request) {
	ip := extractIP(r.RemoteAddr)

	if s.cfg.TokenHash != "" {
		if locked, remaining := s.tokens.IsLocked(ip); locked {
			w.Header().Set("Retry-After", strconv.Itoa(int(remaining.Seconds())+1))
			http.Error(w, "too many failed attempts", http.StatusTooManyRequests)
			return
		}
		if !s.authorized(r) {
			locked, lockout := s.tokens.RecordFailure(ip)
			if locked {
				logger.Warning("Bridge address locked out after bad tokens", "ip", ip, "lockout", lockout)
			} else {
				logger.Warning("Bridge connection rejected - bad token", "remote_addr", r.RemoteAddr)
			}
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		s.tokens.RecordSuccess(ip)
	}

	if !s.conns.TryAcquire(ip) {
		total, ips := s.conns.Stats()
		logger.Warning("Bridge connection rejected - connection limit",
			"ip", ip,
			"open", total,
			"distinct_ips", ips)
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			allowed := s.cfg.IsOriginAllowed(origin, r.Host)
			if !allowed {
				logger.Warning("Bridge connection rejected - origin not allowed",
					"origin", origin,
					"host", r.Host,
					"remote_addr", r.RemoteAddr)
			}
			return allowed
		},
	}

	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.conns.Release(ip)
		logger.Error("WebSocket upgrade failed", "error", err)
		return
	}

	c := newWSClient(s, wsConn)
	s.mu.Lock()
	s.clients[c.id] = c
	s.mu.Unlock()
	s.metrics.BridgeClientOpened()

	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.clients, c.id)
			s.mu.Unlock()
			s.conns.Release(ip)
			s.metrics.BridgeClientClosed()
		}()
		c.run()
	}()
}
