// Package client maintains the connection to a TLCS relay and turns its
// line stream into status and game-state events.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lawnchairsociety/tlcsview/internal/game"
	"github.com/lawnchairsociety/tlcsview/internal/logger"
	"github.com/lawnchairsociety/tlcsview/internal/metrics"
	"github.com/lawnchairsociety/tlcsview/internal/protocol"
)

const readBufferSize = 4096

// Dialer opens the relay socket. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Option configures a Manager.
type Option func(*Manager)

// WithMetrics records manager activity on the collector.
func WithMetrics(c *metrics.Collector) Option {
	return func(m *Manager) {
		m.metrics = c
	}
}

// WithDialer replaces the default net.Dialer.
func WithDialer(d Dialer) Option {
	return func(m *Manager) {
		m.dialer = d
	}
}

// Manager owns the relay connection, its status and the live game snapshot.
// All transitions happen under mu and are published to the broker while mu
// is held, so every subscriber observes one global order.
type Manager struct {
	mu sync.Mutex

	status    Status
	statusMsg string
	state     game.GameState
	lastRaw   string

	cfg           ConnectionConfig
	hasCfg        bool
	autoReconnect bool

	// gen increases with every attempt and every Disconnect. A retry timer
	// only fires into the generation that scheduled it.
	gen     uint64
	session *session
	retry   *time.Timer
	closed  bool

	broker  *broker
	dialer  Dialer
	metrics *metrics.Collector
}

// session is one connection attempt and, once established, the connection.
type session struct {
	id     string
	cfg    ConnectionConfig
	ctx    context.Context
	cancel context.CancelFunc

	conn      *lineConn
	handshake chan error
	connected bool
	lost      bool
	readErr   error
	done      chan struct{}
}

func (s *session) teardown() {
	s.cancel()
	if s.conn != nil {
		s.conn.Close()
	}
}

func (s *session) signalHandshake(err error) {
	select {
	case s.handshake <- err:
	default:
	}
}

// New creates a disconnected Manager.
func New(opts ...Option) *Manager {
	m := &Manager{
		status: StatusDisconnected,
		state:  game.NewState(),
		broker: newBroker(),
		dialer: &net.Dialer{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Subscribe registers a new event subscriber.
func (m *Manager) Subscribe() *Subscription {
	return m.broker.subscribe()
}

// Status returns the current status and its message.
func (m *Manager) Status() (Status, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status, m.statusMsg
}

// GameState returns a copy of the current game snapshot.
func (m *Manager) GameState() game.GameState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Clone()
}

// Snapshot is the status, game and last raw line taken under one lock.
type Snapshot struct {
	Status    Status
	StatusMsg string
	State     game.GameState
	LastRaw   string
}

// Snapshot returns a consistent view of the Manager.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		Status:    m.status,
		StatusMsg: m.statusMsg,
		State:     m.state.Clone(),
		LastRaw:   m.lastRaw,
	}
}

// LastRaw returns the most recent line received from the relay.
func (m *Manager) LastRaw() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastRaw
}

// AutoReconnect reports whether automatic retries are enabled.
func (m *Manager) AutoReconnect() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.autoReconnect
}

// Connect starts a new session with cfg and blocks until it is connected
// or has failed. A failure moves the status to Error and, when
// auto-reconnect is on, schedules a retry; Connect itself never retries.
func (m *Manager) Connect(ctx context.Context, cfg ConnectionConfig) error {
	if err := cfg.Validate(); err != nil {
		return &Error{Kind: ConfigError, Op: "connect", Err: err}
	}
	cfg = cfg.withDefaults()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return &Error{Kind: StateError, Op: "connect", Err: ErrClosed}
	}
	if m.status.active() {
		m.mu.Unlock()
		return &Error{Kind: StateError, Op: "connect", Err: ErrAttemptInProgress}
	}
	m.cfg = cfg
	m.hasCfg = true
	m.autoReconnect = cfg.AutoReconnect
	m.resetGameLocked()
	s := m.beginAttemptLocked(cfg)
	m.mu.Unlock()

	return m.run(ctx, s)
}

// Reconnect drops the current session and connects again with the last
// config. The game snapshot is kept.
func (m *Manager) Reconnect(ctx context.Context) error {
	m.mu.Lock()
	if !m.hasCfg {
		m.mu.Unlock()
		return &Error{Kind: StateError, Op: "reconnect", Err: ErrNoPreviousConfig}
	}
	m.mu.Unlock()

	m.Disconnect()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return &Error{Kind: StateError, Op: "reconnect", Err: ErrClosed}
	}
	if m.status.active() {
		m.mu.Unlock()
		return &Error{Kind: StateError, Op: "reconnect", Err: ErrAttemptInProgress}
	}
	cfg := m.cfg
	cfg.AutoReconnect = m.autoReconnect
	s := m.beginAttemptLocked(cfg)
	m.mu.Unlock()

	return m.run(ctx, s)
}

// Disconnect cancels any attempt or pending retry and closes the socket.
// It emits Disconnected once; calling it again is a no-op.
func (m *Manager) Disconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopRetryLocked()
	m.gen++
	if s := m.session; s != nil {
		m.session = nil
		s.teardown()
		logger.Info("Disconnected from relay", "attempt", s.id)
	}
	if m.status == StatusDisconnected {
		return nil
	}
	m.setStatusLocked(StatusDisconnected, "")
	return nil
}

// SetAutoReconnect toggles automatic retries. Disabling cancels a pending
// retry; enabling while in Error schedules one.
func (m *Manager) SetAutoReconnect(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.autoReconnect = enabled
	if !enabled {
		m.stopRetryLocked()
		return
	}
	if m.status == StatusError && m.hasCfg && m.retry == nil {
		m.scheduleRetryLocked()
	}
}

// Close disconnects and ends every subscription. The Manager cannot be
// reused afterwards.
func (m *Manager) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	m.Disconnect()
	m.broker.close()
	return nil
}

func (m *Manager) beginAttemptLocked(cfg ConnectionConfig) *session {
	m.stopRetryLocked()
	m.gen++

	ctx, cancel := context.WithCancel(context.Background())
	s := &session{
		id:        uuid.New().String(),
		cfg:       cfg,
		ctx:       ctx,
		cancel:    cancel,
		handshake: make(chan error, 1),
		done:      make(chan struct{}),
	}
	m.session = s
	m.metrics.ConnectAttempt()
	logger.Info("Connecting to relay", "attempt", s.id, "address", cfg.Address())
	m.setStatusLocked(StatusConnecting, "")
	return s
}

// run drives an attempt to Connected or to failure.
func (m *Manager) run(ctx context.Context, s *session) error {
	stop := context.AfterFunc(ctx, s.cancel)
	defer stop()

	if err := m.establish(s); err != nil {
		cerr := &Error{Kind: ConnectError, Op: "connect", Err: err}
		m.fail(s, cerr)
		return cerr
	}
	return nil
}

func (m *Manager) establish(s *session) error {
	address := s.cfg.Address()

	dialCtx, cancel := context.WithTimeout(s.ctx, s.cfg.DialTimeout)
	nc, err := m.dialer.DialContext(dialCtx, "tcp", address)
	cancel()
	if err != nil {
		if s.ctx.Err() != nil {
			return ErrAttemptCancelled
		}
		return fmt.Errorf("failed to dial %s: %w", address, err)
	}

	m.mu.Lock()
	if m.session != s {
		m.mu.Unlock()
		nc.Close()
		return ErrAttemptCancelled
	}
	s.conn = newLineConn(nc, s.cfg.WriteTimeout)
	m.mu.Unlock()

	go m.readLoop(s)

	if s.cfg.Username != "" {
		if err := s.conn.WriteLine(protocol.EncodeLogin(s.cfg.Username, s.cfg.Password)); err != nil {
			return fmt.Errorf("failed to send credentials: %w", err)
		}
		if err := m.awaitHandshake(s); err != nil {
			return err
		}
	}

	if s.cfg.GameID != "" {
		if err := s.conn.WriteLine(protocol.EncodeSubscribe(s.cfg.GameID)); err != nil {
			return fmt.Errorf("failed to subscribe to game %s: %w", s.cfg.GameID, err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session != s {
		return ErrAttemptCancelled
	}
	if s.lost {
		return s.readErr
	}
	s.connected = true
	logger.Info("Connected to relay", "attempt", s.id, "address", address, "remote_addr", s.conn.RemoteAddr())
	m.setStatusLocked(StatusConnected, "")

	go m.keepAlive(s)
	return nil
}

func (m *Manager) awaitHandshake(s *session) error {
	timer := time.NewTimer(s.cfg.HandshakeTimeout)
	defer timer.Stop()

	select {
	case err := <-s.handshake:
		return err
	case <-s.done:
		select {
		case err := <-s.handshake:
			if err != nil {
				return err
			}
		default:
		}
		if s.ctx.Err() != nil {
			return ErrAttemptCancelled
		}
		return s.readErr
	case <-timer.C:
		return ErrHandshakeTimeout
	case <-s.ctx.Done():
		return ErrAttemptCancelled
	}
}

// fail ends session s with err: one Error event, then the retry policy.
// Stale sessions are torn down silently.
func (m *Manager) fail(s *session, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s.teardown()
	if m.session != s {
		return
	}
	m.session = nil

	logger.Warning("Relay connection failed", "attempt", s.id, "error", err)
	m.setStatusLocked(StatusError, err.Error())
	if m.autoReconnect && !m.closed {
		m.scheduleRetryLocked()
	}
}

func (m *Manager) scheduleRetryLocked() {
	m.stopRetryLocked()
	gen := m.gen
	interval := m.cfg.ReconnectInterval
	m.retry = time.AfterFunc(interval, func() {
		m.retryFire(gen)
	})
	logger.Info("Reconnect scheduled", "in", interval)
}

func (m *Manager) stopRetryLocked() {
	if m.retry != nil {
		m.retry.Stop()
		m.retry = nil
	}
}

func (m *Manager) retryFire(gen uint64) {
	m.mu.Lock()
	if m.gen != gen || m.closed || !m.autoReconnect || m.status != StatusError {
		m.mu.Unlock()
		return
	}
	m.retry = nil
	cfg := m.cfg
	s := m.beginAttemptLocked(cfg)
	m.mu.Unlock()

	m.run(context.Background(), s)
}

func (m *Manager) readLoop(s *session) {
	framer := protocol.NewFramer(0)
	buf := make([]byte, readBufferSize)

	for {
		n, err := s.conn.Read(buf)
		if n > 0 {
			lines, ferr := framer.Feed(buf[:n])
			if ferr != nil {
				logger.Warning("Dropped oversized relay line", "attempt", s.id, "error", ferr)
				m.metrics.ProtocolAnomaly("line_too_long")
			}
			for _, line := range lines {
				m.handleLine(s, line)
			}
		}
		if err != nil {
			framer.Reset()
			m.connectionLost(s, err)
			return
		}
	}
}

func (m *Manager) connectionLost(s *session, err error) {
	if errors.Is(err, io.EOF) {
		err = ErrPeerClosed
	}

	m.mu.Lock()
	s.lost = true
	s.readErr = err
	report := m.session == s && s.connected
	m.mu.Unlock()
	close(s.done)

	if report {
		m.fail(s, &Error{Kind: TransportError, Op: "read", Err: err})
	}
}

func (m *Manager) handleLine(s *session, line string) {
	logger.Wire("rx", line)
	msg, ok := protocol.Parse(line)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session != s {
		return
	}
	m.lastRaw = line

	if !ok {
		m.metrics.LineUnrecognized()
		logger.Debug("Unrecognized relay line", "line", line)
		m.broker.publish(RawLineEvent{Line: line})
		return
	}
	m.metrics.LineReceived(string(msg.Kind()))

	switch mm := msg.(type) {
	case protocol.AuthAck:
		s.signalHandshake(nil)
		return
	case protocol.AuthReject:
		s.signalHandshake(fmt.Errorf("%w: %s", ErrAuthRejected, mm.Reason))
		return
	case protocol.Pong:
		return
	case protocol.ServerError:
		logger.Warning("Relay reported an error", "text", mm.Text)
		m.broker.publish(RawLineEvent{Line: line})
		return
	case protocol.Move:
		if mm.GameID != "" && s.cfg.GameID != "" && mm.GameID != s.cfg.GameID {
			logger.Debug("Ignoring move for another game", "game", mm.GameID)
			m.metrics.ProtocolAnomaly("foreign_game")
			return
		}
	}

	next, changed := game.Reduce(m.state, msg)
	if !changed {
		if k := msg.Kind(); k == protocol.KindMove || k == protocol.KindMoveList {
			logger.Warning("Rejected relay move", "line", line, "position", m.state.Position)
			m.metrics.ProtocolAnomaly("rejected_move")
		}
		m.broker.publish(RawLineEvent{Line: line})
		return
	}
	m.state = next
	m.broker.publish(GameStateEvent{State: next.Clone(), Raw: line})
}

func (m *Manager) keepAlive(s *session) {
	ticker := time.NewTicker(s.cfg.KeepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if err := s.conn.WriteLine(s.cfg.KeepAlivePayload); err != nil {
				m.fail(s, &Error{Kind: TransportError, Op: "keepalive", Err: err})
				return
			}
		}
	}
}

// resetGameLocked starts a fresh game record for a new session.
func (m *Manager) resetGameLocked() {
	m.lastRaw = ""
	fresh := game.NewState()
	if m.state.Equal(fresh) {
		return
	}
	m.state = fresh
	m.broker.publish(GameStateEvent{State: fresh.Clone()})
}

func (m *Manager) setStatusLocked(status Status, msg string) {
	m.status = status
	m.statusMsg = msg
	m.metrics.StatusTransition(status.String())
	m.broker.publish(StatusEvent{Status: status, Message: msg})
}
