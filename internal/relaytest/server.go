// Package relaytest provides a loopback TLCS relay for tests and local runs.
package relaytest

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/lawnchairsociety/tlcsview/internal/logger"
	"github.com/lawnchairsociety/tlcsview/internal/protocol"
)

// Options controls how the relay answers clients.
type Options struct {
	// Address to listen on. Default: 127.0.0.1:0.
	Address string

	// Username and Password, when set, are checked against LOGIN lines.
	// Otherwise any LOGIN is accepted.
	Username string
	Password string

	// Greeting lines are sent to every client right after accept.
	Greeting []string

	// SilentLogin never answers LOGIN, to exercise handshake timeouts.
	SilentLogin bool
}

// Server is a minimal relay: it acknowledges logins, answers PING, records
// every line it receives and broadcasts lines to all connected clients.
type Server struct {
	opts     Options
	listener net.Listener

	mu       sync.Mutex
	conns    map[net.Conn]*bufio.Writer
	received []string

	shutdown     chan struct{}
	shutdownOnce sync.Once
	wg           sync.WaitGroup
}

// Start listens and serves in the background.
func Start(opts Options) (*Server, error) {
	if opts.Address == "" {
		opts.Address = "127.0.0.1:0"
	}
	listener, err := net.Listen("tcp", opts.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to start relay: %w", err)
	}

	s := &Server{
		opts:     opts,
		listener: listener,
		conns:    make(map[net.Conn]*bufio.Writer),
		shutdown: make(chan struct{}),
	}

	logger.Info("Mock relay listening", "address", listener.Addr().String())

	s.wg.Add(1)
	go s.acceptLoop()
	return s, nil
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Host returns the listen host.
func (s *Server) Host() string {
	host, _, _ := net.SplitHostPort(s.Addr())
	return host
}

// Port returns the listen port.
func (s *Server) Port() int {
	_, port, _ := net.SplitHostPort(s.Addr())
	p, _ := strconv.Atoi(port)
	return p
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
				return
			default:
				logger.Error("Error accepting connection", "error", err)
				var ne net.Error
				if errors.As(err, &ne) && ne.Timeout() {
					continue
				}
				return
			}
		}

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()

	writer := bufio.NewWriter(conn)
	s.mu.Lock()
	s.conns[conn] = writer
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	logger.Debug("Relay client connected", "remote_addr", conn.RemoteAddr().String())

	for _, line := range s.opts.Greeting {
		s.writeTo(conn, line)
	}

	reader := bufio.NewReader(conn)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			continue
		}

		s.mu.Lock()
		s.received = append(s.received, line)
		s.mu.Unlock()

		if reply, ok := s.reply(line); ok {
			s.writeTo(conn, reply)
		}
	}
}

// reply returns the relay's answer to a client line, if any.
func (s *Server) reply(line string) (string, bool) {
	fields := strings.Fields(line)
	switch strings.ToUpper(fields[0]) {
	case "LOGIN":
		if s.opts.SilentLogin {
			return "", false
		}
		if s.opts.Username == "" {
			return "LOGIN OK", true
		}
		if len(fields) == 3 && fields[1] == s.opts.Username && fields[2] == s.opts.Password {
			return "LOGIN OK", true
		}
		return "LOGIN FAILED bad credentials", true
	case "PING":
		return "PONG", true
	}
	return "", false
}

func (s *Server) writeTo(conn net.Conn, line string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.conns[conn]
	if !ok {
		return
	}
	w.Write(protocol.Frame(line))
	w.Flush()
}

// Broadcast sends a line to every connected client.
func (s *Server) Broadcast(line string) {
	s.BroadcastRaw(protocol.Frame(line))
}

// BroadcastRaw sends bytes unchanged to every connected client.
func (s *Server) BroadcastRaw(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, w := range s.conns {
		w.Write(data)
		w.Flush()
	}
}

// DropAll closes every client connection; the listener stays open.
func (s *Server) DropAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for conn := range s.conns {
		conn.Close()
	}
}

// Connections returns the number of open client connections.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// WaitForConnections waits until n clients are connected.
func (s *Server) WaitForConnections(n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if s.Connections() == n {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

// Received returns every line received so far.
func (s *Server) Received() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]string, len(s.received))
	copy(result, s.received)
	return result
}

// HasLine reports whether a received line contains text.
func (s *Server) HasLine(text string) bool {
	for _, line := range s.Received() {
		if strings.Contains(line, text) {
			return true
		}
	}
	return false
}

// WaitForLine waits for a received line containing text.
func (s *Server) WaitForLine(text string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if s.HasLine(text) {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

// Shutdown closes the listener and all clients and waits for handlers.
func (s *Server) Shutdown() {
	s.shutdownOnce.Do(func() {
		close(s.shutdown)
		s.listener.Close()
		s.DropAll()
		s.wg.Wait()
		logger.Info("Mock relay shutdown complete")
	})
}
