package client

import (
	"net"
	"strings"
	"sync"
	"time"

	"github.com/lawnchairsociety/tlcsview/internal/logger"
	"github.com/lawnchairsociety/tlcsview/internal/protocol"
)

// lineConn wraps the relay socket. Reads happen on the read loop only;
// writes from any goroutine are serialized by writeMu.
type lineConn struct {
	conn         net.Conn
	writeTimeout time.Duration
	writeMu      sync.Mutex
	closeOnce    sync.Once
}

func newLineConn(conn net.Conn, writeTimeout time.Duration) *lineConn {
	return &lineConn{
		conn:         conn,
		writeTimeout: writeTimeout,
	}
}

// Read reads raw bytes from the socket (blocking).
func (c *lineConn) Read(buf []byte) (int, error) {
	return c.conn.Read(buf)
}

// WriteLine writes one line followed by CRLF.
func (c *lineConn) WriteLine(line string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return err
		}
	}
	if _, err := c.conn.Write(protocol.Frame(line)); err != nil {
		return err
	}
	logger.Wire("tx", redact(line))
	return nil
}

// Close closes the underlying connection. Safe to call more than once.
func (c *lineConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.conn.Close()
	})
	return err
}

// RemoteAddr returns the remote address as a string.
func (c *lineConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// redact hides the password of a credential line.
func redact(line string) string {
	fields := strings.Fields(line)
	if len(fields) >= 3 && strings.EqualFold(fields[0], "LOGIN") {
		return fields[0] + " " + fields[1] + " ***"
	}
	return line
}
