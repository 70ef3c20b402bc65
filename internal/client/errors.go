package client

import (
	"errors"
	"fmt"
)

var (
	ErrNotConnected      = errors.New("not connected to relay")
	ErrAttemptInProgress = errors.New("connection attempt already in progress")
	ErrNoPreviousConfig  = errors.New("no previous connection config")
	ErrAuthRejected      = errors.New("relay rejected credentials")
	ErrHandshakeTimeout  = errors.New("timed out waiting for login acknowledgment")
	ErrAttemptCancelled  = errors.New("connection attempt cancelled")
	ErrPeerClosed        = errors.New("relay closed the connection")
	ErrClosed            = errors.New("manager is closed")
)

// Kind classifies a client error.
type Kind int

const (
	// ConfigError is an invalid connection config or request, rejected synchronously.
	ConfigError Kind = iota + 1
	// ConnectError means the socket or the login handshake could not be completed.
	ConnectError
	// ProtocolError is a dropped or unusable line. It is logged, never returned.
	ProtocolError
	// TransportError is a read or write failure on an established connection.
	TransportError
	// StateError is a request that is not valid in the current connection status.
	StateError
)

func (k Kind) String() string {
	switch k {
	case ConfigError:
		return "config error"
	case ConnectError:
		return "connect error"
	case ProtocolError:
		return "protocol error"
	case TransportError:
		return "transport error"
	case StateError:
		return "state error"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is returned by every Manager operation that fails.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is a client Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
