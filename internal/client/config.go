package client

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/lawnchairsociety/tlcsview/internal/protocol"
)

// Defaults applied to zero-valued ConnectionConfig fields.
const (
	DefaultReconnectInterval = 2 * time.Second
	DefaultDialTimeout       = 10 * time.Second
	DefaultHandshakeTimeout  = 10 * time.Second
	DefaultWriteTimeout      = 10 * time.Second
	DefaultKeepAliveInterval = 30 * time.Second
)

// minReconnectInterval is the floor for ReconnectInterval. Tests lower it.
var minReconnectInterval = time.Second

// ConnectionConfig describes one relay endpoint and how to talk to it.
// The Manager copies it at Connect and reuses the copy for every
// automatic retry.
type ConnectionConfig struct {
	Host     string
	Port     int
	Username string
	Password string

	AutoReconnect     bool
	ReconnectInterval time.Duration

	DialTimeout       time.Duration
	HandshakeTimeout  time.Duration
	WriteTimeout      time.Duration
	KeepAliveInterval time.Duration
	KeepAlivePayload  string

	// GameID selects the game to observe. Empty means whatever the relay streams.
	GameID string
}

// Address returns host:port suitable for dialing.
func (c ConnectionConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Validate checks the config without applying defaults.
func (c ConnectionConfig) Validate() error {
	if strings.TrimSpace(c.Host) == "" {
		return errors.New("host is required")
	}
	if strings.ContainsAny(c.Host, " \t\r\n") {
		return fmt.Errorf("host %q contains whitespace", c.Host)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range 1-65535", c.Port)
	}
	if strings.ContainsAny(c.Username, " \t\r\n") {
		return errors.New("username must not contain whitespace")
	}
	if strings.ContainsAny(c.Password, "\r\n") {
		return errors.New("password must not contain line breaks")
	}
	if strings.ContainsAny(c.GameID, " \t\r\n") {
		return fmt.Errorf("game id %q contains whitespace", c.GameID)
	}
	if strings.ContainsAny(c.KeepAlivePayload, "\r\n") {
		return errors.New("keep-alive payload must be a single line")
	}

	durations := []struct {
		name  string
		value time.Duration
	}{
		{"reconnect interval", c.ReconnectInterval},
		{"dial timeout", c.DialTimeout},
		{"handshake timeout", c.HandshakeTimeout},
		{"write timeout", c.WriteTimeout},
		{"keep-alive interval", c.KeepAliveInterval},
	}
	for _, d := range durations {
		if d.value < 0 {
			return fmt.Errorf("%s must not be negative", d.name)
		}
	}
	return nil
}

// withDefaults fills zero fields and raises the reconnect interval to the floor.
func (c ConnectionConfig) withDefaults() ConnectionConfig {
	if c.ReconnectInterval == 0 {
		c.ReconnectInterval = DefaultReconnectInterval
	}
	if c.ReconnectInterval < minReconnectInterval {
		c.ReconnectInterval = minReconnectInterval
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = DefaultDialTimeout
	}
	if c.HandshakeTimeout == 0 {
		c.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.KeepAliveInterval == 0 {
		c.KeepAliveInterval = DefaultKeepAliveInterval
	}
	if c.KeepAlivePayload == "" {
		c.KeepAlivePayload = protocol.DefaultKeepAlivePayload
	}
	return c
}
