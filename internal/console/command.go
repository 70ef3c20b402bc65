// Package console is the terminal front end for a relay client: it parses
// typed commands, runs them against the client and prints every event.
package console

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/lawnchairsociety/tlcsview/internal/client"
	"github.com/lawnchairsociety/tlcsview/internal/game"
	"github.com/lawnchairsociety/tlcsview/internal/protocol"
)

// ErrQuit is returned by Execute for the quit command.
var ErrQuit = errors.New("quit")

// Controller is the part of client.Manager the console drives.
type Controller interface {
	Status() (client.Status, string)
	GameState() game.GameState
	AutoReconnect() bool
	Connect(ctx context.Context, cfg client.ConnectionConfig) error
	Disconnect() error
	Reconnect(ctx context.Context) error
	SendAction(action protocol.Action) error
	SetAutoReconnect(enabled bool)
}

// Command is one parsed console line.
type Command struct {
	Name string
	Args []string
}

// ParseCommand splits input into a lower-cased command name and its arguments.
func ParseCommand(input string) *Command {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return &Command{Name: "", Args: []string{}}
	}

	return &Command{
		Name: strings.ToLower(parts[0]),
		Args: parts[1:],
	}
}

// Blocking reports whether the command waits on the network until the
// relay answers.
func (c *Command) Blocking() bool {
	switch c.Name {
	case "connect", "c", "reconnect", "rc":
		return true
	}
	return false
}

// Execute runs the command. defaults is the connection config used by
// connect; "connect host[:port]" overrides its endpoint. The returned text
// is printed to the user as-is.
func (c *Command) Execute(ctx context.Context, ctl Controller, defaults client.ConnectionConfig) (string, error) {
	switch c.Name {
	case "":
		return "", nil
	case "help", "?":
		return helpText, nil
	case "connect", "c":
		cfg, err := c.endpoint(defaults)
		if err != nil {
			return "", err
		}
		if err := ctl.Connect(ctx, cfg); err != nil {
			return "", err
		}
		return fmt.Sprintf("Connected to %s", cfg.Address()), nil
	case "disconnect", "dc":
		return "", ctl.Disconnect()
	case "reconnect", "rc":
		if err := ctl.Reconnect(ctx); err != nil {
			return "", err
		}
		return "Reconnected", nil
	case "resign":
		return c.send(ctl, protocol.ActionResign)
	case "draw", "offer":
		return c.send(ctl, protocol.ActionOfferDraw)
	case "accept":
		return c.send(ctl, protocol.ActionAcceptOffer)
	case "decline":
		return c.send(ctl, protocol.ActionDeclineDraw)
	case "auto":
		return c.executeAuto(ctl)
	case "state", "status":
		status, msg := ctl.Status()
		return FormatStatus(status, msg) + "\n" + FormatState(ctl.GameState()), nil
	case "quit", "exit", "q":
		return "", ErrQuit
	}
	return "", fmt.Errorf("unknown command %q (type help)", c.Name)
}

func (c *Command) send(ctl Controller, action protocol.Action) (string, error) {
	if err := ctl.SendAction(action); err != nil {
		return "", err
	}
	return fmt.Sprintf("Sent %s", action), nil
}

func (c *Command) executeAuto(ctl Controller) (string, error) {
	if len(c.Args) == 0 {
		return fmt.Sprintf("Auto-reconnect is %s", onOff(ctl.AutoReconnect())), nil
	}
	switch strings.ToLower(c.Args[0]) {
	case "on", "true", "1":
		ctl.SetAutoReconnect(true)
	case "off", "false", "0":
		ctl.SetAutoReconnect(false)
	default:
		return "", fmt.Errorf("usage: auto on|off")
	}
	return fmt.Sprintf("Auto-reconnect is %s", onOff(ctl.AutoReconnect())), nil
}

// endpoint applies an optional host[:port] argument to defaults.
func (c *Command) endpoint(defaults client.ConnectionConfig) (client.ConnectionConfig, error) {
	cfg := defaults
	if len(c.Args) == 0 {
		return cfg, nil
	}
	if len(c.Args) > 1 {
		return cfg, fmt.Errorf("usage: connect [host[:port]]")
	}

	arg := c.Args[0]
	host, portText, err := net.SplitHostPort(arg)
	if err != nil {
		cfg.Host = strings.Trim(arg, "[]")
		return cfg, nil
	}
	port, err := strconv.Atoi(portText)
	if err != nil {
		return cfg, fmt.Errorf("invalid port %q", portText)
	}
	cfg.Host = host
	cfg.Port = port
	return cfg, nil
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

const helpText = `Commands:
  connect [host[:port]]  connect to the relay (c)
  disconnect             close the connection (dc)
  reconnect              reconnect with the last settings (rc)
  resign                 resign the game
  draw                   offer a draw
  accept                 accept the pending draw offer
  decline                decline the pending draw offer
  auto [on|off]          show or toggle auto-reconnect
  state                  show connection and game state
  quit                   exit`
