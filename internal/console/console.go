package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/lawnchairsociety/tlcsview/internal/client"
	"github.com/lawnchairsociety/tlcsview/internal/logger"
)

// Console reads commands from in and writes replies and events to out.
// Writes from the event printer and the command loop never interleave
// within a line.
type Console struct {
	ctl      Controller
	defaults client.ConnectionConfig

	mu  sync.Mutex
	out io.Writer
}

// New creates a console. defaults is used by the connect command.
func New(ctl Controller, defaults client.ConnectionConfig, out io.Writer) *Console {
	return &Console{ctl: ctl, defaults: defaults, out: out}
}

func (c *Console) println(text string) {
	if text == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, text)
}

// PrintEvents writes every event from sub until the subscription ends or
// ctx is done.
func (c *Console) PrintEvents(ctx context.Context, sub *client.Subscription) error {
	defer sub.Unsubscribe()
	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return nil
			}
			c.println(FormatEvent(ev))
		case <-ctx.Done():
			return nil
		}
	}
}

// ErrInputClosed is returned by Run when in reaches end of input.
var ErrInputClosed = errors.New("console input closed")

// Run executes commands read from in until quit, end of input or ctx is
// done. Command errors are printed and do not stop the loop. connect and
// reconnect run in the background, so a disconnect typed meanwhile
// cancels them; Run waits for them before returning.
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	var pending sync.WaitGroup
	defer pending.Wait()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			if err != nil {
				return fmt.Errorf("failed to read commands: %w", err)
			}
			return ErrInputClosed
		case line := <-lines:
			cmd := ParseCommand(line)
			if cmd.Blocking() {
				pending.Add(1)
				go func() {
					defer pending.Done()
					reply, err := cmd.Execute(ctx, c.ctl, c.defaults)
					c.report(cmd, reply, err)
				}()
				continue
			}
			reply, err := cmd.Execute(ctx, c.ctl, c.defaults)
			if errors.Is(err, ErrQuit) {
				return nil
			}
			c.report(cmd, reply, err)
		}
	}
}

func (c *Console) report(cmd *Command, reply string, err error) {
	if err != nil {
		logger.Debug("Console command failed", "command", cmd.Name, "error", err)
		c.println("Error: " + err.Error())
		return
	}
	c.println(reply)
}
