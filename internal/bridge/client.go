package bridge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/lawnchairsociety/tlcsview/internal/client"
	"github.com/lawnchairsociety/tlcsview/internal/logger"
	"github.com/lawnchairsociety/tlcsview/internal/protocol"
	"github.com/lawnchairsociety/tlcsview/internal/ratelimit"
)

const (
	writeWait      = 10 * time.Second
	sendBufferSize = 64
)

// wsClient is one browser connection. The writer goroutine is the only
// one touching the socket for writes; commands run on their own goroutine
// so a blocking Connect never stalls the read loop.
type wsClient struct {
	id      string
	server  *Server
	conn    *websocket.Conn
	send    chan Envelope
	limiter *ratelimit.Tracker

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func newWSClient(s *Server, conn *websocket.Conn) *wsClient {
	ctx, cancel := context.WithCancel(context.Background())
	rl := s.cfg.CommandRateLimit
	return &wsClient{
		id:      uuid.New().String(),
		server:  s,
		conn:    conn,
		send:    make(chan Envelope, sendBufferSize),
		limiter: ratelimit.NewTracker(ratelimit.ConfigFromYAML(rl.Enabled, rl.MaxCommands, rl.WindowMS, rl.RepeatCooldownMS)),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// run serves the client until its socket closes.
func (c *wsClient) run() {
	logger.Info("Bridge client connected", "client", c.id, "remote_addr", c.conn.RemoteAddr().String())

	// Subscribe before the snapshot and forward only after it is queued:
	// every event the UI sees afterwards is at least as new as the snapshot.
	sub := c.server.relay.Subscribe()
	snap := c.server.relay.Snapshot()
	c.enqueue(statusEnvelope(snap.Status, snap.StatusMsg))
	c.enqueue(gameEnvelope(snap.State, snap.LastRaw))

	c.wg.Add(2)
	go c.writeLoop()
	go c.forward(sub)

	c.readLoop()

	c.close()
	sub.Unsubscribe()
	c.wg.Wait()
	logger.Info("Bridge client disconnected", "client", c.id)
}

func (c *wsClient) close() {
	c.closeOnce.Do(func() {
		c.cancel()
		c.conn.Close()
	})
}

func (c *wsClient) enqueue(env Envelope) {
	select {
	case c.send <- env:
	case <-c.ctx.Done():
	}
}

func (c *wsClient) forward(sub *client.Subscription) {
	defer c.wg.Done()
	for ev := range sub.Events() {
		if env, ok := eventEnvelope(ev); ok {
			c.enqueue(env)
		}
	}
}

func (c *wsClient) writeLoop() {
	defer c.wg.Done()
	for {
		select {
		case env := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(env); err != nil {
				logger.Debug("Bridge write failed", "client", c.id, "error", err)
				c.close()
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *wsClient) readLoop() {
	if c.server.cfg.MaxMessageSize > 0 {
		c.conn.SetReadLimit(c.server.cfg.MaxMessageSize)
	}
	for {
		var cmd Command
		if err := c.conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("Bridge read failed", "client", c.id, "error", err)
			}
			return
		}
		if result := c.limiter.Check(cmd.Type + " " + cmd.Action); !result.Allowed {
			logger.Debug("Bridge command throttled", "client", c.id, "command", cmd.Type, "reason", result.Reason)
			c.server.metrics.BridgeCommandThrottled(result.Reason)
			c.enqueue(resultEnvelope(cmd.ID, throttleError(result)))
			continue
		}
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.enqueue(resultEnvelope(cmd.ID, c.execute(cmd)))
		}()
	}
}

func throttleError(result ratelimit.CheckResult) error {
	wait := result.Wait.Round(time.Millisecond)
	if result.Reason == ratelimit.ReasonRepeat {
		return fmt.Errorf("duplicate command, retry in %v", wait)
	}
	return fmt.Errorf("too many commands, retry in %v", wait)
}

// execute runs one command against the relay.
func (c *wsClient) execute(cmd Command) error {
	relay := c.server.relay
	switch cmd.Type {
	case CommandConnect:
		return relay.Connect(c.ctx, cmd.connectionConfig())
	case CommandDisconnect:
		return relay.Disconnect()
	case CommandReconnect:
		return relay.Reconnect(c.ctx)
	case CommandAction:
		action, err := protocol.ParseAction(cmd.Action)
		if err != nil {
			return err
		}
		return relay.SendAction(action)
	case CommandAutoReconnect:
		relay.SetAutoReconnect(cmd.Enabled)
		return nil
	}
	return fmt.Errorf("unknown command %q", cmd.Type)
}
