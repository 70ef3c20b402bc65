package client

import (
	"github.com/lawnchairsociety/tlcsview/internal/logger"
	"github.com/lawnchairsociety/tlcsview/internal/protocol"
)

// pendingAction is one encoded action on its way to the socket. It lives
// for a single write and is never queued.
type pendingAction struct {
	action protocol.Action
	line   string
}

// SendAction writes a player action to the relay. It fails with
// ErrNotConnected, without touching the socket, unless the status is
// Connected. A failed write is handled like a read error: the session
// ends with an Error event and the retry policy applies.
func (m *Manager) SendAction(action protocol.Action) error {
	line, err := protocol.EncodeAction(action)
	if err != nil {
		return &Error{Kind: ConfigError, Op: "send", Err: err}
	}

	m.mu.Lock()
	s := m.session
	if m.status != StatusConnected || s == nil {
		m.mu.Unlock()
		m.metrics.ActionRejected(action.String(), "not_connected")
		logger.Debug("Action rejected, not connected", "action", action)
		return &Error{Kind: StateError, Op: "send " + action.String(), Err: ErrNotConnected}
	}
	m.mu.Unlock()

	return m.dispatch(s, pendingAction{action: action, line: line})
}

func (m *Manager) dispatch(s *session, p pendingAction) error {
	if err := s.conn.WriteLine(p.line); err != nil {
		terr := &Error{Kind: TransportError, Op: "send " + p.action.String(), Err: err}
		m.metrics.ActionRejected(p.action.String(), "write_failed")
		m.fail(s, terr)
		return terr
	}

	m.metrics.ActionSent(p.action.String())
	logger.Always("Action sent", "action", p.action, "attempt", s.id)
	return nil
}
