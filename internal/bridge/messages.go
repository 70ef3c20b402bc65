package bridge

import (
	"time"

	"github.com/lawnchairsociety/tlcsview/internal/client"
	"github.com/lawnchairsociety/tlcsview/internal/game"
)

// Envelope types sent to bridge clients.
const (
	TypeStatus = "status"
	TypeGame   = "game"
	TypeRaw    = "raw"
	TypeResult = "result"
)

// Command types accepted from bridge clients.
const (
	CommandConnect       = "connect"
	CommandDisconnect    = "disconnect"
	CommandReconnect     = "reconnect"
	CommandAction        = "action"
	CommandAutoReconnect = "autoReconnect"
)

// Envelope is one JSON message to a bridge client.
type Envelope struct {
	Type string `json:"type"`

	// status
	Status  string `json:"status,omitempty"`
	Message string `json:"message,omitempty"`

	// game
	State *GameState `json:"state,omitempty"`
	Raw   string     `json:"raw,omitempty"`

	// raw
	Line string `json:"line,omitempty"`

	// result
	ID    string `json:"id,omitempty"`
	OK    *bool  `json:"ok,omitempty"`
	Error string `json:"error,omitempty"`
}

// GameState is the JSON form of game.GameState. Clocks are milliseconds,
// null when unknown.
type GameState struct {
	Turn          string   `json:"turn"`
	Position      string   `json:"position"`
	WhiteClockMs  *int64   `json:"whiteClockMs"`
	BlackClockMs  *int64   `json:"blackClockMs"`
	Status        string   `json:"status"`
	Result        string   `json:"result,omitempty"`
	CanAcceptDraw bool     `json:"canAcceptDraw"`
	CanOfferDraw  bool     `json:"canOfferDraw"`
	CanResign     bool     `json:"canResign"`
	LastMove      string   `json:"lastMove,omitempty"`
	Moves         []string `json:"moves"`
}

// Command is one JSON request from a bridge client.
type Command struct {
	ID   string `json:"id"`
	Type string `json:"type"`

	// connect
	Host                string `json:"host"`
	Port                int    `json:"port"`
	Username            string `json:"username"`
	Password            string `json:"password"`
	GameID              string `json:"gameId"`
	AutoReconnect       bool   `json:"autoReconnect"`
	ReconnectIntervalMs int    `json:"reconnectIntervalMs"`

	// action
	Action string `json:"action"`

	// autoReconnect
	Enabled bool `json:"enabled"`
}

// connectionConfig builds the client config for a connect command.
func (c Command) connectionConfig() client.ConnectionConfig {
	return client.ConnectionConfig{
		Host:              c.Host,
		Port:              c.Port,
		Username:          c.Username,
		Password:          c.Password,
		GameID:            c.GameID,
		AutoReconnect:     c.AutoReconnect,
		ReconnectInterval: time.Duration(c.ReconnectIntervalMs) * time.Millisecond,
	}
}

func statusEnvelope(status client.Status, message string) Envelope {
	return Envelope{Type: TypeStatus, Status: status.String(), Message: message}
}

func gameEnvelope(state game.GameState, raw string) Envelope {
	return Envelope{Type: TypeGame, State: encodeGameState(state), Raw: raw}
}

func resultEnvelope(id string, err error) Envelope {
	ok := err == nil
	env := Envelope{Type: TypeResult, ID: id, OK: &ok}
	if err != nil {
		env.Error = err.Error()
	}
	return env
}

// eventEnvelope converts a client event for the wire.
func eventEnvelope(ev client.Event) (Envelope, bool) {
	switch e := ev.(type) {
	case client.StatusEvent:
		return statusEnvelope(e.Status, e.Message), true
	case client.GameStateEvent:
		return gameEnvelope(e.State, e.Raw), true
	case client.RawLineEvent:
		return Envelope{Type: TypeRaw, Line: e.Line}, true
	}
	return Envelope{}, false
}

func encodeGameState(s game.GameState) *GameState {
	moves := s.Moves
	if moves == nil {
		moves = []string{}
	}
	return &GameState{
		Turn:          s.Turn.String(),
		Position:      s.Position,
		WhiteClockMs:  clockMillis(s.WhiteClock),
		BlackClockMs:  clockMillis(s.BlackClock),
		Status:        s.Status,
		Result:        s.Result,
		CanAcceptDraw: s.CanAcceptDraw,
		CanOfferDraw:  s.CanOfferDraw,
		CanResign:     s.CanResign,
		LastMove:      s.LastMove,
		Moves:         moves,
	}
}

func clockMillis(d *time.Duration) *int64 {
	if d == nil {
		return nil
	}
	ms := d.Milliseconds()
	return &ms
}
