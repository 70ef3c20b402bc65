package protocol

import (
	"strings"
	"time"
)

// Side identifies a player colour. SideUnknown is used when a line does not say.
type Side int

const (
	SideUnknown Side = iota
	SideWhite
	SideBlack
)

// String returns the lowercase colour name.
func (s Side) String() string {
	switch s {
	case SideWhite:
		return "white"
	case SideBlack:
		return "black"
	default:
		return "unknown"
	}
}

// Opponent returns the other colour. SideUnknown has no opponent.
func (s Side) Opponent() Side {
	switch s {
	case SideWhite:
		return SideBlack
	case SideBlack:
		return SideWhite
	default:
		return SideUnknown
	}
}

// ParseSide accepts w, b, white and black in any case.
func ParseSide(s string) (Side, bool) {
	switch strings.ToLower(s) {
	case "w", "white":
		return SideWhite, true
	case "b", "black":
		return SideBlack, true
	}
	return SideUnknown, false
}

// Kind names a message category. Used for logging and metrics labels.
type Kind string

const (
	KindAuthAck     Kind = "auth_ack"
	KindAuthReject  Kind = "auth_reject"
	KindMove        Kind = "move"
	KindMoveList    Kind = "move_list"
	KindClock       Kind = "clock"
	KindResult      Kind = "result"
	KindDrawOffer   Kind = "draw_offer"
	KindDrawAccept  Kind = "draw_accept"
	KindDrawDecline Kind = "draw_decline"
	KindResignation Kind = "resignation"
	KindPosition    Kind = "position"
	KindServerError Kind = "server_error"
	KindPong        Kind = "pong"
)

// Message is a recognized inbound TLCS line.
type Message interface {
	Kind() Kind
	isMessage()
}

// AuthAck acknowledges the credential line.
type AuthAck struct{}

// AuthReject refuses the credential line.
type AuthReject struct {
	Reason string
}

// Move reports a move played on the board. Clock values are the remaining
// time after the move; nil means the line did not carry them.
type Move struct {
	GameID     string
	Side       Side
	Text       string
	WhiteClock *time.Duration
	BlackClock *time.Duration
}

// MoveList is a run of moves in PGN move text such as "1. e4 e5 2. Nf3",
// optionally closed by a result token.
type MoveList struct {
	Moves  []Move
	Result string
}

// ClockUpdate reports remaining time without a move.
type ClockUpdate struct {
	WhiteClock *time.Duration
	BlackClock *time.Duration
}

// Result reports the end of the game. Token is a PGN result.
type Result struct {
	Token  string
	Reason string
}

// DrawOffer reports a pending draw offer.
type DrawOffer struct {
	By Side
}

// DrawAccept reports that a draw offer was accepted.
type DrawAccept struct{}

// DrawDecline reports that a draw offer was declined.
type DrawDecline struct{}

// Resignation reports that Side resigned.
type Resignation struct {
	Side Side
}

// PositionSnapshot carries a full board in FEN.
type PositionSnapshot struct {
	FEN string
}

// ServerError is an ERROR line from the relay.
type ServerError struct {
	Text string
}

// Pong answers a keep-alive.
type Pong struct{}

func (AuthAck) Kind() Kind          { return KindAuthAck }
func (AuthReject) Kind() Kind       { return KindAuthReject }
func (Move) Kind() Kind             { return KindMove }
func (MoveList) Kind() Kind         { return KindMoveList }
func (ClockUpdate) Kind() Kind      { return KindClock }
func (Result) Kind() Kind           { return KindResult }
func (DrawOffer) Kind() Kind        { return KindDrawOffer }
func (DrawAccept) Kind() Kind       { return KindDrawAccept }
func (DrawDecline) Kind() Kind      { return KindDrawDecline }
func (Resignation) Kind() Kind      { return KindResignation }
func (PositionSnapshot) Kind() Kind { return KindPosition }
func (ServerError) Kind() Kind      { return KindServerError }
func (Pong) Kind() Kind             { return KindPong }

func (AuthAck) isMessage()          {}
func (AuthReject) isMessage()       {}
func (Move) isMessage()             {}
func (MoveList) isMessage()         {}
func (ClockUpdate) isMessage()      {}
func (Result) isMessage()           {}
func (DrawOffer) isMessage()        {}
func (DrawAccept) isMessage()       {}
func (DrawDecline) isMessage()      {}
func (Resignation) isMessage()      {}
func (PositionSnapshot) isMessage() {}
func (ServerError) isMessage()      {}
func (Pong) isMessage()             {}
