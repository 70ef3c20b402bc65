package protocol

import (
	"fmt"
	"strings"
)

// LineTerminator ends every line written to the relay.
const LineTerminator = "\r\n"

// DefaultKeepAlivePayload is sent when no keep-alive payload is configured.
const DefaultKeepAlivePayload = "PING"

// Action is a player action the client can send.
type Action int

const (
	ActionAcceptOffer Action = iota + 1
	ActionOfferDraw
	ActionResign
	ActionDeclineDraw
)

var actionNames = map[Action]string{
	ActionAcceptOffer: "AcceptOffer",
	ActionOfferDraw:   "OfferDraw",
	ActionResign:      "Resign",
	ActionDeclineDraw: "DeclineDraw",
}

// String returns the action name used by consumers (e.g. "OfferDraw").
func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return fmt.Sprintf("Action(%d)", int(a))
}

// ParseAction maps a consumer action name to an Action. Matching ignores case.
func ParseAction(name string) (Action, error) {
	for action, n := range actionNames {
		if strings.EqualFold(n, name) {
			return action, nil
		}
	}
	return 0, fmt.Errorf("unknown action %q", name)
}

// EncodeAction returns the wire line for an action, without terminator.
func EncodeAction(a Action) (string, error) {
	switch a {
	case ActionAcceptOffer:
		return "DRAW ACCEPT", nil
	case ActionOfferDraw:
		return "DRAW OFFER", nil
	case ActionResign:
		return "RESIGN", nil
	case ActionDeclineDraw:
		return "DRAW DECLINE", nil
	}
	return "", fmt.Errorf("unknown action %d", int(a))
}

// EncodeLogin returns the credential line sent right after connecting.
func EncodeLogin(username, password string) string {
	return "LOGIN " + username + " " + password
}

// EncodeSubscribe asks the relay to stream one game.
func EncodeSubscribe(gameID string) string {
	return "SUBSCRIBE " + gameID
}

// Frame appends the line terminator unless the line already ends with it.
func Frame(line string) []byte {
	if strings.HasSuffix(line, LineTerminator) {
		return []byte(line)
	}
	return []byte(line + LineTerminator)
}
