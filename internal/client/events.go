package client

import "github.com/lawnchairsociety/tlcsview/internal/game"

// Event is published to subscribers. It is one of StatusEvent,
// GameStateEvent or RawLineEvent.
type Event interface {
	isEvent()
}

// StatusEvent reports a connection status transition. Message is set on errors.
type StatusEvent struct {
	Status  Status
	Message string
}

// GameStateEvent carries a complete new game snapshot and the line that produced it.
type GameStateEvent struct {
	State game.GameState
	Raw   string
}

// RawLineEvent carries a relay line that changed no state, for diagnostics.
type RawLineEvent struct {
	Line string
}

func (StatusEvent) isEvent()    {}
func (GameStateEvent) isEvent() {}
func (RawLineEvent) isEvent()   {}
