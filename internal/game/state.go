// Package game folds TLCS protocol messages into an immutable snapshot of
// the observed game.
package game

import (
	"slices"
	"time"

	"github.com/lawnchairsociety/tlcsview/internal/protocol"
)

// Status texts shown to the consumer.
const (
	StatusInProgress = "In progress"
	StatusWhiteWins  = "White wins"
	StatusBlackWins  = "Black wins"
	StatusDraw       = "Draw"
	StatusGameOver   = "Game over"
)

// GameState is one complete snapshot of the live game. Values are replaced
// whole by Reduce; holders must treat them as read-only.
type GameState struct {
	Turn       protocol.Side
	Position   string // FEN
	WhiteClock *time.Duration
	BlackClock *time.Duration
	Status     string
	Result     string // PGN result token, empty while the game runs

	CanAcceptDraw bool
	CanOfferDraw  bool
	CanResign     bool

	LastMove string
	Moves    []string // UCI
}

// NewState returns the standard starting position with white to move.
func NewState() GameState {
	return GameState{
		Turn:         protocol.SideWhite,
		Position:     startFEN,
		Status:       StatusInProgress,
		CanOfferDraw: true,
		CanResign:    true,
	}
}

// Terminal reports whether the game has ended.
func (s GameState) Terminal() bool {
	return s.Result != ""
}

// Clone returns a copy that shares no memory with s.
func (s GameState) Clone() GameState {
	out := s
	out.WhiteClock = cloneDuration(s.WhiteClock)
	out.BlackClock = cloneDuration(s.BlackClock)
	out.Moves = slices.Clone(s.Moves)
	return out
}

// Equal reports whether two snapshots hold the same values.
func (s GameState) Equal(o GameState) bool {
	return s.Turn == o.Turn &&
		s.Position == o.Position &&
		durationEqual(s.WhiteClock, o.WhiteClock) &&
		durationEqual(s.BlackClock, o.BlackClock) &&
		s.Status == o.Status &&
		s.Result == o.Result &&
		s.CanAcceptDraw == o.CanAcceptDraw &&
		s.CanOfferDraw == o.CanOfferDraw &&
		s.CanResign == o.CanResign &&
		s.LastMove == o.LastMove &&
		slices.Equal(s.Moves, o.Moves)
}

func cloneDuration(d *time.Duration) *time.Duration {
	if d == nil {
		return nil
	}
	v := *d
	return &v
}

func durationEqual(a, b *time.Duration) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
