package game

import (
	"github.com/lawnchairsociety/tlcsview/internal/protocol"
)

// Reduce folds one message into prev and returns the next snapshot. The
// boolean is false when the message leaves the game untouched, in which
// case the returned state is prev itself. prev is never modified.
//
// Draw messages leave CanResign alone, except DrawAccept: an accepted draw
// ends the game like any other result and clears CanResign with the draw
// flags.
func Reduce(prev GameState, msg protocol.Message) (GameState, bool) {
	switch m := msg.(type) {
	case protocol.Move:
		return reduceMove(prev, m)
	case protocol.MoveList:
		return reduceMoveList(prev, m)
	case protocol.ClockUpdate:
		return reduceClock(prev, m)
	case protocol.Result:
		return finish(prev, m.Token, resultStatus(m.Token, m.Reason))
	case protocol.Resignation:
		return reduceResignation(prev, m)
	case protocol.DrawAccept:
		return finish(prev, "1/2-1/2", StatusDraw+" (agreed)")
	case protocol.DrawOffer:
		return reduceDrawOffer(prev, m)
	case protocol.DrawDecline:
		return reduceDrawDecline(prev)
	case protocol.PositionSnapshot:
		return reducePosition(prev, m)
	}
	return prev, false
}

func reduceMove(prev GameState, m protocol.Move) (GameState, bool) {
	if prev.Terminal() {
		return prev, false
	}
	if m.Side != protocol.SideUnknown && m.Side != prev.Turn {
		return prev, false
	}

	pos, err := loadPosition(prev.Position)
	if err != nil {
		return prev, false
	}
	next, uci, err := applyMove(pos, m.Text)
	if err != nil {
		return prev, false
	}

	s := prev.Clone()
	s.Position = next.String()
	s.Turn = sideOf(next.Turn())
	if m.WhiteClock != nil {
		s.WhiteClock = cloneDuration(m.WhiteClock)
	}
	if m.BlackClock != nil {
		s.BlackClock = cloneDuration(m.BlackClock)
	}
	s.LastMove = uci
	s.Moves = append(s.Moves, uci)

	// An offer lapses once the opponent replies with a move.
	s.CanAcceptDraw = false
	s.CanOfferDraw = true
	s.CanResign = true

	if result, status, over := outcome(next); over {
		s.Result = result
		s.Status = status
		s.CanAcceptDraw, s.CanOfferDraw, s.CanResign = false, false, false
	}
	return s, true
}

// reduceMoveList applies every move of the line or none of them.
func reduceMoveList(prev GameState, m protocol.MoveList) (GameState, bool) {
	s := prev
	for _, mv := range m.Moves {
		next, ok := reduceMove(s, mv)
		if !ok {
			return prev, false
		}
		s = next
	}
	if m.Result != "" {
		if done, ok := finish(s, m.Result, resultStatus(m.Result, "")); ok {
			s = done
		}
	}
	return s, true
}

func reduceClock(prev GameState, m protocol.ClockUpdate) (GameState, bool) {
	if m.WhiteClock == nil && m.BlackClock == nil {
		return prev, false
	}
	s := prev.Clone()
	if m.WhiteClock != nil {
		s.WhiteClock = cloneDuration(m.WhiteClock)
	}
	if m.BlackClock != nil {
		s.BlackClock = cloneDuration(m.BlackClock)
	}
	return s, !s.Equal(prev)
}

func reduceResignation(prev GameState, m protocol.Resignation) (GameState, bool) {
	loser := m.Side
	if loser == protocol.SideUnknown {
		loser = prev.Turn
	}
	if loser == protocol.SideWhite {
		return finish(prev, "0-1", StatusBlackWins+" (white resigned)")
	}
	return finish(prev, "1-0", StatusWhiteWins+" (black resigned)")
}

// reduceDrawOffer is seen from the side to move: an offer from the other
// side can be accepted, an offer from the side to move is merely pending.
func reduceDrawOffer(prev GameState, m protocol.DrawOffer) (GameState, bool) {
	if prev.Terminal() {
		return prev, false
	}
	s := prev.Clone()
	if m.By == prev.Turn {
		s.CanOfferDraw = false
	} else {
		s.CanAcceptDraw = true
		s.CanOfferDraw = false
	}
	return s, !s.Equal(prev)
}

func reduceDrawDecline(prev GameState) (GameState, bool) {
	if prev.Terminal() {
		return prev, false
	}
	s := prev.Clone()
	s.CanAcceptDraw = false
	s.CanOfferDraw = true
	return s, !s.Equal(prev)
}

// reducePosition resynchronises the board from a FEN snapshot. It starts
// a fresh game record, so it also revives a finished game.
func reducePosition(prev GameState, m protocol.PositionSnapshot) (GameState, bool) {
	pos, err := loadPosition(m.FEN)
	if err != nil {
		return prev, false
	}

	s := prev.Clone()
	s.Position = pos.String()
	s.Turn = sideOf(pos.Turn())
	s.Result = ""
	s.Status = StatusInProgress
	s.LastMove = ""
	s.Moves = nil
	s.CanAcceptDraw = false
	s.CanOfferDraw = true
	s.CanResign = true

	if result, status, over := outcome(pos); over {
		s.Result = result
		s.Status = status
		s.CanOfferDraw, s.CanResign = false, false
	}
	return s, !s.Equal(prev)
}

// finish ends the game with a result and clears every action.
func finish(prev GameState, result, status string) (GameState, bool) {
	if prev.Terminal() {
		return prev, false
	}
	s := prev.Clone()
	s.Result = result
	s.Status = status
	s.CanAcceptDraw = false
	s.CanOfferDraw = false
	s.CanResign = false
	return s, true
}

func resultStatus(token, reason string) string {
	var status string
	switch token {
	case "1-0":
		status = StatusWhiteWins
	case "0-1":
		status = StatusBlackWins
	case "1/2-1/2":
		status = StatusDraw
	default:
		status = StatusGameOver
	}
	if reason != "" {
		status += " (" + reason + ")"
	}
	return status
}
