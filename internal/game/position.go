package game

import (
	"errors"
	"fmt"
	"strings"

	"github.com/notnil/chess"

	"github.com/lawnchairsociety/tlcsview/internal/protocol"
)

const startFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

var errIllegalMove = errors.New("move is not legal in the current position")

// loadPosition decodes a FEN string.
func loadPosition(fen string) (*chess.Position, error) {
	opt, err := chess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("invalid FEN %q: %w", fen, err)
	}
	return chess.NewGame(opt).Position(), nil
}

// applyMove plays text (UCI or SAN) on pos and returns the resulting
// position and the move in UCI form.
func applyMove(pos *chess.Position, text string) (*chess.Position, string, error) {
	m, err := decodeMove(pos, text)
	if err != nil {
		return nil, "", err
	}
	return pos.Update(m), chess.UCINotation{}.Encode(pos, m), nil
}

func decodeMove(pos *chess.Position, text string) (*chess.Move, error) {
	text = strings.TrimRight(text, "+#!?")

	if m, err := (chess.UCINotation{}).Decode(pos, strings.ToLower(text)); err == nil {
		// UCI decoding does not check legality on its own.
		for _, valid := range pos.ValidMoves() {
			if valid.S1() == m.S1() && valid.S2() == m.S2() && valid.Promo() == m.Promo() {
				return valid, nil
			}
		}
		return nil, errIllegalMove
	}

	san := strings.ReplaceAll(text, "0", "O")
	if m, err := (chess.AlgebraicNotation{}).Decode(pos, san); err == nil {
		return m, nil
	}
	return nil, errIllegalMove
}

func sideOf(c chess.Color) protocol.Side {
	switch c {
	case chess.White:
		return protocol.SideWhite
	case chess.Black:
		return protocol.SideBlack
	}
	return protocol.SideUnknown
}

// outcome reports a finished board (mate or stalemate) as a result token
// and status text. ok is false while the game goes on.
func outcome(pos *chess.Position) (result, status string, ok bool) {
	switch pos.Status() {
	case chess.Checkmate:
		// The side to move is mated.
		if pos.Turn() == chess.White {
			return "0-1", StatusBlackWins + " (checkmate)", true
		}
		return "1-0", StatusWhiteWins + " (checkmate)", true
	case chess.Stalemate:
		return "1/2-1/2", StatusDraw + " (stalemate)", true
	}
	return "", "", false
}
