package protocol

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	uciMove = regexp.MustCompile(`^[a-h][1-8][a-h][1-8][qrbnQRBN]?$`)
	sanMove = regexp.MustCompile(`^(O-O(-O)?|0-0(-0)?|[KQRBN][a-h]?[1-8]?x?[a-h][1-8]|[a-h](x[a-h])?[1-8](=?[QRBN])?)[+#]?[!?]*$`)

	// "12." introduces a white move, "12..." a black one.
	moveNumber = regexp.MustCompile(`^\d+(\.|\.\.\.)$`)

	// numberPrefix splits "12.Nf3" or "12...Nc6" into number and move.
	numberPrefix = regexp.MustCompile(`^\d+(\.+)(.*)$`)
)

// maxClockMS keeps clock values inside time.Duration.
const maxClockMS = math.MaxInt64 / int64(time.Millisecond)

// IsMoveText reports whether s looks like a UCI or SAN move.
func IsMoveText(s string) bool {
	return uciMove.MatchString(s) || sanMove.MatchString(s)
}

// IsResultToken reports whether s is a PGN game result.
func IsResultToken(s string) bool {
	switch s {
	case "1-0", "0-1", "1/2-1/2", "*":
		return true
	}
	return false
}

// Parse classifies one framed line. It returns false for anything it does
// not recognize; malformed lines are never an error.
func Parse(line string) (Message, bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, false
	}

	keyword := strings.ToUpper(fields[0])
	args := fields[1:]

	switch keyword {
	case "LOGIN", "AUTH":
		return parseAuth(args)
	case "MOVE":
		return parseMoveArgs(args, true)
	case "CLOCK", "TIME":
		return parseClock(args)
	case "RESULT":
		if len(args) == 0 || !IsResultToken(args[0]) {
			return nil, false
		}
		return Result{Token: args[0], Reason: strings.Join(args[1:], " ")}, true
	case "DRAW":
		return parseDraw(args)
	case "RESIGN", "RESIGNS", "RESIGNED":
		return parseResign(args)
	case "FEN":
		if len(args) < 4 {
			return nil, false
		}
		return PositionSnapshot{FEN: strings.Join(args, " ")}, true
	case "ERROR":
		return ServerError{Text: strings.Join(args, " ")}, true
	case "PONG":
		if len(args) != 0 {
			return nil, false
		}
		return Pong{}, true
	}

	if len(fields) == 1 && IsResultToken(fields[0]) {
		return Result{Token: fields[0]}, true
	}

	if msg, ok := parseMoveArgs(fields, false); ok {
		return msg, true
	}
	return parseMoveList(fields)
}

func parseAuth(args []string) (Message, bool) {
	if len(args) == 0 {
		return nil, false
	}
	switch strings.ToUpper(args[0]) {
	case "OK", "ACCEPTED", "SUCCESS":
		return AuthAck{}, true
	case "FAILED", "FAIL", "DENIED", "REJECTED", "INVALID":
		return AuthReject{Reason: strings.Join(args[1:], " ")}, true
	}
	return nil, false
}

// parseMoveArgs handles both "MOVE [game] [side] move [w b]" (keyword
// form) and "[n.|n...] move [w b]" (bare form). In the keyword form the
// token count decides where the move sits, since game ids may look like
// squares.
func parseMoveArgs(args []string, keyword bool) (Message, bool) {
	if keyword {
		switch len(args) {
		case 1:
			return buildMove(Move{}, args)
		case 2, 4:
			var mv Move
			if side, ok := ParseSide(args[0]); ok {
				mv.Side = side
			} else {
				mv.GameID = args[0]
			}
			return buildMove(mv, args[1:])
		case 3:
			if side, ok := ParseSide(args[1]); ok {
				return buildMove(Move{GameID: args[0], Side: side}, args[2:])
			}
			return buildMove(Move{}, args)
		case 5:
			side, ok := ParseSide(args[1])
			if !ok {
				return nil, false
			}
			return buildMove(Move{GameID: args[0], Side: side}, args[2:])
		}
		return nil, false
	}

	var mv Move
	if len(args) > 0 && moveNumber.MatchString(args[0]) {
		if strings.HasSuffix(args[0], "...") {
			mv.Side = SideBlack
		} else {
			mv.Side = SideWhite
		}
		args = args[1:]
	}
	return buildMove(mv, args)
}

// buildMove fills in the move text and optional clocks from "move [w b]".
func buildMove(mv Move, args []string) (Message, bool) {
	switch len(args) {
	case 1:
	case 3:
		white, ok := parseClockValue(args[1])
		if !ok {
			return nil, false
		}
		black, ok := parseClockValue(args[2])
		if !ok {
			return nil, false
		}
		mv.WhiteClock, mv.BlackClock = white, black
	default:
		return nil, false
	}

	if !IsMoveText(args[0]) {
		return nil, false
	}
	mv.Text = args[0]
	return mv, true
}

// parseMoveList reads PGN move text: move numbers, with or without a space
// before the move, and an optional result as the last token. Bare numbers
// are not move numbers, so "e2e4 12000" stays unrecognized.
func parseMoveList(fields []string) (Message, bool) {
	var list MoveList
	next := SideUnknown
	for i, field := range fields {
		if IsResultToken(field) {
			if i != len(fields)-1 || len(list.Moves) == 0 {
				return nil, false
			}
			list.Result = field
			break
		}
		if m := numberPrefix.FindStringSubmatch(field); m != nil {
			switch m[1] {
			case ".":
				next = SideWhite
			case "...":
				next = SideBlack
			default:
				return nil, false
			}
			if m[2] == "" {
				continue
			}
			field = m[2]
		}
		if !IsMoveText(field) {
			return nil, false
		}
		list.Moves = append(list.Moves, Move{Side: next, Text: field})
		next = SideUnknown
	}
	if len(list.Moves) == 0 {
		return nil, false
	}
	return list, true
}

func parseClock(args []string) (Message, bool) {
	if len(args) != 2 {
		return nil, false
	}
	white, ok := parseClockValue(args[0])
	if !ok {
		return nil, false
	}
	black, ok := parseClockValue(args[1])
	if !ok {
		return nil, false
	}
	return ClockUpdate{WhiteClock: white, BlackClock: black}, true
}

// parseClockValue reads integer milliseconds. "-" means unknown and yields nil.
func parseClockValue(s string) (*time.Duration, bool) {
	if s == "-" {
		return nil, true
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil || ms < 0 || ms > maxClockMS {
		return nil, false
	}
	d := time.Duration(ms) * time.Millisecond
	return &d, true
}

func parseDraw(args []string) (Message, bool) {
	if len(args) == 0 {
		return nil, false
	}
	switch strings.ToUpper(args[0]) {
	case "OFFER", "OFFERED":
		var by Side
		if len(args) > 1 {
			side, ok := ParseSide(args[1])
			if !ok {
				return nil, false
			}
			by = side
		}
		return DrawOffer{By: by}, true
	case "ACCEPT", "ACCEPTED":
		return DrawAccept{}, true
	case "DECLINE", "DECLINED":
		return DrawDecline{}, true
	}
	return nil, false
}

func parseResign(args []string) (Message, bool) {
	switch len(args) {
	case 0:
		return Resignation{}, true
	case 1:
		side, ok := ParseSide(args[0])
		if !ok {
			return nil, false
		}
		return Resignation{Side: side}, true
	}
	return nil, false
}
