package console

import (
	"fmt"
	"strings"
	"time"

	"github.com/lawnchairsociety/tlcsview/internal/client"
	"github.com/lawnchairsociety/tlcsview/internal/game"
)

// FormatEvent renders one client event as a single console line.
func FormatEvent(ev client.Event) string {
	switch e := ev.(type) {
	case client.StatusEvent:
		return FormatStatus(e.Status, e.Message)
	case client.GameStateEvent:
		return fmt.Sprintf("[game] %s  (%s)", summary(e.State), e.Raw)
	case client.RawLineEvent:
		return "[relay] " + e.Line
	}
	return fmt.Sprintf("[event] %v", ev)
}

// FormatStatus renders a connection status with its optional message.
func FormatStatus(status client.Status, message string) string {
	if message == "" {
		return "[status] " + status.String()
	}
	return fmt.Sprintf("[status] %s: %s", status, message)
}

// FormatState renders the full game snapshot over several lines.
func FormatState(s game.GameState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "  %s\n", summary(s))
	fmt.Fprintf(&b, "  Position: %s\n", s.Position)
	fmt.Fprintf(&b, "  Actions:  resign=%s offer=%s accept=%s\n",
		onOff(s.CanResign), onOff(s.CanOfferDraw), onOff(s.CanAcceptDraw))
	if len(s.Moves) > 0 {
		fmt.Fprintf(&b, "  Moves:    %s\n", strings.Join(s.Moves, " "))
	}
	return strings.TrimRight(b.String(), "\n")
}

func summary(s game.GameState) string {
	text := fmt.Sprintf("%s | %s to move | W %s B %s",
		s.Status, s.Turn, FormatClock(s.WhiteClock), FormatClock(s.BlackClock))
	if s.LastMove != "" {
		text += " | last " + s.LastMove
	}
	if s.Result != "" {
		text += " | " + s.Result
	}
	return text
}

// FormatClock renders a clock as m:ss, or h:mm:ss past an hour. Unknown
// clocks render as "--:--".
func FormatClock(d *time.Duration) string {
	if d == nil {
		return "--:--"
	}
	total := int64(*d / time.Second)
	if total < 0 {
		total = 0
	}
	h, m, sec := total/3600, (total/60)%60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, sec)
	}
	return fmt.Sprintf("%d:%02d", m, sec)
}
