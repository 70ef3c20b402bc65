package protocol

import (
	"bytes"
	"errors"
)

// DefaultMaxLineLength bounds how much unterminated data a Framer holds.
const DefaultMaxLineLength = 8 * 1024

// ErrLineTooLong is returned by Feed when a partial line outgrew the limit
// and was dropped. Framing continues with the next terminator.
var ErrLineTooLong = errors.New("protocol line exceeds maximum length")

// Framer splits a TLCS byte stream into lines. Lines end in LF; a CR right
// before the LF is stripped as well. One Framer is used per connection.
type Framer struct {
	buf      []byte
	maxLine  int
	skipping bool // inside an oversized line, discard up to the next LF
}

// NewFramer creates a Framer. A maxLine of zero or less uses DefaultMaxLineLength.
func NewFramer(maxLine int) *Framer {
	if maxLine <= 0 {
		maxLine = DefaultMaxLineLength
	}
	return &Framer{maxLine: maxLine}
}

// Feed appends a chunk and returns every line it completed, in order.
// The error is non-nil only when an oversized line was dropped.
func (f *Framer) Feed(chunk []byte) ([]string, error) {
	var (
		lines   []string
		dropped bool
	)

	for len(chunk) > 0 {
		i := bytes.IndexByte(chunk, '\n')

		if f.skipping {
			if i < 0 {
				return lines, lineErr(dropped)
			}
			f.skipping = false
			chunk = chunk[i+1:]
			continue
		}

		if i < 0 {
			f.buf = append(f.buf, chunk...)
			if len(f.buf) > f.maxLine {
				f.buf = f.buf[:0]
				f.skipping = true
				dropped = true
			}
			return lines, lineErr(dropped)
		}

		line := chunk[:i]
		if len(f.buf) > 0 {
			f.buf = append(f.buf, line...)
			line = f.buf
		}
		if len(line) > f.maxLine {
			dropped = true
		} else {
			lines = append(lines, string(bytes.TrimSuffix(line, []byte{'\r'})))
		}
		f.buf = f.buf[:0]
		chunk = chunk[i+1:]
	}

	return lines, lineErr(dropped)
}

// Reset drops any partial line. Called when the connection goes away;
// an unterminated tail is never turned into a line.
func (f *Framer) Reset() {
	f.buf = f.buf[:0]
	f.skipping = false
}

// Buffered returns the number of bytes held for an incomplete line.
func (f *Framer) Buffered() int {
	return len(f.buf)
}

func lineErr(dropped bool) error {
	if dropped {
		return ErrLineTooLong
	}
	return nil
}
