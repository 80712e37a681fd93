// Package keycode decodes the raw byte stream of a terminal in raw mode into
// discrete key events.
//
// The decoder is streaming: bytes are appended with Buffer as they arrive
// and events are pulled with Next. A multi-byte sequence that has only
// partially arrived is left in the pending queue untouched, so the next
// call after more bytes are buffered re-attempts the whole match.
package keycode

import (
	"fmt"
	"strconv"
	"strings"
)

// KeyName identifies the control keys the decoder knows by name. Printable
// characters and sequences carry NONE and are identified by their raw bytes.
type KeyName int

const (
	NONE KeyName = iota
	BEL
	BS
	HT
	LF
	VT
	FF
	CR
	ESC
	DEL
)

var keyNames = [...]string{
	NONE: "NONE",
	BEL:  "BEL",
	BS:   "BS",
	HT:   "HT",
	LF:   "LF",
	VT:   "VT",
	FF:   "FF",
	CR:   "CR",
	ESC:  "ESC",
	DEL:  "DEL",
}

func (n KeyName) String() string {
	if n < 0 || int(n) >= len(keyNames) {
		return "KeyName(" + strconv.Itoa(int(n)) + ")"
	}
	return keyNames[n]
}

// KeyEvent is a single decoded key press. Raw holds exactly the bytes that
// produced it.
type KeyEvent struct {
	Name  KeyName
	Raw   []byte
	Shift bool
	Ctrl  bool
	Alt   bool
}

// Is reports whether the event was produced by exactly the given bytes.
func (k KeyEvent) Is(seq string) bool {
	return string(k.Raw) == seq
}

// String renders the event as a single line, e.g. `NONE "A" shift` or
// `CR "\r" ctrl`.
func (k KeyEvent) String() string {
	var b strings.Builder
	b.WriteString(k.Name.String())
	b.WriteByte(' ')
	b.WriteString(strconv.Quote(string(k.Raw)))
	if k.Shift {
		b.WriteString(" shift")
	}
	if k.Ctrl {
		b.WriteString(" ctrl")
	}
	if k.Alt {
		b.WriteString(" alt")
	}
	return b.String()
}

// controls maps the named single-byte control characters.
var controls = map[byte]KeyName{
	0x07: BEL,
	0x08: BS,
	0x09: HT,
	0x0a: LF,
	0x0b: VT,
	0x0c: FF,
	0x0d: CR,
}

// IsShift reports whether a printable byte requires shift on a US keyboard
// layout.
func IsShift(ch byte) bool {
	return (ch >= 'A' && ch <= 'Z') ||
		(ch >= 0x21 && ch <= 0x26) || // !"#$%&
		(ch >= 0x28 && ch <= 0x2b) || // ()*+
		ch == ':' ||
		ch == '<' ||
		(ch >= 0x3e && ch <= 0x40) || // >?@
		(ch >= 0x5e && ch <= 0x5f) || // ^_
		(ch >= 0x7b && ch <= 0x7e) // {|}~
}

// Decoder is a streaming key decoder. The zero value is ready to use. It is
// not safe for concurrent use.
type Decoder struct {
	buf  []byte
	head int // bytes of buf already consumed
}

// Buffer appends raw bytes to the pending queue.
func (d *Decoder) Buffer(p []byte) {
	switch {
	case d.head == len(d.buf):
		d.buf, d.head = d.buf[:0], 0
	case d.head > cap(d.buf)/2:
		n := copy(d.buf, d.buf[d.head:])
		d.buf, d.head = d.buf[:n], 0
	}
	d.buf = append(d.buf, p...)
}

func (d *Decoder) pending() []byte {
	return d.buf[d.head:]
}

// Len returns the number of pending bytes.
func (d *Decoder) Len() int {
	return len(d.buf) - d.head
}

// Pending returns a copy of the pending bytes. It is never nil.
func (d *Decoder) Pending() []byte {
	return append([]byte{}, d.pending()...)
}

// Reset discards all pending bytes.
func (d *Decoder) Reset() {
	d.buf, d.head = d.buf[:0], 0
}

// Next consumes one complete event from the front of the pending queue.
//
// It returns false when the queue is empty or when it starts with a
// sequence that has not fully arrived yet; in both cases the pending queue
// is left exactly as it was.
func (d *Decoder) Next() (KeyEvent, bool) {
	p := d.pending()
	if len(p) == 0 {
		return KeyEvent{}, false
	}

	ch := p[0]
	if ch == 0x1b {
		n, complete := matchCursorReport(p)
		switch {
		case n > 0:
			return d.take(KeyEvent{Name: NONE}, n), true
		case !complete:
			return KeyEvent{}, false
		default:
			return d.take(KeyEvent{Name: ESC, Ctrl: true}, 1), true
		}
	}

	if name, ok := controls[ch]; ok {
		return d.take(KeyEvent{Name: name, Ctrl: true}, 1), true
	}

	switch {
	case ch == 0x7f:
		return d.take(KeyEvent{Name: DEL, Ctrl: true}, 1), true
	case ch >= 0x20 && ch <= 0x7e:
		return d.take(KeyEvent{Name: NONE, Shift: IsShift(ch)}, 1), true
	default:
		return d.take(KeyEvent{Name: NONE, Ctrl: true}, 1), true
	}
}

// Flush decodes everything that is pending, including a sequence that never
// completed: its leading ESC is emitted on its own and decoding resumes
// after it. The queue is empty afterwards.
func (d *Decoder) Flush() []KeyEvent {
	var events []KeyEvent
	for d.Len() > 0 {
		ev, ok := d.Next()
		if !ok {
			ev = d.take(KeyEvent{Name: ESC, Ctrl: true}, 1)
		}
		events = append(events, ev)
	}
	return events
}

func (d *Decoder) take(ev KeyEvent, n int) KeyEvent {
	ev.Raw = append([]byte(nil), d.buf[d.head:d.head+n]...)
	d.head += n
	if d.head == len(d.buf) {
		d.buf, d.head = d.buf[:0], 0
	}
	return ev
}

// matchCursorReport matches `ESC [ digits ; digits R` at the start of p.
//
// It returns the length of the match, or 0 with complete=false if p ran out
// before the pattern could be decided, or 0 with complete=true if p contains
// a byte that cannot continue the pattern.
func matchCursorReport(p []byte) (n int, complete bool) {
	i := 1
	expect := func(ch byte) (ok, more bool) {
		if i >= len(p) {
			return false, false
		}
		if p[i] != ch {
			return false, true
		}
		i++
		return true, true
	}
	digits := func() {
		for i < len(p) && p[i] >= '0' && p[i] <= '9' {
			i++
		}
	}

	if ok, more := expect('['); !ok {
		return 0, more
	}
	digits()
	if ok, more := expect(';'); !ok {
		return 0, more
	}
	digits()
	if ok, more := expect('R'); !ok {
		return 0, more
	}
	return i, true
}

// ParseCursorReport extracts the row and column from a cursor position
// report (`ESC [ row ; col R`).
func ParseCursorReport(raw []byte) (row, col int, err error) {
	s := string(raw)
	if !strings.HasPrefix(s, "\x1b[") || !strings.HasSuffix(s, "R") {
		return 0, 0, fmt.Errorf("not a cursor position report: %q", s)
	}
	rowStr, colStr, ok := strings.Cut(s[2:len(s)-1], ";")
	if !ok {
		return 0, 0, fmt.Errorf("cursor position report missing separator: %q", s)
	}
	if row, err = strconv.Atoi(rowStr); err != nil {
		return 0, 0, fmt.Errorf("cursor position report row: %w", err)
	}
	if col, err = strconv.Atoi(colStr); err != nil {
		return 0, 0, fmt.Errorf("cursor position report column: %w", err)
	}
	return row, col, nil
}
