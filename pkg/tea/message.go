package tea

import (
	"fmt"
	"strconv"

	"github.com/vito/tealoop/pkg/keycode"
)

// MessageKind identifies the variant of a Message. Handlers are registered
// per kind.
type MessageKind int

const (
	KindTerminate MessageKind = iota
	KindInterrupt
	KindKeypress
	KindError
	KindResize
	KindUser
)

var kindNames = [...]string{
	KindTerminate: "terminate",
	KindInterrupt: "interrupt",
	KindKeypress:  "keypress",
	KindError:     "error",
	KindResize:    "resize",
	KindUser:      "user",
}

func (k MessageKind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "MessageKind(" + strconv.Itoa(int(k)) + ")"
	}
	return kindNames[k]
}

// Message is an event routed through the Bus. The set of variants is
// closed; Kind maps each to exactly one MessageKind.
type Message interface {
	Kind() MessageKind
	message()
}

// TerminateMsg asks the program to stop reading input and ticking.
type TerminateMsg struct{}

// InterruptMsg reports a termination signal delivered to the process.
type InterruptMsg struct {
	Signal string
}

// KeypressMsg carries one decoded key.
type KeypressMsg struct {
	Key keycode.KeyEvent
}

// ErrorMsg carries an error raised while the program was running.
type ErrorMsg struct {
	Err error
}

// ResizeMsg reports new terminal geometry, after clamping.
type ResizeMsg struct {
	Width, Height int
}

// UserMsg carries an application-defined result, typically produced by a
// command.
type UserMsg struct {
	Payload any
}

func (TerminateMsg) Kind() MessageKind { return KindTerminate }
func (InterruptMsg) Kind() MessageKind { return KindInterrupt }
func (KeypressMsg) Kind() MessageKind  { return KindKeypress }
func (ErrorMsg) Kind() MessageKind     { return KindError }
func (ResizeMsg) Kind() MessageKind    { return KindResize }
func (UserMsg) Kind() MessageKind      { return KindUser }

func (TerminateMsg) message() {}
func (InterruptMsg) message() {}
func (KeypressMsg) message()  {}
func (ErrorMsg) message()     {}
func (ResizeMsg) message()    {}
func (UserMsg) message()      {}

// ErrorKind classifies the carried error.
func (m ErrorMsg) ErrorKind() ErrorKind { return KindOf(m.Err) }

func (m ErrorMsg) String() string { return fmt.Sprintf("error(%s): %v", m.ErrorKind(), m.Err) }
func (m KeypressMsg) String() string { return "keypress(" + m.Key.String() + ")" }
