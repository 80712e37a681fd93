// Package terminal puts the controlling terminal into raw mode and reports
// its geometry.
package terminal

import (
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/muesli/cancelreader"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// ErrNotTerminal is returned by Open when a file is not attached to a
// terminal device.
var ErrNotTerminal = errors.New("not a terminal")

// Console abstracts the terminal so the runtime can be driven by a fake or
// a pseudo-terminal in tests.
type Console interface {
	// Input returns the raw input byte stream.
	Input() io.Reader

	// Output returns the output byte stream.
	Output() io.Writer

	// Size returns the terminal width and height in cells.
	Size() (cols, rows int, err error)

	// MakeRaw puts the input into raw mode.
	MakeRaw() error

	// Restore undoes MakeRaw. It is a no-op if MakeRaw was never called.
	Restore() error
}

// Resizer is implemented by consoles that can report geometry changes.
type Resizer interface {
	// NotifyResize calls fn whenever the terminal is resized, until stop is
	// called. fn runs on an arbitrary goroutine.
	NotifyResize(fn func()) (stop func())
}

// Terminal is a Console backed by real terminal files, usually os.Stdin and
// os.Stdout.
type Terminal struct {
	in, out *os.File
	input   cancelreader.CancelReader

	mu   sync.Mutex
	orig *unix.Termios
}

var _ Console = (*Terminal)(nil)
var _ Resizer = (*Terminal)(nil)

// Open checks that in and out are terminals and prepares a cancelable
// reader over in.
func Open(in, out *os.File) (*Terminal, error) {
	for _, f := range []*os.File{in, out} {
		if !IsTerminal(f) {
			return nil, errors.Wrap(ErrNotTerminal, f.Name())
		}
	}
	input, err := cancelreader.NewReader(in)
	if err != nil {
		return nil, errors.Wrap(err, "cancelable input")
	}
	return &Terminal{in: in, out: out, input: input}, nil
}

// IsTerminal reports whether f is attached to a terminal device.
func IsTerminal(f *os.File) bool {
	return f != nil && isatty.IsTerminal(f.Fd())
}

func (t *Terminal) Input() io.Reader  { return t.input }
func (t *Terminal) Output() io.Writer { return t.out }

func (t *Terminal) MakeRaw() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	fd := int(t.in.Fd())
	current, err := unix.IoctlGetTermios(fd, ioctlReadTermios)
	if err != nil {
		return errors.Wrap(err, "get termios")
	}
	if t.orig == nil {
		orig := *current
		t.orig = &orig
	}

	raw := *t.orig
	raw.Iflag &^= unix.BRKINT | unix.ICRNL | unix.INPCK | unix.ISTRIP | unix.IXON
	raw.Oflag &^= unix.OPOST
	raw.Cflag |= unix.CS8
	raw.Lflag &^= unix.ECHO | unix.ICANON | unix.IEXTEN | unix.ISIG
	raw.Cc[unix.VMIN] = 1
	raw.Cc[unix.VTIME] = 0
	if err := unix.IoctlSetTermios(fd, ioctlWriteTermios, &raw); err != nil {
		return errors.Wrap(err, "set raw")
	}
	return nil
}

func (t *Terminal) Restore() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.orig == nil {
		return nil
	}
	if err := unix.IoctlSetTermios(int(t.in.Fd()), ioctlWriteTermios, t.orig); err != nil {
		return errors.Wrap(err, "restore termios")
	}
	return nil
}

// Raw reports whether the terminal is currently in the mode set by MakeRaw.
func (t *Terminal) Raw() (bool, error) {
	state, err := unix.IoctlGetTermios(int(t.in.Fd()), ioctlReadTermios)
	if err != nil {
		return false, errors.Wrap(err, "get termios")
	}
	return state.Lflag&(unix.ECHO|unix.ICANON) == 0, nil
}

func (t *Terminal) Size() (cols, rows int, err error) {
	ws, err := unix.IoctlGetWinsize(int(t.out.Fd()), unix.TIOCGWINSZ)
	if err != nil {
		return 0, 0, errors.Wrap(err, "get winsize")
	}
	return int(ws.Col), int(ws.Row), nil
}

func (t *Terminal) NotifyResize(fn func()) (stop func()) {
	sigCh := make(chan os.Signal, 1)
	done := make(chan struct{})
	signal.Notify(sigCh, syscall.SIGWINCH)
	go func() {
		for {
			select {
			case <-sigCh:
				fn()
			case <-done:
				return
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			signal.Stop(sigCh)
			close(done)
		})
	}
}

// Close cancels any pending read and releases the input reader.
func (t *Terminal) Close() error {
	t.input.Cancel()
	return t.input.Close()
}
