// Package tea is a Model-Update-View runtime for terminal programs.
//
// Raw input is decoded into key messages, each message is published to the
// handlers subscribed to its kind, the commands they return run on a worker
// pool and feed their resulting messages back, and after every pass the
// model's view is written at the cursor home position captured at startup.
// Everything except command bodies runs on a single reactor goroutine.
package tea

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/x/ansi"
	"github.com/kr/pretty"

	"github.com/vito/tealoop/pkg/ioctx"
	"github.com/vito/tealoop/pkg/keycode"
	"github.com/vito/tealoop/pkg/reactor"
	"github.com/vito/tealoop/pkg/terminal"
)

// Model is the application state. View renders it; the program writes the
// result at the cursor home position on every tick.
type Model interface {
	View() []byte
}

const (
	DefaultMinWidth            = 80
	DefaultMinHeight           = 45
	DefaultCursorReportTimeout = 2 * time.Second
)

type options struct {
	console    terminal.Console
	in, out    *os.File
	log        *slog.Logger
	workers    int
	cprTimeout time.Duration
	escTimeout time.Duration
	minWidth   int
	minHeight  int
	signals    bool
}

// Option configures a Program.
type Option func(*options)

// WithConsole drives the program through c instead of the process
// terminal.
func WithConsole(c terminal.Console) Option {
	return func(o *options) { o.console = c }
}

// WithFiles uses in and out as the terminal instead of os.Stdin and
// os.Stdout. Both must be terminals.
func WithFiles(in, out *os.File) Option {
	return func(o *options) { o.in, o.out = in, out }
}

// WithLogger sets the logger. It defaults to the logger carried by the
// context passed to New.
func WithLogger(log *slog.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithWorkers bounds how many commands execute at once.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithCursorReportTimeout bounds how long startup waits for the terminal to
// answer the cursor position query. Zero waits forever.
func WithCursorReportTimeout(d time.Duration) Option {
	return func(o *options) { o.cprTimeout = d }
}

// WithEscapeTimeout flushes an incomplete escape sequence as plain keys
// once no further input has arrived for d. Zero disables flushing.
func WithEscapeTimeout(d time.Duration) Option {
	return func(o *options) { o.escTimeout = d }
}

// WithMinSize sets the minimum geometry reported to the model.
func WithMinSize(width, height int) Option {
	return func(o *options) { o.minWidth, o.minHeight = width, height }
}

// WithSignals turns SIGINT, SIGTERM and SIGHUP into InterruptMsg.
func WithSignals() Option {
	return func(o *options) { o.signals = true }
}

// Program owns the terminal, the reactor and the model.
type Program[M Model] struct {
	model   M
	opts    options
	console terminal.Console
	closer  interface{ Close() error }
	log     *slog.Logger

	loop     *reactor.Loop
	stream   *reactor.Stream
	tick     *reactor.Check
	escTimer *reactor.Timer

	decoder   keycode.Decoder
	typeahead []keycode.KeyEvent

	bus  *Bus[M]
	exec *Executor
	rc   RenderContext

	inbound []Message
	renders int
	dirty   bool
	running bool

	stopSources []func()
}

// New bootstraps a program: it checks that the console is a terminal,
// reads its geometry, enters raw mode, asks the terminal for the cursor
// position and records it as home. The terminal is back in its normal mode
// when New returns, whether or not it succeeded.
func New[M Model](ctx context.Context, model M, opts ...Option) (*Program[M], error) {
	o := options{
		in:         os.Stdin,
		out:        os.Stdout,
		cprTimeout: DefaultCursorReportTimeout,
		minWidth:   DefaultMinWidth,
		minHeight:  DefaultMinHeight,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = ioctx.LoggerFromContext(ctx)
	}

	p := &Program[M]{
		model: model,
		opts:  o,
		log:   o.log,
		bus:   NewBus[M](),
	}

	p.console = o.console
	if p.console == nil {
		term, err := terminal.Open(o.in, o.out)
		if err != nil {
			if errors.Is(err, terminal.ErrNotTerminal) {
				return nil, fmt.Errorf("%w: %w", ErrInvalidHandleType, err)
			}
			return nil, err
		}
		p.console = term
		p.closer = term
	}

	p.loop = reactor.New(reactor.WithWorkers(o.workers), reactor.WithLogger(p.log))
	p.stream = p.loop.NewStream(p.console.Input(), p.console.Output())
	p.tick = p.loop.NewCheck()
	p.escTimer = p.loop.NewTimer()
	p.exec = NewExecutor(p.loop, &p.rc, p.log, p.enqueue, p.dispatch)

	if err := p.bootstrap(ctx); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

func (p *Program[M]) bootstrap(ctx context.Context) (err error) {
	cols, rows, err := p.console.Size()
	if err != nil {
		return fmt.Errorf("%w: terminal size: %w", ErrIO, err)
	}
	p.rc.setSize(p.clamp(cols, rows))

	if err := p.console.MakeRaw(); err != nil {
		return fmt.Errorf("%w: enter raw mode: %w", ErrIO, err)
	}
	defer func() {
		if rerr := p.console.Restore(); rerr != nil && err == nil {
			err = fmt.Errorf("%w: restore terminal: %w", ErrIO, rerr)
		}
	}()

	home, err := p.queryCursor(ctx)
	if err != nil {
		return err
	}
	p.rc.setHome(home)
	p.log.Debug("bootstrapped", "home", home, "size", fmt.Sprintf("%dx%d", cols, rows))
	return nil
}

// queryCursor sends a device status report request and waits for the
// cursor position report. Keys typed around the reply are kept for Run.
func (p *Program[M]) queryCursor(ctx context.Context) (Position, error) {
	var (
		home     Position
		finished bool
		result   error
	)
	timer := p.loop.NewTimer()
	finish := func(err error) {
		if finished {
			return
		}
		finished = true
		result = err
		p.stream.ReadStop()
		timer.Stop()
	}

	p.stream.ReadStart(func(data []byte, rerr error) {
		p.decoder.Buffer(data)
		for {
			ev, ok := p.decoder.Next()
			if !ok {
				break
			}
			if !isCursorReport(ev) {
				p.typeahead = append(p.typeahead, ev)
				continue
			}
			row, col, err := keycode.ParseCursorReport(ev.Raw)
			if err != nil {
				finish(fmt.Errorf("%w: %w", ErrProtocol, err))
				return
			}
			home = Position{Row: row, Col: col}
			finish(nil)
			return
		}
		if rerr != nil {
			finish(fmt.Errorf("%w: input ended before cursor position report: %w", ErrProtocol, rerr))
		}
	})
	p.stream.Write([]byte(ansi.RequestCursorPositionReport), func(err error) {
		if err != nil {
			finish(fmt.Errorf("%w: request cursor position: %w", ErrIO, err))
		}
	})
	if d := p.opts.cprTimeout; d > 0 {
		timer.Start(d, func() {
			finish(fmt.Errorf("%w: no cursor position report within %s", ErrProtocol, d))
		})
	}

	if err := p.loop.Run(ctx); err != nil {
		p.stream.ReadStop()
		timer.Stop()
		return Position{}, err
	}
	if result != nil {
		return Position{}, result
	}
	if !finished {
		return Position{}, fmt.Errorf("%w: no cursor position report", ErrProtocol)
	}
	return home, nil
}

func isCursorReport(ev keycode.KeyEvent) bool {
	n := len(ev.Raw)
	return ev.Name == keycode.NONE && n > 1 && ev.Raw[0] == 0x1b && ev.Raw[n-1] == 'R'
}

func (p *Program[M]) clamp(cols, rows int) (int, int) {
	return max(cols, p.opts.minWidth), max(rows, p.opts.minHeight)
}

// Subscribe registers h as the handler for kind, replacing any other.
func (p *Program[M]) Subscribe(kind MessageKind, h Handler[M]) error {
	return p.bus.Subscribe(kind, h)
}

// Attach adds another handler for kind, run after those already
// registered.
func (p *Program[M]) Attach(kind MessageKind, h Handler[M]) error {
	return p.bus.Attach(kind, h)
}

// Model returns the model.
func (p *Program[M]) Model() M { return p.model }

// Context returns a copy of the render context.
func (p *Program[M]) Context() Snapshot { return p.rc.Snapshot() }

// Renders returns how many frames have been rendered.
func (p *Program[M]) Renders() int { return p.renders }

// Run enters raw mode and processes input, messages and commands until a
// TerminateMsg stops input and the tick, every in-flight command has
// completed and the final frame is written, or ctx ends. The terminal is
// restored on return.
//
// A frame is written on the first tick, after any tick in which a handler
// ran or termination began, and after a resize. Ticks that only observe
// unhandled messages or I/O completions write nothing.
func (p *Program[M]) Run(ctx context.Context) (err error) {
	if p.running {
		return errors.New("program is already running")
	}
	p.running = true
	defer func() { p.running = false }()

	p.bus.Seal()
	p.exec.setContext(ctx)

	if err := p.console.MakeRaw(); err != nil {
		return fmt.Errorf("%w: enter raw mode: %w", ErrIO, err)
	}
	defer func() {
		if rerr := p.console.Restore(); rerr != nil && err == nil {
			err = fmt.Errorf("%w: restore terminal: %w", ErrIO, rerr)
		}
	}()

	for _, ev := range p.typeahead {
		p.enqueue(KeypressMsg{Key: ev})
	}
	p.typeahead = nil
	p.decodeInput()

	if !p.rc.Terminating() {
		p.stream.ReadStart(p.onRead)
	}
	p.tick.Start(p.onTick)
	p.startSources()
	defer p.stopAllSources()

	p.dirty = true
	p.loop.Wake()
	err = p.loop.Run(ctx)

	if len(p.inbound) > 0 {
		p.log.Debug("dropping unprocessed messages", "count", len(p.inbound))
		p.inbound = nil
	}
	return err
}

func (p *Program[M]) startSources() {
	if r, ok := p.console.(terminal.Resizer); ok {
		p.stopSources = append(p.stopSources, r.NotifyResize(func() {
			p.loop.Post(p.onResize)
		}))
	}
	if p.opts.signals {
		sigCh := make(chan os.Signal, 1)
		done := make(chan struct{})
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
		go func() {
			for {
				select {
				case sig := <-sigCh:
					p.loop.Post(func() { p.enqueue(InterruptMsg{Signal: sig.String()}) })
				case <-done:
					return
				}
			}
		}()
		p.stopSources = append(p.stopSources, func() {
			signal.Stop(sigCh)
			close(done)
		})
	}
}

func (p *Program[M]) stopAllSources() {
	for _, stop := range p.stopSources {
		stop()
	}
	p.stopSources = nil
}

// enqueue appends msg to the inbound queue. Loop goroutine only.
func (p *Program[M]) enqueue(msg Message) {
	p.inbound = append(p.inbound, msg)
	p.loop.Wake()
}

func (p *Program[M]) decodeInput() {
	for {
		ev, ok := p.decoder.Next()
		if !ok {
			return
		}
		p.enqueue(KeypressMsg{Key: ev})
	}
}

func (p *Program[M]) onRead(data []byte, err error) {
	p.decoder.Buffer(data)
	p.decodeInput()

	if err != nil {
		p.stream.ReadStop()
		p.enqueue(ErrorMsg{Err: fmt.Errorf("%w: read input: %w", ErrIO, err)})
		return
	}

	if d := p.opts.escTimeout; d > 0 {
		if p.decoder.Len() > 0 {
			p.escTimer.Start(d, p.flushInput)
		} else {
			p.escTimer.Stop()
		}
	}
}

func (p *Program[M]) flushInput() {
	for _, ev := range p.decoder.Flush() {
		p.enqueue(KeypressMsg{Key: ev})
	}
}

func (p *Program[M]) onResize() {
	cols, rows, err := p.console.Size()
	if err != nil {
		p.enqueue(ErrorMsg{Err: fmt.Errorf("%w: terminal size: %w", ErrIO, err)})
		return
	}
	w, h := p.clamp(cols, rows)
	p.rc.setSize(w, h)
	p.dirty = true
	p.enqueue(ResizeMsg{Width: w, Height: h})
}

// onTick drains the inbound queue, handles termination and renders. A tick
// in which no handler ran and the geometry did not change writes nothing,
// otherwise every write completion would schedule another frame.
func (p *Program[M]) onTick(*reactor.Check) {
	p.drain()
	if p.rc.Terminating() {
		p.stop()
	}
	if p.dirty {
		p.dirty = false
		p.render()
	}
}

// drain publishes queued messages in order until the queue is empty and no
// completed command is waiting to be delivered. Messages enqueued while
// draining are handled in the same pass.
func (p *Program[M]) drain() {
	for {
		if len(p.inbound) > 0 {
			msg := p.inbound[0]
			p.inbound[0] = nil
			p.inbound = p.inbound[1:]
			p.dispatch(msg)
			continue
		}
		if p.loop.Poll() == 0 && len(p.inbound) == 0 {
			return
		}
	}
}

// dispatch publishes one message and executes the resulting commands.
func (p *Program[M]) dispatch(msg Message) {
	if p.log.Enabled(context.Background(), slog.LevelDebug) {
		p.log.Debug("publish", "kind", msg.Kind(), "msg", pretty.Sprint(msg))
	}

	if msg.Kind() == KindTerminate {
		if !p.rc.terminate() {
			p.log.Debug("terminating")
		}
		p.stream.ReadStop()
		p.escTimer.Stop()
		p.dirty = true
	}

	if !p.bus.Handles(msg.Kind()) {
		if em, ok := msg.(ErrorMsg); ok {
			p.log.Warn("unhandled error", "kind", em.ErrorKind(), "err", em.Err)
		}
		return
	}

	p.dirty = true
	for _, cmd := range p.bus.Publish(p.model, p.rc.Snapshot(), msg) {
		p.exec.Execute(cmd)
	}
}

// stop halts input and the tick. Calling it again does nothing.
func (p *Program[M]) stop() {
	p.stream.ReadStop()
	p.escTimer.Stop()
	p.tick.Stop()
}

func (p *Program[M]) render() {
	home := p.rc.Snapshot().Home
	frame := append([]byte(home.CUP()), p.model.View()...)
	p.renders++
	p.stream.Write(frame, func(err error) {
		if err != nil {
			p.enqueue(ErrorMsg{Err: fmt.Errorf("%w: render: %w", ErrIO, err)})
		}
	})
}

// Close releases the terminal and the reactor. The program cannot be run
// again afterwards.
func (p *Program[M]) Close() error {
	p.stream.Close()
	err := p.loop.Close()
	if p.closer != nil {
		if cerr := p.closer.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
