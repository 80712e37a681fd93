package tea

import (
	"context"
	"log/slog"
	"time"
)

// Command is deferred work that yields one message. Commands run on the
// loop's worker pool, never on the loop goroutine, so they may block.
type Command interface {
	Execute(ctx *CommandContext) Message
}

// CommandContext is handed to running commands. The embedded Context is
// the one passed to Program.Run; it is not canceled by termination. A
// CommandContext with only Context set is usable on its own.
type CommandContext struct {
	context.Context
	rc  *RenderContext
	log *slog.Logger
}

// Snapshot returns a copy of the render context.
func (c *CommandContext) Snapshot() Snapshot {
	if c.rc == nil {
		return Snapshot{}
	}
	return c.rc.Snapshot()
}

// Logger returns the program's logger.
func (c *CommandContext) Logger() *slog.Logger {
	if c.log == nil {
		return slog.Default()
	}
	return c.log
}

// Terminate stops input reading and the render tick.
var Terminate Command = terminateCmd{}

type terminateCmd struct{}

func (terminateCmd) Execute(*CommandContext) Message { return TerminateMsg{} }

// Emit yields msg as is.
func Emit(msg Message) Command { return emitCmd{msg} }

type emitCmd struct{ msg Message }

func (c emitCmd) Execute(*CommandContext) Message { return c.msg }

// Tick yields msg once d has elapsed. If the run's context ends first no
// message is produced.
func Tick(d time.Duration, msg Message) Command { return tickCmd{d, msg} }

type tickCmd struct {
	d   time.Duration
	msg Message
}

func (c tickCmd) Execute(ctx *CommandContext) Message {
	timer := time.NewTimer(c.d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return c.msg
	case <-ctx.Done():
		return nil
	}
}

// Func adapts an application effect into a command.
func Func(fn func(*CommandContext) Message) Command { return funcCmd(fn) }

type funcCmd func(*CommandContext) Message

func (f funcCmd) Execute(ctx *CommandContext) Message { return f(ctx) }
