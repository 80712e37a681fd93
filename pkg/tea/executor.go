package tea

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vito/tealoop/pkg/reactor"
)

// Executor runs commands on the loop's worker pool and feeds their results
// back. Completions arrive on the loop goroutine: a TerminateMsg is
// published right away so termination takes effect before the next render,
// anything else is enqueued.
type Executor struct {
	loop    *reactor.Loop
	cc      *CommandContext
	enqueue func(Message)
	publish func(Message)
	log     *slog.Logger

	inflight int
}

// NewExecutor creates an executor. enqueue and publish are called on the
// loop goroutine.
func NewExecutor(loop *reactor.Loop, rc *RenderContext, log *slog.Logger, enqueue, publish func(Message)) *Executor {
	return &Executor{
		loop:    loop,
		cc:      &CommandContext{Context: context.Background(), rc: rc, log: log},
		enqueue: enqueue,
		publish: publish,
		log:     log,
	}
}

func (e *Executor) setContext(ctx context.Context) {
	e.cc = &CommandContext{Context: ctx, rc: e.cc.rc, log: e.cc.log}
}

// InFlight returns the number of commands that have not completed.
func (e *Executor) InFlight() int { return e.inflight }

// Execute schedules cmd. It never blocks the loop goroutine.
func (e *Executor) Execute(cmd Command) {
	var result Message
	cc := e.cc
	e.inflight++
	err := e.loop.QueueWork(func() {
		result = cmd.Execute(cc)
	}, func(err error) {
		e.inflight--
		switch {
		case err != nil:
			e.enqueue(ErrorMsg{Err: fmt.Errorf("command %T: %w", cmd, err)})
		case result == nil:
			e.log.Debug("command produced no message", "command", fmt.Sprintf("%T", cmd))
		case result.Kind() == KindTerminate:
			e.publish(result)
		default:
			e.enqueue(result)
		}
	})
	if err != nil {
		e.inflight--
		e.enqueue(ErrorMsg{Err: fmt.Errorf("%w: queue command %T: %w", ErrIO, cmd, err)})
	}
}
