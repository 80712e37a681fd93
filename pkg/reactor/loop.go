// Package reactor implements a small single-goroutine event loop in the
// spirit of libuv: streams deliver reads, check handles run once per loop
// iteration, timers fire once, and blocking work is offloaded to a bounded
// pool whose completions are marshaled back onto the loop goroutine.
//
// Every callback registered with the loop runs on the goroutine calling
// Run, so state touched only from callbacks needs no locking. Apart from
// Post and Wake, methods must be called from that goroutine (or before Run
// starts).
package reactor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// ErrClosed is returned when submitting to a loop that has been closed.
var ErrClosed = errors.New("reactor: loop closed")

// Option configures a Loop.
type Option func(*Loop)

// WithWorkers bounds the number of work items executing concurrently.
func WithWorkers(n int) Option {
	return func(l *Loop) {
		if n > 0 {
			l.workers = n
		}
	}
}

// WithLogger sets the logger used for loop diagnostics.
func WithLogger(log *slog.Logger) Option {
	return func(l *Loop) {
		if log != nil {
			l.log = log
		}
	}
}

// Loop is the event loop.
type Loop struct {
	events chan func()
	wake   chan struct{}
	done   chan struct{}

	// loop goroutine only
	deferred []func()
	checks   []*Check
	active   int
	pending  int

	workers int
	sem     *semaphore.Weighted
	group   errgroup.Group

	closed    atomic.Bool
	closeOnce sync.Once

	log *slog.Logger
}

// New creates a loop.
func New(opts ...Option) *Loop {
	l := &Loop{
		events:  make(chan func(), 64),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		workers: runtime.GOMAXPROCS(0),
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.sem = semaphore.NewWeighted(int64(l.workers))
	return l
}

// Workers returns the work pool bound.
func (l *Loop) Workers() int { return l.workers }

// Run processes events until no handle is active and no request is
// pending, or until ctx is canceled. It may be called again after it
// returns.
//
// Each iteration waits for at least one event, runs every event that is
// ready at that point, and then runs each started check handle once.
func (l *Loop) Run(ctx context.Context) error {
	if l.closed.Load() {
		return ErrClosed
	}
	for l.alive() {
		if len(l.deferred) == 0 {
			select {
			case fn := <-l.events:
				fn()
			case <-l.wake:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		l.Poll()
		l.runChecks()
	}
	return nil
}

// Poll runs the events that are ready right now without blocking and
// returns how many ran.
func (l *Loop) Poll() int {
	ran := 0
	for len(l.deferred) > 0 {
		fn := l.deferred[0]
		l.deferred = l.deferred[1:]
		fn()
		ran++
	}
	for n := len(l.events); n > 0; n-- {
		select {
		case fn := <-l.events:
			fn()
			ran++
		default:
			return ran
		}
	}
	return ran
}

// Post schedules fn to run on the loop goroutine. It is safe to call from
// any goroutine. Functions posted after Close are dropped.
func (l *Loop) Post(fn func()) {
	select {
	case l.events <- fn:
	case <-l.done:
	}
}

// Wake makes a blocked Run perform another iteration. It is safe to call
// from any goroutine.
func (l *Loop) Wake() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Alive reports whether Run would keep iterating.
func (l *Loop) Alive() bool { return l.alive() }

func (l *Loop) alive() bool {
	return l.active > 0 || l.pending > 0 || len(l.deferred) > 0
}

// later queues fn for the next iteration from the loop goroutine itself.
func (l *Loop) later(fn func()) {
	l.deferred = append(l.deferred, fn)
}

func (l *Loop) runChecks() {
	checks := make([]*Check, len(l.checks))
	copy(checks, l.checks)
	for _, c := range checks {
		if c.active {
			c.cb(c)
		}
	}
}

// QueueWork runs work on the worker pool and then after on the loop
// goroutine. after receives a non-nil error if work panicked. The loop
// stays alive until after has run.
func (l *Loop) QueueWork(work func(), after func(error)) error {
	if l.closed.Load() {
		return ErrClosed
	}
	l.pending++
	l.group.Go(func() error {
		err := l.runWork(work)
		l.Post(func() {
			l.pending--
			if after != nil {
				after(err)
			}
		})
		return nil
	})
	return nil
}

func (l *Loop) runWork(work func()) (err error) {
	if err := l.sem.Acquire(context.Background(), 1); err != nil {
		return err
	}
	defer l.sem.Release(1)
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("work panicked", "panic", r)
			err = fmt.Errorf("reactor: work panicked: %v", r)
		}
	}()
	work()
	return nil
}

// Close stops accepting work and waits for in-flight work to return.
// Completions that have not been delivered yet are dropped.
func (l *Loop) Close() error {
	l.closeOnce.Do(func() {
		l.closed.Store(true)
		close(l.done)
	})
	return l.group.Wait()
}
