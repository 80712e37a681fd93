package tea

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vito/tealoop/pkg/reactor"
)

type executorHarness struct {
	loop      *reactor.Loop
	rc        *RenderContext
	exec      *Executor
	enqueued  []Message
	published []Message
}

func newExecutorHarness(t *testing.T) *executorHarness {
	t.Helper()
	h := &executorHarness{
		loop: reactor.New(reactor.WithWorkers(2)),
		rc:   &RenderContext{},
	}
	t.Cleanup(func() { h.loop.Close() })
	h.exec = NewExecutor(h.loop, h.rc, slog.Default(),
		func(m Message) { h.enqueued = append(h.enqueued, m) },
		func(m Message) { h.published = append(h.published, m) })
	return h
}

func (h *executorHarness) run(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.loop.Run(ctx))
}

func TestExecutorRoutesResults(t *testing.T) {
	h := newExecutorHarness(t)

	h.exec.Execute(Emit(UserMsg{Payload: "saved"}))
	h.exec.Execute(Terminate)
	h.exec.Execute(Func(func(*CommandContext) Message { return nil }))
	assert.Equal(t, 3, h.exec.InFlight())

	h.run(t)

	assert.Zero(t, h.exec.InFlight())
	assert.Equal(t, []Message{UserMsg{Payload: "saved"}}, h.enqueued)
	assert.Equal(t, []Message{TerminateMsg{}}, h.published)
}

func TestExecutorReportsPanics(t *testing.T) {
	h := newExecutorHarness(t)
	h.exec.Execute(Func(func(*CommandContext) Message { panic("boom") }))
	h.run(t)

	require.Len(t, h.enqueued, 1)
	em, ok := h.enqueued[0].(ErrorMsg)
	require.True(t, ok)
	assert.Contains(t, em.Err.Error(), "boom")
}

func TestExecutorOnClosedLoop(t *testing.T) {
	h := newExecutorHarness(t)
	require.NoError(t, h.loop.Close())

	h.exec.Execute(Terminate)
	assert.Zero(t, h.exec.InFlight())
	require.Len(t, h.enqueued, 1)
	em := h.enqueued[0].(ErrorMsg)
	assert.Equal(t, IOError, em.ErrorKind())
	assert.ErrorIs(t, em.Err, reactor.ErrClosed)
}

func TestCommandsSeeContext(t *testing.T) {
	h := newExecutorHarness(t)
	h.rc.setSize(120, 50)
	h.rc.setHome(Position{Row: 2, Col: 4})

	type key struct{}
	h.exec.setContext(context.WithValue(context.Background(), key{}, "run"))

	h.exec.Execute(Func(func(cc *CommandContext) Message {
		return UserMsg{Payload: fmt.Sprintf("%v %d %v", cc.Value(key{}), cc.Snapshot().Width, cc.Snapshot().Home)}
	}))
	h.run(t)

	assert.Equal(t, []Message{UserMsg{Payload: "run 120 {2 4}"}}, h.enqueued)
}

func TestTickCommand(t *testing.T) {
	cc := &CommandContext{Context: context.Background(), rc: &RenderContext{}, log: slog.Default()}
	assert.Equal(t, UserMsg{Payload: 1}, Tick(time.Millisecond, UserMsg{Payload: 1}).Execute(cc))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cc.Context = ctx
	assert.Nil(t, Tick(time.Hour, UserMsg{Payload: 1}).Execute(cc))
}

func TestErrorKinds(t *testing.T) {
	for _, tc := range []struct {
		err   error
		kind  ErrorKind
		fatal bool
	}{
		{fmt.Errorf("%w: not a tty", ErrInvalidHandleType), InvalidHandleType, true},
		{fmt.Errorf("bootstrap: %w", ErrProtocol), ProtocolError, true},
		{fmt.Errorf("%w: write: %w", ErrIO, errors.New("broken pipe")), IOError, false},
		{ErrAllocation, AllocationFailure, true},
		{errors.New("other"), UnknownError, false},
	} {
		t.Run(tc.kind.String(), func(t *testing.T) {
			assert.Equal(t, tc.kind, KindOf(tc.err))
			assert.Equal(t, tc.fatal, tc.kind.Fatal())
		})
	}
	assert.Equal(t, "ErrorKind(42)", ErrorKind(42).String())
}

func TestRenderContextTerminateIsMonotonic(t *testing.T) {
	var rc RenderContext
	assert.False(t, rc.terminate())
	assert.True(t, rc.terminate())
	assert.True(t, rc.Snapshot().Terminating)
	assert.Equal(t, "\x1b[3;7H", Position{Row: 3, Col: 7}.CUP())
}
