// Package ioctx carries process-level I/O on a context: the logger and the
// writer that command output (as opposed to the TUI) should go to.
package ioctx

import (
	"context"
	"io"
	"log/slog"
)

type loggerKey struct{}
type stdoutKey struct{}

// LoggerFromContext returns the logger stored in ctx, or slog.Default().
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if log, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && log != nil {
		return log
	}
	return slog.Default()
}

// LoggerToContext stores log in ctx.
func LoggerToContext(ctx context.Context, log *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, log)
}

// StdoutFromContext returns the writer stored in ctx, or io.Discard.
func StdoutFromContext(ctx context.Context) io.Writer {
	if w, ok := ctx.Value(stdoutKey{}).(io.Writer); ok {
		return w
	}
	return io.Discard
}

// StdoutToContext stores w in ctx.
func StdoutToContext(ctx context.Context, w io.Writer) context.Context {
	return context.WithValue(ctx, stdoutKey{}, w)
}
