package ioctx

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	ctx := context.Background()
	assert.Same(t, slog.Default(), LoggerFromContext(ctx))
	assert.Equal(t, io.Discard, StdoutFromContext(ctx))
}

func TestRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))

	ctx := LoggerToContext(context.Background(), log)
	ctx = StdoutToContext(ctx, &buf)

	assert.Same(t, log, LoggerFromContext(ctx))
	assert.Same(t, &buf, StdoutFromContext(ctx))
}
