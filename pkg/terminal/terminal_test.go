package terminal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/creack/pty"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openPTY(t *testing.T) (ptmx, tty *os.File) {
	t.Helper()
	ptmx, tty, err := pty.Open()
	if err != nil {
		t.Skipf("no pty available: %v", err)
	}
	t.Cleanup(func() {
		tty.Close()
		ptmx.Close()
	})
	return ptmx, tty
}

func TestOpenRejectsNonTerminal(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "plain"))
	require.NoError(t, err)
	defer f.Close()

	_, err = Open(f, f)
	assert.ErrorIs(t, err, ErrNotTerminal)
	assert.False(t, IsTerminal(f))
	assert.False(t, IsTerminal(nil))
}

func TestRawModeRoundTrip(t *testing.T) {
	_, tty := openPTY(t)

	term, err := Open(tty, tty)
	require.NoError(t, err)
	defer term.Close()

	raw, err := term.Raw()
	require.NoError(t, err)
	assert.False(t, raw)

	require.NoError(t, term.MakeRaw())
	raw, err = term.Raw()
	require.NoError(t, err)
	assert.True(t, raw)

	// Entering raw mode twice keeps the pre-raw state to restore.
	require.NoError(t, term.MakeRaw())

	require.NoError(t, term.Restore())
	require.NoError(t, term.Restore())
	raw, err = term.Raw()
	require.NoError(t, err)
	assert.False(t, raw)
}

func TestRestoreWithoutRaw(t *testing.T) {
	_, tty := openPTY(t)

	term, err := Open(tty, tty)
	require.NoError(t, err)
	defer term.Close()
	assert.NoError(t, term.Restore())
}

func TestSize(t *testing.T) {
	ptmx, tty := openPTY(t)
	require.NoError(t, pty.Setsize(ptmx, &pty.Winsize{Rows: 24, Cols: 80}))

	term, err := Open(tty, tty)
	require.NoError(t, err)
	defer term.Close()

	cols, rows, err := term.Size()
	require.NoError(t, err)
	assert.Equal(t, 80, cols)
	assert.Equal(t, 24, rows)
}
