package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/mitchellh/go-homedir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vito/tealoop/pkg/config"
	"github.com/vito/tealoop/pkg/ioctx"
	"github.com/vito/tealoop/pkg/keycode"
)

func TestDecodeInput(t *testing.T) {
	input, err := decodeInput(nil, []string{`a\x1b[12;34R`, `\r"`})
	require.NoError(t, err)
	assert.Equal(t, "a\x1b[12;34R\r\"", string(input))

	input, err = decodeInput(strings.NewReader("raw\x03"), nil)
	require.NoError(t, err)
	assert.Equal(t, "raw\x03", string(input))

	_, err = decodeInput(nil, []string{`\q`})
	assert.Error(t, err)
}

func TestDecodeAllFlushesIncompleteSequences(t *testing.T) {
	var names []keycode.KeyName
	var raws []string
	for _, ev := range decodeAll([]byte("x\x1b[1;")) {
		names = append(names, ev.Name)
		raws = append(raws, string(ev.Raw))
	}
	assert.Equal(t, []keycode.KeyName{keycode.NONE, keycode.ESC, keycode.NONE, keycode.NONE, keycode.NONE}, names)
	assert.Equal(t, []string{"x", "\x1b", "[", "1", ";"}, raws)
}

func TestDecodeCommand(t *testing.T) {
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = false })

	var out bytes.Buffer
	cmd := decodeCmd()
	cmd.SetArgs([]string{"--verbose", `A\x1b[3;5R\x7f`})
	require.NoError(t, cmd.ExecuteContext(ioctx.StdoutToContext(context.Background(), &out)))

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.GreaterOrEqual(t, len(lines), 4)
	assert.Equal(t, []string{"#", "KEY", "RAW", "FLAGS"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"0", "NONE", `"A"`, "shift"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{"1", "NONE", `"\x1b[3;5R"`, "-"}, strings.Fields(lines[2]))
	assert.Equal(t, []string{"2", "DEL", `"\x7f"`, "ctrl"}, strings.Fields(lines[3]))
	assert.Contains(t, out.String(), "keycode.KeyEvent{")
}

func TestConfigCommand(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("TEALOOP_CONFIG", "")
	t.Setenv("TEALOOP_WORKERS", "6")
	t.Chdir(dir)
	homedir.DisableCache = true
	t.Cleanup(func() { homedir.DisableCache = false })

	root := configCmd()
	config.AddFlags(root.Flags())

	var out bytes.Buffer
	root.SetArgs([]string{"--min-width", "100"})
	require.NoError(t, root.ExecuteContext(ioctx.StdoutToContext(context.Background(), &out)))

	assert.Contains(t, out.String(), "workers = 6\n")
	assert.Contains(t, out.String(), "min-width = 100\n")
	assert.Contains(t, out.String(), `cpr-timeout = "2s"`)
}
