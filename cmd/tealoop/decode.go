package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"
	"github.com/kr/pretty"
	"github.com/spf13/cobra"

	"github.com/vito/tealoop/pkg/ioctx"
	"github.com/vito/tealoop/pkg/keycode"
)

func decodeCmd() *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "decode [bytes...]",
		Short: "Decode raw terminal input into key events",
		Long: `Decode each argument, interpreted as the body of a Go string literal, into
the key events the runtime would publish. Without arguments stdin is
decoded.`,
		Example: `  tealoop decode 'hello\r'
  printf '\033[6n' | tealoop decode`,
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := decodeInput(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			return printEvents(ioctx.StdoutFromContext(cmd.Context()), decodeAll(input), verbose)
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "dump each event structure")
	return cmd
}

func decodeInput(stdin io.Reader, args []string) ([]byte, error) {
	if len(args) == 0 {
		return io.ReadAll(stdin)
	}
	var buf []byte
	for _, arg := range args {
		s, err := strconv.Unquote(`"` + strings.ReplaceAll(arg, `"`, `\"`) + `"`)
		if err != nil {
			return nil, fmt.Errorf("decode %q: %w", arg, err)
		}
		buf = append(buf, s...)
	}
	return buf, nil
}

// decodeAll decodes input the way the runtime would once input goes quiet:
// complete events first, then whatever is left flushed.
func decodeAll(input []byte) []keycode.KeyEvent {
	var d keycode.Decoder
	d.Buffer(input)
	var events []keycode.KeyEvent
	for {
		ev, ok := d.Next()
		if !ok {
			break
		}
		events = append(events, ev)
	}
	return append(events, d.Flush()...)
}

func printEvents(w io.Writer, events []keycode.KeyEvent, verbose bool) error {
	bold := color.New(color.Bold)

	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.AddRow(bold.Sprint("#"), bold.Sprint("KEY"), bold.Sprint("RAW"), bold.Sprint("FLAGS"))
	for i, ev := range events {
		tbl.AddRow(i, ev.Name, strconv.Quote(string(ev.Raw)), flags(ev))
	}
	tbl.RightAlign(0)

	if _, err := fmt.Fprintln(w, tbl); err != nil {
		return err
	}
	if verbose {
		for _, ev := range events {
			if _, err := pretty.Fprintf(w, "%# v\n", ev); err != nil {
				return err
			}
		}
	}
	return nil
}

func flags(ev keycode.KeyEvent) string {
	var fs []string
	if ev.Shift {
		fs = append(fs, "shift")
	}
	if ev.Ctrl {
		fs = append(fs, "ctrl")
	}
	if ev.Alt {
		fs = append(fs, "alt")
	}
	if len(fs) == 0 {
		return "-"
	}
	return strings.Join(fs, ",")
}
