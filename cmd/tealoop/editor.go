package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"unicode/utf8"

	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/x/ansi"
	"github.com/peterbourgon/diskv/v3"

	"github.com/vito/tealoop/pkg/config"
	"github.com/vito/tealoop/pkg/ioctx"
	"github.com/vito/tealoop/pkg/keycode"
	"github.com/vito/tealoop/pkg/tea"
)

const (
	scratchKey = "scratch"
	bodyLines  = 8
)

// saved is the payload of the UserMsg produced by a save.
type saved struct {
	Key   string
	Bytes int
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	statusStyle = lipgloss.NewStyle().Faint(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// editor is the echo editor model. It is only touched on the loop
// goroutine; save commands get a copy of the text.
type editor struct {
	text   []byte
	status string
	failed bool
	width  int
	store  *diskv.Diskv
}

func newStore(path string) *diskv.Diskv {
	return diskv.New(diskv.Options{
		BasePath:     path,
		Transform:    func(string) []string { return []string{} },
		CacheSizeMax: 1024 * 1024,
	})
}

func newEditor(store *diskv.Diskv) (*editor, error) {
	ed := &editor{store: store, width: tea.DefaultMinWidth}
	data, err := store.Read(scratchKey)
	switch {
	case err == nil:
		ed.text = data
		ed.status = fmt.Sprintf("loaded %d bytes", len(data))
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("load scratch: %w", err)
	}
	return ed, nil
}

func (ed *editor) setStatus(msg string, failed bool) {
	ed.status, ed.failed = msg, failed
}

func onKey(ed *editor, ctx tea.Snapshot, msg tea.Message) tea.Command {
	ed.width = ctx.Width
	k := msg.(tea.KeypressMsg).Key

	switch {
	case k.Is("\x03"):
		return tea.Terminate
	case k.Is("\x13"):
		return ed.save()
	}

	switch k.Name {
	case keycode.CR, keycode.LF:
		ed.text = append(ed.text, '\n')
	case keycode.DEL, keycode.BS:
		ed.erase()
	case keycode.ESC:
		ed.setStatus("", false)
	case keycode.NONE:
		// Bytes of multi-byte UTF-8 characters arrive one at a time.
		if k.Ctrl && k.Raw[0] < 0x80 {
			ed.setStatus("unbound key "+k.String(), false)
			return nil
		}
		ed.text = append(ed.text, k.Raw...)
	default:
		ed.setStatus("unbound key "+k.String(), false)
	}
	return nil
}

func (ed *editor) erase() {
	if len(ed.text) == 0 {
		return
	}
	_, size := utf8.DecodeLastRune(ed.text)
	ed.text = ed.text[:len(ed.text)-size]
}

// save writes a copy of the text to the store off the loop goroutine.
func (ed *editor) save() tea.Command {
	data := append([]byte(nil), ed.text...)
	store := ed.store
	return tea.Func(func(cc *tea.CommandContext) tea.Message {
		if err := store.Write(scratchKey, data); err != nil {
			return tea.ErrorMsg{Err: fmt.Errorf("save scratch: %w", err)}
		}
		cc.Logger().Debug("saved scratch", "bytes", len(data))
		return tea.UserMsg{Payload: saved{Key: scratchKey, Bytes: len(data)}}
	})
}

func onUser(ed *editor, _ tea.Snapshot, msg tea.Message) tea.Command {
	if s, ok := msg.(tea.UserMsg).Payload.(saved); ok {
		ed.setStatus(fmt.Sprintf("saved %d bytes to %s", s.Bytes, s.Key), false)
	}
	return nil
}

func onError(ed *editor, _ tea.Snapshot, msg tea.Message) tea.Command {
	em := msg.(tea.ErrorMsg)
	ed.setStatus(em.String(), true)
	if em.ErrorKind().Fatal() {
		return tea.Terminate
	}
	return nil
}

func onInterrupt(ed *editor, _ tea.Snapshot, msg tea.Message) tea.Command {
	ed.setStatus("interrupted by "+msg.(tea.InterruptMsg).Signal, false)
	return tea.Terminate
}

func onResize(ed *editor, _ tea.Snapshot, msg tea.Message) tea.Command {
	rm := msg.(tea.ResizeMsg)
	ed.width = rm.Width
	ed.setStatus(fmt.Sprintf("resized to %dx%d", rm.Width, rm.Height), false)
	return nil
}

func subscribe(p *tea.Program[*editor]) error {
	for kind, h := range map[tea.MessageKind]tea.Handler[*editor]{
		tea.KindKeypress:  onKey,
		tea.KindUser:      onUser,
		tea.KindError:     onError,
		tea.KindInterrupt: onInterrupt,
		tea.KindResize:    onResize,
	} {
		if err := p.Subscribe(kind, h); err != nil {
			return err
		}
	}
	return nil
}

// View draws a title, the last lines of text and the status line. Every
// line clears to its end and the frame clears below itself, since frames
// are drawn over the previous one.
func (ed *editor) View() []byte {
	width := max(ed.width, 1)
	fit := func(s string) string {
		return ansi.Truncate(s, width, "…") + ansi.EraseLineRight + "\r\n"
	}

	var b strings.Builder
	b.WriteString(fit(titleStyle.Render("tealoop") + statusStyle.Render("  ^C quit  ^S save  Esc clear")))

	lines := strings.Split(string(ed.text), "\n")
	if len(lines) > bodyLines {
		lines = lines[len(lines)-bodyLines:]
	}
	for i, line := range lines {
		if i == len(lines)-1 {
			line += "▏"
		}
		b.WriteString(fit(line))
	}

	status := statusStyle.Render(ed.status)
	if ed.failed {
		status = errorStyle.Render(ed.status)
	}
	b.WriteString(ansi.Truncate(status, width, "…"))
	b.WriteString(ansi.EraseScreenBelow)
	return []byte(b.String())
}

func runEditor(ctx context.Context, cfg *config.Config) error {
	ed, err := newEditor(newStore(cfg.StorePath))
	if err != nil {
		return err
	}

	opts := append(cfg.ProgramOptions(), tea.WithSignals())
	p, err := tea.New(ctx, ed, opts...)
	if err != nil {
		return err
	}
	defer p.Close()

	ed.width = p.Context().Width
	if err := subscribe(p); err != nil {
		return err
	}

	if err := p.Run(ctx); err != nil {
		return err
	}
	fmt.Fprint(ioctx.StdoutFromContext(ctx), "\r\n")
	ioctx.LoggerFromContext(ctx).Info("exited", "renders", p.Renders(), "bytes", len(ed.text))
	return nil
}
