// Package sink renders the ordered feed and notifications on a terminal.
package sink

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"perfaudit/internal/domain"
	"perfaudit/internal/port"
)

type blockKey struct {
	reply int
	block int
}

// Terminal is a port.FeedRenderer. In raw mode block text is written as it
// streams; in markdown mode each block is rendered with glamour once closed.
type Terminal struct {
	out      io.Writer
	markdown *glamour.TermRenderer
	written  map[blockKey]int
	pending  map[blockKey]string

	header lipgloss.Style
	prompt lipgloss.Style
	muted  lipgloss.Style
}

var _ port.FeedRenderer = (*Terminal)(nil)

// NewTerminal returns a renderer writing to out. width > 0 enables markdown
// rendering with that word wrap.
func NewTerminal(out io.Writer, width int) *Terminal {
	t := &Terminal{
		out:     out,
		written: make(map[blockKey]int),
		pending: make(map[blockKey]string),
		header:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4")),
		prompt:  lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")),
		muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("#626262")).Italic(true),
	}
	if width > 0 {
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(width),
		)
		if err == nil {
			t.markdown = r
		}
	}
	return t
}

func (t *Terminal) Render(ev domain.FeedEvent) {
	key := blockKey{reply: ev.Reply, block: ev.Block}

	switch ev.Kind {
	case domain.EventPlaceholder:
		fmt.Fprintln(t.out, t.muted.Render(fmt.Sprintf("Processing %s...", ev.Pass)))
	case domain.EventPlaceholderDone:
		fmt.Fprintln(t.out, t.muted.Render(fmt.Sprintf("Finished %s.", ev.Pass)))
	case domain.EventPrompt:
		fmt.Fprintln(t.out, t.prompt.Render("> "+firstLine(ev.Text)))
	case domain.EventBlockOpen:
		if ev.Block == 0 && ev.Programme != "" {
			fmt.Fprintln(t.out, t.header.Render(ev.Programme))
		}
	case domain.EventBlockUpdate:
		if t.markdown != nil {
			t.pending[key] = ev.Text
			return
		}
		t.writeSuffix(key, ev.Text)
	case domain.EventBlockClose:
		if t.markdown != nil {
			text := ev.Text
			if text == "" {
				text = t.pending[key]
			}
			delete(t.pending, key)
			rendered, err := t.markdown.Render(text)
			if err != nil {
				rendered = text + "\n"
			}
			fmt.Fprint(t.out, rendered)
			return
		}
		t.writeSuffix(key, ev.Text)
		delete(t.written, key)
		fmt.Fprintln(t.out)
	}
}

// writeSuffix prints the part of the cumulative text not yet on screen. A
// replacement that is not an extension (a retried request) starts on a new
// line.
func (t *Terminal) writeSuffix(key blockKey, text string) {
	n := t.written[key]
	if n > len(text) {
		fmt.Fprintln(t.out)
		n = 0
	}
	fmt.Fprint(t.out, text[n:])
	t.written[key] = len(text)
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	const limit = 120
	if r := []rune(line); len(r) > limit {
		return string(r[:limit]) + "…"
	}
	return line
}

// Notifier prints styled one-line notifications.
type Notifier struct {
	out    io.Writer
	styles map[domain.NoticeLevel]lipgloss.Style
}

var _ port.Notifier = (*Notifier)(nil)

func NewNotifier(out io.Writer) *Notifier {
	return &Notifier{
		out: out,
		styles: map[domain.NoticeLevel]lipgloss.Style{
			domain.NoticeSuccess: lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")).Bold(true),
			domain.NoticeError:   lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87")).Bold(true),
			domain.NoticeInfo:    lipgloss.NewStyle().Foreground(lipgloss.Color("#5FAFFF")),
		},
	}
}

func (n *Notifier) Notify(level domain.NoticeLevel, msg string) {
	style, ok := n.styles[level]
	if !ok {
		style = n.styles[domain.NoticeInfo]
	}
	fmt.Fprintln(n.out, style.Render(noticePrefix(level)+msg))
}

func noticePrefix(level domain.NoticeLevel) string {
	switch level {
	case domain.NoticeSuccess:
		return "✓ "
	case domain.NoticeError:
		return "✗ "
	default:
		return "• "
	}
}
