package sink

import (
	"bytes"
	"strings"
	"testing"

	"perfaudit/internal/domain"
)

func TestTerminal_RawStreamsSuffixes(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf, 0)

	events := []domain.FeedEvent{
		{Kind: domain.EventBlockOpen, Programme: "Programme 1", Reply: 1, Block: 0},
		{Kind: domain.EventBlockUpdate, Reply: 1, Block: 0, Text: "| Ind"},
		{Kind: domain.EventBlockUpdate, Reply: 1, Block: 0, Text: "| Indicator |"},
		{Kind: domain.EventBlockClose, Reply: 1, Block: 0, Text: "| Indicator |"},
	}
	for _, ev := range events {
		term.Render(ev)
	}

	out := buf.String()
	if !strings.Contains(out, "Programme 1") {
		t.Errorf("missing programme header: %q", out)
	}
	if strings.Count(out, "| Ind") != 1 || !strings.Contains(out, "| Indicator |\n") {
		t.Errorf("text duplicated or incomplete: %q", out)
	}
}

func TestTerminal_RetryRestartsLine(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf, 0)

	term.Render(domain.FeedEvent{Kind: domain.EventBlockUpdate, Text: "garbled text"})
	term.Render(domain.FeedEvent{Kind: domain.EventBlockUpdate, Text: ""})
	term.Render(domain.FeedEvent{Kind: domain.EventBlockUpdate, Text: "clean"})

	if got := buf.String(); got != "garbled text\nclean" {
		t.Errorf("unexpected output %q", got)
	}
}

func TestTerminal_MarkdownRendersOnClose(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf, 80)

	term.Render(domain.FeedEvent{Kind: domain.EventBlockUpdate, Text: "partial"})
	if buf.Len() != 0 {
		t.Fatalf("markdown mode should wait for close, got %q", buf.String())
	}
	term.Render(domain.FeedEvent{Kind: domain.EventBlockClose, Text: "**Findings**"})
	if !strings.Contains(buf.String(), "Findings") {
		t.Errorf("rendered block missing text: %q", buf.String())
	}
}

func TestNotifier_Prefixes(t *testing.T) {
	var buf bytes.Buffer
	n := NewNotifier(&buf)
	n.Notify(domain.NoticeSuccess, "saved")
	n.Notify(domain.NoticeError, "failed")
	n.Notify("other", "note")

	out := buf.String()
	for _, want := range []string{"✓ saved", "✗ failed", "• note"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in %q", want, out)
		}
	}
}
