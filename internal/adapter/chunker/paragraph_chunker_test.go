package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"

	"perfaudit/internal/domain"
)

func joinChunks(chunks []domain.Chunk) string {
	var b strings.Builder
	for _, c := range chunks {
		b.WriteString(c.Text)
	}
	return b.String()
}

func checkOrdinals(t *testing.T, chunks []domain.Chunk) {
	t.Helper()
	for i, c := range chunks {
		if c.Index != i {
			t.Errorf("chunk %d has ordinal %d", i, c.Index)
		}
		if c.ID == "" {
			t.Errorf("chunk %d has empty ID", i)
		}
	}
}

func TestParagraphChunkerTwelveThousandChars(t *testing.T) {
	// 12 paragraphs of exactly 1000 characters including the separator.
	para := strings.Repeat("x", 998) + "\n\n"
	content := strings.Repeat(para, 11) + strings.Repeat("y", 1000)
	if len(content) != 12000 {
		t.Fatalf("fixture length %d", len(content))
	}

	chunks := NewParagraphChunker(5000).Chunk("doc1", content)

	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	for i, c := range chunks[:len(chunks)-1] {
		if n := utf8.RuneCountInString(c.Text); n >= 5000 {
			t.Errorf("chunk %d has %d chars, want < 5000", i, n)
		}
	}
	if joinChunks(chunks) != content {
		t.Error("concatenated chunks do not reproduce the input")
	}
	checkOrdinals(t, chunks)
}

func TestParagraphChunkerOversizedParagraph(t *testing.T) {
	big := strings.Repeat("b", 300)
	content := "short one\n\n" + big + "\n\nshort two"

	chunks := NewParagraphChunker(100).Chunk("doc1", content)

	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d: %q", len(chunks), chunks)
	}
	if !strings.HasPrefix(chunks[1].Text, big) {
		t.Errorf("expected oversized paragraph alone in chunk 1, got %q", chunks[1].Text)
	}
	if joinChunks(chunks) != content {
		t.Error("concatenated chunks do not reproduce the input")
	}
}

func TestParagraphChunkerFlushesAtThreshold(t *testing.T) {
	// Two 5-char paragraphs with a 10-char threshold: 5+5 reaches it, so flush.
	content := "aaa\n\nbbbbb"
	chunks := NewParagraphChunker(10).Chunk("doc1", content)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}

	chunks = NewParagraphChunker(11).Chunk("doc1", content)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk below threshold, got %d", len(chunks))
	}
}

func TestParagraphChunkerBlankLineVariants(t *testing.T) {
	content := "one\r\n\r\ntwo\n  \n\n\nthree\n"
	chunks := NewParagraphChunker(4).Chunk("doc1", content)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d: %q", len(chunks), chunks)
	}
	if joinChunks(chunks) != content {
		t.Error("concatenated chunks do not reproduce the input")
	}
	checkOrdinals(t, chunks)
}

func TestParagraphChunkerEmptyContent(t *testing.T) {
	chunks := NewParagraphChunker(1000).Chunk("doc1", "")
	if len(chunks) != 0 {
		t.Errorf("expected 0 chunks for empty content, got %d", len(chunks))
	}
}

func TestParagraphChunkerDeterministic(t *testing.T) {
	content := strings.Repeat("Programme 1 indicator text.\n\n", 40)
	a := NewParagraphChunker(200).Chunk("doc1", content)
	b := NewParagraphChunker(200).Chunk("doc1", content)
	if len(a) != len(b) {
		t.Fatalf("chunk counts differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("chunk %d differs between runs", i)
		}
	}
}
