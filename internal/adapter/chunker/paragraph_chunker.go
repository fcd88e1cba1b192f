package chunker

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"perfaudit/internal/domain"
)

var blankLine = regexp.MustCompile(`\r?\n[ \t]*(\r?\n[ \t]*)+`)

// ParagraphChunker accumulates blank-line separated paragraphs until the
// buffer would reach the character threshold. A paragraph larger than the
// threshold is emitted on its own and never split.
type ParagraphChunker struct {
	threshold int
}

func NewParagraphChunker(threshold int) *ParagraphChunker {
	return &ParagraphChunker{threshold: threshold}
}

func (c *ParagraphChunker) Name() string {
	return fmt.Sprintf("paragraph(%d)", c.threshold)
}

func (c *ParagraphChunker) Chunk(docID, content string) []domain.Chunk {
	var chunks []domain.Chunk
	var buf strings.Builder
	bufLen := 0

	flush := func() {
		if buf.Len() == 0 {
			return
		}
		idx := len(chunks)
		chunks = append(chunks, domain.Chunk{
			ID:    generateChunkID(docID, c.Name(), idx),
			DocID: docID,
			Index: idx,
			Text:  buf.String(),
		})
		buf.Reset()
		bufLen = 0
	}

	for _, para := range splitParagraphs(content) {
		paraLen := utf8.RuneCountInString(para)
		if bufLen > 0 && bufLen+paraLen >= c.threshold {
			flush()
		}
		buf.WriteString(para)
		bufLen += paraLen
	}
	flush()

	return chunks
}

// splitParagraphs splits on blank lines. Each separator stays attached to the
// paragraph before it so the pieces concatenate back to the input.
func splitParagraphs(content string) []string {
	if content == "" {
		return nil
	}
	var paras []string
	start := 0
	for _, loc := range blankLine.FindAllStringIndex(content, -1) {
		paras = append(paras, content[start:loc[1]])
		start = loc[1]
	}
	if start < len(content) {
		paras = append(paras, content[start:])
	}
	return paras
}
