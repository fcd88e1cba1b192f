package chunker

import (
	"fmt"
	"strings"

	"perfaudit/internal/domain"
)

// WordChunker groups whitespace-separated words, at most maxWords per chunk,
// joined by single spaces. Used for embedding input.
type WordChunker struct {
	maxWords int
}

func NewWordChunker(maxWords int) *WordChunker {
	return &WordChunker{maxWords: maxWords}
}

func (c *WordChunker) Name() string {
	return fmt.Sprintf("words(%d)", c.maxWords)
}

func (c *WordChunker) Chunk(docID, content string) []domain.Chunk {
	words := strings.Fields(content)
	var chunks []domain.Chunk
	for start := 0; start < len(words); start += c.maxWords {
		end := min(start+c.maxWords, len(words))
		idx := len(chunks)
		chunks = append(chunks, domain.Chunk{
			ID:    generateChunkID(docID, c.Name(), idx),
			DocID: docID,
			Index: idx,
			Text:  strings.Join(words[start:end], " "),
		})
	}
	return chunks
}
