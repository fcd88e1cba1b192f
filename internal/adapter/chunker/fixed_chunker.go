package chunker

import (
	"fmt"

	"perfaudit/internal/domain"
)

// FixedCountChunker always yields exactly N chunks of ceil(len/N) characters;
// the last chunk takes whatever remains and may be short or empty.
type FixedCountChunker struct {
	count int
}

func NewFixedCountChunker(count int) *FixedCountChunker {
	return &FixedCountChunker{count: count}
}

func (c *FixedCountChunker) Name() string {
	return fmt.Sprintf("fixed(%d)", c.count)
}

func (c *FixedCountChunker) Chunk(docID, content string) []domain.Chunk {
	runes := []rune(content)
	total := len(runes)
	size := (total + c.count - 1) / c.count

	chunks := make([]domain.Chunk, 0, c.count)
	for i := 0; i < c.count; i++ {
		start := min(i*size, total)
		end := min(start+size, total)
		if i == c.count-1 {
			end = total
		}
		chunks = append(chunks, domain.Chunk{
			ID:    generateChunkID(docID, c.Name(), i),
			DocID: docID,
			Index: i,
			Text:  string(runes[start:end]),
		})
	}
	return chunks
}
