package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"perfaudit/internal/port"
)

// New returns the chunker for a named strategy.
func New(strategy string, size int) (port.Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	switch strategy {
	case "paragraph":
		return NewParagraphChunker(size), nil
	case "fixed":
		return NewFixedCountChunker(size), nil
	case "words":
		return NewWordChunker(size), nil
	}
	return nil, fmt.Errorf("unknown chunk strategy: %s", strategy)
}

func generateChunkID(docID, strategy string, index int) string {
	data := fmt.Sprintf("%s:%s:%d", docID, strategy, index)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:8])
}
