package port

import "perfaudit/internal/domain"

// Chunker splits document text into ordinal chunks. Implementations are
// deterministic for a given input.
type Chunker interface {
	Chunk(docID, content string) []domain.Chunk

	// Name describes the strategy and its parameter, e.g. "paragraph(1000)".
	Name() string
}
