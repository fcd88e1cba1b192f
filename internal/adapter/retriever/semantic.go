package retriever

import (
	"context"
	"fmt"
	"strconv"

	"perfaudit/internal/domain"
	"perfaudit/internal/port"
)

const (
	metaDocID = "doc_id"
	metaIndex = "index"
	metaText  = "text"
)

// SemanticRetriever embeds document chunks into a vector store and ranks
// them against a query. Chunk text travels in vector metadata so no separate
// chunk store is needed.
type SemanticRetriever struct {
	vectorStore port.VectorStore
	embedder    port.Embedder
}

func NewSemanticRetriever(vectorStore port.VectorStore, embedder port.Embedder) *SemanticRetriever {
	return &SemanticRetriever{
		vectorStore: vectorStore,
		embedder:    embedder,
	}
}

// Index embeds chunks and stores them under their chunk ids.
func (r *SemanticRetriever) Index(ctx context.Context, chunks []domain.Chunk) error {
	if r.vectorStore == nil || r.embedder == nil {
		return fmt.Errorf("semantic search not available: embeddings not configured")
	}
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := r.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedding returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	items := make([]port.VectorItem, len(chunks))
	for i, c := range chunks {
		items[i] = port.VectorItem{
			ID:     c.ID,
			Vector: vectors[i],
			Metadata: map[string]string{
				metaDocID: c.DocID,
				metaIndex: strconv.Itoa(c.Index),
				metaText:  c.Text,
			},
		}
	}
	return r.vectorStore.Upsert(items)
}

// Search returns the k chunks of docID closest to query.
func (r *SemanticRetriever) Search(ctx context.Context, docID, query string, k int) ([]domain.Passage, error) {
	if r.vectorStore == nil || r.embedder == nil {
		return nil, fmt.Errorf("semantic search not available: embeddings not configured")
	}

	embeddings, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("embedding returned empty result")
	}

	results, err := r.vectorStore.Search(embeddings[0], k, map[string]string{metaDocID: docID})
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	passages := make([]domain.Passage, 0, len(results))
	for _, result := range results {
		idx, _ := strconv.Atoi(result.Metadata[metaIndex])
		passages = append(passages, domain.Passage{
			Chunk: domain.Chunk{
				ID:    result.ID,
				DocID: result.Metadata[metaDocID],
				Index: idx,
				Text:  result.Metadata[metaText],
			},
			Score: result.Score,
		})
	}

	return passages, nil
}
