// Command benchmark shows which plan passages programme discovery would send
// to the model, so the query, chunk size and embedding model can be tuned
// without spending completion tokens.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"perfaudit/config"
	"perfaudit/internal/adapter/analyzer"
	"perfaudit/internal/adapter/chunker"
	"perfaudit/internal/adapter/embedding"
	"perfaudit/internal/adapter/memstore"
	"perfaudit/internal/adapter/retriever"
	"perfaudit/internal/domain"
	"perfaudit/internal/port"
)

func main() {
	dir := flag.String("dir", ".", "Workspace directory holding perfaudit.yaml")
	planPath := flag.String("plan", "", "Plain-text plan to rank")
	query := flag.String("q", "", "Query (default discovery.query)")
	topK := flag.Int("k", 0, "Number of passages (default discovery.top_k)")
	words := flag.Int("words", 0, "Words per chunk (default discovery.chunk_words)")
	flag.Parse()

	if *planPath == "" {
		fmt.Println("Usage: go run ./cmd/benchmark -plan app.txt [-q \"query\"] [-k 3] [-words 5000]")
		os.Exit(1)
	}

	cfg, err := config.LoadFromDir(*dir)
	if err != nil {
		fail("Error loading config: %v", err)
	}
	if *query == "" {
		*query = cfg.Discovery.Query
	}
	if *topK <= 0 {
		*topK = cfg.Discovery.TopK
	}
	if *words <= 0 {
		*words = cfg.Discovery.ChunkWords
	}

	raw, err := os.ReadFile(*planPath)
	if err != nil {
		fail("Error reading plan: %v", err)
	}
	text := analyzer.Normalize(string(raw))

	embedder, err := setupEmbedding(cfg)
	if err != nil {
		fail("Embeddings not available: %v", err)
	}

	ctx := context.Background()
	chunks := chunker.NewWordChunker(*words).Chunk("plan", text)
	search := retriever.NewSemanticRetriever(memstore.NewVectorStore(), embedder)
	if err := search.Index(ctx, chunks); err != nil {
		fail("Indexing failed: %v", err)
	}

	fmt.Println("DISCOVERY PASSAGE BENCHMARK")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Chunks: %d of up to %d words\n", len(chunks), *words)
	fmt.Printf("Model: %s (%s), dimension %d\n", embedder.ModelName(), cfg.Embedding.Provider, embedder.Dimension())
	fmt.Printf("Query: %q\n", *query)
	fmt.Println(strings.Repeat("-", 70))

	candidates, err := search.Search(ctx, "plan", *query, *topK*3)
	if err != nil {
		fail("Search error: %v", err)
	}
	if len(candidates) == 0 {
		fail("No passages ranked")
	}
	passages := retriever.NewMMRReranker(0.7, 0.8).Rerank(candidates, *topK)

	totalScore := 0.0
	for i, p := range passages {
		preview := strings.ReplaceAll(p.Chunk.Text, "\n", " ")
		if r := []rune(preview); len(r) > 150 {
			preview = string(r[:150]) + "..."
		}
		totalScore += p.Score
		fmt.Printf("%d. [%s %.3f] chunk %d\n", i+1, rating(p.Score), p.Score, p.Chunk.Index)
		fmt.Printf("   %s\n\n", preview)
	}

	avgScore := totalScore / float64(len(passages))
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("  Average similarity: %.3f\n", avgScore)
	fmt.Printf("  Top-1 similarity:   %.3f\n", passages[0].Score)
	fmt.Printf("  Programme lines in passages: %d\n", countProgrammeLines(passages))
}

func rating(score float64) string {
	switch {
	case score > 0.7:
		return "HIGH"
	case score > 0.5:
		return "GOOD"
	case score > 0.3:
		return "OK"
	}
	return "LOW"
}

func countProgrammeLines(passages []domain.Passage) int {
	n := 0
	for _, p := range passages {
		for _, line := range strings.Split(p.Chunk.Text, "\n") {
			if strings.HasPrefix(strings.ToLower(strings.TrimSpace(line)), "programme") {
				n++
			}
		}
	}
	return n
}

func setupEmbedding(cfg *config.Config) (port.Embedder, error) {
	e := cfg.Embedding
	switch e.Provider {
	case "mock":
		return embedding.NewMockEmbedder(e.Dimension), nil
	case "openai", "":
		return embedding.NewOpenAICompatibleEmbedder(e.APIKeyEnv, e.Model, e.BaseURL, e.BatchSize)
	}
	return nil, fmt.Errorf("unsupported provider: %s", e.Provider)
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
