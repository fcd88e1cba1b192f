package usecase

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"perfaudit/internal/domain"
	"perfaudit/internal/port"
	"perfaudit/internal/prompt"
)

// PassageSearcher indexes document chunks and ranks them against a query.
type PassageSearcher interface {
	Index(ctx context.Context, chunks []domain.Chunk) error
	Search(ctx context.Context, docID, query string, k int) ([]domain.Passage, error)
}

// PassageReranker reorders ranked passages, keeping at most k.
type PassageReranker interface {
	Rerank(candidates []domain.Passage, k int) []domain.Passage
}

// DiscoverOptions tunes programme discovery.
type DiscoverOptions struct {
	Query string
	TopK  int
}

// Discoverer proposes programme names from the classified plan by ranking
// its passages against a fixed query and asking the model to list the
// programmes they mention.
type Discoverer struct {
	searcher PassageSearcher
	reranker PassageReranker
	chunker  port.Chunker
	client   Sender
	prompts  *prompt.Set
	opts     DiscoverOptions
	logger   *zap.Logger
}

func NewDiscoverer(searcher PassageSearcher, reranker PassageReranker, chunker port.Chunker, client Sender, prompts *prompt.Set, opts DiscoverOptions, logger *zap.Logger) *Discoverer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.TopK <= 0 {
		opts.TopK = 3
	}
	if opts.Query == "" {
		opts.Query = "List all key Programmes"
	}
	return &Discoverer{
		searcher: searcher,
		reranker: reranker,
		chunker:  chunker,
		client:   client,
		prompts:  prompts,
		opts:     opts,
		logger:   logger,
	}
}

// Discover stores the proposed names as the engagement's candidates and
// returns them. The scope itself is left to the user.
func (d *Discoverer) Discover(ctx context.Context, eng *Engagement) ([]string, error) {
	plan, ok := eng.Document(domain.RolePlan)
	if !ok {
		return nil, fmt.Errorf("%w: classify an Annual Performance Plan first", domain.ErrMissingPrerequisite)
	}

	chunks := d.chunker.Chunk(plan.ID, plan.Text)
	if err := d.searcher.Index(ctx, chunks); err != nil {
		return nil, fmt.Errorf("failed to index plan: %w", err)
	}

	// over-fetch so the reranker has something to diversify
	passages, err := d.searcher.Search(ctx, plan.ID, d.opts.Query, d.opts.TopK*3)
	if err != nil {
		return nil, fmt.Errorf("failed to rank plan passages: %w", err)
	}
	if d.reranker != nil {
		passages = d.reranker.Rerank(passages, d.opts.TopK)
	} else if len(passages) > d.opts.TopK {
		passages = passages[:d.opts.TopK]
	}
	if len(passages) == 0 {
		return nil, fmt.Errorf("%w: plan has no searchable text", domain.ErrUnsupportedInput)
	}

	texts := make([]string, len(passages))
	for i, p := range passages {
		texts[i] = p.Chunk.Text
	}
	text, err := d.prompts.Render("discover_programmes", struct{ Passages []string }{texts})
	if err != nil {
		return nil, err
	}

	reply, err := d.client.Send(ctx, text)
	if err != nil {
		return nil, err
	}

	names := ParseProgrammes(reply)
	d.logger.Info("programmes discovered",
		zap.String("doc", plan.ID),
		zap.Int("passages", len(passages)),
		zap.Int("programmes", len(names)))
	eng.SetCandidates(names)
	return names, nil
}

var programmeLine = regexp.MustCompile(`(?i)^\s*(?:[-*]\s*)?(?:\*\*)?(programme\b.*?)(?:\*\*)?\s*$`)

// ParseProgrammes returns the lines of reply that start with "Programme",
// in order and without duplicates.
func ParseProgrammes(reply string) []string {
	var names []string
	for _, line := range strings.Split(reply, "\n") {
		m := programmeLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		names = append(names, strings.TrimSpace(m[1]))
	}
	return dedupe(names)
}
