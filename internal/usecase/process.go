package usecase

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"perfaudit/internal/domain"
	"perfaudit/internal/port"
	"perfaudit/internal/prompt"
)

// Sender issues a single-prompt completion request.
type Sender interface {
	Send(ctx context.Context, prompt string) (string, error)
}

// Processor applies a prompt template to every chunk of a document, one
// request at a time, and joins the answers in chunk order.
type Processor struct {
	client Sender
	logger *zap.Logger
}

func NewProcessor(client Sender, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{client: client, logger: logger}
}

// ProcessResult is the joined answer text and how many chunks produced no
// answer.
type ProcessResult struct {
	Text   string
	Chunks int
	Failed int
}

// Partial reports whether some, but not all, chunks failed.
func (r ProcessResult) Partial() bool {
	return r.Failed > 0 && r.Failed < r.Chunks
}

// Process chunks text with chunker and substitutes each chunk into template
// at prompt.ChunkPlaceholder. A failed chunk contributes an empty answer and
// is counted in ProcessResult.Failed; only cancellation stops the run. If
// every chunk fails the last error is returned with the (empty) joined text.
func (p *Processor) Process(ctx context.Context, docID, text, template string, chunker port.Chunker) (ProcessResult, error) {
	chunks := chunker.Chunk(docID, text)
	results := make([]string, len(chunks))
	var lastErr error
	failed := 0

	partial := func(upTo int) ProcessResult {
		return ProcessResult{Text: strings.Join(results[:upTo], "\n\n"), Chunks: len(chunks), Failed: failed}
	}

	for _, c := range chunks {
		if err := ctx.Err(); err != nil {
			return partial(c.Index), fmt.Errorf("%w: %v", domain.ErrCancelled, err)
		}

		out, err := p.client.Send(ctx, strings.ReplaceAll(template, prompt.ChunkPlaceholder, c.Text))
		if err != nil {
			if domain.IsCancelled(err) {
				return partial(c.Index), fmt.Errorf("%w: %v", domain.ErrCancelled, err)
			}
			p.logger.Warn("chunk request failed",
				zap.String("doc", docID),
				zap.String("chunker", chunker.Name()),
				zap.Int("chunk", c.Index),
				zap.Error(err))
			lastErr = err
			failed++
			continue
		}
		results[c.Index] = out
	}

	res := partial(len(chunks))
	if failed > 0 && failed == len(chunks) {
		return res, fmt.Errorf("all %d chunks failed: %w", failed, lastErr)
	}
	return res, nil
}
