package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"perfaudit/internal/domain"
	"perfaudit/internal/port"
	"perfaudit/internal/prompt"
)

// RecordCache memoises extraction output. Keys are plain structs; the cache
// canonicalises them.
type RecordCache interface {
	Lookup(key any) (string, bool)
	Store(key any, text string)
}

// PhaseProgress reports one settled job inside a phase.
type PhaseProgress struct {
	Kind       domain.ExtractionKind
	Phase      int // 0-based
	Phases     int
	Settled    int
	Programmes int
	Programme  string
	Failed     bool
	Partial    bool
	Cached     bool
}

// Extractor runs the five extraction phases over the engagement's programmes.
type Extractor struct {
	processor   *Processor
	prompts     *prompt.Set
	chunkers    map[domain.ExtractionKind]port.Chunker
	maxInFlight int
	cache       RecordCache
	logger      *zap.Logger
}

func NewExtractor(processor *Processor, prompts *prompt.Set, chunkers map[domain.ExtractionKind]port.Chunker, maxInFlight int, cache RecordCache, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{
		processor:   processor,
		prompts:     prompts,
		chunkers:    chunkers,
		maxInFlight: maxInFlight,
		cache:       cache,
		logger:      logger,
	}
}

type extractionKey struct {
	Document  string `json:"document"`
	Kind      string `json:"kind"`
	Programme string `json:"programme"`
	Chunker   string `json:"chunker"`
	Templates string `json:"templates"`
}

// ExtractAll runs every phase in order. Within a phase one job per programme
// runs concurrently, bounded by maxInFlight; the next phase starts only after
// every job of the current one has settled. A failed job stores an empty
// record for its programme.
func (x *Extractor) ExtractAll(ctx context.Context, eng *Engagement, progress func(PhaseProgress)) error {
	plan, okPlan := eng.Document(domain.RolePlan)
	report, okReport := eng.Document(domain.RoleReport)
	if !okPlan || !okReport {
		return fmt.Errorf("%w: both a plan and a report must be classified before extraction", domain.ErrMissingPrerequisite)
	}
	programmes := eng.Programmes()
	if len(programmes) == 0 {
		return fmt.Errorf("%w: no programmes in scope", domain.ErrMissingPrerequisite)
	}
	for _, kind := range domain.ExtractionPhases {
		if x.chunkers[kind] == nil {
			return fmt.Errorf("no chunker configured for %s", kind)
		}
	}
	if progress == nil {
		progress = func(PhaseProgress) {}
	}

	gen := eng.Generation()
	limit := x.maxInFlight
	if limit <= 0 {
		limit = len(programmes)
	}

	for phase, kind := range domain.ExtractionPhases {
		doc := plan
		if kind.Source() == domain.RoleReport {
			doc = report
		}

		x.logger.Info("extraction phase started",
			zap.String("kind", string(kind)),
			zap.Int("programmes", len(programmes)))

		sem := semaphore.NewWeighted(int64(limit))
		eg, egCtx := errgroup.WithContext(ctx)
		var settled int32

		for _, programme := range programmes {
			if err := sem.Acquire(egCtx, 1); err != nil {
				break
			}
			eg.Go(func() error {
				defer sem.Release(1)

				rec, cached, err := x.extractOne(egCtx, doc, kind, programme)
				if err != nil {
					if domain.IsCancelled(err) {
						return err
					}
					x.logger.Warn("extraction job failed",
						zap.String("kind", string(kind)),
						zap.String("programme", programme),
						zap.Error(err))
					rec = domain.ExtractionRecord{Programme: programme, Kind: kind, Failed: true}
				}
				eng.PutRecord(gen, rec)

				progress(PhaseProgress{
					Kind:       kind,
					Phase:      phase,
					Phases:     len(domain.ExtractionPhases),
					Settled:    int(atomic.AddInt32(&settled, 1)),
					Programmes: len(programmes),
					Programme:  programme,
					Failed:     rec.Failed,
					Partial:    rec.Partial,
					Cached:     cached,
				})
				return nil
			})
		}

		if err := eg.Wait(); err != nil {
			return fmt.Errorf("%w: extraction stopped during %s", domain.ErrCancelled, kind)
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: extraction stopped during %s", domain.ErrCancelled, kind)
		}
		if eng.Generation() != gen {
			return fmt.Errorf("%w: scope changed during extraction", domain.ErrCancelled)
		}
	}

	x.logger.Info("extraction complete", zap.Int("records", eng.RecordCount()))
	return nil
}

func (x *Extractor) extractOne(ctx context.Context, doc domain.Document, kind domain.ExtractionKind, programme string) (domain.ExtractionRecord, bool, error) {
	chunker := x.chunkers[kind]
	key := extractionKey{
		Document:  digest(doc.Text),
		Kind:      string(kind),
		Programme: programme,
		Chunker:   chunker.Name(),
		Templates: x.prompts.Version(),
	}
	if x.cache != nil {
		if text, ok := x.cache.Lookup(key); ok {
			return domain.ExtractionRecord{Programme: programme, Kind: kind, Text: text}, true, nil
		}
	}

	tmpl, err := x.prompts.Extraction(kind, programme)
	if err != nil {
		return domain.ExtractionRecord{}, false, err
	}
	res, err := x.processor.Process(ctx, doc.ID, doc.Text, tmpl, chunker)
	if err != nil {
		return domain.ExtractionRecord{}, false, err
	}

	rec := domain.ExtractionRecord{Programme: programme, Kind: kind, Text: res.Text, Partial: res.Partial()}
	if rec.Partial {
		x.logger.Warn("extraction missing chunk answers, not cached",
			zap.String("kind", string(kind)),
			zap.String("programme", programme),
			zap.Int("failed_chunks", res.Failed),
			zap.Int("chunks", res.Chunks))
		return rec, false, nil
	}
	if x.cache != nil {
		x.cache.Store(key, res.Text)
	}
	return rec, false, nil
}

func digest(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
