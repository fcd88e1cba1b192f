package usecase

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"perfaudit/internal/adapter/analyzer"
	"perfaudit/internal/domain"
	"perfaudit/internal/port"
)

// Ingestor turns uploaded text into a classified Document and records it.
type Ingestor struct {
	classifier *Classifier
	store      port.RecordStore
	chunker    port.Chunker
	journal    *Journal
	logger     *zap.Logger
}

// NewIngestor builds an Ingestor. store and journal may be nil; chunker
// splits the persisted copy of each document.
func NewIngestor(classifier *Classifier, store port.RecordStore, chunker port.Chunker, journal *Journal, logger *zap.Logger) *Ingestor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingestor{
		classifier: classifier,
		store:      store,
		chunker:    chunker,
		journal:    journal,
		logger:     logger,
	}
}

// Ingest validates and normalises raw, classifies it and places it in its
// role slot. An ambiguous classification leaves the engagement unchanged.
func (in *Ingestor) Ingest(ctx context.Context, eng *Engagement, filename string, raw []byte) (domain.Document, Classification, error) {
	if err := checkText(raw); err != nil {
		return domain.Document{}, Classification{}, fmt.Errorf("%s: %w", filename, err)
	}

	text := analyzer.Normalize(string(raw))
	if strings.TrimSpace(text) == "" {
		return domain.Document{}, Classification{}, fmt.Errorf("%s: %w: no text", filename, domain.ErrUnsupportedInput)
	}

	cls, err := in.classifier.Classify(ctx, text)
	if err != nil {
		in.journal.Log(eng.UserID(), "classify", fmt.Sprintf("%s: %v", filename, err))
		return domain.Document{}, cls, err
	}

	doc := domain.Document{
		ID:        uuid.NewString(),
		UserID:    eng.UserID(),
		Filename:  filename,
		Role:      cls.Role,
		Text:      text,
		CreatedAt: time.Now(),
	}
	eng.SetDocument(doc)

	if err := in.persist(doc); err != nil {
		in.logger.Warn("failed to persist document",
			zap.String("file", filename),
			zap.Error(err))
	}
	in.journal.Log(eng.UserID(), "upload", fmt.Sprintf("%s classified as %s", filename, doc.Role))

	in.logger.Info("document classified",
		zap.String("file", filename),
		zap.String("role", string(doc.Role)),
		zap.Int("failed_segments", cls.Failed))
	return doc, cls, nil
}

func (in *Ingestor) persist(doc domain.Document) error {
	if in.store == nil {
		return nil
	}
	var chunks []domain.DocumentChunk
	if in.chunker != nil {
		for _, c := range in.chunker.Chunk(doc.ID, doc.Text) {
			chunks = append(chunks, domain.DocumentChunk{
				DocumentID: doc.ID,
				Index:      c.Index,
				Content:    c.Text,
				Metadata:   map[string]string{"chunker": in.chunker.Name()},
			})
		}
	}
	return in.store.PutDocument(domain.DocumentRecord{
		ID:        doc.ID,
		UserID:    doc.UserID,
		Filename:  doc.Filename,
		FileType:  doc.Role.FileType(),
		Role:      string(doc.Role),
		Content:   doc.Text,
		CreatedAt: doc.CreatedAt,
	}, chunks)
}

// IngestResult summarises a batch ingest.
type IngestResult struct {
	Documents    []domain.Document
	FilesSkipped int
	Errors       []string
}

// IngestAll ingests every file the walker finds under root. Files whose
// text is already held by the engagement are skipped; per-file failures are
// collected and do not stop the batch.
func (in *Ingestor) IngestAll(ctx context.Context, eng *Engagement, walker port.FileWalker, reader port.FileReader, root string) (*IngestResult, error) {
	files, err := walker.Walk(root)
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no matching files under %s", domain.ErrUnsupportedInput, root)
	}

	held := make(map[string]bool)
	for _, role := range []domain.Role{domain.RoleStrategicPlan, domain.RolePlan, domain.RoleReport} {
		if doc, ok := eng.Document(role); ok {
			held[digest(doc.Text)] = true
		}
	}

	result := &IngestResult{}
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("%w: %v", domain.ErrCancelled, err)
		}

		content, err := reader.ReadFile(file.Path)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("failed to read %s: %v", file.Path, err))
			continue
		}
		if held[digest(analyzer.Normalize(content))] {
			result.FilesSkipped++
			continue
		}

		doc, _, err := in.Ingest(ctx, eng, file.Path, []byte(content))
		if err != nil {
			if domain.IsCancelled(err) {
				return result, err
			}
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		held[digest(doc.Text)] = true
		result.Documents = append(result.Documents, doc)
	}
	return result, nil
}

// checkText rejects input that is not plain UTF-8 text.
func checkText(raw []byte) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: empty file", domain.ErrUnsupportedInput)
	}
	if bytes.IndexByte(raw, 0) >= 0 {
		return fmt.Errorf("%w: binary content", domain.ErrUnsupportedInput)
	}
	if !utf8.Valid(raw) {
		return fmt.Errorf("%w: not valid UTF-8 text", domain.ErrUnsupportedInput)
	}
	return nil
}

// DocumentFromRecord rebuilds a Document from its persisted form.
func DocumentFromRecord(rec domain.DocumentRecord) domain.Document {
	return domain.Document{
		ID:        rec.ID,
		UserID:    rec.UserID,
		Filename:  rec.Filename,
		Role:      domain.Role(rec.Role),
		Text:      rec.Content,
		CreatedAt: rec.CreatedAt,
	}
}
