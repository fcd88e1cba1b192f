package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"perfaudit/internal/domain"
	"perfaudit/internal/port"
)

// ReportGeneral is the export type for free-form chat sessions.
const ReportGeneral = "general"

// Exporter renders sessions or pass results to PDF through the render
// service.
type Exporter struct {
	renderer port.PDFRenderer
	journal  *Journal
	logger   *zap.Logger
}

func NewExporter(renderer port.PDFRenderer, journal *Journal, logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{renderer: renderer, journal: journal, logger: logger}
}

// ExportFilename is the download name for a report of kind generated at t.
func ExportFilename(kind string, t time.Time) string {
	if kind == "" {
		kind = ReportGeneral
	}
	return fmt.Sprintf("%s-report-%s.pdf", kind, t.Format("2006-01-02"))
}

// ReportTitle returns the heading for an export type.
func ReportTitle(kind string) string {
	if pass, ok := domain.ParseAuditKind(kind); ok {
		return pass.Title()
	}
	return domain.AuditKind(ReportGeneral).Title()
}

// ExportSession renders every message of a stored session.
func (x *Exporter) ExportSession(ctx context.Context, sessionID, kind string) ([]byte, error) {
	msgs, err := x.journal.Messages(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}
	if len(msgs) == 0 {
		return nil, fmt.Errorf("%w: session %s has no messages", domain.ErrMissingPrerequisite, sessionID)
	}

	req := domain.ExportRequest{ReportType: kind, ReportTitle: ReportTitle(kind)}
	for _, m := range msgs {
		req.Messages = append(req.Messages, domain.ExportMessage{
			Role:      m.Role,
			Content:   m.Content,
			Timestamp: m.CreatedAt,
		})
	}
	return x.render(ctx, req)
}

// ExportResults renders the results of one pass held by the engagement.
func (x *Exporter) ExportResults(ctx context.Context, eng *Engagement, pass domain.AuditKind) ([]byte, error) {
	results := eng.Results(pass)
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: no %s results to export", domain.ErrMissingPrerequisite, pass)
	}

	req := domain.ExportRequest{ReportType: string(pass), ReportTitle: pass.Title()}
	for _, r := range results {
		req.Messages = append(req.Messages,
			domain.ExportMessage{Role: "user", Content: r.Programme, Timestamp: r.CreatedAt},
			domain.ExportMessage{Role: "assistant", Content: r.Text, Timestamp: r.CreatedAt},
		)
		if r.Followup != "" {
			req.Messages = append(req.Messages,
				domain.ExportMessage{Role: "assistant", Content: r.Followup, Timestamp: r.CreatedAt})
		}
	}
	return x.render(ctx, req)
}

func (x *Exporter) render(ctx context.Context, req domain.ExportRequest) ([]byte, error) {
	pdf, err := x.renderer.Render(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to render %s export: %w", req.ReportType, err)
	}
	x.logger.Info("export rendered",
		zap.String("type", req.ReportType),
		zap.Int("messages", len(req.Messages)),
		zap.Int("bytes", len(pdf)))
	return pdf, nil
}
