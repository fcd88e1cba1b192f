package port

import (
	"context"

	"perfaudit/internal/domain"
)

// FeedRenderer consumes ordered feed events. It is only ever called from one
// goroutine.
type FeedRenderer interface {
	Render(ev domain.FeedEvent)
}

// Notifier shows transient user-facing notifications.
type Notifier interface {
	Notify(level domain.NoticeLevel, msg string)
}

// ResultPublisher forwards finished audit results to an outside channel.
type ResultPublisher interface {
	Publish(ctx context.Context, result domain.AuditResult) error
}

// PDFRenderer turns an export request into PDF bytes.
type PDFRenderer interface {
	Render(ctx context.Context, req domain.ExportRequest) ([]byte, error)
}
