package domain

import "time"

// EventKind tags a FeedEvent.
type EventKind int

const (
	// EventPlaceholder shows the "processing" indicator for a pass.
	EventPlaceholder EventKind = iota
	// EventPlaceholderDone removes it.
	EventPlaceholderDone
	// EventBlockOpen starts a new output block.
	EventBlockOpen
	// EventBlockUpdate carries the cumulative text of a block.
	EventBlockUpdate
	// EventBlockClose marks a block as final.
	EventBlockClose
	// EventPrompt echoes the user prompt that started a reply.
	EventPrompt
)

func (k EventKind) String() string {
	switch k {
	case EventPlaceholder:
		return "placeholder"
	case EventPlaceholderDone:
		return "placeholder-done"
	case EventBlockOpen:
		return "block-open"
	case EventBlockUpdate:
		return "block-update"
	case EventBlockClose:
		return "block-close"
	case EventPrompt:
		return "prompt"
	}
	return "unknown"
}

// FeedEvent is one ordered presentation update. Reply identifies the output
// wrapper, Block the ordinal of the block inside it.
type FeedEvent struct {
	Seq       uint64
	Kind      EventKind
	Pass      AuditKind
	Programme string
	Reply     int
	Block     int
	Text      string
}

// NoticeLevel styles a transient notification.
type NoticeLevel string

const (
	NoticeSuccess NoticeLevel = "success"
	NoticeError   NoticeLevel = "error"
	NoticeInfo    NoticeLevel = "info"
)

// ExportMessage is one entry of a PDF export.
type ExportMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ExportRequest is the body sent to the PDF render service.
type ExportRequest struct {
	Messages    []ExportMessage `json:"messages"`
	ReportType  string          `json:"reportType"`
	ReportTitle string          `json:"reportTitle"`
}

// EngagementSnapshot is the persisted state of one user's engagement between
// CLI invocations.
type EngagementSnapshot struct {
	UserID      string                               `json:"user_id"`
	PlanDocID   string                               `json:"plan_doc_id,omitempty"`
	ReportDocID string                               `json:"report_doc_id,omitempty"`
	StrategicID string                               `json:"strategic_doc_id,omitempty"`
	Programmes  []string                             `json:"programmes,omitempty"`
	Candidates  []string                             `json:"candidates,omitempty"`
	Records     map[ExtractionKind]map[string]string `json:"records,omitempty"`
	History     map[string][]string                  `json:"history,omitempty"`
	Generation  uint64                               `json:"generation"`
}
