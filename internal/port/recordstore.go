package port

import "perfaudit/internal/domain"

// RecordStore persists users, sessions, documents and audit logs. All access is
// keyed by user id.
type RecordStore interface {
	PutUser(user domain.User) error

	CreateSession(session domain.ChatSession) error

	ListSessions(userID string) ([]domain.ChatSession, error)

	AppendMessage(msg domain.ChatMessage) error

	ListMessages(sessionID string) ([]domain.ChatMessage, error)

	PutDocument(doc domain.DocumentRecord, chunks []domain.DocumentChunk) error

	GetDocument(id string) (domain.DocumentRecord, error)

	ListDocuments(userID string) ([]domain.DocumentRecord, error)

	GetChunks(documentID string) ([]domain.DocumentChunk, error)

	AppendAuditLog(entry domain.AuditLog) error

	ListAuditLogs(userID string) ([]domain.AuditLog, error)

	PutSnapshot(snap domain.EngagementSnapshot) error

	GetSnapshot(userID string) (domain.EngagementSnapshot, error)

	Close() error
}
