package usecase

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"perfaudit/internal/domain"
	"perfaudit/internal/port"
)

// Journal records chat sessions, messages and audit log entries. A nil
// Journal drops everything, so passes can run without a store.
type Journal struct {
	store  port.RecordStore
	tokens port.TokenCounter
	logger *zap.Logger
}

func NewJournal(store port.RecordStore, tokens port.TokenCounter, logger *zap.Logger) *Journal {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Journal{store: store, tokens: tokens, logger: logger}
}

// StartSession creates a named session and returns its id. Persistence
// failures are logged; the returned id is still usable.
func (j *Journal) StartSession(userID, name string) string {
	id := uuid.NewString()
	if j == nil {
		return id
	}
	err := j.store.CreateSession(domain.ChatSession{
		ID:        id,
		UserID:    userID,
		Name:      name,
		CreatedAt: time.Now(),
	})
	if err != nil {
		j.logger.Warn("failed to create session", zap.String("name", name), zap.Error(err))
	}
	return id
}

// AddMessage appends one message to a session.
func (j *Journal) AddMessage(sessionID, role, content, model string) {
	if j == nil || content == "" {
		return
	}
	tokens := 0
	if j.tokens != nil {
		tokens = j.tokens.CountTokens(content)
	}
	err := j.store.AppendMessage(domain.ChatMessage{
		ID:         uuid.NewString(),
		SessionID:  sessionID,
		Role:       role,
		Content:    content,
		TokensUsed: tokens,
		Model:      model,
		CreatedAt:  time.Now(),
	})
	if err != nil {
		j.logger.Warn("failed to store message", zap.String("session", sessionID), zap.Error(err))
	}
}

func (j *Journal) Log(userID, action, details string) {
	if j == nil {
		return
	}
	err := j.store.AppendAuditLog(domain.AuditLog{
		ID:        uuid.NewString(),
		UserID:    userID,
		Action:    action,
		Details:   details,
		CreatedAt: time.Now(),
	})
	if err != nil {
		j.logger.Warn("failed to write audit log", zap.String("action", action), zap.Error(err))
	}
}

// Sessions lists a user's sessions, newest first.
func (j *Journal) Sessions(userID string) ([]domain.ChatSession, error) {
	if j == nil {
		return nil, nil
	}
	return j.store.ListSessions(userID)
}

func (j *Journal) Messages(sessionID string) ([]domain.ChatMessage, error) {
	if j == nil {
		return nil, nil
	}
	return j.store.ListMessages(sessionID)
}
