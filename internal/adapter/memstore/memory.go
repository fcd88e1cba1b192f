// Package memstore keeps guest-mode records in process memory. Nothing
// survives the process.
package memstore

import (
	"fmt"
	"sort"
	"sync"

	"perfaudit/internal/domain"
	"perfaudit/internal/port"
)

type MemoryStore struct {
	mu        sync.RWMutex
	users     map[string]domain.User
	sessions  map[string]domain.ChatSession
	messages  map[string][]domain.ChatMessage
	docs      map[string]domain.DocumentRecord
	docChunks map[string][]domain.DocumentChunk
	logs      []domain.AuditLog
	snapshots map[string]domain.EngagementSnapshot
}

var _ port.RecordStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:     make(map[string]domain.User),
		sessions:  make(map[string]domain.ChatSession),
		messages:  make(map[string][]domain.ChatMessage),
		docs:      make(map[string]domain.DocumentRecord),
		docChunks: make(map[string][]domain.DocumentChunk),
		snapshots: make(map[string]domain.EngagementSnapshot),
	}
}

func (s *MemoryStore) PutUser(user domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.UID]; !ok {
		s.users[user.UID] = user
	}
	return nil
}

func (s *MemoryStore) CreateSession(session domain.ChatSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session
	return nil
}

// ListSessions returns the user's sessions, newest first.
func (s *MemoryStore) ListSessions(userID string) ([]domain.ChatSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.ChatSession
	for _, sess := range s.sessions {
		if sess.UserID == userID {
			out = append(out, sess)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) AppendMessage(msg domain.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[msg.SessionID]; !ok {
		return fmt.Errorf("session %s: %w", msg.SessionID, domain.ErrNotFound)
	}
	s.messages[msg.SessionID] = append(s.messages[msg.SessionID], msg)
	return nil
}

func (s *MemoryStore) ListMessages(sessionID string) ([]domain.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.ChatMessage(nil), s.messages[sessionID]...), nil
}

func (s *MemoryStore) PutDocument(doc domain.DocumentRecord, chunks []domain.DocumentChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.ID] = doc
	s.docChunks[doc.ID] = append([]domain.DocumentChunk(nil), chunks...)
	return nil
}

func (s *MemoryStore) GetDocument(id string) (domain.DocumentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok {
		return domain.DocumentRecord{}, fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	return doc, nil
}

// ListDocuments returns the user's documents, oldest first.
func (s *MemoryStore) ListDocuments(userID string) ([]domain.DocumentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.DocumentRecord
	for _, doc := range s.docs {
		if doc.UserID == userID {
			out = append(out, doc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) GetChunks(documentID string) ([]domain.DocumentChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.DocumentChunk(nil), s.docChunks[documentID]...), nil
}

func (s *MemoryStore) AppendAuditLog(entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, entry)
	return nil
}

func (s *MemoryStore) ListAuditLogs(userID string) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.AuditLog
	for _, l := range s.logs {
		if l.UserID == userID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *MemoryStore) PutSnapshot(snap domain.EngagementSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snap.UserID] = snap
	return nil
}

func (s *MemoryStore) GetSnapshot(userID string) (domain.EngagementSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[userID]
	if !ok {
		return domain.EngagementSnapshot{}, fmt.Errorf("snapshot for %s: %w", userID, domain.ErrNotFound)
	}
	return snap, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
