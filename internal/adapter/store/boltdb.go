package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"

	"perfaudit/internal/domain"
	"perfaudit/internal/port"
)

var (
	bucketUsers     = []byte("users")
	bucketSessions  = []byte("sessions")
	bucketMessages  = []byte("messages")
	bucketDocs      = []byte("documents")
	bucketChunks    = []byte("chunks")
	bucketAuditLogs = []byte("audit_logs")
	bucketSnapshots = []byte("snapshots")
	bucketCache     = []byte("extractions")
	bucketMeta      = []byte("meta")
)

// BoltStore is the local persistent RecordStore. Child records (messages,
// chunks, audit logs) are keyed "<parent>/<sequence>" so a prefix scan
// returns them in insertion order.
type BoltStore struct {
	db *bbolt.DB
}

var _ port.RecordStore = (*BoltStore)(nil)

func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		buckets := [][]byte{bucketUsers, bucketSessions, bucketMessages, bucketDocs, bucketChunks, bucketAuditLogs, bucketSnapshots, bucketMeta}
		for _, b := range buckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) DB() *bbolt.DB {
	return s.db
}

func childKey(parent string, seq uint64) []byte {
	return []byte(fmt.Sprintf("%s/%012d", parent, seq))
}

func putJSON(b *bbolt.Bucket, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.Put(key, data)
}

// scanPrefix decodes every value whose key starts with parent + "/".
func scanPrefix[T any](b *bbolt.Bucket, parent string) ([]T, error) {
	prefix := []byte(parent + "/")
	var out []T
	c := b.Cursor()
	for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
		var item T
		if err := json.Unmarshal(v, &item); err != nil {
			return nil, fmt.Errorf("corrupt record %s: %w", k, err)
		}
		out = append(out, item)
	}
	return out, nil
}

func (s *BoltStore) PutUser(user domain.User) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketUsers)
		if b.Get([]byte(user.UID)) != nil {
			return nil
		}
		return putJSON(b, []byte(user.UID), user)
	})
}

func (s *BoltStore) CreateSession(session domain.ChatSession) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return putJSON(tx.Bucket(bucketSessions), []byte(session.ID), session)
	})
}

// ListSessions returns the user's sessions, newest first.
func (s *BoltStore) ListSessions(userID string) ([]domain.ChatSession, error) {
	var sessions []domain.ChatSession
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSessions).ForEach(func(k, v []byte) error {
			var sess domain.ChatSession
			if err := json.Unmarshal(v, &sess); err != nil {
				return err
			}
			if sess.UserID == userID {
				sessions = append(sessions, sess)
			}
			return nil
		})
	})
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].CreatedAt.After(sessions[j].CreatedAt) })
	return sessions, err
}

func (s *BoltStore) AppendMessage(msg domain.ChatMessage) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket(bucketSessions).Get([]byte(msg.SessionID)) == nil {
			return fmt.Errorf("session %s: %w", msg.SessionID, domain.ErrNotFound)
		}
		b := tx.Bucket(bucketMessages)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		return putJSON(b, childKey(msg.SessionID, seq), msg)
	})
}

func (s *BoltStore) ListMessages(sessionID string) ([]domain.ChatMessage, error) {
	var msgs []domain.ChatMessage
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		msgs, err = scanPrefix[domain.ChatMessage](tx.Bucket(bucketMessages), sessionID)
		return err
	})
	return msgs, err
}

// PutDocument stores doc and replaces its chunks in one transaction.
func (s *BoltStore) PutDocument(doc domain.DocumentRecord, chunks []domain.DocumentChunk) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := putJSON(tx.Bucket(bucketDocs), []byte(doc.ID), doc); err != nil {
			return err
		}

		b := tx.Bucket(bucketChunks)
		prefix := []byte(doc.ID + "/")
		c := b.Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Seek(prefix) {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		for _, chunk := range chunks {
			if err := putJSON(b, childKey(doc.ID, uint64(chunk.Index)), chunk); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BoltStore) GetDocument(id string) (domain.DocumentRecord, error) {
	var doc domain.DocumentRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketDocs).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
		}
		return json.Unmarshal(data, &doc)
	})
	return doc, err
}

// ListDocuments returns the user's documents, oldest first.
func (s *BoltStore) ListDocuments(userID string) ([]domain.DocumentRecord, error) {
	var docs []domain.DocumentRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketDocs).ForEach(func(k, v []byte) error {
			var doc domain.DocumentRecord
			if err := json.Unmarshal(v, &doc); err != nil {
				return err
			}
			if doc.UserID == userID {
				docs = append(docs, doc)
			}
			return nil
		})
	})
	sort.Slice(docs, func(i, j int) bool { return docs[i].CreatedAt.Before(docs[j].CreatedAt) })
	return docs, err
}

func (s *BoltStore) GetChunks(documentID string) ([]domain.DocumentChunk, error) {
	var chunks []domain.DocumentChunk
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		chunks, err = scanPrefix[domain.DocumentChunk](tx.Bucket(bucketChunks), documentID)
		return err
	})
	return chunks, err
}

func (s *BoltStore) AppendAuditLog(entry domain.AuditLog) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketAuditLogs)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		return putJSON(b, childKey(entry.UserID, seq), entry)
	})
}

func (s *BoltStore) ListAuditLogs(userID string) ([]domain.AuditLog, error) {
	var logs []domain.AuditLog
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		logs, err = scanPrefix[domain.AuditLog](tx.Bucket(bucketAuditLogs), userID)
		return err
	})
	return logs, err
}

func (s *BoltStore) PutSnapshot(snap domain.EngagementSnapshot) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return putJSON(tx.Bucket(bucketSnapshots), []byte(snap.UserID), snap)
	})
}

func (s *BoltStore) GetSnapshot(userID string) (domain.EngagementSnapshot, error) {
	var snap domain.EngagementSnapshot
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketSnapshots).Get([]byte(userID))
		if data == nil {
			return fmt.Errorf("snapshot for %s: %w", userID, domain.ErrNotFound)
		}
		return json.Unmarshal(data, &snap)
	})
	return snap, err
}

type cachedExtraction struct {
	Text     string    `json:"text"`
	StoredAt time.Time `json:"stored_at"`
}

// GetCached reads a persisted extraction cache entry.
func (s *BoltStore) GetCached(key string) (string, time.Time, bool, error) {
	var entry cachedExtraction
	found := false
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketCache)
		if b == nil {
			return nil
		}
		data := b.Get([]byte(key))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &entry)
	})
	return entry.Text, entry.StoredAt, found, err
}

// PutCached persists an extraction cache entry.
func (s *BoltStore) PutCached(key, text string, storedAt time.Time) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketCache)
		if err != nil {
			return err
		}
		return putJSON(b, []byte(key), cachedExtraction{Text: text, StoredAt: storedAt})
	})
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
