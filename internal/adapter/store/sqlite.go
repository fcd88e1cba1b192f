package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"perfaudit/internal/domain"
	"perfaudit/internal/port"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS users (
	uid        TEXT PRIMARY KEY,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS chat_sessions (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	name       TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_user ON chat_sessions(user_id);

CREATE TABLE IF NOT EXISTS chat_messages (
	seq         INTEGER PRIMARY KEY AUTOINCREMENT,
	id          TEXT NOT NULL,
	session_id  TEXT NOT NULL REFERENCES chat_sessions(id),
	role        TEXT NOT NULL,
	content     TEXT NOT NULL,
	tokens_used INTEGER NOT NULL DEFAULT 0,
	model       TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_session ON chat_messages(session_id);

CREATE TABLE IF NOT EXISTS documents (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	filename   TEXT NOT NULL,
	file_type  TEXT NOT NULL,
	role       TEXT NOT NULL DEFAULT '',
	content    TEXT NOT NULL,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_documents_user ON documents(user_id);

CREATE TABLE IF NOT EXISTS document_chunks (
	document_id TEXT NOT NULL REFERENCES documents(id),
	chunk_index INTEGER NOT NULL,
	content     TEXT NOT NULL,
	metadata    TEXT NOT NULL DEFAULT '{}',
	PRIMARY KEY (document_id, chunk_index)
);

CREATE TABLE IF NOT EXISTS audit_logs (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	id         TEXT NOT NULL,
	user_id    TEXT NOT NULL,
	action     TEXT NOT NULL,
	details    TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_logs_user ON audit_logs(user_id);

CREATE TABLE IF NOT EXISTS snapshots (
	user_id TEXT PRIMARY KEY,
	body    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS extraction_cache (
	key       TEXT PRIMARY KEY,
	text      TEXT NOT NULL,
	stored_at DATETIME NOT NULL
);
`

// SQLiteStore is the RecordStore for deployments that want the records in a
// queryable database. The tables mirror the hosted schema.
type SQLiteStore struct {
	db *sql.DB
}

var _ port.RecordStore = (*SQLiteStore)(nil)

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}
	// one writer keeps AUTOINCREMENT order equal to append order
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) PutUser(user domain.User) error {
	_, err := s.db.Exec(`INSERT OR IGNORE INTO users (uid, created_at) VALUES (?, ?)`, user.UID, user.CreatedAt)
	return err
}

func (s *SQLiteStore) CreateSession(session domain.ChatSession) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO chat_sessions (id, user_id, name, created_at) VALUES (?, ?, ?, ?)`,
		session.ID, session.UserID, session.Name, session.CreatedAt,
	)
	return err
}

func (s *SQLiteStore) ListSessions(userID string) ([]domain.ChatSession, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, name, created_at FROM chat_sessions WHERE user_id = ? ORDER BY created_at DESC, id`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []domain.ChatSession
	for rows.Next() {
		var sess domain.ChatSession
		if err := rows.Scan(&sess.ID, &sess.UserID, &sess.Name, &sess.CreatedAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

func (s *SQLiteStore) AppendMessage(msg domain.ChatMessage) error {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM chat_sessions WHERE id = ?`, msg.SessionID).Scan(&n); err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("session %s: %w", msg.SessionID, domain.ErrNotFound)
	}
	_, err := s.db.Exec(
		`INSERT INTO chat_messages (id, session_id, role, content, tokens_used, model, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.SessionID, msg.Role, msg.Content, msg.TokensUsed, msg.Model, msg.CreatedAt,
	)
	return err
}

func (s *SQLiteStore) ListMessages(sessionID string) ([]domain.ChatMessage, error) {
	rows, err := s.db.Query(
		`SELECT id, session_id, role, content, tokens_used, model, created_at
		 FROM chat_messages WHERE session_id = ? ORDER BY seq`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []domain.ChatMessage
	for rows.Next() {
		var m domain.ChatMessage
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.TokensUsed, &m.Model, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (s *SQLiteStore) PutDocument(doc domain.DocumentRecord, chunks []domain.DocumentChunk) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT OR REPLACE INTO documents (id, user_id, filename, file_type, role, content, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.UserID, doc.Filename, doc.FileType, doc.Role, doc.Content, doc.CreatedAt,
	)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM document_chunks WHERE document_id = ?`, doc.ID); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`INSERT INTO document_chunks (document_id, chunk_index, content, metadata) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range chunks {
		meta, err := json.Marshal(c.Metadata)
		if err != nil {
			return err
		}
		if _, err := stmt.Exec(doc.ID, c.Index, c.Content, string(meta)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) GetDocument(id string) (domain.DocumentRecord, error) {
	var doc domain.DocumentRecord
	err := s.db.QueryRow(
		`SELECT id, user_id, filename, file_type, role, content, created_at FROM documents WHERE id = ?`, id,
	).Scan(&doc.ID, &doc.UserID, &doc.Filename, &doc.FileType, &doc.Role, &doc.Content, &doc.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return doc, fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	return doc, err
}

func (s *SQLiteStore) ListDocuments(userID string) ([]domain.DocumentRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, filename, file_type, role, content, created_at
		 FROM documents WHERE user_id = ? ORDER BY created_at, id`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []domain.DocumentRecord
	for rows.Next() {
		var doc domain.DocumentRecord
		if err := rows.Scan(&doc.ID, &doc.UserID, &doc.Filename, &doc.FileType, &doc.Role, &doc.Content, &doc.CreatedAt); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *SQLiteStore) GetChunks(documentID string) ([]domain.DocumentChunk, error) {
	rows, err := s.db.Query(
		`SELECT document_id, chunk_index, content, metadata FROM document_chunks WHERE document_id = ? ORDER BY chunk_index`,
		documentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []domain.DocumentChunk
	for rows.Next() {
		var c domain.DocumentChunk
		var meta string
		if err := rows.Scan(&c.DocumentID, &c.Index, &c.Content, &meta); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(meta), &c.Metadata); err != nil {
			return nil, fmt.Errorf("corrupt chunk metadata %s/%d: %w", documentID, c.Index, err)
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

func (s *SQLiteStore) AppendAuditLog(entry domain.AuditLog) error {
	_, err := s.db.Exec(
		`INSERT INTO audit_logs (id, user_id, action, details, created_at) VALUES (?, ?, ?, ?, ?)`,
		entry.ID, entry.UserID, entry.Action, entry.Details, entry.CreatedAt,
	)
	return err
}

func (s *SQLiteStore) ListAuditLogs(userID string) ([]domain.AuditLog, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, action, details, created_at FROM audit_logs WHERE user_id = ? ORDER BY seq`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []domain.AuditLog
	for rows.Next() {
		var l domain.AuditLog
		if err := rows.Scan(&l.ID, &l.UserID, &l.Action, &l.Details, &l.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func (s *SQLiteStore) PutSnapshot(snap domain.EngagementSnapshot) error {
	body, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT OR REPLACE INTO snapshots (user_id, body) VALUES (?, ?)`, snap.UserID, string(body))
	return err
}

func (s *SQLiteStore) GetSnapshot(userID string) (domain.EngagementSnapshot, error) {
	var snap domain.EngagementSnapshot
	var body string
	err := s.db.QueryRow(`SELECT body FROM snapshots WHERE user_id = ?`, userID).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return snap, fmt.Errorf("snapshot for %s: %w", userID, domain.ErrNotFound)
	}
	if err != nil {
		return snap, err
	}
	return snap, json.Unmarshal([]byte(body), &snap)
}

func (s *SQLiteStore) GetCached(key string) (string, time.Time, bool, error) {
	var text string
	var at time.Time
	err := s.db.QueryRow(`SELECT text, stored_at FROM extraction_cache WHERE key = ?`, key).Scan(&text, &at)
	if errors.Is(err, sql.ErrNoRows) {
		return "", time.Time{}, false, nil
	}
	if err != nil {
		return "", time.Time{}, false, err
	}
	return text, at, true, nil
}

func (s *SQLiteStore) PutCached(key, text string, storedAt time.Time) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO extraction_cache (key, text, stored_at) VALUES (?, ?, ?)`,
		key, text, storedAt,
	)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
