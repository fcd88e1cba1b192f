package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"perfaudit/config"
	"perfaudit/internal/domain"
	"perfaudit/internal/port"
)

type recordStore interface {
	port.RecordStore
	GetCached(key string) (string, time.Time, bool, error)
	PutCached(key, text string, storedAt time.Time) error
}

func openStores(t *testing.T) map[string]recordStore {
	t.Helper()
	dir := t.TempDir()

	bolt, err := NewBoltStore(filepath.Join(dir, "audit.db"))
	if err != nil {
		t.Fatalf("bolt: %v", err)
	}
	lite, err := NewSQLiteStore(filepath.Join(dir, "audit.sqlite"))
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	t.Cleanup(func() {
		bolt.Close()
		lite.Close()
	})
	return map[string]recordStore{"bolt": bolt, "sqlite": lite}
}

var epoch = time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)

func TestStores_SessionsAndMessages(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			older := domain.ChatSession{ID: "s1", UserID: "u1", Name: "first", CreatedAt: epoch}
			newer := domain.ChatSession{ID: "s2", UserID: "u1", Name: "second", CreatedAt: epoch.Add(time.Hour)}
			other := domain.ChatSession{ID: "s3", UserID: "u2", Name: "other", CreatedAt: epoch}
			for _, sess := range []domain.ChatSession{older, newer, other} {
				if err := s.CreateSession(sess); err != nil {
					t.Fatal(err)
				}
			}

			sessions, err := s.ListSessions("u1")
			if err != nil {
				t.Fatal(err)
			}
			if len(sessions) != 2 || sessions[0].ID != "s2" || sessions[1].ID != "s1" {
				t.Fatalf("expected s2, s1; got %+v", sessions)
			}

			for i, content := range []string{"question", "answer", "follow-up"} {
				msg := domain.ChatMessage{ID: content, SessionID: "s1", Role: "user", Content: content, CreatedAt: epoch.Add(time.Duration(i) * time.Second)}
				if err := s.AppendMessage(msg); err != nil {
					t.Fatal(err)
				}
			}
			msgs, err := s.ListMessages("s1")
			if err != nil {
				t.Fatal(err)
			}
			if len(msgs) != 3 || msgs[0].Content != "question" || msgs[2].Content != "follow-up" {
				t.Errorf("messages out of order: %+v", msgs)
			}

			err = s.AppendMessage(domain.ChatMessage{ID: "x", SessionID: "missing", Role: "user", Content: "x", CreatedAt: epoch})
			if !errors.Is(err, domain.ErrNotFound) {
				t.Errorf("expected ErrNotFound for unknown session, got %v", err)
			}
		})
	}
}

func TestStores_DocumentsReplaceChunks(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			doc := domain.DocumentRecord{ID: "d1", UserID: "u1", Filename: "app.txt", FileType: "Plan", Role: "plan", Content: "text", CreatedAt: epoch}
			first := []domain.DocumentChunk{
				{DocumentID: "d1", Index: 0, Content: "a", Metadata: map[string]string{"chunker": "paragraph(1000)"}},
				{DocumentID: "d1", Index: 1, Content: "b"},
				{DocumentID: "d1", Index: 2, Content: "c"},
			}
			if err := s.PutDocument(doc, first); err != nil {
				t.Fatal(err)
			}
			if err := s.PutDocument(doc, first[:2]); err != nil {
				t.Fatal(err)
			}

			chunks, err := s.GetChunks("d1")
			if err != nil {
				t.Fatal(err)
			}
			if len(chunks) != 2 || chunks[0].Content != "a" || chunks[1].Content != "b" {
				t.Fatalf("expected chunks replaced, got %+v", chunks)
			}
			if chunks[0].Metadata["chunker"] != "paragraph(1000)" {
				t.Errorf("metadata lost: %+v", chunks[0].Metadata)
			}

			got, err := s.GetDocument("d1")
			if err != nil {
				t.Fatal(err)
			}
			if got.Role != "plan" || got.FileType != "Plan" {
				t.Errorf("unexpected document: %+v", got)
			}
			if _, err := s.GetDocument("nope"); !errors.Is(err, domain.ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}

			docs, err := s.ListDocuments("u1")
			if err != nil || len(docs) != 1 {
				t.Errorf("expected one document, got %d (%v)", len(docs), err)
			}
		})
	}
}

func TestStores_SnapshotsLogsAndCache(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := s.GetSnapshot("u1"); !errors.Is(err, domain.ErrNotFound) {
				t.Errorf("expected ErrNotFound before first save, got %v", err)
			}
			snap := domain.EngagementSnapshot{
				UserID:     "u1",
				PlanDocID:  "d1",
				Programmes: []string{"Programme 1"},
				History:    map[string][]string{"consistency": {"table"}},
				Generation: 4,
			}
			if err := s.PutSnapshot(snap); err != nil {
				t.Fatal(err)
			}
			got, err := s.GetSnapshot("u1")
			if err != nil {
				t.Fatal(err)
			}
			if got.Generation != 4 || got.History["consistency"][0] != "table" {
				t.Errorf("snapshot not restored: %+v", got)
			}

			for _, action := range []string{"upload", "classify"} {
				if err := s.AppendAuditLog(domain.AuditLog{ID: action, UserID: "u1", Action: action, CreatedAt: epoch}); err != nil {
					t.Fatal(err)
				}
			}
			logs, err := s.ListAuditLogs("u1")
			if err != nil {
				t.Fatal(err)
			}
			if len(logs) != 2 || logs[0].Action != "upload" {
				t.Errorf("unexpected logs: %+v", logs)
			}

			if _, _, ok, err := s.GetCached("k"); ok || err != nil {
				t.Errorf("expected miss, got ok=%v err=%v", ok, err)
			}
			if err := s.PutCached("k", "table", epoch); err != nil {
				t.Fatal(err)
			}
			text, at, ok, err := s.GetCached("k")
			if err != nil || !ok || text != "table" || !at.Equal(epoch) {
				t.Errorf("cache round trip failed: %q %v %v %v", text, at, ok, err)
			}
		})
	}
}

func TestBoltStore_Migration(t *testing.T) {
	s, err := NewBoltStore(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	cfg := config.DefaultConfig()
	res, err := s.CheckMigration(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if !res.NeedsMigration || res.OldVersion != 0 {
		t.Fatalf("fresh store should need migration: %+v", res)
	}
	if err := s.Migrate(cfg); err != nil {
		t.Fatal(err)
	}

	if rebuild, _, err := s.NeedsRebuild(cfg); err != nil || rebuild {
		t.Fatalf("unexpected rebuild after migrate: %v %v", rebuild, err)
	}

	changed := config.DefaultConfig()
	changed.LLM.Model = "another-model"
	rebuild, reason, err := s.NeedsRebuild(changed)
	if err != nil {
		t.Fatal(err)
	}
	if !rebuild || reason == "" {
		t.Errorf("model change should force rebuild, got %v %q", rebuild, reason)
	}
}

func TestBoltStore_ClearDropsDerivedData(t *testing.T) {
	s, err := NewBoltStore(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if err := s.Migrate(config.DefaultConfig()); err != nil {
		t.Fatal(err)
	}
	if err := s.PutCached("k", "table", epoch); err != nil {
		t.Fatal(err)
	}
	if err := s.PutDocument(domain.DocumentRecord{ID: "d1", UserID: "u1", CreatedAt: epoch}, nil); err != nil {
		t.Fatal(err)
	}

	if err := s.Clear(); err != nil {
		t.Fatal(err)
	}
	if _, _, ok, _ := s.GetCached("k"); ok {
		t.Error("cache entry survived clear")
	}
	if _, err := s.GetDocument("d1"); err != nil {
		t.Errorf("documents must survive clear: %v", err)
	}
}

func TestComputeConfigHash_StableAcrossMapOrder(t *testing.T) {
	a := config.DefaultConfig()
	b := config.DefaultConfig()
	if ComputeConfigHash(a) != ComputeConfigHash(b) {
		t.Fatal("hash differs for equal configs")
	}
	b.Extraction.Strategies["plan-indicators"] = config.ChunkStrategy{Strategy: "words", Size: 500}
	if ComputeConfigHash(a) == ComputeConfigHash(b) {
		t.Error("strategy change should change the hash")
	}
}
