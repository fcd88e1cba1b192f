package usecase

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perfaudit/internal/adapter/chunker"
	"perfaudit/internal/adapter/fs"
	"perfaudit/internal/adapter/memstore"
	"perfaudit/internal/domain"
	"perfaudit/internal/prompt"
)

// labelSender votes for the label whose keyword appears in the segment.
func labelSender(calls *int32) Sender {
	return sendFunc(func(ctx context.Context, p string) (string, error) {
		atomic.AddInt32(calls, 1)
		switch {
		case strings.Contains(p, "REPORT"):
			return "Annual Performance Report", nil
		case strings.Contains(p, "PLAN"):
			return "Annual Performance Plan", nil
		}
		return "Uncertain", nil
	})
}

func newTestIngestor(calls *int32, store *memstore.MemoryStore) *Ingestor {
	classifier := NewClassifier(labelSender(calls), prompt.MustLoad(), 5, nil)
	if store == nil {
		return NewIngestor(classifier, nil, nil, nil, nil)
	}
	return NewIngestor(classifier, store, chunker.NewParagraphChunker(1000), NewJournal(store, nil, nil), nil)
}

func TestIngestor_ClassifiesAndPersists(t *testing.T) {
	var calls int32
	store := memstore.NewMemoryStore()
	in := newTestIngestor(&calls, store)
	eng := NewEngagement("u")

	raw := strings.Repeat("REPORT   on\nperformance.\n\n", 10)
	doc, cls, err := in.Ingest(context.Background(), eng, "apr.txt", []byte(raw))

	require.NoError(t, err)
	assert.Equal(t, domain.RoleReport, doc.Role)
	assert.Equal(t, 5, cls.Votes[LabelReport])
	assert.NotContains(t, doc.Text, "   ", "text is normalised")

	held, ok := eng.Document(domain.RoleReport)
	require.True(t, ok)
	assert.Equal(t, doc.ID, held.ID)

	rec, err := store.GetDocument(doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "Report", rec.FileType)
	assert.Equal(t, doc, DocumentFromRecord(rec))
	chunks, _ := store.GetChunks(doc.ID)
	assert.NotEmpty(t, chunks)

	logs, _ := store.ListAuditLogs("u")
	require.Len(t, logs, 1)
	assert.Equal(t, "upload", logs[0].Action)
}

func TestIngestor_RejectsBinaryInput(t *testing.T) {
	var calls int32
	in := newTestIngestor(&calls, nil)
	eng := NewEngagement("u")

	for name, raw := range map[string][]byte{
		"nul":    []byte("PLAN\x00\x01"),
		"latin1": {0x50, 0x4c, 0xe9, 0x41},
		"empty":  {},
		"spaces": []byte("   \n\n  "),
	} {
		_, _, err := in.Ingest(context.Background(), eng, name, raw)
		assert.ErrorIs(t, err, domain.ErrUnsupportedInput, name)
	}
	assert.Zero(t, atomic.LoadInt32(&calls), "nothing is classified")
	assert.False(t, eng.Ready())
}

func TestIngestor_AmbiguousLeavesSlotsEmpty(t *testing.T) {
	var calls int32
	in := newTestIngestor(&calls, memstore.NewMemoryStore())
	eng := NewEngagement("u")

	_, _, err := in.Ingest(context.Background(), eng, "notes.txt", []byte(strings.Repeat("minutes of a meeting ", 20)))

	require.ErrorIs(t, err, domain.ErrClassificationAmbiguous)
	_, ok := eng.Document(domain.RolePlan)
	assert.False(t, ok)
}

func TestIngestor_IngestAllSkipsHeldText(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	write("app.txt", strings.Repeat("PLAN targets. ", 20))
	write("apr.txt", strings.Repeat("REPORT achievements. ", 20))
	write("bin.txt", "\x00\x00")
	write("ignored.pdf", "%PDF")

	var calls int32
	in := newTestIngestor(&calls, memstore.NewMemoryStore())
	eng := NewEngagement("u")
	walker := fs.NewWalker([]string{"**/*.txt"}, nil)

	res, err := in.IngestAll(context.Background(), eng, walker, fs.Reader{}, dir)
	require.NoError(t, err)
	assert.Len(t, res.Documents, 2)
	assert.Len(t, res.Errors, 1)
	assert.True(t, eng.Ready())

	res, err = in.IngestAll(context.Background(), eng, walker, fs.Reader{}, dir)
	require.NoError(t, err)
	assert.Empty(t, res.Documents)
	assert.Equal(t, 2, res.FilesSkipped)
}
