package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perfaudit/internal/adapter/memstore"
	"perfaudit/internal/domain"
)

type capturingRenderer struct {
	req domain.ExportRequest
	err error
}

func (c *capturingRenderer) Render(ctx context.Context, req domain.ExportRequest) ([]byte, error) {
	c.req = req
	if c.err != nil {
		return nil, c.err
	}
	return []byte("%PDF-1.7"), nil
}

func TestExportFilename(t *testing.T) {
	day := time.Date(2025, 3, 9, 15, 4, 5, 0, time.UTC)
	assert.Equal(t, "consistency-report-2025-03-09.pdf", ExportFilename("consistency", day))
	assert.Equal(t, "general-report-2025-03-09.pdf", ExportFilename("", day))
}

func TestReportTitle(t *testing.T) {
	assert.Equal(t, "Measurability Analysis Report", ReportTitle("measurability"))
	assert.Equal(t, "Chat Export", ReportTitle(ReportGeneral))
}

func TestExporter_ExportSession(t *testing.T) {
	store := memstore.NewMemoryStore()
	j := NewJournal(store, nil, nil)
	id := j.StartSession("u", "chat")
	j.AddMessage(id, "user", "question", "")
	j.AddMessage(id, "assistant", "answer", "m")

	renderer := &capturingRenderer{}
	pdf, err := NewExporter(renderer, j, nil).ExportSession(context.Background(), id, ReportGeneral)

	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7", string(pdf))
	assert.Equal(t, "Chat Export", renderer.req.ReportTitle)
	require.Len(t, renderer.req.Messages, 2)
	assert.Equal(t, "assistant", renderer.req.Messages[1].Role)
}

func TestExporter_ExportResults(t *testing.T) {
	eng := readyEngagement("plan", "report")
	gen := eng.Rescope([]string{"Programme 1"})
	eng.PutResult(gen, domain.AuditResult{Programme: "Programme 1", Pass: domain.AuditMeasurability, Text: "t1", Followup: "t2"})

	renderer := &capturingRenderer{}
	_, err := NewExporter(renderer, nil, nil).ExportResults(context.Background(), eng, domain.AuditMeasurability)

	require.NoError(t, err)
	assert.Equal(t, "measurability", renderer.req.ReportType)
	require.Len(t, renderer.req.Messages, 3)
	assert.Equal(t, "t2", renderer.req.Messages[2].Content)

	_, err = NewExporter(renderer, nil, nil).ExportResults(context.Background(), eng, domain.AuditRelevance)
	assert.ErrorIs(t, err, domain.ErrMissingPrerequisite)
}

func TestExporter_RenderFailure(t *testing.T) {
	eng := readyEngagement("plan", "report")
	gen := eng.Rescope([]string{"P"})
	eng.PutResult(gen, domain.AuditResult{Programme: "P", Pass: domain.AuditRelevance, Text: "x"})

	boom := errors.New("service down")
	_, err := NewExporter(&capturingRenderer{err: boom}, nil, nil).ExportResults(context.Background(), eng, domain.AuditRelevance)
	assert.ErrorIs(t, err, boom)
}
