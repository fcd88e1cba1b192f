package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perfaudit/internal/domain"
)

func TestEngagement_RescopeClearsDerivedState(t *testing.T) {
	eng := readyEngagement("plan", "report")
	gen := eng.Rescope([]string{"Programme 1", "Programme 2"})

	require.True(t, eng.PutRecord(gen, domain.ExtractionRecord{Programme: "Programme 1", Kind: domain.KindPlanIndicators, Text: "old"}))
	require.True(t, eng.PutResult(gen, domain.AuditResult{Programme: "Programme 1", Pass: domain.AuditConsistency, Text: "old"}))

	newGen := eng.Rescope([]string{"Programme 3"})

	assert.Greater(t, newGen, gen)
	assert.Zero(t, eng.RecordCount())
	assert.Zero(t, eng.ResultCount())
	_, ok := eng.Record(domain.KindPlanIndicators, "Programme 1")
	assert.False(t, ok)
	assert.Equal(t, []string{"Programme 3"}, eng.Programmes())
}

func TestEngagement_StaleWritesAreRejected(t *testing.T) {
	eng := readyEngagement("plan", "report")
	old := eng.Rescope([]string{"Programme 1"})
	eng.Rescope([]string{"Programme 2"})

	assert.False(t, eng.PutRecord(old, domain.ExtractionRecord{Programme: "Programme 1", Kind: domain.KindPlanIndicators}))
	assert.False(t, eng.PutResult(old, domain.AuditResult{Programme: "Programme 1", Pass: domain.AuditRelevance}))
	assert.Zero(t, eng.RecordCount())
	assert.Zero(t, eng.ResultCount())
}

func TestEngagement_NewPlanInvalidatesRecords(t *testing.T) {
	eng := readyEngagement("plan", "report")
	gen := eng.Rescope([]string{"Programme 1"})
	eng.SetCandidates([]string{"Programme 1", "Programme 2"})
	eng.PutRecord(gen, domain.ExtractionRecord{Programme: "Programme 1", Kind: domain.KindPlanTechnical})

	eng.SetDocument(domain.Document{ID: "plan2", Role: domain.RolePlan, Text: "new plan"})

	assert.NotEqual(t, gen, eng.Generation())
	assert.Zero(t, eng.RecordCount())
	assert.Empty(t, eng.Candidates())
	assert.Equal(t, []string{"Programme 1"}, eng.Programmes(), "scope survives a document swap")

	before := eng.Generation()
	eng.SetDocument(domain.Document{ID: "sp", Role: domain.RoleStrategicPlan})
	assert.Equal(t, before, eng.Generation(), "a strategic plan does not feed extraction")
}

func TestEngagement_RescopeDedupes(t *testing.T) {
	eng := NewEngagement("u")
	eng.Rescope([]string{"Programme 1", "", "Programme 2", "Programme 1"})
	assert.Equal(t, []string{"Programme 1", "Programme 2"}, eng.Programmes())
}

func TestEngagement_ReadyAndHasRecords(t *testing.T) {
	eng := NewEngagement("u")
	assert.False(t, eng.Ready())

	eng.SetDocument(domain.Document{ID: "p", Role: domain.RolePlan})
	assert.False(t, eng.Ready())
	eng.SetDocument(domain.Document{ID: "r", Role: domain.RoleReport})
	assert.True(t, eng.Ready())

	gen := eng.Rescope([]string{"Programme 1"})
	kinds := domain.AuditConsistency.Requires()
	assert.False(t, eng.HasRecords("Programme 1", kinds))

	eng.PutRecord(gen, domain.ExtractionRecord{Programme: "Programme 1", Kind: domain.KindPlanIndicators})
	eng.PutRecord(gen, domain.ExtractionRecord{Programme: "Programme 1", Kind: domain.KindReportIndicators, Failed: true})
	assert.True(t, eng.HasRecords("Programme 1", kinds), "failed records still count as present")
}

func TestEngagement_BeginEnd(t *testing.T) {
	eng := NewEngagement("u")
	require.True(t, eng.Begin())
	assert.False(t, eng.Begin())
	eng.End()
	assert.True(t, eng.Begin())
}

func TestEngagement_ResultsFollowScopeOrder(t *testing.T) {
	eng := readyEngagement("plan", "report")
	gen := eng.Rescope([]string{"B", "A"})
	eng.PutResult(gen, domain.AuditResult{Programme: "A", Pass: domain.AuditRelevance, Text: "a"})
	eng.PutResult(gen, domain.AuditResult{Programme: "B", Pass: domain.AuditRelevance, Text: "b"})

	res := eng.Results(domain.AuditRelevance)
	require.Len(t, res, 2)
	assert.Equal(t, "B", res[0].Programme)
	assert.Equal(t, "A", res[1].Programme)
}

func TestEngagement_SnapshotRestore(t *testing.T) {
	eng := readyEngagement("plan text", "report text")
	gen := eng.Rescope([]string{"Programme 1"})
	eng.SetCandidates([]string{"Programme 1", "Programme 2"})
	eng.PutRecord(gen, domain.ExtractionRecord{Programme: "Programme 1", Kind: domain.KindReportOutcome, Text: "outcomes"})

	snap := eng.Snapshot()
	assert.Equal(t, "plan", snap.PlanDocID)
	assert.Equal(t, "report", snap.ReportDocID)

	restored := NewEngagement("tester")
	plan, _ := eng.Document(domain.RolePlan)
	report, _ := eng.Document(domain.RoleReport)
	restored.Restore(snap, []domain.Document{plan, report})

	assert.True(t, restored.Ready())
	assert.Equal(t, eng.Programmes(), restored.Programmes())
	assert.Equal(t, eng.Candidates(), restored.Candidates())
	assert.Equal(t, snap.Generation, restored.Generation())
	rec, ok := restored.Record(domain.KindReportOutcome, "Programme 1")
	require.True(t, ok)
	assert.Equal(t, "outcomes", rec.Text)
}
