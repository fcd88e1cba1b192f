package usecase

import (
	"context"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perfaudit/internal/domain"
	"perfaudit/internal/prompt"
)

func extractedEngagement(programmes ...string) *Engagement {
	eng := readyEngagement("plan", "report")
	gen := eng.Rescope(programmes)
	for _, p := range programmes {
		for _, k := range domain.ExtractionPhases {
			eng.PutRecord(gen, domain.ExtractionRecord{Programme: p, Kind: k, Text: fmt.Sprintf("%s/%s", k, p)})
		}
	}
	return eng
}

var programmeRef = regexp.MustCompile(`Programme \d+`)

// programmeReplies answers with a table naming the first programme quoted in
// the prompt.
func programmeReplies() *echoStreamer {
	return &echoStreamer{reply: func(p string) string {
		if m := programmeRef.FindString(p); m != "" {
			return "table for " + m
		}
		return "table"
	}}
}

func testAuditOptions() AuditOptions {
	return AuditOptions{
		HistorySize:    5,
		FollowupDelay:  5 * time.Second,
		ProgrammeDelay: 10 * time.Second,
		History: map[domain.AuditKind]bool{
			domain.AuditConsistency:   true,
			domain.AuditMeasurability: true,
			domain.AuditPresentation:  true,
		},
	}
}

func newTestAuditor(streamer *echoStreamer, feed *Feed, sleeper *recordingSleeper, opts AuditOptions) *Auditor {
	chain := NewChainRunner(streamer, testPolicy(0), 8, nil)
	return NewAuditor(chain, prompt.MustLoad(), feed, opts, nil, WithAuditSleeper(sleeper.sleep))
}

func TestAuditor_RequiresBothDocuments(t *testing.T) {
	streamer := programmeReplies()
	feed := NewFeed(0)
	rec := &collectingRenderer{}
	stop := runFeed(feed, rec)
	a := newTestAuditor(streamer, feed, &recordingSleeper{}, testAuditOptions())

	eng := NewEngagement("u")
	eng.SetDocument(domain.Document{ID: "plan", Role: domain.RolePlan})
	eng.Rescope([]string{"Programme 1"})

	_, err := a.Run(context.Background(), eng, domain.AuditConsistency)
	stop()

	require.ErrorIs(t, err, domain.ErrMissingPrerequisite)
	assert.Empty(t, streamer.prompts)
	assert.Empty(t, rec.events, "a rejected pass shows nothing")
	assert.True(t, eng.Begin(), "triggers stay enabled")
}

func TestAuditor_RequiresExtraction(t *testing.T) {
	streamer := programmeReplies()
	a := newTestAuditor(streamer, nil, &recordingSleeper{}, testAuditOptions())

	eng := readyEngagement("plan", "report")
	gen := eng.Rescope([]string{"Programme 1", "Programme 2"})
	eng.PutRecord(gen, domain.ExtractionRecord{Programme: "Programme 1", Kind: domain.KindReportOutcome})

	_, err := a.Run(context.Background(), eng, domain.AuditRelevance)

	require.ErrorIs(t, err, domain.ErrMissingPrerequisite)
	assert.Empty(t, streamer.prompts, "no programme runs when any is missing records")
}

func TestAuditor_ConsistencyPass(t *testing.T) {
	streamer := programmeReplies()
	feed := NewFeed(0)
	rec := &collectingRenderer{}
	stop := runFeed(feed, rec)
	sleeper := &recordingSleeper{}
	a := newTestAuditor(streamer, feed, sleeper, testAuditOptions())
	eng := extractedEngagement("Programme 1", "Programme 2")

	results, err := a.Run(context.Background(), eng, domain.AuditConsistency)
	stop()

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "table for Programme 1", results[0].Text)
	assert.Equal(t, "table for Programme 2", results[1].Text)
	assert.Empty(t, sleeper.recorded(), "only measurability is paced")

	require.Len(t, streamer.prompts, 2)
	assert.True(t, containsAll(streamer.prompts[0],
		"plan-indicators/Programme 1", "report-indicators/Programme 1"))

	assert.Equal(t, results, eng.Results(domain.AuditConsistency))
	assert.Equal(t, []string{"table for Programme 1", "table for Programme 2"}, a.History(domain.AuditConsistency))

	require.NotEmpty(t, rec.events)
	assert.Equal(t, domain.EventPlaceholder, rec.events[0].Kind)
	assert.Equal(t, domain.EventPlaceholderDone, rec.events[len(rec.events)-1].Kind)
	assert.True(t, eng.Begin(), "triggers re-enabled after the pass")
}

func TestAuditor_MeasurabilityFollowupAndPacing(t *testing.T) {
	streamer := programmeReplies()
	sleeper := &recordingSleeper{}
	a := newTestAuditor(streamer, nil, sleeper, testAuditOptions())
	eng := extractedEngagement("Programme 1", "Programme 2")

	results, err := a.Run(context.Background(), eng, domain.AuditMeasurability)

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, []time.Duration{5 * time.Second, 10 * time.Second, 5 * time.Second}, sleeper.recorded())

	require.Len(t, streamer.prompts, 4)
	assert.Contains(t, streamer.prompts[0], "plan-technical/Programme 1")
	assert.Contains(t, streamer.prompts[1], "table for Programme 1", "followup quotes the first answer")

	for _, r := range results {
		assert.NotEmpty(t, r.Followup)
		assert.Len(t, r.Blocks, 2, "followup streams into the same reply")
	}
	assert.Len(t, a.History(domain.AuditMeasurability), 2)
	assert.Len(t, a.FollowupHistory(), 2)
}

func TestAuditor_HistoryIsBounded(t *testing.T) {
	var programmes []string
	for i := 1; i <= 7; i++ {
		programmes = append(programmes, fmt.Sprintf("Programme %d", i))
	}
	streamer := programmeReplies()
	a := newTestAuditor(streamer, nil, &recordingSleeper{}, testAuditOptions())

	_, err := a.Run(context.Background(), extractedEngagement(programmes...), domain.AuditPresentation)

	require.NoError(t, err)
	h := a.History(domain.AuditPresentation)
	require.Len(t, h, 5)
	assert.Equal(t, "table for Programme 3", h[0])
	assert.Equal(t, "table for Programme 7", h[4])
}

func TestAuditor_RelevanceKeepsNoHistoryByDefault(t *testing.T) {
	a := newTestAuditor(programmeReplies(), nil, &recordingSleeper{}, testAuditOptions())

	_, err := a.Run(context.Background(), extractedEngagement("Programme 1"), domain.AuditRelevance)

	require.NoError(t, err)
	assert.Empty(t, a.History(domain.AuditRelevance))
}

func TestAuditor_BusyEngagement(t *testing.T) {
	streamer := programmeReplies()
	a := newTestAuditor(streamer, nil, &recordingSleeper{}, testAuditOptions())
	eng := extractedEngagement("Programme 1")
	require.True(t, eng.Begin())

	_, err := a.Run(context.Background(), eng, domain.AuditConsistency)

	assert.ErrorIs(t, err, ErrBusy)
	assert.Empty(t, streamer.prompts)
}

func TestAuditor_CancelDuringPacing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	streamer := programmeReplies()
	a := newTestAuditor(streamer, nil, &recordingSleeper{}, testAuditOptions())
	eng := extractedEngagement("Programme 1", "Programme 2")

	results, err := a.Run(ctx, eng, domain.AuditMeasurability)

	require.ErrorIs(t, err, domain.ErrCancelled)
	assert.Empty(t, results)
	assert.True(t, eng.Begin())
}

func TestAuditor_HistoriesRoundTrip(t *testing.T) {
	a := newTestAuditor(programmeReplies(), nil, &recordingSleeper{}, testAuditOptions())
	_, err := a.Run(context.Background(), extractedEngagement("Programme 1"), domain.AuditConsistency)
	require.NoError(t, err)

	b := newTestAuditor(programmeReplies(), nil, &recordingSleeper{}, testAuditOptions())
	b.RestoreHistories(a.Histories())
	assert.Equal(t, a.History(domain.AuditConsistency), b.History(domain.AuditConsistency))
}
