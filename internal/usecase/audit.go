package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"perfaudit/internal/adapter/llm"
	"perfaudit/internal/domain"
	"perfaudit/internal/port"
	"perfaudit/internal/prompt"
)

// AuditOptions configures pass pacing and history.
type AuditOptions struct {
	HistorySize    int
	FollowupDelay  time.Duration
	ProgrammeDelay time.Duration
	// History enables the rolling history buffer per pass.
	History map[domain.AuditKind]bool
}

// historyFollowup keys the second measurability buffer.
const historyFollowup = "measurability-followup"

// Auditor runs the four audit passes. Programmes are processed one at a time
// so the feed reads as a single linear conversation.
type Auditor struct {
	chain     *ChainRunner
	prompts   *prompt.Set
	feed      *Feed
	opts      AuditOptions
	journal   *Journal
	publisher port.ResultPublisher
	sleep     llm.Sleeper
	logger    *zap.Logger

	mu      sync.Mutex
	history map[string][]string
}

// AuditorOption configures an Auditor.
type AuditorOption func(*Auditor)

// WithJournal persists each pass as a chat session.
func WithJournal(j *Journal) AuditorOption {
	return func(a *Auditor) { a.journal = j }
}

// WithPublisher forwards finished results.
func WithPublisher(p port.ResultPublisher) AuditorOption {
	return func(a *Auditor) { a.publisher = p }
}

// WithAuditSleeper replaces the pacing wait, used by tests.
func WithAuditSleeper(s llm.Sleeper) AuditorOption {
	return func(a *Auditor) { a.sleep = s }
}

func NewAuditor(chain *ChainRunner, prompts *prompt.Set, feed *Feed, opts AuditOptions, logger *zap.Logger, options ...AuditorOption) *Auditor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.HistorySize <= 0 {
		opts.HistorySize = 5
	}
	a := &Auditor{
		chain:   chain,
		prompts: prompts,
		feed:    feed,
		opts:    opts,
		sleep:   llm.SleepContext,
		logger:  logger,
		history: make(map[string][]string),
	}
	for _, o := range options {
		o(a)
	}
	return a
}

// Run executes one pass over every programme in scope.
func (a *Auditor) Run(ctx context.Context, eng *Engagement, pass domain.AuditKind) ([]domain.AuditResult, error) {
	if !eng.Ready() {
		return nil, fmt.Errorf("%w: upload and classify both the Annual Performance Plan and Report before running the %s check", domain.ErrMissingPrerequisite, pass)
	}
	programmes := eng.Programmes()
	if len(programmes) == 0 {
		return nil, fmt.Errorf("%w: no programmes in scope", domain.ErrMissingPrerequisite)
	}
	for _, p := range programmes {
		if !eng.HasRecords(p, pass.Requires()) {
			return nil, fmt.Errorf("%w: extraction has not produced %v for %q", domain.ErrMissingPrerequisite, pass.Requires(), p)
		}
	}

	if !eng.Begin() {
		return nil, ErrBusy
	}
	defer eng.End()

	gen := eng.Generation()
	a.feed.Placeholder(pass)
	defer a.feed.PlaceholderDone(pass)

	sessionID := a.journal.StartSession(eng.UserID(), pass.Title())
	a.journal.Log(eng.UserID(), "audit:"+string(pass), fmt.Sprintf("programmes=%d", len(programmes)))

	var results []domain.AuditResult
	for i, programme := range programmes {
		if eng.Generation() != gen || !eng.HasRecords(programme, pass.Requires()) {
			return results, fmt.Errorf("%w: scope changed during %s pass", domain.ErrMissingPrerequisite, pass)
		}

		res, err := a.runProgramme(ctx, eng, pass, programme, sessionID)
		if err != nil {
			return results, err
		}
		results = append(results, res)
		eng.PutResult(gen, res)
		a.publish(ctx, res)

		if pass == domain.AuditMeasurability && i < len(programmes)-1 {
			if err := a.sleep(ctx, a.opts.ProgrammeDelay); err != nil {
				return results, fmt.Errorf("%w: %v", domain.ErrCancelled, err)
			}
		}
	}

	a.logger.Info("audit pass complete",
		zap.String("pass", string(pass)),
		zap.Int("programmes", len(results)))
	return results, nil
}

func (a *Auditor) runProgramme(ctx context.Context, eng *Engagement, pass domain.AuditKind, programme, sessionID string) (domain.AuditResult, error) {
	text, err := a.buildPrompt(eng, pass, programme)
	if err != nil {
		return domain.AuditResult{}, err
	}

	a.feed.Prompt(pass, programme, programme)
	a.journal.AddMessage(sessionID, "user", text, "")

	reply := a.feed.NewReply(pass, programme)
	first, err := a.chain.Run(ctx, text, reply)
	if err != nil {
		a.journal.AddMessage(sessionID, "assistant", reply.Text(), a.chain.streamer.ModelName())
		return domain.AuditResult{}, err
	}
	if first.Err != nil {
		a.logger.Warn("audit chain failed",
			zap.String("pass", string(pass)),
			zap.String("programme", programme),
			zap.Error(first.Err))
	}
	a.remember(string(pass), first.Text)

	res := domain.AuditResult{
		Programme: programme,
		Pass:      pass,
		Text:      first.Text,
		CreatedAt: time.Now(),
	}

	if pass == domain.AuditMeasurability {
		if err := a.sleep(ctx, a.opts.FollowupDelay); err != nil {
			return res, fmt.Errorf("%w: %v", domain.ErrCancelled, err)
		}
		followup, err := a.prompts.Render("audit_measurability_followup", auditPromptData{
			Programme: programme,
			Previous:  first.Text,
		})
		if err != nil {
			return res, err
		}
		second, err := a.chain.Run(ctx, followup, reply)
		if err != nil {
			a.journal.AddMessage(sessionID, "assistant", reply.Text(), a.chain.streamer.ModelName())
			return res, err
		}
		res.Followup = second.Text
		a.remember(historyFollowup, second.Text)
	}

	res.Blocks = reply.Texts()
	a.journal.AddMessage(sessionID, "assistant", reply.Text(), a.chain.streamer.ModelName())
	return res, nil
}

type auditPromptData struct {
	Programme string
	Plan      string
	Report    string
	Technical string
	Outcomes  string
	Deviation string
	Previous  string
}

func (a *Auditor) buildPrompt(eng *Engagement, pass domain.AuditKind, programme string) (string, error) {
	text := func(kind domain.ExtractionKind) string {
		rec, _ := eng.Record(kind, programme)
		return rec.Text
	}

	data := auditPromptData{Programme: programme}
	switch pass {
	case domain.AuditConsistency:
		data.Plan = text(domain.KindPlanIndicators)
		data.Report = text(domain.KindReportIndicators)
	case domain.AuditMeasurability:
		data.Technical = text(domain.KindPlanTechnical)
	case domain.AuditRelevance:
		data.Outcomes = text(domain.KindReportOutcome)
	case domain.AuditPresentation:
		data.Deviation = text(domain.KindReportDeviation)
	default:
		return "", fmt.Errorf("unknown audit pass: %s", pass)
	}
	return a.prompts.Render("audit_"+string(pass), data)
}

// remember appends to the named rolling history when that pass keeps one.
func (a *Auditor) remember(buffer, text string) {
	pass := domain.AuditKind(buffer)
	if buffer == historyFollowup {
		pass = domain.AuditMeasurability
	}
	if !a.opts.History[pass] {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	h := append(a.history[buffer], text)
	if len(h) > a.opts.HistorySize {
		h = h[len(h)-a.opts.HistorySize:]
	}
	a.history[buffer] = h
}

// History returns the rolling buffer for pass, oldest first.
func (a *Auditor) History(pass domain.AuditKind) []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.history[string(pass)]...)
}

// FollowupHistory returns the second measurability buffer.
func (a *Auditor) FollowupHistory() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.history[historyFollowup]...)
}

// Histories copies every rolling buffer, keyed by pass name.
func (a *Auditor) Histories() map[string][]string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string][]string, len(a.history))
	for k, v := range a.history {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// RestoreHistories replaces the rolling buffers, trimming each to size.
func (a *Auditor) RestoreHistories(h map[string][]string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history = make(map[string][]string, len(h))
	for k, v := range h {
		if len(v) > a.opts.HistorySize {
			v = v[len(v)-a.opts.HistorySize:]
		}
		a.history[k] = append([]string(nil), v...)
	}
}

func (a *Auditor) publish(ctx context.Context, res domain.AuditResult) {
	if a.publisher == nil {
		return
	}
	if err := a.publisher.Publish(ctx, res); err != nil {
		a.logger.Warn("failed to publish audit result",
			zap.String("programme", res.Programme),
			zap.Error(err))
	}
}
