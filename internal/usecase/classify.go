package usecase

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"perfaudit/internal/adapter/chunker"
	"perfaudit/internal/domain"
	"perfaudit/internal/prompt"
)

// Label is one classifier vote.
type Label string

const (
	LabelStrategicPlan Label = "Strategic Plan"
	LabelPlan          Label = "Annual Performance Plan"
	LabelReport        Label = "Annual Performance Report"
	LabelUncertain     Label = "Uncertain"
)

// labelOrder is the enumeration order; ties go to the earliest label.
var labelOrder = []Label{LabelStrategicPlan, LabelPlan, LabelReport, LabelUncertain}

// Classification is the vote tally for one document.
type Classification struct {
	Role   domain.Role
	Votes  map[Label]int
	Failed int
}

// Classifier assigns a document role by sampling equal segments and voting.
type Classifier struct {
	client   Sender
	prompts  *prompt.Set
	segments int
	logger   *zap.Logger
}

// NewClassifier expects a client pinned to temperature 0.
func NewClassifier(client Sender, prompts *prompt.Set, segments int, logger *zap.Logger) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if segments <= 0 {
		segments = 5
	}
	return &Classifier{client: client, prompts: prompts, segments: segments, logger: logger}
}

// Classify votes over the segments of text. An Uncertain majority, or no
// votes at all, is ErrClassificationAmbiguous.
func (c *Classifier) Classify(ctx context.Context, text string) (Classification, error) {
	result := Classification{Role: domain.RoleUnclassified, Votes: make(map[Label]int)}

	for _, seg := range chunker.NewFixedCountChunker(c.segments).Chunk("classify", text) {
		p, err := c.prompts.Render("classify", struct{ Segment string }{seg.Text})
		if err != nil {
			return result, err
		}
		reply, err := c.client.Send(ctx, p)
		if err != nil {
			if domain.IsCancelled(err) {
				return result, fmt.Errorf("%w: %v", domain.ErrCancelled, err)
			}
			c.logger.Warn("classification segment failed",
				zap.Int("segment", seg.Index),
				zap.Error(err))
			result.Failed++
			continue
		}
		result.Votes[parseLabel(reply)]++
	}

	winner, best := LabelUncertain, 0
	for _, l := range labelOrder {
		if result.Votes[l] > best {
			winner, best = l, result.Votes[l]
		}
	}
	if best == 0 || winner == LabelUncertain {
		return result, fmt.Errorf("%w: votes %v", domain.ErrClassificationAmbiguous, result.Votes)
	}

	result.Role = labelRole(winner)
	c.logger.Info("document classified",
		zap.String("role", string(result.Role)),
		zap.Int("votes", best),
		zap.Int("failed_segments", result.Failed))
	return result, nil
}

// parseLabel maps a model reply onto a label, checking labels in
// enumeration order.
func parseLabel(reply string) Label {
	r := strings.ToLower(reply)
	for _, l := range labelOrder {
		if strings.Contains(r, strings.ToLower(string(l))) {
			return l
		}
	}
	return LabelUncertain
}

func labelRole(l Label) domain.Role {
	switch l {
	case LabelStrategicPlan:
		return domain.RoleStrategicPlan
	case LabelPlan:
		return domain.RolePlan
	case LabelReport:
		return domain.RoleReport
	}
	return domain.RoleUnclassified
}
