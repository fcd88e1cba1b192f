package usecase

import (
	"context"
	"fmt"
	"strings"

	"perfaudit/internal/domain"
	"perfaudit/internal/prompt"
)

// Asker answers free-form questions using the recent audit output as context.
type Asker struct {
	chain   *ChainRunner
	prompts *prompt.Set
	feed    *Feed
	auditor *Auditor
	journal *Journal
}

func NewAsker(chain *ChainRunner, prompts *prompt.Set, feed *Feed, auditor *Auditor, journal *Journal) *Asker {
	return &Asker{chain: chain, prompts: prompts, feed: feed, auditor: auditor, journal: journal}
}

// Ask streams an answer into the feed and records the exchange under
// sessionID, starting a new session when it is empty. It returns the answer
// and the session used.
func (a *Asker) Ask(ctx context.Context, userID, sessionID, question string) (string, string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", sessionID, fmt.Errorf("%w: empty question", domain.ErrUnsupportedInput)
	}
	if sessionID == "" {
		sessionID = a.journal.StartSession(userID, sessionName(question))
	}

	var history []string
	if a.auditor != nil {
		for _, pass := range domain.AuditKinds {
			history = append(history, a.auditor.History(pass)...)
		}
		history = append(history, a.auditor.FollowupHistory()...)
	}

	text, err := a.prompts.Render("ask", struct {
		History  []string
		Question string
	}{history, question})
	if err != nil {
		return "", sessionID, err
	}

	a.feed.Prompt(ReportGeneral, "", question)
	a.journal.AddMessage(sessionID, "user", question, "")

	reply := a.feed.NewReply(ReportGeneral, "")
	res, err := a.chain.Run(ctx, text, reply)
	a.journal.AddMessage(sessionID, "assistant", reply.Text(), a.chain.streamer.ModelName())
	if err != nil {
		return res.Text, sessionID, err
	}
	return res.Text, sessionID, res.Err
}

func sessionName(question string) string {
	const limit = 40
	r := []rune(question)
	if len(r) <= limit {
		return question
	}
	return string(r[:limit]) + "…"
}
