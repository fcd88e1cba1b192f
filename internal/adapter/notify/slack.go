// Package notify publishes finished audit results to chat channels.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/slack-go/slack"

	"perfaudit/internal/domain"
	"perfaudit/internal/port"
)

// slackTextLimit keeps a message under Slack's per-message text cap.
const slackTextLimit = 39000

// SlackPublisher posts each AuditResult as one channel message.
type SlackPublisher struct {
	client  *slack.Client
	channel string
}

var _ port.ResultPublisher = (*SlackPublisher)(nil)

// NewSlackPublisher returns a publisher for channel. apiURL overrides the Slack
// endpoint and must end in "/"; empty uses the default.
func NewSlackPublisher(token, channel, apiURL string) *SlackPublisher {
	var opts []slack.Option
	if apiURL != "" {
		opts = append(opts, slack.OptionAPIURL(apiURL))
	}
	return &SlackPublisher{client: slack.New(token, opts...), channel: channel}
}

func (p *SlackPublisher) Publish(ctx context.Context, result domain.AuditResult) error {
	_, _, err := p.client.PostMessageContext(ctx, p.channel,
		slack.MsgOptionText(formatResult(result), false),
	)
	if err != nil {
		return fmt.Errorf("failed to post %s result for %s: %w", result.Pass, result.Programme, err)
	}
	return nil
}

func formatResult(result domain.AuditResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "*%s: %s*\n", result.Pass.Title(), result.Programme)
	sb.WriteString(result.Text)
	if result.Followup != "" {
		sb.WriteString("\n\n")
		sb.WriteString(result.Followup)
	}
	text := sb.String()
	if r := []rune(text); len(r) > slackTextLimit {
		text = string(r[:slackTextLimit]) + "\n…(truncated)"
	}
	return text
}
