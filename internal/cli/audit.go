package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"perfaudit/internal/domain"
	"perfaudit/internal/usecase"
)

var auditCmd = &cobra.Command{
	Use:   "audit <consistency|measurability|relevance|presentation|all>",
	Short: "Run an audit pass over every programme in scope",
	Long: `Stream the audit pass for each programme in scope. Long answers are
continued automatically and shown as further blocks. "all" runs the four passes
in order and stops at the first pass that cannot run.`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"consistency", "measurability", "relevance", "presentation", "all"},
	RunE:      runAudit,
}

var askSession string

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question about the latest audit results",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	rootCmd.AddCommand(auditCmd, askCmd)
	askCmd.Flags().StringVar(&askSession, "session", "", "continue an existing chat session")
}

func parsePasses(arg string) ([]domain.AuditKind, error) {
	if arg == "all" {
		return domain.AuditKinds, nil
	}
	kind, ok := domain.ParseAuditKind(arg)
	if !ok {
		return nil, fmt.Errorf("%w: unknown audit pass %q", domain.ErrUnsupportedInput, arg)
	}
	return []domain.AuditKind{kind}, nil
}

func runAudit(cmd *cobra.Command, args []string) error {
	passes, err := parsePasses(args[0])
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.withLLM(); err != nil {
		return err
	}

	ctx, release := a.start(cmd.Context())
	defer release()

	return a.report(a.runPasses(ctx, passes), "")
}

func (a *app) runPasses(ctx context.Context, passes []domain.AuditKind) error {
	for _, pass := range passes {
		results, err := a.auditor.Run(ctx, a.eng, pass)
		if err != nil {
			return fmt.Errorf("%s: %w", pass, err)
		}
		a.notifier.Notify(domain.NoticeSuccess, fmt.Sprintf("%s: %d programme(s).", pass.Title(), len(results)))
	}
	return nil
}

func runAsk(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.withLLM(); err != nil {
		return err
	}

	ctx, release := a.start(cmd.Context())
	defer release()

	_, sessionID, err := usecase.NewAsker(a.chain, a.prompts, a.feed, a.auditor, a.journal).Ask(ctx, a.userID, askSession, strings.Join(args, " "))
	if err != nil {
		return a.report(err, "")
	}
	if sessionID != "" {
		a.notifier.Notify(domain.NoticeInfo, "session "+sessionID)
	}
	return nil
}
