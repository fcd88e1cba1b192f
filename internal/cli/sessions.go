package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions [session-id]",
	Short: "List stored chat sessions, or show one",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSessions,
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
}

func runSessions(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if len(args) == 1 {
		msgs, err := a.journal.Messages(args[0])
		if err != nil {
			return err
		}
		for _, m := range msgs {
			fmt.Printf("[%s] %s", m.CreatedAt.Format("2006-01-02 15:04"), m.Role)
			if m.Model != "" {
				fmt.Printf(" (%s, ~%d tokens)", m.Model, m.TokensUsed)
			}
			fmt.Printf("\n%s\n\n", m.Content)
		}
		return nil
	}

	sessions, err := a.journal.Sessions(a.userID)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Println("No sessions.")
		return nil
	}
	for _, s := range sessions {
		fmt.Printf("%s  %s  %s\n", s.ID, s.CreatedAt.Format("2006-01-02 15:04"), s.Name)
	}
	return nil
}
