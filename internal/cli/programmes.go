package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"perfaudit/internal/domain"
)

var programmesCmd = &cobra.Command{
	Use:   "programmes",
	Short: "Propose programme names from the plan",
	Long: `Rank passages of the classified plan against the discovery query and ask
the model which programmes they name. The proposals are stored as candidates;
use "perfaudit scope" to choose the programmes to audit.`,
	Args: cobra.NoArgs,
	RunE: runProgrammes,
}

var scopeAll bool

var scopeCmd = &cobra.Command{
	Use:   "scope [programme]...",
	Short: "Set the programmes to extract and audit",
	Long: `Replace the engagement's programme scope. Any change clears extracted
records and audit results. With --all the discovered candidates are used.

Examples:
  perfaudit scope "Programme 1: Administration" "Programme 2: Health Services"
  perfaudit scope --all`,
	RunE: runScope,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the engagement state",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(programmesCmd, scopeCmd, statusCmd)
	scopeCmd.Flags().BoolVar(&scopeAll, "all", false, "scope every discovered candidate")
}

func runProgrammes(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	discoverer, err := a.discoverer()
	if err != nil {
		return err
	}

	ctx, release := a.start(cmd.Context())
	defer release()

	names, err := discoverer.Discover(ctx, a.eng)
	if err != nil {
		return a.report(err, "")
	}
	if len(names) == 0 {
		return a.report(nil, "No programmes were found in the plan.")
	}
	for i, name := range names {
		fmt.Printf("  %d. %s\n", i+1, name)
	}
	a.journal.Log(a.userID, "discover", strings.Join(names, "; "))
	return a.report(nil, fmt.Sprintf("Found %d programme(s).", len(names)))
}

func runScope(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	programmes := args
	if scopeAll {
		programmes = a.eng.Candidates()
		if len(programmes) == 0 {
			return a.report(fmt.Errorf("%w: no candidates; run \"perfaudit programmes\" first", domain.ErrMissingPrerequisite), "")
		}
	}
	if len(programmes) == 0 {
		return a.report(fmt.Errorf("%w: name at least one programme or pass --all", domain.ErrMissingPrerequisite), "")
	}

	a.eng.Rescope(programmes)
	a.journal.Log(a.userID, "scope", strings.Join(a.eng.Programmes(), "; "))
	return a.report(nil, fmt.Sprintf("Scoped %d programme(s).", len(a.eng.Programmes())))
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Printf("User: %s\n\nDocuments:\n", a.userID)
	for _, role := range []domain.Role{domain.RoleStrategicPlan, domain.RolePlan, domain.RoleReport} {
		name := "-"
		if doc, ok := a.eng.Document(role); ok {
			name = doc.Filename
		}
		fmt.Printf("  %-28s %s\n", role, name)
	}

	fmt.Printf("\nProgrammes in scope:\n")
	programmes := a.eng.Programmes()
	if len(programmes) == 0 {
		fmt.Println("  (none)")
	}
	for _, p := range programmes {
		var have []string
		for _, kind := range domain.ExtractionPhases {
			if rec, ok := a.eng.Record(kind, p); ok {
				mark := string(kind)
				if rec.Failed {
					mark += "!"
				} else if rec.Partial {
					mark += "~"
				}
				have = append(have, mark)
			}
		}
		fmt.Printf("  %s\n", p)
		if len(have) > 0 {
			fmt.Printf("    records: %s\n", strings.Join(have, ", "))
		}
	}

	if c := a.eng.Candidates(); len(c) > 0 {
		fmt.Printf("\nDiscovered candidates: %d\n", len(c))
	}
	return nil
}
