package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"perfaudit/internal/domain"
	"perfaudit/internal/usecase"
)

var (
	exportSession string
	exportOutput  string
)

var exportCmd = &cobra.Command{
	Use:   "export <pass|general>",
	Short: "Render audit output to PDF",
	Long: `Send a pass's output to the PDF render service and write the result.
Without --session the most recent session of that pass is exported.

Examples:
  perfaudit export consistency
  perfaudit export general --session 6f1c... -o chat.pdf`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVar(&exportSession, "session", "", "session id to export")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file (default <kind>-report-<date>.pdf)")
}

func runExport(cmd *cobra.Command, args []string) error {
	kind := args[0]
	pass, isPass := domain.ParseAuditKind(kind)
	if !isPass && kind != usecase.ReportGeneral {
		return fmt.Errorf("%w: unknown export type %q", domain.ErrUnsupportedInput, kind)
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, release := a.start(cmd.Context())
	defer release()

	exporter := a.exporter()
	var data []byte
	switch {
	case exportSession != "":
		data, err = exporter.ExportSession(ctx, exportSession, kind)
	case isPass && len(a.eng.Results(pass)) > 0:
		data, err = exporter.ExportResults(ctx, a.eng, pass)
	case isPass:
		var id string
		id, err = a.latestSession(pass.Title())
		if err == nil {
			data, err = exporter.ExportSession(ctx, id, kind)
		}
	default:
		err = fmt.Errorf("%w: --session is required for general exports", domain.ErrMissingPrerequisite)
	}
	if err != nil {
		return a.report(err, "")
	}

	out := exportOutput
	if out == "" {
		out = usecase.ExportFilename(kind, time.Now())
	}
	if err := os.WriteFile(out, data, 0644); err != nil {
		return a.report(fmt.Errorf("failed to write %s: %w", out, err), "")
	}
	a.journal.Log(a.userID, "export", out)
	return a.report(nil, "Wrote "+out)
}

// latestSession returns the newest session with the given name.
func (a *app) latestSession(name string) (string, error) {
	sessions, err := a.journal.Sessions(a.userID)
	if err != nil {
		return "", err
	}
	for _, s := range sessions {
		if s.Name == name {
			return s.ID, nil
		}
	}
	return "", fmt.Errorf("%w: no %q session found", domain.ErrMissingPrerequisite, name)
}
