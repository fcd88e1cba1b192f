package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"perfaudit/internal/adapter/fs"
	"perfaudit/internal/domain"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file|dir>...",
	Short: "Classify and store plan and report documents",
	Long: `Read plain-text documents, classify each as a Strategic Plan, Annual
Performance Plan or Annual Performance Report, and place it in the engagement.
Directories are walked with the ingest include/exclude globs.

A new plan or report replaces the previous one and clears extracted records
and audit results.

Examples:
  perfaudit ingest app-2024.txt apr-2024.txt
  perfaudit ingest ./documents`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ingestor, err := a.ingestor()
	if err != nil {
		return err
	}

	ctx, release := a.start(cmd.Context())
	defer release()

	walker := fs.NewWalker(a.cfg.Ingest.Includes, a.cfg.Ingest.Excludes)
	var ingested int
	for _, arg := range args {
		path, err := filepath.Abs(arg)
		if err != nil {
			return fmt.Errorf("invalid path: %w", err)
		}

		result, err := ingestor.IngestAll(ctx, a.eng, walker, fs.Reader{}, path)
		if result != nil {
			for _, doc := range result.Documents {
				fmt.Printf("  %-28s %s\n", doc.Role, filepath.Base(doc.Filename))
			}
			if result.FilesSkipped > 0 {
				fmt.Printf("  %d file(s) already held, skipped\n", result.FilesSkipped)
			}
			for _, e := range result.Errors {
				a.notifier.Notify(domain.NoticeError, e)
			}
			ingested += len(result.Documents)
		}
		if err != nil {
			return a.report(err, "")
		}
	}

	if ingested == 0 {
		return a.report(fmt.Errorf("%w: no document was classified", domain.ErrUnsupportedInput), "")
	}

	msg := fmt.Sprintf("Ingested %d document(s).", ingested)
	if !a.eng.Ready() {
		msg += " Both a plan and a report are needed before extraction."
	}
	return a.report(nil, msg)
}
