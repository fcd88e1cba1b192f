package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"perfaudit/internal/adapter/fs"
	"perfaudit/internal/domain"
)

var (
	runProgrammesFlag []string
	runPassFlag       string
)

var runCmd = &cobra.Command{
	Use:   "run <plan> <report>",
	Short: "Ingest, extract and audit in one step",
	Long: `Run the whole pipeline in a single invocation: classify the documents,
scope the named programmes (or every discovered one), extract, then audit.
This is the only useful mode for the guest user, whose state is not kept.

Example:
  perfaudit run --user guest app.txt apr.txt -p "Programme 1" -p "Programme 2"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPipeline,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringArrayVarP(&runProgrammesFlag, "programme", "p", nil, "programme to audit (repeatable); default is every discovered programme")
	runCmd.Flags().StringVar(&runPassFlag, "pass", "all", "audit pass to run")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	passes, err := parsePasses(runPassFlag)
	if err != nil {
		return err
	}

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
	for _, arg := range args {
		path, err := filepath.Abs(arg)
		if err != nil {
			return fmt.Errorf("invalid path: %w", err)
		}
		result, err := ingestor.IngestAll(ctx, a.eng, walker, fs.Reader{}, path)
		if err != nil {
			return a.report(err, "")
		}
		for _, e := range result.Errors {
			a.notifier.Notify(domain.NoticeError, e)
		}
	}
	if !a.eng.Ready() {
		return a.report(fmt.Errorf("%w: a plan and a report are both required", domain.ErrMissingPrerequisite), "")
	}

	programmes := runProgrammesFlag
	if len(programmes) == 0 {
		discoverer, err := a.discoverer()
		if err != nil {
			return err
		}
		if programmes, err = discoverer.Discover(ctx, a.eng); err != nil {
			return a.report(err, "")
		}
	}
	a.eng.Rescope(programmes)
	a.notifier.Notify(domain.NoticeInfo, fmt.Sprintf("Auditing %d programme(s).", len(a.eng.Programmes())))

	extractor, err := a.extractor()
	if err != nil {
		return err
	}
	if err := extractor.ExtractAll(ctx, a.eng, phaseProgress()); err != nil {
		return a.report(err, "")
	}

	return a.report(a.runPasses(ctx, passes), "Audit complete.")
}
