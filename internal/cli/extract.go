package cli

import (
	"fmt"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"perfaudit/internal/usecase"
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract indicator tables for every programme in scope",
	Long: `Run the five extraction phases in order: plan indicators, report
indicators, report deviations, report outcomes, plan technical indicators.
Each phase runs one job per programme and finishes before the next starts.
A job that fails leaves an empty record so the audits can still run.`,
	Args: cobra.NoArgs,
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	extractor, err := a.extractor()
	if err != nil {
		return err
	}

	ctx, release := a.start(cmd.Context())
	defer release()

	err = extractor.ExtractAll(ctx, a.eng, phaseProgress())
	if err == nil {
		a.journal.Log(a.userID, "extract", fmt.Sprintf("%d records", a.eng.RecordCount()))
	}
	return a.report(err, fmt.Sprintf("Extracted %d record(s).", a.eng.RecordCount()))
}

// phaseProgress draws one bar per extraction phase. Jobs report from their
// own goroutines.
func phaseProgress() func(usecase.PhaseProgress) {
	var (
		mu        sync.Mutex
		bar       *progressbar.ProgressBar
		phase     = -1
		startTime time.Time
		failed    int
		partial   int
	)

	return func(p usecase.PhaseProgress) {
		mu.Lock()
		defer mu.Unlock()

		if p.Phase != phase {
			phase = p.Phase
			failed, partial = 0, 0
			startTime = time.Now()
			bar = progressbar.NewOptions(p.Programmes,
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowBytes(false),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription(fmt.Sprintf("[cyan]%d/%d %s[reset]", p.Phase+1, p.Phases, p.Kind)),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionOnCompletion(func() {
					fmt.Println()
				}),
			)
		}
		if p.Failed {
			failed++
		}
		if p.Partial {
			partial++
		}

		_ = bar.Set(p.Settled)
		desc := fmt.Sprintf("[cyan]%d/%d %s[reset] %s", p.Phase+1, p.Phases, p.Kind, formatDuration(time.Since(startTime)))
		if failed > 0 {
			desc += fmt.Sprintf(" [red]%d failed[reset]", failed)
		}
		if partial > 0 {
			desc += fmt.Sprintf(" [yellow]%d incomplete[reset]", partial)
		}
		bar.Describe(desc)
	}
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}
