package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"perfaudit/config"
	"perfaudit/internal/domain"
	"perfaudit/internal/logging"
)

var (
	cfgFile  string
	cfg      *config.Config
	rootDir  string
	userID   string
	logLevel string
	logger   *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "perfaudit",
	Short: "Audit government performance plans and reports with an LLM",
	Long: `perfaudit classifies an Annual Performance Plan and Annual Performance
Report, extracts per-programme indicator tables from both, and runs audit
passes that compare them.

Example usage:
  perfaudit ingest app.txt apr.txt         # Classify and store both documents
  perfaudit programmes                     # Propose programme names from the plan
  perfaudit scope "Programme 1" "Programme 2"
  perfaudit extract                        # Build the extraction records
  perfaudit audit all                      # Run every audit pass
  perfaudit export consistency -o out.pdf  # Render a pass to PDF`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		if rootDir == "" {
			rootDir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
		}

		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(rootDir)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		level := cfg.Logging.Level
		if logLevel != "" {
			level = logLevel
		}
		logger, err = logging.New(level, cfg.Logging.Format)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// Execute runs the command tree. Interrupts cancel the running action; its
// partial output is kept.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if domain.IsCancelled(err) {
			fmt.Fprintln(os.Stderr, "Stopped.")
			os.Exit(130)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, domain.ErrMissingPrerequisite) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./perfaudit.yaml)")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "dir", "d", "", "workspace directory (default is current directory)")
	rootCmd.PersistentFlags().StringVarP(&userID, "user", "u", "local", "user id; \"guest\" keeps nothing after the command exits")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logging.level")
}

func GetConfig() *config.Config {
	return cfg
}

func GetRootDir() string {
	return rootDir
}
