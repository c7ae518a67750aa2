package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"MemeFarm/internal/app"
	"MemeFarm/internal/config"
	"MemeFarm/internal/domain"
	"MemeFarm/internal/logging"
	"MemeFarm/internal/printer"
	"MemeFarm/internal/usecase"
)

var (
	configPath string
	logLevel   string

	out = printer.New()
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "memefarm",
	Short: "MemeFarm - scheduled meme publishing pipeline",
	Long: `MemeFarm moves memes from subreddits to an Instagram account in four
independent stages, each a separate invocation over a durable store:

  scrape    discover new posts
  generate  write captions and hashtags
  schedule  assign publication slots inside the preferred windows
  post-due  publish items whose slot has arrived

'memefarm twitter-scrape' is an optional extra discovery stage.
Use 'memefarm run' to execute all stages on a fixed interval.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command with a context cancelled on SIGINT/SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Errors are rendered by the printer, not by cobra.
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.ExecuteContext(ctx)
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config (default $MEMEFARM_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error")
}

func loadConfig() config.Config {
	cfg := config.Load(configPath)
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	return cfg
}

// openApp builds the application for one invocation; callers must Close it.
func openApp(ctx context.Context) (*app.Application, error) {
	cfg := loadConfig()
	a, err := app.New(ctx, cfg, logging.New(cfg.Logging.Level))
	if err != nil {
		return nil, out.Error(
			"Cannot start memefarm",
			err.Error(),
			[]string{
				"Check the file passed with --config or $MEMEFARM_CONFIG",
				"Check DATABASE_DSN and DATABASE_DRIVER",
			},
		)
	}
	return a, nil
}

// finishStage prints the report and turns a run-level error into a failed command.
func finishStage(report usecase.Report, err error) error {
	if err != nil {
		return out.Error(
			fmt.Sprintf("%s run failed", report.Stage),
			fmt.Sprintf("%v\n\n%s", err, report),
			stageHints(err),
		)
	}
	if report.Locked {
		out.Warning("%s", report)
		return nil
	}
	out.Success("%s", report)
	return nil
}

func stageHints(err error) []string {
	switch {
	case errors.Is(err, domain.ErrUnavailable):
		return []string{"Check the collaborator credentials and retry later"}
	case errors.Is(err, usecase.ErrAllSourcesFailed):
		return []string{"Check network access to reddit and the configured strategy"}
	case strings.Contains(err.Error(), "not configured"):
		return []string{
			"Set LLM_API_KEY for generate",
			"Set INSTAGRAM_ACCESS_TOKEN and INSTAGRAM_ACCOUNT_ID for post-due",
			"Set TWITTER_BEARER_TOKEN for twitter-scrape",
		}
	default:
		return nil
	}
}
