package commands

import (
	"time"

	"github.com/spf13/cobra"

	"MemeFarm/internal/usecase"
)

var runEvery time.Duration

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run scrape, generate, schedule and post-due on an interval",
	Long: `Run every stage in order immediately and then every --every until
interrupted. Each stage is still a discrete run with its own report; a
failing stage does not stop the ones after it.

Examples:
  memefarm run --every 15m`,
	Args: cobra.NoArgs,
	RunE: runLoop,
}

func init() {
	runCmd.Flags().DurationVar(&runEvery, "every", 15*time.Minute, "Interval between passes")
	rootCmd.AddCommand(runCmd)
}

func runLoop(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	out.Step("running every %s, press Ctrl+C to stop", runEvery)
	err = a.Run(ctx, runEvery, a.RunParams(), func(reports []usecase.Report, err error) {
		for _, r := range reports {
			if r.Locked {
				out.Warning("%s", r)
				continue
			}
			out.Println(r.String())
		}
		if err != nil {
			out.Warning("pass finished with errors: %v", err)
		}
	})
	if err != nil {
		return out.Error("run stopped", err.Error(), nil)
	}
	out.Success("stopped")
	return nil
}
