package commands

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"MemeFarm/internal/app"
	"MemeFarm/internal/domain"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show item counts per state and the next queued slots",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

var seedHashtagsCmd = &cobra.Command{
	Use:   "seed-hashtags",
	Short: "Store the built-in hashtag pools used at publish time",
	Args:  cobra.NoArgs,
	RunE:  runSeedHashtags,
}

var initDBCmd = &cobra.Command{
	Use:   "init-db",
	Short: "Create or migrate the database schema",
	Args:  cobra.NoArgs,
	RunE:  runInitDB,
}

func init() {
	rootCmd.AddCommand(statusCmd, seedHashtagsCmd, initDBCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	status, err := a.Status(ctx)
	if err != nil {
		return out.Error("Cannot read status", err.Error(), nil)
	}
	printStatus(status, a.Config().Pipeline.Location())
	return nil
}

func printStatus(status app.Status, loc *time.Location) {
	counts := make([][2]string, 0, len(domain.States))
	for _, s := range domain.States {
		counts = append(counts, [2]string{string(s), strconv.Itoa(status.Counts[s])})
	}
	out.Table("Items", counts)

	if len(status.Upcoming) == 0 {
		out.Println("\nNo queued items.")
	} else {
		rows := make([][2]string, 0, len(status.Upcoming))
		for _, item := range status.Upcoming {
			rows = append(rows, [2]string{
				item.ScheduledAt.In(loc).Format("2006-01-02 15:04 MST"),
				fmt.Sprintf("%s (attempts %d)", item.ID, item.AttemptCount),
			})
		}
		out.Println()
		out.Table("Upcoming", rows)
	}

	if len(status.Pools) > 0 {
		rows := make([][2]string, 0, len(status.Pools))
		for _, pool := range status.Pools {
			state := "active"
			if !pool.Active {
				state = "inactive"
			}
			rows = append(rows, [2]string{pool.Name, fmt.Sprintf("%d tags, %s: %s", len(pool.Tags), state, strings.Join(firstN(pool.Tags, 3), " "))})
		}
		out.Println()
		out.Table("Hashtag pools", rows)
	}
}

func firstN(tags []string, n int) []string {
	if len(tags) > n {
		return tags[:n]
	}
	return tags
}

func runSeedHashtags(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := a.SeedHashtags(ctx)
	if err != nil {
		return out.Error("Cannot seed hashtag pools", err.Error(), []string{"Run 'memefarm init-db' first"})
	}
	out.Success("seeded %d hashtag pools", n)
	return nil
}

func runInitDB(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	if err := app.InitDB(cmd.Context(), cfg); err != nil {
		return out.Error("Cannot initialise the database", err.Error(), []string{"Check DATABASE_DSN and DATABASE_DRIVER"})
	}
	out.Success("database ready (%s)", cfg.Database.Driver)
	return nil
}
