package commands

import (
	"github.com/spf13/cobra"
)

var (
	scrapeSubreddits []string
	scrapeLimit      int
	twitterQueries   []string
	twitterLimit     int
	generateLimit    int
	schedulePerPosts int
	postMaxPosts     int
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Discover new posts from subreddits",
	Long: `Fetch up to --limit posts from each subreddit and store the ones not
seen before as DISCOVERED. A failing subreddit does not stop the others.

Examples:
  memefarm scrape --subreddits IndianDankMemes,desimemes --limit 25`,
	Args: cobra.NoArgs,
	RunE: runScrape,
}

var twitterScrapeCmd = &cobra.Command{
	Use:   "twitter-scrape",
	Short: "Discover image tweets from recent search",
	Long: `Run each --query against the Twitter recent search API and store one
DISCOVERED item per attached photo. Requires TWITTER_BEARER_TOKEN.

Examples:
  memefarm twitter-scrape --query "desi memes has:images -is:retweet" --limit 50`,
	Args: cobra.NoArgs,
	RunE: runTwitterScrape,
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Write captions and hashtags for discovered items",
	Args:  cobra.NoArgs,
	RunE:  runGenerate,
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Assign publication slots to enriched items",
	Long: `Queue up to --per-posts ENRICHED items, oldest first, each in the
earliest free slot inside the preferred windows that keeps the configured
spacing from every other slot.`,
	Args: cobra.NoArgs,
	RunE: runSchedule,
}

var postDueCmd = &cobra.Command{
	Use:   "post-due",
	Short: "Publish queued items whose slot has arrived",
	Args:  cobra.NoArgs,
	RunE:  runPostDue,
}

func init() {
	scrapeCmd.Flags().StringSliceVar(&scrapeSubreddits, "subreddits", nil, "Comma-separated subreddits (default from config)")
	scrapeCmd.Flags().IntVar(&scrapeLimit, "limit", 0, "Posts to fetch per subreddit (default from config)")
	twitterScrapeCmd.Flags().StringArrayVar(&twitterQueries, "query", nil, "Search query, repeatable (default from config)")
	twitterScrapeCmd.Flags().IntVar(&twitterLimit, "limit", 0, "Tweets to request per query, 10 to 100 (default from config)")
	generateCmd.Flags().IntVar(&generateLimit, "limit", 0, "Maximum items to enrich, 0 for all")
	scheduleCmd.Flags().IntVar(&schedulePerPosts, "per-posts", 0, "Maximum items to queue (default from config)")
	postDueCmd.Flags().IntVar(&postMaxPosts, "max-posts", 0, "Maximum items to publish, 0 for all due")

	rootCmd.AddCommand(scrapeCmd, twitterScrapeCmd, generateCmd, scheduleCmd, postDueCmd)
}

func runScrape(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	subs, limit := scrapeSubreddits, scrapeLimit
	if len(subs) == 0 {
		subs = a.Config().Pipeline.Subreddits
	}
	if limit <= 0 {
		limit = a.Config().Pipeline.ScrapeLimit
	}
	return finishStage(a.Scrape(ctx, subs, limit))
}

func runTwitterScrape(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	queries, limit := twitterQueries, twitterLimit
	if len(queries) == 0 {
		queries = a.Config().Twitter.Queries
	}
	if limit <= 0 {
		limit = a.Config().Pipeline.ScrapeLimit
	}
	return finishStage(a.ScrapeTwitter(ctx, queries, limit))
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	limit := generateLimit
	if limit <= 0 {
		limit = a.Config().Pipeline.GenerateLimit
	}
	return finishStage(a.Generate(ctx, limit))
}

func runSchedule(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	perPosts := schedulePerPosts
	if !cmd.Flags().Changed("per-posts") {
		perPosts = a.Config().Pipeline.PerPosts
	}
	return finishStage(a.Schedule(ctx, perPosts))
}

func runPostDue(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	maxPosts := postMaxPosts
	if !cmd.Flags().Changed("max-posts") {
		maxPosts = a.Config().Pipeline.MaxPosts
	}
	return finishStage(a.PostDue(ctx, maxPosts))
}
