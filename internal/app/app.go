package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"MemeFarm/internal/config"
	"MemeFarm/internal/domain"
	"MemeFarm/internal/infrastructure/httpclient"
	"MemeFarm/internal/infrastructure/instagram"
	"MemeFarm/internal/infrastructure/llm"
	"MemeFarm/internal/infrastructure/lock"
	"MemeFarm/internal/infrastructure/parser"
	"MemeFarm/internal/infrastructure/scheduler"
	"MemeFarm/internal/infrastructure/storage"
	"MemeFarm/internal/infrastructure/telegram"
	"MemeFarm/internal/logging"
	"MemeFarm/internal/ports"
	"MemeFarm/internal/scanner"
	"MemeFarm/internal/slots"
	"MemeFarm/internal/usecase"
)

const upcomingLimit = 10

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	store    *storage.SQLRepository
	pipeline *usecase.Pipeline
	closers  []func() error
}

// Status is a snapshot of the store for the status command.
type Status struct {
	Counts   map[domain.State]int
	Upcoming []domain.Item
	Pools    []domain.HashtagPool
}

// New opens the store and builds every adapter the configuration enables.
// Collaborators without credentials stay nil; the stage using them fails
// with a "not configured" error instead of the whole application.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	dialect, err := storage.ParseDialect(cfg.Database.Driver)
	if err != nil {
		return nil, err
	}
	db, err := storage.Open(ctx, dialect, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	loc := cfg.Pipeline.Location()
	store := storage.NewSQLRepository(db, dialect, loc)

	a := &Application{cfg: cfg, logger: baseLogger, store: store}
	a.closers = append(a.closers, store.Close)

	windows, err := cfg.Pipeline.ParsedWindows()
	if err != nil {
		a.Close()
		return nil, err
	}
	generator, err := slots.NewGenerator(slots.Policy{
		Windows:  windows,
		Spacing:  cfg.Pipeline.Spacing,
		Horizon:  cfg.Pipeline.Horizon,
		Location: loc,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	locker, err := a.buildLocker(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.pipeline = usecase.NewPipeline(usecase.PipelineDeps{
		Store:     store,
		Source:    a.buildSource(),
		Twitter:   a.buildTwitter(),
		Enricher:  a.buildEnricher(),
		Publisher: a.buildPublisher(),
		Notifier:  a.buildNotifier(),
		Locker:    locker,
		Slots:     generator,
		Logger:    baseLogger.With("component", "pipeline"),
		Options: usecase.Options{
			AccountRef:          cfg.Instagram.AccountID,
			MediaTypes:          cfg.Pipeline.MediaTypeList(),
			RetryCeiling:        cfg.Pipeline.RetryCeiling,
			CollaboratorTimeout: cfg.Pipeline.CollaboratorTimeout,
			ClaimLease:          cfg.Pipeline.ClaimLease,
			LockTTL:             cfg.Pipeline.LockTTL,
		},
	})
	return a, nil
}

func (a *Application) buildSource() ports.ContentSource {
	rc := a.cfg.Reddit
	client := httpclient.New(a.cfg.Pipeline.CollaboratorTimeout)

	registry := scanner.NewRegistry()
	registry.Register(parser.NewRedditHTMLScanner(client, "", rc.UserAgent))

	strategy := rc.Strategy
	api, err := parser.NewRedditAPIScanner(parser.RedditAPIConfig{
		ClientID:     rc.ClientID,
		ClientSecret: rc.ClientSecret,
		UserAgent:    rc.UserAgent,
		BaseURL:      rc.BaseURL,
		TokenURL:     rc.TokenURL,
	}, client)
	if err == nil {
		registry.Register(api)
	} else if strategy == "reddit-api" {
		a.logger.Warn("reddit api credentials missing, falling back to html listing", "error", err)
		strategy = "reddit-html"
	}

	return parser.NewStrategySource(registry, strategy, rc.Listing, a.logger.With("component", "source"))
}

func (a *Application) buildTwitter() ports.ContentSource {
	tc := a.cfg.Twitter
	if tc.BearerToken == "" {
		return nil
	}
	src, err := parser.NewTwitterSource(tc.BearerToken, tc.BaseURL, httpclient.New(a.cfg.Pipeline.CollaboratorTimeout))
	if err != nil {
		a.logger.Warn("twitter source disabled", "error", err)
		return nil
	}
	return src
}

func (a *Application) buildEnricher() ports.Enricher {
	if a.cfg.LLM.APIKey == "" {
		return nil
	}
	return llm.NewCaptioner(llm.Config{
		Endpoint:     a.cfg.LLM.Endpoint,
		Model:        a.cfg.LLM.Model,
		APIKey:       a.cfg.LLM.APIKey,
		SystemPrompt: a.cfg.LLM.SystemPrompt,
	}, httpclient.New(a.cfg.Pipeline.CollaboratorTimeout))
}

func (a *Application) buildPublisher() ports.Publisher {
	ic := a.cfg.Instagram
	if ic.AccessToken == "" || ic.AccountID == "" {
		return nil
	}
	return instagram.NewPublisher(ic.GraphURL, ic.AccessToken, httpclient.New(a.cfg.Pipeline.CollaboratorTimeout))
}

func (a *Application) buildNotifier() ports.Notifier {
	tc := a.cfg.Telegram
	if tc.BotToken == "" || tc.ChatID == "" {
		return nil
	}
	return telegram.NewNotifier(tc.BotToken, tc.ChatID)
}

func (a *Application) buildLocker(ctx context.Context) (ports.Locker, error) {
	rc := a.cfg.Redis
	if rc.Addr == "" {
		return lock.Noop{}, nil
	}
	locker, client, err := lock.Dial(ctx, rc.Addr, rc.Password, rc.DB)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, client.Close)
	return locker, nil
}

// Config returns the effective configuration.
func (a *Application) Config() config.Config {
	return a.cfg
}

// Scrape runs the ingestion stage.
func (a *Application) Scrape(ctx context.Context, subreddits []string, limit int) (usecase.Report, error) {
	return a.pipeline.Scrape(ctx, subreddits, limit)
}

// ScrapeTwitter runs the Twitter ingestion stage.
func (a *Application) ScrapeTwitter(ctx context.Context, queries []string, limit int) (usecase.Report, error) {
	return a.pipeline.ScrapeTwitter(ctx, queries, limit)
}

// Generate runs the enrichment stage.
func (a *Application) Generate(ctx context.Context, limit int) (usecase.Report, error) {
	return a.pipeline.Generate(ctx, limit)
}

// Schedule runs the scheduling stage.
func (a *Application) Schedule(ctx context.Context, perPosts int) (usecase.Report, error) {
	return a.pipeline.Schedule(ctx, perPosts)
}

// PostDue runs the publication stage.
func (a *Application) PostDue(ctx context.Context, maxPosts int) (usecase.Report, error) {
	return a.pipeline.PostDue(ctx, maxPosts)
}

// Run executes a full pass every interval until ctx is cancelled.
func (a *Application) Run(ctx context.Context, every time.Duration, params usecase.RunParams, onReport func([]usecase.Report, error)) error {
	if every <= 0 {
		return fmt.Errorf("run interval must be positive")
	}

	driver := scheduler.NewTickerScheduler(every)
	sched := usecase.NewScheduler(driver, a.pipeline, params, onReport)
	if err := sched.Start(ctx); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
	case <-driver.Done():
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Pipeline.LockTTL)
	defer cancel()
	return sched.Stop(stopCtx)
}

// RunParams builds stage bounds from the pipeline configuration. Twitter
// queries are included only when a bearer token is configured.
func (a *Application) RunParams() usecase.RunParams {
	p := a.cfg.Pipeline
	params := usecase.RunParams{
		Subreddits:  p.Subreddits,
		ScrapeLimit: p.ScrapeLimit,
		GenerateMax: p.GenerateLimit,
		PerPosts:    p.PerPosts,
		MaxPosts:    p.MaxPosts,
	}
	if a.cfg.Twitter.BearerToken != "" {
		params.TwitterQueries = a.cfg.Twitter.Queries
	}
	return params
}

// Status reports counts per state, the next queued slots and the hashtag pools.
func (a *Application) Status(ctx context.Context) (Status, error) {
	counts, err := a.store.CountByState(ctx)
	if err != nil {
		return Status{}, err
	}
	upcoming, err := a.store.Upcoming(ctx, upcomingLimit)
	if err != nil {
		return Status{}, err
	}
	pools, err := a.store.HashtagPools(ctx)
	if err != nil {
		return Status{}, err
	}
	return Status{Counts: counts, Upcoming: upcoming, Pools: pools}, nil
}

// SeedHashtags stores the built-in hashtag pools, replacing existing ones of the same name.
func (a *Application) SeedHashtags(ctx context.Context) (int, error) {
	pools := domain.DefaultHashtagPools
	for _, pool := range pools {
		if err := a.store.UpsertHashtagPool(ctx, pool); err != nil {
			return 0, fmt.Errorf("seed pool %s: %w", pool.Name, err)
		}
	}
	a.logger.Info("hashtag pools seeded", "pools", len(pools))
	return len(pools), nil
}

// Close releases the store and any open client connections.
func (a *Application) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// InitDB opens the configured database, which applies the schema.
func InitDB(ctx context.Context, cfg config.Config) error {
	dialect, err := storage.ParseDialect(cfg.Database.Driver)
	if err != nil {
		return err
	}
	db, err := storage.Open(ctx, dialect, cfg.Database.DSN)
	if err != nil {
		return err
	}
	return db.Close()
}
