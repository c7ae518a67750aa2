package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"MemeFarm/internal/domain"
	"MemeFarm/internal/ports"
	"MemeFarm/internal/slots"
)

const (
	defaultRetryCeiling        = 3
	defaultCollaboratorTimeout = 30 * time.Second
	defaultClaimLease          = 5 * time.Minute
	defaultLockTTL             = 15 * time.Minute
)

// Options tunes stage behaviour; zero values fall back to defaults.
type Options struct {
	AccountRef          string
	MediaTypes          []domain.MediaType
	RetryCeiling        int
	CollaboratorTimeout time.Duration
	ClaimLease          time.Duration
	LockTTL             time.Duration
}

// PipelineDeps wires all driven adapters into the stages.
type PipelineDeps struct {
	Store     ports.ItemStore
	Source    ports.ContentSource
	Twitter   ports.ContentSource
	Enricher  ports.Enricher
	Publisher ports.Publisher
	Notifier  ports.Notifier
	Locker    ports.Locker
	Slots     *slots.Generator
	Logger    *slog.Logger
	Clock     func() time.Time
	Options   Options
}

// Pipeline implements the ingestion, enrichment, scheduling and publication stages.
type Pipeline struct {
	store     ports.ItemStore
	source    ports.ContentSource
	twitter   ports.ContentSource
	enricher  ports.Enricher
	publisher ports.Publisher
	notifier  ports.Notifier
	locker    ports.Locker
	slots     *slots.Generator
	logger    *slog.Logger
	clock     func() time.Time
	opts      Options
	newToken  func() string
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	opts := deps.Options
	if opts.RetryCeiling <= 0 {
		opts.RetryCeiling = defaultRetryCeiling
	}
	if opts.CollaboratorTimeout <= 0 {
		opts.CollaboratorTimeout = defaultCollaboratorTimeout
	}
	if opts.ClaimLease <= 0 {
		opts.ClaimLease = defaultClaimLease
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = defaultLockTTL
	}
	if len(opts.MediaTypes) == 0 {
		opts.MediaTypes = []domain.MediaType{domain.MediaImage}
	}

	return &Pipeline{
		store:     deps.Store,
		source:    deps.Source,
		twitter:   deps.Twitter,
		enricher:  deps.Enricher,
		publisher: deps.Publisher,
		notifier:  deps.Notifier,
		locker:    deps.Locker,
		slots:     deps.Slots,
		logger:    logger,
		clock:     clock,
		opts:      opts,
		newToken:  uuid.NewString,
	}
}

// RunParams carries the per-invocation bounds of a full pass.
type RunParams struct {
	Subreddits     []string
	TwitterQueries []string
	ScrapeLimit    int
	GenerateMax    int
	PerPosts       int
	MaxPosts       int
}

// RunAll invokes every stage in order. A failing stage is reported and the
// next one still runs; the first stage error is returned. The Twitter stage
// runs only when queries are given.
func (p *Pipeline) RunAll(ctx context.Context, params RunParams) ([]Report, error) {
	stages := []func(context.Context) (Report, error){
		func(ctx context.Context) (Report, error) { return p.Scrape(ctx, params.Subreddits, params.ScrapeLimit) },
	}
	if len(params.TwitterQueries) > 0 {
		stages = append(stages, func(ctx context.Context) (Report, error) {
			return p.ScrapeTwitter(ctx, params.TwitterQueries, params.ScrapeLimit)
		})
	}
	stages = append(stages,
		func(ctx context.Context) (Report, error) { return p.Generate(ctx, params.GenerateMax) },
		func(ctx context.Context) (Report, error) { return p.Schedule(ctx, params.PerPosts) },
		func(ctx context.Context) (Report, error) { return p.PostDue(ctx, params.MaxPosts) },
	)

	var (
		reports  []Report
		firstErr error
	)
	for _, stage := range stages {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		report, err := stage(ctx)
		reports = append(reports, report)
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return reports, firstErr
}

// begin starts a stage run: it takes the stage lock and prepares the report.
// ok=false means another invocation holds the lock and the run is a no-op.
func (p *Pipeline) begin(ctx context.Context, stage string) (Report, *slog.Logger, func(), bool, error) {
	runID := newRunID()
	report := Report{Stage: stage, RunID: runID, StartedAt: p.clock()}
	logger := p.logger.With("stage", stage, "run_id", runID)

	if p.store == nil {
		return report, logger, func() {}, false, fmt.Errorf("%s: store is not configured", stage)
	}
	if p.locker == nil {
		return report, logger, func() {}, true, nil
	}

	release, ok, err := p.locker.Acquire(ctx, "memefarm:stage:"+stage, p.opts.LockTTL)
	if err != nil {
		return report, logger, func() {}, false, fmt.Errorf("%s: acquire lock: %w", stage, err)
	}
	if !ok {
		logger.Info("another run holds the stage lock, skipping")
		report.Locked = true
		return report, logger, func() {}, false, nil
	}
	done := func() {
		// The run context may already be cancelled; release on a fresh one.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := release(releaseCtx); err != nil {
			logger.Warn("release stage lock", "error", err)
		}
	}
	return report, logger, done, true, nil
}

// finish stamps the report, logs it and forwards it to the notifier.
func (p *Pipeline) finish(ctx context.Context, logger *slog.Logger, report *Report, err error) {
	report.FinishedAt = p.clock()
	attrs := []any{
		"processed", report.Processed,
		"succeeded", report.Succeeded,
		"failed", report.Failed,
		"skipped", report.Skipped,
	}
	if err != nil {
		report.note("run failed: %v", err)
		logger.Error("stage failed", append(attrs, "error", err)...)
	} else {
		logger.Info("stage finished", attrs...)
	}

	if p.notifier == nil || (report.Succeeded == 0 && report.Failed == 0 && err == nil) {
		return
	}
	if err := p.notifier.PublishReport(ctx, report.String()); err != nil {
		logger.Warn("notify report", "error", err)
	}
}

func (p *Pipeline) collaboratorContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, p.opts.CollaboratorTimeout)
}

func newRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
