package usecase

import (
	"context"
	"errors"
	"fmt"

	"MemeFarm/internal/domain"
)

// PostDue publishes QUEUED items whose slot has arrived, earliest first.
// maxPosts <= 0 publishes every due item.
func (p *Pipeline) PostDue(ctx context.Context, maxPosts int) (report Report, err error) {
	report, logger, done, ok, err := p.begin(ctx, "post-due")
	if err != nil || !ok {
		return report, err
	}
	defer done()
	defer func() { p.finish(ctx, logger, &report, err) }()

	if p.publisher == nil {
		return report, fmt.Errorf("post-due: publisher is not configured")
	}

	due, err := p.store.ListDue(ctx, p.clock(), maxPosts)
	if err != nil {
		return report, fmt.Errorf("post-due: list due: %w", err)
	}
	if len(due) == 0 {
		return report, nil
	}

	pools, err := p.store.HashtagPools(ctx)
	if err != nil {
		return report, fmt.Errorf("post-due: load hashtag pools: %w", err)
	}

	for _, item := range due {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("post-due: %w", err)
		}
		report.Processed++

		result, err := p.publishOne(ctx, item, pools)
		switch result {
		case outcomeSucceeded:
			report.Succeeded++
		case outcomeFailed:
			report.Failed++
			report.note("%s: %v", item.ID, err)
		default:
			report.Skipped++
		}
		if err != nil && (result != outcomeFailed || errors.Is(err, domain.ErrUnavailable)) {
			return report, fmt.Errorf("post-due: %w", err)
		}
	}

	return report, nil
}

// publishOne returns outcomeFailed with the publish error for per-item
// failures; any other error stops the run.
func (p *Pipeline) publishOne(ctx context.Context, item domain.Item, pools []domain.HashtagPool) (outcome, error) {
	logger := p.logger.With("stage", "post-due", "item_id", item.ID)
	token := p.newToken()

	claimed, ok, err := p.store.ClaimDue(ctx, item.ID, token, p.clock(), p.opts.ClaimLease)
	if err != nil {
		return outcomeSkipped, fmt.Errorf("claim %s: %w", item.ID, err)
	}
	if !ok {
		logger.Debug("item claimed by another run")
		return outcomeSkipped, nil
	}

	ceiling := p.opts.RetryCeiling
	if claimed.AttemptCount > ceiling {
		// Earlier attempts were interrupted before their outcome was stored.
		reason := fmt.Errorf("retry ceiling %d exceeded after interrupted attempts", ceiling)
		if err := p.store.MarkPublishFailed(ctx, item.ID, token, reason.Error(), true, p.clock()); err != nil {
			return outcomeSkipped, fmt.Errorf("mark failed %s: %w", item.ID, err)
		}
		logger.Warn("item failed", "attempts", claimed.AttemptCount, "error", reason)
		return outcomeFailed, reason
	}

	seed := claimed.ScheduledAt.Unix() / 60
	caption := domain.ComposeCaption(claimed.CaptionText, domain.PublishHashtags(claimed.Hashtags, pools, seed))

	pubCtx, cancel := p.collaboratorContext(ctx)
	publishedRef, pubErr := p.publisher.Publish(pubCtx, claimed.SourceRef, caption, p.opts.AccountRef)
	cancel()
	if pubErr == nil && publishedRef == "" {
		pubErr = errors.New("publisher returned an empty id")
	}

	if pubErr != nil {
		terminal := claimed.AttemptCount >= ceiling
		if err := p.store.MarkPublishFailed(ctx, item.ID, token, pubErr.Error(), terminal, p.clock()); err != nil {
			return outcomeSkipped, fmt.Errorf("record failure %s: %w", item.ID, err)
		}
		logger.Warn("publish failed",
			"attempt", claimed.AttemptCount,
			"ceiling", ceiling,
			"terminal", terminal,
			"error", pubErr,
		)
		return outcomeFailed, pubErr
	}

	if err := p.store.MarkPublished(ctx, item.ID, token, publishedRef, p.clock()); err != nil {
		// The post is live but unrecorded; a later run may publish it again.
		logger.Error("published but could not record it", "published_ref", publishedRef, "error", err)
		return outcomeSkipped, fmt.Errorf("record publication %s as %s: %w", item.ID, publishedRef, err)
	}

	logger.Info("item published", "published_ref", publishedRef, "attempt", claimed.AttemptCount)
	return outcomeSucceeded, nil
}
