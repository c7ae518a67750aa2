package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"MemeFarm/internal/domain"
)

// Generate enriches DISCOVERED items oldest first; limit <= 0 means all of them.
func (p *Pipeline) Generate(ctx context.Context, limit int) (report Report, err error) {
	report, logger, done, ok, err := p.begin(ctx, "generate")
	if err != nil || !ok {
		return report, err
	}
	defer done()
	defer func() { p.finish(ctx, logger, &report, err) }()

	if p.enricher == nil {
		return report, fmt.Errorf("generate: enricher is not configured")
	}

	items, err := p.store.ListByState(ctx, domain.StateDiscovered, p.clock(), limit)
	if err != nil {
		return report, fmt.Errorf("generate: list discovered: %w", err)
	}

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("generate: %w", err)
		}
		report.Processed++

		result, err := p.enrichOne(ctx, item)
		switch {
		case errors.Is(err, domain.ErrUnavailable):
			report.Failed++
			return report, fmt.Errorf("generate: %w", err)
		case err != nil:
			return report, fmt.Errorf("generate: %w", err)
		}

		switch result {
		case outcomeSucceeded:
			report.Succeeded++
		case outcomeFailed:
			report.Failed++
		default:
			report.Skipped++
		}
	}

	return report, nil
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeSucceeded
	outcomeFailed
)

// enrichOne returns an error only when the run must stop.
func (p *Pipeline) enrichOne(ctx context.Context, item domain.Item) (outcome, error) {
	logger := p.logger.With("stage", "generate", "item_id", item.ID)
	token := p.newToken()

	claimed, err := p.store.Claim(ctx, item.ID, domain.StateDiscovered, token, p.clock(), p.opts.ClaimLease)
	if err != nil {
		return outcomeSkipped, fmt.Errorf("claim %s: %w", item.ID, err)
	}
	if !claimed {
		logger.Debug("item claimed by another run")
		return outcomeSkipped, nil
	}

	genCtx, cancel := p.collaboratorContext(ctx)
	enrichment, genErr := p.enricher.Generate(genCtx, item)
	cancel()
	if genErr == nil && strings.TrimSpace(enrichment.CaptionText) == "" {
		genErr = domain.ErrEmptyCaption
	}
	if genErr != nil {
		if err := p.store.Release(ctx, item.ID, token, genErr.Error(), p.clock()); err != nil && !errors.Is(err, domain.ErrClaimLost) {
			return outcomeFailed, fmt.Errorf("release %s: %w", item.ID, err)
		}
		if errors.Is(genErr, domain.ErrUnavailable) {
			return outcomeFailed, genErr
		}
		logger.Warn("enrichment failed", "error", genErr)
		return outcomeFailed, nil
	}

	err = p.store.Enrich(ctx, item.ID, token, enrichment, p.clock())
	switch {
	case errors.Is(err, domain.ErrClaimLost):
		logger.Warn("claim expired before enrichment was stored")
		return outcomeSkipped, nil
	case err != nil:
		return outcomeFailed, fmt.Errorf("store enrichment %s: %w", item.ID, err)
	}

	logger.Debug("item enriched", "hashtags", len(enrichment.Hashtags))
	return outcomeSucceeded, nil
}
