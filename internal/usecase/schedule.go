package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"MemeFarm/internal/domain"
	"MemeFarm/internal/ports"
	"MemeFarm/internal/slots"
)

// Schedule assigns slots to up to perPosts ENRICHED items, oldest first.
func (p *Pipeline) Schedule(ctx context.Context, perPosts int) (report Report, err error) {
	report, logger, done, ok, err := p.begin(ctx, "schedule")
	if err != nil || !ok {
		return report, err
	}
	defer done()
	defer func() { p.finish(ctx, logger, &report, err) }()

	if p.slots == nil {
		return report, fmt.Errorf("schedule: slot generator is not configured")
	}
	if perPosts <= 0 {
		return report, nil
	}

	items, err := p.store.ListByState(ctx, domain.StateEnriched, p.clock(), perPosts)
	if err != nil {
		return report, fmt.Errorf("schedule: list enriched: %w", err)
	}

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("schedule: %w", err)
		}
		report.Processed++

		now := p.clock()
		slot, err := p.store.Queue(ctx, item.ID, p.chooser(now), now)
		switch {
		case errors.Is(err, domain.ErrSlotUnavailable):
			logger.Warn("no slot within horizon", "item_id", item.ID, "error", err)
			report.note("%s: %v", item.ID, err)
			report.Skipped++
		case errors.Is(err, domain.ErrClaimLost):
			logger.Debug("item already scheduled by another run", "item_id", item.ID)
			report.Skipped++
		case errors.Is(err, domain.ErrEmptyCaption):
			logger.Warn("enriched item has no caption", "item_id", item.ID)
			report.Skipped++
		case err != nil:
			return report, fmt.Errorf("schedule %s: %w", item.ID, err)
		default:
			logger.Info("item queued", "item_id", item.ID, "scheduled_at", slot.Format(time.RFC3339))
			report.note("%s -> %s", item.ID, slot.Format("2006-01-02 15:04 MST"))
			report.Succeeded++
		}
	}

	return report, nil
}

func (p *Pipeline) chooser(now time.Time) ports.SlotChooser {
	return func(last time.Time, used []time.Time) (time.Time, error) {
		return p.slots.Next(now, slots.Occupancy{Last: last, Used: used})
	}
}
