// Package slots picks publication instants inside preferred daily windows.
package slots

import (
	"fmt"
	"time"

	"MemeFarm/internal/domain"
)

// DefaultHorizon bounds how far ahead the generator searches.
const DefaultHorizon = 14 * 24 * time.Hour

// Policy holds the slot constraints for one regional timezone.
type Policy struct {
	Windows  []domain.Window
	Spacing  time.Duration
	Horizon  time.Duration
	Location *time.Location
}

// Occupancy describes slots already taken in the store.
type Occupancy struct {
	// Last is the latest assigned slot, zero when nothing was ever scheduled.
	Last time.Time
	Used []time.Time
}

// Generator finds the next free slot for a policy.
type Generator struct {
	policy Policy
}

// NewGenerator validates the policy and fills defaults.
func NewGenerator(p Policy) (*Generator, error) {
	if len(p.Windows) == 0 {
		return nil, fmt.Errorf("slots: at least one window is required")
	}
	if p.Spacing <= 0 {
		return nil, fmt.Errorf("slots: spacing must be positive")
	}
	if p.Horizon <= 0 {
		p.Horizon = DefaultHorizon
	}
	if p.Location == nil {
		p.Location = time.UTC
	}
	return &Generator{policy: p}, nil
}

// Next returns the earliest instant at or after max(now, Last+Spacing) that
// lies in a window and is not already used.
func (g *Generator) Next(now time.Time, occ Occupancy) (time.Time, error) {
	loc := g.policy.Location
	start := now.In(loc)
	if !occ.Last.IsZero() {
		if earliest := occ.Last.Add(g.policy.Spacing).In(loc); earliest.After(start) {
			start = earliest
		}
	}
	start = ceilMinute(start)
	limit := start.Add(g.policy.Horizon)

	used := make(map[int64]struct{}, len(occ.Used))
	for _, u := range occ.Used {
		used[u.Unix()] = struct{}{}
	}

	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
	for !day.After(limit) {
		for _, w := range g.policy.Windows {
			from, to := w.On(day, loc)
			candidate := from
			if candidate.Before(start) {
				candidate = start
			}
			for candidate.Before(to) && !candidate.After(limit) {
				if _, taken := used[candidate.Unix()]; !taken {
					return candidate, nil
				}
				candidate = candidate.Add(g.policy.Spacing)
			}
		}
		day = day.AddDate(0, 0, 1)
	}

	return time.Time{}, fmt.Errorf("%w within %s", domain.ErrSlotUnavailable, g.policy.Horizon)
}

func ceilMinute(t time.Time) time.Time {
	truncated := t.Truncate(time.Minute)
	if truncated.Equal(t) {
		return t
	}
	return truncated.Add(time.Minute)
}
