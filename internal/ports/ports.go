package ports

import (
	"context"
	"time"

	"MemeFarm/internal/domain"
)

// ContentSource pulls candidate items from upstream feeds.
type ContentSource interface {
	Fetch(ctx context.Context, sources []string, limit int) ([]domain.Candidate, error)
}

// Enricher generates caption text and hashtags for an item.
type Enricher interface {
	Generate(ctx context.Context, item domain.Item) (domain.Enrichment, error)
}

// Publisher pushes a ready item to the target account and returns the remote id.
type Publisher interface {
	Publish(ctx context.Context, sourceRef, caption, accountRef string) (string, error)
}

// SlotChooser picks a slot given the latest assigned slot and every used slot.
type SlotChooser func(last time.Time, used []time.Time) (time.Time, error)

// ItemStore is the single source of truth for item lifecycle state.
type ItemStore interface {
	// Insert adds the item unless its id already exists; reports whether it was inserted.
	Insert(ctx context.Context, item domain.Item) (bool, error)
	KnownIDs(ctx context.Context, ids []string) (map[string]bool, error)
	Get(ctx context.Context, id string) (domain.Item, error)
	// ListByState returns unclaimed items in state, oldest first. limit <= 0 means no bound.
	ListByState(ctx context.Context, state domain.State, now time.Time, limit int) ([]domain.Item, error)
	// ListDue returns unclaimed queued items with scheduled_at <= now, earliest first.
	ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Item, error)
	// Claim leases an item in state for token until now+lease.
	Claim(ctx context.Context, id string, state domain.State, token string, now time.Time, lease time.Duration) (bool, error)
	// ClaimDue leases a due queued item and increments its attempt counter.
	ClaimDue(ctx context.Context, id, token string, now time.Time, lease time.Duration) (domain.Item, bool, error)
	// Release drops a lease without changing state, recording the failure reason.
	Release(ctx context.Context, id, token, reason string, now time.Time) error
	Enrich(ctx context.Context, id, token string, e domain.Enrichment, now time.Time) error
	// Queue assigns a slot and moves ENRICHED -> QUEUED in one transaction.
	Queue(ctx context.Context, id string, choose SlotChooser, now time.Time) (time.Time, error)
	MarkPublished(ctx context.Context, id, token, publishedRef string, now time.Time) error
	MarkPublishFailed(ctx context.Context, id, token, reason string, terminal bool, now time.Time) error
	CountByState(ctx context.Context) (map[domain.State]int, error)
	UpsertHashtagPool(ctx context.Context, pool domain.HashtagPool) error
	HashtagPools(ctx context.Context) ([]domain.HashtagPool, error)
	Close() error
}

// Notifier streams run reports to Telegram or other channels.
type Notifier interface {
	PublishReport(ctx context.Context, report string) error
}

// Locker serialises overlapping invocations of the same stage.
type Locker interface {
	// Acquire returns ok=false when another run holds the lock.
	Acquire(ctx context.Context, name string, ttl time.Duration) (release func(context.Context) error, ok bool, err error)
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
