package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"MemeFarm/internal/domain"
	"MemeFarm/internal/ports"
)

var itemColumns = []string{
	"id", "source_ref", "source_name", "title", "media_type",
	"caption_text", "hashtags", "state", "scheduled_at", "attempt_count",
	"published_ref", "last_error", "claim_token", "claim_until",
	"created_at", "updated_at",
}

// SQLRepository persists items in SQLite or Postgres.
type SQLRepository struct {
	db      *sql.DB
	dialect Dialect
	sb      sq.StatementBuilderType
	loc     *time.Location
}

var _ ports.ItemStore = (*SQLRepository)(nil)

// NewSQLRepository wires an opened sql.DB; loc is used for instants read back.
func NewSQLRepository(db *sql.DB, dialect Dialect, loc *time.Location) *SQLRepository {
	if loc == nil {
		loc = time.UTC
	}
	return &SQLRepository{
		db:      db,
		dialect: dialect,
		sb:      sq.StatementBuilder.PlaceholderFormat(dialect.placeholder()),
		loc:     loc,
	}
}

// Close releases the underlying database handle.
func (r *SQLRepository) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

// Insert adds a discovered item unless the id is already stored.
func (r *SQLRepository) Insert(ctx context.Context, item domain.Item) (bool, error) {
	if item.ID == "" {
		return false, fmt.Errorf("insert item: empty id")
	}
	if item.State == "" {
		item.State = domain.StateDiscovered
	}
	if item.State != domain.StateDiscovered {
		return false, fmt.Errorf("insert item %s: new items must be %s", item.ID, domain.StateDiscovered)
	}

	query, args, err := r.sb.Insert("items").
		Columns("id", "source_ref", "source_name", "title", "media_type", "state", "created_at", "updated_at").
		Values(item.ID, item.SourceRef, item.SourceName, item.Title, string(item.MediaType),
			string(item.State), millis(item.CreatedAt), millis(item.UpdatedAt)).
		Suffix("ON CONFLICT (id) DO NOTHING").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build insert: %w", err)
	}

	res, err := exec(ctx, r.db, query, args...)
	if err != nil {
		return false, fmt.Errorf("insert item %s: %w", item.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert item %s: rows affected: %w", item.ID, err)
	}
	return n == 1, nil
}

// KnownIDs returns a map with IDs that already exist in storage.
func (r *SQLRepository) KnownIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	result := make(map[string]bool)
	if len(ids) == 0 {
		return result, nil
	}

	query, args, err := r.sb.Select("id").From("items").Where(sq.Eq{"id": ids}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build known ids: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query known ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		result[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return result, nil
}

// Get loads one item by id.
func (r *SQLRepository) Get(ctx context.Context, id string) (domain.Item, error) {
	return r.get(ctx, r.db, id)
}

// ListByState returns unclaimed items in state ordered by created_at.
func (r *SQLRepository) ListByState(ctx context.Context, state domain.State, now time.Time, limit int) ([]domain.Item, error) {
	builder := r.sb.Select(itemColumns...).From("items").
		Where(sq.Eq{"state": string(state)}).
		Where(sq.LtOrEq{"claim_until": millis(now)}).
		OrderBy("created_at ASC", "id ASC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	return r.list(ctx, builder)
}

// ListDue returns unclaimed queued items whose slot has arrived.
func (r *SQLRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Item, error) {
	builder := r.sb.Select(itemColumns...).From("items").
		Where(sq.Eq{"state": string(domain.StateQueued)}).
		Where(sq.LtOrEq{"scheduled_at": millis(now)}).
		Where(sq.LtOrEq{"claim_until": millis(now)}).
		OrderBy("scheduled_at ASC", "id ASC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	return r.list(ctx, builder)
}

// Upcoming returns queued items ordered by slot, due or not.
func (r *SQLRepository) Upcoming(ctx context.Context, limit int) ([]domain.Item, error) {
	builder := r.sb.Select(itemColumns...).From("items").
		Where(sq.Eq{"state": string(domain.StateQueued)}).
		OrderBy("scheduled_at ASC", "id ASC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	return r.list(ctx, builder)
}

// Claim leases an item in the given state to token.
func (r *SQLRepository) Claim(ctx context.Context, id string, state domain.State, token string, now time.Time, lease time.Duration) (bool, error) {
	if token == "" {
		return false, fmt.Errorf("claim item %s: empty token", id)
	}
	query, args, err := r.sb.Update("items").
		Set("claim_token", token).
		Set("claim_until", millis(now.Add(lease))).
		Set("updated_at", millis(now)).
		Where(sq.Eq{"id": id, "state": string(state)}).
		Where(sq.LtOrEq{"claim_until": millis(now)}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build claim: %w", err)
	}
	return r.execOne(ctx, query, args, "claim item "+id)
}

// ClaimDue leases a due queued item and counts the publish attempt in the same write.
func (r *SQLRepository) ClaimDue(ctx context.Context, id, token string, now time.Time, lease time.Duration) (domain.Item, bool, error) {
	if token == "" {
		return domain.Item{}, false, fmt.Errorf("claim due item %s: empty token", id)
	}

	var (
		item    domain.Item
		claimed bool
	)
	err := runTx(ctx, r.db, func(tx *sql.Tx) error {
		query, args, err := r.sb.Update("items").
			Set("attempt_count", sq.Expr("attempt_count + 1")).
			Set("claim_token", token).
			Set("claim_until", millis(now.Add(lease))).
			Set("updated_at", millis(now)).
			Where(sq.Eq{"id": id, "state": string(domain.StateQueued)}).
			Where(sq.LtOrEq{"scheduled_at": millis(now)}).
			Where(sq.LtOrEq{"claim_until": millis(now)}).
			ToSql()
		if err != nil {
			return fmt.Errorf("build claim due: %w", err)
		}
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("claim due item %s: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("claim due item %s: rows affected: %w", id, err)
		}
		if n != 1 {
			claimed = false
			return nil
		}
		item, err = r.get(ctx, tx, id)
		if err != nil {
			return err
		}
		claimed = true
		return nil
	})
	if err != nil {
		return domain.Item{}, false, err
	}
	return item, claimed, nil
}

// Release drops the lease held by token and records why.
func (r *SQLRepository) Release(ctx context.Context, id, token, reason string, now time.Time) error {
	query, args, err := r.sb.Update("items").
		Set("claim_token", "").
		Set("claim_until", 0).
		Set("last_error", truncate(reason)).
		Set("updated_at", millis(now)).
		Where(sq.Eq{"id": id, "claim_token": token}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build release: %w", err)
	}
	return r.execClaimed(ctx, query, args, "release item "+id)
}

// Enrich stores generated text and moves DISCOVERED -> ENRICHED.
func (r *SQLRepository) Enrich(ctx context.Context, id, token string, e domain.Enrichment, now time.Time) error {
	caption := strings.TrimSpace(e.CaptionText)
	if caption == "" {
		return fmt.Errorf("enrich item %s: %w", id, domain.ErrEmptyCaption)
	}

	builder, err := r.transition(id, domain.StateDiscovered, domain.StateEnriched)
	if err != nil {
		return err
	}
	query, args, err := builder.
		Set("caption_text", caption).
		Set("hashtags", joinTags(domain.NormalizeHashtags(e.Hashtags))).
		Set("claim_token", "").
		Set("claim_until", 0).
		Set("last_error", "").
		Set("updated_at", millis(now)).
		Where(sq.Eq{"claim_token": token}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build enrich: %w", err)
	}
	return r.execClaimed(ctx, query, args, "enrich item "+id)
}

// Queue picks a slot with choose and moves ENRICHED -> QUEUED atomically.
func (r *SQLRepository) Queue(ctx context.Context, id string, choose ports.SlotChooser, now time.Time) (time.Time, error) {
	var slot time.Time

	err := runTx(ctx, r.db, func(tx *sql.Tx) error {
		// Slot assignment is serialised across items; the row lock below only covers this item.
		if query, args := slotLockStatement(r.dialect); query != "" {
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("queue item %s: slot lock: %w", id, err)
			}
		}

		// Take the write lock before reading occupancy so the chosen slot cannot go stale.
		lockQuery, lockArgs, err := r.sb.Update("items").
			Set("updated_at", sq.Expr("updated_at")).
			Where(sq.Eq{"id": id}).
			ToSql()
		if err != nil {
			return fmt.Errorf("build queue lock: %w", err)
		}
		if _, err := tx.ExecContext(ctx, lockQuery, lockArgs...); err != nil {
			return fmt.Errorf("queue item %s: lock: %w", id, err)
		}

		item, err := r.get(ctx, tx, id)
		if err != nil {
			return err
		}
		if item.State != domain.StateEnriched || item.ClaimUntil.After(now) {
			return fmt.Errorf("queue item %s in state %s: %w", id, item.State, domain.ErrClaimLost)
		}
		if strings.TrimSpace(item.CaptionText) == "" {
			return fmt.Errorf("queue item %s: %w", id, domain.ErrEmptyCaption)
		}

		last, used, err := r.occupancy(ctx, tx, now)
		if err != nil {
			return err
		}

		candidate, err := choose(last, used)
		if err != nil {
			return err
		}

		builder, err := r.transition(id, domain.StateEnriched, domain.StateQueued)
		if err != nil {
			return err
		}
		query, args, err := builder.
			Set("scheduled_at", millis(candidate)).
			Set("last_error", "").
			Set("updated_at", millis(now)).
			Where(sq.Eq{"scheduled_at": nil}).
			ToSql()
		if err != nil {
			return fmt.Errorf("build queue: %w", err)
		}
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("queue item %s: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("queue item %s: rows affected: %w", id, err)
		}
		if n != 1 {
			return fmt.Errorf("queue item %s: %w", id, domain.ErrClaimLost)
		}
		slot = candidate.In(r.loc)
		return nil
	})
	if err != nil {
		return time.Time{}, err
	}
	return slot, nil
}

// transition starts an UPDATE moving id from one state to the next,
// refusing edges the item lifecycle does not allow.
func (r *SQLRepository) transition(id string, from, to domain.State) (sq.UpdateBuilder, error) {
	if !from.CanTransition(to) {
		return sq.UpdateBuilder{}, fmt.Errorf("item %s: illegal transition %s -> %s", id, from, to)
	}
	return r.sb.Update("items").
		Set("state", string(to)).
		Where(sq.Eq{"id": id, "state": string(from)}), nil
}

// slotLockKey identifies the transaction-scoped advisory lock guarding slot assignment.
const slotLockKey int64 = 0x6d656d65736c6f74

// slotLockStatement returns the statement serialising Queue transactions.
// SQLite needs none: its write lock already admits a single writer.
func slotLockStatement(d Dialect) (string, []any) {
	if d == DialectPostgres {
		return "SELECT pg_advisory_xact_lock($1)", []any{slotLockKey}
	}
	return "", nil
}

// MarkPublished records the remote id and moves QUEUED -> PUBLISHED.
func (r *SQLRepository) MarkPublished(ctx context.Context, id, token, publishedRef string, now time.Time) error {
	if publishedRef == "" {
		return fmt.Errorf("mark published %s: empty published ref", id)
	}
	builder, err := r.transition(id, domain.StateQueued, domain.StatePublished)
	if err != nil {
		return err
	}
	query, args, err := builder.
		Set("published_ref", publishedRef).
		Set("claim_token", "").
		Set("claim_until", 0).
		Set("last_error", "").
		Set("updated_at", millis(now)).
		Where(sq.Eq{"claim_token": token}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build mark published: %w", err)
	}
	return r.execClaimed(ctx, query, args, "mark published "+id)
}

// MarkPublishFailed records a failed attempt; terminal moves the item to FAILED.
func (r *SQLRepository) MarkPublishFailed(ctx context.Context, id, token, reason string, terminal bool, now time.Time) error {
	// A retryable failure keeps the item QUEUED in its slot.
	builder := r.sb.Update("items").Where(sq.Eq{"id": id, "state": string(domain.StateQueued)})
	if terminal {
		var err error
		if builder, err = r.transition(id, domain.StateQueued, domain.StateFailed); err != nil {
			return err
		}
	}
	query, args, err := builder.
		Set("claim_token", "").
		Set("claim_until", 0).
		Set("last_error", truncate(reason)).
		Set("updated_at", millis(now)).
		Where(sq.Eq{"claim_token": token}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build mark failed: %w", err)
	}
	return r.execClaimed(ctx, query, args, "mark failed "+id)
}

// CountByState returns the number of items per state.
func (r *SQLRepository) CountByState(ctx context.Context) (map[domain.State]int, error) {
	query, args, err := r.sb.Select("state", "COUNT(*)").From("items").GroupBy("state").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build count: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("count by state: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.State]int, len(domain.States))
	for rows.Next() {
		var (
			state string
			n     int
		)
		if err := rows.Scan(&state, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[domain.State(state)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return counts, nil
}

// UpsertHashtagPool creates or replaces a named pool.
func (r *SQLRepository) UpsertHashtagPool(ctx context.Context, pool domain.HashtagPool) error {
	if pool.Name == "" {
		return fmt.Errorf("upsert hashtag pool: empty name")
	}
	active := 0
	if pool.Active {
		active = 1
	}
	query, args, err := r.sb.Insert("hashtag_pools").
		Columns("name", "tags", "active", "updated_at").
		Values(pool.Name, joinTags(domain.NormalizeHashtags(pool.Tags)), active, millis(time.Now())).
		Suffix("ON CONFLICT (name) DO UPDATE SET tags = excluded.tags, active = excluded.active, updated_at = excluded.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert pool: %w", err)
	}
	if _, err := exec(ctx, r.db, query, args...); err != nil {
		return fmt.Errorf("upsert hashtag pool %s: %w", pool.Name, err)
	}
	return nil
}

// HashtagPools returns every active pool ordered by name.
func (r *SQLRepository) HashtagPools(ctx context.Context) ([]domain.HashtagPool, error) {
	query, args, err := r.sb.Select("name", "tags", "active").From("hashtag_pools").
		Where(sq.Eq{"active": 1}).
		OrderBy("name ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build pools: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query pools: %w", err)
	}
	defer rows.Close()

	var pools []domain.HashtagPool
	for rows.Next() {
		var (
			pool   domain.HashtagPool
			tags   string
			active int
		)
		if err := rows.Scan(&pool.Name, &tags, &active); err != nil {
			return nil, fmt.Errorf("scan pool: %w", err)
		}
		pool.Tags = splitTags(tags)
		pool.Active = active == 1
		pools = append(pools, pool)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return pools, nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *SQLRepository) get(ctx context.Context, q queryer, id string) (domain.Item, error) {
	query, args, err := r.sb.Select(itemColumns...).From("items").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return domain.Item{}, fmt.Errorf("build get: %w", err)
	}
	item, err := r.scanItem(q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Item{}, fmt.Errorf("item %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Item{}, fmt.Errorf("get item %s: %w", id, err)
	}
	return item, nil
}

func (r *SQLRepository) list(ctx context.Context, builder sq.SelectBuilder) ([]domain.Item, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var items []domain.Item
	for rows.Next() {
		item, err := r.scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return items, nil
}

func (r *SQLRepository) occupancy(ctx context.Context, q queryer, now time.Time) (time.Time, []time.Time, error) {
	var last time.Time

	maxQuery, maxArgs, err := r.sb.Select("MAX(scheduled_at)").From("items").ToSql()
	if err != nil {
		return last, nil, fmt.Errorf("build last slot: %w", err)
	}
	var lastMs sql.NullInt64
	if err := q.QueryRowContext(ctx, maxQuery, maxArgs...).Scan(&lastMs); err != nil {
		return last, nil, fmt.Errorf("query last slot: %w", err)
	}
	if lastMs.Valid {
		last = fromMillis(lastMs.Int64, r.loc)
	}

	usedQuery, usedArgs, err := r.sb.Select("scheduled_at").From("items").
		Where(sq.GtOrEq{"scheduled_at": millis(now)}).
		OrderBy("scheduled_at ASC").
		ToSql()
	if err != nil {
		return last, nil, fmt.Errorf("build used slots: %w", err)
	}
	rows, err := q.QueryContext(ctx, usedQuery, usedArgs...)
	if err != nil {
		return last, nil, fmt.Errorf("query used slots: %w", err)
	}
	defer rows.Close()

	var used []time.Time
	for rows.Next() {
		var ms int64
		if err := rows.Scan(&ms); err != nil {
			return last, nil, fmt.Errorf("scan slot: %w", err)
		}
		used = append(used, fromMillis(ms, r.loc))
	}
	if err := rows.Err(); err != nil {
		return last, nil, fmt.Errorf("rows iteration: %w", err)
	}
	return last, used, nil
}

func (r *SQLRepository) scanItem(row rowScanner) (domain.Item, error) {
	var (
		item                             domain.Item
		mediaType, hashtags, state       string
		scheduledAt                      sql.NullInt64
		claimUntil, createdAt, updatedAt int64
	)
	err := row.Scan(
		&item.ID, &item.SourceRef, &item.SourceName, &item.Title, &mediaType,
		&item.CaptionText, &hashtags, &state, &scheduledAt, &item.AttemptCount,
		&item.PublishedRef, &item.LastError, &item.ClaimToken, &claimUntil,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return domain.Item{}, err
	}

	item.MediaType = domain.MediaType(mediaType)
	item.Hashtags = splitTags(hashtags)
	item.State = domain.State(state)
	if scheduledAt.Valid {
		item.ScheduledAt = fromMillis(scheduledAt.Int64, r.loc)
	}
	if claimUntil > 0 {
		item.ClaimUntil = fromMillis(claimUntil, r.loc)
	}
	item.CreatedAt = fromMillis(createdAt, r.loc)
	item.UpdatedAt = fromMillis(updatedAt, r.loc)
	return item, nil
}

func (r *SQLRepository) execOne(ctx context.Context, query string, args []any, op string) (bool, error) {
	res, err := exec(ctx, r.db, query, args...)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: rows affected: %w", op, err)
	}
	return n == 1, nil
}

func (r *SQLRepository) execClaimed(ctx context.Context, query string, args []any, op string) error {
	ok, err := r.execOne(ctx, query, args, op)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s: %w", op, domain.ErrClaimLost)
	}
	return nil
}

func millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64, loc *time.Location) time.Time {
	return time.UnixMilli(ms).In(loc)
}

func joinTags(tags []string) string {
	return strings.Join(tags, " ")
}

func splitTags(value string) []string {
	fields := strings.Fields(value)
	if len(fields) == 0 {
		return nil
	}
	return fields
}

const maxErrorLen = 1000

func truncate(msg string) string {
	return domain.TruncateRunes(msg, maxErrorLen)
}
