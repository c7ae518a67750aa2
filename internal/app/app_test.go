package app

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MemeFarm/internal/config"
	"MemeFarm/internal/domain"
	"MemeFarm/internal/logging"
	"MemeFarm/internal/usecase"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	cfg.Database.Driver = "sqlite"
	cfg.Database.DSN = filepath.Join(t.TempDir(), "memefarm.db")
	cfg.LLM.APIKey = ""
	cfg.Instagram.AccessToken = ""
	cfg.Telegram.BotToken = ""
	cfg.Redis.Addr = ""
	cfg.Twitter.BearerToken = ""
	return cfg
}

func newTestApp(t *testing.T, cfg config.Config) *Application {
	t.Helper()
	a, err := New(context.Background(), cfg, logging.NewWithWriter(io.Discard, "error"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestSeedHashtagsAndStatus(t *testing.T) {
	t.Parallel()
	a := newTestApp(t, testConfig(t))
	ctx := context.Background()

	n, err := a.SeedHashtags(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(domain.DefaultHashtagPools), n)

	// Seeding twice replaces rather than duplicates.
	_, err = a.SeedHashtags(ctx)
	require.NoError(t, err)

	status, err := a.Status(ctx)
	require.NoError(t, err)
	assert.Len(t, status.Pools, len(domain.DefaultHashtagPools))
	assert.Empty(t, status.Upcoming)
	for _, s := range domain.States {
		assert.Zero(t, status.Counts[s], s)
	}
}

func TestStagesWithoutCredentialsFail(t *testing.T) {
	t.Parallel()
	a := newTestApp(t, testConfig(t))
	ctx := context.Background()

	_, err := a.Generate(ctx, 0)
	assert.ErrorContains(t, err, "enricher is not configured")

	_, err = a.PostDue(ctx, 0)
	assert.ErrorContains(t, err, "publisher is not configured")

	report, err := a.Schedule(ctx, 5)
	require.NoError(t, err)
	assert.Zero(t, report.Processed)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	cfg.Pipeline.Windows = []string{"25:00-26:00"}

	_, err := New(context.Background(), cfg, logging.NewWithWriter(io.Discard, "error"))
	assert.ErrorContains(t, err, "invalid configuration")
}

func TestNewUsesRedisLockWhenConfigured(t *testing.T) {
	t.Parallel()
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.Redis.Addr = mr.Addr()

	a := newTestApp(t, cfg)
	_, err := a.Schedule(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, mr.Exists("memefarm:stage:schedule"), "lock is released after the run")
}

func TestNewFailsOnUnreachableRedis(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	cfg.Redis.Addr = "127.0.0.1:1"

	_, err := New(context.Background(), cfg, logging.NewWithWriter(io.Discard, "error"))
	assert.Error(t, err)
}

func TestRunStopsOnCancel(t *testing.T) {
	t.Parallel()
	a := newTestApp(t, testConfig(t))

	ctx, cancel := context.WithCancel(context.Background())
	passes := make(chan int, 4)
	onReport := func(reports []usecase.Report, _ error) {
		passes <- len(reports)
	}

	// No subreddits keeps the scrape stage off the network.
	params := a.RunParams()
	params.Subreddits = nil

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.Run(ctx, time.Hour, params, onReport)
	}()

	select {
	case n := <-passes:
		assert.Equal(t, 4, n, "one report per stage")
	case <-time.After(10 * time.Second):
		t.Fatal("first pass did not run")
	}
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("run did not stop")
	}

	assert.Error(t, a.Run(context.Background(), 0, a.RunParams(), nil))
}

func TestInitDB(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	require.NoError(t, InitDB(context.Background(), cfg))
	require.NoError(t, InitDB(context.Background(), cfg), "migration is idempotent")
}

func TestTwitterStageFollowsToken(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	a := newTestApp(t, testConfig(t))
	assert.Empty(t, a.RunParams().TwitterQueries)
	_, err := a.ScrapeTwitter(ctx, []string{"memes"}, 10)
	assert.ErrorContains(t, err, "content source is not configured")

	cfg := testConfig(t)
	cfg.Twitter.BearerToken = "tw-token"
	cfg.Twitter.Queries = []string{"desi memes has:images"}
	withToken := newTestApp(t, cfg)
	assert.Equal(t, []string{"desi memes has:images"}, withToken.RunParams().TwitterQueries)
}
