package commands

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MemeFarm/internal/printer"
)

// execute runs the root command against a fresh config file and captures
// printer output. Commands share package-level flag state, so these tests
// do not run in parallel.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	buf := new(bytes.Buffer)
	prev := out
	out = &printer.Printer{Out: buf, Err: buf}
	t.Cleanup(func() { out = prev })

	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "memefarm.yaml")
	body := fmt.Sprintf(`logging:
  level: error
database:
  driver: sqlite
  dsn: %s
pipeline:
  timezone: Asia/Kolkata
  windows: ["09:00-10:00", "19:00-21:00"]
  spacing: 2h
`, filepath.Join(dir, "memefarm.db"))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestRootCommand_ShowsHelpWhenNoSubcommand(t *testing.T) {
	output, err := execute(t)
	assert.NoError(t, err)
	assert.Contains(t, output, "Usage:")
	assert.Contains(t, output, "post-due")
	assert.Contains(t, output, "twitter-scrape")
}

func TestTwitterScrapeWithoutTokenFails(t *testing.T) {
	t.Setenv("TWITTER_BEARER_TOKEN", "")
	output, err := execute(t, "twitter-scrape", "--config", writeConfig(t), "--query", "memes")
	require.Error(t, err)
	assert.Contains(t, output, "scrape-twitter run failed")
	assert.Contains(t, output, "TWITTER_BEARER_TOKEN")
}

func TestRootCommand_RejectsUnknownFlags(t *testing.T) {
	_, err := execute(t, "--unknown-flag", "value")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown flag")
}

func TestInitDBSeedAndStatus(t *testing.T) {
	cfgPath := writeConfig(t)

	output, err := execute(t, "init-db", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, output, "database ready")

	output, err = execute(t, "seed-hashtags", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, output, "seeded 4 hashtag pools")

	output, err = execute(t, "status", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, output, "DISCOVERED")
	assert.Contains(t, output, "No queued items.")
	assert.Contains(t, output, "trending")
}

func TestScheduleWithNothingEnriched(t *testing.T) {
	cfgPath := writeConfig(t)

	output, err := execute(t, "schedule", "--config", cfgPath, "--per-posts", "5")
	require.NoError(t, err)
	assert.Contains(t, output, "schedule: processed=0")
}

func TestGenerateWithoutCredentialsFails(t *testing.T) {
	t.Setenv("LLM_API_KEY", "")
	cfgPath := writeConfig(t)

	output, err := execute(t, "generate", "--config", cfgPath)
	require.Error(t, err)
	assert.Contains(t, output, "generate run failed")
	assert.Contains(t, output, "LLM_API_KEY")
}

func TestInvalidConfigIsReported(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	body := fmt.Sprintf("database:\n  dsn: %s\npipeline:\n  windows: [\"21:00-20:00\"]\n", filepath.Join(dir, "x.db"))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	output, err := execute(t, "status", "--config", path)
	require.Error(t, err)
	assert.Contains(t, output, "Cannot start memefarm")
	assert.Contains(t, output, "pipeline.windows")
}
