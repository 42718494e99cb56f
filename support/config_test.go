package support

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Run("defaults without a file", func(t *testing.T) {
		cfg, err := LoadConfig("")
		require.NoError(t, err)

		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("reads yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "counter.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
listen: ":8080"
journal: dynamodb
dynamodb:
  table: events
fetch:
  url: http://localhost:3000
  delay: 2s
limit:
  rate: 10
  burst: 5
`), 0o600))

		cfg, err := LoadConfig(path)
		require.NoError(t, err)

		assert.Equal(t, ":8080", cfg.Listen)
		assert.Equal(t, DynamoJournal, cfg.Journal)
		assert.Equal(t, "events", cfg.Dynamo.Table)
		assert.Equal(t, "http://localhost:3000", cfg.Fetch.URL)
		assert.Equal(t, 2*time.Second, cfg.Fetch.Delay)
		assert.Equal(t, 10.0, cfg.Limit.Rate)
		assert.Equal(t, DefaultStream, cfg.Nats.Stream)
	})

	t.Run("environment overrides the file", func(t *testing.T) {
		t.Setenv("COUNTER_LISTEN", ":7070")
		t.Setenv("COUNTER_JOURNAL", "jetstream")
		t.Setenv("NATS_URL", "nats://nats:4222")
		t.Setenv("COUNTER_FETCH_DELAY", "50ms")
		t.Setenv("COUNTER_TRACING", "console")

		cfg, err := LoadConfig("")
		require.NoError(t, err)

		assert.Equal(t, ":7070", cfg.Listen)
		assert.Equal(t, JetStreamJournal, cfg.Journal)
		assert.Equal(t, "nats://nats:4222", cfg.Nats.URL)
		assert.Equal(t, 50*time.Millisecond, cfg.Fetch.Delay)
		assert.Equal(t, ConsoleTracing, cfg.Tracing.Exporter)
	})

	t.Run("rejects invalid settings", func(t *testing.T) {
		t.Setenv("COUNTER_JOURNAL", "dynamodb")
		_, err := LoadConfig("")
		assert.Error(t, err)

		t.Setenv("COUNTER_JOURNAL", "postgres")
		_, err = LoadConfig("")
		assert.Error(t, err)
	})

	t.Run("rejects an invalid delay", func(t *testing.T) {
		t.Setenv("COUNTER_FETCH_DELAY", "soon")
		_, err := LoadConfig("")
		assert.Error(t, err)
	})

	t.Run("reports a missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})
}
