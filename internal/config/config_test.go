package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"US"}, cfg.Crawl.Regions)
	assert.True(t, cfg.Crawl.Enrich)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 25*time.Second, cfg.Browser.SeedTimeout)
	assert.Equal(t, 2000, cfg.Screener.MaxPages)
	assert.Equal(t, 50, cfg.Quotes.BatchSize)
	assert.Equal(t, 16, cfg.Fallback.MaxDepth)
	assert.Empty(t, cfg.Fallback.Containers)
	assert.Equal(t, "full", cfg.Output.Mode)
	assert.Equal(t, []string{"csv"}, cfg.Output.Sinks)
	assert.Equal(t, "output/equities_BR.csv", cfg.OutputPath("BR"))
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CRAWLER_CRAWL_REGIONS", "BR, AR")
	t.Setenv("CRAWLER_SCREENER_PAGE_SIZE", "250")
	t.Setenv("CRAWLER_QUOTES_RPS", "0.5")
	t.Setenv("CRAWLER_OUTPUT_SINKS", "csv,nats")
	t.Setenv("CRAWLER_BROWSER_SEED_TIMEOUT", "5s")
	t.Setenv("NATS_URL", "nats://legacy:4222")
	t.Setenv("MEILI_API_KEY", "masterKey")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"BR", "AR"}, cfg.Crawl.Regions)
	assert.Equal(t, 250, cfg.Screener.PageSize)
	assert.InDelta(t, 0.5, cfg.Quotes.RPS, 1e-9)
	assert.True(t, cfg.HasSink("nats"))
	assert.False(t, cfg.HasSink("mongo"))
	assert.Equal(t, 5*time.Second, cfg.Browser.SeedTimeout)
	assert.Equal(t, "nats://legacy:4222", cfg.NATS.URL)
	assert.Equal(t, "masterKey", cfg.Meili.APIKey)
}

func TestLoad_PrefixedWinsOverLegacy(t *testing.T) {
	t.Setenv("NATS_URL", "nats://legacy:4222")
	t.Setenv("CRAWLER_NATS_URL", "nats://prefixed:4222")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "nats://prefixed:4222", cfg.NATS.URL)
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crawler.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
crawl:
  regions: [MX, CL]
  parallel: 2
fallback:
  containers: [sveltekit, next_data]
output:
  mode: minimal
schedule:
  interval: 30m
`), 0o644))
	t.Setenv("CRAWLER_CONFIG", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"MX", "CL"}, cfg.Crawl.Regions)
	assert.Equal(t, 2, cfg.Crawl.Parallel)
	assert.Equal(t, []string{"sveltekit", "next_data"}, cfg.Fallback.Containers)
	assert.Equal(t, "minimal", cfg.Output.Mode)
	assert.Equal(t, 30*time.Minute, cfg.Schedule.Interval)
}

func TestValidate(t *testing.T) {
	t.Setenv("CRAWLER_OUTPUT_MODE", "fancy")
	_, err := Load()
	assert.ErrorContains(t, err, "output.mode")

	t.Setenv("CRAWLER_OUTPUT_MODE", "full")
	t.Setenv("CRAWLER_OUTPUT_SINKS", "csv,kafka")
	_, err = Load()
	assert.ErrorContains(t, err, "kafka")
}
