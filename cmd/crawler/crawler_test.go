package main

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phelukas/yahoo-equity-crawler/internal/config"
	"github.com/phelukas/yahoo-equity-crawler/internal/pipeline"
	"github.com/phelukas/yahoo-equity-crawler/internal/sink"
	"github.com/phelukas/yahoo-equity-crawler/pkg/models"
	"github.com/phelukas/yahoo-equity-crawler/pkg/status"
)

func TestCrawlFlags(t *testing.T) {
	v := config.NewViper()
	cmd := newCrawlCmd(v)
	require.NoError(t, cmd.Flags().Parse([]string{
		"--region", "BR", "--region", "MX",
		"--strict", "--no-enrich",
		"--out", "out/{REGION}.csv",
		"--page-size", "250",
		"--headless=false",
	}))
	bindCrawlFlags(cmd, v)

	cfg, err := config.FromViper(v)
	require.NoError(t, err)
	assert.Equal(t, []string{"BR", "MX"}, cfg.Crawl.Regions)
	assert.Equal(t, "minimal", cfg.Output.Mode)
	assert.False(t, cfg.Crawl.Enrich)
	assert.Equal(t, "out/BR.csv", cfg.OutputPath("BR"))
	assert.Equal(t, 250, cfg.Screener.PageSize)
	assert.False(t, cfg.Browser.Headless)
}

func TestCrawlFlags_Defaults(t *testing.T) {
	v := config.NewViper()
	cmd := newCrawlCmd(v)
	require.NoError(t, cmd.Flags().Parse(nil))
	bindCrawlFlags(cmd, v)

	cfg, err := config.FromViper(v)
	require.NoError(t, err)
	assert.Equal(t, "full", cfg.Output.Mode)
	assert.True(t, cfg.Crawl.Enrich)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, []string{"csv"}, cfg.Output.Sinks)
}

func TestRegionOutcome_Failed(t *testing.T) {
	csvErr := errors.Join(&sink.Error{Sink: "csv", Err: errors.New("disk full")})
	natsErr := errors.Join(&sink.Error{Sink: "nats", Err: errors.New("timeout")})

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"ok", nil, false},
		{"run error", &pipeline.RunError{Kind: pipeline.KindStateParse, Err: errors.New("x")}, true},
		{"csv sink", csvErr, true},
		{"other sink", natsErr, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, regionOutcome{Region: "US", Err: tt.err}.Failed())
		})
	}
}

func TestPrintSummary(t *testing.T) {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	outcomes := []regionOutcome{
		{
			Region: "US",
			Result: &pipeline.Result{
				Region:     "US",
				State:      status.RunComplete,
				Source:     models.SourceScreenerAPI,
				Records:    make([]models.QuoteRecord, 1048),
				Screener:   &models.ScreenerStats{Pages: 3},
				Enrichment: &models.EnrichStats{TotalSymbols: 10, EnrichedCurrency: 7},
				StartedAt:  start,
				FinishedAt: start.Add(1500 * time.Millisecond),
			},
		},
		{
			Region: "BR",
			Err:    &pipeline.RunError{Kind: pipeline.KindRender, Err: errors.New("chrome crashed")},
		},
	}

	var buf bytes.Buffer
	printSummary(&buf, outcomes)
	out := buf.String()

	assert.Contains(t, out, "REGION")
	assert.Contains(t, out, "screener_api")
	assert.Contains(t, out, "1048")
	assert.Contains(t, out, "7/10")
	assert.Contains(t, out, "1.5s")
	assert.Contains(t, out, "chrome crashed")
	assert.True(t, anyFailed(outcomes))
}
