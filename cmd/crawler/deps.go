package main

import (
	"context"
	"fmt"

	"github.com/phelukas/yahoo-equity-crawler/internal/artifacts"
	"github.com/phelukas/yahoo-equity-crawler/internal/browser"
	"github.com/phelukas/yahoo-equity-crawler/internal/cache"
	"github.com/phelukas/yahoo-equity-crawler/internal/config"
	"github.com/phelukas/yahoo-equity-crawler/internal/pipeline"
	"github.com/phelukas/yahoo-equity-crawler/internal/sink"
	"github.com/phelukas/yahoo-equity-crawler/pkg/logger"
)

// deps holds everything a run needs plus the cleanup of what was opened.
type deps struct {
	runner  *pipeline.Runner
	history sink.RunHistory
	closers []func()
}

func (d *deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

func pipelineOptions(cfg *config.Config) pipeline.Options {
	return pipeline.Options{
		Enrich:          cfg.Crawl.Enrich,
		SeedMarker:      cfg.Browser.SeedMarker,
		PageSize:        cfg.Screener.PageSize,
		MaxPages:        cfg.Screener.MaxPages,
		MaxItems:        cfg.Screener.MaxItems,
		ScreenerTimeout: cfg.Screener.Timeout,
		Containers:      cfg.Fallback.Containers,
		MaxDepth:        cfg.Fallback.MaxDepth,
		QuoteBatchSize:  cfg.Quotes.BatchSize,
		QuoteRPS:        cfg.Quotes.RPS,
		QuoteBurst:      cfg.Quotes.Burst,
		QuoteTimeout:    cfg.Quotes.Timeout,
	}
}

func buildDeps(ctx context.Context, cfg *config.Config) (*deps, error) {
	log := logger.Log
	d := &deps{}

	if err := browser.Init(ctx, browser.Options{
		Headless:      cfg.Browser.Headless,
		ProfileDir:    cfg.Browser.ProfileDir,
		MaxTabs:       cfg.Browser.MaxTabs,
		PageLoadDelay: cfg.Browser.PageLoadDelay,
		SeedTimeout:   cfg.Browser.SeedTimeout,
		TabTimeout:    cfg.Browser.TabTimeout,
		SeedMarker:    cfg.Browser.SeedMarker,
	}); err != nil {
		return nil, fmt.Errorf("init browser: %w", err)
	}
	d.closers = append(d.closers, browser.Close)

	opts := pipelineOptions(cfg)
	if cfg.Redis.URL != "" {
		qc, err := cache.NewQuoteCache(cfg.Redis.URL, cfg.Quotes.CacheTTL)
		if err != nil {
			log.Warn().Err(err).Msg("quote cache unavailable, enriching without it")
		} else {
			opts.QuoteCache = qc
			d.closers = append(d.closers, func() { _ = qc.Close() })
		}
	}

	p, err := pipeline.New(browser.Get(), artifacts.New(cfg.Artifacts.Dir), opts)
	if err != nil {
		d.Close()
		return nil, err
	}

	out, err := buildSinks(cfg, d)
	if err != nil {
		d.Close()
		return nil, err
	}

	if cfg.HasSink("mongo") {
		repo, err := sink.NewMongoRunRepo(cfg.Mongo.URL, cfg.Mongo.DB)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		d.history = repo
		d.closers = append(d.closers, func() { _ = repo.Close() })
	} else {
		d.history = sink.NewMemoryRunRepo()
	}

	d.runner = &pipeline.Runner{Pipeline: p, Sink: out, History: d.history}
	log.Info().Strs("sinks", out.Names()).Msg("pipeline ready")
	return d, nil
}

// buildSinks opens the record sinks. Mongo keeps run history and is wired
// as the runner's History instead.
func buildSinks(cfg *config.Config, d *deps) (*sink.Multi, error) {
	out := sink.NewMulti()

	if cfg.HasSink("csv") {
		out.Add(sink.NewCSVWriter(cfg.OutputPath, cfg.Output.Mode))
	}
	if cfg.HasSink("nats") {
		pub, err := sink.NewNATSPublisher(cfg.NATS.URL)
		if err != nil {
			return nil, err
		}
		out.Add(pub)
		d.closers = append(d.closers, pub.Close)
	}
	if cfg.HasSink("meili") {
		idx, err := sink.NewMeiliIndexer(cfg.Meili.URL, cfg.Meili.APIKey)
		if err != nil {
			return nil, fmt.Errorf("connect meilisearch: %w", err)
		}
		out.Add(idx)
	}
	return out, nil
}
