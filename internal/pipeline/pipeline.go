// Package pipeline runs one region extraction end to end: render, seed,
// paginate or fall back to embedded state, normalize and enrich.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/phelukas/yahoo-equity-crawler/internal/artifacts"
	"github.com/phelukas/yahoo-equity-crawler/internal/browser"
	"github.com/phelukas/yahoo-equity-crawler/pkg/extractor"
	"github.com/phelukas/yahoo-equity-crawler/pkg/logger"
	"github.com/phelukas/yahoo-equity-crawler/pkg/models"
	"github.com/phelukas/yahoo-equity-crawler/pkg/normalize"
	"github.com/phelukas/yahoo-equity-crawler/pkg/quotes"
	"github.com/phelukas/yahoo-equity-crawler/pkg/screener"
	"github.com/phelukas/yahoo-equity-crawler/pkg/statelocator"
	"github.com/phelukas/yahoo-equity-crawler/pkg/status"
	"github.com/phelukas/yahoo-equity-crawler/pkg/yahoo"
)

// Renderer produces the rendered screener page for a region.
type Renderer interface {
	Render(ctx context.Context, region string) (*browser.Page, error)
	RuntimeState(ctx context.Context, region string) ([]models.EmbeddedStateCandidate, error)
}

type Options struct {
	Enrich     bool
	SeedMarker string

	PageSize        int
	MaxPages        int
	MaxItems        int
	ScreenerTimeout time.Duration

	// Containers is the fallback container priority, empty for the default order.
	Containers []string
	MaxDepth   int

	CrumbURL       string
	QuoteURL       string
	QuoteBatchSize int
	QuoteRPS       float64
	QuoteBurst     int
	QuoteTimeout   time.Duration
	QuoteCache     quotes.Cache
}

type Pipeline struct {
	renderer  Renderer
	artifacts *artifacts.Store
	fallback  *extractor.Fallback
	opts      Options
}

func New(renderer Renderer, store *artifacts.Store, opts Options) (*Pipeline, error) {
	registry, err := extractor.NewOrderedRegistry(opts.Containers)
	if err != nil {
		return nil, fmt.Errorf("fallback containers: %w", err)
	}
	locator := statelocator.New()
	if opts.MaxDepth > 0 {
		locator.MaxDepth = opts.MaxDepth
	}
	return &Pipeline{
		renderer:  renderer,
		artifacts: store,
		fallback:  extractor.NewFallback(registry, locator),
		opts:      opts,
	}, nil
}

// run is the mutable state of one Run call.
type run struct {
	machine *status.Machine
	result  *Result
	session *yahoo.Session
	page    *browser.Page
	crumbed bool
	saved   bool
	log     zerolog.Logger
}

func (r *run) to(next status.Run) {
	from := r.machine.Current()
	if err := r.machine.To(next); err != nil {
		// transitions are hard-coded below; reaching this is a bug
		r.log.Error().Err(err).Msg("state transition rejected")
		return
	}
	r.log.Info().Str("from", string(from)).Str("to", string(next)).Msg("state transition")
}

// Run extracts one region. A fatal failure returns the partial Result with
// state failed together with a *RunError.
func (p *Pipeline) Run(ctx context.Context, region string) (*Result, error) {
	region = yahoo.NormalizeRegion(region)
	runID := uuid.NewString()

	r := &run{
		machine: status.NewMachine(),
		result:  &Result{RunID: runID, Region: region, StartedAt: time.Now()},
		log:     logger.Log.With().Str("run_id", runID).Str("region", region).Logger(),
	}
	defer func() {
		r.result.State = r.machine.Current()
		r.result.Trace = r.machine.Trace()
		r.result.FinishedAt = time.Now()
	}()

	r.log.Info().Str("state", string(status.RunSeeding)).Msg("run started")

	page, err := p.renderer.Render(ctx, region)
	if err != nil {
		r.to(status.RunFailed)
		return r.result, &RunError{Kind: KindRender, Err: err}
	}
	r.page = page
	if page.Block.Blocked {
		r.log.Warn().Str("reason", page.Block.Reason).Bool("consent", page.Block.Consent).Msg("page looks blocked")
		r.result.warn("page blocked: " + page.Block.Reason)
	}

	r.session = &yahoo.Session{
		Region:    region,
		UserAgent: page.UserAgent,
		Cookies:   page.Cookies,
		Timeout:   p.opts.ScreenerTimeout,
	}

	raws, err := p.viaScreener(ctx, r)
	if err == nil && len(raws) == 0 {
		r.log.Warn().Msg("screener pagination returned no rows, falling back to html")
		r.result.warn("screener returned no rows")
		err = errEmptyScreener
	}
	if err == nil {
		r.to(status.RunDone)
		r.result.Source = models.SourceScreenerAPI
	} else {
		r.to(status.RunFallingBack)
		var fbErr *RunError
		raws, fbErr = p.viaFallback(ctx, r)
		if fbErr != nil {
			r.to(status.RunFailed)
			r.log.Error().Err(fbErr.Err).Str("artifact", fbErr.ArtifactPath).Msg("run failed")
			return r.result, fbErr
		}
		r.result.Source = models.SourceHTMLFallback
	}

	r.to(status.RunNormalizing)
	records, nstats := normalize.New(region).NormalizeAll(raws)
	r.result.Normalize = nstats
	r.log.Info().
		Int("input", nstats.Input).
		Int("output", nstats.Output).
		Int("duplicates", nstats.Duplicates).
		Int("price_fallbacks", nstats.PriceFallbacks).
		Msg("records normalized")

	if p.opts.Enrich && len(records) > 0 {
		r.to(status.RunEnriching)
		records = p.enrich(ctx, r, records)
	}

	r.result.Records = records
	r.to(status.RunComplete)
	r.log.Info().
		Str("source", string(r.result.Source)).
		Int("records", len(records)).
		Dur("elapsed", time.Since(r.result.StartedAt)).
		Msg("run complete")
	return r.result, nil
}

// viaScreener returns the raw quotes of the API path. Any error means the
// caller must fall back; it has already been logged and persisted.
func (p *Pipeline) viaScreener(ctx context.Context, r *run) ([]models.RawQuote, error) {
	seed, err := extractor.ExtractSeed(r.page.HTML, p.opts.SeedMarker)
	if err != nil {
		r.log.Warn().Err(err).Bool("seed_ready", r.page.SeedReady).Msg("seed not found")
		r.result.warn(err.Error())
		p.saveHTML(r)
		return nil, err
	}

	r.to(status.RunPaginating)
	r.log.Info().
		Str("endpoint", seed.EndpointURL).
		Str("source_url", seed.SourceURL).
		Str("convention", string(seed.Convention)).
		Int("page_size", seed.PageSize).
		Msg("seed found")

	p.ensureCrumb(ctx, r)

	pg := screener.NewPaginator(screener.NewClient(r.session))
	if p.opts.MaxPages > 0 {
		pg.MaxPages = p.opts.MaxPages
	}
	if p.opts.MaxItems > 0 {
		pg.MaxItems = p.opts.MaxItems
	}

	raws, stats, err := pg.Run(ctx, seed, p.opts.PageSize)
	r.result.Screener = &stats
	if err != nil {
		r.result.warn(err.Error())
		var apiErr *screener.ScreenerAPIError
		if errors.As(err, &apiErr) && p.artifacts != nil {
			if path, werr := p.artifacts.SaveScreenerFailure(apiErr); werr != nil {
				r.log.Warn().Err(werr).Msg("save screener artifact failed")
			} else {
				r.log.Info().Str("artifact", path).Msg("screener failure saved")
			}
		}
		return nil, err
	}
	return raws, nil
}

// viaFallback scrapes the rendered HTML first, then runtime evaluated state.
func (p *Pipeline) viaFallback(ctx context.Context, r *run) ([]models.RawQuote, *RunError) {
	res, err := p.fallback.Extract(r.page.HTML)
	if err == nil {
		p.logFallback(r, res, len(r.page.HTML))
		return res.Quotes, nil
	}
	r.log.Warn().Err(err).Msg("html fallback found no quote list, trying runtime state")

	cands := r.page.Runtime
	if len(cands) == 0 {
		var rerr error
		cands, rerr = p.renderer.RuntimeState(ctx, r.result.Region)
		if rerr != nil {
			r.log.Warn().Err(rerr).Msg("runtime state unavailable")
		}
	}
	if len(cands) > 0 {
		res, rtErr := p.fallback.ExtractFromStates(cands)
		if rtErr == nil {
			p.logFallback(r, res, 0)
			return res.Quotes, nil
		}
		var rtParse *extractor.StateParseError
		if errors.As(rtErr, &rtParse) {
			err = mergeParseErrors(err, rtParse)
		}
	}

	runErr := &RunError{Kind: KindStateParse, Err: err}
	var parseErr *extractor.StateParseError
	if errors.As(err, &parseErr) {
		runErr.Payload = parseErr
		if p.artifacts != nil {
			if path, werr := p.artifacts.SaveParseFailure(parseErr); werr != nil {
				r.log.Warn().Err(werr).Msg("save parse artifact failed")
			} else {
				runErr.ArtifactPath = path
			}
		}
	}
	p.saveHTML(r)
	return nil, runErr
}

func (p *Pipeline) logFallback(r *run, res *extractor.FallbackResult, htmlLen int) {
	ev := r.log.Info().
		Str("container", res.Container).
		Str("path", res.Path).
		Int("quotes", len(res.Quotes))
	if htmlLen > 0 {
		ev = ev.Int("html_bytes", htmlLen)
	}
	ev.Msg("embedded state parsed")
}

func (p *Pipeline) enrich(ctx context.Context, r *run, records []models.QuoteRecord) []models.QuoteRecord {
	p.ensureCrumb(ctx, r)

	session := *r.session
	if p.opts.QuoteTimeout > 0 {
		session.Timeout = p.opts.QuoteTimeout
	}

	opts := []quotes.Option{
		quotes.WithBatchSize(p.opts.QuoteBatchSize),
		quotes.WithFailureHook(func(err *quotes.EnrichmentError) {
			r.result.warn(err.Error())
			if p.artifacts == nil {
				return
			}
			if _, werr := p.artifacts.SaveQuoteFailure(err); werr != nil {
				r.log.Warn().Err(werr).Msg("save quote artifact failed")
			}
		}),
	}
	if p.opts.QuoteURL != "" {
		opts = append(opts, quotes.WithEndpoint(p.opts.QuoteURL))
	}
	if p.opts.QuoteRPS != 0 {
		opts = append(opts, quotes.WithRate(p.opts.QuoteRPS, p.opts.QuoteBurst))
	}
	if p.opts.QuoteCache != nil {
		opts = append(opts, quotes.WithCache(p.opts.QuoteCache))
	}

	out, stats := quotes.NewEnricher(&session, opts...).Enrich(ctx, records)
	r.result.Enrichment = &stats
	return out
}

// ensureCrumb fetches the crumb once per run. A miss is logged and the
// endpoints are called without it.
func (p *Pipeline) ensureCrumb(ctx context.Context, r *run) {
	if r.crumbed {
		return
	}
	r.crumbed = true
	crumb, err := yahoo.FetchCrumb(ctx, r.session.NewClient(), p.opts.CrumbURL, r.session.Region)
	if err != nil {
		r.log.Warn().Err(err).Msg("crumb unavailable")
		return
	}
	r.session.Crumb = crumb
}

func (p *Pipeline) saveHTML(r *run) {
	if p.artifacts == nil || r.page == nil || r.saved {
		return
	}
	r.saved = true
	path, err := p.artifacts.SaveHTML(r.page.HTML)
	if err != nil {
		r.log.Warn().Err(err).Msg("save page artifact failed")
		return
	}
	r.log.Info().Str("artifact", path).Msg("page saved")
}

func mergeParseErrors(htmlErr error, rt *extractor.StateParseError) error {
	var base *extractor.StateParseError
	if !errors.As(htmlErr, &base) {
		return rt
	}
	return &extractor.StateParseError{
		Tried:   append(append([]string(nil), base.Tried...), rt.Tried...),
		Reason:  base.Reason + "; " + rt.Reason,
		Scripts: base.Scripts,
	}
}
