package quotes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/phelukas/yahoo-equity-crawler/pkg/logger"
	"github.com/phelukas/yahoo-equity-crawler/pkg/models"
	"github.com/phelukas/yahoo-equity-crawler/pkg/money"
	"github.com/phelukas/yahoo-equity-crawler/pkg/yahoo"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

const (
	DefaultBatchSize = 50
	bodySnippetLen   = 1000
)

// Fields is what enrichment can contribute to a record.
type Fields struct {
	Currency  string              `json:"currency,omitempty"`
	MarketCap decimal.NullDecimal `json:"market_cap"`
}

func (f Fields) empty() bool {
	return f.Currency == "" && !f.MarketCap.Valid
}

// merge fills f's empty fields from older.
func (f Fields) merge(older Fields) Fields {
	if f.Currency == "" {
		f.Currency = older.Currency
	}
	if !f.MarketCap.Valid {
		f.MarketCap = older.MarketCap
	}
	return f
}

// Cache stores quote fields between runs. Implementations must treat misses
// and backend errors the same way: ok=false.
type Cache interface {
	Get(ctx context.Context, region, symbol string) (Fields, bool)
	Set(ctx context.Context, region, symbol string, f Fields) error
}

type Option func(*Enricher)

func WithEndpoint(url string) Option {
	return func(e *Enricher) { e.endpoint = url }
}

func WithBatchSize(n int) Option {
	return func(e *Enricher) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// WithRate paces batches at rps requests per second.
func WithRate(rps float64, burst int) Option {
	return func(e *Enricher) {
		if rps <= 0 {
			e.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		if burst < 1 {
			burst = 1
		}
		e.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func WithCache(c Cache) Option {
	return func(e *Enricher) { e.cache = c }
}

// WithFailureHook is called for every failed batch, e.g. to persist an artifact.
func WithFailureHook(fn func(*EnrichmentError)) Option {
	return func(e *Enricher) { e.onFailure = fn }
}

// Enricher fills missing currency and market cap from the quote endpoint.
type Enricher struct {
	http      *resty.Client
	session   *yahoo.Session
	endpoint  string
	batchSize int
	limiter   *rate.Limiter
	cache     Cache
	onFailure func(*EnrichmentError)
}

func NewEnricher(session *yahoo.Session, opts ...Option) *Enricher {
	e := &Enricher{
		http:      session.NewClient(),
		session:   session,
		endpoint:  yahoo.QuoteURL,
		batchSize: DefaultBatchSize,
		limiter:   rate.NewLimiter(rate.Limit(2), 1),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enrich returns a copy of records with empty currency and market cap filled
// where the endpoint knows them. Existing values are never overwritten and
// failures only show up in the stats.
func (e *Enricher) Enrich(ctx context.Context, records []models.QuoteRecord) ([]models.QuoteRecord, models.EnrichStats) {
	start := time.Now()
	region := yahoo.NormalizeRegion(e.session.Region)
	log := logger.Log.With().Str("component", "enricher").Str("region", region).Logger()

	out := make([]models.QuoteRecord, len(records))
	copy(out, records)

	var stats models.EnrichStats
	symbols, needs := pendingSymbols(out)
	stats.TotalSymbols = len(symbols)
	if len(symbols) == 0 {
		return out, stats
	}

	found := make(map[string]Fields, len(symbols))
	var remote []string
	for _, sym := range symbols {
		if e.cache != nil {
			if f, ok := e.cache.Get(ctx, region, sym); ok {
				found[sym] = f
				if needs[sym].coveredBy(f) {
					stats.CacheHits++
					continue
				}
			}
		}
		remote = append(remote, sym)
	}

	for i := 0; i < len(remote); i += e.batchSize {
		batch := remote[i:min(i+e.batchSize, len(remote))]

		if err := e.limiter.Wait(ctx); err != nil {
			e.fail(&EnrichmentError{Symbols: batch, URL: e.endpoint, Err: err}, &stats)
			break
		}
		stats.Batches++

		fields, err := e.fetch(ctx, batch)
		if err != nil {
			e.fail(err, &stats)
			continue
		}
		for sym, f := range fields {
			f = f.merge(found[sym])
			found[sym] = f
			if e.cache != nil {
				if err := e.cache.Set(ctx, region, sym, f); err != nil {
					log.Debug().Err(err).Str("symbol", sym).Msg("quote cache set failed")
				}
			}
		}
	}

	for i := range out {
		f, ok := found[out[i].Symbol]
		if !ok {
			continue
		}
		if out[i].Currency == "" && f.Currency != "" {
			out[i].Currency = f.Currency
			stats.EnrichedCurrency++
		}
		if !out[i].MarketCap.Valid && f.MarketCap.Valid {
			out[i].MarketCap = f.MarketCap
			stats.EnrichedMarketCap++
		}
	}

	stats.Elapsed = time.Since(start)
	log.Info().
		Int("symbols", stats.TotalSymbols).
		Int("batches", stats.Batches).
		Int("cache_hits", stats.CacheHits).
		Int("currency", stats.EnrichedCurrency).
		Int("market_cap", stats.EnrichedMarketCap).
		Int("failures", stats.Failures).
		Dur("elapsed", stats.Elapsed).
		Msg("enrichment finished")

	return out, stats
}

func (e *Enricher) fail(err *EnrichmentError, stats *models.EnrichStats) {
	stats.Failures++
	logger.Log.Warn().Err(err).Int("status", err.Status).Int("symbols", len(err.Symbols)).Msg("quote batch failed")
	if e.onFailure != nil {
		e.onFailure(err)
	}
}

func (e *Enricher) fetch(ctx context.Context, symbols []string) (map[string]Fields, *EnrichmentError) {
	params := map[string]string{"symbols": strings.Join(symbols, ",")}
	if e.session.Crumb != "" {
		params["crumb"] = e.session.Crumb
	}

	resp, err := e.http.R().SetContext(ctx).SetQueryParams(params).Get(e.endpoint)
	if err != nil {
		return nil, &EnrichmentError{Symbols: symbols, URL: e.endpoint, Err: err}
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, &EnrichmentError{
			Symbols: symbols,
			Status:  resp.StatusCode(),
			URL:     e.endpoint,
			Body:    snippet(resp.Body()),
		}
	}

	fields, err := decodeQuotes(resp.Body())
	if err != nil {
		return nil, &EnrichmentError{
			Symbols: symbols,
			Status:  resp.StatusCode(),
			URL:     e.endpoint,
			Body:    snippet(resp.Body()),
			Err:     err,
		}
	}
	return fields, nil
}

type quoteResponse struct {
	QuoteResponse struct {
		Result []map[string]any `json:"result"`
	} `json:"quoteResponse"`
}

func decodeQuotes(body []byte) (map[string]Fields, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var resp quoteResponse
	if err := dec.Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode quote payload: %w", err)
	}

	out := make(map[string]Fields, len(resp.QuoteResponse.Result))
	for _, item := range resp.QuoteResponse.Result {
		sym := money.Text(item["symbol"])
		if sym == "" {
			continue
		}
		f := Fields{
			Currency:  money.Text(item["currency"]),
			MarketCap: money.Parse(item["marketCap"]),
		}
		if f.Currency == "" {
			f.Currency = money.Text(item["financialCurrency"])
		}
		if !f.empty() {
			out[sym] = f
		}
	}
	return out, nil
}

// need is what the records of one symbol are still missing.
type need struct {
	currency  bool
	marketCap bool
}

func (n need) coveredBy(f Fields) bool {
	return (!n.currency || f.Currency != "") && (!n.marketCap || f.MarketCap.Valid)
}

// pendingSymbols lists symbols needing enrichment in first-seen order.
func pendingSymbols(records []models.QuoteRecord) ([]string, map[string]need) {
	needs := make(map[string]need, len(records))
	var out []string
	for _, r := range records {
		if r.Symbol == "" || !r.NeedsEnrichment() {
			continue
		}
		n, seen := needs[r.Symbol]
		if !seen {
			out = append(out, r.Symbol)
		}
		n.currency = n.currency || r.Currency == ""
		n.marketCap = n.marketCap || !r.MarketCap.Valid
		needs[r.Symbol] = n
	}
	return out, needs
}

func snippet(b []byte) string {
	if len(b) > bodySnippetLen {
		b = b[:bodySnippetLen]
	}
	return string(b)
}
