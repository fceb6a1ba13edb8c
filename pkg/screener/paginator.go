package screener

import (
	"context"
	"errors"
	"time"

	"github.com/phelukas/yahoo-equity-crawler/internal/cache"
	"github.com/phelukas/yahoo-equity-crawler/pkg/logger"
	"github.com/phelukas/yahoo-equity-crawler/pkg/models"
	"github.com/phelukas/yahoo-equity-crawler/pkg/money"
)

const (
	DefaultPageSize = 25
	DefaultMaxPages = 2000
	DefaultMaxItems = 100000
)

const (
	StopEmptyPage    = "empty_page"
	StopShortPage    = "short_page"
	StopNoNewSymbols = "no_new_symbols"
	StopTotalReached = "total_reached"
	StopMaxPages     = "max_pages"
	StopMaxItems     = "max_items"
)

// PaginationCursor tracks the position of one pagination run.
type PaginationCursor struct {
	Position  int
	PageSize  int
	Seen      *cache.SymbolSet
	Exhausted bool
}

func NewCursor(pageSize int) *PaginationCursor {
	return &PaginationCursor{
		PageSize: pageSize,
		Seen:     cache.NewSymbolSet(4096),
	}
}

// Advance moves the cursor past the page just read.
func (c *PaginationCursor) Advance() {
	c.Position += c.PageSize
}

// Paginator walks the screener endpoint page by page.
type Paginator struct {
	client   *Client
	MaxPages int
	MaxItems int
}

func NewPaginator(client *Client) *Paginator {
	return &Paginator{
		client:   client,
		MaxPages: DefaultMaxPages,
		MaxItems: DefaultMaxItems,
	}
}

// Run fetches every page for seed. Items come back deduplicated by symbol in
// first-seen order. Any failed request aborts the run and discards what was
// collected; the returned error is a *ScreenerAPIError.
func (p *Paginator) Run(ctx context.Context, seed *models.SeedDescriptor, pageSize int) ([]models.RawQuote, models.ScreenerStats, error) {
	start := time.Now()
	log := logger.Log.With().Str("component", "paginator").Str("region", p.client.session.Region).Logger()

	if pageSize <= 0 {
		pageSize = seed.PageSize
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	maxPages := p.MaxPages
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	maxItems := p.MaxItems
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}

	var criteria map[string]any
	if seed.Convention == models.PagingOffsetSize {
		var err error
		criteria, err = PrepareCriteria(seed.RawCriteria, p.client.session.Region)
		if err != nil {
			return nil, models.ScreenerStats{}, &ScreenerAPIError{URL: seed.EndpointURL, Err: err}
		}
	}

	cursor := NewCursor(pageSize)
	var (
		items []models.RawQuote
		stats models.ScreenerStats
	)

	for !cursor.Exhausted {
		if err := ctx.Err(); err != nil {
			return nil, stats, &ScreenerAPIError{URL: seed.EndpointURL, Err: err}
		}

		pg, err := p.client.fetchPage(ctx, pageRequest{
			seed:     seed,
			criteria: criteria,
			position: cursor.Position,
			size:     cursor.PageSize,
		})
		if err != nil {
			var apiErr *ScreenerAPIError
			if errors.As(err, &apiErr) {
				log.Warn().Err(err).Int("status", apiErr.Status).Int("position", cursor.Position).Msg("screener page failed")
			}
			stats.Elapsed = time.Since(start)
			return nil, stats, err
		}

		stats.Pages++
		stats.TotalItems += len(pg.items)
		if pg.total > 0 {
			stats.TotalExpected = pg.total
		}

		added := 0
		for _, item := range pg.items {
			sym := symbolOf(item)
			if sym == "" {
				continue
			}
			if !cursor.Seen.Add(sym) {
				stats.Duplicates++
				continue
			}
			items = append(items, item)
			added++
		}

		log.Debug().
			Int("page", stats.Pages).
			Int("position", cursor.Position).
			Int("items", len(pg.items)).
			Int("new", added).
			Msg("screener page")

		switch {
		case len(pg.items) == 0:
			stats.StopReason = StopEmptyPage
		case len(pg.items) < cursor.PageSize:
			stats.StopReason = StopShortPage
		case added == 0:
			stats.StopReason = StopNoNewSymbols
		case pg.total > 0 && cursor.Position+cursor.PageSize >= pg.total:
			stats.StopReason = StopTotalReached
		case stats.Pages >= maxPages:
			stats.StopReason = StopMaxPages
		case len(items) >= maxItems:
			stats.StopReason = StopMaxItems
		}
		if stats.StopReason != "" {
			cursor.Exhausted = true
			break
		}
		cursor.Advance()
	}

	if len(items) > maxItems {
		items = items[:maxItems]
	}
	stats.UniqueSymbols = len(items)
	stats.Elapsed = time.Since(start)

	log.Info().
		Int("records", len(items)).
		Int("pages", stats.Pages).
		Int("duplicates", stats.Duplicates).
		Str("stop", stats.StopReason).
		Dur("elapsed", stats.Elapsed).
		Msg("pagination finished")

	return items, stats, nil
}

func symbolOf(item models.RawQuote) string {
	for _, key := range []string{"symbol", "ticker"} {
		if s := money.Text(item[key]); s != "" {
			return s
		}
	}
	return ""
}
