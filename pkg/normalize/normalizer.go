// Package normalize maps heterogeneous quote objects onto QuoteRecord.
package normalize

import (
	"github.com/phelukas/yahoo-equity-crawler/pkg/logger"
	"github.com/phelukas/yahoo-equity-crawler/pkg/models"
	"github.com/phelukas/yahoo-equity-crawler/pkg/money"
	"github.com/shopspring/decimal"
)

var (
	symbolKeys    = []string{"symbol", "ticker"}
	nameKeys      = []string{"companyName", "shortName", "longName", "name", "displayName"}
	exchangeKeys  = []string{"exchange", "fullExchangeName", "exchangeName"}
	currencyKeys  = []string{"currency", "financialCurrency"}
	marketCapKeys = []string{"marketCap", "market_cap", "intradayMarketCap"}
	lastPriceKeys = []string{"price", "lastPrice"}
)

const (
	intradayPriceKey = "regularMarketPrice"
	previousCloseKey = "regularMarketPreviousClose"
)

// PriceSource tells which field a record's price came from.
type PriceSource string

const (
	PriceIntraday      PriceSource = "intraday"
	PricePreviousClose PriceSource = "previous_close"
	PriceLast          PriceSource = "last"
	PriceMissing       PriceSource = "missing"
)

type Normalizer struct {
	Region string
}

func New(region string) *Normalizer {
	return &Normalizer{Region: region}
}

// Normalize maps one raw object. ok is false only when no symbol can be read.
func (n *Normalizer) Normalize(raw models.RawQuote) (rec models.QuoteRecord, src PriceSource, ok bool) {
	symbol := firstText(raw, symbolKeys)
	if symbol == "" {
		return models.QuoteRecord{}, PriceMissing, false
	}

	rec = models.QuoteRecord{
		Symbol:    symbol,
		Name:      firstText(raw, nameKeys),
		Exchange:  firstText(raw, exchangeKeys),
		Currency:  firstText(raw, currencyKeys),
		MarketCap: firstValue(raw, marketCapKeys),
		Region:    n.Region,
	}
	rec.Price, src = price(raw)
	return rec, src, true
}

// NormalizeAll maps a sequence, keeping first-seen order and dropping later
// duplicates of a symbol.
func (n *Normalizer) NormalizeAll(raws []models.RawQuote) ([]models.QuoteRecord, models.NormalizeStats) {
	log := logger.Log
	stats := models.NormalizeStats{Input: len(raws)}

	out := make([]models.QuoteRecord, 0, len(raws))
	seen := make(map[string]struct{}, len(raws))
	for _, raw := range raws {
		rec, src, ok := n.Normalize(raw)
		if !ok {
			stats.Dropped++
			continue
		}
		if _, dup := seen[rec.Symbol]; dup {
			stats.Duplicates++
			continue
		}
		seen[rec.Symbol] = struct{}{}

		switch src {
		case PricePreviousClose:
			stats.PriceFallbacks++
			log.Info().Str("symbol", rec.Symbol).Msg("price fallback to regularMarketPreviousClose")
		case PriceMissing:
			stats.MissingPrice++
			log.Debug().Str("symbol", rec.Symbol).Msg("price not derivable, left empty")
		}
		out = append(out, rec)
	}

	stats.Output = len(out)
	return out, stats
}

func price(raw models.RawQuote) (decimal.NullDecimal, PriceSource) {
	if p := money.Parse(raw[intradayPriceKey]); p.Valid {
		return p, PriceIntraday
	}
	if p := money.Parse(raw[previousCloseKey]); p.Valid {
		return p, PricePreviousClose
	}
	if p := firstValue(raw, lastPriceKeys); p.Valid {
		return p, PriceLast
	}
	return money.Empty, PriceMissing
}

func firstText(raw models.RawQuote, keys []string) string {
	for _, k := range keys {
		if s := money.Text(raw[k]); s != "" {
			return s
		}
	}
	return ""
}

func firstValue(raw models.RawQuote, keys []string) decimal.NullDecimal {
	for _, k := range keys {
		if v := money.Parse(raw[k]); v.Valid {
			return v
		}
	}
	return money.Empty
}
