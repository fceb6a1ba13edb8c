package models

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// QuoteRecord is one normalized equity listing.
type QuoteRecord struct {
	Symbol    string
	Name      string
	Exchange  string
	MarketCap decimal.NullDecimal
	Price     decimal.NullDecimal
	Currency  string
	Region    string
}

// RawQuote is an untyped quote object as found in screener pages or embedded state.
type RawQuote = map[string]any

// NeedsEnrichment reports whether currency or market cap is still missing.
func (q QuoteRecord) NeedsEnrichment() bool {
	return q.Currency == "" || !q.MarketCap.Valid
}

// ToRaw renders the record back into the raw key shape the normalizer accepts.
func (q QuoteRecord) ToRaw() RawQuote {
	raw := RawQuote{"symbol": q.Symbol}
	if q.Name != "" {
		raw["name"] = q.Name
	}
	if q.Exchange != "" {
		raw["exchange"] = q.Exchange
	}
	if q.Currency != "" {
		raw["currency"] = q.Currency
	}
	if q.Price.Valid {
		raw["regularMarketPrice"] = q.Price.Decimal.String()
	}
	if q.MarketCap.Valid {
		raw["marketCap"] = q.MarketCap.Decimal.String()
	}
	return raw
}

type quoteJSON struct {
	Symbol    string       `json:"symbol"`
	Name      string       `json:"name"`
	Exchange  string       `json:"exchange,omitempty"`
	MarketCap *json.Number `json:"market_cap"`
	Price     *json.Number `json:"price"`
	Currency  string       `json:"currency,omitempty"`
	Region    string       `json:"region"`
}

func (q QuoteRecord) MarshalJSON() ([]byte, error) {
	out := quoteJSON{
		Symbol:   q.Symbol,
		Name:     q.Name,
		Exchange: q.Exchange,
		Currency: q.Currency,
		Region:   q.Region,
	}
	if q.MarketCap.Valid {
		v := json.Number(q.MarketCap.Decimal.String())
		out.MarketCap = &v
	}
	if q.Price.Valid {
		v := json.Number(q.Price.Decimal.String())
		out.Price = &v
	}
	return json.Marshal(out)
}

// Equal compares records by value; numerically equal decimals match
// regardless of scale.
func (q QuoteRecord) Equal(o QuoteRecord) bool {
	return q.Symbol == o.Symbol &&
		q.Name == o.Name &&
		q.Exchange == o.Exchange &&
		q.Currency == o.Currency &&
		q.Region == o.Region &&
		nullEqual(q.Price, o.Price) &&
		nullEqual(q.MarketCap, o.MarketCap)
}

func nullEqual(a, b decimal.NullDecimal) bool {
	if a.Valid != b.Valid {
		return false
	}
	return !a.Valid || a.Decimal.Equal(b.Decimal)
}
