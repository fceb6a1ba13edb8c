package normalize

import (
	"testing"

	"github.com/phelukas/yahoo-equity-crawler/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_PricePolicy(t *testing.T) {
	tests := []struct {
		name    string
		raw     models.RawQuote
		price   string
		source  PriceSource
		missing bool
	}{
		{
			name:   "intraday present",
			raw:    models.RawQuote{"symbol": "AAPL", "regularMarketPrice": map[string]any{"raw": 189.5, "fmt": "189.50"}, "regularMarketPreviousClose": 180.0},
			price:  "189.5",
			source: PriceIntraday,
		},
		{
			name:   "intraday absent",
			raw:    models.RawQuote{"symbol": "AAPL", "regularMarketPreviousClose": 180.25},
			price:  "180.25",
			source: PricePreviousClose,
		},
		{
			name:   "intraday unparsable",
			raw:    models.RawQuote{"symbol": "AAPL", "regularMarketPrice": "N/A", "regularMarketPreviousClose": "1,180.00"},
			price:  "1180",
			source: PricePreviousClose,
		},
		{
			name:   "last price",
			raw:    models.RawQuote{"ticker": "PETR4.SA", "lastPrice": "38.10"},
			price:  "38.1",
			source: PriceLast,
		},
		{
			name:    "both absent",
			raw:     models.RawQuote{"symbol": "ZZZ"},
			source:  PriceMissing,
			missing: true,
		},
	}

	n := New("US")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, src, ok := n.Normalize(tt.raw)
			require.True(t, ok)
			assert.Equal(t, tt.source, src)
			if tt.missing {
				assert.False(t, rec.Price.Valid)
				return
			}
			require.True(t, rec.Price.Valid)
			assert.Equal(t, tt.price, rec.Price.Decimal.String())
		})
	}
}

func TestNormalize_FieldFallbacks(t *testing.T) {
	raw := models.RawQuote{
		"ticker":             "GGAL",
		"longName":           "Grupo Financiero Galicia",
		"fullExchangeName":   "NasdaqGS",
		"financialCurrency":  "ARS",
		"marketCap":          map[string]any{"raw": 5.1e9, "fmt": "5.1B"},
		"regularMarketPrice": 42.0,
	}

	rec, _, ok := New("AR").Normalize(raw)
	require.True(t, ok)
	assert.Equal(t, "GGAL", rec.Symbol)
	assert.Equal(t, "Grupo Financiero Galicia", rec.Name)
	assert.Equal(t, "NasdaqGS", rec.Exchange)
	assert.Equal(t, "ARS", rec.Currency)
	assert.Equal(t, "AR", rec.Region)
	require.True(t, rec.MarketCap.Valid)
	assert.Equal(t, "5100000000", rec.MarketCap.Decimal.String())
}

func TestNormalize_CompanyNameWins(t *testing.T) {
	rec, _, ok := New("US").Normalize(models.RawQuote{"symbol": "X", "companyName": "Company", "shortName": "Short"})
	require.True(t, ok)
	assert.Equal(t, "Company", rec.Name)
}

func TestNormalize_MissingMarketCapKeepsRecord(t *testing.T) {
	raws := []models.RawQuote{
		{"symbol": "SPY", "shortName": "SPDR S&P 500", "exchange": "PCX", "currency": "USD", "regularMarketPrice": 500.1},
		{"symbol": "OTCX", "marketCap": "-", "regularMarketPrice": 0.01},
	}

	recs, stats := New("US").NormalizeAll(raws)
	require.Len(t, recs, 2)
	assert.Equal(t, 2, stats.Output)
	assert.Equal(t, 0, stats.Dropped)

	assert.False(t, recs[0].MarketCap.Valid)
	assert.Equal(t, "SPDR S&P 500", recs[0].Name)
	assert.Equal(t, "PCX", recs[0].Exchange)
	assert.Equal(t, "USD", recs[0].Currency)
	assert.True(t, recs[0].Price.Valid)
	assert.False(t, recs[1].MarketCap.Valid)
}

func TestNormalizeAll_DropsAndDedups(t *testing.T) {
	raws := []models.RawQuote{
		{"symbol": "A", "regularMarketPrice": 1.0},
		{"shortName": "no symbol"},
		{"symbol": ""},
		{"symbol": "A", "regularMarketPrice": 2.0},
		{"symbol": "B", "regularMarketPreviousClose": 3.0},
		{"symbol": "C"},
	}

	recs, stats := New("US").NormalizeAll(raws)
	require.Len(t, recs, 3)
	assert.Equal(t, []string{"A", "B", "C"}, []string{recs[0].Symbol, recs[1].Symbol, recs[2].Symbol})
	assert.Equal(t, "1", recs[0].Price.Decimal.String(), "first occurrence wins")

	assert.Equal(t, models.NormalizeStats{
		Input:          6,
		Output:         3,
		Dropped:        2,
		Duplicates:     1,
		PriceFallbacks: 1,
		MissingPrice:   1,
	}, stats)
}

func TestNormalizeAll_Idempotent(t *testing.T) {
	raws := []models.RawQuote{
		{"symbol": "AAPL", "shortName": "Apple Inc.", "exchange": "NMS", "currency": "USD", "marketCap": "3.05T", "regularMarketPrice": "2,089.00"},
		{"ticker": "VALE3.SA", "regularMarketPreviousClose": 61.2},
		{"symbol": "EMPTY"},
	}
	n := New("BR")

	first, _ := n.NormalizeAll(raws)
	again := make([]models.RawQuote, len(first))
	for i, rec := range first {
		again[i] = rec.ToRaw()
	}
	second, stats := n.NormalizeAll(again)

	require.Len(t, second, len(first))
	for i := range first {
		assert.True(t, first[i].Equal(second[i]), "record %d changed: %+v -> %+v", i, first[i], second[i])
	}
	assert.Equal(t, 0, stats.PriceFallbacks)
}
