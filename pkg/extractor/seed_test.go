package extractor

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/phelukas/yahoo-equity-crawler/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const savedURL = "https://query1.finance.yahoo.com/v1/finance/screener/predefined/saved?count=25&amp;formatted=true&amp;scrIds=MOST_ACTIVES&amp;lang=en-US&amp;region=US"

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

// sveltePage wraps body in a fetched-descriptor script tag.
func sveltePage(dataURL, body string) string {
	return `<html><head><script type="application/json" data-sveltekit-fetched data-url="` + dataURL + `">` +
		body + `</script></head><body></body></html>`
}

func criteriaBody(t *testing.T, criteria map[string]any) string {
	t.Helper()
	payload := map[string]any{
		"finance": map[string]any{
			"result": []any{map[string]any{"rawCriteria": mustJSON(t, criteria)}},
		},
	}
	return mustJSON(t, map[string]any{"status": 200, "statusText": "OK", "body": mustJSON(t, payload)})
}

func TestExtractSeed_OffsetSize(t *testing.T) {
	criteria := map[string]any{
		"offset":    0,
		"size":      25,
		"sortField": "intradaymarketcap",
		"sortType":  "DESC",
		"quoteType": "EQUITY",
	}
	html := sveltePage(savedURL, criteriaBody(t, criteria))

	seed, err := ExtractSeed(html, "")
	require.NoError(t, err)

	assert.Equal(t, models.PagingOffsetSize, seed.Convention)
	assert.Equal(t, http.MethodPost, seed.Method)
	assert.Equal(t, "https://query1.finance.yahoo.com/v1/finance/screener", seed.EndpointURL)
	assert.Equal(t, 25, seed.PageSize)
	assert.Equal(t, "MOST_ACTIVES", seed.BaseParams.Get("scrIds"))
	assert.Equal(t, "en-US", seed.BaseParams.Get("lang"))
	assert.True(t, seed.HasCriteria())

	var got map[string]any
	require.NoError(t, json.Unmarshal(seed.RawCriteria, &got))
	assert.Equal(t, "intradaymarketcap", got["sortField"])
}

func TestExtractSeed_BodyAsObject(t *testing.T) {
	body := `{"status":200,"body":{"finance":{"result":[{"rawCriteria":{"size":100,"quoteType":"EQUITY"}}]}}}`

	seed, err := ExtractSeed(sveltePage(savedURL, body), "")
	require.NoError(t, err)
	assert.Equal(t, models.PagingOffsetSize, seed.Convention)
	assert.Equal(t, 100, seed.PageSize)
}

func TestExtractSeed_StartCount(t *testing.T) {
	dataURL := "https://query2.finance.yahoo.com/v1/finance/screener/predefined/saved?start=0&amp;count=50&amp;scrIds=day_gainers"
	body := `{"status":200,"body":"{\"finance\":{\"result\":[{\"quotes\":[]}]}}"}`

	seed, err := ExtractSeed(sveltePage(dataURL, body), "")
	require.NoError(t, err)

	assert.Equal(t, models.PagingStartCount, seed.Convention)
	assert.Equal(t, http.MethodGet, seed.Method)
	assert.Equal(t, "https://query2.finance.yahoo.com/v1/finance/screener/predefined/saved", seed.EndpointURL)
	assert.Equal(t, 50, seed.PageSize)
	assert.False(t, seed.HasCriteria())
	assert.Equal(t, "https://query2.finance.yahoo.com/v1/finance/screener/predefined/saved?start=0&count=50&scrIds=day_gainers", seed.SourceURL)
}

func TestExtractSeed_RelativeURL(t *testing.T) {
	seed, err := ExtractSeed(sveltePage("/v1/finance/screener/predefined/saved?count=25", ""), "")
	require.NoError(t, err)
	assert.Equal(t, "https://query1.finance.yahoo.com/v1/finance/screener/predefined/saved", seed.EndpointURL)
}

func TestExtractSeed_NotFound(t *testing.T) {
	tests := []struct {
		name   string
		html   string
		marker string
	}{
		{name: "no scripts", html: `<html><body><p>hi</p></body></html>`},
		{name: "descriptor for other fetch", html: sveltePage("https://query1.finance.yahoo.com/v7/finance/quote?symbols=A", `{}`)},
		{name: "custom marker mismatch", html: sveltePage(savedURL, `{}`), marker: "screener/custom"},
		{name: "malformed body", html: sveltePage(savedURL, `{"status":200,"body":`)},
		{name: "malformed inner body", html: sveltePage(savedURL, `{"status":200,"body":"{not json"}`)},
		{name: "criteria not an object", html: sveltePage(savedURL, `{"body":{"finance":{"result":[{"rawCriteria":"[1,2]"}]}}}`)},
		{name: "no criteria and no position", html: sveltePage("https://query1.finance.yahoo.com/v1/finance/screener/predefined/saved?scrIds=x", `{"status":200}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seed, err := ExtractSeed(tt.html, tt.marker)
			assert.Nil(t, seed)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrSeedNotFound), "got %v", err)

			var snf *SeedNotFoundError
			assert.True(t, errors.As(err, &snf))
			assert.NotEmpty(t, snf.Reason)
		})
	}
}
