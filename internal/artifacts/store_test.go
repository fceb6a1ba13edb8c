package artifacts

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/phelukas/yahoo-equity-crawler/pkg/extractor"
	"github.com/phelukas/yahoo-equity-crawler/pkg/quotes"
	"github.com/phelukas/yahoo-equity-crawler/pkg/screener"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedStore(t *testing.T, at time.Time) *Store {
	s := New(t.TempDir())
	s.now = func() time.Time { return at }
	return s
}

var stamp = time.Date(2024, 3, 9, 14, 5, 7, 0, time.FixedZone("BRT", -3*3600))

func TestSaveHTML(t *testing.T) {
	s := fixedStore(t, stamp)

	path, err := s.SaveHTML("<html></html>")
	require.NoError(t, err)
	assert.Equal(t, "last_page_20240309_170507.html", filepath.Base(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "<html></html>", string(data))
}

func TestSaveScreenerFailure(t *testing.T) {
	s := fixedStore(t, stamp)

	path, err := s.SaveScreenerFailure(&screener.ScreenerAPIError{
		Status: 429,
		URL:    "https://example.test/screener",
		Params: map[string]string{"region": "BR"},
		Body:   "Too Many Requests",
	})
	require.NoError(t, err)
	assert.Equal(t, "screener_http_429_20240309_170507.txt", filepath.Base(path))

	var got map[string]any
	data, _ := os.ReadFile(path)
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "Too Many Requests", got["body_snippet"])
	assert.EqualValues(t, 429, got["status"])

	path, err = s.SaveScreenerFailure(&screener.ScreenerAPIError{Err: errors.New("dial tcp: refused")})
	require.NoError(t, err)
	assert.Equal(t, "screener_http_000_20240309_170507.txt", filepath.Base(path))

	path, err = s.SaveScreenerFailure(&screener.ScreenerAPIError{Status: 200, Err: errors.New("bad json")})
	require.NoError(t, err)
	assert.Equal(t, "screener_json_20240309_170507.txt", filepath.Base(path))
}

func TestSaveQuoteFailure(t *testing.T) {
	s := fixedStore(t, stamp)

	path, err := s.SaveQuoteFailure(&quotes.EnrichmentError{Symbols: []string{"A", "B"}, Status: 401})
	require.NoError(t, err)
	assert.Equal(t, "quote_http_401_20240309_170507.txt", filepath.Base(path))

	var got map[string]any
	data, _ := os.ReadFile(path)
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, map[string]any{"symbols": "A,B"}, got["params"])
}

func TestSaveParseFailure(t *testing.T) {
	s := fixedStore(t, stamp)

	path, err := s.SaveParseFailure(&extractor.StateParseError{
		Tried:  []string{"next_data", "sveltekit"},
		Reason: "no quote list",
		Scripts: []extractor.ScriptInfo{
			{ID: "__NEXT_DATA__", Length: 10, Snippet: "{}"},
			{Type: "module", Length: 0},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "parse_fail_state_20240309_170507.json", filepath.Base(path))

	var got struct {
		Info struct {
			Tried        []string `json:"tried"`
			TotalScripts int      `json:"total_scripts"`
		} `json:"info"`
		Snippets []extractor.ScriptInfo `json:"snippets"`
	}
	data, _ := os.ReadFile(path)
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, []string{"next_data", "sveltekit"}, got.Info.Tried)
	assert.Equal(t, 2, got.Info.TotalScripts)
	require.Len(t, got.Snippets, 1)
	assert.Equal(t, "__NEXT_DATA__", got.Snippets[0].ID)
}

func TestLatestHTML(t *testing.T) {
	s := fixedStore(t, stamp)

	_, err := s.LatestHTML()
	assert.ErrorIs(t, err, ErrNoArtifacts)

	_, err = s.SaveHTML("old")
	require.NoError(t, err)
	s.now = func() time.Time { return stamp.Add(time.Hour) }
	newest, err := s.SaveHTML("new")
	require.NoError(t, err)

	got, err := s.LatestHTML()
	require.NoError(t, err)
	assert.Equal(t, newest, got)
}
