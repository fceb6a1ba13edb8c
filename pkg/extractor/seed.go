package extractor

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/phelukas/yahoo-equity-crawler/pkg/models"
)

const (
	DefaultSeedMarker = "predefined/saved"
	defaultSeedHost   = "https://query1.finance.yahoo.com"
)

type seedEnvelope struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

type seedPayload struct {
	Finance struct {
		Result []struct {
			RawCriteria json.RawMessage `json:"rawCriteria"`
		} `json:"result"`
	} `json:"finance"`
}

// ExtractSeed finds the SvelteKit fetch descriptor of the screener request
// and turns it into a SeedDescriptor. The paging convention is decided here.
func ExtractSeed(html, marker string) (*models.SeedDescriptor, error) {
	if marker == "" {
		marker = DefaultSeedMarker
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, &SeedNotFoundError{Reason: "parse html: " + err.Error()}
	}

	var dataURL, body string
	found := false
	doc.Find("script[data-sveltekit-fetched]").EachWithBreak(func(i int, s *goquery.Selection) bool {
		u, ok := s.Attr("data-url")
		if !ok || !strings.Contains(u, marker) {
			return true
		}
		dataURL = strings.ReplaceAll(u, "&amp;", "&")
		body = strings.TrimSpace(s.Text())
		found = true
		return false
	})
	if !found {
		return nil, &SeedNotFoundError{Reason: "no fetch descriptor for " + marker}
	}
	if strings.TrimSpace(dataURL) == "" {
		return nil, &SeedNotFoundError{Reason: "fetch descriptor has empty url"}
	}

	u, err := url.Parse(dataURL)
	if err != nil {
		return nil, &SeedNotFoundError{Reason: "bad descriptor url: " + err.Error()}
	}
	if !u.IsAbs() {
		base, _ := url.Parse(defaultSeedHost)
		u = base.ResolveReference(u)
	}

	criteria, err := seedCriteria(body)
	if err != nil {
		return nil, err
	}

	params := u.Query()
	seed := &models.SeedDescriptor{
		BaseParams: params,
		SourceURL:  u.String(),
	}

	if criteria != nil {
		endpoint := *u
		endpoint.RawQuery = ""
		if idx := strings.Index(endpoint.Path, "/predefined/"); idx >= 0 {
			endpoint.Path = endpoint.Path[:idx]
		}
		seed.EndpointURL = endpoint.String()
		seed.Method = http.MethodPost
		seed.Convention = models.PagingOffsetSize
		seed.RawCriteria = criteria
		seed.PageSize = criteriaSize(criteria)
		if seed.PageSize == 0 {
			seed.PageSize = atoi(params.Get("count"))
		}
		return seed, nil
	}

	if params.Has("count") || params.Has("start") {
		endpoint := *u
		endpoint.RawQuery = ""
		seed.EndpointURL = endpoint.String()
		seed.Method = http.MethodGet
		seed.Convention = models.PagingStartCount
		seed.PageSize = atoi(params.Get("count"))
		return seed, nil
	}

	return nil, &SeedNotFoundError{Reason: "descriptor has neither criteria nor paging position"}
}

// seedCriteria returns the rawCriteria object, nil when the body carries none.
func seedCriteria(body string) (json.RawMessage, error) {
	if body == "" {
		return nil, nil
	}

	var env seedEnvelope
	if err := json.Unmarshal([]byte(body), &env); err != nil {
		return nil, &SeedNotFoundError{Reason: "malformed descriptor body: " + err.Error()}
	}

	inner, err := unquoteJSON(env.Body)
	if err != nil {
		return nil, &SeedNotFoundError{Reason: "malformed descriptor payload: " + err.Error()}
	}
	if len(inner) == 0 {
		return nil, nil
	}

	var payload seedPayload
	if err := json.Unmarshal(inner, &payload); err != nil {
		return nil, &SeedNotFoundError{Reason: "malformed screener payload: " + err.Error()}
	}
	if len(payload.Finance.Result) == 0 {
		return nil, nil
	}

	raw, err := unquoteJSON(payload.Finance.Result[0].RawCriteria)
	if err != nil {
		return nil, &SeedNotFoundError{Reason: "malformed rawCriteria: " + err.Error()}
	}
	if len(raw) == 0 {
		return nil, nil
	}

	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, &SeedNotFoundError{Reason: "rawCriteria is not an object"}
	}
	return raw, nil
}

// unquoteJSON accepts a JSON value that is either an object or a string
// holding one, and returns the object bytes.
func unquoteJSON(raw json.RawMessage) (json.RawMessage, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] != '"' {
		return raw, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	return json.RawMessage(s), nil
}

func criteriaSize(raw json.RawMessage) int {
	var c struct {
		Size json.Number `json:"size"`
	}
	if err := json.Unmarshal(raw, &c); err != nil {
		return 0
	}
	return atoi(c.Size.String())
}

func atoi(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
