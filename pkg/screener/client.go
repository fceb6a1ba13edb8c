package screener

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"

	"github.com/go-resty/resty/v2"
	"github.com/phelukas/yahoo-equity-crawler/pkg/models"
	"github.com/phelukas/yahoo-equity-crawler/pkg/yahoo"
)

const bodySnippetLen = 1000

// Client issues single screener page requests for one seed.
type Client struct {
	http    *resty.Client
	session *yahoo.Session
}

func NewClient(session *yahoo.Session) *Client {
	return &Client{http: session.NewClient(), session: session}
}

// page is one decoded screener response.
type page struct {
	items []models.RawQuote
	total int
}

type pageRequest struct {
	seed     *models.SeedDescriptor
	criteria map[string]any
	position int
	size     int
}

func (c *Client) fetchPage(ctx context.Context, pr pageRequest) (*page, error) {
	req := c.http.R().SetContext(ctx)

	var params url.Values
	switch pr.seed.Convention {
	case models.PagingOffsetSize:
		params = postParams(pr.seed.BaseParams)
		req.SetHeader("Content-Type", "application/json").
			SetBody(withPaging(pr.criteria, pr.position, pr.size))
	case models.PagingStartCount:
		params = cloneValues(pr.seed.BaseParams)
		params.Set("start", strconv.Itoa(pr.position))
		params.Set("count", strconv.Itoa(pr.size))
	default:
		return nil, &ScreenerAPIError{URL: pr.seed.EndpointURL, Err: fmt.Errorf("unknown paging convention %q", pr.seed.Convention)}
	}
	params.Set("region", yahoo.NormalizeRegion(c.session.Region))
	if c.session.Crumb != "" {
		params.Set("crumb", c.session.Crumb)
	}
	req.SetQueryParamsFromValues(params)

	method := pr.seed.Method
	if method == "" {
		method = http.MethodGet
		if pr.seed.Convention == models.PagingOffsetSize {
			method = http.MethodPost
		}
	}

	resp, err := req.Execute(method, pr.seed.EndpointURL)
	if err != nil {
		return nil, &ScreenerAPIError{URL: pr.seed.EndpointURL, Params: flatten(params), Err: err}
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, &ScreenerAPIError{
			Status: resp.StatusCode(),
			URL:    pr.seed.EndpointURL,
			Params: flatten(params),
			Body:   snippet(resp.Body()),
		}
	}

	p, err := decodePage(resp.Body())
	if err != nil {
		return nil, &ScreenerAPIError{
			Status: resp.StatusCode(),
			URL:    pr.seed.EndpointURL,
			Params: flatten(params),
			Body:   snippet(resp.Body()),
			Err:    err,
		}
	}
	return p, nil
}

type screenerResponse struct {
	Finance struct {
		Result []json.RawMessage `json:"result"`
		Error  any               `json:"error"`
	} `json:"finance"`
}

type screenerResult struct {
	Total   json.Number     `json:"total"`
	Records json.RawMessage `json:"records"`
	Quotes  json.RawMessage `json:"quotes"`
}

var errPayloadShape = errors.New("screener payload has no records")

func decodePage(body []byte) (*page, error) {
	var resp screenerResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode screener payload: %w", err)
	}
	if len(resp.Finance.Result) == 0 {
		return nil, errPayloadShape
	}

	var res screenerResult
	if err := json.Unmarshal(resp.Finance.Result[0], &res); err != nil {
		return nil, fmt.Errorf("decode screener result: %w", err)
	}

	raw := res.Records
	if isEmptyJSON(raw) {
		raw = res.Quotes
	}
	if isEmptyJSON(raw) {
		return nil, errPayloadShape
	}

	items, err := decodeItems(raw)
	if err != nil {
		return nil, err
	}

	total, _ := strconv.Atoi(res.Total.String())
	return &page{items: items, total: total}, nil
}

// decodeItems accepts a list of objects or an object keyed by symbol.
func decodeItems(raw json.RawMessage) ([]models.RawQuote, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode screener items: %w", err)
	}

	var list []any
	switch val := v.(type) {
	case []any:
		list = val
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			list = append(list, val[k])
		}
	default:
		return nil, errPayloadShape
	}

	items := make([]models.RawQuote, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			items = append(items, m)
		}
	}
	return items, nil
}

func isEmptyJSON(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vals := range v {
		out[k] = append([]string(nil), vals...)
	}
	return out
}

func flatten(v url.Values) map[string]string {
	out := make(map[string]string, len(v))
	for k := range v {
		out[k] = v.Get(k)
	}
	return out
}

func snippet(b []byte) string {
	if len(b) > bodySnippetLen {
		b = b[:bodySnippetLen]
	}
	return string(b)
}
