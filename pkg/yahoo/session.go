package yahoo

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/140.0.0.0 Safari/537.36"

// Session carries what the rendered page leaves behind: cookies, the
// browser's user agent and the crumb token.
type Session struct {
	Region    string
	UserAgent string
	Cookies   []*http.Cookie
	Crumb     string
	Timeout   time.Duration
}

// NewClient builds a resty client with the session's headers and cookies.
// Retries are disabled; callers decide what a failed request means.
func (s *Session) NewClient() *resty.Client {
	ua := s.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	client := resty.New()
	client.SetTimeout(timeout)
	client.SetRetryCount(0)
	client.SetHeaders(map[string]string{
		"User-Agent":      ua,
		"Accept":          "application/json,text/plain,*/*",
		"Accept-Language": "en-US,en;q=0.9",
		"Referer":         PageURL(s.Region),
	})
	if len(s.Cookies) > 0 {
		client.SetCookies(s.Cookies)
	}
	return client
}

// FetchCrumb asks the crumb endpoint for the anti-CSRF token the JSON APIs expect.
func FetchCrumb(ctx context.Context, client *resty.Client, crumbURL, region string) (string, error) {
	if crumbURL == "" {
		crumbURL = CrumbURL
	}

	resp, err := client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{"lang": "en-US", "region": NormalizeRegion(region)}).
		Get(crumbURL)
	if err != nil {
		return "", fmt.Errorf("crumb request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("crumb request: status %d", resp.StatusCode())
	}

	crumb := strings.TrimSpace(resp.String())
	if crumb == "" {
		return "", fmt.Errorf("crumb request: empty body")
	}
	return crumb, nil
}
