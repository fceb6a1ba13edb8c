package browser

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// BlockResult contains blocking detection result
type BlockResult struct {
	Blocked bool
	Consent bool
	Reason  string
}

var ipInTitleRegex = regexp.MustCompile(`^\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}`)

var blockingPhrases = []string{
	"Will be right back",
	"Too Many Requests",
	"Sorry, you have been blocked",
	"Attention Required! | Cloudflare",
	"Your request has been blocked",
	"ERR_NAME_NOT_RESOLVED",
	"ERR_CONNECTION_REFUSED",
	"ERR_CONNECTION_TIMED_OUT",
	"Access Denied",
}

// DetectBlocking checks whether a rendered page is an interstitial rather
// than the screener. Order:
// 1. consent wall (by URL or consent form)
// 2. blocking phrases
// 3. IP address in title
// 4. error title in short HTML
func DetectBlocking(html, finalURL string) BlockResult {
	if IsConsentURL(finalURL) || hasConsentForm(html) {
		return BlockResult{Blocked: true, Consent: true, Reason: "consent wall"}
	}

	for _, phrase := range blockingPhrases {
		if containsIgnoreCase(html, phrase) {
			return BlockResult{Blocked: true, Reason: phrase}
		}
	}

	title := extractTitle(html)
	if ipInTitleRegex.MatchString(title) {
		return BlockResult{Blocked: true, Reason: "IP in title"}
	}

	if len(html) < 10000 {
		lower := strings.ToLower(title)
		if lower == "error" || strings.HasPrefix(lower, "oops") {
			return BlockResult{Blocked: true, Reason: "error title"}
		}
	}

	return BlockResult{}
}

// IsConsentURL reports whether the browser was redirected to the consent flow.
func IsConsentURL(u string) bool {
	u = strings.ToLower(u)
	return strings.Contains(u, "consent.") || strings.Contains(u, "guce.") || strings.Contains(u, "/consent")
}

func hasConsentForm(html string) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return false
	}
	return doc.Find(`form.consent-form, iframe[src*="consent"], iframe[src*="guce"]`).Length() > 0
}

func extractTitle(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
