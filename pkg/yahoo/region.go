// Package yahoo holds the endpoint constants and the HTTP session shared by
// the screener and quote clients.
package yahoo

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	ScreenerPageURL = "https://finance.yahoo.com/research-hub/screener/equity/"
	ScreenerURL     = "https://query1.finance.yahoo.com/v1/finance/screener"
	CrumbURL        = "https://query1.finance.yahoo.com/v1/test/getcrumb"
	QuoteURL        = "https://query1.finance.yahoo.com/v7/finance/quote"
)

var regionCodes = map[string]string{
	"united states": "US",
	"argentina":     "AR",
	"brazil":        "BR",
	"chile":         "CL",
	"mexico":        "MX",
}

// NormalizeRegion turns "Brazil", "br" or "BR" into "BR".
func NormalizeRegion(region string) string {
	region = strings.TrimSpace(region)
	if len(region) == 2 {
		return strings.ToUpper(region)
	}
	if code, ok := regionCodes[strings.ToLower(region)]; ok {
		return code
	}
	return strings.ToUpper(region)
}

// PageURL is the screener page rendered to discover the seed.
func PageURL(region string) string {
	return fmt.Sprintf("%s?region=%s", ScreenerPageURL, url.QueryEscape(NormalizeRegion(region)))
}
