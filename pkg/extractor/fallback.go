package extractor

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/phelukas/yahoo-equity-crawler/pkg/logger"
	"github.com/phelukas/yahoo-equity-crawler/pkg/models"
	"github.com/phelukas/yahoo-equity-crawler/pkg/statelocator"
)

const maxScriptInfo = 40

// FallbackResult is the quote list recovered from embedded page state.
type FallbackResult struct {
	Container string
	Path      string
	Quotes    []models.RawQuote
}

// ScriptInfo describes one script tag, for parse failure postmortems.
type ScriptInfo struct {
	ID        string `json:"id,omitempty"`
	Type      string `json:"type,omitempty"`
	DataURL   string `json:"data_url,omitempty"`
	SvelteKit bool   `json:"data_sveltekit"`
	Length    int    `json:"length"`
	Snippet   string `json:"snippet,omitempty"`
}

type Fallback struct {
	registry *Registry
	locator  *statelocator.Locator
}

func NewFallback(registry *Registry, locator *statelocator.Locator) *Fallback {
	if registry == nil {
		registry, _ = NewOrderedRegistry(nil)
	}
	if locator == nil {
		locator = statelocator.New()
	}
	return &Fallback{registry: registry, locator: locator}
}

// ExtractQuotes runs the default container order over html.
func ExtractQuotes(html string, locator *statelocator.Locator) (*FallbackResult, error) {
	return NewFallback(nil, locator).Extract(html)
}

// Extract tries each registered container family in priority order and
// returns the first non-empty quote list.
func (f *Fallback) Extract(html string) (*FallbackResult, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, &StateParseError{Reason: "parse html: " + err.Error()}
	}

	var tried []string
	for _, s := range f.registry.Strategies() {
		tried = append(tried, s.Name())
		cands := s.Extract(doc, html)
		if res, ok := f.best(cands); ok {
			return res, nil
		}
	}

	return nil, &StateParseError{
		Tried:   tried,
		Reason:  "no container yielded a quote list",
		Scripts: CollectScripts(doc),
	}
}

// ExtractFromStates runs the locator over already decoded state, e.g.
// values evaluated in the live page.
func (f *Fallback) ExtractFromStates(cands []models.EmbeddedStateCandidate) (*FallbackResult, error) {
	var tried []string
	for _, c := range cands {
		tried = append(tried, c.Container)
		if res, ok := f.best([]models.EmbeddedStateCandidate{c}); ok {
			return res, nil
		}
	}
	return nil, &StateParseError{Tried: tried, Reason: "runtime state yielded no quote list"}
}

// best picks the highest scoring list among one strategy's candidates.
func (f *Fallback) best(cands []models.EmbeddedStateCandidate) (*FallbackResult, bool) {
	var (
		winner *FallbackResult
		score  int
	)
	for _, c := range cands {
		res, ok := f.locator.Locate(c.State)
		if !ok || len(res.Quotes) == 0 {
			continue
		}
		if winner == nil || res.Score > score {
			winner = &FallbackResult{Container: c.Container, Path: res.Path, Quotes: res.Quotes}
			score = res.Score
		}
	}
	if winner == nil {
		return nil, false
	}

	logger.Log.Debug().
		Str("container", winner.Container).
		Str("path", winner.Path).
		Int("quotes", len(winner.Quotes)).
		Msg("embedded state located")
	return winner, true
}

// CollectScripts summarizes the page's script tags.
func CollectScripts(doc *goquery.Document) []ScriptInfo {
	var out []ScriptInfo
	doc.Find("script").Each(func(i int, sel *goquery.Selection) {
		if len(out) >= maxScriptInfo {
			return
		}
		text := strings.TrimSpace(sel.Text())
		info := ScriptInfo{
			ID:      sel.AttrOr("id", ""),
			Type:    sel.AttrOr("type", ""),
			DataURL: sel.AttrOr("data-url", ""),
			Length:  len(text),
		}
		_, info.SvelteKit = sel.Attr("data-sveltekit-fetched")
		if len(out) < 5 {
			info.Snippet = truncate(text, 800)
		}
		out = append(out, info)
	})
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
