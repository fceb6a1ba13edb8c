// Package artifacts persists debugging evidence for failed or degraded runs.
package artifacts

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/phelukas/yahoo-equity-crawler/pkg/extractor"
	"github.com/phelukas/yahoo-equity-crawler/pkg/quotes"
	"github.com/phelukas/yahoo-equity-crawler/pkg/screener"
)

const tsLayout = "20060102_150405"

var ErrNoArtifacts = errors.New("no page artifacts found")

type Store struct {
	Dir string
	now func() time.Time
}

func New(dir string) *Store {
	if dir == "" {
		dir = "artifacts"
	}
	return &Store{Dir: dir, now: time.Now}
}

type httpFailure struct {
	URL         string            `json:"url"`
	Params      map[string]string `json:"params,omitempty"`
	Status      int               `json:"status"`
	Error       string            `json:"error,omitempty"`
	BodySnippet string            `json:"body_snippet,omitempty"`
}

// SaveHTML writes the rendered page as last_page_{ts}.html.
func (s *Store) SaveHTML(html string) (string, error) {
	return s.write(fmt.Sprintf("last_page_%s.html", s.ts()), []byte(html))
}

// SaveScreenerFailure writes a screener_http_{status} file, or screener_json
// when the response was 200 but could not be decoded.
func (s *Store) SaveScreenerFailure(err *screener.ScreenerAPIError) (string, error) {
	name := fmt.Sprintf("screener_http_%03d_%s.txt", err.Status, s.ts())
	if err.Status == 200 {
		name = fmt.Sprintf("screener_json_%s.txt", s.ts())
	}
	return s.writeJSON(name, failureOf(err.URL, err.Params, err.Status, err.Body, err.Err))
}

func (s *Store) SaveQuoteFailure(err *quotes.EnrichmentError) (string, error) {
	name := fmt.Sprintf("quote_http_%03d_%s.txt", err.Status, s.ts())
	return s.writeJSON(name, failureOf(err.URL, err.Params(), err.Status, err.Body, err.Err))
}

// SaveParseFailure writes parse_fail_state_{ts}.json with the scripts that
// were inspected.
func (s *Store) SaveParseFailure(err *extractor.StateParseError) (string, error) {
	snippets := make([]extractor.ScriptInfo, 0, 5)
	for _, sc := range err.Scripts {
		if sc.Snippet == "" {
			continue
		}
		snippets = append(snippets, sc)
		if len(snippets) == 5 {
			break
		}
	}

	payload := map[string]any{
		"info": map[string]any{
			"reason":        err.Reason,
			"tried":         err.Tried,
			"total_scripts": len(err.Scripts),
			"scripts":       err.Scripts,
		},
		"snippets": snippets,
	}
	return s.writeJSON(fmt.Sprintf("parse_fail_state_%s.json", s.ts()), payload)
}

// LatestHTML returns the path of the newest last_page_*.html.
func (s *Store) LatestHTML() (string, error) {
	matches, err := filepath.Glob(filepath.Join(s.Dir, "last_page_*.html"))
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("%w in %s", ErrNoArtifacts, s.Dir)
	}
	sort.Strings(matches)
	return matches[len(matches)-1], nil
}

func failureOf(url string, params map[string]string, status int, body string, cause error) httpFailure {
	f := httpFailure{URL: url, Params: params, Status: status, BodySnippet: body}
	if cause != nil {
		f.Error = cause.Error()
	}
	return f
}

func (s *Store) ts() string {
	return s.now().UTC().Format(tsLayout)
}

func (s *Store) writeJSON(name string, v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", name, err)
	}
	return s.write(name, data)
}

func (s *Store) write(name string, data []byte) (string, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create artifacts dir: %w", err)
	}
	path := filepath.Join(s.Dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	return path, nil
}
