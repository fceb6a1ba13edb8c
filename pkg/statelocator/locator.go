// Package statelocator finds quote-shaped lists inside arbitrary decoded page state.
package statelocator

import (
	"sort"
	"strconv"
	"strings"

	"github.com/phelukas/yahoo-equity-crawler/pkg/models"
	"github.com/phelukas/yahoo-equity-crawler/pkg/money"
)

const DefaultMaxDepth = 16

// Result is the best quote list found in a state tree.
type Result struct {
	Quotes []models.RawQuote
	Path   string
	Score  int
}

// Locator performs a bounded-depth scored search for quote lists.
type Locator struct {
	MaxDepth   int
	KnownPaths [][]any    // probed first, in order
	Sections   [][]string // scanned next, before the whole tree
}

var dispatcherStores = []any{"context", "dispatcher", "stores"}

func storePath(parts ...any) []any {
	return append(append([]any{}, dispatcherStores...), parts...)
}

func New() *Locator {
	return &Locator{
		MaxDepth: DefaultMaxDepth,
		KnownPaths: [][]any{
			storePath("ScreenerResultsStore", "results", "quotes"),
			storePath("ScreenerResultsStore", "results", "finance", "result", 0, "quotes"),
			storePath("ScreenerResultsStore", "quotes"),
			storePath("ScreenerResultsStore", "results"),
			storePath("ScreenerStore", "results", "quotes"),
			storePath("ScreenerStore", "quotes"),
			storePath("ScreenerStore", "results"),
		},
		Sections: [][]string{
			{"context", "dispatcher", "stores"},
			{"props", "pageProps"},
			{"pageProps"},
			{"props"},
		},
	}
}

type candidate struct {
	score  int
	path   []string
	quotes []any
}

// Locate returns the best quote list in state, or false when none qualifies.
func (l *Locator) Locate(state any) (Result, bool) {
	if state == nil {
		return Result{}, false
	}

	var known []candidate
	for _, p := range l.KnownPaths {
		value := GetPath(state, p...)
		path := pathStrings(p)
		if m, ok := value.(map[string]any); ok {
			if q, ok := m["quotes"]; ok {
				value = q
				path = append(path, "quotes")
			}
		}
		if m, ok := value.(map[string]any); ok {
			value = mapValues(m)
		}
		if list, ok := value.([]any); ok {
			if s := Score(list, path); s > 0 {
				known = append(known, candidate{score: s, path: path, quotes: list})
			}
		}
	}
	if best, ok := pickBest(known); ok {
		return toResult(best), true
	}

	for _, section := range l.Sections {
		parts := make([]any, len(section))
		for i, s := range section {
			parts[i] = s
		}
		node := GetPath(state, parts...)
		if !isContainer(node) {
			continue
		}
		if best, ok := pickBest(l.collect(node, append([]string{}, section...))); ok {
			return toResult(best), true
		}
	}

	if best, ok := pickBest(l.collect(state, nil)); ok {
		return toResult(best), true
	}
	return Result{}, false
}

func (l *Locator) collect(root any, base []string) []candidate {
	maxDepth := l.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	var out []candidate
	var walk func(node any, path []string)
	walk = func(node any, path []string) {
		if len(path) > maxDepth {
			return
		}
		switch n := node.(type) {
		case map[string]any:
			for _, key := range sortedKeys(n) {
				value := n[key]
				next := append(append([]string{}, path...), key)
				switch v := value.(type) {
				case []any:
					if s := Score(v, next); s > 0 {
						out = append(out, candidate{score: s, path: next, quotes: v})
					}
				case map[string]any:
					if key == "quotes" {
						list := mapValues(v)
						if s := Score(list, next); s > 0 {
							out = append(out, candidate{score: s, path: next, quotes: list})
						}
					}
				}
				if isContainer(value) {
					walk(value, next)
				}
			}
		case []any:
			for i, item := range n {
				if isContainer(item) {
					walk(item, append(append([]string{}, path...), "["+strconv.Itoa(i)+"]"))
				}
			}
		}
	}
	walk(root, base)
	return out
}

// Score rates a list as a quote list. Lists without any symbol-bearing
// element score zero.
func Score(items []any, path []string) int {
	if len(items) == 0 {
		return 0
	}

	hits, score := 0, 0
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if money.Text(m["symbol"]) == "" && money.Text(m["ticker"]) == "" {
			continue
		}
		hits++
		score += 2
		if present(m["regularMarketPrice"]) {
			score++
		}
		if present(m["marketCap"]) {
			score++
		}
	}
	if hits == 0 {
		return 0
	}

	named := make([]string, 0, len(path))
	for _, p := range path {
		if !strings.HasPrefix(p, "[") {
			named = append(named, p)
		}
	}
	joined := strings.Join(named, ".")
	if strings.Contains(joined, "Screener") {
		score += 10
	}
	if strings.Contains(joined, "quotes") {
		score += 5
	}
	if strings.Contains(joined, "results") {
		score += 2
	}
	return score
}

// GetPath walks string keys and int indices; it returns nil on any miss.
func GetPath(data any, path ...any) any {
	current := data
	for _, part := range path {
		switch p := part.(type) {
		case int:
			list, ok := current.([]any)
			if !ok || p < 0 || p >= len(list) {
				return nil
			}
			current = list[p]
		case string:
			m, ok := current.(map[string]any)
			if !ok {
				return nil
			}
			v, ok := m[p]
			if !ok {
				return nil
			}
			current = v
		default:
			return nil
		}
	}
	return current
}

// FindPaths lists the dotted paths of every key named key, depth-bounded.
func FindPaths(state any, key string, maxDepth int) []string {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	var out []string
	var walk func(node any, path []string)
	walk = func(node any, path []string) {
		if len(path) > maxDepth {
			return
		}
		switch n := node.(type) {
		case map[string]any:
			for _, k := range sortedKeys(n) {
				next := append(append([]string{}, path...), k)
				if k == key {
					out = append(out, strings.Join(next, "."))
				}
				walk(n[k], next)
			}
		case []any:
			for i, item := range n {
				walk(item, append(append([]string{}, path...), "["+strconv.Itoa(i)+"]"))
			}
		}
	}
	walk(state, nil)
	return out
}

// Keys returns up to limit sorted keys of a map node.
func Keys(node any, limit int) []string {
	m, ok := node.(map[string]any)
	if !ok {
		return nil
	}
	keys := sortedKeys(m)
	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}
	return keys
}

func pickBest(cands []candidate) (candidate, bool) {
	if len(cands) == 0 {
		return candidate{}, false
	}
	best := cands[0]
	for _, c := range cands[1:] {
		if c.score > best.score || (c.score == best.score && len(c.quotes) > len(best.quotes)) {
			best = c
		}
	}
	return best, true
}

func toResult(c candidate) Result {
	quotes := make([]models.RawQuote, 0, len(c.quotes))
	for _, item := range c.quotes {
		if m, ok := item.(map[string]any); ok {
			quotes = append(quotes, m)
		}
	}
	return Result{Quotes: quotes, Path: strings.Join(c.path, "."), Score: c.score}
}

func present(v any) bool {
	if m, ok := v.(map[string]any); ok {
		if raw, ok := m["raw"]; ok {
			return raw != nil
		}
		f, ok := m["fmt"]
		return ok && f != nil
	}
	return v != nil
}

func isContainer(v any) bool {
	switch v.(type) {
	case map[string]any, []any:
		return true
	}
	return false
}

func mapValues(m map[string]any) []any {
	out := make([]any, 0, len(m))
	for _, k := range sortedKeys(m) {
		out = append(out, m[k])
	}
	return out
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func pathStrings(parts []any) []string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		switch v := p.(type) {
		case string:
			out = append(out, v)
		case int:
			out = append(out, "["+strconv.Itoa(v)+"]")
		}
	}
	return out
}
