package extractor

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/phelukas/yahoo-equity-crawler/pkg/logger"
	"github.com/phelukas/yahoo-equity-crawler/pkg/models"
)

const (
	StrategyNextData        = "next_data"
	StrategyPreloadedState  = "preloaded_state"
	StrategyRootAppMain     = "root_app_main"
	StrategySvelteKit       = "sveltekit"
	StrategyYahooContext    = "yahoo_context"
	StrategyScriptHeuristic = "script_heuristic"
)

type NextDataStrategy struct{}

func NewNextDataStrategy() *NextDataStrategy {
	return &NextDataStrategy{}
}

func (s *NextDataStrategy) Name() string {
	return StrategyNextData
}

func (s *NextDataStrategy) Priority() int {
	return 100
}

func (s *NextDataStrategy) Extract(doc *goquery.Document, rawHTML string) []models.EmbeddedStateCandidate {
	var results []models.EmbeddedStateCandidate

	doc.Find("script#__NEXT_DATA__").Each(func(i int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Text())
		if text == "" {
			return
		}
		state, err := decodeLiteral(text)
		if err != nil {
			logger.Log.Debug().Err(err).Msg("__NEXT_DATA__ not decodable")
			return
		}
		results = append(results, models.EmbeddedStateCandidate{Container: StrategyNextData, State: state})
	})

	return results
}

// AssignmentStrategy finds `<name> = {...}` assignments in inline scripts.
type AssignmentStrategy struct {
	name     string
	priority int
	pattern  *regexp.Regexp
}

func NewPreloadedStateStrategy() *AssignmentStrategy {
	return &AssignmentStrategy{
		name:     StrategyPreloadedState,
		priority: 90,
		pattern:  regexp.MustCompile(`__PRELOADED_STATE__\s*=\s*`),
	}
}

func NewRootAppMainStrategy() *AssignmentStrategy {
	return &AssignmentStrategy{
		name:     StrategyRootAppMain,
		priority: 80,
		pattern:  regexp.MustCompile(`root\.App\.main\s*=\s*`),
	}
}

func NewYahooContextStrategy() *AssignmentStrategy {
	return &AssignmentStrategy{
		name:     StrategyYahooContext,
		priority: 60,
		pattern:  regexp.MustCompile(`YAHOO\.context\s*=\s*`),
	}
}

func (s *AssignmentStrategy) Name() string {
	return s.name
}

func (s *AssignmentStrategy) Priority() int {
	return s.priority
}

func (s *AssignmentStrategy) Extract(doc *goquery.Document, rawHTML string) []models.EmbeddedStateCandidate {
	var results []models.EmbeddedStateCandidate

	for _, loc := range s.pattern.FindAllStringIndex(rawHTML, -1) {
		state, err := objectAfter(rawHTML, loc[1])
		if err != nil {
			logger.Log.Debug().Err(err).Str("container", s.name).Msg("assignment not decodable")
			continue
		}
		results = append(results, models.EmbeddedStateCandidate{Container: s.name, State: state})
	}

	return results
}

// SvelteKitStrategy reads application/json scripts; their "body" is often
// a JSON document encoded as a string.
type SvelteKitStrategy struct{}

func NewSvelteKitStrategy() *SvelteKitStrategy {
	return &SvelteKitStrategy{}
}

func (s *SvelteKitStrategy) Name() string {
	return StrategySvelteKit
}

func (s *SvelteKitStrategy) Priority() int {
	return 70
}

func (s *SvelteKitStrategy) Extract(doc *goquery.Document, rawHTML string) []models.EmbeddedStateCandidate {
	var results []models.EmbeddedStateCandidate

	doc.Find("script").Each(func(i int, sel *goquery.Selection) {
		typ, _ := sel.Attr("type")
		if !strings.Contains(typ, "application/json") {
			return
		}
		text := strings.TrimSpace(sel.Text())
		if text == "" {
			return
		}
		payload, err := decodeLiteral(text)
		if err != nil {
			return
		}

		if m, ok := payload.(map[string]any); ok {
			if body := decodeMaybeString(m["body"]); body != nil {
				if _, isObj := body.(map[string]any); isObj {
					results = append(results, models.EmbeddedStateCandidate{Container: StrategySvelteKit, State: body})
					return
				}
				if _, isList := body.([]any); isList {
					results = append(results, models.EmbeddedStateCandidate{Container: StrategySvelteKit, State: body})
					return
				}
			}
		}
		results = append(results, models.EmbeddedStateCandidate{Container: StrategySvelteKit, State: payload})
	})

	return results
}

var heuristicKeywords = []string{"quotes", "quote", "screener", "equity", "finance", "results"}

// ScriptHeuristicStrategy decodes the first object literal of any script
// mentioning screener-related words.
type ScriptHeuristicStrategy struct{}

func NewScriptHeuristicStrategy() *ScriptHeuristicStrategy {
	return &ScriptHeuristicStrategy{}
}

func (s *ScriptHeuristicStrategy) Name() string {
	return StrategyScriptHeuristic
}

func (s *ScriptHeuristicStrategy) Priority() int {
	return 10
}

func (s *ScriptHeuristicStrategy) Extract(doc *goquery.Document, rawHTML string) []models.EmbeddedStateCandidate {
	var results []models.EmbeddedStateCandidate

	doc.Find("script").Each(func(i int, sel *goquery.Selection) {
		text := sel.Text()
		if !containsAny(text, heuristicKeywords) {
			return
		}
		state, err := objectAfter(text, 0)
		if err != nil {
			return
		}
		results = append(results, models.EmbeddedStateCandidate{Container: StrategyScriptHeuristic, State: state})
	})

	return results
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
