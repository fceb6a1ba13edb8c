package extractor

import (
	"fmt"
	"sort"
)

// DefaultOrder is the documented container priority.
var DefaultOrder = []string{
	StrategyNextData,
	StrategyPreloadedState,
	StrategyRootAppMain,
	StrategySvelteKit,
	StrategyYahooContext,
	StrategyScriptHeuristic,
}

var constructors = map[string]func() StateStrategy{
	StrategyNextData:        func() StateStrategy { return NewNextDataStrategy() },
	StrategyPreloadedState:  func() StateStrategy { return NewPreloadedStateStrategy() },
	StrategyRootAppMain:     func() StateStrategy { return NewRootAppMainStrategy() },
	StrategySvelteKit:       func() StateStrategy { return NewSvelteKitStrategy() },
	StrategyYahooContext:    func() StateStrategy { return NewYahooContextStrategy() },
	StrategyScriptHeuristic: func() StateStrategy { return NewScriptHeuristicStrategy() },
}

type Registry struct {
	strategies []StateStrategy
}

func NewRegistry() *Registry {
	return &Registry{
		strategies: make([]StateStrategy, 0),
	}
}

// NewOrderedRegistry builds a registry with the named strategies in the given
// order. An empty list means DefaultOrder.
func NewOrderedRegistry(names []string) (*Registry, error) {
	if len(names) == 0 {
		names = DefaultOrder
	}

	r := NewRegistry()
	seen := make(map[string]bool, len(names))
	for i, name := range names {
		ctor, ok := constructors[name]
		if !ok {
			return nil, fmt.Errorf("unknown state container %q", name)
		}
		if seen[name] {
			return nil, fmt.Errorf("state container %q listed twice", name)
		}
		seen[name] = true
		r.Register(ranked{StateStrategy: ctor(), rank: len(names) - i})
	}
	return r, nil
}

func (r *Registry) Register(s StateStrategy) {
	r.strategies = append(r.strategies, s)
	sort.SliceStable(r.strategies, func(i, j int) bool {
		return r.strategies[i].Priority() > r.strategies[j].Priority()
	})
}

func (r *Registry) Strategies() []StateStrategy {
	return append([]StateStrategy(nil), r.strategies...)
}

func (r *Registry) Names() []string {
	names := make([]string, len(r.strategies))
	for i, s := range r.strategies {
		names[i] = s.Name()
	}
	return names
}

// ranked overrides a strategy's built-in priority with its configured rank.
type ranked struct {
	StateStrategy
	rank int
}

func (r ranked) Priority() int {
	return r.rank
}
