package cache

import (
	"github.com/bits-and-blooms/bloom/v3"
)

// SymbolSet is a grow-only set of ticker symbols. The bloom filter answers
// "definitely new" without touching the map; the map settles the rest.
// It is owned by a single run and is not safe for concurrent use.
type SymbolSet struct {
	filter *bloom.BloomFilter
	exact  map[string]struct{}
}

// NewSymbolSet sizes the filter for expectedItems at a 0.1% false positive rate.
func NewSymbolSet(expectedItems uint) *SymbolSet {
	if expectedItems == 0 {
		expectedItems = 1024
	}
	return &SymbolSet{
		filter: bloom.NewWithEstimates(expectedItems, 0.001),
		exact:  make(map[string]struct{}, expectedItems),
	}
}

// Add inserts symbol and reports whether it was not present before.
func (s *SymbolSet) Add(symbol string) bool {
	if s.Contains(symbol) {
		return false
	}
	s.filter.AddString(symbol)
	s.exact[symbol] = struct{}{}
	return true
}

func (s *SymbolSet) Contains(symbol string) bool {
	if !s.filter.TestString(symbol) {
		return false
	}
	_, ok := s.exact[symbol]
	return ok
}

func (s *SymbolSet) Len() int {
	return len(s.exact)
}
