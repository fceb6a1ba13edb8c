package models

import (
	"encoding/json"
	"net/url"
)

// SeedDescriptor is the screener endpoint recovered from a rendered page.
// It is created once per run and never modified afterwards.
type SeedDescriptor struct {
	EndpointURL string
	Method      string
	Convention  PagingConvention
	RawCriteria json.RawMessage
	BaseParams  url.Values
	PageSize    int
	SourceURL   string
}

// HasCriteria reports whether the seed carries a criteria payload.
func (s *SeedDescriptor) HasCriteria() bool {
	return s != nil && len(s.RawCriteria) > 0
}
