package screener

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"net/url"
	"strings"
)

var allowedPostParams = []string{"formatted", "lang", "region", "corsDomain"}

// PrepareCriteria decodes raw criteria and pins its region filter.
func PrepareCriteria(raw json.RawMessage, region string) (map[string]any, error) {
	var criteria map[string]any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&criteria); err != nil {
		return nil, fmt.Errorf("decode criteria: %w", err)
	}
	if criteria == nil {
		return nil, fmt.Errorf("decode criteria: not an object")
	}
	EnsureRegionFilter(criteria, strings.ToLower(region))
	return criteria, nil
}

// EnsureRegionFilter rewrites the region eq operand of an "and" query, or
// appends one when missing. Criteria without a query are left alone.
func EnsureRegionFilter(criteria map[string]any, region string) {
	query, ok := criteria["query"].(map[string]any)
	if !ok {
		return
	}
	operands, ok := query["operands"].([]any)
	if !ok {
		return
	}

	for _, op := range operands {
		m, ok := op.(map[string]any)
		if !ok || m["operator"] != "eq" {
			continue
		}
		values, ok := m["operands"].([]any)
		if ok && len(values) >= 2 && values[0] == "region" {
			values[1] = region
			return
		}
	}
	query["operands"] = append(operands, map[string]any{"operator": "eq", "operands": []any{"region", region}})
}

// withPaging returns a shallow copy of criteria positioned at offset.
func withPaging(criteria map[string]any, offset, size int) map[string]any {
	out := maps.Clone(criteria)
	out["offset"] = offset
	out["size"] = size
	return out
}

// postParams keeps only the query parameters the POST endpoint accepts.
func postParams(base url.Values) url.Values {
	out := url.Values{"formatted": {"true"}, "lang": {"en-US"}}
	for _, k := range allowedPostParams {
		if v := base.Get(k); v != "" {
			out.Set(k, v)
		}
	}
	return out
}
