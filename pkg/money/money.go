// Package money converts the loosely typed numeric tokens found in screener
// payloads into canonical decimal values.
package money

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Empty is the explicit "no value" sentinel.
var Empty = decimal.NullDecimal{}

var emptyTokens = map[string]struct{}{
	"":    {},
	"-":   {},
	"--":  {},
	"—":   {},
	"n/a": {},
	"na":  {},
}

var suffixes = map[byte]decimal.Decimal{
	'K': decimal.New(1, 3),
	'M': decimal.New(1, 6),
	'B': decimal.New(1, 9),
	'T': decimal.New(1, 12),
}

// Parse accepts numbers, numeric strings and {raw, fmt} objects.
// Anything it cannot read yields Empty.
func Parse(v any) decimal.NullDecimal {
	switch val := v.(type) {
	case nil:
		return Empty
	case decimal.Decimal:
		return valid(val)
	case decimal.NullDecimal:
		return val
	case float64:
		return fromFloat(val)
	case float32:
		return fromFloat(float64(val))
	case int:
		return valid(decimal.NewFromInt(int64(val)))
	case int64:
		return valid(decimal.NewFromInt(val))
	case int32:
		return valid(decimal.NewFromInt(int64(val)))
	case json.Number:
		return ParseString(val.String())
	case string:
		return ParseString(val)
	case map[string]any:
		if raw, ok := val["raw"]; ok {
			if d := Parse(raw); d.Valid {
				return d
			}
		}
		if f, ok := val["fmt"]; ok {
			return Parse(f)
		}
		if lf, ok := val["longFmt"]; ok {
			return Parse(lf)
		}
		return Empty
	default:
		return Empty
	}
}

// ParseString parses "2,089.00", "1.2B", "12.5%" and friends.
func ParseString(s string) decimal.NullDecimal {
	s = strings.TrimSpace(s)
	if _, ok := emptyTokens[strings.ToLower(s)]; ok {
		return Empty
	}

	s = strings.NewReplacer(",", "", " ", "", "\u00a0", "", "%", "").Replace(s)
	s = strings.TrimPrefix(s, "$")
	if s == "" {
		return Empty
	}

	mult := decimal.NewFromInt(1)
	last := s[len(s)-1]
	if m, ok := suffixes[upper(last)]; ok {
		mult = m
		s = s[:len(s)-1]
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return Empty
	}
	return valid(d.Mul(mult))
}

// Text returns the display form of a scalar or {raw, fmt} value, "" when absent.
func Text(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case map[string]any:
		if f, ok := val["fmt"]; ok {
			if s := Text(f); s != "" {
				return s
			}
		}
		return Text(val["raw"])
	case float64:
		return decimal.NewFromFloat(val).String()
	case json.Number:
		return val.String()
	case bool:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(val))
	}
}

// Format renders a value for tabular output; empty values become "".
func Format(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.String()
}

func fromFloat(f float64) decimal.NullDecimal {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Empty
	}
	return valid(decimal.NewFromFloat(f))
}

func valid(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

func upper(b byte) byte {
	if b >= 'a' && b <= 'z' {
		return b - ('a' - 'A')
	}
	return b
}
