package extractor

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/titanous/json5"
)

var errUnbalanced = errors.New("unbalanced object literal")

// balancedObject returns the {...} literal starting at text[start],
// skipping braces inside single or double quoted strings.
func balancedObject(text string, start int) (string, error) {
	if start < 0 || start >= len(text) || text[start] != '{' {
		return "", fmt.Errorf("no object at offset %d", start)
	}

	depth := 0
	var quote byte
	escape := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if quote != 0 {
			switch {
			case escape:
				escape = false
			case c == '\\':
				escape = true
			case c == quote:
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], nil
			}
		}
	}
	return "", errUnbalanced
}

// objectAfter locates the first object literal after offset and decodes it.
func objectAfter(text string, offset int) (any, error) {
	idx := strings.IndexByte(text[offset:], '{')
	if idx < 0 {
		return nil, errors.New("object literal not found")
	}
	literal, err := balancedObject(text, offset+idx)
	if err != nil {
		return nil, err
	}
	return decodeLiteral(literal)
}

// decodeLiteral decodes strict JSON first and relaxed JS object syntax second.
func decodeLiteral(literal string) (any, error) {
	var v any
	dec := json.NewDecoder(strings.NewReader(literal))
	dec.UseNumber()
	if err := dec.Decode(&v); err == nil {
		return v, nil
	}

	var relaxed any
	if err := json5.Unmarshal([]byte(literal), &relaxed); err != nil {
		return nil, fmt.Errorf("decode literal: %w", err)
	}
	return relaxed, nil
}

// decodeMaybeString decodes JSON text that might be wrapped in a JSON string.
func decodeMaybeString(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "{") && !strings.HasPrefix(s, "[") {
		return v
	}
	var out any
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return v
	}
	return out
}
