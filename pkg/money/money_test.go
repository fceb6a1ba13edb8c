package money

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		in    any
		want  string
		empty bool
	}{
		{name: "float", in: 189.25, want: "189.25"},
		{name: "int", in: 42, want: "42"},
		{name: "json number", in: json.Number("3050000000000"), want: "3050000000000"},
		{name: "thousands separator", in: "2,089.00", want: "2089"},
		{name: "spaces", in: " 1 234.5 ", want: "1234.5"},
		{name: "billions suffix", in: "1.2B", want: "1200000000"},
		{name: "trillions suffix", in: "3.05T", want: "3050000000000"},
		{name: "lower suffix", in: "450k", want: "450000"},
		{name: "percent", in: "12.5%", want: "12.5"},
		{name: "raw wins over fmt", in: map[string]any{"raw": 10.5, "fmt": "10.50"}, want: "10.5"},
		{name: "fmt only", in: map[string]any{"fmt": "1.5M"}, want: "1500000"},
		{name: "bad raw falls to fmt", in: map[string]any{"raw": "x", "fmt": "7"}, want: "7"},
		{name: "nil", in: nil, empty: true},
		{name: "empty string", in: "", empty: true},
		{name: "dash", in: "-", empty: true},
		{name: "em dash", in: "—", empty: true},
		{name: "not available", in: "N/A", empty: true},
		{name: "garbage", in: "abc", empty: true},
		{name: "bool", in: true, empty: true},
		{name: "empty object", in: map[string]any{}, empty: true},
		{name: "slice", in: []any{1}, empty: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.in)
			if tt.empty {
				assert.False(t, got.Valid, "expected empty, got %s", got.Decimal)
				return
			}
			assert.True(t, got.Valid)
			assert.Equal(t, tt.want, got.Decimal.String())
		})
	}
}

func TestText(t *testing.T) {
	assert.Equal(t, "USD", Text(" USD "))
	assert.Equal(t, "1.2B", Text(map[string]any{"raw": 1200000000.0, "fmt": "1.2B"}))
	assert.Equal(t, "5", Text(map[string]any{"raw": 5.0}))
	assert.Equal(t, "", Text(nil))
	assert.Equal(t, "", Text(false))
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "", Format(Empty))
	assert.Equal(t, "2089", Format(Parse("2,089.00")))
}
