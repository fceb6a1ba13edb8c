package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeState(t *testing.T) {
	testCases := []struct {
		name string
		raw  string
		ok   bool
	}{
		{"object", `{"props":{"pageProps":{"quotes":[]}}}`, true},
		{"null", "null", false},
		{"empty", "", false},
		{"array", `[1,2]`, false},
		{"garbage", `{"a":`, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, ok := decodeState(tc.raw)
			assert.Equal(t, tc.ok, ok)
		})
	}
}

func TestSeedSelector(t *testing.T) {
	assert.Equal(t, `script[data-sveltekit-fetched][data-url*="predefined/saved"]`, seedSelector("predefined/saved"))
}

func TestOptionsDefaults(t *testing.T) {
	var o Options
	o.setDefaults()
	assert.Equal(t, 2, o.MaxTabs)
	assert.Equal(t, "predefined/saved", o.SeedMarker)
	assert.Positive(t, o.SeedTimeout)
	assert.Positive(t, o.TabTimeout)
}
