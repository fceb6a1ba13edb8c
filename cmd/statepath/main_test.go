package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePage = `<html><head>
<script id="__NEXT_DATA__" type="application/json">{"props":{"pageProps":{"screener":{"quotes":[{"symbol":"AAPL","regularMarketPrice":1},{"symbol":"MSFT"}]}}}}</script>
<script type="application/json" data-sveltekit-fetched data-url="https://query1.finance.yahoo.com/v1/finance/screener/predefined/saved?count=25">{"status":200,"body":"{}"}</script>
</head><body></body></html>`

func TestInspect(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, inspect(&buf, "page.html", samplePage, 16))
	out := buf.String()

	assert.Contains(t, out, "== next_data #0")
	assert.Contains(t, out, "top-level keys: props")
	assert.Contains(t, out, "quotes path: props.pageProps.screener.quotes")
	assert.Contains(t, out, "extraction: 2 quotes from next_data")
	assert.Contains(t, out, "(first: AAPL)")
	assert.Contains(t, out, "predefined/saved?count=25")
}

func TestRootCmd_UsesLatestArtifact(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "last_page_20240101_000000.html"), []byte("<html></html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "last_page_20240102_000000.html"), []byte(samplePage), 0o644))

	var buf bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{"--dir", dir})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, buf.String(), "last_page_20240102_000000.html")
	assert.Contains(t, buf.String(), "extraction: 2 quotes")
}

func TestRootCmd_NoArtifacts(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"--dir", t.TempDir()})
	assert.Error(t, cmd.Execute())
}
