package models

import "time"

// Source tells which extraction path produced a run's records.
type Source string

const (
	SourceScreenerAPI  Source = "screener_api"
	SourceHTMLFallback Source = "html_fallback"
)

// PagingConvention is the position scheme a screener endpoint expects.
type PagingConvention string

const (
	PagingOffsetSize PagingConvention = "offset_size" // POST body criteria.offset / criteria.size
	PagingStartCount PagingConvention = "start_count" // GET query start / count
)

// EmbeddedStateCandidate is a decoded state container found in a page.
type EmbeddedStateCandidate struct {
	Container string
	State     any
}

// RunReport summarizes one region run for persistence and events.
type RunReport struct {
	RunID        string         `json:"run_id" bson:"_id"`
	Region       string         `json:"region" bson:"region"`
	Source       Source         `json:"source,omitempty" bson:"source,omitempty"`
	State        string         `json:"state" bson:"state"`
	Trace        []string       `json:"trace" bson:"trace"`
	Records      int            `json:"records" bson:"records"`
	Screener     *ScreenerStats `json:"screener,omitempty" bson:"screener,omitempty"`
	Normalize    NormalizeStats `json:"normalize" bson:"normalize"`
	Enrichment   *EnrichStats   `json:"enrichment,omitempty" bson:"enrichment,omitempty"`
	Warnings     []string       `json:"warnings,omitempty" bson:"warnings,omitempty"`
	ErrorKind    string         `json:"error_kind,omitempty" bson:"error_kind,omitempty"`
	Error        string         `json:"error,omitempty" bson:"error,omitempty"`
	ArtifactPath string         `json:"artifact_path,omitempty" bson:"artifact_path,omitempty"`
	StartedAt    time.Time      `json:"started_at" bson:"started_at"`
	FinishedAt   time.Time      `json:"finished_at" bson:"finished_at"`
}

type ScreenerStats struct {
	TotalItems    int           `json:"total_items" bson:"total_items"`
	UniqueSymbols int           `json:"unique_symbols" bson:"unique_symbols"`
	Duplicates    int           `json:"duplicates" bson:"duplicates"`
	Pages         int           `json:"pages" bson:"pages"`
	TotalExpected int           `json:"total_expected,omitempty" bson:"total_expected,omitempty"`
	StopReason    string        `json:"stop_reason" bson:"stop_reason"`
	Elapsed       time.Duration `json:"elapsed" bson:"elapsed"`
}

type NormalizeStats struct {
	Input          int `json:"input" bson:"input"`
	Output         int `json:"output" bson:"output"`
	Dropped        int `json:"dropped" bson:"dropped"`
	Duplicates     int `json:"duplicates" bson:"duplicates"`
	PriceFallbacks int `json:"price_fallbacks" bson:"price_fallbacks"`
	MissingPrice   int `json:"missing_price" bson:"missing_price"`
}

type EnrichStats struct {
	TotalSymbols      int           `json:"total_symbols" bson:"total_symbols"`
	Batches           int           `json:"batches" bson:"batches"`
	CacheHits         int           `json:"cache_hits" bson:"cache_hits"`
	EnrichedCurrency  int           `json:"enriched_currency" bson:"enriched_currency"`
	EnrichedMarketCap int           `json:"enriched_market_cap" bson:"enriched_market_cap"`
	Failures          int           `json:"failures" bson:"failures"`
	Elapsed           time.Duration `json:"elapsed" bson:"elapsed"`
}
