package pipeline

import (
	"errors"
	"time"

	"github.com/phelukas/yahoo-equity-crawler/pkg/models"
	"github.com/phelukas/yahoo-equity-crawler/pkg/status"
)

// Result is everything one region run produced.
type Result struct {
	RunID      string
	Region     string
	Source     models.Source
	State      status.Run
	Trace      []status.Run
	Records    []models.QuoteRecord
	Screener   *models.ScreenerStats
	Normalize  models.NormalizeStats
	Enrichment *models.EnrichStats
	Warnings   []string
	StartedAt  time.Time
	FinishedAt time.Time
}

func (r *Result) warn(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// Report flattens the result for persistence. err is the run error, if any.
func (r *Result) Report(err error) *models.RunReport {
	trace := make([]string, len(r.Trace))
	for i, s := range r.Trace {
		trace[i] = string(s)
	}

	report := &models.RunReport{
		RunID:      r.RunID,
		Region:     r.Region,
		Source:     r.Source,
		State:      string(r.State),
		Trace:      trace,
		Records:    len(r.Records),
		Screener:   r.Screener,
		Normalize:  r.Normalize,
		Enrichment: r.Enrichment,
		Warnings:   r.Warnings,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
	if err != nil {
		report.Error = err.Error()
		var runErr *RunError
		if errors.As(err, &runErr) {
			report.ErrorKind = runErr.Kind
			report.ArtifactPath = runErr.ArtifactPath
		}
	}
	return report
}
