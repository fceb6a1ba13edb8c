package main

import (
	"io"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/phelukas/yahoo-equity-crawler/internal/pipeline"
)

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)
	return t
}

func printSummary(w io.Writer, outcomes []regionOutcome) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Region", "State", "Source", "Records", "Pages", "Prev close", "Enriched", "Elapsed", "Note"})
	for _, o := range outcomes {
		t.AppendRow(summaryRow(o))
	}
	t.Render()
}

func summaryRow(o regionOutcome) table.Row {
	res := o.Result
	if res == nil {
		res = &pipeline.Result{Region: o.Region}
	}

	pages := "-"
	if res.Screener != nil {
		pages = strconv.Itoa(res.Screener.Pages)
	}
	enriched := "-"
	if res.Enrichment != nil {
		enriched = strconv.Itoa(res.Enrichment.EnrichedCurrency) + "/" + strconv.Itoa(res.Enrichment.TotalSymbols)
	}
	elapsed := "-"
	if !res.FinishedAt.IsZero() {
		elapsed = res.FinishedAt.Sub(res.StartedAt).Round(time.Millisecond).String()
	}
	source := string(res.Source)
	if source == "" {
		source = "-"
	}

	note := ""
	if o.Err != nil {
		note = o.Err.Error()
	} else if len(res.Warnings) > 0 {
		note = strconv.Itoa(len(res.Warnings)) + " warning(s)"
	}

	return table.Row{
		res.Region,
		string(res.State),
		source,
		len(res.Records),
		pages,
		res.Normalize.PriceFallbacks,
		enriched,
		elapsed,
		note,
	}
}
