package sink

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/phelukas/yahoo-equity-crawler/pkg/models"
	"github.com/phelukas/yahoo-equity-crawler/pkg/money"
)

const (
	ModeMinimal = "minimal"
	ModeFull    = "full"
)

var (
	minimalHeaders = []string{"symbol", "name", "price"}
	fullHeaders    = []string{"symbol", "name", "exchange", "market_cap", "price", "currency", "region"}
)

// CSVWriter writes one file per region. Minimal mode quotes every field, full
// mode only the fields that need it. The header is written even when there
// are no records.
type CSVWriter struct {
	// PathFor maps a region code to its output file.
	PathFor func(region string) string
	Mode    string
}

func NewCSVWriter(pathFor func(region string) string, mode string) *CSVWriter {
	if mode == "" {
		mode = ModeFull
	}
	return &CSVWriter{PathFor: pathFor, Mode: mode}
}

func (w *CSVWriter) Name() string {
	return "csv"
}

func (w *CSVWriter) Write(_ context.Context, report *models.RunReport, records []models.QuoteRecord) error {
	path := w.PathFor(report.Region)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	if w.Mode == ModeMinimal {
		err = w.writeQuoted(f, records, report.Region)
	} else {
		err = w.writeFull(f, records, report.Region)
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func (w *CSVWriter) writeFull(out io.Writer, records []models.QuoteRecord, region string) error {
	cw := csv.NewWriter(out)
	if err := cw.Write(fullHeaders); err != nil {
		return err
	}
	for _, r := range records {
		if err := cw.Write(w.row(r, region)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// writeQuoted quotes every field; encoding/csv has no switch for that.
func (w *CSVWriter) writeQuoted(out io.Writer, records []models.QuoteRecord, region string) error {
	bw := bufio.NewWriter(out)
	if err := writeRow(bw, minimalHeaders); err != nil {
		return err
	}
	for _, r := range records {
		if err := writeRow(bw, w.row(r, region)); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func (w *CSVWriter) row(r models.QuoteRecord, region string) []string {
	price := money.Format(r.Price)
	if w.Mode == ModeMinimal {
		return []string{r.Symbol, r.Name, price}
	}
	if r.Region != "" {
		region = r.Region
	}
	return []string{r.Symbol, r.Name, r.Exchange, money.Format(r.MarketCap), price, r.Currency, region}
}

func writeRow(w *bufio.Writer, fields []string) error {
	for i, field := range fields {
		if i > 0 {
			if err := w.WriteByte(','); err != nil {
				return err
			}
		}
		if _, err := w.WriteString(quote(field)); err != nil {
			return err
		}
	}
	_, err := w.WriteString("\n")
	return err
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
