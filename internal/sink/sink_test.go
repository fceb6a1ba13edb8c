package sink

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/phelukas/yahoo-equity-crawler/pkg/models"
	"github.com/phelukas/yahoo-equity-crawler/pkg/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecords() []models.QuoteRecord {
	return []models.QuoteRecord{
		{
			Symbol:    "PETR4.SA",
			Name:      `Petróleo Brasileiro S.A. "Petrobras"`,
			Exchange:  "SAO",
			MarketCap: money.ParseString("512.3B"),
			Price:     money.ParseString("38.12"),
			Currency:  "BRL",
			Region:    "BR",
		},
		{Symbol: "VALE3.SA", Name: "Vale S.A.", Region: "BR"},
	}
}

func sampleReport() *models.RunReport {
	return &models.RunReport{
		RunID:      "run-1",
		Region:     "BR",
		Source:     models.SourceScreenerAPI,
		State:      "complete",
		FinishedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestCSVWriter_Full(t *testing.T) {
	dir := t.TempDir()
	w := NewCSVWriter(func(region string) string { return filepath.Join(dir, "out", "equities_"+region+".csv") }, ModeFull)

	require.NoError(t, w.Write(context.Background(), sampleReport(), sampleRecords()))

	data, err := os.ReadFile(filepath.Join(dir, "out", "equities_BR.csv"))
	require.NoError(t, err)
	want := "symbol,name,exchange,market_cap,price,currency,region\n" +
		`PETR4.SA,"Petróleo Brasileiro S.A. ""Petrobras""",SAO,512300000000,38.12,BRL,BR` + "\n" +
		"VALE3.SA,Vale S.A.,,,,,BR\n"
	assert.Equal(t, want, string(data))
}

func TestCSVWriter_MinimalQuotesEveryField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "min.csv")
	w := NewCSVWriter(func(string) string { return path }, ModeMinimal)

	require.NoError(t, w.Write(context.Background(), sampleReport(), sampleRecords()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	want := `"symbol","name","price"` + "\n" +
		`"PETR4.SA","Petróleo Brasileiro S.A. ""Petrobras""","38.12"` + "\n" +
		`"VALE3.SA","Vale S.A.",""` + "\n"
	assert.Equal(t, want, string(data))
}

func TestCSVWriter_MinimalHeaderOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "min.csv")
	w := NewCSVWriter(func(string) string { return path }, ModeMinimal)

	require.NoError(t, w.Write(context.Background(), sampleReport(), nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `"symbol","name","price"`+"\n", string(data))
}

type fakeSink struct {
	name string
	err  error
	got  int
}

func (f *fakeSink) Name() string { return f.name }

func (f *fakeSink) Write(_ context.Context, _ *models.RunReport, records []models.QuoteRecord) error {
	f.got = len(records)
	return f.err
}

func TestMulti_WritesAllAndJoinsErrors(t *testing.T) {
	a := &fakeSink{name: "csv", err: errors.New("disk full")}
	b := &fakeSink{name: "nats"}
	c := &fakeSink{name: "mongo", err: errors.New("timeout")}

	m := NewMulti(a, b)
	m.Add(c)
	assert.Equal(t, []string{"csv", "nats", "mongo"}, m.Names())

	err := m.Write(context.Background(), sampleReport(), sampleRecords())
	require.Error(t, err)
	assert.Equal(t, 2, a.got)
	assert.Equal(t, 2, b.got)
	assert.Equal(t, 2, c.got)

	assert.True(t, FailedSink(err, "csv"))
	assert.True(t, FailedSink(err, "mongo"))
	assert.False(t, FailedSink(err, "nats"))
	assert.ErrorContains(t, err, "disk full")
}

func TestMulti_NoErrors(t *testing.T) {
	m := NewMulti(&fakeSink{name: "csv"})
	err := m.Write(context.Background(), sampleReport(), nil)
	assert.NoError(t, err)
	assert.False(t, FailedSink(err, "csv"))
}

func TestDocumentID(t *testing.T) {
	assert.Equal(t, "BR-PETR4_SA", DocumentID("br", "PETR4.SA"))
	assert.Equal(t, "US-BRK-B", DocumentID("US", "BRK-B"))
	assert.Equal(t, "MX-WALMEX_", DocumentID("MX", "WALMEX*"))
}

func TestToDocument(t *testing.T) {
	doc := ToDocument(sampleRecords()[0], "BR", "run-1", "2024-01-02T03:04:05Z")
	assert.Equal(t, "BR-PETR4_SA", doc.ID)
	assert.Equal(t, "512300000000", doc.MarketCap)
	assert.Equal(t, "38.12", doc.Price)

	m := docToMap(ToDocument(sampleRecords()[1], "BR", "run-1", ""))
	assert.NotContains(t, m, "price")
	assert.NotContains(t, m, "currency")
}

func TestBatches(t *testing.T) {
	recs := make([]models.QuoteRecord, 1100)
	b := Batches(recs, 500)
	require.Len(t, b, 3)
	assert.Len(t, b[2], 100)
	assert.Empty(t, Batches(nil, 500))
	assert.Equal(t, "equities.records.BR", RecordsSubject("br"))
}

func TestMemoryRunRepo(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRunRepo()

	_, err := repo.LastByRegion(ctx, "BR")
	assert.ErrorIs(t, err, ErrRunNotFound)

	newer := sampleReport()
	require.NoError(t, repo.Save(ctx, newer))

	older := sampleReport()
	older.RunID = "run-0"
	older.FinishedAt = older.FinishedAt.Add(-time.Minute)
	require.NoError(t, repo.Save(ctx, older))

	got, err := repo.LastByRegion(ctx, "br")
	require.NoError(t, err)
	assert.Equal(t, "run-1", got.RunID)

	got.Records = 99
	again, _ := repo.LastByRegion(ctx, "BR")
	assert.Equal(t, 0, again.Records)
}
