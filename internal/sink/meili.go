package sink

import (
	"context"
	"regexp"
	"strings"

	"github.com/meilisearch/meilisearch-go"
	"github.com/phelukas/yahoo-equity-crawler/pkg/logger"
	"github.com/phelukas/yahoo-equity-crawler/pkg/models"
	"github.com/phelukas/yahoo-equity-crawler/pkg/money"
)

const EquitiesIndex = "equities"

// invalid characters for a meilisearch document id
var idSanitizer = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// EquityDocument is one listing in the search index.
type EquityDocument struct {
	ID        string `json:"id"`
	Symbol    string `json:"symbol"`
	Name      string `json:"name"`
	Exchange  string `json:"exchange,omitempty"`
	Currency  string `json:"currency,omitempty"`
	Region    string `json:"region"`
	Price     string `json:"price,omitempty"`
	MarketCap string `json:"market_cap,omitempty"`
	RunID     string `json:"run_id"`
	IndexedAt string `json:"indexed_at"`
}

// MeiliIndexer keeps the equities index in sync with the latest run per region.
type MeiliIndexer struct {
	client meilisearch.ServiceManager
}

func NewMeiliIndexer(url, apiKey string) (*MeiliIndexer, error) {
	client := meilisearch.New(url, meilisearch.WithAPIKey(apiKey))

	if _, err := client.Health(); err != nil {
		return nil, err
	}

	m := &MeiliIndexer{client: client}
	m.setupIndex()
	return m, nil
}

func (m *MeiliIndexer) setupIndex() {
	log := logger.Log

	_, err := m.client.CreateIndex(&meilisearch.IndexConfig{
		Uid:        EquitiesIndex,
		PrimaryKey: "id",
	})
	if err != nil {
		log.Debug().Str("index", EquitiesIndex).Msg("index already exists")
	} else {
		log.Info().Str("index", EquitiesIndex).Msg("index created")
	}

	index := m.client.Index(EquitiesIndex)

	current, err := index.GetSettings()
	if err != nil {
		log.Warn().Err(err).Msg("failed to get current settings, will update all")
		current = &meilisearch.Settings{}
	}

	searchable := []string{"symbol", "name"}
	if !stringSlicesEqual(current.SearchableAttributes, searchable) {
		if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
			log.Warn().Err(err).Msg("failed to update searchable attributes")
		}
	}

	filterable := []string{"region", "exchange", "currency"}
	if !stringSlicesEqual(current.FilterableAttributes, filterable) {
		attrs := make([]interface{}, len(filterable))
		for i, v := range filterable {
			attrs[i] = v
		}
		if _, err := index.UpdateFilterableAttributes(&attrs); err != nil {
			log.Warn().Err(err).Msg("failed to update filterable attributes")
		}
	}

	log.Info().Str("index", EquitiesIndex).Msg("meilisearch index configured")
}

func (m *MeiliIndexer) Name() string {
	return "meili"
}

func (m *MeiliIndexer) Write(_ context.Context, report *models.RunReport, records []models.QuoteRecord) error {
	if len(records) == 0 {
		return nil
	}
	indexedAt := report.FinishedAt.UTC().Format("2006-01-02T15:04:05Z07:00")
	docs := make([]map[string]interface{}, 0, len(records))
	for _, r := range records {
		docs = append(docs, docToMap(ToDocument(r, report.Region, report.RunID, indexedAt)))
	}
	pk := "id"
	_, err := m.client.Index(EquitiesIndex).AddDocuments(docs, &pk)
	return err
}

// DocumentID is REGION-SYMBOL with characters meilisearch rejects replaced.
func DocumentID(region, symbol string) string {
	return idSanitizer.ReplaceAllString(strings.ToUpper(region)+"-"+symbol, "_")
}

func ToDocument(r models.QuoteRecord, region, runID, indexedAt string) EquityDocument {
	if r.Region != "" {
		region = r.Region
	}
	return EquityDocument{
		ID:        DocumentID(region, r.Symbol),
		Symbol:    r.Symbol,
		Name:      r.Name,
		Exchange:  r.Exchange,
		Currency:  r.Currency,
		Region:    region,
		Price:     money.Format(r.Price),
		MarketCap: money.Format(r.MarketCap),
		RunID:     runID,
		IndexedAt: indexedAt,
	}
}

func docToMap(doc EquityDocument) map[string]interface{} {
	m := map[string]interface{}{
		"id":         doc.ID,
		"symbol":     doc.Symbol,
		"name":       doc.Name,
		"region":     doc.Region,
		"run_id":     doc.RunID,
		"indexed_at": doc.IndexedAt,
	}
	if doc.Exchange != "" {
		m["exchange"] = doc.Exchange
	}
	if doc.Currency != "" {
		m["currency"] = doc.Currency
	}
	if doc.Price != "" {
		m["price"] = doc.Price
	}
	if doc.MarketCap != "" {
		m["market_cap"] = doc.MarketCap
	}
	return m
}

func stringSlicesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
