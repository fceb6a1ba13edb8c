package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/phelukas/yahoo-equity-crawler/pkg/logger"
	"github.com/phelukas/yahoo-equity-crawler/pkg/models"
)

const (
	StreamEquityListings = "EQUITY_LISTINGS"

	SubjectRecordsPrefix = "equities.records"
	SubjectRuns          = "equities.runs"

	defaultRecordBatch = 500
)

// RecordBatch is one chunk of a run's records on equities.records.<REGION>.
type RecordBatch struct {
	RunID   string               `json:"run_id"`
	Region  string               `json:"region"`
	Source  models.Source        `json:"source"`
	Seq     int                  `json:"seq"`
	Last    bool                 `json:"last"`
	Records []models.QuoteRecord `json:"records"`
}

// NATSPublisher publishes records and run reports to JetStream.
type NATSPublisher struct {
	nc        *nats.Conn
	js        jetstream.JetStream
	BatchSize int
}

func NewNATSPublisher(url string) (*NATSPublisher, error) {
	log := logger.Log

	opts := []nats.Option{
		nats.Name("yahoo-equity-crawler"),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(-1),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Warn().Str("url", nc.ConnectedUrl()).Msg("nats reconnected")
		}),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.Error().Err(err).Msg("nats disconnected")
			}
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	p := &NATSPublisher{nc: nc, js: js, BatchSize: defaultRecordBatch}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.ensureStream(ctx); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream: %w", err)
	}

	log.Info().Str("url", url).Msg("nats connected")
	return p, nil
}

func (p *NATSPublisher) ensureStream(ctx context.Context) error {
	cfg := jetstream.StreamConfig{
		Name:        StreamEquityListings,
		Subjects:    []string{SubjectRecordsPrefix + ".>", SubjectRuns},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      7 * 24 * time.Hour,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Discard:     jetstream.DiscardOld,
		MaxMsgs:     100000,
		Description: "Equity listings and crawl run reports",
	}
	if _, err := p.js.CreateOrUpdateStream(ctx, cfg); err != nil {
		return fmt.Errorf("create stream %s: %w", cfg.Name, err)
	}
	logger.Log.Debug().Str("stream", cfg.Name).Msg("stream ensured")
	return nil
}

func (p *NATSPublisher) Name() string {
	return "nats"
}

// Write publishes the records in batches and then the run report.
func (p *NATSPublisher) Write(ctx context.Context, report *models.RunReport, records []models.QuoteRecord) error {
	subject := RecordsSubject(report.Region)
	for i, batch := range Batches(records, p.batchSize()) {
		msg := RecordBatch{
			RunID:   report.RunID,
			Region:  report.Region,
			Source:  report.Source,
			Seq:     i,
			Last:    (i+1)*p.batchSize() >= len(records),
			Records: batch,
		}
		if err := p.publish(ctx, subject, msg); err != nil {
			return err
		}
	}
	return p.publish(ctx, SubjectRuns, report)
}

func (p *NATSPublisher) publish(ctx context.Context, subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if _, err := p.js.Publish(ctx, subject, payload); err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}
	return nil
}

func (p *NATSPublisher) batchSize() int {
	if p.BatchSize <= 0 {
		return defaultRecordBatch
	}
	return p.BatchSize
}

func (p *NATSPublisher) Close() {
	p.nc.Close()
}

// RecordsSubject is equities.records.<REGION>.
func RecordsSubject(region string) string {
	return SubjectRecordsPrefix + "." + strings.ToUpper(region)
}

// Batches splits records into chunks of at most size.
func Batches(records []models.QuoteRecord, size int) [][]models.QuoteRecord {
	if size <= 0 {
		size = defaultRecordBatch
	}
	var out [][]models.QuoteRecord
	for i := 0; i < len(records); i += size {
		out = append(out, records[i:min(i+size, len(records))])
	}
	return out
}
