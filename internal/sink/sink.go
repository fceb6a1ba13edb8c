// Package sink delivers a completed run to its outputs.
package sink

import (
	"context"
	"errors"
	"fmt"

	"github.com/phelukas/yahoo-equity-crawler/pkg/logger"
	"github.com/phelukas/yahoo-equity-crawler/pkg/models"
)

// Sink receives the records of a completed run. Records are passed by value
// and must not be modified.
type Sink interface {
	Name() string
	Write(ctx context.Context, report *models.RunReport, records []models.QuoteRecord) error
}

// Multi fans a run out to every sink. All sinks are attempted; failures are
// logged and returned joined.
type Multi struct {
	sinks []Sink
}

func NewMulti(sinks ...Sink) *Multi {
	return &Multi{sinks: sinks}
}

func (m *Multi) Add(s Sink) {
	m.sinks = append(m.sinks, s)
}

func (m *Multi) Names() []string {
	names := make([]string, 0, len(m.sinks))
	for _, s := range m.sinks {
		names = append(names, s.Name())
	}
	return names
}

func (m *Multi) Name() string {
	return "multi"
}

func (m *Multi) Write(ctx context.Context, report *models.RunReport, records []models.QuoteRecord) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Write(ctx, report, records); err != nil {
			logger.Log.Error().Err(err).Str("sink", s.Name()).Str("run_id", report.RunID).Msg("sink write failed")
			errs = append(errs, &Error{Sink: s.Name(), Err: err})
			continue
		}
		logger.Log.Debug().Str("sink", s.Name()).Int("records", len(records)).Msg("sink written")
	}
	return errors.Join(errs...)
}

// Error tags a failure with the sink that produced it.
type Error struct {
	Sink string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("sink %s: %v", e.Sink, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// FailedSink reports whether err carries a failure from the named sink.
func FailedSink(err error, name string) bool {
	if err == nil {
		return false
	}
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		for _, e := range joined.Unwrap() {
			if FailedSink(e, name) {
				return true
			}
		}
		return false
	}
	var se *Error
	return errors.As(err, &se) && se.Sink == name
}
