package quotes

import (
	"errors"
	"fmt"
	"strings"
)

var ErrEnrichment = errors.New("quote enrichment failed")

// EnrichmentError describes one failed quote batch. It never aborts a run.
type EnrichmentError struct {
	Symbols []string
	Status  int
	URL     string
	Body    string
	Err     error
}

func (e *EnrichmentError) Error() string {
	msg := fmt.Sprintf("%s: status %d for %d symbols", ErrEnrichment, e.Status, len(e.Symbols))
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *EnrichmentError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrEnrichment}
	}
	return []error{ErrEnrichment, e.Err}
}

// Params returns the query the failed batch was sent with.
func (e *EnrichmentError) Params() map[string]string {
	return map[string]string{"symbols": strings.Join(e.Symbols, ",")}
}
