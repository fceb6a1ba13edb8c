package extractor

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSeedNotFound is returned when the page carries no usable screener seed
	ErrSeedNotFound = errors.New("screener seed not found")

	// ErrStateParse is returned when no embedded state yields a quote list
	ErrStateParse = errors.New("embedded state not parsed")
)

type SeedNotFoundError struct {
	Reason string
}

func (e *SeedNotFoundError) Error() string {
	return fmt.Sprintf("%s: %s", ErrSeedNotFound, e.Reason)
}

func (e *SeedNotFoundError) Unwrap() error {
	return ErrSeedNotFound
}

// StateParseError carries enough context to persist a postmortem artifact.
type StateParseError struct {
	Tried   []string
	Reason  string
	Scripts []ScriptInfo
}

func (e *StateParseError) Error() string {
	msg := fmt.Sprintf("%s: %s", ErrStateParse, e.Reason)
	if len(e.Tried) > 0 {
		msg += " (tried " + strings.Join(e.Tried, ", ") + ")"
	}
	return msg
}

func (e *StateParseError) Unwrap() error {
	return ErrStateParse
}
