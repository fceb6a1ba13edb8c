package pipeline

import (
	"errors"
	"fmt"
)

const (
	KindRender     = "render"
	KindStateParse = "state_parse"
)

var ErrRunFailed = errors.New("run failed")

var errEmptyScreener = errors.New("screener returned no rows")

// RunError is the fatal outcome of a run. Payload holds the typed cause,
// e.g. *extractor.StateParseError.
type RunError struct {
	Kind         string
	Payload      any
	ArtifactPath string
	Err          error
}

func (e *RunError) Error() string {
	msg := fmt.Sprintf("%s (%s): %v", ErrRunFailed, e.Kind, e.Err)
	if e.ArtifactPath != "" {
		msg += " [artifact: " + e.ArtifactPath + "]"
	}
	return msg
}

func (e *RunError) Unwrap() []error {
	return []error{ErrRunFailed, e.Err}
}
